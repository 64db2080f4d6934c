package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

type Config struct {
	ServiceName string
	LoggerLevel string
	Environment string

	AppPort int

	StoreDriver string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	MigrationsPath   string

	MongoURI string
	MongoDB  string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisChannel  string

	JWTSecret   string
	JWTTTLHours int
	CORSOrigins []string

	MaxRideSeats int

	AdminBotToken string
	AdminChatID   int64

	SeedAdminName     string
	SeedAdminEmail    string
	SeedAdminPassword string
}

func Load() Config {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "campusride"))
	cfg.LoggerLevel = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", "debug"))
	cfg.Environment = cast.ToString(getOrReturnDefault("ENVIRONMENT", "development"))
	cfg.AppPort = cast.ToInt(getOrReturnDefault("APP_PORT", 8080))

	cfg.StoreDriver = strings.ToLower(cast.ToString(getOrReturnDefault("STORE_DRIVER", StoreDriverPostgres)))

	cfg.PostgresHost = cast.ToString(getOrReturnDefault("POSTGRES_HOST", "localhost"))
	cfg.PostgresPort = cast.ToString(getOrReturnDefault("POSTGRES_PORT", "5432"))
	cfg.PostgresUser = cast.ToString(getOrReturnDefault("POSTGRES_USER", "postgres"))
	cfg.PostgresPassword = cast.ToString(getOrReturnDefault("POSTGRES_PASSWORD", "1234"))
	cfg.PostgresDB = cast.ToString(getOrReturnDefault("POSTGRES_DB", "campusride"))
	cfg.MigrationsPath = cast.ToString(getOrReturnDefault("MIGRATIONS_PATH", ""))

	cfg.MongoURI = cast.ToString(getOrReturnDefault("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"))
	cfg.MongoDB = cast.ToString(getOrReturnDefault("MONGO_DB", "campusride"))

	cfg.RedisHost = cast.ToString(getOrReturnDefault("REDIS_HOST", ""))
	cfg.RedisPort = cast.ToString(getOrReturnDefault("REDIS_PORT", "6379"))
	cfg.RedisPassword = cast.ToString(getOrReturnDefault("REDIS_PASSWORD", ""))
	cfg.RedisChannel = cast.ToString(getOrReturnDefault("REDIS_CHANNEL", "campusride:fanout"))

	cfg.JWTSecret = cast.ToString(getOrReturnDefault("JWT_SECRET", ""))
	cfg.JWTTTLHours = cast.ToInt(getOrReturnDefault("JWT_TTL_HOURS", 24*7))
	cfg.CORSOrigins = splitList(cast.ToString(getOrReturnDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")))

	cfg.MaxRideSeats = cast.ToInt(getOrReturnDefault("MAX_RIDE_SEATS", 4))

	cfg.AdminBotToken = cast.ToString(getOrReturnDefault("ADMIN_BOT_TOKEN", ""))
	cfg.AdminChatID = cast.ToInt64(getOrReturnDefault("ADMIN_CHAT_ID", 0))

	cfg.SeedAdminName = cast.ToString(getOrReturnDefault("SEED_ADMIN_NAME", "Administrator"))
	cfg.SeedAdminEmail = cast.ToString(getOrReturnDefault("SEED_ADMIN_EMAIL", ""))
	cfg.SeedAdminPassword = cast.ToString(getOrReturnDefault("SEED_ADMIN_PASSWORD", ""))

	return cfg
}

// RedisAddr returns host:port, or "" when the fan-out bridge is disabled.
func (c Config) RedisAddr() string {
	if c.RedisHost == "" {
		return ""
	}
	return c.RedisHost + ":" + c.RedisPort
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
