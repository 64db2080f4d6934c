package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusride/config"
	"campusride/pkg/logger"
	"campusride/storage"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type Store struct {
	pool *pgxpool.Pool
	db   querier
	inTx bool
	log  logger.ILogger
}

func New(ctx context.Context, cfg config.Config, log logger.ILogger) (*Store, error) {
	url := ConnString(cfg)

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		log.Error("error while parsing Postgres config", logger.Error(err))
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Error("failed to connect Postgres", logger.Error(err))
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		log.Error("Postgres ping failed", logger.Error(err))
		pool.Close()
		return nil, err
	}

	if err := Migrate(url, migrationsPath(cfg), log); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("Postgres connected")

	return &Store{
		pool: pool,
		db:   pool,
		log:  log,
	}, nil
}

func ConnString(cfg config.Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.PostgresUser,
		cfg.PostgresPassword,
		cfg.PostgresHost,
		cfg.PostgresPort,
		cfg.PostgresDB,
	)
}

// Migrate applies every pending migration found under dir.
func Migrate(url, dir string, log logger.ILogger) error {
	m, err := migrate.New("file://"+dir, url)
	if err != nil {
		log.Error("migration init error", logger.String("path", dir), logger.Error(err))
		return err
	}
	defer m.Close()

	if err = m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to apply")
			return nil
		}
		log.Error("migration up error", logger.Error(err))
		return err
	}
	log.Info("migrations applied", logger.String("path", dir))
	return nil
}

func migrationsPath(cfg config.Config) string {
	if cfg.MigrationsPath != "" {
		return cfg.MigrationsPath
	}
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, "migrations", "postgres")
}

func (s *Store) Close() {
	if !s.inTx {
		s.pool.Close()
	}
}

// Reset empties every table.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE TABLE schedules, complaints, messages, trips, rides, queue_entries, users")
	if err != nil {
		s.log.Error("failed to truncate tables", logger.Error(err))
	}
	return err
}

func (s *Store) User() storage.IUserStorage           { return NewUserRepo(s.db, s.log) }
func (s *Store) Queue() storage.IQueueStorage         { return NewQueueRepo(s.db, s.log) }
func (s *Store) Ride() storage.IRideStorage           { return NewRideRepo(s.db, s.log) }
func (s *Store) Trip() storage.ITripStorage           { return NewTripRepo(s.db, s.log) }
func (s *Store) Message() storage.IMessageStorage     { return NewMessageRepo(s.db, s.log) }
func (s *Store) Complaint() storage.IComplaintStorage { return NewComplaintRepo(s.db, s.log) }
func (s *Store) Schedule() storage.IScheduleStorage   { return NewScheduleRepo(s.db, s.log) }

func (s *Store) InTx(ctx context.Context, fn func(tx storage.IStorage) error) error {
	if s.inTx {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{pool: s.pool, db: tx, inTx: true, log: s.log})
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
