package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"campusride/config"
	"campusride/pkg/api"
	"campusride/pkg/bot"
	"campusride/pkg/logger"
	"campusride/pkg/socket"
	"campusride/service"
	"campusride/storage"
	"campusride/storage/memory"
	"campusride/storage/mongo"
	"campusride/storage/postgres"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Storage
	stg, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", logger.String("driver", cfg.StoreDriver), logger.Error(err))
		os.Exit(1)
	}
	defer closeStore()

	// 4. Realtime fan-out: hub, optional Redis bridge, optional admin bot
	hub := socket.NewHub(log, socket.WithAllowedOrigins(cfg.CORSOrigins))
	emitters := socket.Fanout{hub}

	if addr := cfg.RedisAddr(); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.RedisPassword})
		defer rdb.Close()
		bridge := socket.NewRedisBridge(hub, rdb, cfg.RedisChannel, log)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				log.Error("fan-out bridge stopped", logger.Error(err))
			}
		}()
	}

	var notifier *bot.Notifier
	if cfg.AdminBotToken != "" {
		notifier, err = bot.New(&cfg, log)
		if err != nil {
			log.Error("failed to initialize admin bot", logger.Error(err))
		} else {
			emitters = append(emitters, notifier)
		}
	}

	// 5. Services
	svc := service.New(cfg, stg, emitters, log)
	if notifier != nil {
		notifier.Attach(svc)
		go notifier.Run(ctx)
	}

	if cfg.SeedAdminEmail != "" {
		if _, err := svc.User().SeedAdmin(ctx, cfg.SeedAdminName, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			log.Error("failed to seed admin", logger.Error(err))
		}
	}

	// 6. HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           api.New(&cfg, svc, hub, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http server is starting", logger.Int("port", cfg.AppPort), logger.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", logger.Error(err))
			stop()
		}
	}()

	if err := svc.Queue().ProcessQueue(ctx); err != nil {
		log.Warning("startup queue processing failed", logger.Error(err))
	}

	// 7. Graceful Shutdown
	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shut down http server", logger.Error(err))
	}
}

func openStore(ctx context.Context, cfg config.Config, log logger.ILogger) (storage.IStorage, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pg, err := postgres.New(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case config.StoreDriverMongo:
		mg, err := mongo.New(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return mg, mg.Close, nil
	case config.StoreDriverMemory:
		log.Warning("using in-memory store, data is lost on restart")
		return memory.New(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
