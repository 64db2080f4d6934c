package main

import (
	"context"

	"campusride/config"
	"campusride/pkg/logger"
	"campusride/storage/mongo"
	"campusride/storage/postgres"
)

// Empties every collection of the configured store. Development only.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName)
	ctx := context.Background()

	if cfg.IsProduction() {
		log.Error("refusing to reset a production database")
		return
	}

	var err error
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		mg, openErr := mongo.New(ctx, cfg, log)
		if openErr != nil {
			panic(openErr)
		}
		defer mg.Close()
		err = mg.Reset(ctx)
	default:
		pg, openErr := postgres.New(ctx, cfg, log)
		if openErr != nil {
			panic(openErr)
		}
		defer pg.Close()
		err = pg.Reset(ctx)
	}

	if err != nil {
		log.Error("failed to reset database", logger.String("driver", cfg.StoreDriver), logger.Error(err))
		return
	}
	log.Info("database reset", logger.String("driver", cfg.StoreDriver))
}
