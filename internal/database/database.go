// Package database opens the product store selected by configuration.
//
// Opening never fails the process: when the backend cannot be reached the
// returned repository reports repositories.ErrStoreUnavailable (or the driver
// error) on every call and the failure is logged once here.
package database

import (
	"context"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"productapi/internal/config"
	"productapi/internal/repositories"
)

// CloseFunc releases the store connection.
type CloseFunc func(ctx context.Context) error

func noopClose(context.Context) error { return nil }

// Open connects to the configured store and returns its repository.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (repositories.ProductRepository, CloseFunc) {
	log = log.With(zap.String("driver", cfg.Driver))

	switch cfg.Driver {
	case config.DriverMemory:
		log.Info("Using in-memory product store")
		return repositories.NewInMemoryProductRepository(), noopClose
	case config.DriverPostgres, config.DriverSQLite:
		return openGORM(cfg, log)
	default:
		return openMongo(ctx, cfg, log)
	}
}

func openMongo(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (repositories.ProductRepository, CloseFunc) {
	dbName, err := mongoDatabaseName(cfg)
	if err != nil {
		log.Error("Database connection failed", zap.Error(err))
		return repositories.NewMongoProductRepository(nil, cfg.Timeout), noopClose
	}

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		opts.SetConnectTimeout(cfg.Timeout).SetServerSelectionTimeout(cfg.Timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		log.Error("Database connection failed", zap.Error(err))
		return repositories.NewMongoProductRepository(nil, cfg.Timeout), noopClose
	}

	collection := client.Database(dbName).Collection(cfg.Collection)
	repo := repositories.NewMongoProductRepository(collection, cfg.Timeout)
	if err := repo.Ping(ctx); err != nil {
		// The driver keeps trying in the background; requests fail until it succeeds.
		log.Error("Database connection failed", zap.Error(err))
	} else {
		log.Info("Database connected successfully",
			zap.String("database", dbName),
			zap.String("collection", cfg.Collection),
		)
	}

	return repo, func(ctx context.Context) error {
		if err := client.Disconnect(ctx); err != nil {
			return errors.Wrap(err, "disconnect mongodb")
		}
		return nil
	}
}

// mongoDatabaseName prefers the database named in the URI path.
func mongoDatabaseName(cfg config.DatabaseConfig) (string, error) {
	cs, err := connstring.ParseAndValidate(cfg.URI)
	if err != nil {
		return "", errors.Wrap(err, "parse DATABASE_URI")
	}
	if cs.Database != "" {
		return cs.Database, nil
	}
	return cfg.Name, nil
}

func openGORM(cfg config.DatabaseConfig, log *zap.Logger) (repositories.ProductRepository, CloseFunc) {
	dialector := postgres.Open(cfg.URI)
	if cfg.Driver == config.DriverSQLite {
		dialector = sqlite.Open(cfg.URI)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Error("Database connection failed", zap.Error(err))
		return repositories.NewGORMProductRepository(nil, cfg.Timeout), noopClose
	}
	log.Info("Database connected successfully")

	return repositories.NewGORMProductRepository(db, cfg.Timeout), func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return errors.Wrap(err, "get sql db")
		}
		if err := sqlDB.Close(); err != nil {
			return errors.Wrap(err, "close database")
		}
		return nil
	}
}
