package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jwalitptl/fieldservice-api/config"
	"github.com/jwalitptl/fieldservice-api/internal/repository/postgres"
)

const usage = "usage: migrate up | down [n] | version"

func newLogger() (*zap.Logger, error) {
	var cfg zap.Config
	if os.Getenv("APP_ENV") == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func main() {
	_ = godotenv.Load()

	logger, err := newLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	db, err := postgres.NewDB(cfg.Database.ToPoolConfig())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	path := cfg.Database.MigrationsPath
	logger = logger.With(zap.String("path", path))

	switch os.Args[1] {
	case "up":
		version, err := postgres.RunMigrations(db.DB, path)
		if err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
		logger.Info("migrations applied", zap.Uint("version", version))

	case "down":
		steps := 1
		if len(os.Args) > 2 {
			steps, err = strconv.Atoi(os.Args[2])
			if err != nil || steps <= 0 {
				logger.Fatal("down expects a positive number of steps", zap.String("arg", os.Args[2]))
			}
		}
		if err := postgres.RollbackMigrations(db.DB, path, steps); err != nil {
			logger.Fatal("rollback failed", zap.Error(err))
		}
		logger.Info("migrations rolled back", zap.Int("steps", steps))

	case "version":
		version, dirty, err := postgres.MigrationVersion(db.DB, path)
		if err != nil {
			logger.Fatal("failed to read version", zap.Error(err))
		}
		logger.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))

	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}
