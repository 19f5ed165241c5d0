package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/gitscout/gitscout-backend/internal/platform/envutil"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(logg *logger.Logger) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService")

	dsn := envutil.GetEnv("DATABASE_URL", "", logg)
	if dsn == "" {
		host := envutil.GetEnv("POSTGRES_HOST", "localhost", logg)
		port := envutil.GetEnv("POSTGRES_PORT", "5432", logg)
		user := envutil.GetEnv("POSTGRES_USER", "postgres", logg)
		password := envutil.GetEnv("POSTGRES_PASSWORD", "", logg)
		name := envutil.GetEnv("POSTGRES_NAME", "gitscout", logg)
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			user, password, host, port, name,
		)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }
