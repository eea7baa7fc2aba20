package postgres

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	logx "github.com/jewelry-concierge/server/pkg/logger"
)

type Config struct {
	ConnectionString string `split_words:"true"`
	MaxIdleConns     int    `split_words:"true" default:"10"`
	MaxOpenConns     int    `split_words:"true" default:"50"`
	// ConnMaxLifetime in minutes
	ConnMaxLifetime int    `split_words:"true" default:"60"`
	SlowQuery       int    `split_words:"true" default:"500"`
	LogLevel        string `split_words:"true" default:"warn"`
}

// Enabled reports whether a connection string is configured.
func (c *Config) Enabled() bool { return c.ConnectionString != "" }

func (c *Config) New() (*gorm.DB, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("postgres: connection string is empty")
	}

	db, err := gorm.Open(postgres.Open(c.ConnectionString), &gorm.Config{
		Logger: logger.New(gormWriter{}, logger.Config{
			SlowThreshold:             time.Duration(c.SlowQuery) * time.Millisecond,
			LogLevel:                  gormLevel(c.LogLevel),
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		}),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(c.ConnMaxLifetime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

func (c *Config) MustNew() *gorm.DB {
	db, err := c.New()
	if err != nil {
		panic(err)
	}

	return db
}

func gormLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	}
	return logger.Warn
}

// gormWriter routes gorm's log lines into zerolog.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	logx.Debug().Str("component", "gorm").Msgf(format, args...)
}
