package postgres

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SQLitePrefix selects the embedded sqlite driver instead of Postgres, e.g.
// "sqlite://:memory:" or "sqlite:///var/lib/roomsaga/inventory.db".
const SQLitePrefix = "sqlite://"

type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// GormConfig is shared by the Postgres connection and the sqlite databases
// used in tests so both translate driver errors the same way.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         newGormLogger(log.New(os.Stdout, "\r\n", log.LstdFlags)),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// newGormLogger reports slow queries and SQL errors. Lookups that find no row
// are a normal outcome for the repositories and are not logged.
func newGormLogger(w gormlogger.Writer) gormlogger.Interface {
	return gormlogger.New(w, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func NewGormDB(opts Options) (*gorm.DB, error) {
	dialector := postgres.Open(opts.DSN)
	if path, ok := strings.CutPrefix(opts.DSN, SQLitePrefix); ok {
		dialector = sqlite.Open(path)
		// sqlite allows one writer; an in-memory database also lives on a single connection.
		opts.MaxOpenConns = 1
	}

	db, err := gorm.Open(dialector, GormConfig())
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db.DB(): %w", err)
	}

	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	return db, nil
}
