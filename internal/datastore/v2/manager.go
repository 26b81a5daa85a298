// Package v2 opens and migrates the entity store. Supported backends are
// SQLite, MySQL and PostgreSQL.
package v2

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/errors"
)

// DefaultSQLiteFile is used when Config.Path is empty.
const DefaultSQLiteFile = "sentinel.db"

// Manager owns a database connection.
type Manager interface {
	DB() *gorm.DB
	// Initialize creates or migrates the schema.
	Initialize() error
	Close() error
	Dialect() string
}

// Config configures a Manager.
type Config struct {
	// DataDir holds the SQLite file when Path is not absolute.
	DataDir string
	Path    string
	DSN     string
	Debug   bool
}

type gormManager struct {
	db      *gorm.DB
	dialect string
}

func gormConfig(debug bool) *gorm.Config {
	level := gorm_logger.Silent
	if debug {
		level = gorm_logger.Info
	}
	return &gorm.Config{Logger: gorm_logger.Default.LogMode(level)}
}

// NewSQLiteManager opens a SQLite database file.
func NewSQLiteManager(cfg Config) (Manager, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultSQLiteFile
	}
	if !filepath.IsAbs(path) && cfg.DataDir != "" {
		path = filepath.Join(cfg.DataDir, path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storeError(err, "sqlite", "create_data_dir")
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000"), gormConfig(cfg.Debug))
	if err != nil {
		return nil, storeError(err, "sqlite", "open")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, storeError(err, "sqlite", "pool")
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)
	return &gormManager{db: db, dialect: "sqlite"}, nil
}

// NewMySQLManager connects to MySQL using cfg.DSN.
func NewMySQLManager(cfg Config) (Manager, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), gormConfig(cfg.Debug))
	if err != nil {
		return nil, storeError(err, "mysql", "open")
	}
	return &gormManager{db: db, dialect: "mysql"}, nil
}

// NewPostgresManager connects to PostgreSQL using cfg.DSN.
func NewPostgresManager(cfg Config) (Manager, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), gormConfig(cfg.Debug))
	if err != nil {
		return nil, storeError(err, "postgres", "open")
	}
	return &gormManager{db: db, dialect: "postgres"}, nil
}

// NewManager opens the backend named by dbType.
func NewManager(dbType string, cfg Config) (Manager, error) {
	switch dbType {
	case "sqlite", "":
		return NewSQLiteManager(cfg)
	case "mysql":
		return NewMySQLManager(cfg)
	case "postgres":
		return NewPostgresManager(cfg)
	default:
		return nil, errors.Newf("unsupported database type %q", dbType).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func (m *gormManager) DB() *gorm.DB    { return m.db }
func (m *gormManager) Dialect() string { return m.dialect }

// Initialize migrates every entity table.
func (m *gormManager) Initialize() error {
	if err := m.db.AutoMigrate(entities.All()...); err != nil {
		return storeError(fmt.Errorf("failed to migrate schema: %w", err), m.dialect, "migrate")
	}
	return nil
}

// Close closes the underlying connection pool.
func (m *gormManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func storeError(err error, dialect, op string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("dialect", dialect).
		Context("operation", op).
		Build()
}
