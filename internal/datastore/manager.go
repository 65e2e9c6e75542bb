// Package datastore opens the pet emotion database and runs its schema
// migrations. Queries live in the repository subpackage.
package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/petmood/internal/conf"
	"github.com/tphakala/petmood/internal/datastore/entities"
	"github.com/tphakala/petmood/internal/logger"
	"github.com/tphakala/petmood/internal/observability/metrics"
)

// Database types accepted in configuration.
const (
	TypeSQLite = "sqlite"
	TypeMySQL  = "mysql"
)

const (
	sqliteBusyTimeoutMs = 5000

	mysqlMaxIdleConns    = 10
	mysqlMaxOpenConns    = 100
	mysqlConnMaxLifetime = time.Hour
)

// Manager owns the database connection.
type Manager interface {
	// Initialize creates or updates the schema.
	Initialize() error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location (file path for SQLite, host:port/db for MySQL).
	Path() string
	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
	// Close closes the database connection.
	Close() error
	// IsMySQL returns true if this is a MySQL manager.
	IsMySQL() bool
}

// Options carries the dependencies shared by both managers.
type Options struct {
	Logger        logger.Logger
	SlowThreshold time.Duration
	Metrics       *metrics.DatastoreMetrics
}

func (o Options) gormConfig() *gorm.Config {
	log := o.Logger
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil).Module("datastore")
	}
	return &gorm.Config{
		Logger:  logger.NewGormLoggerAdapter(log, o.SlowThreshold),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// Open creates the manager selected by settings.Type and initializes the
// schema.
func Open(settings *conf.DatabaseSettings, opts Options) (Manager, error) {
	if opts.SlowThreshold == 0 {
		opts.SlowThreshold = settings.SlowThreshold
	}

	var (
		m   Manager
		err error
	)
	switch settings.Type {
	case TypeMySQL:
		m, err = NewMySQLManager(&MySQLConfig{
			Host:     settings.MySQL.Host,
			Port:     settings.MySQL.Port,
			Username: settings.MySQL.Username,
			Password: settings.MySQL.Password,
			Database: settings.MySQL.Database,
		}, opts)
	case TypeSQLite, "":
		m, err = NewSQLiteManager(settings.SQLite.Path, opts)
	default:
		return nil, dbError(fmt.Errorf("unsupported database type %q", settings.Type), "open", "")
	}
	if err != nil {
		return nil, err
	}

	if err := m.Initialize(); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

// migrate runs AutoMigrate for every entity. Pets must exist before the
// history tables that reference them.
func migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&entities.User{},
		&entities.Pet{},
		&entities.CatEmotionHistory{},
		&entities.DogEmotionHistory{},
	)
	if err != nil {
		return dbError(err, "migrate", "high")
	}
	return nil
}

// SQLiteManager handles a SQLite database file.
type SQLiteManager struct {
	db      *gorm.DB
	dbPath  string
	metrics *metrics.DatastoreMetrics
}

// NewSQLiteManager opens (creating if needed) the database at path with WAL
// journaling, a busy timeout and foreign key enforcement.
func NewSQLiteManager(path string, opts Options) (*SQLiteManager, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, dbError(err, "open", "high", "path", path)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=ON", path, sqliteBusyTimeoutMs)

	db, err := gorm.Open(sqlite.Open(dsn), opts.gormConfig())
	if err != nil {
		return nil, dbError(err, "open", "high", "path", path)
	}

	return &SQLiteManager{
		db:      db,
		dbPath:  path,
		metrics: opts.Metrics,
	}, nil
}

// Initialize creates the schema.
func (m *SQLiteManager) Initialize() error {
	return migrate(m.db)
}

// DB returns the underlying GORM database.
func (m *SQLiteManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database file path.
func (m *SQLiteManager) Path() string {
	return m.dbPath
}

// Ping checks the connection and refreshes pool gauges.
func (m *SQLiteManager) Ping(ctx context.Context) error {
	return ping(ctx, m.db, m.metrics)
}

// Close closes the database connection.
func (m *SQLiteManager) Close() error {
	return closeDB(m.db)
}

// IsMySQL returns false for SQLite manager.
func (m *SQLiteManager) IsMySQL() bool {
	return false
}

// MySQLConfig holds MySQL connection parameters.
type MySQLConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// DSN returns the go-sql-driver DSN for cfg.
func (cfg *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}

// MySQLManager handles a MySQL database.
type MySQLManager struct {
	db       *gorm.DB
	location string // host:port/database for display
	metrics  *metrics.DatastoreMetrics
}

// NewMySQLManager connects to MySQL and configures the connection pool.
func NewMySQLManager(cfg *MySQLConfig, opts Options) (*MySQLManager, error) {
	location := fmt.Sprintf("%s:%s/%s", cfg.Host, cfg.Port, cfg.Database)

	db, err := gorm.Open(mysql.Open(cfg.DSN()), opts.gormConfig())
	if err != nil {
		return nil, dbError(err, "open", "high", "location", location)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, dbError(err, "open", "high", "location", location)
	}
	sqlDB.SetMaxIdleConns(mysqlMaxIdleConns)
	sqlDB.SetMaxOpenConns(mysqlMaxOpenConns)
	sqlDB.SetConnMaxLifetime(mysqlConnMaxLifetime)

	return &MySQLManager{
		db:       db,
		location: location,
		metrics:  opts.Metrics,
	}, nil
}

// Initialize creates the schema.
func (m *MySQLManager) Initialize() error {
	return migrate(m.db)
}

// DB returns the underlying GORM database.
func (m *MySQLManager) DB() *gorm.DB {
	return m.db
}

// Path returns host:port/database.
func (m *MySQLManager) Path() string {
	return m.location
}

// Ping checks the connection and refreshes pool gauges.
func (m *MySQLManager) Ping(ctx context.Context) error {
	return ping(ctx, m.db, m.metrics)
}

// Close closes the database connection.
func (m *MySQLManager) Close() error {
	return closeDB(m.db)
}

// IsMySQL returns true for MySQL manager.
func (m *MySQLManager) IsMySQL() bool {
	return true
}

func ping(ctx context.Context, db *gorm.DB, m *metrics.DatastoreMetrics) error {
	start := time.Now()
	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if m != nil {
		m.RecordDuration(metrics.OpPing, time.Since(start).Seconds())
		if err != nil {
			m.RecordOperation(metrics.OpPing, metrics.StatusError)
		} else {
			m.RecordOperation(metrics.OpPing, metrics.StatusSuccess)
			stats := sqlDB.Stats()
			m.UpdateConnectionMetrics(stats.OpenConnections, stats.InUse)
		}
	}
	if err != nil {
		return dbError(err, "ping", "")
	}
	return nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}
