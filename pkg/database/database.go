package database

import (
	"fmt"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/unicef/etools-core/pkg/config"
)

// shared is the connection pool whose search_path is the shared schema. It
// serves the cross-workspace tables: users, organizations, workspaces, realms.
var (
	shared *gorm.DB

	mu    sync.Mutex
	pools = map[string]*gorm.DB{}
	dbCfg *config.DBConfig
)

// InitDB opens the shared connection pool. Tenant pools are built lazily by
// ForSchema on first use.
func InitDB(cfg *config.Config) error {
	db, err := open(cfg.DB.GetDSN(), &cfg.DB)
	if err != nil {
		return fmt.Errorf("connect to shared schema: %w", err)
	}
	mu.Lock()
	shared = db
	dbCfg = &cfg.DB
	mu.Unlock()
	return nil
}

// Shared returns the shared-schema pool.
func Shared() *gorm.DB {
	return shared
}

// ForSchema returns a pool whose search_path is pinned to the given tenant
// schema with the shared schema as fallback. Pools are cached per schema;
// workspaces are long-lived so the cache is never evicted.
func ForSchema(schema string) (*gorm.DB, error) {
	mu.Lock()
	defer mu.Unlock()
	if db, ok := pools[schema]; ok {
		return db, nil
	}
	if dbCfg == nil {
		return nil, fmt.Errorf("database is not initialized")
	}
	db, err := open(dbCfg.GetSchemaDSN(schema), dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to schema %q: %w", schema, err)
	}
	pools[schema] = db
	return db, nil
}

func open(dsn string, cfg *config.DBConfig) (*gorm.DB, error) {
	pgConfig := postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true, // Disables implicit prepared statement usage
	}

	db, err := gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Connection pool settings from config
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// MigrateShared runs migrations for the shared models against the shared pool.
func MigrateShared(models ...interface{}) error {
	if shared == nil {
		return fmt.Errorf("database is not initialized")
	}
	if err := shared.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to run shared migrations: %w", err)
	}
	return nil
}

// MigrateSchema runs migrations for the tenant models against one schema.
func MigrateSchema(schema string, models ...interface{}) error {
	db, err := ForSchema(schema)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to run migrations for schema %q: %w", schema, err)
	}
	return nil
}

// SetShared replaces the shared pool. Test hook.
func SetShared(db *gorm.DB) {
	mu.Lock()
	shared = db
	mu.Unlock()
}

// SetSchemaPool installs a pool for a schema. Test hook.
func SetSchemaPool(schema string, db *gorm.DB) {
	mu.Lock()
	pools[schema] = db
	mu.Unlock()
}
