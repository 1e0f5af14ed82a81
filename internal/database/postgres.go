package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	dbdriver "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	src "github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// migrateInstance 是 *migrate.Migrate 中我們用到的部分，方便測試替換
type migrateInstance interface {
	Up() error
	Down() error
}

var (
	pgxpoolParseConfig     = pgxpool.ParseConfig
	pgxpoolNew             = pgxpool.NewWithConfig
	sqlOpenDB              = sql.Open
	postgresWithInstanceFn = postgres.WithInstance
	iofsNewFn              = iofs.New
	migrateNewWithInstance = func(sourceName string, sourceDriver src.Driver, databaseName string, databaseDriver dbdriver.Driver) (migrateInstance, error) {
		m, err := migrate.NewWithInstance(sourceName, sourceDriver, databaseName, databaseDriver)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
)

// NewPgxPool 建立連線池；timeout > 0 時同時限制連線、單一語句與鎖等待時間，
// 讓任何儲存操作都不會無限期卡住
func NewPgxPool(ctx context.Context, url string, timeout time.Duration) (DB, error) {
	cfg, err := pgxpoolParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if timeout > 0 {
		ms := strconv.FormatInt(timeout.Milliseconds(), 10)
		cfg.ConnConfig.ConnectTimeout = timeout
		cfg.ConnConfig.RuntimeParams["statement_timeout"] = ms
		cfg.ConnConfig.RuntimeParams["lock_timeout"] = ms
	}
	pool, err := pgxpoolNew(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

func newMigrator(sqlDB *sql.DB) (migrateInstance, error) {
	driver, err := postgresWithInstanceFn(sqlDB, &postgres.Config{})
	if err != nil {
		return nil, err
	}
	sourceDriver, err := iofsNewFn(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	return migrateNewWithInstance("iofs", sourceDriver, "postgres", driver)
}

// RunMigrations 嵌入並執行 SQL migration (up all)
func RunMigrations(dbURL string) error {
	sqlDB, err := sqlOpenDB("pgx", dbURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	m, err := newMigrator(sqlDB)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// RollbackAll 退回所有 migration (down to version 0)
func RollbackAll(dbURL string) error {
	sqlDB, err := sqlOpenDB("pgx", dbURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	m, err := newMigrator(sqlDB)
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
