package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFiles embed.FS

// RunMigrations applies the embedded SQL migrations for driver via goose.
// If database is nil, it's a no-op.
func RunMigrations(ctx context.Context, database *sql.DB, driver string) error {
	if database == nil {
		return nil
	}
	dialect, dir, err := migrationTarget(driver)
	if err != nil {
		return err
	}
	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, database, dir)
}

func migrationTarget(driver string) (dialect, dir string, err error) {
	switch driver {
	case "", DriverPostgres:
		return "postgres", "migrations/postgres", nil
	case DriverSQLite:
		return "sqlite3", "migrations/sqlite", nil
	default:
		return "", "", fmt.Errorf("no migrations for driver %q", driver)
	}
}
