package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type nopDriver struct{}

func (d nopDriver) Open(name string) (driver.Conn, error) {
	return nopConn{}, nil
}

type nopConn struct{}

func (nopConn) Prepare(query string) (driver.Stmt, error) { return nopStmt{}, nil }
func (nopConn) Close() error                              { return nil }
func (nopConn) Begin() (driver.Tx, error)                 { return nopTx{}, nil }
func (nopConn) Ping(ctx context.Context) error            { return nil }

type nopStmt struct{}

func (nopStmt) Close() error                                    { return nil }
func (nopStmt) NumInput() int                                   { return -1 }
func (nopStmt) Exec(args []driver.Value) (driver.Result, error) { return nopResult{}, nil }
func (nopStmt) Query(args []driver.Value) (driver.Rows, error)  { return nopRows{}, nil }

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

type nopResult struct{}

func (nopResult) LastInsertId() (int64, error) { return 0, nil }
func (nopResult) RowsAffected() (int64, error) { return 0, nil }

type nopRows struct{}

func (nopRows) Columns() []string              { return []string{} }
func (nopRows) Close() error                   { return nil }
func (nopRows) Next(dest []driver.Value) error { return driver.ErrBadConn }

var registerTestDriverOnce sync.Once

func withTestDriver(t *testing.T) *[]string {
	t.Helper()
	registerTestDriverOnce.Do(func() {
		sql.Register("dbtest", nopDriver{})
	})
	var opened []string
	prev := openDB
	openDB = func(name, dsn string) (*sql.DB, error) {
		opened = append(opened, name)
		return sql.Open("dbtest", dsn)
	}
	t.Cleanup(func() { openDB = prev })
	return &opened
}

func TestOptionsFromEnvAppliesOverrides(t *testing.T) {
	withTestDriver(t)

	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_MAX_IDLE_CONNS", "3")
	t.Setenv("DB_CONN_MAX_LIFETIME", "20m")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "45s")
	t.Setenv("DB_PING_TIMEOUT", "1s")

	opts := OptionsFromEnv(DefaultServerOptions())
	db, err := Connect(context.Background(), DriverPostgres, "ignored", opts)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()

	stats := db.Stats()
	if stats.MaxOpenConnections != 7 {
		t.Fatalf("expected MaxOpenConnections=7, got %d", stats.MaxOpenConnections)
	}
	if opts.MaxIdleConns != 3 {
		t.Fatalf("expected MaxIdleConns=3, got %d", opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime != 20*time.Minute {
		t.Fatalf("expected ConnMaxLifetime=20m, got %s", opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime != 45*time.Second {
		t.Fatalf("expected ConnMaxIdleTime=45s, got %s", opts.ConnMaxIdleTime)
	}
	if opts.PingTimeout != time.Second {
		t.Fatalf("expected PingTimeout=1s, got %s", opts.PingTimeout)
	}
}

func TestOptionsFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	t.Setenv("DB_PING_TIMEOUT", "soon")

	opts := OptionsFromEnv(DefaultServerOptions())
	if opts.MaxOpenConns != 10 {
		t.Fatalf("expected default MaxOpenConns, got %d", opts.MaxOpenConns)
	}
	if opts.PingTimeout != 5*time.Second {
		t.Fatalf("expected default PingTimeout, got %s", opts.PingTimeout)
	}
}

func TestConnectMapsDriverNames(t *testing.T) {
	opened := withTestDriver(t)

	pg, err := Connect(context.Background(), "", "ignored", DefaultServerOptions())
	if err != nil {
		t.Fatalf("Connect postgres: %v", err)
	}
	pg.Close()

	lite, err := Connect(context.Background(), DriverSQLite, "ignored", DefaultServerOptions())
	if err != nil {
		t.Fatalf("Connect sqlite: %v", err)
	}
	defer lite.Close()
	if got := lite.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("expected sqlite pool of 1, got %d", got)
	}

	if len(*opened) != 2 || (*opened)[0] != "pgx" || (*opened)[1] != "sqlite" {
		t.Fatalf("unexpected driver names: %v", *opened)
	}
}

func TestConnectRejectsBadInput(t *testing.T) {
	withTestDriver(t)

	if _, err := Connect(context.Background(), DriverPostgres, "  ", DefaultServerOptions()); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := Connect(context.Background(), "mysql", "ignored", DefaultServerOptions()); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestRunMigrationsSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tasks.db")
	database, err := Connect(ctx, DriverSQLite, "file:"+path, DefaultMigrateOptions())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer database.Close()

	if err := RunMigrations(ctx, database, DriverSQLite); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	// Applying twice is a no-op.
	if err := RunMigrations(ctx, database, DriverSQLite); err != nil {
		t.Fatalf("RunMigrations again: %v", err)
	}

	var n int
	if err := database.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		t.Fatalf("query tasks: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty tasks table, got %d rows", n)
	}
}

func TestRunMigrationsNilAndUnknownDriver(t *testing.T) {
	if err := RunMigrations(context.Background(), nil, DriverPostgres); err != nil {
		t.Fatalf("nil database should be a no-op: %v", err)
	}
	if _, _, err := migrationTarget("oracle"); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
