package db

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

const (
	BackendSQLite   = "sqlite"
	BackendDuckDB   = "duckdb"
	BackendTurso    = "libsql"
	BackendPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(BackendTurso, sqlx.QUESTION)
	sqlx.BindDriver(BackendDuckDB, sqlx.QUESTION)
}

// Options carry backend-specific connection settings.
type Options struct {
	// AuthToken is appended to Turso URLs that don't already carry one.
	AuthToken string
}

// DetectBackend picks a backend from the shape of a DATABASE_URL.
func DetectBackend(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return BackendPostgres
	case strings.HasPrefix(lower, "libsql://"), strings.HasPrefix(lower, "https://"):
		return BackendTurso
	case strings.HasPrefix(lower, "duckdb://"), strings.HasSuffix(lower, ".duckdb"):
		return BackendDuckDB
	default:
		return BackendSQLite
	}
}

// Open connects to the backend named by dsn and makes sure the tables exist.
func Open(ctx context.Context, dsn string, opts Options) (Store, error) {
	var (
		store Store
		err   error
	)

	switch DetectBackend(dsn) {
	case BackendPostgres:
		store, err = NewPostgres(ctx, dsn)
	case BackendTurso:
		store, err = openSQL(ctx, BackendTurso, tursoDSN(dsn, opts.AuthToken))
	case BackendDuckDB:
		store, err = openSQL(ctx, BackendDuckDB, strings.TrimPrefix(dsn, "duckdb://"))
	default:
		store, err = openSQL(ctx, BackendSQLite, strings.TrimPrefix(dsn, "sqlite://"))
	}
	if err != nil {
		return nil, err
	}

	if err := store.CreateTables(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// OpenSQLite opens a SQLite file store directly.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	s, err := openSQL(ctx, BackendSQLite, path)
	if err != nil {
		return nil, err
	}
	if err := s.CreateTables(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func openSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", driver)
	}

	// Embedded engines take one writer at a time.
	if driver != BackendTurso {
		conn.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "failed to ping %s database", driver)
	}

	return newSQLStore(conn, driver), nil
}

func tursoDSN(dsn, authToken string) string {
	if authToken == "" || strings.Contains(dsn, "authToken=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "authToken=" + url.QueryEscape(authToken)
}
