// Package migrations holds the table definitions for Postgres and ClickHouse.
// Every statement is idempotent so Apply can run on each start.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"sort"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"costguardian/pkg/errors"
	"costguardian/pkg/logger"
)

//go:embed postgres/*.sql clickhouse/*.sql
var files embed.FS

// Execer is satisfied by *sqlx.DB, *sqlx.Tx and *sql.DB
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Migration is one embedded SQL file
type Migration struct {
	Name       string
	Statements []string
}

// Postgres returns the Postgres migrations in apply order
func Postgres() ([]Migration, error) {
	return load("postgres")
}

// ClickHouse returns the ClickHouse migrations in apply order
func ClickHouse() ([]Migration, error) {
	return load("clickhouse")
}

func load(dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s migrations", dir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(files, dir+"/"+name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read migration %s", name)
		}
		out = append(out, Migration{Name: name, Statements: splitStatements(string(data))})
	}
	return out, nil
}

// splitStatements splits on ';'. The embedded files contain no
// semicolons inside literals or function bodies.
func splitStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ApplyPostgres runs every Postgres migration in order
func ApplyPostgres(ctx context.Context, db Execer) error {
	migrations, err := Postgres()
	if err != nil {
		return err
	}

	log := logger.Get().With("component", "migrations", "store", "postgres")
	for _, m := range migrations {
		for _, stmt := range m.Statements {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return errors.Wrapf(err, "postgres migration %s failed", m.Name)
			}
		}
		log.Debugw("Migration applied", "name", m.Name)
	}
	return nil
}

// ApplyClickHouse runs every ClickHouse migration in order.
// The native protocol accepts one statement per Exec.
func ApplyClickHouse(ctx context.Context, conn driver.Conn) error {
	migrations, err := ClickHouse()
	if err != nil {
		return err
	}

	log := logger.Get().With("component", "migrations", "store", "clickhouse")
	for _, m := range migrations {
		for _, stmt := range m.Statements {
			if err := conn.Exec(ctx, stmt); err != nil {
				return errors.Wrapf(err, "clickhouse migration %s failed", m.Name)
			}
		}
		log.Debugw("Migration applied", "name", m.Name)
	}
	return nil
}
