package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/mysql/*.sql migrations/postgres/*.sql migrations/sqlite/*.sql
var embedMigrations embed.FS

// migrationDir maps a dialect onto its embedded migration directory and
// goose dialect name.
func migrationDir(d Dialect) (dir, gooseDialect string, err error) {
	switch d {
	case MySQL:
		return "migrations/mysql", "mysql", nil
	case Postgres:
		return "migrations/postgres", "postgres", nil
	case SQLite:
		return "migrations/sqlite", "sqlite3", nil
	}
	return "", "", fmt.Errorf("no migrations for dialect %q", d)
}

// Migrate applies all pending goose migrations for the DB's dialect.
// Running it on an up-to-date schema is a no-op.
func (d *DB) Migrate() error {
	return RunMigrations(d.DB, d.Dialect)
}

// RunMigrations executes all pending goose migrations against db.
func RunMigrations(db *sql.DB, d Dialect) error {
	dir, dialect, err := migrationDir(d)
	if err != nil {
		return err
	}

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
