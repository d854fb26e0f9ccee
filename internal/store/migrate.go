package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// Schema version tracking:
// 0 - Legacy schema (students without age/course/semester, users without must_change_password)
// 1 - Full column set
const currentSchemaVersion = 1

// columnSpec is a column that older databases may lack.
type columnSpec struct {
	table  string
	column string
	decl   string
}

// additiveColumns lists every column added after the first released schema.
var additiveColumns = []columnSpec{
	{table: "students", column: "age", decl: "INTEGER"},
	{table: "students", column: "course", decl: "TEXT"},
	{table: "students", column: "semester", decl: "TEXT"},
	{table: "users", column: "must_change_password", decl: "INTEGER NOT NULL DEFAULT 0"},
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the columns a legacy database is missing.
// Fresh databases already have them from schema.sql, which makes this a no-op.
func migrateToV1(db *sql.DB) error {
	for _, c := range additiveColumns {
		if err := ensureColumn(db, c); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	return nil
}

// ensureColumn adds c to its table unless a column of that name exists.
// Column names compare case-insensitively, as SQLite does.
func ensureColumn(db *sql.DB, c columnSpec) error {
	exists, err := hasColumn(db, c.table, c.column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.column, c.decl)
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("add column %s.%s: %w", c.table, c.column, err)
	}
	return nil
}

func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false, fmt.Errorf("scan table info %s: %w", table, err)
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterate table info %s: %w", table, err)
	}
	return false, nil
}
