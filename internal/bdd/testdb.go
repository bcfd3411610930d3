package bdd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chirino/messaging-service/internal/plugin/store/sqlite"
	"github.com/chirino/messaging-service/internal/testutil/cucumber"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/mattn/go-sqlite3"
)

// Child tables first so foreign keys never block the cleanup.
var messagingTables = []string{
	"messages",
	"conversation_participants",
	"conversations",
	"users",
}

// PostgresTestDB implements cucumber.TestDB for Postgres.
type PostgresTestDB struct {
	DBURL string
}

var _ cucumber.TestDB = (*PostgresTestDB)(nil)

func (p *PostgresTestDB) ClearAll(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, p.DBURL)
	if err != nil {
		return fmt.Errorf("cleanup: failed to connect: %w", err)
	}
	defer conn.Close(ctx)

	for _, table := range messagingTables {
		if _, err := conn.Exec(ctx, "DELETE FROM "+table); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
				continue
			}
			return fmt.Errorf("cleanup: failed to delete from %s: %w", table, err)
		}
	}
	return nil
}

func (p *PostgresTestDB) ExecSQL(ctx context.Context, query string) ([]map[string]interface{}, error) {
	conn, err := pgx.Connect(ctx, p.DBURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("SQL query failed: %w", err)
	}
	defer rows.Close()

	var result []map[string]interface{}
	fieldDescs := rows.FieldDescriptions()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]interface{}, len(values))
		for i, fd := range fieldDescs {
			row[fd.Name] = normalizeValue(values[i])
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// SQLiteTestDB implements cucumber.TestDB for a SQLite database file.
type SQLiteTestDB struct {
	DBURL string
}

var _ cucumber.TestDB = (*SQLiteTestDB)(nil)

func (d *SQLiteTestDB) open() (*sql.DB, error) {
	return sql.Open("sqlite3", sqlite.DSN(d.DBURL))
}

func (d *SQLiteTestDB) ClearAll(ctx context.Context) error {
	db, err := d.open()
	if err != nil {
		return fmt.Errorf("cleanup: failed to open: %w", err)
	}
	defer db.Close()

	for _, table := range messagingTables {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("cleanup: failed to delete from %s: %w", table, err)
		}
	}
	return nil
}

func (d *SQLiteTestDB) ExecSQL(ctx context.Context, query string) ([]map[string]interface{}, error) {
	db, err := d.open()
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("SQL query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var result []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, name := range columns {
			row[name] = normalizeValue(values[i])
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// normalizeValue makes driver values comparable across backends.
func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(t)
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", t[0:4], t[4:6], t[6:8], t[8:10], t[10:16])
	default:
		return v
	}
}
