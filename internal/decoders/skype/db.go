package skype

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"forager/internal/casedb"
	"forager/internal/logging"
)

// TestedSchemaVersion is the newest main.db schema version the queries have
// been checked against. Newer profiles are read on a best-effort basis.
const TestedSchemaVersion = 282

// DB is an open main.db.
type DB struct {
	db      *sql.DB
	path    string
	logger  *slog.Logger
	tables  map[string]bool
	version int
}

// Open opens the profile database at path read-only.
func Open(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	sqlDB, err := casedb.OpenReadOnly(path)
	if err != nil {
		return nil, fmt.Errorf("open skype database: %w", err)
	}
	d := &DB{db: sqlDB, path: path, logger: logger}
	if err := d.loadTables(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if !d.tables["messages"] && !d.tables["accounts"] {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%s: not a skype profile database", path)
	}
	d.version = d.readSchemaVersion(ctx)
	if d.version > TestedSchemaVersion {
		logger.Warn("skype schema version newer than tested; reading best effort",
			logging.Int("schema_version", d.version),
			logging.Int("tested_version", TestedSchemaVersion),
			logging.String("path", path),
		)
	}
	return d, nil
}

// Close releases the database handle.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// SchemaVersion returns the value recorded in DbMeta, or 0 when absent.
func (d *DB) SchemaVersion() int { return d.version }

func (d *DB) loadTables(ctx context.Context) error {
	rows, err := d.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return fmt.Errorf("list skype tables: %w", err)
	}
	defer rows.Close()

	d.tables = make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan table name: %w", err)
		}
		d.tables[strings.ToLower(name)] = true
	}
	return rows.Err()
}

func (d *DB) has(table string) bool {
	if d.tables[strings.ToLower(table)] {
		return true
	}
	d.logger.Debug("skype table missing", logging.String("table", table), logging.String("path", d.path))
	return false
}

func (d *DB) readSchemaVersion(ctx context.Context) int {
	if !d.tables["dbmeta"] {
		return 0
	}
	var raw sql.NullString
	err := d.db.QueryRowContext(ctx, `SELECT value FROM DbMeta WHERE key = 'SchemaVersion'`).Scan(&raw)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			d.logger.Debug("read skype schema version failed", logging.Error(err))
		}
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw.String))
	if err != nil {
		return 0
	}
	return v
}

func unixTime(v sql.NullInt64) time.Time {
	if !v.Valid || v.Int64 <= 0 {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0).UTC()
}

// splitList splits the space or comma separated lists Skype stores in text
// columns.
func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == ';' })
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func appendNonEmpty(list []string, values ...string) []string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list
}
