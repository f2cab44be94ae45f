package chromium

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"forager/internal/casedb"
)

// webkitUnixOffset is the distance in microseconds between the Chromium
// epoch (1601-01-01 UTC) and the Unix epoch.
const webkitUnixOffset = 11644473600 * 1_000_000

// WebKitTime converts a Chromium timestamp. Zero and negative values map to
// the zero time.
func WebKitTime(micros int64) time.Time {
	if micros <= 0 {
		return time.Time{}
	}
	return time.UnixMicro(micros - webkitUnixOffset).UTC()
}

func open(path string) (*sql.DB, error) {
	db, err := casedb.OpenReadOnly(path)
	if err != nil {
		return nil, fmt.Errorf("open chromium database: %w", err)
	}
	return db, nil
}

// columns returns the lowercase column names of table, or nil when the
// table does not exist.
func columns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()

	var cols map[string]bool
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   sql.NullString
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan %s column: %w", table, err)
		}
		if cols == nil {
			cols = make(map[string]bool)
		}
		cols[strings.ToLower(name)] = true
	}
	return cols, rows.Err()
}
