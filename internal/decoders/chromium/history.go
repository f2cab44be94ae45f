package chromium

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Visit is one visit to a URL. Databases without a visits table yield one
// Visit per URL stamped with its last visit time.
type Visit struct {
	URL        string
	Title      string
	Time       time.Time
	VisitCount int
	Typed      bool
}

// ReadHistory returns the browsing history of the database at path in
// visit order.
func ReadHistory(ctx context.Context, path string) ([]Visit, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	urlCols, err := columns(ctx, db, "urls")
	if err != nil {
		return nil, err
	}
	if urlCols == nil {
		return nil, fmt.Errorf("%s: no urls table", path)
	}
	visitCols, err := columns(ctx, db, "visits")
	if err != nil {
		return nil, err
	}

	query := `SELECT u.url, u.title, u.last_visit_time, u.visit_count, u.typed_count
		FROM urls u ORDER BY u.last_visit_time, u.id`
	if visitCols != nil {
		query = `SELECT u.url, u.title, v.visit_time, u.visit_count, u.typed_count
			FROM visits v JOIN urls u ON u.id = v.url ORDER BY v.visit_time, v.id`
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Visit
	for rows.Next() {
		var (
			url, title         sql.NullString
			when, count, typed sql.NullInt64
		)
		if err := rows.Scan(&url, &title, &when, &count, &typed); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, Visit{
			URL:        url.String,
			Title:      title.String,
			Time:       WebKitTime(when.Int64),
			VisitCount: int(count.Int64),
			Typed:      typed.Int64 > 0,
		})
	}
	return out, rows.Err()
}
