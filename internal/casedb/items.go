package casedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"forager/internal/evidence"
	"forager/internal/services"
)

// ItemInfo is the stored row of a case item.
type ItemInfo struct {
	ID         int64
	Name       string
	Datasource evidence.Datasource
	CreatedAt  time.Time
	Run        evidence.RunMarker
}

// ErrDuplicateItem reports an item name that is already taken.
var ErrDuplicateItem = errors.New("item name already exists")

// AddItem registers a case item. ds may be the zero value for an item whose
// datasource is not known yet.
func (s *Store) AddItem(ctx context.Context, name string, ds evidence.Datasource) (*ItemInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "casedb", "add item", "item name is required", nil)
	}
	if existing, err := s.FindItemByName(ctx, name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateItem, name)
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO items (name, datasource_kind, datasource_path, created_at) VALUES (?, ?, ?, ?)`,
		name,
		nullableString(string(ds.Kind)),
		nullableString(ds.Path),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetItem(ctx, id)
}

// GetItem fetches an item by identifier. It returns nil when none exists.
func (s *Store) GetItem(ctx context.Context, id int64) (*ItemInfo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	info, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return info, nil
}

// FindItemByName fetches an item by name. It returns nil when none exists.
func (s *Store) FindItemByName(ctx context.Context, name string) (*ItemInfo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE name = ?`, strings.TrimSpace(name))
	info, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find item: %w", err)
	}
	return info, nil
}

// ListItems returns every item ordered by identifier.
func (s *Store) ListItems(ctx context.Context) ([]*ItemInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*ItemInfo
	for rows.Next() {
		info, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, info)
	}
	return items, rows.Err()
}

// SetDatasource replaces the datasource recorded for an item.
func (s *Store) SetDatasource(ctx context.Context, id int64, ds evidence.Datasource) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE items SET datasource_kind = ?, datasource_path = ? WHERE id = ?`,
		nullableString(string(ds.Kind)),
		nullableString(ds.Path),
		id,
	)
	if err != nil {
		return fmt.Errorf("set datasource: %w", err)
	}
	return expectOneRow(res, id)
}

// Item returns the evidence.Item handle for an existing item.
func (s *Store) Item(ctx context.Context, id int64) (*Item, error) {
	info, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, services.Wrap(services.ErrNotFound, "casedb", "open item", fmt.Sprintf("item %d does not exist", id), nil)
	}
	return &Item{store: s, id: info.ID, name: info.Name}, nil
}

func (s *Store) setRunMarker(ctx context.Context, id int64, marker evidence.RunMarker) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE items SET run_id = ?, run_status = ?, run_started_at = ?, run_finished_at = ?, run_warnings = ?, run_error = ?
         WHERE id = ?`,
		nullableString(marker.ID),
		nullableString(string(marker.Status)),
		nullableTime(marker.StartedAt),
		nullableTime(marker.FinishedAt),
		marker.Warnings,
		nullableString(marker.Error),
		id,
	)
	if err != nil {
		return fmt.Errorf("set run marker: %w", err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return services.Wrap(services.ErrNotFound, "casedb", "update item", fmt.Sprintf("item %d does not exist", id), nil)
	}
	return nil
}

// Item is a handle on one case item. It implements evidence.Item.
type Item struct {
	store *Store
	id    int64
	name  string
}

var _ evidence.Item = (*Item)(nil)

func (i *Item) ID() int64 { return i.id }

func (i *Item) Name() string { return i.name }

func (i *Item) Datasource(ctx context.Context) (evidence.Datasource, bool, error) {
	info, err := i.store.GetItem(ctx, i.id)
	if err != nil {
		return evidence.Datasource{}, false, err
	}
	if info == nil {
		return evidence.Datasource{}, false, services.Wrap(services.ErrNotFound, "casedb", "datasource", fmt.Sprintf("item %d does not exist", i.id), nil)
	}
	if info.Datasource.Kind == "" || info.Datasource.Path == "" {
		return evidence.Datasource{}, false, nil
	}
	return info.Datasource, true, nil
}

func (i *Item) HasDatasource(ctx context.Context) (bool, error) {
	_, ok, err := i.Datasource(ctx)
	return ok, err
}

func (i *Item) RunMarker(ctx context.Context) (evidence.RunMarker, error) {
	info, err := i.store.GetItem(ctx, i.id)
	if err != nil {
		return evidence.RunMarker{}, err
	}
	if info == nil {
		return evidence.RunMarker{}, services.Wrap(services.ErrNotFound, "casedb", "run marker", fmt.Sprintf("item %d does not exist", i.id), nil)
	}
	return info.Run, nil
}

func (i *Item) SetRunMarker(ctx context.Context, marker evidence.RunMarker) error {
	return i.store.setRunMarker(ctx, i.id, marker)
}

func (i *Item) ClearRunMarker(ctx context.Context) error {
	return i.store.setRunMarker(ctx, i.id, evidence.RunMarker{})
}

func (i *Item) Evidences(ctx context.Context, evidenceType string) ([]*evidence.Record, error) {
	return i.store.ListEvidences(ctx, Filter{ItemID: i.id, Type: evidenceType})
}

func (i *Item) Begin(ctx context.Context) (evidence.Tx, error) {
	ctx = ensureContext(ctx)
	var sqlTx *sql.Tx
	err := retryOnBusy(ctx, func() error {
		var beginErr error
		sqlTx, beginErr = i.store.db.BeginTx(ctx, nil)
		return beginErr
	})
	if err != nil {
		return nil, fmt.Errorf("begin item transaction: %w", err)
	}
	return &Tx{tx: sqlTx, itemID: i.id}, nil
}
