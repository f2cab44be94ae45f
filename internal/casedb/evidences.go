package casedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"forager/internal/evidence"
)

// Filter narrows evidence listings. Zero fields match everything.
type Filter struct {
	ItemID int64
	Type   string
	Tag    string
	Limit  int
}

const evidenceColumns = "e.id, e.item_id, e.type, e.attrs_json, e.metadata_json, e.created_at"

func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.ItemID != 0 {
		clauses = append(clauses, "e.item_id = ?")
		args = append(args, f.ItemID)
	}
	if f.Type != "" {
		clauses = append(clauses, "e.type = ?")
		args = append(args, f.Type)
	}
	if f.Tag != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM evidence_tags t WHERE t.evidence_id = e.id AND t.tag = ?)")
		args = append(args, f.Tag)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListEvidences returns the records matching f in insertion order.
func (s *Store) ListEvidences(ctx context.Context, f Filter) ([]*evidence.Record, error) {
	where, args := f.where()
	query := `SELECT ` + evidenceColumns + ` FROM evidences e` + where + ` ORDER BY e.id`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list evidences: %w", err)
	}
	defer rows.Close()

	var (
		records []*evidence.Record
		byID    = make(map[int64]*evidence.Record)
	)
	for rows.Next() {
		r, err := scanEvidence(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
		byID[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadTags(ctx, byID); err != nil {
		return nil, err
	}
	return records, nil
}

// GetEvidence fetches one record by identifier. It returns nil when none exists.
func (s *Store) GetEvidence(ctx context.Context, id int64) (*evidence.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+evidenceColumns+` FROM evidences e WHERE e.id = ?`, id)
	r, err := scanEvidence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadTags(ctx, map[int64]*evidence.Record{r.ID: r}); err != nil {
		return nil, err
	}
	return r, nil
}

// CountByType returns the number of records per evidence type for an item.
func (s *Store) CountByType(ctx context.Context, itemID int64) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(1) FROM evidences WHERE item_id = ? GROUP BY type`, itemID)
	if err != nil {
		return nil, fmt.Errorf("count evidences: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			typ   string
			count int
		)
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, err
		}
		counts[typ] = count
	}
	return counts, rows.Err()
}

func (s *Store) loadTags(ctx context.Context, byID map[int64]*evidence.Record) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]any, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	const batch = 500
	for start := 0; start < len(ids); start += batch {
		end := min(start+batch, len(ids))
		chunk := ids[start:end]
		rows, err := s.db.QueryContext(
			ctx,
			`SELECT evidence_id, tag FROM evidence_tags WHERE evidence_id IN (`+makePlaceholders(len(chunk))+`)`,
			chunk...,
		)
		if err != nil {
			return fmt.Errorf("load tags: %w", err)
		}
		for rows.Next() {
			var (
				id  int64
				tag string
			)
			if err := rows.Scan(&id, &tag); err != nil {
				rows.Close()
				return err
			}
			if r := byID[id]; r != nil {
				r.AddTag(tag)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func scanEvidence(scanner interface{ Scan(dest ...any) error }) (*evidence.Record, error) {
	var (
		id         int64
		itemID     int64
		typ        string
		attrsJSON  string
		metaJSON   string
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&id, &itemID, &typ, &attrsJSON, &metaJSON, &createdRaw); err != nil {
		return nil, err
	}
	r, err := evidence.NewRecord(typ)
	if err != nil {
		return nil, fmt.Errorf("evidence %d: %w", id, err)
	}
	r.ID = id
	r.ItemID = itemID
	if err := r.UnmarshalAttrs([]byte(attrsJSON)); err != nil {
		return nil, fmt.Errorf("evidence %d: %w", id, err)
	}
	if err := r.Metadata.UnmarshalJSON([]byte(metaJSON)); err != nil {
		return nil, fmt.Errorf("evidence %d: %w", id, err)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		r.CreatedAt = created
	}
	return r, nil
}
