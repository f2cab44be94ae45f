package casedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"forager/internal/evidence"
)

// Tx is an item-scoped transaction. It implements evidence.Tx.
type Tx struct {
	tx     *sql.Tx
	itemID int64
	done   bool
}

var _ evidence.Tx = (*Tx)(nil)

func (t *Tx) check() error {
	if t.done {
		return evidence.ErrTxDone
	}
	return nil
}

func (t *Tx) RemoveEvidences(ctx context.Context) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM evidences WHERE item_id = ?`, t.itemID); err != nil {
		return fmt.Errorf("remove evidences: %w", err)
	}
	return nil
}

func (t *Tx) NewEvidence(evidenceType string) (*evidence.Record, error) {
	r, err := evidence.NewRecord(evidenceType)
	if err != nil {
		return nil, err
	}
	r.ItemID = t.itemID
	return r, nil
}

func (t *Tx) Add(ctx context.Context, r *evidence.Record) error {
	if err := t.check(); err != nil {
		return err
	}
	if r == nil {
		return errors.New("add evidence: record is nil")
	}
	attrs, err := r.MarshalAttrs()
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	if r.Metadata == nil {
		r.Metadata = evidence.NewMetadata()
	}
	meta, err := json.Marshal(r.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	res, err := t.tx.ExecContext(
		ctx,
		`INSERT INTO evidences (item_id, type, attrs_json, metadata_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.itemID,
		r.Type,
		string(attrs),
		string(meta),
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	r.ID = id
	r.ItemID = t.itemID
	return t.writeTags(ctx, r)
}

func (t *Tx) SetTags(ctx context.Context, r *evidence.Record) error {
	if err := t.check(); err != nil {
		return err
	}
	if r == nil || r.ID == 0 {
		return errors.New("set tags: record has not been stored")
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM evidence_tags WHERE evidence_id = ?`, r.ID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	return t.writeTags(ctx, r)
}

func (t *Tx) writeTags(ctx context.Context, r *evidence.Record) error {
	for _, tag := range r.Tags() {
		if _, err := t.tx.ExecContext(
			ctx,
			`INSERT OR IGNORE INTO evidence_tags (evidence_id, tag)
             SELECT id, ? FROM evidences WHERE id = ? AND item_id = ?`,
			tag, r.ID, t.itemID,
		); err != nil {
			return fmt.Errorf("insert tag %q: %w", tag, err)
		}
	}
	return nil
}

func (t *Tx) Commit() error {
	if err := t.check(); err != nil {
		return err
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
