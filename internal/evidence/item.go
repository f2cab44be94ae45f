package evidence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DatasourceKind selects the loader family used for an item.
type DatasourceKind string

const (
	// DatasourceReport is a structured extraction report file.
	DatasourceReport DatasourceKind = "report"
	// DatasourceVolume is a raw volume exposed as a directory tree.
	DatasourceVolume DatasourceKind = "volume"
)

// Datasource is the source recorded for a case item.
type Datasource struct {
	Kind DatasourceKind
	Path string
}

// ParseDatasource parses the KIND:PATH form.
func ParseDatasource(value string) (Datasource, error) {
	kind, path, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || strings.TrimSpace(path) == "" {
		return Datasource{}, fmt.Errorf("datasource %q: expected KIND:PATH", value)
	}
	ds := Datasource{Kind: DatasourceKind(strings.ToLower(strings.TrimSpace(kind))), Path: strings.TrimSpace(path)}
	if !ds.Kind.Known() {
		return Datasource{}, fmt.Errorf("datasource %q: unknown kind %q", value, kind)
	}
	return ds, nil
}

// Known reports whether k names a supported loader family.
func (k DatasourceKind) Known() bool {
	return k == DatasourceReport || k == DatasourceVolume
}

func (d Datasource) String() string {
	if d.Kind == "" {
		return ""
	}
	return string(d.Kind) + ":" + d.Path
}

// RunStatus is the recorded state of an item's latest extraction run.
type RunStatus string

const (
	RunNone      RunStatus = ""
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunMarker describes the latest extraction run of an item.
type RunMarker struct {
	ID         string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt time.Time
	Warnings   int
	Error      string
}

// ErrTxDone is returned by operations on a committed or rolled back Tx.
var ErrTxDone = errors.New("transaction already finished")

// Item is the case item handle extraction units operate on.
type Item interface {
	ID() int64
	Name() string
	// Datasource returns the recorded datasource. ok is false when none is set.
	Datasource(ctx context.Context) (ds Datasource, ok bool, err error)
	HasDatasource(ctx context.Context) (bool, error)
	// Begin opens a fresh transaction scoped to this item.
	Begin(ctx context.Context) (Tx, error)
	// Evidences returns the persisted records of evidenceType in insertion order.
	Evidences(ctx context.Context, evidenceType string) ([]*Record, error)

	RunMarker(ctx context.Context) (RunMarker, error)
	SetRunMarker(ctx context.Context, marker RunMarker) error
	ClearRunMarker(ctx context.Context) error
}

// Tx groups the writes of one extraction unit. Rollback after Commit is a
// no-op.
type Tx interface {
	// RemoveEvidences deletes every record of the item.
	RemoveEvidences(ctx context.Context) error
	NewEvidence(evidenceType string) (*Record, error)
	// Add inserts r and assigns its ID.
	Add(ctx context.Context, r *Record) error
	// SetTags replaces the stored tags of an existing record with r.Tags().
	SetTags(ctx context.Context, r *Record) error
	Commit() error
	Rollback() error
}
