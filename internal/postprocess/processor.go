package postprocess

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"forager/internal/config"
	"forager/internal/evidence"
	"forager/internal/logging"
	"forager/internal/services"
	"forager/internal/stage"
)

// Chain returns the post-processors enabled in cfg, in declared order.
func Chain(cfg *config.Config) []stage.Unit {
	var units []stage.Unit
	for _, name := range config.DefaultPostProcessors() {
		if !cfg.PostProcessorEnabled(name) {
			continue
		}
		if unit, err := New(name, cfg); err == nil {
			units = append(units, unit)
		}
	}
	return units
}

// New builds the named post-processor.
func New(name string, cfg *config.Config) (stage.Unit, error) {
	switch name {
	case config.PostProcessorIPAddress:
		return NewIPAddress(DefaultTables()), nil
	case config.PostProcessorUserAccount:
		return NewUserAccount(DefaultTables()), nil
	case config.PostProcessorSearchedText:
		return NewSearchedText(DefaultTables()), nil
	case config.PostProcessorKFFAlert:
		return NewKFFAlert(cfg.KFF), nil
	}
	return nil, services.Wrap(services.ErrConfiguration, name, "build post-processor", "unknown post-processor", nil)
}

type base struct {
	name   string
	logger *slog.Logger

	mu      sync.Mutex
	read    int
	derived int
	failed  int
	ignored int
}

func (b *base) Name() string { return b.name }

func (b *base) SetLogger(logger *slog.Logger) { b.logger = logger }

func (b *base) log() *slog.Logger {
	if b.logger == nil {
		b.logger = logging.NewNop()
	}
	return b.logger
}

// Status implements stage.StatusReporter.
func (b *base) Status() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := fmt.Sprintf("%d read, %d derived", b.read, b.derived)
	if b.ignored > 0 {
		s += fmt.Sprintf(", %d unreadable", b.ignored)
	}
	if b.failed > 0 {
		s += fmt.Sprintf(", %d failed", b.failed)
	}
	return s
}

func (b *base) count(read, derived, failed, ignored int) {
	b.mu.Lock()
	b.read += read
	b.derived += derived
	b.failed += failed
	b.ignored += ignored
	b.mu.Unlock()
}

// Failed returns how many source records could not be derived.
func (b *base) Failed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failed
}

// deriver reads every record of one evidence type and derives records of
// another.
type deriver struct {
	base
	source string
	derive func(src *evidence.Record) ([]*evidence.Record, error)
}

// Run implements stage.Unit.
func (d *deriver) Run(ctx context.Context, item evidence.Item) error {
	sources, err := item.Evidences(ctx, d.source)
	if err != nil {
		return services.Wrap(services.ErrTransient, d.name, "read evidence", "reading "+d.source+" records failed", err)
	}
	var out []*evidence.Record
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if unreadable(src) {
			d.count(1, 0, 0, 1)
			continue
		}
		derived, err := d.deriveOne(src)
		if err != nil {
			d.count(1, 0, 1, 0)
			d.log().Warn("source record skipped",
				logging.String(logging.FieldEvidenceType, src.Type),
				logging.Int64("evidence_id", src.ID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "derive_failed"),
			)
			continue
		}
		d.count(1, len(derived), 0, 0)
		out = append(out, derived...)
	}
	if len(out) == 0 {
		return nil
	}
	err = stage.WithTx(ctx, item, func(tx evidence.Tx) error {
		for _, rec := range out {
			if err := tx.Add(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, d.name, "write evidence", fmt.Sprintf("storing %d records failed", len(out)), err)
	}
	return nil
}

func (d *deriver) deriveOne(src *evidence.Record) (out []*evidence.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("derive panicked: %v", r)
		}
	}()
	return d.derive(src)
}

// unreadable reports source records whose values cannot be interpreted,
// such as cookies whose value is still encrypted.
func unreadable(src *evidence.Record) bool {
	return src.Type == evidence.TypeCookie && src.Bool("is_encrypted")
}

// provenance points dst back at src and copies the named source fields.
func provenance(dst, src *evidence.Record, fields ...string) {
	dst.Metadata.Set("source.evidence_type", src.Type)
	dst.Metadata.Set("source.evidence_id", src.ID)
	for _, f := range fields {
		if v := src.String(f); v != "" {
			dst.Metadata.Set("source."+f, v)
		}
	}
}

// setAll builds a record from attrs, leaving out empty values.
func setAll(evidenceType string, attrs map[string]any) (*evidence.Record, error) {
	rec, err := evidence.NewRecord(evidenceType)
	if err != nil {
		return nil, err
	}
	for name, v := range attrs {
		if s, ok := v.(string); ok && s == "" {
			delete(attrs, name)
		}
	}
	if err := rec.SetAll(attrs); err != nil {
		return nil, err
	}
	return rec, nil
}
