package ants

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"forager/internal/datasource"
	"forager/internal/evidence"
	"forager/internal/logging"
	"forager/internal/markup"
	"forager/internal/services"
	"forager/internal/stage"
)

// Ant names, in the order the volume family runs them.
const (
	ChromiumCookies  = "chromium-cookies"
	ChromiumHistory  = "chromium-history"
	SkypeAccounts    = "skype-accounts"
	SkypeContacts    = "skype-contacts"
	SkypeMessages    = "skype-messages"
	SkypeCalls       = "skype-calls"
	SkypeTransfers   = "skype-transfers"
	EmuleAccounts    = "emule-accounts"
	EmuleSharedFiles = "emule-shared-files"
	EmuleSearches    = "emule-searches"
	WirelessNetworks = "wireless-networks"
	Report           = "report"
)

// headDumpBytes is how much of an undecodable file is hex dumped.
const headDumpBytes = 64

// VolumeFamily returns the ants that load a volume datasource, in run order.
func VolumeFamily(vol *datasource.Volume) []stage.Unit {
	return []stage.Unit{
		newChromiumCookies(vol),
		newChromiumHistory(vol),
		newSkypeAccounts(vol),
		newSkypeContacts(vol),
		newSkypeMessages(vol),
		newSkypeCalls(vol),
		newSkypeTransfers(vol),
		newEmuleAccounts(vol),
		newEmuleSharedFiles(vol),
		newEmuleSearches(vol),
		newWirelessNetworks(vol),
	}
}

// base carries the name, logger and progress counters every ant shares.
type base struct {
	name   string
	logger *slog.Logger

	mu      sync.Mutex
	detail  string
	files   int
	records int
	skipped int
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
	summary := fmt.Sprintf("%d files, %d records", b.files, b.records)
	if b.skipped > 0 {
		summary += fmt.Sprintf(", %d skipped", b.skipped)
	}
	if b.detail != "" {
		summary += " (" + b.detail + ")"
	}
	return summary
}

func (b *base) progress(detail string, files, records, skipped int) {
	b.mu.Lock()
	b.detail = detail
	b.files += files
	b.records += records
	b.skipped += skipped
	b.mu.Unlock()
}

// keep appends the built record, logging and counting a build failure.
func (b *base) keep(out []*evidence.Record, rb *recordBuilder) []*evidence.Record {
	rec, err := rb.build()
	if err != nil {
		b.progress("", 0, 0, 1)
		b.log().Warn("evidence record dropped",
			logging.String(logging.FieldEvidenceType, rb.evidenceType),
			logging.Error(err),
			logging.String(logging.FieldEventType, "record_build_failed"),
		)
		return out
	}
	return append(out, rec)
}

// write stores records in one transaction.
func (b *base) write(ctx context.Context, item evidence.Item, records []*evidence.Record) error {
	if len(records) == 0 {
		return nil
	}
	err := stage.WithTx(ctx, item, func(tx evidence.Tx) error {
		for _, rec := range records {
			if err := tx.Add(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, b.name, "write evidence", fmt.Sprintf("storing %d records failed", len(records)), err)
	}
	b.progress("", 0, len(records), 0)
	return nil
}

// volumeAnt is an ant that loads one kind of file from a volume.
type volumeAnt struct {
	base
	vol    *datasource.Volume
	match  func(datasource.Entry) bool
	decode func(ctx context.Context, e datasource.Entry) ([]*evidence.Record, error)
}

// Run implements stage.Unit.
func (a *volumeAnt) Run(ctx context.Context, item evidence.Item) error {
	entries, err := a.vol.Find(ctx, a.match)
	if err != nil {
		return err
	}
	a.log().Debug("artifact files found", logging.Int("files", len(entries)))

	var records []*evidence.Record
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.progress(e.Path, 1, 0, 0)
		recs, err := a.decode(ctx, e)
		if err != nil {
			a.skip(e, err, len(recs))
		}
		records = append(records, recs...)
	}
	a.progress("", 0, 0, 0)
	return a.write(ctx, item, records)
}

// skip logs a file that failed to decode. kept is the number of records
// recovered from it before the failure.
func (a *volumeAnt) skip(e datasource.Entry, err error, kept int) {
	a.progress(e.Path, 0, 0, 1)
	attrs := []logging.Attr{
		logging.String("path", e.Path),
		logging.Int64("size", e.Size),
		logging.Int("records_kept", kept),
		logging.Error(err),
		logging.String(logging.FieldEventType, "artifact_decode_failed"),
	}
	if head := a.head(e); len(head) > 0 {
		attrs = append(attrs, logging.HexDump("head", head, headDumpBytes))
	}
	a.log().Warn("artifact file skipped", logging.Args(attrs...)...)
}

func (a *volumeAnt) head(e datasource.Entry) []byte {
	f, err := a.vol.Open(e.Path)
	if err != nil {
		return nil
	}
	defer f.Close()
	buf := make([]byte, headDumpBytes)
	n, _ := io.ReadFull(f, buf)
	return buf[:n]
}

// recordBuilder sets attributes and metadata on a new record, remembering
// the first error. Empty values are left unset.
type recordBuilder struct {
	evidenceType string
	rec          *evidence.Record
	err          error
}

func newRecord(evidenceType string) *recordBuilder {
	rec, err := evidence.NewRecord(evidenceType)
	return &recordBuilder{evidenceType: evidenceType, rec: rec, err: err}
}

func (b *recordBuilder) set(name string, value any) *recordBuilder {
	if b.err != nil || isEmpty(value) {
		return b
	}
	b.err = b.rec.Set(name, value)
	return b
}

func (b *recordBuilder) meta(key string, value any) *recordBuilder {
	if b.err != nil || isEmpty(value) {
		return b
	}
	if t, ok := value.(time.Time); ok {
		value = t.UTC().Format(time.RFC3339)
	}
	b.rec.Metadata.Set(key, value)
	return b
}

func (b *recordBuilder) hasMeta(key string) bool {
	if b.rec == nil {
		return false
	}
	_, ok := b.rec.Metadata.Get(key)
	return ok
}

func (b *recordBuilder) metadata(m *evidence.Metadata) *recordBuilder {
	if b.err == nil && m != nil {
		b.rec.Metadata.Merge(m)
	}
	return b
}

func (b *recordBuilder) build() (*evidence.Record, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.rec, nil
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case time.Time:
		return v.IsZero()
	case []string:
		return len(v) == 0
	case []markup.Element:
		return len(v) == 0
	}
	return false
}

// party is a participant of a message or call, folded into a label.
type party struct {
	ID    string
	Name  string
	Owner bool
}

// label renders "Name (id)", or whichever of the two is known.
func (p party) label() string {
	id, name := strings.TrimSpace(p.ID), strings.TrimSpace(p.Name)
	switch {
	case id != "" && name != "" && name != id:
		return name + " (" + id + ")"
	case id != "":
		return id
	}
	return name
}

func labels(parties []party) []string {
	var out []string
	for _, p := range parties {
		if l := p.label(); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func direction(outgoing bool) string {
	if outgoing {
		return "outgoing"
	}
	return "incoming"
}

type timeSource interface {
	Time(name string) (time.Time, bool)
}

// timeField returns the parsed timestamp or the zero time.
func timeField(m timeSource, name string) time.Time {
	t, _ := m.Time(name)
	return t
}
