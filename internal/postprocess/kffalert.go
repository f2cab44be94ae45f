package postprocess

import (
	"context"
	"fmt"
	"os"
	"strings"

	"forager/internal/config"
	"forager/internal/evidence"
	"forager/internal/kff"
	"forager/internal/logging"
	"forager/internal/services"
	"forager/internal/stage"
)

// Tags set on records whose hash is on the alert list.
const (
	TagAlert    = "alert"
	TagAlertKFF = "alert.kff"
)

// KFFAlert tags records carrying a hash whose known-file-filter status is
// an alert status. It is a no-op when KFF is disabled.
type KFFAlert struct {
	base
	cfg config.KFF
}

// NewKFFAlert builds the alert tagger. The hash list is read on Run.
func NewKFFAlert(cfg config.KFF) *KFFAlert {
	return &KFFAlert{base: base{name: config.PostProcessorKFFAlert}, cfg: cfg}
}

// HealthCheck implements stage.HealthChecker.
func (k *KFFAlert) HealthCheck(context.Context) stage.Health {
	if !k.cfg.Enabled {
		return stage.Healthy(k.name)
	}
	info, err := os.Stat(k.cfg.Path)
	if err != nil {
		return stage.Unhealthy(k.name, fmt.Sprintf("kff list unavailable: %v", err))
	}
	if info.IsDir() {
		return stage.Unhealthy(k.name, k.cfg.Path+" is a directory")
	}
	return stage.Healthy(k.name)
}

// Run implements stage.Unit.
func (k *KFFAlert) Run(ctx context.Context, item evidence.Item) error {
	if !k.cfg.Enabled {
		k.log().Debug("kff alert tagging disabled")
		return nil
	}
	list, err := kff.Load(k.cfg.Path, k.log())
	if err != nil {
		return services.Wrap(services.ErrConfiguration, k.name, "load kff list", k.cfg.Path, err)
	}
	alert := make(map[string]bool, len(k.cfg.AlertStatuses))
	for _, s := range k.cfg.AlertStatuses {
		alert[strings.ToUpper(strings.TrimSpace(s))] = true
	}

	var tagged []*evidence.Record
	for _, evidenceType := range evidence.Types() {
		schema, _ := evidence.Lookup(evidenceType)
		if len(schema.Hashes) == 0 {
			continue
		}
		records, err := item.Evidences(ctx, evidenceType)
		if err != nil {
			return services.Wrap(services.ErrTransient, k.name, "read evidence", "reading "+evidenceType+" records failed", err)
		}
		for _, rec := range records {
			k.count(1, 0, 0, 0)
			if onAlert(list, schema, rec, alert) {
				rec.AddTag(TagAlert)
				rec.AddTag(TagAlertKFF)
				tagged = append(tagged, rec)
			}
		}
	}
	k.log().Info("kff alert tagging finished",
		logging.Int("hashes", list.Len()),
		logging.Int("tagged", len(tagged)),
	)
	if len(tagged) == 0 {
		return nil
	}
	err = stage.WithTx(ctx, item, func(tx evidence.Tx) error {
		for _, rec := range tagged {
			if err := tx.SetTags(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, k.name, "write tags", fmt.Sprintf("tagging %d records failed", len(tagged)), err)
	}
	k.count(0, len(tagged), 0, 0)
	return nil
}

// onAlert reports whether any hash of rec has an alert status on the list.
func onAlert(list *kff.List, schema evidence.Schema, rec *evidence.Record, alert map[string]bool) bool {
	for _, h := range schema.Hashes {
		value := rec.String(h.Attr)
		if value == "" {
			continue
		}
		if status, ok := list.Lookup(h.HashType, value); ok && alert[status] {
			return true
		}
	}
	return false
}
