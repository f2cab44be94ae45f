package stageexec

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"forager/internal/evidence"
	"forager/internal/services"
	"forager/internal/testsupport"
)

type fakeUnit struct {
	name   string
	err    error
	panics bool
	logger *slog.Logger
	ran    bool
}

func (f *fakeUnit) Name() string             { return f.name }
func (f *fakeUnit) SetLogger(l *slog.Logger) { f.logger = l }

func (f *fakeUnit) Run(ctx context.Context, _ evidence.Item) error {
	f.ran = true
	if f.panics {
		panic("decoder exploded")
	}
	if unit, ok := services.UnitFromContext(ctx); !ok || unit != f.name {
		return errors.New("unit missing from context")
	}
	return f.err
}

func newItem(t *testing.T) evidence.Item {
	t.Helper()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	return testsupport.NewItem(t, store, "laptop", evidence.Datasource{})
}

func TestRunSuccess(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	unit := &fakeUnit{name: "skype-calls"}

	res := Run(context.Background(), Options{Logger: logger, Unit: unit, Item: newItem(t), Phase: "loading"})
	if res.Err != nil {
		t.Fatalf("Run: %v", res.Err)
	}
	if !unit.ran || unit.logger == nil {
		t.Fatal("unit should run with an injected logger")
	}
	out := buf.String()
	for _, want := range []string{`"unit_start"`, `"unit_complete"`, `"ant":"skype-calls"`, `"phase":"loading"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestRunFailureIsReturned(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	cause := services.Wrap(services.ErrFormat, "emule-shared-files", "decode", "known.met is truncated", nil)

	res := Run(context.Background(), Options{Logger: logger, Unit: &fakeUnit{name: "emule-shared-files", err: cause}, Item: newItem(t)})
	if !errors.Is(res.Err, services.ErrFormat) {
		t.Fatalf("expected format error, got %v", res.Err)
	}
	if !strings.Contains(buf.String(), "known.met is truncated") {
		t.Fatalf("failure message not logged:\n%s", buf.String())
	}
}

func TestRunRecoversPanic(t *testing.T) {
	res := Run(context.Background(), Options{Unit: &fakeUnit{name: "broken", panics: true}, Item: newItem(t)})
	if res.Err == nil || !strings.Contains(res.Err.Error(), "decoder exploded") {
		t.Fatalf("expected panic converted to error, got %v", res.Err)
	}
}

func TestRunRequiresUnitAndItem(t *testing.T) {
	if res := Run(context.Background(), Options{}); res.Err == nil {
		t.Fatal("expected error without unit")
	}
	if res := Run(context.Background(), Options{Unit: &fakeUnit{name: "x"}}); res.Err == nil {
		t.Fatal("expected error without item")
	}
}
