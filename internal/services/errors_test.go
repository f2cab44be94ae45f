package services_test

import (
	"errors"
	"strings"
	"testing"

	"forager/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrDatasource, "skype-messages", "open", "main.db unreadable", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrDatasource) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"skype-messages", "open", "main.db unreadable"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestDetails(t *testing.T) {
	err := services.Wrap(services.ErrFormat, "emule-shared-files", "decode", "bad header", nil)
	details := services.Details(err)
	if details.Kind != services.ErrFormat.Error() {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
	if details.Unit != "emule-shared-files" || details.Message != "bad header" {
		t.Fatalf("unexpected details %#v", details)
	}

	plain := services.Details(errors.New("plain failure"))
	if plain.Message != "plain failure" || plain.Kind != services.ErrTransient.Error() {
		t.Fatalf("unexpected plain details %#v", plain)
	}

	if got := services.Details(nil); got != (services.ErrorDetails{}) {
		t.Fatalf("expected zero details for nil, got %#v", got)
	}
}
