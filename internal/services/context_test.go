package services_test

import (
	"context"
	"testing"

	"forager/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithItemID(ctx, 42)
	ctx = services.WithPhase(ctx, "loading")
	ctx = services.WithUnit(ctx, "chromium-cookies")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ItemIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected item id: %v %v", id, ok)
	}
	if phase, ok := services.PhaseFromContext(ctx); !ok || phase != "loading" {
		t.Fatalf("unexpected phase: %v %v", phase, ok)
	}
	if unit, ok := services.UnitFromContext(ctx); !ok || unit != "chromium-cookies" {
		t.Fatalf("unexpected unit: %v %v", unit, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithPhase(ctx, "")
	ctx = services.WithUnit(ctx, "")
	if _, ok := services.PhaseFromContext(ctx); ok {
		t.Fatal("expected no phase value")
	}
	if _, ok := services.UnitFromContext(ctx); ok {
		t.Fatal("expected no unit value")
	}
}
