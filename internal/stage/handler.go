package stage

import (
	"context"
	"log/slog"

	"forager/internal/evidence"
)

// Unit is one step of an extraction run: an ant of the loading phase or a
// post-processor.
type Unit interface {
	Name() string
	Run(ctx context.Context, item evidence.Item) error
}

// LoggerAware units receive the run-scoped logger before Run.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// StatusReporter units describe their progress while running. The pipeline
// only reads the detail for display.
type StatusReporter interface {
	Status() string
}

// HealthChecker units depend on an external resource and can report whether
// it is usable.
type HealthChecker interface {
	HealthCheck(context.Context) Health
}
