package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"forager/internal/evidence"
	"forager/internal/logging"
	"forager/internal/services"
	"forager/internal/stage"
)

// Options controls the execution of one unit.
type Options struct {
	Logger *slog.Logger
	Unit   stage.Unit
	Item   evidence.Item
	Phase  string
}

// Result describes a finished unit.
type Result struct {
	Unit     string
	Duration time.Duration
	Err      error
}

// Run executes one unit with a unit-scoped context and logger. The error is
// logged and returned; whether it ends the run is the caller's decision.
func Run(ctx context.Context, opts Options) Result {
	if opts.Unit == nil {
		return Result{Err: errors.New("extraction unit unavailable")}
	}
	name := opts.Unit.Name()
	if opts.Item == nil {
		return Result{Unit: name, Err: fmt.Errorf("%s: case item is required", name)}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	unitCtx := services.WithUnit(services.WithPhase(ctx, opts.Phase), name)
	unitLogger := logging.WithContext(unitCtx, logger)
	if aware, ok := opts.Unit.(stage.LoggerAware); ok {
		aware.SetLogger(unitLogger)
	}

	start := time.Now()
	unitLogger.Info("unit started", logging.String(logging.FieldEventType, "unit_start"))

	err := runGuarded(unitCtx, opts.Unit, opts.Item)
	elapsed := time.Since(start)
	if err != nil {
		details := services.Details(err)
		message := strings.TrimSpace(details.Message)
		if message == "" {
			message = strings.TrimSpace(err.Error())
		}
		unitLogger.Error(
			"unit failed",
			logging.String(logging.FieldEventType, "unit_failure"),
			logging.String("error_kind", details.Kind),
			logging.String("error_message", message),
			logging.Duration("unit_duration", elapsed),
			logging.Error(err),
		)
		return Result{Unit: name, Duration: elapsed, Err: err}
	}

	unitLogger.Info(
		"unit completed",
		logging.String(logging.FieldEventType, "unit_complete"),
		logging.Duration("unit_duration", elapsed),
	)
	return Result{Unit: name, Duration: elapsed}
}

// runGuarded converts a panic inside a unit into an error so one broken
// decoder cannot take the process down.
func runGuarded(ctx context.Context, unit stage.Unit, item evidence.Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", unit.Name(), r)
		}
	}()
	return unit.Run(ctx, item)
}
