package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"forager/internal/ants"
	"forager/internal/config"
	"forager/internal/datasource"
	"forager/internal/evidence"
	"forager/internal/logging"
	"forager/internal/postprocess"
	"forager/internal/services"
	"forager/internal/stage"
	"forager/internal/stageexec"
)

var (
	// ErrRunInProgress is returned when another run holds the item's lock.
	ErrRunInProgress = errors.New("extraction already running for this item")
	// ErrAlreadyRun is returned by a second Run on the same Pipeline.
	ErrAlreadyRun = errors.New("pipeline has already run")
)

// LoaderFactory builds the loading units for a datasource.
type LoaderFactory func(ds evidence.Datasource, logger *slog.Logger) ([]stage.Unit, error)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithConfig derives the lock directory, report size limit and
// post-processor chain from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(p *Pipeline) { p.cfg = cfg }
}

// WithLockDir overrides the directory holding per-item lock files.
func WithLockDir(dir string) Option {
	return func(p *Pipeline) { p.lockDir = dir }
}

// WithLoaders replaces the loader family of a datasource kind.
func WithLoaders(kind evidence.DatasourceKind, factory LoaderFactory) Option {
	return func(p *Pipeline) { p.loaders[kind] = factory }
}

// WithPostProcessors replaces the post-processing chain.
func WithPostProcessors(units ...stage.Unit) Option {
	return func(p *Pipeline) {
		p.post = append([]stage.Unit(nil), units...)
		p.postSet = true
	}
}

// Pipeline performs one extraction run of one case item.
type Pipeline struct {
	item    evidence.Item
	cfg     *config.Config
	logger  *slog.Logger
	lockDir string
	loaders map[evidence.DatasourceKind]LoaderFactory
	post    []stage.Unit
	postSet bool
	now     func() time.Time

	mu      sync.Mutex
	started bool
	status  Status
	active  stage.Unit
}

// New returns a pipeline for item. Without WithConfig the repository
// defaults apply and no lock file is used unless WithLockDir is given.
func New(item evidence.Item, opts ...Option) *Pipeline {
	p := &Pipeline{
		item:    item,
		logger:  logging.NewNop(),
		loaders: make(map[evidence.DatasourceKind]LoaderFactory),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg == nil {
		cfg := config.Default()
		p.cfg = &cfg
	} else if p.lockDir == "" {
		p.lockDir = p.cfg.LockDir()
	}
	maxBytes := p.cfg.Extraction.MaxReportBytes
	if _, ok := p.loaders[evidence.DatasourceReport]; !ok {
		p.loaders[evidence.DatasourceReport] = func(ds evidence.Datasource, _ *slog.Logger) ([]stage.Unit, error) {
			return ants.ReportFamily(ds, maxBytes), nil
		}
	}
	if _, ok := p.loaders[evidence.DatasourceVolume]; !ok {
		p.loaders[evidence.DatasourceVolume] = volumeLoaders
	}
	if !p.postSet {
		p.post = postprocess.Chain(p.cfg)
	}
	p.logger = logging.NewComponentLogger(p.logger, "extraction")
	p.status = Status{Phase: PhaseIdle}
	return p
}

func volumeLoaders(ds evidence.Datasource, logger *slog.Logger) ([]stage.Unit, error) {
	vol, err := datasource.OpenVolume(ds.Path, logger)
	if err != nil {
		return nil, err
	}
	return ants.VolumeFamily(vol), nil
}

// Run performs the extraction. It may be called once per Pipeline.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyRun
	}
	p.started = true
	p.mu.Unlock()

	runID := uuid.NewString()
	ctx = services.WithRequestID(services.WithItemID(ctx, p.item.ID()), runID)
	logger := logging.WithContext(ctx, p.logger)

	unlock, err := p.lock()
	if err != nil {
		return err
	}
	defer unlock()

	marker := evidence.RunMarker{ID: runID, Status: evidence.RunRunning, StartedAt: p.now().UTC()}
	if err := p.item.SetRunMarker(ctx, marker); err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	p.update(func(s *Status) { s.RunID = runID })
	logger.Info("extraction started",
		logging.String("item", p.item.Name()),
		logging.String(logging.FieldEventType, "run_start"),
	)

	err = stage.WithTx(ctx, p.item, func(tx evidence.Tx) error { return tx.RemoveEvidences(ctx) })
	if err != nil {
		return p.fail(ctx, logger, marker, fmt.Errorf("delete previous evidence: %w", err))
	}

	if err := p.load(ctx, logger); err != nil {
		return p.fail(ctx, logger, marker, err)
	}

	warnings, err := p.postProcess(ctx)
	if err != nil {
		return p.fail(ctx, logger, marker, err)
	}

	marker.Status = evidence.RunCompleted
	marker.FinishedAt = p.now().UTC()
	marker.Warnings = warnings
	if err := p.item.SetRunMarker(ctx, marker); err != nil {
		return p.fail(ctx, logger, marker, fmt.Errorf("record run completion: %w", err))
	}
	p.update(func(s *Status) {
		s.Phase = PhaseDone
		s.Unit, s.UnitIndex, s.UnitCount = "", 0, 0
	})
	p.setActive(nil)
	logger.Info("extraction completed",
		logging.Int("warnings", warnings),
		logging.Duration("run_duration", marker.FinishedAt.Sub(marker.StartedAt)),
		logging.String(logging.FieldEventType, "run_complete"),
	)
	return nil
}

// load runs the loader family of the item's datasource. Any unit failure
// is fatal.
func (p *Pipeline) load(ctx context.Context, logger *slog.Logger) error {
	p.update(func(s *Status) { s.Phase = PhaseLoading })
	ds, ok, err := p.item.Datasource(ctx)
	if err != nil {
		return fmt.Errorf("read datasource: %w", err)
	}
	factory := p.loaders[ds.Kind]
	if !ok || factory == nil {
		logger.Info("no loadable datasource; nothing to load",
			logging.String("datasource", ds.String()),
			logging.String(logging.FieldEventType, "load_skipped"),
		)
		return nil
	}
	units, err := factory(ds, logger)
	if err != nil {
		return err
	}
	for i, unit := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.enter(PhaseLoading, unit, i, len(units))
		res := stageexec.Run(ctx, stageexec.Options{Logger: p.logger, Unit: unit, Item: p.item, Phase: PhaseLoading.String()})
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

// postProcess runs every post-processor and returns how many failed. Only
// cancellation ends the phase early.
func (p *Pipeline) postProcess(ctx context.Context) (int, error) {
	p.update(func(s *Status) { s.Phase = PhasePostProcessing })
	warnings := 0
	for i, unit := range p.post {
		if err := ctx.Err(); err != nil {
			return warnings, err
		}
		p.enter(PhasePostProcessing, unit, i, len(p.post))
		res := stageexec.Run(ctx, stageexec.Options{Logger: p.logger, Unit: unit, Item: p.item, Phase: PhasePostProcessing.String()})
		if res.Err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return warnings, ctxErr
			}
			warnings++
			p.update(func(s *Status) { s.Warnings = warnings })
		}
	}
	return warnings, nil
}

// fail purges the item's evidence and records the failed run. Cleanup runs
// even when ctx was cancelled.
func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, marker evidence.RunMarker, cause error) error {
	cleanupCtx := context.WithoutCancel(ctx)
	if err := stage.WithTx(cleanupCtx, p.item, func(tx evidence.Tx) error { return tx.RemoveEvidences(cleanupCtx) }); err != nil {
		logger.Error("evidence purge failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "purge_failed"),
			logging.String(logging.FieldErrorHint, "run reset and run the item again"),
		)
	}
	marker.Status = evidence.RunFailed
	marker.FinishedAt = p.now().UTC()
	marker.Error = cause.Error()
	if err := p.item.SetRunMarker(cleanupCtx, marker); err != nil {
		logger.Error("recording run failure failed", logging.Error(err))
	}
	p.update(func(s *Status) {
		s.Phase = PhaseDone
		s.Failed = true
		s.Unit, s.UnitIndex, s.UnitCount = "", 0, 0
	})
	p.setActive(nil)
	logger.Error("extraction failed",
		logging.String("error_kind", services.Details(cause).Kind),
		logging.Error(cause),
		logging.String(logging.FieldEventType, "run_failed"),
	)
	return cause
}

// Reset clears the item's run marker. It fails with ErrRunInProgress while
// a run holds the item's lock.
func (p *Pipeline) Reset(ctx context.Context) error {
	unlock, err := p.lock()
	if err != nil {
		return err
	}
	defer unlock()
	if err := p.item.ClearRunMarker(ctx); err != nil {
		return fmt.Errorf("clear run marker: %w", err)
	}
	return nil
}

// Health reports the readiness of units that depend on external resources.
func (p *Pipeline) Health(ctx context.Context) map[string]stage.Health {
	out := make(map[string]stage.Health)
	for _, unit := range p.post {
		if hc, ok := unit.(stage.HealthChecker); ok {
			out[unit.Name()] = hc.HealthCheck(ctx)
		}
	}
	return out
}

// lock takes the per-item lock file without blocking.
func (p *Pipeline) lock() (func(), error) {
	if p.lockDir == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(p.lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	fl := flock.New(filepath.Join(p.lockDir, fmt.Sprintf("item-%d.lock", p.item.ID())))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire item lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	return func() { _ = fl.Unlock() }, nil
}
