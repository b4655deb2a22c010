package replay

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-ledger/internal/ledger"
	"github.com/angelmondragon/packfinderz-ledger/pkg/db/models"
	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
	"github.com/angelmondragon/packfinderz-ledger/pkg/logger"
	"github.com/angelmondragon/packfinderz-ledger/pkg/metrics"
)

var errDryRun = errors.New("dry run: rolling back")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// EventReader yields ledger events in seq order.
type EventReader interface {
	ReadEvents(ctx context.Context, window ledger.Window) iter.Seq2[models.LedgerEvent, error]
}

// ReaderFactory returns a reader bound to tx, or to the base connection when tx is nil.
type ReaderFactory func(tx *gorm.DB) EventReader

// StoreFactory returns a live store bound to tx, or to the base connection when tx is nil.
type StoreFactory func(tx *gorm.DB) LiveStore

// LedgerReaders adapts a ledger.Reader to a ReaderFactory.
func LedgerReaders(reader *ledger.Reader) ReaderFactory {
	return func(tx *gorm.DB) EventReader {
		if tx == nil {
			return reader
		}
		return reader.WithTx(tx)
	}
}

// EngineParams configure the replay engine.
type EngineParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Readers ReaderFactory
	Stores  StoreFactory
	Policy  enums.ReservedPolicy
	// Workers above one shard the fold by entity.
	Workers int
	// Timeout bounds a whole run, including the rebuild transaction. Zero disables it.
	Timeout time.Duration
	Metrics *metrics.ReconcileMetrics
}

// Engine runs the single replay pipeline in one of the VERIFY, REBUILD or INCREMENTAL modes.
type Engine struct {
	logg    *logger.Logger
	db      txRunner
	readers ReaderFactory
	stores  StoreFactory
	policy  enums.ReservedPolicy
	workers int
	timeout time.Duration
	metrics *metrics.ReconcileMetrics
	now     func() time.Time
}

// Request selects what a run does.
type Request struct {
	Mode   enums.ReplayMode
	Window ledger.Window
	// DryRun executes a writing mode inside its transaction and rolls it back.
	DryRun bool
}

// Result summarizes a run. Violations lists the differences observed before any write.
// EventsApplied counts every event folded, which for a windowed run is all history up to
// Window.To; EventsInWindow counts only those at or after Window.From.
type Result struct {
	Mode           enums.ReplayMode `json:"mode"`
	DryRun         bool             `json:"dryRun"`
	EventsApplied  int              `json:"eventsApplied"`
	EventsInWindow int              `json:"eventsInWindow"`
	LastSeq        int64            `json:"lastSeq"`
	Violations     []Violation      `json:"violations"`
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Readers == nil {
		return nil, fmt.Errorf("ledger reader factory required")
	}
	if params.Stores == nil {
		return nil, fmt.Errorf("live store factory required")
	}
	policy := params.Policy
	if policy == "" {
		policy = enums.ReservedPolicyLenient
	}
	if !policy.IsValid() {
		return nil, fmt.Errorf("invalid reserved policy %q", policy)
	}
	return &Engine{
		logg:    params.Logger,
		db:      params.DB,
		readers: params.Readers,
		stores:  params.Stores,
		policy:  policy,
		workers: params.Workers,
		timeout: params.Timeout,
		metrics: params.Metrics,
		now:     time.Now,
	}, nil
}

// Run executes one replay. VERIFY never writes. REBUILD and INCREMENTAL run in a single
// transaction that is rolled back on any error, on ctx cancellation, or for a dry run.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	if !req.Mode.IsValid() {
		return nil, fmt.Errorf("invalid replay mode %q", req.Mode)
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	ctx = e.logg.WithReplayMode(ctx, string(req.Mode))
	start := e.now()

	var (
		result *Result
		err    error
	)
	if req.Mode.Writes() {
		result, err = e.write(ctx, req)
	} else {
		result, err = e.verify(ctx, req)
	}
	if err != nil {
		e.logg.Error(ctx, "replay failed", err)
		return nil, err
	}

	e.metrics.ObserveReplay(string(req.Mode), result.EventsApplied, e.now().Sub(start))
	logCtx := e.logg.WithFields(ctx, map[string]any{
		"events_applied":   result.EventsApplied,
		"events_in_window": result.EventsInWindow,
		"last_seq":         result.LastSeq,
		"violations":       len(result.Violations),
		"dry_run":          result.DryRun,
	})
	e.logg.Info(logCtx, "replay complete")
	return result, nil
}

func (e *Engine) verify(ctx context.Context, req Request) (*Result, error) {
	snap, err := e.fold(ctx, e.readers(nil), req.Window)
	if err != nil {
		return nil, err
	}
	live, err := loadLive(ctx, e.stores(nil))
	if err != nil {
		return nil, err
	}
	return &Result{
		Mode:           req.Mode,
		EventsApplied:  snap.EventsApplied,
		EventsInWindow: snap.EventsInWindow,
		LastSeq:        snap.LastSeq,
		Violations:     Compare(snap, live, scopeFor(req.Window), e.now()),
	}, nil
}

func (e *Engine) write(ctx context.Context, req Request) (*Result, error) {
	var result *Result
	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		snap, err := e.fold(ctx, e.readers(tx), req.Window)
		if err != nil {
			return err
		}
		store := e.stores(tx)
		live, err := loadLive(ctx, store)
		if err != nil {
			return err
		}
		violations := Compare(snap, live, scopeFor(req.Window), e.now())
		if err := rebuild(ctx, store, req.Mode, snap); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		result = &Result{
			Mode:           req.Mode,
			DryRun:         req.DryRun,
			EventsApplied:  snap.EventsApplied,
			EventsInWindow: snap.EventsInWindow,
			LastSeq:        snap.LastSeq,
			Violations:     violations,
		}
		if req.DryRun {
			return errDryRun
		}
		return nil
	})
	if errors.Is(err, errDryRun) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) fold(ctx context.Context, reader EventReader, window ledger.Window) (*Snapshot, error) {
	opts := Options{Policy: e.policy, TouchedFrom: window.From}
	return FoldSharded(ctx, reader.ReadEvents(ctx, window.UpTo()), e.workers, opts)
}

func scopeFor(window ledger.Window) Scope {
	return Scope{Windowed: !window.IsZero()}
}
