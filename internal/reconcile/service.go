package reconcile

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/angelmondragon/packfinderz-ledger/internal/ledger"
	"github.com/angelmondragon/packfinderz-ledger/internal/reclaim"
	"github.com/angelmondragon/packfinderz-ledger/internal/replay"
	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-ledger/pkg/errors"
	"github.com/angelmondragon/packfinderz-ledger/pkg/logger"
	"github.com/angelmondragon/packfinderz-ledger/pkg/metrics"
)

// ColdStartConfirmation must be passed verbatim to ColdStart.
const ColdStartConfirmation = "REBUILD"

// Service is the admin contract over replay and reclaim.
type Service interface {
	Verify(ctx context.Context, window ledger.Window) (*VerifyReport, error)
	Heal(ctx context.Context, dryRun bool) (*HealReport, error)
	ColdStart(ctx context.Context, confirm string) (*replay.Result, error)
	ReclaimStaleOrders(ctx context.Context) (*reclaim.Summary, error)
	DetectDrift(ctx context.Context) (*DriftReport, error)
	AutoHeal(ctx context.Context) (*HealOutcome, error)
}

type replayRunner interface {
	Run(ctx context.Context, req replay.Request) (*replay.Result, error)
}

type reclaimRunner interface {
	Reclaim(ctx context.Context) (*reclaim.Summary, error)
}

// ServiceParams wire the reconcile service.
type ServiceParams struct {
	Logger    *logger.Logger
	Engine    replayRunner
	Reclaimer reclaimRunner
	Metrics   *metrics.ReconcileMetrics
}

type service struct {
	logg      *logger.Logger
	engine    replayRunner
	reclaimer reclaimRunner
	metrics   *metrics.ReconcileMetrics
}

func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("replay engine required")
	}
	if params.Reclaimer == nil {
		return nil, fmt.Errorf("reclaimer required")
	}
	return &service{
		logg:      params.Logger,
		engine:    params.Engine,
		reclaimer: params.Reclaimer,
		metrics:   params.Metrics,
	}, nil
}

func (s *service) Verify(ctx context.Context, window ledger.Window) (*VerifyReport, error) {
	result, err := s.engine.Run(ctx, replay.Request{Mode: enums.ReplayModeVerify, Window: window})
	if err != nil {
		return nil, mapError(err)
	}
	if window.IsZero() {
		s.metrics.SetDrift(countByEntity(result.Violations))
	}
	return newVerifyReport(result), nil
}

func (s *service) Heal(ctx context.Context, dryRun bool) (*HealReport, error) {
	result, err := s.engine.Run(ctx, replay.Request{Mode: enums.ReplayModeRebuild, DryRun: dryRun})
	if err != nil {
		return nil, mapError(err)
	}
	if !dryRun {
		s.metrics.SetDrift(countByEntity(unhealable(result.Violations)))
	}
	return &HealReport{
		DryRun:        result.DryRun,
		EventsApplied: result.EventsApplied,
		LastSeq:       result.LastSeq,
		Changes:       nonNil(result.Violations),
	}, nil
}

func (s *service) ColdStart(ctx context.Context, confirm string) (*replay.Result, error) {
	if confirm != ColdStartConfirmation {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cold start requires confirm=%q", ColdStartConfirmation))
	}
	s.logg.Warn(ctx, "cold start requested: rebuilding live state from the full ledger")
	result, err := s.engine.Run(ctx, replay.Request{Mode: enums.ReplayModeRebuild})
	if err != nil {
		return nil, mapError(err)
	}
	result.Violations = nonNil(result.Violations)
	return result, nil
}

func (s *service) ReclaimStaleOrders(ctx context.Context) (*reclaim.Summary, error) {
	summary, err := s.reclaimer.Reclaim(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return summary, nil
}

func (s *service) DetectDrift(ctx context.Context) (*DriftReport, error) {
	result, err := s.engine.Run(ctx, replay.Request{Mode: enums.ReplayModeVerify})
	if err != nil {
		return nil, mapError(err)
	}
	s.metrics.SetDrift(countByEntity(result.Violations))
	return &DriftReport{
		HasDrift:   len(result.Violations) > 0,
		Violations: nonNil(result.Violations),
	}, nil
}

// AutoHeal rebuilds only when DetectDrift finds something a rebuild can fix. Clean runs
// perform no writes. Fatal errors are returned, never folded into the outcome.
func (s *service) AutoHeal(ctx context.Context) (*HealOutcome, error) {
	drift, err := s.DetectDrift(ctx)
	if err != nil {
		s.metrics.IncHealOutcome("fatal")
		return nil, err
	}
	outcome := &HealOutcome{
		Status:     HealStatusClean,
		Healed:     []replay.Violation{},
		Unhealable: unhealable(drift.Violations),
	}
	if !drift.HasDrift {
		s.metrics.IncHealOutcome(string(outcome.Status))
		s.logg.Info(ctx, "auto-heal: no drift detected")
		return outcome, nil
	}

	healable := make([]replay.Violation, 0, len(drift.Violations))
	for _, v := range drift.Violations {
		if v.Healable() {
			healable = append(healable, v)
		}
	}
	if len(healable) == 0 {
		outcome.Status = HealStatusUnhealable
		s.metrics.IncHealOutcome(string(outcome.Status))
		logCtx := s.logg.WithField(ctx, "unhealable", len(outcome.Unhealable))
		s.logg.Warn(logCtx, "auto-heal: drift detected that a rebuild cannot resolve")
		return outcome, nil
	}

	result, err := s.engine.Run(ctx, replay.Request{Mode: enums.ReplayModeRebuild})
	if err != nil {
		s.metrics.IncHealOutcome("fatal")
		return nil, mapError(err)
	}
	outcome.Status = HealStatusHealed
	outcome.Healed = healable
	outcome.EventsReapplied = result.EventsApplied
	s.metrics.IncHealOutcome(string(outcome.Status))
	s.metrics.SetDrift(countByEntity(outcome.Unhealable))

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"healed":           len(outcome.Healed),
		"unhealable":       len(outcome.Unhealable),
		"events_reapplied": outcome.EventsReapplied,
	})
	s.logg.Info(logCtx, "auto-heal: drift healed")
	return outcome, nil
}

func unhealable(violations []replay.Violation) []replay.Violation {
	out := []replay.Violation{}
	for _, v := range violations {
		if !v.Healable() {
			out = append(out, v)
		}
	}
	return out
}

func nonNil(violations []replay.Violation) []replay.Violation {
	if violations == nil {
		return []replay.Violation{}
	}
	return violations
}

// mapError gives replay failures a pkg/errors code. Coded errors pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	var violation *replay.InvariantViolation
	switch {
	case stdErrors.As(err, &violation):
		return pkgerrors.Wrap(pkgerrors.CodeInvariantViolation, err, "ledger replay violated an inventory invariant").
			WithDetails(violation)
	case stdErrors.Is(err, ledger.ErrMalformedPayload):
		return pkgerrors.Wrap(pkgerrors.CodeInvariantViolation, err, "ledger contains a malformed event")
	case stdErrors.Is(err, context.DeadlineExceeded):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replay timed out")
	case stdErrors.Is(err, context.Canceled):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replay cancelled")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replay failed")
	}
}
