package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/packfinderz-ledger/internal/reconcile"
	"github.com/angelmondragon/packfinderz-ledger/pkg/logger"
)

type autoHealer interface {
	AutoHeal(ctx context.Context) (*reconcile.HealOutcome, error)
}

// AutoHealJobParams configure the drift detection job.
type AutoHealJobParams struct {
	Logger *logger.Logger
	Healer autoHealer
}

// NewAutoHealJob builds the cron job that compares live state with the ledger and rebuilds
// on healable drift.
func NewAutoHealJob(params AutoHealJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Healer == nil {
		return nil, fmt.Errorf("healer required")
	}
	return &autoHealJob{logg: params.Logger, healer: params.Healer}, nil
}

type autoHealJob struct {
	logg   *logger.Logger
	healer autoHealer
}

func (j *autoHealJob) Name() string { return "auto-heal" }

func (j *autoHealJob) Run(ctx context.Context) error {
	outcome, err := j.healer.AutoHeal(ctx)
	if err != nil {
		return err
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"status":     outcome.Status,
		"healed":     len(outcome.Healed),
		"unhealable": len(outcome.Unhealable),
	})
	if len(outcome.Unhealable) > 0 {
		j.logg.Warn(logCtx, "drift remains that needs an operator")
		return nil
	}
	j.logg.Info(logCtx, "auto-heal pass complete")
	return nil
}
