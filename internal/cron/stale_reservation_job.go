package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/packfinderz-ledger/internal/reclaim"
	pkgerrors "github.com/angelmondragon/packfinderz-ledger/pkg/errors"
	"github.com/angelmondragon/packfinderz-ledger/pkg/logger"
)

type staleReclaimer interface {
	Reclaim(ctx context.Context) (*reclaim.Summary, error)
}

// StaleReservationJobParams configure the reclaim job.
type StaleReservationJobParams struct {
	Logger    *logger.Logger
	Reclaimer staleReclaimer
}

// NewStaleReservationJob builds the cron job that expires abandoned PENDING orders.
func NewStaleReservationJob(params StaleReservationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reclaimer == nil {
		return nil, fmt.Errorf("reclaimer required")
	}
	return &staleReservationJob{logg: params.Logger, reclaimer: params.Reclaimer}, nil
}

type staleReservationJob struct {
	logg      *logger.Logger
	reclaimer staleReclaimer
}

func (j *staleReservationJob) Name() string { return "stale-reservation-reclaim" }

func (j *staleReservationJob) Run(ctx context.Context) error {
	summary, err := j.reclaimer.Reclaim(ctx)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
			return fmt.Errorf("%w: %v", ErrSkipped, err)
		}
		return err
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"orders_expired": summary.OrdersExpired,
		"units_released": summary.UnitsReleased,
	})
	j.logg.Info(logCtx, "stale reservations reclaimed")
	return nil
}
