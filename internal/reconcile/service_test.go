package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/packfinderz-ledger/internal/ledger"
	"github.com/angelmondragon/packfinderz-ledger/internal/reclaim"
	"github.com/angelmondragon/packfinderz-ledger/internal/replay"
	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-ledger/pkg/errors"
	"github.com/angelmondragon/packfinderz-ledger/pkg/logger"
	"github.com/angelmondragon/packfinderz-ledger/pkg/metrics"
)

type fakeEngine struct {
	results map[enums.ReplayMode]*replay.Result
	errs    map[enums.ReplayMode]error
	calls   []replay.Request
}

func (f *fakeEngine) Run(_ context.Context, req replay.Request) (*replay.Result, error) {
	f.calls = append(f.calls, req)
	if err := f.errs[req.Mode]; err != nil {
		return nil, err
	}
	result, ok := f.results[req.Mode]
	if !ok {
		return &replay.Result{Mode: req.Mode, DryRun: req.DryRun}, nil
	}
	copied := *result
	copied.DryRun = req.DryRun
	return &copied, nil
}

func (f *fakeEngine) rebuilds() int {
	n := 0
	for _, call := range f.calls {
		if call.Mode == enums.ReplayModeRebuild {
			n++
		}
	}
	return n
}

type fakeReclaimer struct {
	summary *reclaim.Summary
	err     error
}

func (f *fakeReclaimer) Reclaim(context.Context) (*reclaim.Summary, error) {
	return f.summary, f.err
}

func newTestService(t *testing.T, engine *fakeEngine, reclaimer *fakeReclaimer) Service {
	t.Helper()
	if reclaimer == nil {
		reclaimer = &fakeReclaimer{summary: &reclaim.Summary{}}
	}
	svc, err := NewService(ServiceParams{
		Logger:    logger.New(logger.Options{ServiceName: "reconcile-test", Output: &bytes.Buffer{}}),
		Engine:    engine,
		Reclaimer: reclaimer,
		Metrics:   metrics.NewReconcileMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func violation(entity enums.LedgerEntityType, reason enums.ViolationReason) replay.Violation {
	return replay.Violation{EntityType: entity, EntityID: uuid.New(), Reason: reason}
}

func TestVerifyGroupsMismatches(t *testing.T) {
	engine := &fakeEngine{results: map[enums.ReplayMode]*replay.Result{
		enums.ReplayModeVerify: {
			EventsApplied:  12,
			EventsInWindow: 5,
			Violations: []replay.Violation{
				violation(enums.LedgerEntityInventory, enums.ViolationValueMismatch),
				violation(enums.LedgerEntityShipment, enums.ViolationMissingInStore),
			},
		},
	}}
	report, err := newTestService(t, engine, nil).Verify(context.Background(), ledger.Window{})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.Inventory.OK || !report.Orders.OK || report.Shipments.OK || report.OK() {
		t.Fatalf("unexpected section flags: %+v", report)
	}
	if len(report.Inventory.Mismatches) != 1 || len(report.Orders.Mismatches) != 0 {
		t.Fatalf("unexpected grouping: %+v", report)
	}
	if report.EventsApplied != 12 || report.EventsInWindow != 5 {
		t.Fatalf("expected event counters to pass through, got %+v", report)
	}
	if engine.rebuilds() != 0 {
		t.Fatalf("verify must never rebuild")
	}
}

func TestHealDryRun(t *testing.T) {
	engine := &fakeEngine{results: map[enums.ReplayMode]*replay.Result{
		enums.ReplayModeRebuild: {Violations: []replay.Violation{violation(enums.LedgerEntityInventory, enums.ViolationValueMismatch)}},
	}}
	report, err := newTestService(t, engine, nil).Heal(context.Background(), true)
	if err != nil {
		t.Fatalf("heal: %v", err)
	}
	if !report.DryRun || len(report.Changes) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if !engine.calls[0].DryRun {
		t.Fatalf("dry run flag must reach the engine")
	}
}

func TestColdStartRequiresConfirmation(t *testing.T) {
	engine := &fakeEngine{}
	svc := newTestService(t, engine, nil)

	for _, confirm := range []string{"", "rebuild", "YES"} {
		_, err := svc.ColdStart(context.Background(), confirm)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("confirm %q: expected validation error, got %v", confirm, err)
		}
	}
	if len(engine.calls) != 0 {
		t.Fatalf("engine must not run without confirmation")
	}

	result, err := svc.ColdStart(context.Background(), ColdStartConfirmation)
	if err != nil {
		t.Fatalf("cold start: %v", err)
	}
	if result.Violations == nil || engine.rebuilds() != 1 {
		t.Fatalf("expected one full rebuild, got %+v", engine.calls)
	}
}

func TestAutoHealClean(t *testing.T) {
	engine := &fakeEngine{}
	outcome, err := newTestService(t, engine, nil).AutoHeal(context.Background())
	if err != nil {
		t.Fatalf("auto-heal: %v", err)
	}
	if outcome.Status != HealStatusClean || engine.rebuilds() != 0 {
		t.Fatalf("clean runs must not rebuild: %+v", outcome)
	}
}

func TestAutoHealHealsDrift(t *testing.T) {
	orphan := violation(enums.LedgerEntityOrder, enums.ViolationMissingInLedger)
	engine := &fakeEngine{results: map[enums.ReplayMode]*replay.Result{
		enums.ReplayModeVerify: {Violations: []replay.Violation{
			violation(enums.LedgerEntityInventory, enums.ViolationValueMismatch),
			orphan,
		}},
		enums.ReplayModeRebuild: {EventsApplied: 40},
	}}
	outcome, err := newTestService(t, engine, nil).AutoHeal(context.Background())
	if err != nil {
		t.Fatalf("auto-heal: %v", err)
	}
	if outcome.Status != HealStatusHealed || outcome.EventsReapplied != 40 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(outcome.Healed) != 1 || len(outcome.Unhealable) != 1 || outcome.Unhealable[0].EntityID != orphan.EntityID {
		t.Fatalf("expected orphan order to stay unhealable: %+v", outcome)
	}
	if engine.rebuilds() != 1 || engine.calls[1].DryRun {
		t.Fatalf("expected a committed full rebuild, got %+v", engine.calls)
	}
}

func TestAutoHealOnlyUnhealable(t *testing.T) {
	engine := &fakeEngine{results: map[enums.ReplayMode]*replay.Result{
		enums.ReplayModeVerify: {Violations: []replay.Violation{violation(enums.LedgerEntityOrder, enums.ViolationMissingInLedger)}},
	}}
	outcome, err := newTestService(t, engine, nil).AutoHeal(context.Background())
	if err != nil {
		t.Fatalf("auto-heal: %v", err)
	}
	if outcome.Status != HealStatusUnhealable || engine.rebuilds() != 0 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestAutoHealSurfacesFatalErrors(t *testing.T) {
	violationErr := &replay.InvariantViolation{VariantID: uuid.New(), EventSeq: 9, Rule: replay.RuleOnHandNonNegative}
	engine := &fakeEngine{
		results: map[enums.ReplayMode]*replay.Result{
			enums.ReplayModeVerify: {Violations: []replay.Violation{violation(enums.LedgerEntityInventory, enums.ViolationValueMismatch)}},
		},
		errs: map[enums.ReplayMode]error{enums.ReplayModeRebuild: violationErr},
	}
	outcome, err := newTestService(t, engine, nil).AutoHeal(context.Background())
	if outcome != nil {
		t.Fatalf("fatal heal must not return an outcome")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvariantViolation {
		t.Fatalf("expected invariant violation code, got %v", err)
	}
	var original *replay.InvariantViolation
	if !errors.As(err, &original) || original.EventSeq != 9 {
		t.Fatalf("original violation should remain reachable: %v", err)
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err  error
		code pkgerrors.Code
	}{
		{context.DeadlineExceeded, pkgerrors.CodeDependency},
		{fmt.Errorf("fold: %w", context.Canceled), pkgerrors.CodeDependency},
		{fmt.Errorf("seq 4: %w", ledger.ErrMalformedPayload), pkgerrors.CodeInvariantViolation},
		{errors.New("boom"), pkgerrors.CodeInternal},
		{pkgerrors.New(pkgerrors.CodeConflict, "busy"), pkgerrors.CodeConflict},
	}
	for _, tc := range cases {
		typed := pkgerrors.As(mapError(tc.err))
		if typed == nil || typed.Code() != tc.code {
			t.Fatalf("%v: expected %s, got %v", tc.err, tc.code, typed)
		}
	}
	if mapError(nil) != nil {
		t.Fatal("nil stays nil")
	}
}

func TestReclaimStaleOrdersPassesThrough(t *testing.T) {
	busy := pkgerrors.New(pkgerrors.CodeConflict, "stale reservation reclaim already running")
	svc := newTestService(t, &fakeEngine{}, &fakeReclaimer{err: busy})
	if _, err := svc.ReclaimStaleOrders(context.Background()); !errors.Is(err, busy) {
		t.Fatalf("expected busy error, got %v", err)
	}

	svc = newTestService(t, &fakeEngine{}, &fakeReclaimer{summary: &reclaim.Summary{OrdersExpired: 2}})
	summary, err := svc.ReclaimStaleOrders(context.Background())
	if err != nil || summary.OrdersExpired != 2 {
		t.Fatalf("unexpected summary %+v err=%v", summary, err)
	}
}
