package jobs

import (
	"context"
	"time"

	"feepay-backend/internal/logger"
	"feepay-backend/internal/service"
)

// reconcileTimeout bounds one reconciliation pass so a slow provider cannot stack runs.
const reconcileTimeout = 2 * time.Minute

// ReconcilePendingTopUps polls the provider for mobile money top-ups that have been pending
// longer than the configured age and settles the ones that reached a final state.
func (jr *JobRunner) ReconcilePendingTopUps() {
	jr.runWithRecovery("ReconcilePendingTopUps", func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()

		if _, err := jr.reconcile(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to reconcile pending top-ups", "error", err)
		}
	})
}

func (jr *JobRunner) reconcile(ctx context.Context) (*service.ReconcileSummary, error) {
	cfg := jr.config.Reconciliation
	summary, err := jr.services.TopUp.ReconcilePendingTopUps(ctx, cfg.ReconcileOlderThan(), cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Reconciled pending top-ups",
		"checked", summary.Checked,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"still_pending", summary.StillPending,
		"errors", summary.Errors)
	return summary, nil
}
