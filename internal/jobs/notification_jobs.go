package jobs

import (
	"context"

	"library-circulation-backend/internal/logger"
)

// DispatchNotifications mails undelivered outbox rows in batches until the
// outbox is drained or a batch makes no progress.
func (jr *JobRunner) DispatchNotifications() {
	jr.runWithRecovery("DispatchNotifications", func() {
		ctx := context.Background()
		batch := int32(jr.config.Scheduler.DispatchBatchSize)

		total := 0
		for {
			sent, err := jr.services.Notifications.DispatchPending(ctx, batch, jr.now())
			if err != nil {
				logger.Error("Failed to dispatch notifications", "error", err)
				break
			}
			total += sent
			if sent == 0 || sent < int(batch) {
				break
			}
		}
		logger.Info("Notifications dispatched", "count", total)
	})
}

// SendOverdueReminders writes one reminder notification per overdue borrowing.
// Delivery happens on the next dispatch run.
func (jr *JobRunner) SendOverdueReminders() {
	jr.runWithRecovery("SendOverdueReminders", func() {
		count, err := jr.services.Notifications.EnqueueOverdueReminders(context.Background(), jr.now())
		if err != nil {
			logger.Error("Failed to enqueue overdue reminders", "error", err)
			return
		}
		logger.Info("Overdue reminders enqueued", "count", count)
	})
}
