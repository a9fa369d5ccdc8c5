package backendstub

import (
	"context"
	"log/slog"
	"time"

	"github.com/fleetdeck/fleetdeck/internal/task"
)

// RunScheduler stands in for the production dispatcher: on every tick it
// starts the most overdue scheduled task that is allowed to run. Repeating
// schedules thus visibly progress during development without anyone
// issuing run commands.
func RunScheduler(ctx context.Context, h *Handler, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("scheduler started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := h.startDueTask(ctx); err != nil {
				slog.WarnContext(ctx, "scheduler tick failed", "error", err)
			}
		}
	}
}

// startDueTask moves at most one due task to working, with the same
// transition rules the run operation enforces.
func (h *Handler) startDueTask(ctx context.Context) error {
	tasks, err := h.tasks.List(ctx)
	if err != nil {
		return err
	}
	runnable := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.State.Top.CanRun() {
			runnable = append(runnable, t)
		}
	}

	due := task.NextDue(runnable, h.now())
	if due == nil {
		return nil
	}

	due.State.Top = task.StateWorking
	at := task.NewWireTime(h.now())
	due.LastRunAt = &at
	if err := h.tasks.Update(ctx, *due); err != nil {
		return err
	}
	slog.InfoContext(ctx, "scheduled task started", "task_id", due.ID, "name", due.Name)
	return nil
}
