// Package scanner classifies open tasks against the clock and fires due-soon
// and overdue notifications at most once per classification.
package scanner

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"homeline/internal/domain"
	"homeline/internal/notify"
	"homeline/internal/repo"
)

type Scanner struct {
	DB        *sql.DB
	Repo      repo.Repo
	Notifier  notify.Engine
	Interval  time.Duration
	Threshold time.Duration
	Now       func() time.Time
	Logger    *log.Logger
}

func (s *Scanner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Scanner) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

// Classify maps a due date to its alert classification. Unparseable due
// dates classify as AlertNone so a single bad row cannot wedge the scan.
func Classify(dueDate string, now time.Time, threshold time.Duration) string {
	due, err := time.Parse(time.RFC3339, dueDate)
	if err != nil {
		return domain.AlertNone
	}
	switch {
	case due.Before(now):
		return domain.AlertOverdue
	case due.Before(now.Add(threshold)):
		return domain.AlertDueSoon
	}
	return domain.AlertNone
}

// Start runs the scan loop until ctx is cancelled. Each run is independent:
// a skipped or late run catches up fully on the next tick because the scan
// is level-triggered off the marker, not queued.
func (s *Scanner) Start(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger().Printf("scanner: started, interval %s, due-soon window %s", interval, s.Threshold)
	for {
		select {
		case <-ctx.Done():
			s.logger().Printf("scanner: stopped")
			return
		case <-ticker.C:
			if _, err := s.ScanOnce(ctx); err != nil {
				s.logger().Printf("scanner: scan failed: %v", err)
			}
		}
	}
}

// ScanOnce classifies every open task and notifies on classification change.
// It returns the number of notifications created. The marker update commits
// in the same transaction as the notification row, so re-running immediately
// is a no-op; losing the transaction loses both and the next run re-fires.
func (s *Scanner) ScanOnce(ctx context.Context) (int, error) {
	tasks, err := s.Repo.ListOpenTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open tasks: %w", err)
	}
	now := s.now()
	fired := 0
	for _, t := range tasks {
		cls := Classify(t.DueDate, now, s.Threshold)
		if cls == t.LastAlert {
			continue
		}
		if cls == domain.AlertNone {
			// Due date moved out; drop the marker so the next approach
			// of the due date notifies again.
			if err := s.resetMarker(ctx, t.ID); err != nil {
				s.logger().Printf("scanner: reset marker for %s: %v", t.ID, err)
			}
			continue
		}
		if err := s.fire(ctx, t, cls); err != nil {
			s.logger().Printf("scanner: notify for %s: %v", t.ID, err)
			continue
		}
		fired++
	}
	return fired, nil
}

func (s *Scanner) resetMarker(ctx context.Context, taskID string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.Repo.SetTaskAlertTx(ctx, tx, taskID, domain.AlertNone); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Scanner) fire(ctx context.Context, t domain.Task, cls string) error {
	recipient, err := s.Repo.GetMember(ctx, t.AssignedTo)
	if err != nil {
		return fmt.Errorf("assignee %s: %w", t.AssignedTo, err)
	}
	evType := domain.NotifyTaskDueSoon
	if cls == domain.AlertOverdue {
		evType = domain.NotifyTaskOverdue
	}
	notifier := s.Notifier
	if notifier.Now == nil {
		notifier.Now = s.Now
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	n, err := notifier.Create(ctx, tx, notify.Event{
		Type:      evType,
		Recipient: recipient,
		Task:      &t,
	})
	if err != nil {
		return err
	}
	if err := s.Repo.SetTaskAlertTx(ctx, tx, t.ID, cls); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	notifier.SendExternal(ctx, recipient, n)
	return nil
}
