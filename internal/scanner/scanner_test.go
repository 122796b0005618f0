package scanner_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"homeline/internal/config"
	"homeline/internal/db"
	"homeline/internal/domain"
	"homeline/internal/engine"
	"homeline/internal/migrate"
	"homeline/internal/repo"
	"homeline/internal/scanner"
)

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type scanEnv struct {
	DB      *sql.DB
	Engine  engine.Engine
	Scanner *scanner.Scanner
	Ctx     context.Context
	clock   *time.Time
}

func newScanEnv(t *testing.T) *scanEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clock := baseTime
	now := func() time.Time { return clock }
	eng := engine.New(conn, config.Default("agency-1"), nil)
	eng.Now = now
	ctx := context.Background()
	if _, err := eng.CreateMember(ctx, engine.MemberCreateOptions{ID: "mem-1", Name: "Amir", Role: "agent", ActorID: "tester"}); err != nil {
		t.Fatalf("seed member: %v", err)
	}
	sc := &scanner.Scanner{
		DB:        conn,
		Repo:      eng.Repo,
		Notifier:  eng.Notifier,
		Threshold: 24 * time.Hour,
		Now:       now,
	}
	return &scanEnv{DB: conn, Engine: eng, Scanner: sc, Ctx: ctx, clock: &clock}
}

func (e *scanEnv) createTask(t *testing.T, due time.Time) domain.Task {
	t.Helper()
	task, err := e.Engine.CreateTask(e.Ctx, engine.TaskCreateOptions{
		Title:      "Follow up",
		DueDate:    due.Format(time.RFC3339),
		AssignedTo: "mem-1",
		ActorID:    "mem-1",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (e *scanEnv) notifications(t *testing.T, evType string) []domain.Notification {
	t.Helper()
	items, err := e.Engine.Repo.ListNotifications(e.Ctx, repo.NotificationFilters{Recipient: "mem-1", Type: evType})
	if err != nil {
		t.Fatal(err)
	}
	return items
}

func TestClassify(t *testing.T) {
	threshold := 24 * time.Hour
	cases := []struct {
		due  time.Time
		want string
	}{
		{baseTime.Add(-time.Minute), domain.AlertOverdue},
		{baseTime.Add(time.Hour), domain.AlertDueSoon},
		{baseTime.Add(48 * time.Hour), domain.AlertNone},
	}
	for _, c := range cases {
		if got := scanner.Classify(c.due.Format(time.RFC3339), baseTime, threshold); got != c.want {
			t.Errorf("Classify(%s) = %s, want %s", c.due, got, c.want)
		}
	}
	if got := scanner.Classify("garbage", baseTime, threshold); got != domain.AlertNone {
		t.Errorf("unparseable due date = %s, want none", got)
	}
}

func TestOverdueFiresExactlyOnce(t *testing.T) {
	env := newScanEnv(t)
	env.createTask(t, baseTime.Add(-time.Hour))
	fired, err := env.Scanner.ScanOnce(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fired != 1 {
		t.Fatalf("first scan fired = %d", fired)
	}
	// repeated scans at the same classification are silent
	for i := 0; i < 3; i++ {
		fired, err = env.Scanner.ScanOnce(env.Ctx)
		if err != nil {
			t.Fatal(err)
		}
		if fired != 0 {
			t.Fatalf("scan %d fired = %d", i+2, fired)
		}
	}
	if n := env.notifications(t, domain.NotifyTaskOverdue); len(n) != 1 {
		t.Fatalf("overdue notifications = %d", len(n))
	}
}

func TestDueSoonThenOverdue(t *testing.T) {
	env := newScanEnv(t)
	task := env.createTask(t, baseTime.Add(12*time.Hour))
	if fired, _ := env.Scanner.ScanOnce(env.Ctx); fired != 1 {
		t.Fatal("due-soon scan should fire")
	}
	got, _ := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if got.LastAlert != domain.AlertDueSoon {
		t.Fatalf("last_alert = %s", got.LastAlert)
	}
	// clock passes the due date: classification escalates and fires again
	*env.clock = baseTime.Add(13 * time.Hour)
	if fired, _ := env.Scanner.ScanOnce(env.Ctx); fired != 1 {
		t.Fatal("overdue escalation should fire")
	}
	got, _ = env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if got.LastAlert != domain.AlertOverdue {
		t.Fatalf("last_alert = %s", got.LastAlert)
	}
	if n := env.notifications(t, domain.NotifyTaskDueSoon); len(n) != 1 {
		t.Fatalf("due-soon notifications = %d", len(n))
	}
	if n := env.notifications(t, domain.NotifyTaskOverdue); len(n) != 1 {
		t.Fatalf("overdue notifications = %d", len(n))
	}
}

func TestMarkerResetsWhenDueDateMoves(t *testing.T) {
	env := newScanEnv(t)
	task := env.createTask(t, baseTime.Add(time.Hour))
	if fired, _ := env.Scanner.ScanOnce(env.Ctx); fired != 1 {
		t.Fatal("initial due-soon should fire")
	}
	// push the due date out a week
	newDue := baseTime.Add(7 * 24 * time.Hour).Format(time.RFC3339)
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, DueDate: &newDue, ActorID: "mem-1"}); err != nil {
		t.Fatal(err)
	}
	if fired, _ := env.Scanner.ScanOnce(env.Ctx); fired != 0 {
		t.Fatal("scan after reschedule should be silent")
	}
	got, _ := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if got.LastAlert != domain.AlertNone {
		t.Fatalf("last_alert = %s, want none", got.LastAlert)
	}
	// approach the new due date: fires again
	*env.clock = baseTime.Add(7 * 24 * time.Hour).Add(-time.Hour)
	if fired, _ := env.Scanner.ScanOnce(env.Ctx); fired != 1 {
		t.Fatal("re-approach should fire again")
	}
}

func TestCompletedTasksAreSkipped(t *testing.T) {
	env := newScanEnv(t)
	task := env.createTask(t, baseTime.Add(-time.Hour))
	if _, err := env.Engine.CompleteTask(env.Ctx, task.ID, "mem-1"); err != nil {
		t.Fatal(err)
	}
	if fired, _ := env.Scanner.ScanOnce(env.Ctx); fired != 0 {
		t.Fatal("completed task must not alert")
	}
}
