package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"homeline/internal/config"
	"homeline/internal/db"
	"homeline/internal/domain"
	"homeline/internal/engine"
	"homeline/internal/migrate"
	"homeline/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("agency-1")
	eng := engine.New(conn, cfg, nil)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	for _, m := range []engine.MemberCreateOptions{
		{ID: "mem-owner", Name: "Olivia", Role: "owner"},
		{ID: "mem-agent", Name: "Amir", Role: "agent"},
		{ID: "mem-agent2", Name: "Sara", Role: "agent"},
	} {
		m.ActorID = "tester"
		if _, err := eng.CreateMember(ctx, m); err != nil {
			t.Fatalf("seed member %s: %v", m.ID, err)
		}
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func mustCreateLead(t *testing.T, env testEnv, opts engine.LeadCreateOptions) domain.Lead {
	t.Helper()
	if opts.FirstName == "" {
		opts.FirstName = "Dana"
	}
	if opts.Phone == "" {
		opts.Phone = "+971501234567"
	}
	if opts.ActorID == "" {
		opts.ActorID = "mem-owner"
	}
	l, err := env.Engine.CreateLead(env.Ctx, opts)
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}
	return l
}

func TestLeadFunnel(t *testing.T) {
	env := newTestEnv(t)
	l := mustCreateLead(t, env, engine.LeadCreateOptions{})
	if l.Status != "new" {
		t.Fatalf("new lead status = %s", l.Status)
	}
	for _, next := range []string{"contacted", "qualified", "negotiating", "converted"} {
		var err error
		l, err = env.Engine.TransitionLead(env.Ctx, l.ID, next, "mem-agent")
		if err != nil {
			t.Fatalf("to %s: %v", next, err)
		}
		if l.Status != next {
			t.Fatalf("status = %s, want %s", l.Status, next)
		}
	}
	if l.LastContactedAt == nil {
		t.Fatal("contacted transition should stamp last_contacted_at")
	}
	// converted is terminal: going back must be rejected and leave the lead untouched
	_, err := env.Engine.TransitionLead(env.Ctx, l.ID, "contacted", "mem-agent")
	var te *engine.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	got, err := env.Engine.Repo.GetLead(env.Ctx, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "converted" || got.UpdatedAt != l.UpdatedAt {
		t.Fatalf("rejected transition mutated lead: status=%s updated_at=%s", got.Status, got.UpdatedAt)
	}
}

func TestLeadStatusChangeAppendsActivity(t *testing.T) {
	env := newTestEnv(t)
	l := mustCreateLead(t, env, engine.LeadCreateOptions{})
	if _, err := env.Engine.TransitionLead(env.Ctx, l.ID, "contacted", "mem-agent"); err != nil {
		t.Fatal(err)
	}
	acts, err := env.Engine.Repo.ListActivities(env.Ctx, l.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(acts) != 1 || acts[0].Type != "status_change" {
		t.Fatalf("activities = %+v", acts)
	}
	if !strings.Contains(acts[0].Note, "new -> contacted") {
		t.Fatalf("activity note = %q", acts[0].Note)
	}
}

func TestLeadOverrideFromNew(t *testing.T) {
	env := newTestEnv(t)
	l := mustCreateLead(t, env, engine.LeadCreateOptions{})
	_, err := env.Engine.TransitionLead(env.Ctx, l.ID, "qualified", "mem-agent")
	var ue *engine.UnauthorizedError
	if !errors.As(err, &ue) {
		t.Fatalf("agent override should be unauthorized, got %v", err)
	}
	got, err := env.Engine.TransitionLead(env.Ctx, l.ID, "qualified", "mem-owner")
	if err != nil {
		t.Fatalf("owner override: %v", err)
	}
	if got.Status != "qualified" {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestLeadDuplicatePhone(t *testing.T) {
	env := newTestEnv(t)
	mustCreateLead(t, env, engine.LeadCreateOptions{Phone: "+971 50 123 4567"})
	// same digits, different formatting
	_, err := env.Engine.CreateLead(env.Ctx, engine.LeadCreateOptions{
		FirstName: "Other", Phone: "00971501234567", ActorID: "mem-owner",
	})
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected duplicate phone error, got %v", err)
	}
}

func TestAssignLeadNotifiesAssignee(t *testing.T) {
	env := newTestEnv(t)
	l := mustCreateLead(t, env, engine.LeadCreateOptions{})
	if _, err := env.Engine.AssignLead(env.Ctx, l.ID, "mem-agent", "mem-owner"); err != nil {
		t.Fatal(err)
	}
	items, err := env.Engine.Repo.ListNotifications(env.Ctx, repo.NotificationFilters{Recipient: "mem-agent"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Type != "lead_assigned" {
		t.Fatalf("notifications = %+v", items)
	}
	if items[0].Ref.Kind != "lead" || items[0].Ref.ID != l.ID {
		t.Fatalf("ref = %+v", items[0].Ref)
	}
	if items[0].IsRead {
		t.Fatal("new notification must be unread")
	}
}

func TestAssignLeadToSelfIsSilent(t *testing.T) {
	env := newTestEnv(t)
	l := mustCreateLead(t, env, engine.LeadCreateOptions{})
	if _, err := env.Engine.AssignLead(env.Ctx, l.ID, "mem-agent", "mem-agent"); err != nil {
		t.Fatal(err)
	}
	items, err := env.Engine.Repo.ListNotifications(env.Ctx, repo.NotificationFilters{Recipient: "mem-agent"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("self-assignment should not notify, got %+v", items)
	}
}

func TestAssignLeadRejectsInactiveMember(t *testing.T) {
	env := newTestEnv(t)
	l := mustCreateLead(t, env, engine.LeadCreateOptions{})
	if _, err := env.Engine.SetMemberActive(env.Ctx, "mem-agent", false, "mem-owner"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AssignLead(env.Ctx, l.ID, "mem-agent", "mem-owner"); err == nil {
		t.Fatal("assignment to inactive member should fail")
	}
}

func TestTaskLifecycle(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title:      "Call back",
		DueDate:    "2024-01-02T10:00:00Z",
		AssignedTo: "mem-agent",
		ActorID:    "mem-owner",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != "pending" || task.Type != "follow_up" || task.Priority != "medium" {
		t.Fatalf("defaults: %+v", task)
	}
	task, err = env.Engine.TransitionTask(env.Ctx, task.ID, "in_progress", "mem-agent")
	if err != nil {
		t.Fatal(err)
	}
	if task.CompletedAt != nil {
		t.Fatal("completed_at set before completion")
	}
	task, err = env.Engine.TransitionTask(env.Ctx, task.ID, "completed", "mem-agent")
	if err != nil {
		t.Fatal(err)
	}
	if task.CompletedAt == nil {
		t.Fatal("completed_at not stamped")
	}
	if _, err := env.Engine.TransitionTask(env.Ctx, task.ID, "pending", "mem-agent"); err == nil {
		t.Fatal("completed is terminal")
	}
}

func TestTaskRequiresDueDate(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title: "No due", AssignedTo: "mem-agent", ActorID: "mem-owner",
	})
	if err == nil {
		t.Fatal("expected due date error")
	}
	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title: "Bad due", DueDate: "tomorrow", AssignedTo: "mem-agent", ActorID: "mem-owner",
	})
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTaskCompletionNotifiesCreator(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title:      "Prepare contract",
		DueDate:    "2024-01-02T10:00:00Z",
		AssignedTo: "mem-agent",
		ActorID:    "mem-owner",
	})
	if err != nil {
		t.Fatal(err)
	}
	// assignee got the assignment notification
	assigned, err := env.Engine.Repo.ListNotifications(env.Ctx, repo.NotificationFilters{Recipient: "mem-agent"})
	if err != nil {
		t.Fatal(err)
	}
	if len(assigned) != 1 || assigned[0].Type != "task_assigned" {
		t.Fatalf("assignee notifications = %+v", assigned)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, task.ID, "mem-agent"); err != nil {
		t.Fatal(err)
	}
	completed, err := env.Engine.Repo.ListNotifications(env.Ctx, repo.NotificationFilters{Recipient: "mem-owner", Type: "task_completed"})
	if err != nil {
		t.Fatal(err)
	}
	if len(completed) != 1 {
		t.Fatalf("creator notifications = %+v", completed)
	}
}

func TestTaskUpdateRejectsTerminal(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title: "Done deal", DueDate: "2024-01-02T10:00:00Z", AssignedTo: "mem-agent", ActorID: "mem-owner",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.TransitionTask(env.Ctx, task.ID, "cancelled", "mem-owner"); err != nil {
		t.Fatal(err)
	}
	title := "renamed"
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Title: &title, ActorID: "mem-owner"}); err == nil {
		t.Fatal("updates to cancelled task should fail")
	}
}

func TestDealFunnelMovesForwardOnly(t *testing.T) {
	env := newTestEnv(t)
	l := mustCreateLead(t, env, engine.LeadCreateOptions{})
	d, err := env.Engine.CreateDeal(env.Ctx, engine.DealCreateOptions{LeadID: l.ID, DealValue: 1200000, ActorID: "mem-owner"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != "negotiation" || d.Currency != "AED" {
		t.Fatalf("deal defaults: %+v", d)
	}
	// skipping a stage is rejected
	if _, err := env.Engine.TransitionDeal(env.Ctx, d.ID, "deposit_received", "mem-owner"); err == nil {
		t.Fatal("expected stage skip to fail")
	}
	for _, next := range []string{"contract_signed", "deposit_received", "payment_in_progress", "completed"} {
		d, err = env.Engine.TransitionDeal(env.Ctx, d.ID, next, "mem-owner")
		if err != nil {
			t.Fatalf("to %s: %v", next, err)
		}
	}
	if _, err := env.Engine.TransitionDeal(env.Ctx, d.ID, "cancelled", "mem-owner"); err == nil {
		t.Fatal("completed is terminal")
	}
}

func TestDealCancelFromMidFunnel(t *testing.T) {
	env := newTestEnv(t)
	l := mustCreateLead(t, env, engine.LeadCreateOptions{})
	d, err := env.Engine.CreateDeal(env.Ctx, engine.DealCreateOptions{LeadID: l.ID, DealValue: 500, ActorID: "mem-owner"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.TransitionDeal(env.Ctx, d.ID, "contract_signed", "mem-owner"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.TransitionDeal(env.Ctx, d.ID, "cancelled", "mem-owner"); err != nil {
		t.Fatalf("cancel from contract_signed: %v", err)
	}
}

func TestContactActivityStampsLead(t *testing.T) {
	env := newTestEnv(t)
	l := mustCreateLead(t, env, engine.LeadCreateOptions{})
	if _, err := env.Engine.CreateActivity(env.Ctx, engine.ActivityCreateOptions{
		LeadID: l.ID, Type: "note", Note: "just a note", ActorID: "mem-agent",
	}); err != nil {
		t.Fatal(err)
	}
	got, _ := env.Engine.Repo.GetLead(env.Ctx, l.ID)
	if got.LastContactedAt != nil {
		t.Fatal("note must not count as contact")
	}
	if _, err := env.Engine.CreateActivity(env.Ctx, engine.ActivityCreateOptions{
		LeadID: l.ID, Type: "call", Outcome: "answered", ActorID: "mem-agent",
	}); err != nil {
		t.Fatal(err)
	}
	got, _ = env.Engine.Repo.GetLead(env.Ctx, l.ID)
	if got.LastContactedAt == nil {
		t.Fatal("call must stamp last_contacted_at")
	}
}

func TestActivityOutcomeOnlyForCalls(t *testing.T) {
	env := newTestEnv(t)
	l := mustCreateLead(t, env, engine.LeadCreateOptions{})
	_, err := env.Engine.CreateActivity(env.Ctx, engine.ActivityCreateOptions{
		LeadID: l.ID, Type: "email", Outcome: "answered", ActorID: "mem-agent",
	})
	if err == nil {
		t.Fatal("outcome on non-call activity should fail")
	}
}

const importHeader = "FirstName,LastName,Phone,Email,Telegram,WhatsApp,PropertyType,ListingType,Budget,Bedrooms,Districts,Requirements,Source,Status,Priority,Notes"

func TestImportMixedRows(t *testing.T) {
	env := newTestEnv(t)
	csvData := importHeader + "\n" +
		"Dana,K,+971501111111,,,,apartment,rent,90000,1,Marina,,website,,high,\n" +
		",Missing,+971502222222,,,,,,,,,,,,,\n" + // no first name
		"Omar,S,+971503333333,,,,villa,sale,not-a-number,,,,referral,,,\n" + // bad budget
		"Lina,T,+971504444444,,,,,,,,,,,,,\n"
	report, err := env.Engine.ImportLeads(env.Ctx, []byte(csvData), "", "mem-owner")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Success != 2 || report.Failed != 2 || report.Skipped != 0 {
		t.Fatalf("report = %+v", report)
	}
	// row numbers are 1-based over data rows
	if report.Errors[0].Row != 2 || report.Errors[1].Row != 3 {
		t.Fatalf("error rows = %+v", report.Errors)
	}
	l, err := env.Engine.Repo.GetLeadByPhone(env.Ctx, "971504444444")
	if err != nil {
		t.Fatal(err)
	}
	if l.Status != "new" || l.Priority != "medium" || l.Source != "import" {
		t.Fatalf("imported defaults: %+v", l)
	}
}

func TestImportDuplicatePolicies(t *testing.T) {
	env := newTestEnv(t)
	existing := mustCreateLead(t, env, engine.LeadCreateOptions{FirstName: "Dana", Phone: "+971501111111", Notes: "old"})
	if _, err := env.Engine.TransitionLead(env.Ctx, existing.ID, "contacted", "mem-agent"); err != nil {
		t.Fatal(err)
	}
	row := "Dana,Updated,00971501111111,,,,apartment,rent,,,Downtown,,website,,urgent,fresh notes\n"

	report, err := env.Engine.ImportLeads(env.Ctx, []byte(importHeader+"\n"+row), "skip", "mem-owner")
	if err != nil {
		t.Fatal(err)
	}
	if report.Skipped != 1 || report.Success != 0 {
		t.Fatalf("skip report = %+v", report)
	}

	report, err = env.Engine.ImportLeads(env.Ctx, []byte(importHeader+"\n"+row), "error", "mem-owner")
	if err != nil {
		t.Fatal(err)
	}
	if report.Failed != 1 || len(report.Errors) != 1 {
		t.Fatalf("error-policy report = %+v", report)
	}

	report, err = env.Engine.ImportLeads(env.Ctx, []byte(importHeader+"\n"+row), "update", "mem-owner")
	if err != nil {
		t.Fatal(err)
	}
	if report.Success != 1 {
		t.Fatalf("update report = %+v", report)
	}
	got, err := env.Engine.Repo.GetLead(env.Ctx, existing.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastName != "Updated" || got.Notes != "fresh notes" || got.Priority != "urgent" {
		t.Fatalf("update did not apply: %+v", got)
	}
	// status survives the overwrite
	if got.Status != "contacted" {
		t.Fatalf("update clobbered status: %s", got.Status)
	}
}

func TestImportUnknownPolicy(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.ImportLeads(env.Ctx, []byte(importHeader+"\n"), "merge", "mem-owner"); err == nil {
		t.Fatal("unknown policy should fail")
	}
}

func TestExportLeads(t *testing.T) {
	env := newTestEnv(t)
	mustCreateLead(t, env, engine.LeadCreateOptions{FirstName: "Dana", Phone: "+971501111111", Districts: "Marina, JBR"})
	mustCreateLead(t, env, engine.LeadCreateOptions{FirstName: "Omar", Phone: "+971502222222"})
	filename, data, err := env.Engine.ExportLeads(env.Ctx, repo.LeadFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if filename != "leads_all_20240101-120000.csv" {
		t.Fatalf("filename = %s", filename)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d", len(lines))
	}
	if lines[0] != importHeader {
		t.Fatalf("header = %s", lines[0])
	}
	// comma-bearing district list must round-trip quoted
	if !strings.Contains(string(data), `"Marina, JBR"`) {
		t.Fatalf("districts not quoted: %s", string(data))
	}

	filename, _, err = env.Engine.ExportLeads(env.Ctx, repo.LeadFilters{Status: "new"})
	if err != nil {
		t.Fatal(err)
	}
	if filename != "leads_new_20240101-120000.csv" {
		t.Fatalf("filtered filename = %s", filename)
	}
}

func TestEventsLedger(t *testing.T) {
	env := newTestEnv(t)
	l := mustCreateLead(t, env, engine.LeadCreateOptions{})
	if _, err := env.Engine.TransitionLead(env.Ctx, l.ID, "contacted", "mem-agent"); err != nil {
		t.Fatal(err)
	}
	events, err := env.Engine.Repo.EventsAfter(env.Ctx, 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	joined := strings.Join(types, ",")
	if !strings.Contains(joined, "lead.created") || !strings.Contains(joined, "lead.status") {
		t.Fatalf("events = %v", types)
	}
}
