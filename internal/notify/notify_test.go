package notify_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"homeline/internal/db"
	"homeline/internal/domain"
	"homeline/internal/migrate"
	"homeline/internal/notify"
	"homeline/internal/repo"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func seedMember(t *testing.T, r repo.Repo, id, handle string) domain.Member {
	t.Helper()
	m := domain.Member{
		ID: id, Name: "Amir", Role: "agent", ChannelHandle: handle, IsActive: true,
		CreatedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-01-01T00:00:00Z",
	}
	if err := r.InsertMember(context.Background(), m); err != nil {
		t.Fatalf("insert member: %v", err)
	}
	return m
}

func createInTx(t *testing.T, conn *sql.DB, e notify.Engine, ev notify.Event) domain.Notification {
	t.Helper()
	ctx := context.Background()
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	n, err := e.Create(ctx, tx, ev)
	if err != nil {
		tx.Rollback()
		t.Fatalf("create notification: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestCreateLeadNotification(t *testing.T) {
	conn := newTestDB(t)
	r := repo.Repo{DB: conn}
	m := seedMember(t, r, "mem-1", "")
	e := notify.Engine{
		Repo:     r,
		LinkBase: "https://crm.example/",
		Now:      func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) },
	}
	lead := domain.Lead{ID: "lead-1", FirstName: "Dana", LastName: "Khalil"}
	n := createInTx(t, conn, e, notify.Event{
		Type:      domain.NotifyLeadAssigned,
		Recipient: m,
		Lead:      &lead,
	})
	if n.Ref.Kind != "lead" || n.Ref.ID != "lead-1" {
		t.Fatalf("ref = %+v", n.Ref)
	}
	if n.Title != "New lead assigned" {
		t.Fatalf("title = %q", n.Title)
	}
	if !strings.Contains(n.Message, "Dana Khalil") {
		t.Fatalf("message = %q", n.Message)
	}
	if !strings.Contains(n.Message, "https://crm.example/lead/lead-1") {
		t.Fatalf("deep link missing: %q", n.Message)
	}
	got, err := r.GetNotification(context.Background(), n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsRead {
		t.Fatal("fresh notification must be unread")
	}
	if got.CreatedAt != "2024-01-01T12:00:00Z" {
		t.Fatalf("created_at = %s", got.CreatedAt)
	}
}

func TestDealNotificationLinksToLead(t *testing.T) {
	conn := newTestDB(t)
	r := repo.Repo{DB: conn}
	m := seedMember(t, r, "mem-1", "")
	e := notify.Engine{Repo: r}
	deal := domain.Deal{ID: "deal-1", LeadID: "lead-9", DealValue: 100, Currency: "AED"}
	n := createInTx(t, conn, e, notify.Event{
		Type:      domain.NotifyDealStatusChange,
		Recipient: m,
		Deal:      &deal,
		Detail:    "negotiation -> contract_signed",
	})
	if n.Ref.Kind != "lead" || n.Ref.ID != "lead-9" {
		t.Fatalf("deal notification must reference its lead, got %+v", n.Ref)
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	conn := newTestDB(t)
	r := repo.Repo{DB: conn}
	m := seedMember(t, r, "mem-1", "")
	e := notify.Engine{Repo: r}
	n := createInTx(t, conn, e, notify.Event{Type: domain.NotifyTaskAssigned, Recipient: m})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		got, err := r.MarkNotificationRead(ctx, n.ID)
		if err != nil {
			t.Fatalf("mark read #%d: %v", i+1, err)
		}
		if !got.IsRead {
			t.Fatalf("mark read #%d: still unread", i+1)
		}
	}
	unread, err := r.CountUnread(ctx, "mem-1")
	if err != nil {
		t.Fatal(err)
	}
	if unread != 0 {
		t.Fatalf("unread = %d", unread)
	}
}

func TestSendExternalFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bot down", http.StatusBadGateway)
	}))
	defer srv.Close()
	conn := newTestDB(t)
	r := repo.Repo{DB: conn}
	m := seedMember(t, r, "mem-1", "@amir")
	e := notify.Engine{
		Repo:    r,
		Channel: notify.NewHTTPChannel(srv.URL, "token", time.Second),
	}
	n := createInTx(t, conn, e, notify.Event{Type: domain.NotifyTaskOverdue, Recipient: m})
	// must not panic or surface the failure
	e.SendExternal(context.Background(), m, n)
}

func TestSendExternalSkipsMembersWithoutHandle(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer srv.Close()
	conn := newTestDB(t)
	r := repo.Repo{DB: conn}
	m := seedMember(t, r, "mem-1", "")
	e := notify.Engine{Repo: r, Channel: notify.NewHTTPChannel(srv.URL, "", time.Second)}
	n := createInTx(t, conn, e, notify.Event{Type: domain.NotifyTaskDueSoon, Recipient: m})
	e.SendExternal(context.Background(), m, n)
	if called {
		t.Fatal("dispatch without channel handle")
	}
}

func TestHTTPChannelSend(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		data, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	ch := notify.NewHTTPChannel(srv.URL, "secret-token", time.Second)
	if err := ch.Send(context.Background(), "@amir", "Task overdue"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotBody["recipient"] != "@amir" || gotBody["text"] != "Task overdue" || gotBody["format"] != "markdown" {
		t.Fatalf("body = %+v", gotBody)
	}
}
