package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"homeline/internal/config"
	"homeline/internal/db"
	"homeline/internal/engine"
	"homeline/internal/migrate"
	"homeline/internal/server"
)

type apiEnv struct {
	Server *httptest.Server
	Engine engine.Engine
}

func newAPIEnv(t *testing.T) apiEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default("agency-1"), nil)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	for _, m := range []engine.MemberCreateOptions{
		{ID: "mem-owner", Name: "Olivia", Role: "owner"},
		{ID: "mem-agent", Name: "Amir", Role: "agent"},
	} {
		m.ActorID = "tester"
		if _, err := eng.CreateMember(ctx, m); err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}
	handler, err := server.New(server.Config{
		Engine: eng,
		Auth:   server.AuthConfig{AllowMemberHeader: true},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return apiEnv{Server: srv, Engine: eng}
}

func (e apiEnv) do(t *testing.T, method, path, memberID string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, e.Server.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if memberID != "" {
		req.Header.Set("X-Member-ID", memberID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("error envelope: %v (%s)", err, data)
	}
	return envelope.Error.Code
}

func TestHealthIsPublic(t *testing.T) {
	env := newAPIEnv(t)
	resp, data := env.do(t, http.MethodGet, "/v0/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body=%s", resp.StatusCode, data)
	}
	if !strings.Contains(string(data), `"ok"`) {
		t.Fatalf("body = %s", data)
	}
}

func TestRequestsWithoutCredentialsAreRejected(t *testing.T) {
	env := newAPIEnv(t)
	resp, data := env.do(t, http.MethodGet, "/v0/leads", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if errorCode(t, data) != "unauthorized" {
		t.Fatalf("code = %s", errorCode(t, data))
	}
}

func TestLeadLifecycleOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	resp, data := env.do(t, http.MethodPost, "/v0/leads", "mem-owner", map[string]any{
		"first_name": "Dana",
		"phone":      "+971501234567",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d body=%s", resp.StatusCode, data)
	}
	var lead struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &lead); err != nil {
		t.Fatal(err)
	}
	if lead.Status != "new" {
		t.Fatalf("status = %s", lead.Status)
	}

	resp, data = env.do(t, http.MethodPost, "/v0/leads/"+lead.ID+"/status", "mem-agent", map[string]any{"status": "contacted"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transition status = %d body=%s", resp.StatusCode, data)
	}

	// illegal edge surfaces as a conflict with a typed code
	resp, data = env.do(t, http.MethodPost, "/v0/leads/"+lead.ID+"/status", "mem-agent", map[string]any{"status": "converted"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("invalid edge status = %d body=%s", resp.StatusCode, data)
	}
	if errorCode(t, data) != "invalid_transition" {
		t.Fatalf("code = %s", errorCode(t, data))
	}
}

func TestOverrideForbiddenForAgents(t *testing.T) {
	env := newAPIEnv(t)
	_, data := env.do(t, http.MethodPost, "/v0/leads", "mem-owner", map[string]any{
		"first_name": "Dana", "phone": "+971501234567",
	})
	var lead struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &lead); err != nil {
		t.Fatal(err)
	}
	resp, data := env.do(t, http.MethodPost, "/v0/leads/"+lead.ID+"/status", "mem-agent", map[string]any{"status": "negotiating"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d body=%s", resp.StatusCode, data)
	}
	if errorCode(t, data) != "forbidden" {
		t.Fatalf("code = %s", errorCode(t, data))
	}
}

func TestUnknownLeadIs404(t *testing.T) {
	env := newAPIEnv(t)
	resp, data := env.do(t, http.MethodGet, "/v0/leads/lead-nope", "mem-agent", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if errorCode(t, data) != "not_found" {
		t.Fatalf("code = %s", errorCode(t, data))
	}
}

func TestMemberCreateRequiresAdminRole(t *testing.T) {
	env := newAPIEnv(t)
	resp, _ := env.do(t, http.MethodPost, "/v0/members", "mem-agent", map[string]any{
		"name": "New Hire", "role": "agent",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPost, "/v0/members", "mem-owner", map[string]any{
		"name": "New Hire", "role": "agent",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner create status = %d", resp.StatusCode)
	}
}

func TestImportAndExportOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	csvData := "FirstName,LastName,Phone,Email,Telegram,WhatsApp,PropertyType,ListingType,Budget,Bedrooms,Districts,Requirements,Source,Status,Priority,Notes\n" +
		"Dana,K,+971501111111,,,,,,,,,,,,,\n"
	req, err := http.NewRequest(http.MethodPost, env.Server.URL+"/v0/leads/import", strings.NewReader(csvData))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("X-Member-ID", "mem-owner")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import status = %d body=%s", resp.StatusCode, data)
	}
	var report struct {
		Success int `json:"success"`
		Failed  int `json:"failed"`
	}
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatal(err)
	}
	if report.Success != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}

	getResp, body := env.do(t, http.MethodGet, "/v0/leads/export", "mem-owner", nil)
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", getResp.StatusCode)
	}
	if ct := getResp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %s", ct)
	}
	if cd := getResp.Header.Get("Content-Disposition"); !strings.Contains(cd, "leads_all_") {
		t.Fatalf("content disposition = %s", cd)
	}
	if !strings.Contains(string(body), "+971501111111") {
		t.Fatalf("export body = %s", body)
	}
}

func TestNotificationsInbox(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()
	l, err := env.Engine.CreateLead(ctx, engine.LeadCreateOptions{
		FirstName: "Dana", Phone: "+971501234567", ActorID: "mem-owner",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AssignLead(ctx, l.ID, "mem-agent", "mem-owner"); err != nil {
		t.Fatal(err)
	}
	resp, data := env.do(t, http.MethodGet, "/v0/notifications?unread=true", "mem-agent", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body=%s", resp.StatusCode, data)
	}
	var inbox struct {
		Notifications []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"notifications"`
		UnreadCount int `json:"unread_count"`
	}
	if err := json.Unmarshal(data, &inbox); err != nil {
		t.Fatal(err)
	}
	if inbox.UnreadCount != 1 || len(inbox.Notifications) != 1 {
		t.Fatalf("inbox = %+v", inbox)
	}
	// the other member cannot read it
	resp, _ = env.do(t, http.MethodPost, "/v0/notifications/"+inbox.Notifications[0].ID+"/read", "mem-owner", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-member read status = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPost, "/v0/notifications/"+inbox.Notifications[0].ID+"/read", "mem-agent", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("read status = %d", resp.StatusCode)
	}
}
