package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hostpilot/internal/db"
	"hostpilot/internal/models"
)

type echoMCP struct{ last string }

func (e *echoMCP) HandleMessage(_ context.Context, body []byte) []byte {
	e.last = string(body)
	if strings.Contains(e.last, `"id"`) {
		return []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)
	}
	return nil
}

type stubMonitor struct {
	running bool
	sampled int
	alerts  []models.AlertEvent
	last    models.MetricsSnapshot
}

func (m *stubMonitor) Snapshot(context.Context) models.MetricsSnapshot {
	m.sampled++
	return models.MetricsSnapshot{Hostname: "fresh"}
}

func (m *stubMonitor) LastSnapshot() (models.MetricsSnapshot, bool) {
	return m.last, !m.last.Timestamp.IsZero()
}

func (m *stubMonitor) Running() bool               { return m.running }
func (m *stubMonitor) Alerts() []models.AlertEvent { return m.alerts }
func (m *stubMonitor) ClearAlerts()                { m.alerts = nil }

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errors.New("closed") }

func newTestServer(t *testing.T, mon *stubMonitor) (*Server, *db.Repository, *echoMCP) {
	t.Helper()
	sqldb, err := db.Open(db.MemoryPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	if err := db.Migrate(sqldb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := db.NewRepository(sqldb)
	mcp := &echoMCP{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(mcp, mon, repo, sqldb, logger), repo, mcp
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMCPEndpoint(t *testing.T) {
	srv, _, mcp := newTestServer(t, &stubMonitor{})
	h := srv.Routes()

	rec := do(h, http.MethodPost, "/mcp", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("status=%d type=%q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(mcp.last, `"method":"ping"`) {
		t.Fatalf("body not forwarded: %q", mcp.last)
	}
	rec = do(h, http.MethodPost, "/mcp", `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("notification status = %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/mcp", ""); rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /mcp status = %d", rec.Code)
	}
}

func TestStatusUsesLastTickWhileRunning(t *testing.T) {
	ts := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	mon := &stubMonitor{running: true, last: models.MetricsSnapshot{Timestamp: ts, Hostname: "ticked"}}
	srv, _, _ := newTestServer(t, mon)
	h := srv.Routes()

	rec := do(h, http.MethodGet, "/api/status", "")
	if !strings.Contains(rec.Body.String(), `"hostname":"ticked"`) || mon.sampled != 0 {
		t.Fatalf("running status body=%s sampled=%d", rec.Body.String(), mon.sampled)
	}
	mon.running = false
	rec = do(h, http.MethodGet, "/api/status", "")
	if !strings.Contains(rec.Body.String(), `"hostname":"fresh"`) || mon.sampled != 1 {
		t.Fatalf("stopped status body=%s sampled=%d", rec.Body.String(), mon.sampled)
	}
}

func TestAlertsEndpoints(t *testing.T) {
	mon := &stubMonitor{alerts: []models.AlertEvent{{ID: "cpu-usage-1", Kind: models.AlertCPUUsage}}}
	srv, _, _ := newTestServer(t, mon)
	h := srv.Routes()

	var body struct {
		Alerts []models.AlertEvent `json:"alerts"`
	}
	rec := do(h, http.MethodGet, "/api/alerts", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || len(body.Alerts) != 1 {
		t.Fatalf("alerts body=%s err=%v", rec.Body.String(), err)
	}
	if rec := do(h, http.MethodDelete, "/api/alerts", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if len(mon.alerts) != 0 {
		t.Fatal("alerts not cleared")
	}
}

func TestOperationsAndTargets(t *testing.T) {
	srv, repo, _ := newTestServer(t, &stubMonitor{})
	h := srv.Routes()
	ctx := context.Background()
	if err := repo.AddTarget(ctx, models.RemoteTarget{Name: "desk", IP: "10.0.0.9", MAC: "aa:bb:cc:dd:ee:ff"}); err != nil {
		t.Fatalf("add target: %v", err)
	}
	base := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	for i, target := range []string{"desk", "local", "desk"} {
		op := models.RemoteOperation{ID: "op-" + strings.Repeat("x", i+1), Target: target, Kind: models.OpPing, Status: models.StatusPending, Timestamp: base.Add(time.Duration(i) * time.Second)}
		if err := repo.Append(ctx, op); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	var ops struct {
		Operations []models.RemoteOperation `json:"operations"`
	}
	rec := do(h, http.MethodGet, "/api/operations?target=desk", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &ops); err != nil || len(ops.Operations) != 2 {
		t.Fatalf("operations body=%s err=%v", rec.Body.String(), err)
	}
	rec = do(h, http.MethodGet, "/api/operations?limit=1", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &ops); err != nil || len(ops.Operations) != 1 || ops.Operations[0].ID != "op-xxx" {
		t.Fatalf("limited body=%s err=%v", rec.Body.String(), err)
	}
	if rec := do(h, http.MethodGet, "/api/operations?limit=abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", rec.Code)
	}
	rec = do(h, http.MethodGet, "/api/targets", "")
	if !strings.Contains(rec.Body.String(), `"name":"desk"`) {
		t.Fatalf("targets body=%s", rec.Body.String())
	}
}

func TestHealthAndReadiness(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubMonitor{})
	h := srv.Routes()
	if rec := do(h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
	if rec := do(h, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}
	srv.db = downDB{}
	if rec := do(srv.Routes(), http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with db down = %d", rec.Code)
	}
}
