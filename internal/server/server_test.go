/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_scheduler/internal/config"
)

func newTestServer(t *testing.T, autoInstall bool) *Server {
	t.Helper()
	cfg := &config.Config{
		Environment:    "test",
		HTTPBind:       "127.0.0.1",
		HTTPPort:       0,
		DBBackend:      config.DatabaseSQLite,
		DBDSN:          filepath.Join(t.TempDir(), "sched.db") + "?_busy_timeout=5000&_txlock=immediate",
		DBMaxIdleConns: 2,
		DBMaxOpenConns: 4,
		AutoInstall:    autoInstall,
		MetricsEnabled: true,
		LockBackend:    config.LockLocal,
	}
	srv, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestServerWiresSchedulingEndpoints(t *testing.T) {
	srv := newTestServer(t, true)

	rr := get(t, srv.Handler(), "/healthz")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"installed":true`) {
		t.Fatalf("unexpected health %d %s", rr.Code, rr.Body.String())
	}

	rr = get(t, srv.Handler(), "/api/v1/schedule/availability?from=2004-07-23T10:00:00Z&to=2004-07-23T11:00:00Z")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"available":true`) {
		t.Fatalf("unexpected availability %d %s", rr.Code, rr.Body.String())
	}

	rr = get(t, srv.Handler(), "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"grimnir_scheduler_schedule_operations_total", "grimnir_scheduler_api_requests_total", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %s", want)
		}
	}
}

func TestServerWithoutAutoInstall(t *testing.T) {
	srv := newTestServer(t, false)

	rr := get(t, srv.Handler(), "/api/v1/schedule/entries?from=2004-07-23T10:00:00Z&to=2004-07-23T11:00:00Z")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before install, got %d", rr.Code)
	}
	if err := srv.Scheduler().Install(t.Context()); err != nil {
		t.Fatalf("install: %v", err)
	}
	rr = get(t, srv.Handler(), "/api/v1/schedule/entries?from=2004-07-23T10:00:00Z&to=2004-07-23T11:00:00Z")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 after install, got %d", rr.Code)
	}
}

func TestSecurityHeadersMiddleware_BaselineHeaders(t *testing.T) {
	h := securityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := get(t, h, "/api/v1/schedule/entries")

	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options=%q, want nosniff", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options=%q, want DENY", got)
	}
	if got := rr.Header().Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("expected no HSTS on non-HTTPS request, got %q", got)
	}
}

func TestSecurityHeadersMiddleware_SetsHSTSOnHTTPS(t *testing.T) {
	h := securityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("Strict-Transport-Security=%q, want max-age=31536000; includeSubDomains", got)
	}
}
