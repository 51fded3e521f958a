/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := APIRequestsTotal.WithLabelValues(http.MethodGet, "/things/{id}", "418")
	before := promtestutil.ToFloat64(counter)

	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/things/"+id, nil))
		if rr.Code != http.StatusTeapot {
			t.Fatalf("unexpected status %d", rr.Code)
		}
	}

	if got := promtestutil.ToFloat64(counter) - before; got != 2 {
		t.Fatalf("expected 2 requests on the route pattern, got %v", got)
	}
	if got := promtestutil.ToFloat64(APIActiveConnections); got != 0 {
		t.Fatalf("active connections not released: %v", got)
	}
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	ScheduleEntriesCreatedTotal.Add(0)

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "grimnir_scheduler_schedule_entries_created_total") {
		t.Fatalf("metric missing from output:\n%s", rr.Body.String())
	}
}
