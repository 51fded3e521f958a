/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"

	"github.com/friendsincode/grimnir_scheduler/internal/events"
	"github.com/friendsincode/grimnir_scheduler/internal/models"
	"github.com/friendsincode/grimnir_scheduler/internal/playlist"
	"github.com/friendsincode/grimnir_scheduler/internal/schedule"
	"github.com/friendsincode/grimnir_scheduler/internal/scheduler"
	"github.com/friendsincode/grimnir_scheduler/internal/testutil"
)

type fixture struct {
	router http.Handler
	svc    *scheduler.Service
	bus    *events.Bus
}

func newFixture(t *testing.T, install bool) *fixture {
	t.Helper()
	ctx := testutil.TestContext(t)
	db := testutil.OpenSQLite(t)
	if err := db.AutoMigrate(&models.Playlist{}); err != nil {
		t.Fatalf("migrate playlists: %v", err)
	}

	provider := playlist.NewGormProvider(db)
	for _, pl := range []models.Playlist{
		{ID: "1", Title: "Morning Show", PlaylengthMS: int64(time.Hour / time.Millisecond)},
		{ID: "short", Title: "Jingles", PlaylengthMS: int64(10 * time.Minute / time.Millisecond)},
	} {
		pl := pl
		if err := provider.Save(ctx, &pl); err != nil {
			t.Fatalf("save playlist: %v", err)
		}
	}

	bus := events.NewBus()
	svc := scheduler.New(schedule.NewGormStore(db, zerolog.Nop()), nil, nil, bus, zerolog.Nop())
	svc.SetPlaylists(provider)
	if install {
		if err := svc.Install(ctx); err != nil {
			t.Fatalf("install: %v", err)
		}
	}

	r := chi.NewRouter()
	New(svc, provider, bus, zerolog.Nop()).Routes(r)
	return &fixture{router: r, svc: svc, bus: bus}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestUploadPlaylistCollapsesToBoolean(t *testing.T) {
	f := newFixture(t, true)

	if rr := f.do(t, http.MethodPost, "/rpc/uploadPlaylist", `{"playlistId": 1, "playtime": "2004-07-23 10:00:00"}`); rr.Code != http.StatusOK || !decode[uploadPlaylistResponse](t, rr).Result {
		t.Fatalf("expected successful upload, got %d %s", rr.Code, rr.Body.String())
	}

	tests := []struct {
		name string
		body string
	}{
		{"overlap", `{"playlistId": "1", "playtime": "2004-07-23T10:30:00Z"}`},
		{"unknown playlist", `{"playlistId": 42, "playtime": "2004-07-23T15:00:00Z"}`},
		{"missing playlist id", `{"playtime": "2004-07-23T15:00:00Z"}`},
		{"missing playtime", `{"playlistId": 1}`},
		{"bad playtime", `{"playlistId": 1, "playtime": "tomorrow"}`},
		{"fractional id", `{"playlistId": 1.5, "playtime": "2004-07-23T15:00:00Z"}`},
		{"malformed json", `{"playlistId":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, "/rpc/uploadPlaylist", tt.body)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected HTTP 200, got %d", rr.Code)
			}
			if decode[uploadPlaylistResponse](t, rr).Result {
				t.Fatalf("expected result false for %s", tt.body)
			}
		})
	}
}

func TestUploadPlaylistWhenNotInstalled(t *testing.T) {
	f := newFixture(t, false)
	rr := f.do(t, http.MethodPost, "/rpc/uploadPlaylist", `{"playlistId": 1, "playtime": "2004-07-23T10:00:00Z"}`)
	if rr.Code != http.StatusOK || decode[uploadPlaylistResponse](t, rr).Result {
		t.Fatalf("expected false result, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestCreateEntryErrorCodes(t *testing.T) {
	f := newFixture(t, true)

	rr := f.do(t, http.MethodPost, "/api/v1/schedule/entries", `{"playlist_id": "1", "starts_at": "2004-07-23T10:00:00Z"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rr.Code, rr.Body.String())
	}
	entry := decode[models.ScheduleEntry](t, rr)
	if entry.ID == "" || !entry.EndsAt.Equal(time.Date(2004, 7, 23, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected entry %+v", entry)
	}

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"overlap", `{"playlist_id": "short", "starts_at": "2004-07-23T10:50:00Z"}`, http.StatusConflict, "timeframe_unavailable"},
		{"unknown playlist", `{"playlist_id": "nope", "starts_at": "2004-07-23T12:00:00Z"}`, http.StatusNotFound, "playlist_not_found"},
		{"missing playlist", `{"starts_at": "2004-07-23T12:00:00Z"}`, http.StatusBadRequest, "playlist_id_required"},
		{"missing start", `{"playlist_id": "1"}`, http.StatusBadRequest, "starts_at_required"},
		{"bad json", `nope`, http.StatusBadRequest, "invalid_json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, "/api/v1/schedule/entries", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d %s", tt.status, rr.Code, rr.Body.String())
			}
			if got := decode[map[string]string](t, rr)["error"]; got != tt.code {
				t.Fatalf("expected code %q, got %q", tt.code, got)
			}
		})
	}

	// Touching the end of the existing booking is allowed.
	rr = f.do(t, http.MethodPost, "/api/v1/schedule/entries", `{"playlist_id": "short", "starts_at": "2004-07-23T11:00:00Z"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected touching booking to succeed, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestListEntriesAndAvailability(t *testing.T) {
	f := newFixture(t, true)
	for _, start := range []string{"14:00", "10:00", "12:00"} {
		rr := f.do(t, http.MethodPost, "/api/v1/schedule/entries", `{"playlist_id": "1", "starts_at": "2004-07-23 `+start+`"}`)
		if rr.Code != http.StatusCreated {
			t.Fatalf("create %s: %d %s", start, rr.Code, rr.Body.String())
		}
	}

	q := url.Values{"from": {"2004-07-23T09:00:00Z"}, "to": {"2004-07-23T13:00:00Z"}}
	rr := f.do(t, http.MethodGet, "/api/v1/schedule/entries?"+q.Encode(), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rr.Code, rr.Body.String())
	}
	list := decode[entriesResponse](t, rr)
	if len(list.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list.Entries))
	}
	if list.Entries[0].StartsAt.Hour() != 10 || list.Entries[1].StartsAt.Hour() != 12 {
		t.Fatalf("entries out of order: %+v", list.Entries)
	}

	tests := []struct {
		from, to string
		status   int
		want     bool
	}{
		{"2004-07-23T09:00:00Z", "2004-07-23T10:00:00Z", http.StatusOK, true},
		{"2004-07-23T10:30:00Z", "2004-07-23T10:45:00Z", http.StatusOK, false},
		{"2004-07-23T11:00:00Z", "2004-07-23T12:00:00Z", http.StatusOK, true},
	}
	for _, tt := range tests {
		q := url.Values{"from": {tt.from}, "to": {tt.to}}
		rr := f.do(t, http.MethodGet, "/api/v1/schedule/availability?"+q.Encode(), "")
		if rr.Code != tt.status {
			t.Fatalf("availability %s-%s: %d", tt.from, tt.to, rr.Code)
		}
		if got := decode[map[string]any](t, rr)["available"]; got != tt.want {
			t.Fatalf("availability %s-%s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestQueryValidation(t *testing.T) {
	f := newFixture(t, true)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"missing from", "/api/v1/schedule/entries?to=2004-07-23T10:00:00Z", http.StatusBadRequest, "invalid_from"},
		{"bad to", "/api/v1/schedule/availability?from=2004-07-23T10:00:00Z&to=later", http.StatusBadRequest, "invalid_to"},
		{"inverted", "/api/v1/schedule/availability?from=2004-07-23T11:00:00Z&to=2004-07-23T10:00:00Z", http.StatusBadRequest, "invalid_timeframe"},
		{"empty", "/api/v1/schedule/entries?from=2004-07-23T10:00:00Z&to=2004-07-23T10:00:00Z", http.StatusBadRequest, "invalid_timeframe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, http.MethodGet, tt.path, "")
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d %s", tt.status, rr.Code, rr.Body.String())
			}
			if got := decode[map[string]string](t, rr)["error"]; got != tt.code {
				t.Fatalf("expected %q, got %q", tt.code, got)
			}
		})
	}
}

func TestNotInstalledReturns503(t *testing.T) {
	f := newFixture(t, false)

	rr := f.do(t, http.MethodGet, "/api/v1/schedule/availability?from=2004-07-23T10:00:00Z&to=2004-07-23T11:00:00Z", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if got := decode[map[string]string](t, rr)["error"]; got != "schedule_not_installed" {
		t.Fatalf("unexpected code %q", got)
	}

	rr = f.do(t, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || decode[map[string]any](t, rr)["installed"] != false {
		t.Fatalf("unexpected health %d %s", rr.Code, rr.Body.String())
	}
}

func TestExportICal(t *testing.T) {
	f := newFixture(t, true)
	if rr := f.do(t, http.MethodPost, "/api/v1/schedule/entries", `{"playlist_id": "1", "starts_at": "2004-07-23T10:00:00Z"}`); rr.Code != http.StatusCreated {
		t.Fatalf("create: %d", rr.Code)
	}

	rr := f.do(t, http.MethodGet, "/api/v1/schedule/export/ical?from=2004-07-23T00:00:00Z&to=2004-07-24T00:00:00Z", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "schedule-20040723T0000-to-20040724T0000.ics") {
		t.Fatalf("unexpected disposition %q", cd)
	}
	body := rr.Body.String()
	for _, want := range []string{"SUMMARY:Morning Show", "DTSTART:20040723T100000Z", "DTEND:20040723T110000Z"} {
		if !strings.Contains(body, want) {
			t.Fatalf("export missing %q:\n%s", want, body)
		}
	}
}

func TestEventsWebsocketStreamsCreatedEntries(t *testing.T) {
	f := newFixture(t, true)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/schedule/events", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	if _, err := f.svc.UploadPlaylist(ctx, "1", time.Date(2004, 7, 23, 10, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("upload: %v", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var evt streamedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.Type != events.EventScheduleEntryCreated || evt.Payload["playlist_id"] != "1" {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestParseEventTypesIgnoresUnknown(t *testing.T) {
	got := parseEventTypes("schedule.rejected, bogus ,schedule.installed")
	if len(got) != 2 || got[0] != events.EventScheduleRejected || got[1] != events.EventScheduleInstalled {
		t.Fatalf("unexpected types %v", got)
	}
}

func TestParseTimeLayouts(t *testing.T) {
	want := time.Date(2004, 7, 23, 10, 0, 0, 0, time.UTC)
	for _, in := range []string{"2004-07-23T10:00:00Z", "2004-07-23T12:00:00+02:00", "2004-07-23 10:00:00", "2004-07-23T10:00", "2004-07-23 10:00"} {
		got, err := parseTime(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if !got.Equal(want) || got.Location() != time.UTC {
			t.Fatalf("parse %q = %s", in, got)
		}
	}
}

func TestVerifyTimeline(t *testing.T) {
	f := newFixture(t, true)
	if rr := f.do(t, http.MethodPost, "/api/v1/schedule/entries", `{"playlist_id": "1", "starts_at": "2004-07-23T12:00:00Z"}`); rr.Code != http.StatusCreated {
		t.Fatalf("create: %d", rr.Code)
	}

	q := url.Values{"from": {"2004-07-23T10:00:00Z"}, "to": {"2004-07-23T14:00:00Z"}, "max_gap": {"90m"}}
	rr := f.do(t, http.MethodGet, "/api/v1/schedule/verify?"+q.Encode(), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("verify: %d %s", rr.Code, rr.Body.String())
	}
	report := decode[schedule.ValidationReport](t, rr)
	if !report.Consistent || report.Entries != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	// 10:00-12:00 exceeds 90m; 13:00-14:00 does not.
	if len(report.Gaps) != 1 || report.Gaps[0].EndsAt.Hour() != 12 {
		t.Fatalf("unexpected gaps %+v", report.Gaps)
	}

	q.Set("max_gap", "soon")
	rr = f.do(t, http.MethodGet, "/api/v1/schedule/verify?"+q.Encode(), "")
	if rr.Code != http.StatusBadRequest || decode[map[string]string](t, rr)["error"] != "invalid_max_gap" {
		t.Fatalf("expected invalid_max_gap, got %d %s", rr.Code, rr.Body.String())
	}
}
