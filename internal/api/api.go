/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_scheduler/internal/events"
	"github.com/friendsincode/grimnir_scheduler/internal/playlist"
	"github.com/friendsincode/grimnir_scheduler/internal/schedule"
	"github.com/friendsincode/grimnir_scheduler/internal/scheduler"
	"github.com/friendsincode/grimnir_scheduler/internal/version"
)

// API exposes the scheduling engine over HTTP.
type API struct {
	scheduler *scheduler.Service
	playlists playlist.Provider
	bus       *events.Bus
	logger    zerolog.Logger
}

// New creates the API handler set.
func New(svc *scheduler.Service, playlists playlist.Provider, bus *events.Bus, logger zerolog.Logger) *API {
	return &API{
		scheduler: svc,
		playlists: playlists,
		bus:       bus,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts every endpoint on r.
func (a *API) Routes(r chi.Router) {
	r.Get("/healthz", a.handleHealth)

	r.Post("/rpc/uploadPlaylist", a.handleUploadPlaylist)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Route("/schedule", func(r chi.Router) {
			r.Get("/entries", a.handleEntriesList)
			r.Post("/entries", a.handleEntriesCreate)
			r.Get("/availability", a.handleAvailability)
			r.Get("/verify", a.handleVerify)
			r.Get("/export/ical", a.handleExportICal)
			r.Get("/events", a.handleEvents)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	installed, err := a.scheduler.IsInstalled(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"installed": installed,
		"version":   version.Version,
		"time":      time.Now().UTC(),
	})
}

// errorStatus maps a scheduler error onto an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, schedule.ErrTimeframeUnavailable):
		return http.StatusConflict, "timeframe_unavailable"
	case errors.Is(err, schedule.ErrPlaylistNotFound):
		return http.StatusNotFound, "playlist_not_found"
	case errors.Is(err, schedule.ErrInvalidTimeframe):
		return http.StatusBadRequest, "invalid_timeframe"
	case errors.Is(err, schedule.ErrNotInstalled):
		return http.StatusServiceUnavailable, "schedule_not_installed"
	case errors.Is(err, schedule.ErrAlreadyInstalled):
		return http.StatusConflict, "schedule_already_installed"
	}

	switch schedule.KindOf(err) {
	case schedule.KindInvalidArgument:
		return http.StatusBadRequest, "invalid_argument"
	case schedule.KindStructural:
		return http.StatusServiceUnavailable, "schedule_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (a *API) writeSchedulerError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error().Err(err).Str("code", code).Msg("schedule request failed")
	}
	writeError(w, status, code)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
