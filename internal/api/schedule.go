/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/friendsincode/grimnir_scheduler/internal/models"
	"github.com/friendsincode/grimnir_scheduler/internal/schedule"
)

type createEntryRequest struct {
	PlaylistID *flexibleID   `json:"playlist_id"`
	StartsAt   *flexibleTime `json:"starts_at"`
}

type entriesResponse struct {
	From    time.Time              `json:"from"`
	To      time.Time              `json:"to"`
	Entries []models.ScheduleEntry `json:"entries"`
}

// timeframeFromQuery reads ?from&to. ok is false once an error response has
// been written.
func timeframeFromQuery(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	q := r.URL.Query()
	from, err := parseTime(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_from")
		return from, to, false
	}
	to, err = parseTime(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_to")
		return from, to, false
	}
	return from, to, true
}

func (a *API) handleEntriesList(w http.ResponseWriter, r *http.Request) {
	from, to, ok := timeframeFromQuery(w, r)
	if !ok {
		return
	}

	entries, err := a.scheduler.GetScheduleEntries(r.Context(), from, to)
	if err != nil {
		a.writeSchedulerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entriesResponse{From: from, To: to, Entries: entries})
}

func (a *API) handleEntriesCreate(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.PlaylistID == nil || *req.PlaylistID == "" {
		writeError(w, http.StatusBadRequest, "playlist_id_required")
		return
	}
	if req.StartsAt == nil {
		writeError(w, http.StatusBadRequest, "starts_at_required")
		return
	}

	entry, err := a.scheduler.UploadPlaylist(r.Context(), string(*req.PlaylistID), time.Time(*req.StartsAt))
	if err != nil {
		a.writeSchedulerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) handleAvailability(w http.ResponseWriter, r *http.Request) {
	from, to, ok := timeframeFromQuery(w, r)
	if !ok {
		return
	}

	available, err := a.scheduler.IsTimeframeAvailable(r.Context(), from, to)
	if err != nil {
		a.writeSchedulerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":      from,
		"to":        to,
		"available": available,
	})
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	from, to, ok := timeframeFromQuery(w, r)
	if !ok {
		return
	}

	var maxGap time.Duration
	if raw := r.URL.Query().Get("max_gap"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_max_gap")
			return
		}
		maxGap = d
	}

	report, err := a.scheduler.VerifyTimeline(r.Context(), from, to, maxGap)
	if err != nil {
		a.writeSchedulerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleExportICal(w http.ResponseWriter, r *http.Request) {
	from, to, ok := timeframeFromQuery(w, r)
	if !ok {
		return
	}
	tf, err := schedule.NewTimeframe(from, to)
	if err != nil {
		a.writeSchedulerError(w, err)
		return
	}

	entries, err := a.scheduler.GetScheduleEntries(r.Context(), tf.From, tf.To)
	if err != nil {
		a.writeSchedulerError(w, err)
		return
	}

	result := schedule.ExportICal(tf, entries, a.playlistTitle(r), time.Now())

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

// playlistTitle resolves titles through the playlist provider, memoized
// per request. Unknown playlists get the exporter's default summary.
func (a *API) playlistTitle(r *http.Request) func(string) string {
	titles := map[string]string{}
	return func(id string) string {
		if title, ok := titles[id]; ok {
			return title
		}
		title := ""
		if a.playlists != nil {
			if pl, err := a.playlists.Get(r.Context(), id); err == nil {
				title = pl.Title
			}
		}
		titles[id] = title
		return title
	}
}
