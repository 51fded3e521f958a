/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/friendsincode/grimnir_scheduler/internal/events"
)

const eventPingInterval = 15 * time.Second

type streamedEvent struct {
	Type    events.EventType `json:"type"`
	Payload events.Payload   `json:"payload"`
}

// handleEvents streams schedule events over a websocket. ?types= takes a
// comma separated list; the default is entry_created only.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	eventTypes := parseEventTypes(r.URL.Query().Get("types"))
	if len(eventTypes) == 0 {
		eventTypes = []events.EventType{events.EventScheduleEntryCreated}
	}

	// Subscribe before the handshake completes so no event published after
	// Dial returns is missed.
	subs := make([]events.Subscriber, len(eventTypes))
	for i, et := range eventTypes {
		subs[i] = a.bus.Subscribe(et)
		defer a.bus.Unsubscribe(et, subs[i])
	}

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	ctx, cancel := context.WithCancel(conn.CloseRead(r.Context()))

	merged := make(chan streamedEvent, 16)
	var wg sync.WaitGroup
	for i, et := range eventTypes {
		wg.Add(1)
		go func(et events.EventType, sub events.Subscriber) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-sub:
					if !ok {
						return
					}
					select {
					case merged <- streamedEvent{Type: et, Payload: payload}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(et, subs[i])
	}
	defer wg.Wait()
	defer cancel()

	ticker := time.NewTicker(eventPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "")
			return
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				a.logger.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		case evt := <-merged:
			if err := a.writeEvent(ctx, conn, evt); err != nil {
				a.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

func (a *API) writeEvent(ctx context.Context, conn *ws.Conn, evt streamedEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, ws.MessageText, data)
}

func parseEventTypes(raw string) []events.EventType {
	if raw == "" {
		return nil
	}
	known := make(map[events.EventType]struct{}, len(events.AllEventTypes))
	for _, et := range events.AllEventTypes {
		known[et] = struct{}{}
	}

	var types []events.EventType
	for _, part := range strings.Split(raw, ",") {
		et := events.EventType(strings.TrimSpace(part))
		if _, ok := known[et]; ok {
			types = append(types, et)
		}
	}
	return types
}
