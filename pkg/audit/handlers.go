package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ListEventsHandler handles GET /api/audit/v1/events
// Query params: entityType, entityId, action, actorRole, pageSize, pageToken
func ListEventsHandler(rec *Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ListFilter{
			EntityType: q.Get("entityType"),
			EntityID:   q.Get("entityId"),
			Action:     q.Get("action"),
			ActorRole:  q.Get("actorRole"),
		}

		pageSize := 20
		if ps := q.Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}

		records, nextToken, total, err := rec.List(r.Context(), filter, pageSize, q.Get("pageToken"))
		if errors.Is(err, ErrInvalidPageToken) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list audit events: %v", err))
			return
		}

		events := make([]Event, len(records))
		for i, rr := range records {
			events[i] = ToEvent(rr)
		}
		writeJSON(w, http.StatusOK, EventList{
			Events:        events,
			NextPageToken: nextToken,
			TotalSize:     total,
		})
	}
}

// GetEventHandler handles GET /api/audit/v1/events/{eventId}
func GetEventHandler(rec *Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := chi.URLParam(r, "eventId")
		if eventID == "" {
			writeError(w, http.StatusBadRequest, "missing event ID")
			return
		}

		record, err := rec.Get(r.Context(), eventID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get audit event: %v", err))
			return
		}
		if record == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("audit event %q not found", eventID))
			return
		}
		writeJSON(w, http.StatusOK, ToEvent(*record))
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
