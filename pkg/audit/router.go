package audit

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the audit browser API. Audit reads are open
// to every role, so no permission check is mounted here.
func Router(rec *Recorder) chi.Router {
	r := chi.NewRouter()
	r.Get("/events", ListEventsHandler(rec))
	r.Get("/events/{eventId}", GetEventHandler(rec))
	return r
}
