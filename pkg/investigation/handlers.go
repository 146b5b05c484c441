package investigation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vehicle-quality/acd-registry/pkg/audit"
	"github.com/vehicle-quality/acd-registry/pkg/authz"
)

// ProjectList is the response body of the project listing.
type ProjectList struct {
	Projects []*Project `json:"projects"`
}

// AuditTrail is the response body of a project's audit trail.
type AuditTrail struct {
	Events []audit.Event `json:"events"`
}

type statusRequest struct {
	Status Status `json:"status"`
}

func actorFrom(r *http.Request) authz.Role {
	role, _ := authz.RoleFromContext(r.Context())
	return role
}

func filterFrom(r *http.Request) ProjectFilter {
	q := r.URL.Query()
	return ProjectFilter{
		Query:  q.Get("q"),
		Status: q.Get("status"),
		Model:  q.Get("model"),
		Market: q.Get("market"),
	}
}

func listProjectsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := svc.ListProjects(r.Context(), actorFrom(r), filterFrom(r))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ProjectList{Projects: projects})
	}
}

func createProjectHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in CreateProjectInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		project, err := svc.CreateProject(r.Context(), actorFrom(r), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, project)
	}
}

func getProjectHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		project, err := svc.GetProject(r.Context(), actorFrom(r), chi.URLParam(r, "projectId"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, project)
	}
}

func updateStatusHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		project, err := svc.UpdateStatus(r.Context(), actorFrom(r), chi.URLParam(r, "projectId"), req.Status)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, project)
	}
}

func bindSourceHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in BindInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		result, err := svc.BindSource(r.Context(), actorFrom(r), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result.Project)
	}
}

func lookupSourceHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		link, err := svc.LookupSource(r.Context(), actorFrom(r),
			chi.URLParam(r, "sourceType"), chi.URLParam(r, "sourceId"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, link)
	}
}

func exportHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := svc.ExportCSV(r.Context(), actorFrom(r), filterFrom(r), &buf); err != nil {
			writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=projects.csv")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

func projectAuditHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := svc.ProjectAudit(r.Context(), actorFrom(r), chi.URLParam(r, "projectId"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		events := make([]audit.Event, len(records))
		for i, rec := range records {
			events[i] = audit.ToEvent(rec)
		}
		writeJSON(w, http.StatusOK, AuditTrail{Events: events})
	}
}

// writeServiceError maps the error taxonomy onto HTTP status codes. Typed
// errors are written as their own JSON shape.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		validation *ValidationError
		transition *TransitionError
		notFound   *NotFoundError
		conflict   *ConflictError
		forbidden  *authz.AuthorizationError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, validation)
	case errors.As(err, &transition):
		writeJSON(w, http.StatusBadRequest, transition)
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "Not found",
			"code":  notFound.Code,
			"id":    notFound.ID,
		})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, conflict)
	case errors.As(err, &forbidden):
		writeJSON(w, http.StatusForbidden, forbidden)
	default:
		slog.Error("request failed", "component", "investigation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
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
