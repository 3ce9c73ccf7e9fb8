package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/billbatista/obra-balance/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type contextKey string

const ProjectIDKey contextKey = "project_id"

// ProjectFinder looks up a project by id, returning nil when it does not exist.
type ProjectFinder interface {
	GetProject(ctx context.Context, projectID uuid.UUID) (*ledger.Project, error)
}

// ProjectContext resolves the {projectID} route parameter to an existing
// project and stores its id in the request context. Requests naming no
// usable project are answered with 404 no_active_project.
func ProjectContext(finder ProjectFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
			if err != nil || projectID == uuid.Nil {
				slog.Info("invalid project id", "project_id", chi.URLParam(r, "projectID"))
				noActiveProject(w)
				return
			}

			project, err := finder.GetProject(r.Context(), projectID)
			if err != nil {
				slog.Error("failed to fetch project", "error", err, "project_id", projectID)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":             "server_error",
					"error_description": "failed to load project",
				})
				return
			}
			if project == nil {
				noActiveProject(w)
				return
			}

			ctx := context.WithValue(r.Context(), ProjectIDKey, projectID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetProjectID extracts the project id stored by ProjectContext.
func GetProjectID(ctx context.Context) (uuid.UUID, bool) {
	projectID, ok := ctx.Value(ProjectIDKey).(uuid.UUID)
	return projectID, ok
}

func noActiveProject(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             "no_active_project",
		"error_description": ledger.ErrNoActiveProject.Error(),
	})
}
