package api

import (
	"net/http"

	"github.com/billbatista/obra-balance/ledger"
)

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.ListProjects(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if projects == nil {
		projects = []ledger.Project{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

type createProjectRequest struct {
	Name string `json:"name"`
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !decode(w, r, &req) {
		return
	}

	project, err := ledger.NewProject(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.projects.CreateProject(r.Context(), project); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"project": project})
}
