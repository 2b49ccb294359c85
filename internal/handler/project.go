package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/aidar/taskhub/internal/domain"
	"github.com/aidar/taskhub/internal/middleware"
	"github.com/aidar/taskhub/internal/service"
)

// ProjectHandler обрабатывает эндпоинты проектов
type ProjectHandler struct {
	projectService *service.ProjectService
}

// NewProjectHandler создает новый ProjectHandler
func NewProjectHandler(projectService *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
	}
}

// CreateProjectRequest представляет тело запроса на создание проекта
type CreateProjectRequest struct {
	TeamID      string `json:"team_id" validate:"required,uuid"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=2000"`
}

// UpdateProjectRequest представляет тело запроса на изменение проекта
type UpdateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// ListProjectsResponse представляет ответ со списком проектов
type ListProjectsResponse struct {
	Projects []*domain.Project `json:"projects"`
}

// Create обрабатывает POST /projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}
	teamID, err := parseUUID("team_id", req.TeamID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	project, err := h.projectService.Create(r.Context(), middleware.UserFromContext(r.Context()),
		teamID, req.Name, req.Description)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusCreated, project)
}

// List обрабатывает GET /projects?team_id=...
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	var teamID *uuid.UUID
	if v := r.URL.Query().Get("team_id"); v != "" {
		id, err := parseUUID("team_id", v)
		if err != nil {
			HandleError(w, r, err)
			return
		}
		teamID = &id
	}

	projects, err := h.projectService.ListForUser(r.Context(), middleware.UserFromContext(r.Context()), teamID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, ListProjectsResponse{Projects: nonNil(projects)})
}

// Get обрабатывает GET /projects/{projectID}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	project, err := h.projectService.Get(r.Context(), middleware.UserFromContext(r.Context()), projectID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, project)
}

// Update обрабатывает PATCH /projects/{projectID}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	var req UpdateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	project, err := h.projectService.Update(r.Context(), middleware.UserFromContext(r.Context()),
		projectID, req.Name, req.Description)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, project)
}

// Delete обрабатывает DELETE /projects/{projectID}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	if err := h.projectService.Delete(r.Context(), middleware.UserFromContext(r.Context()), projectID); err != nil {
		HandleError(w, r, err)
		return
	}

	RespondNoContent(w, r)
}
