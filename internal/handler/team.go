package handler

import (
	"net/http"

	"github.com/aidar/taskhub/internal/domain"
	"github.com/aidar/taskhub/internal/middleware"
	"github.com/aidar/taskhub/internal/service"
)

// TeamHandler обрабатывает эндпоинты команд
type TeamHandler struct {
	teamService *service.TeamService
}

// NewTeamHandler создает новый TeamHandler
func NewTeamHandler(teamService *service.TeamService) *TeamHandler {
	return &TeamHandler{
		teamService: teamService,
	}
}

// CreateTeamRequest представляет тело запроса на создание команды
type CreateTeamRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// AddMemberRequest представляет тело запроса на добавление участника
type AddMemberRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

// ListTeamsResponse представляет ответ со списком команд
type ListTeamsResponse struct {
	Teams []*domain.Team `json:"teams"`
}

// ListMembersResponse представляет ответ со списком участников
type ListMembersResponse struct {
	Members []*domain.TeamMember `json:"members"`
}

// Create обрабатывает POST /teams
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTeamRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	team, err := h.teamService.Create(r.Context(), middleware.UserFromContext(r.Context()), req.Name)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusCreated, team)
}

// List обрабатывает GET /teams
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teamService.ListForUser(r.Context(), middleware.UserFromContext(r.Context()))
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, ListTeamsResponse{Teams: nonNil(teams)})
}

// Get обрабатывает GET /teams/{teamID}
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathUUID(r, "teamID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	team, err := h.teamService.Get(r.Context(), middleware.UserFromContext(r.Context()), teamID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, team)
}

// Delete обрабатывает DELETE /teams/{teamID} (только admin)
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathUUID(r, "teamID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	if err := h.teamService.Delete(r.Context(), middleware.UserFromContext(r.Context()), teamID); err != nil {
		HandleError(w, r, err)
		return
	}

	RespondNoContent(w, r)
}

// ListMembers обрабатывает GET /teams/{teamID}/members
func (h *TeamHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathUUID(r, "teamID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	members, err := h.teamService.ListMembers(r.Context(), middleware.UserFromContext(r.Context()), teamID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, ListMembersResponse{Members: nonNil(members)})
}

// AddMember обрабатывает POST /teams/{teamID}/members
func (h *TeamHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathUUID(r, "teamID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	var req AddMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}
	userID, err := parseUUID("user_id", req.UserID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	member, err := h.teamService.AddMember(r.Context(), middleware.UserFromContext(r.Context()), teamID, userID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusCreated, member)
}

// RemoveMember обрабатывает DELETE /teams/{teamID}/members/{userID}
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathUUID(r, "teamID")
	if err != nil {
		HandleError(w, r, err)
		return
	}
	userID, err := pathUUID(r, "userID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	if err := h.teamService.RemoveMember(r.Context(), middleware.UserFromContext(r.Context()), teamID, userID); err != nil {
		HandleError(w, r, err)
		return
	}

	RespondNoContent(w, r)
}
