package handler

import (
	"net/http"

	"github.com/aidar/taskhub/internal/middleware"
	"github.com/aidar/taskhub/internal/service"
)

// StatsHandler обрабатывает эндпоинты статистики
type StatsHandler struct {
	statsService *service.StatsService
}

// NewStatsHandler создает новый StatsHandler
func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{
		statsService: statsService,
	}
}

// ProjectStats обрабатывает GET /projects/{projectID}/stats
func (h *StatsHandler) ProjectStats(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	stats, err := h.statsService.ProjectStats(r.Context(), middleware.UserFromContext(r.Context()), projectID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, stats)
}
