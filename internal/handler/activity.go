package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aidar/taskhub/internal/domain"
	"github.com/aidar/taskhub/internal/middleware"
	"github.com/aidar/taskhub/internal/realtime"
	"github.com/aidar/taskhub/internal/service"
)

// ActivityHandler обрабатывает журнал активности проекта и его websocket поток
type ActivityHandler struct {
	activityService *service.ActivityService
	hub             *realtime.Hub
	upgrader        websocket.Upgrader
	logger          *zap.Logger
}

// NewActivityHandler создает новый ActivityHandler. hub равен nil, если поток отключен
func NewActivityHandler(activityService *service.ActivityService, hub *realtime.Hub, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
		hub:             hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Токен передается явно, cookie не используются
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ListActivityResponse представляет ответ с записями журнала
type ListActivityResponse struct {
	Activity []*domain.ActivityLog `json:"activity"`
}

// List обрабатывает GET /projects/{projectID}/activity?limit=&offset=&before_id=
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	filter, err := parseActivityFilter(r)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	entries, err := h.activityService.List(r.Context(), middleware.UserFromContext(r.Context()), projectID, filter)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, ListActivityResponse{Activity: nonNil(entries)})
}

// parseActivityFilter читает пагинацию и курсор before_id.
// Курсор сравнивается с id, по которому упорядочена выдача
func parseActivityFilter(r *http.Request) (domain.ActivityFilter, error) {
	page, err := parsePage(r)
	if err != nil {
		return domain.ActivityFilter{}, err
	}
	filter := domain.ActivityFilter{Page: page}

	if v := r.URL.Query().Get("before_id"); v != "" {
		beforeID, err := strconv.ParseInt(v, 10, 64)
		if err != nil || beforeID < 1 {
			return filter, domain.NewValidationError("before_id must be a positive integer")
		}
		filter.BeforeID = &beforeID
	}

	return filter, nil
}

// Stream обрабатывает WS /projects/{projectID}/activity/stream.
// Доступ проверяется до upgrade, чтобы ошибка ушла обычным HTTP ответом
func (h *ActivityHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		RespondWithError(w, r, http.StatusNotFound, domain.CodeNotFound, "activity stream is disabled")
		return
	}

	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	user := middleware.UserFromContext(r.Context())
	if err := h.activityService.CanSubscribe(r.Context(), user, projectID); err != nil {
		HandleError(w, r, err)
		return
	}

	// Позиция журнала фиксируется до подписки, чтобы хаб знал, с какого seq продолжать
	lastSeq, err := h.activityService.LastSeq(r.Context(), projectID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrader уже отправил ответ с ошибкой
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := h.hub.SubscribeFrom(projectID, user.ID, lastSeq)
	h.logger.Info("activity stream opened",
		zap.String("project_id", projectID.String()),
		zap.String("user_id", user.ID.String()),
	)

	realtime.NewClient(conn, h.hub, sub, h.logger).Run()

	h.logger.Info("activity stream closed",
		zap.String("project_id", projectID.String()),
		zap.String("user_id", user.ID.String()),
	)
}
