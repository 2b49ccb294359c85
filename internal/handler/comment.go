package handler

import (
	"net/http"

	"github.com/aidar/taskhub/internal/domain"
	"github.com/aidar/taskhub/internal/middleware"
	"github.com/aidar/taskhub/internal/service"
)

// CommentHandler обрабатывает эндпоинты комментариев к задачам
type CommentHandler struct {
	commentService *service.CommentService
}

// NewCommentHandler создает новый CommentHandler
func NewCommentHandler(commentService *service.CommentService) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
	}
}

// CreateCommentRequest представляет тело запроса на создание комментария
type CreateCommentRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}

// ListCommentsResponse представляет ответ со списком комментариев
type ListCommentsResponse struct {
	Comments []*domain.Comment `json:"comments"`
}

// Create обрабатывает POST /tasks/{taskID}/comments
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathUUID(r, "taskID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	var req CreateCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	comment, err := h.commentService.Create(r.Context(), middleware.UserFromContext(r.Context()), taskID, req.Body)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusCreated, comment)
}

// List обрабатывает GET /tasks/{taskID}/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathUUID(r, "taskID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	comments, err := h.commentService.List(r.Context(), middleware.UserFromContext(r.Context()), taskID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, ListCommentsResponse{Comments: nonNil(comments)})
}

// Delete обрабатывает DELETE /tasks/{taskID}/comments/{commentID}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathUUID(r, "taskID")
	if err != nil {
		HandleError(w, r, err)
		return
	}
	commentID, err := pathUUID(r, "commentID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	if err := h.commentService.Delete(r.Context(), middleware.UserFromContext(r.Context()), taskID, commentID); err != nil {
		HandleError(w, r, err)
		return
	}

	RespondNoContent(w, r)
}
