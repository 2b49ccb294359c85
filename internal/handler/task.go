package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aidar/taskhub/internal/domain"
	"github.com/aidar/taskhub/internal/middleware"
	"github.com/aidar/taskhub/internal/service"
)

// TaskHandler обрабатывает эндпоинты задач
type TaskHandler struct {
	taskService *service.TaskService
}

// NewTaskHandler создает новый TaskHandler
func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// CreateTaskRequest представляет тело запроса на создание задачи
type CreateTaskRequest struct {
	ProjectID   string     `json:"project_id" validate:"required,uuid"`
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=10000"`
	Status      string     `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *time.Time `json:"due_date"`
	AssigneeID  *string    `json:"assignee_id" validate:"omitempty,uuid"`
}

// UpdateTaskRequest представляет тело запроса на частичное изменение задачи.
// null в due_date или assignee_id снимает значение
type UpdateTaskRequest struct {
	Title       *string             `json:"title" validate:"omitempty,max=200"`
	Description *string             `json:"description" validate:"omitempty,max=10000"`
	Status      *string             `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	Priority    *string             `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     Nullable[time.Time] `json:"due_date"`
	AssigneeID  Nullable[string]    `json:"assignee_id"`
}

// ListTasksResponse представляет ответ со списком задач
type ListTasksResponse struct {
	Tasks []*domain.Task `json:"tasks"`
}

// Create обрабатывает POST /tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	in, err := req.toInput()
	if err != nil {
		HandleError(w, r, err)
		return
	}

	task, err := h.taskService.Create(r.Context(), middleware.UserFromContext(r.Context()), in)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusCreated, task)
}

func (req CreateTaskRequest) toInput() (service.CreateTaskInput, error) {
	projectID, err := parseUUID("project_id", req.ProjectID)
	if err != nil {
		return service.CreateTaskInput{}, err
	}

	in := service.CreateTaskInput{
		ProjectID:   projectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.TaskStatus(req.Status),
		Priority:    domain.TaskPriority(req.Priority),
	}
	if req.DueDate != nil {
		due := req.DueDate.UTC()
		in.DueDate = &due
	}
	if req.AssigneeID != nil {
		assignee, err := parseUUID("assignee_id", *req.AssigneeID)
		if err != nil {
			return service.CreateTaskInput{}, err
		}
		in.AssigneeID = &assignee
	}

	return in, nil
}

// Get обрабатывает GET /tasks/{taskID}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathUUID(r, "taskID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	task, err := h.taskService.Get(r.Context(), middleware.UserFromContext(r.Context()), taskID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, task)
}

// Update обрабатывает PATCH /tasks/{taskID}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathUUID(r, "taskID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	var req UpdateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	patch, err := req.toPatch()
	if err != nil {
		HandleError(w, r, err)
		return
	}

	task, err := h.taskService.Update(r.Context(), middleware.UserFromContext(r.Context()), taskID, patch)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, task)
}

func (req UpdateTaskRequest) toPatch() (domain.TaskPatch, error) {
	patch := domain.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Status != nil {
		status := domain.TaskStatus(*req.Status)
		patch.Status = &status
	}
	if req.Priority != nil {
		priority := domain.TaskPriority(*req.Priority)
		patch.Priority = &priority
	}

	switch {
	case req.DueDate.Null:
		patch.ClearDueDate = true
	case req.DueDate.Set:
		due := req.DueDate.Value.UTC()
		patch.DueDate = &due
	}

	switch {
	case req.AssigneeID.Null:
		patch.ClearAssignee = true
	case req.AssigneeID.Set:
		assignee, err := parseUUID("assignee_id", req.AssigneeID.Value)
		if err != nil {
			return domain.TaskPatch{}, err
		}
		patch.AssigneeID = &assignee
	}

	return patch, nil
}

// Delete обрабатывает DELETE /tasks/{taskID}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathUUID(r, "taskID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	if err := h.taskService.Delete(r.Context(), middleware.UserFromContext(r.Context()), taskID); err != nil {
		HandleError(w, r, err)
		return
	}

	RespondNoContent(w, r)
}

// List обрабатывает GET /tasks?project_id=&status=&priority=&assignee=&due_before=&due_after=&order=&limit=&offset=
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromContext(r.Context())

	filter, err := parseTaskFilter(r, actor.ID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	tasks, err := h.taskService.List(r.Context(), actor, filter)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, ListTasksResponse{Tasks: nonNil(tasks)})
}

// parseTaskFilter разбирает query параметры списка задач. assignee=me подставляет текущего пользователя
func parseTaskFilter(r *http.Request, currentUserID uuid.UUID) (domain.TaskFilter, error) {
	var filter domain.TaskFilter
	q := r.URL.Query()

	page, err := parsePage(r)
	if err != nil {
		return filter, err
	}
	filter.Page = page

	if v := q.Get("project_id"); v != "" {
		id, err := parseUUID("project_id", v)
		if err != nil {
			return filter, err
		}
		filter.ProjectID = &id
	}

	if v := q.Get("status"); v != "" {
		status := domain.TaskStatus(v)
		if !status.IsValid() {
			return filter, domain.NewValidationError("status must be one of: todo, in_progress, done")
		}
		filter.Status = &status
	}

	if v := q.Get("priority"); v != "" {
		priority := domain.TaskPriority(v)
		if !priority.IsValid() {
			return filter, domain.NewValidationError("priority must be one of: low, medium, high")
		}
		filter.Priority = &priority
	}

	if v := q.Get("assignee"); v != "" {
		assignee := currentUserID
		if v != "me" {
			if assignee, err = parseUUID("assignee", v); err != nil {
				return filter, err
			}
		}
		filter.AssigneeID = &assignee
	}

	if v := q.Get("due_before"); v != "" {
		t, err := parseTime("due_before", v, true)
		if err != nil {
			return filter, err
		}
		filter.DueBefore = &t
	}

	if v := q.Get("due_after"); v != "" {
		t, err := parseTime("due_after", v, false)
		if err != nil {
			return filter, err
		}
		filter.DueAfter = &t
	}

	switch order := domain.SortOrder(q.Get("order")); order {
	case "":
	case domain.SortAsc, domain.SortDesc:
		filter.Order = order
	default:
		return filter, domain.NewValidationError("order must be one of: asc, desc")
	}

	return filter, nil
}
