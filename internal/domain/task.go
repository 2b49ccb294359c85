package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus представляет статус задачи
type TaskStatus string

// Возможные статусы задачи. Переходы между статусами не ограничены
const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// IsValid проверяет, что статус входит в допустимый набор
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

// TaskPriority представляет приоритет задачи
type TaskPriority string

// Возможные приоритеты задачи
const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// IsValid проверяет, что приоритет входит в допустимый набор
func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}

// Task представляет задачу внутри проекта
type Task struct {
	ID          uuid.UUID    `json:"id"`
	ProjectID   uuid.UUID    `json:"project_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	AssigneeID  *uuid.UUID   `json:"assignee_id,omitempty"` // Должен состоять в команде проекта
	CreatedBy   uuid.UUID    `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IsOverdue возвращает true если срок задачи прошел, а она не завершена
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.Status == TaskStatusDone {
		return false
	}
	return t.DueDate.Before(now)
}

// TaskPatch описывает частичное обновление задачи. nil означает "не менять"
type TaskPatch struct {
	Title         *string
	Description   *string
	Status        *TaskStatus
	Priority      *TaskPriority
	DueDate       *time.Time
	ClearDueDate  bool
	AssigneeID    *uuid.UUID
	ClearAssignee bool
}

// IsEmpty возвращает true если патч ничего не меняет
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil &&
		p.DueDate == nil && !p.ClearDueDate && p.AssigneeID == nil && !p.ClearAssignee
}

// Apply применяет патч к задаче и возвращает список реально измененных полей
func (t *Task) Apply(p TaskPatch) []string {
	var changed []string

	if p.Title != nil && *p.Title != t.Title {
		t.Title = *p.Title
		changed = append(changed, "title")
	}
	if p.Description != nil && *p.Description != t.Description {
		t.Description = *p.Description
		changed = append(changed, "description")
	}
	if p.Status != nil && *p.Status != t.Status {
		t.Status = *p.Status
		changed = append(changed, "status")
	}
	if p.Priority != nil && *p.Priority != t.Priority {
		t.Priority = *p.Priority
		changed = append(changed, "priority")
	}

	switch {
	case p.ClearDueDate && t.DueDate != nil:
		t.DueDate = nil
		changed = append(changed, "due_date")
	case p.DueDate != nil && (t.DueDate == nil || !t.DueDate.Equal(*p.DueDate)):
		due := *p.DueDate
		t.DueDate = &due
		changed = append(changed, "due_date")
	}

	switch {
	case p.ClearAssignee && t.AssigneeID != nil:
		t.AssigneeID = nil
		changed = append(changed, "assignee_id")
	case p.AssigneeID != nil && (t.AssigneeID == nil || *t.AssigneeID != *p.AssigneeID):
		assignee := *p.AssigneeID
		t.AssigneeID = &assignee
		changed = append(changed, "assignee_id")
	}

	return changed
}

// SortOrder задает направление сортировки по дате создания
type SortOrder string

// Допустимые направления сортировки
const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// TaskFilter описывает параметры выборки задач. Выборка не имеет побочных эффектов
type TaskFilter struct {
	MemberID   uuid.UUID // Ограничивает выборку проектами команд пользователя
	ProjectID  *uuid.UUID
	Status     *TaskStatus
	Priority   *TaskPriority
	AssigneeID *uuid.UUID
	DueBefore  *time.Time
	DueAfter   *time.Time
	Order      SortOrder
	Page       Page
}
