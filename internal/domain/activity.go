package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActivityAction представляет тип события в журнале активности
type ActivityAction string

// Типы событий журнала активности
const (
	ActionProjectUpdated ActivityAction = "project_updated"
	ActionProjectDeleted ActivityAction = "project_deleted"
	ActionTaskCreated    ActivityAction = "task_created"
	ActionTaskUpdated    ActivityAction = "task_updated"
	ActionTaskDeleted    ActivityAction = "task_deleted"
	ActionCommentCreated ActivityAction = "comment_created"
	ActionCommentDeleted ActivityAction = "comment_deleted"
)

// EntityType указывает, к какой сущности относится событие
type EntityType string

// Типы сущностей
const (
	EntityProject EntityType = "project"
	EntityTask    EntityType = "task"
	EntityComment EntityType = "comment"
)

// ActivityLog представляет запись журнала активности проекта.
// Записи только добавляются: не изменяются и не удаляются
type ActivityLog struct {
	ID         int64          `json:"id"`
	Seq        int64          `json:"seq"` // Порядковый номер внутри проекта без пропусков: 1, 2, 3...
	ProjectID  uuid.UUID      `json:"project_id"`
	ActorID    uuid.UUID      `json:"actor_id"`
	Action     ActivityAction `json:"action"`
	EntityType EntityType     `json:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Summary    map[string]any `json:"summary"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ActivityFilter описывает параметры выборки журнала активности.
// BeforeID работает как курсор: возвращаются записи с id меньше указанного
type ActivityFilter struct {
	BeforeID *int64
	Page     Page
}
