package domain

import (
	"time"

	"github.com/google/uuid"
)

// Comment представляет комментарий к задаче. После создания не изменяется
type Comment struct {
	ID        uuid.UUID `json:"id"`
	TaskID    uuid.UUID `json:"task_id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
