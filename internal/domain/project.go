package domain

import (
	"time"

	"github.com/google/uuid"
)

// Project представляет проект, принадлежащий команде
type Project struct {
	ID          uuid.UUID `json:"id"`
	TeamID      uuid.UUID `json:"team_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectStats содержит агрегированную статистику по задачам проекта
type ProjectStats struct {
	ProjectID     uuid.UUID            `json:"project_id"`
	TotalTasks    int                  `json:"total_tasks"`
	ByStatus      map[TaskStatus]int   `json:"by_status"`
	ByPriority    map[TaskPriority]int `json:"by_priority"`
	OverdueTasks  int                  `json:"overdue_tasks"`
	Comments      int                  `json:"comments"`
	ActivityCount int                  `json:"activity_count"`
}
