package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aidar/taskhub/internal/domain"
)

// StatsRepository реализует repository.StatsRepository для PostgreSQL
type StatsRepository struct {
	db *pgxpool.Pool
}

// NewStatsRepository создает новый экземпляр StatsRepository
func NewStatsRepository(db *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{db: db}
}

// ProjectStats возвращает агрегированную статистику проекта
func (r *StatsRepository) ProjectStats(ctx context.Context, projectID uuid.UUID, now time.Time) (*domain.ProjectStats, error) {
	stats := &domain.ProjectStats{
		ProjectID: projectID,
		ByStatus: map[domain.TaskStatus]int{
			domain.TaskStatusTodo:       0,
			domain.TaskStatusInProgress: 0,
			domain.TaskStatusDone:       0,
		},
		ByPriority: map[domain.TaskPriority]int{
			domain.TaskPriorityLow:    0,
			domain.TaskPriorityMedium: 0,
			domain.TaskPriorityHigh:   0,
		},
	}

	q := conn(ctx, r.db)

	// Распределение задач по статусу и приоритету
	rows, err := q.Query(ctx, `
		SELECT status::text, priority::text, COUNT(*)
		FROM tasks
		WHERE project_id = $1
		GROUP BY status, priority
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status   string
			priority string
			count    int
		)
		if err := rows.Scan(&status, &priority, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[domain.TaskStatus(status)] += count
		stats.ByPriority[domain.TaskPriority(priority)] += count
		stats.TotalTasks += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Просроченные задачи, комментарии и размер журнала
	summaryQuery := `
		SELECT
			(SELECT COUNT(*) FROM tasks
			 WHERE project_id = $1 AND status <> 'done' AND due_date IS NOT NULL AND due_date < $2::date) AS overdue,
			(SELECT COUNT(*) FROM comments c
			 INNER JOIN tasks t ON t.id = c.task_id
			 WHERE t.project_id = $1) AS comments,
			(SELECT COUNT(*) FROM activity_logs WHERE project_id = $1) AS activity
	`

	if err := q.QueryRow(ctx, summaryQuery, projectID, now).Scan(
		&stats.OverdueTasks,
		&stats.Comments,
		&stats.ActivityCount,
	); err != nil {
		return nil, err
	}

	return stats, nil
}
