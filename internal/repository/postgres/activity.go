package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aidar/taskhub/internal/domain"
)

// ActivityRepository реализует repository.ActivityRepository для PostgreSQL
type ActivityRepository struct {
	db *pgxpool.Pool
}

// NewActivityRepository создает новый экземпляр ActivityRepository
func NewActivityRepository(db *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// LockProject берет advisory lock журнала проекта до конца транзакции.
// Повторный вызов в той же транзакции не блокируется
func (r *ActivityRepository) LockProject(ctx context.Context, projectID uuid.UUID) error {
	_, err := conn(ctx, r.db).Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1::uuid::text, 0))`, projectID,
	)
	return err
}

// Append добавляет запись в журнал. Должен вызываться в той же транзакции, что и изменение,
// после LockProject: seq вычисляется как следующий номер в проекте
func (r *ActivityRepository) Append(ctx context.Context, entry *domain.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (project_id, seq, actor_id, action, entity_type, entity_id, summary)
		VALUES (
			$1,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM activity_logs WHERE project_id = $1),
			$2, $3, $4, $5, $6
		)
		RETURNING id, seq, created_at
	`

	summary := entry.Summary
	if summary == nil {
		summary = map[string]any{}
	}

	return conn(ctx, r.db).QueryRow(ctx, query,
		entry.ProjectID,
		entry.ActorID,
		string(entry.Action),
		string(entry.EntityType),
		entry.EntityID,
		summary,
	).Scan(&entry.ID, &entry.Seq, &entry.CreatedAt)
}

// ListByProject возвращает записи проекта от новых к старым
func (r *ActivityRepository) ListByProject(
	ctx context.Context,
	projectID uuid.UUID,
	filter domain.ActivityFilter,
) ([]*domain.ActivityLog, error) {
	query := `
		SELECT id, seq, project_id, actor_id, action, entity_type, entity_id, summary, created_at
		FROM activity_logs
		WHERE project_id = $1 AND ($2::bigint IS NULL OR id < $2)
		ORDER BY id DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := conn(ctx, r.db).Query(ctx, query, projectID, filter.BeforeID, filter.Page.Limit, filter.Page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*domain.ActivityLog{}
	for rows.Next() {
		var e domain.ActivityLog
		if err := rows.Scan(
			&e.ID,
			&e.Seq,
			&e.ProjectID,
			&e.ActorID,
			&e.Action,
			&e.EntityType,
			&e.EntityID,
			&e.Summary,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
