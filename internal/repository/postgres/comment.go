package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aidar/taskhub/internal/domain"
)

// CommentRepository реализует repository.CommentRepository для PostgreSQL
type CommentRepository struct {
	db *pgxpool.Pool
}

// NewCommentRepository создает новый экземпляр CommentRepository
func NewCommentRepository(db *pgxpool.Pool) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create создает комментарий
func (r *CommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	query := `
		INSERT INTO comments (id, task_id, author_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := conn(ctx, r.db).QueryRow(ctx, query, comment.ID, comment.TaskID, comment.AuthorID, comment.Body).
		Scan(&comment.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == codeForeignKeyViolation {
			return domain.ErrTaskNotFound
		}
		return err
	}

	return nil
}

// GetByID получает комментарий по ID
func (r *CommentRepository) GetByID(ctx context.Context, commentID uuid.UUID) (*domain.Comment, error) {
	query := `
		SELECT id, task_id, author_id, body, created_at
		FROM comments
		WHERE id = $1
	`

	var c domain.Comment
	err := conn(ctx, r.db).QueryRow(ctx, query, commentID).Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Body, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCommentNotFound
		}
		return nil, err
	}

	return &c, nil
}

// ListByTask возвращает комментарии задачи по возрастанию created_at
func (r *CommentRepository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Comment, error) {
	query := `
		SELECT id, task_id, author_id, body, created_at
		FROM comments
		WHERE task_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := conn(ctx, r.db).Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []*domain.Comment{}
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, &c)
	}

	return comments, rows.Err()
}

// Delete удаляет комментарий
func (r *CommentRepository) Delete(ctx context.Context, commentID uuid.UUID) error {
	result, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM comments WHERE id = $1`, commentID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrCommentNotFound
	}

	return nil
}
