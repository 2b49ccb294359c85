package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/aidar/taskhub/internal/domain"
	"github.com/aidar/taskhub/internal/repository"
)

const (
	maxCommentLength = 5000
	previewLength    = 80
)

// CommentService handles business logic for task comments. Comments are immutable once created
type CommentService struct {
	tx          repository.Transactor
	commentRepo repository.CommentRepository
	authz       *Authorizer
	activity    *ActivityService
}

// NewCommentService creates a new CommentService
func NewCommentService(
	tx repository.Transactor,
	commentRepo repository.CommentRepository,
	authz *Authorizer,
	activity *ActivityService,
) *CommentService {
	return &CommentService{
		tx:          tx,
		commentRepo: commentRepo,
		authz:       authz,
		activity:    activity,
	}
}

// Create adds a comment. The author must be a member of the task's team
func (s *CommentService) Create(ctx context.Context, actor *domain.User, taskID uuid.UUID, body string) (*domain.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domain.NewValidationError("body is required")
	}
	if len([]rune(body)) > maxCommentLength {
		return nil, domain.NewValidationError("body must be at most %d characters", maxCommentLength)
	}

	task, project, err := s.authz.RequireTaskAccess(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		ID:       uuid.New(),
		TaskID:   task.ID,
		AuthorID: actor.ID,
		Body:     body,
	}

	var entry *domain.ActivityLog
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.activity.Lock(ctx, project.ID); err != nil {
			return err
		}
		if err := s.commentRepo.Create(ctx, comment); err != nil {
			return err
		}

		var err error
		entry, err = s.activity.Record(ctx, project.ID, actor.ID,
			domain.ActionCommentCreated, domain.EntityComment, comment.ID,
			map[string]any{
				"task_id": task.ID.String(),
				"preview": preview(comment.Body),
			},
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Publish(ctx, entry)
	return comment, nil
}

// List returns the task's comments in ascending created_at order
func (s *CommentService) List(ctx context.Context, actor *domain.User, taskID uuid.UUID) ([]*domain.Comment, error) {
	if _, _, err := s.authz.RequireTaskAccess(ctx, actor, taskID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByTask(ctx, taskID)
}

// Delete removes a comment. Only its author or an admin may delete it
func (s *CommentService) Delete(ctx context.Context, actor *domain.User, taskID, commentID uuid.UUID) error {
	task, project, err := s.authz.RequireTaskAccess(ctx, actor, taskID)
	if err != nil {
		return err
	}

	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.TaskID != task.ID {
		return domain.ErrCommentNotFound
	}
	if comment.AuthorID != actor.ID && !actor.IsAdmin() {
		return domain.ErrNotAuthor
	}

	var entry *domain.ActivityLog
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.activity.Lock(ctx, project.ID); err != nil {
			return err
		}

		var err error
		entry, err = s.activity.Record(ctx, project.ID, actor.ID,
			domain.ActionCommentDeleted, domain.EntityComment, comment.ID,
			map[string]any{"task_id": task.ID.String()},
		)
		if err != nil {
			return err
		}
		return s.commentRepo.Delete(ctx, comment.ID)
	})
	if err != nil {
		return err
	}

	s.activity.Publish(ctx, entry)
	return nil
}

func preview(body string) string {
	runes := []rune(body)
	if len(runes) <= previewLength {
		return body
	}
	return string(runes[:previewLength]) + "..."
}
