package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aidar/taskhub/internal/domain"
	"github.com/aidar/taskhub/internal/repository"
)

const (
	maxTitleLength   = 200
	defaultTaskLimit = 50
	maxTaskLimit     = 200
)

// CreateTaskInput holds the fields accepted when creating a task
type CreateTaskInput struct {
	ProjectID   uuid.UUID
	Title       string
	Description string
	Status      domain.TaskStatus
	Priority    domain.TaskPriority
	DueDate     *time.Time
	AssigneeID  *uuid.UUID
}

// TaskService handles business logic for tasks
type TaskService struct {
	tx       repository.Transactor
	taskRepo repository.TaskRepository
	teamRepo repository.TeamRepository
	authz    *Authorizer
	activity *ActivityService
}

// NewTaskService creates a new TaskService
func NewTaskService(
	tx repository.Transactor,
	taskRepo repository.TaskRepository,
	teamRepo repository.TeamRepository,
	authz *Authorizer,
	activity *ActivityService,
) *TaskService {
	return &TaskService{
		tx:       tx,
		taskRepo: taskRepo,
		teamRepo: teamRepo,
		authz:    authz,
		activity: activity,
	}
}

// Create creates a task and records exactly one task_created entry in the same transaction
func (s *TaskService) Create(ctx context.Context, actor *domain.User, in CreateTaskInput) (*domain.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = domain.TaskStatusTodo
	}
	if in.Priority == "" {
		in.Priority = domain.TaskPriorityMedium
	}
	if !in.Status.IsValid() {
		return nil, domain.NewValidationError("status must be one of: todo, in_progress, done")
	}
	if !in.Priority.IsValid() {
		return nil, domain.NewValidationError("priority must be one of: low, medium, high")
	}

	project, err := s.authz.RequireProjectAccess(ctx, actor, in.ProjectID)
	if err != nil {
		return nil, err
	}

	task := &domain.Task{
		ID:          uuid.New(),
		ProjectID:   project.ID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		AssigneeID:  in.AssigneeID,
		CreatedBy:   actor.ID,
	}

	var entry *domain.ActivityLog
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.activity.Lock(ctx, project.ID); err != nil {
			return err
		}
		// Membership is checked under the lock so a concurrent removal cannot slip in between
		if err := s.checkAssignee(ctx, project, in.AssigneeID); err != nil {
			return err
		}
		if err := s.taskRepo.Create(ctx, task); err != nil {
			return err
		}

		var err error
		entry, err = s.activity.Record(ctx, project.ID, actor.ID,
			domain.ActionTaskCreated, domain.EntityTask, task.ID,
			map[string]any{
				"title":    task.Title,
				"status":   string(task.Status),
				"priority": string(task.Priority),
			},
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Publish(ctx, entry)
	return task, nil
}

// Get returns a task the actor can access
func (s *TaskService) Get(ctx context.Context, actor *domain.User, taskID uuid.UUID) (*domain.Task, error) {
	task, _, err := s.authz.RequireTaskAccess(ctx, actor, taskID)
	return task, err
}

// Update applies a partial update. Any status transition is allowed; every effective change is logged
func (s *TaskService) Update(ctx context.Context, actor *domain.User, taskID uuid.UUID, patch domain.TaskPatch) (*domain.Task, error) {
	if patch.IsEmpty() {
		return nil, domain.NewValidationError("nothing to update")
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return nil, domain.NewValidationError("status must be one of: todo, in_progress, done")
	}
	if patch.Priority != nil && !patch.Priority.IsValid() {
		return nil, domain.NewValidationError("priority must be one of: low, medium, high")
	}

	_, project, err := s.authz.RequireTaskAccess(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	var (
		task  *domain.Task
		entry *domain.ActivityLog
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.activity.Lock(ctx, project.ID); err != nil {
			return err
		}

		// The patch is applied to the locked row, not to the copy read during the access check
		var err error
		task, err = s.taskRepo.GetForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if !patch.ClearAssignee {
			if err := s.checkAssignee(ctx, project, patch.AssigneeID); err != nil {
				return err
			}
		}

		previousStatus := task.Status
		changed := task.Apply(patch)
		if len(changed) == 0 {
			return nil
		}

		summary := map[string]any{
			"title":   task.Title,
			"changes": changed,
		}
		if task.Status != previousStatus {
			summary["status_from"] = string(previousStatus)
			summary["status_to"] = string(task.Status)
		}

		if err := s.taskRepo.Update(ctx, task); err != nil {
			return err
		}

		entry, err = s.activity.Record(ctx, project.ID, actor.ID,
			domain.ActionTaskUpdated, domain.EntityTask, task.ID, summary,
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Publish(ctx, entry)
	return task, nil
}

// Delete hard-deletes a task; task_deleted is recorded first in the same transaction
func (s *TaskService) Delete(ctx context.Context, actor *domain.User, taskID uuid.UUID) error {
	_, project, err := s.authz.RequireTaskAccess(ctx, actor, taskID)
	if err != nil {
		return err
	}

	var entry *domain.ActivityLog
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.activity.Lock(ctx, project.ID); err != nil {
			return err
		}
		task, err := s.taskRepo.GetForUpdate(ctx, taskID)
		if err != nil {
			return err
		}

		entry, err = s.activity.Record(ctx, project.ID, actor.ID,
			domain.ActionTaskDeleted, domain.EntityTask, task.ID,
			map[string]any{"title": task.Title},
		)
		if err != nil {
			return err
		}
		return s.taskRepo.Delete(ctx, task.ID)
	})
	if err != nil {
		return err
	}

	s.activity.Publish(ctx, entry)
	return nil
}

// List returns tasks matching the filter, limited to projects of the actor's teams
func (s *TaskService) List(ctx context.Context, actor *domain.User, filter domain.TaskFilter) ([]*domain.Task, error) {
	if filter.ProjectID != nil {
		if _, err := s.authz.RequireProjectAccess(ctx, actor, *filter.ProjectID); err != nil {
			return nil, err
		}
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, domain.NewValidationError("status must be one of: todo, in_progress, done")
	}
	if filter.Priority != nil && !filter.Priority.IsValid() {
		return nil, domain.NewValidationError("priority must be one of: low, medium, high")
	}
	if filter.DueBefore != nil && filter.DueAfter != nil && filter.DueAfter.After(*filter.DueBefore) {
		return nil, domain.NewValidationError("due_after must not be later than due_before")
	}
	if filter.Order == "" {
		filter.Order = domain.SortAsc
	}

	filter.MemberID = actor.ID
	filter.Page = filter.Page.Normalize(defaultTaskLimit, maxTaskLimit)

	return s.taskRepo.List(ctx, filter)
}

// checkAssignee enforces that an assignee belongs to the project's team
func (s *TaskService) checkAssignee(ctx context.Context, project *domain.Project, assigneeID *uuid.UUID) error {
	if assigneeID == nil {
		return nil
	}

	isMember, err := s.teamRepo.IsMember(ctx, project.TeamID, *assigneeID)
	if err != nil {
		return err
	}
	if !isMember {
		return domain.NewValidationError("assignee must be a member of the project's team")
	}

	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return domain.NewValidationError("title is required")
	}
	if len([]rune(title)) > maxTitleLength {
		return domain.NewValidationError("title must be at most %d characters", maxTitleLength)
	}
	return nil
}
