package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/aidar/taskhub/internal/domain"
	"github.com/aidar/taskhub/internal/repository"
)

// Authorizer gates operations on roles and team membership.
// Admins get no implicit membership: team-scoped checks apply to everyone.
type Authorizer struct {
	teamRepo    repository.TeamRepository
	projectRepo repository.ProjectRepository
	taskRepo    repository.TaskRepository
}

// NewAuthorizer creates a new Authorizer
func NewAuthorizer(
	teamRepo repository.TeamRepository,
	projectRepo repository.ProjectRepository,
	taskRepo repository.TaskRepository,
) *Authorizer {
	return &Authorizer{
		teamRepo:    teamRepo,
		projectRepo: projectRepo,
		taskRepo:    taskRepo,
	}
}

// RequireRole fails with ErrAdminRequired unless the user has the given role
func (a *Authorizer) RequireRole(user *domain.User, role domain.Role) error {
	if user == nil || user.Role != role {
		return domain.ErrAdminRequired
	}
	return nil
}

// RequireTeamMember fails with ErrNotTeamMember when no membership exists
func (a *Authorizer) RequireTeamMember(ctx context.Context, user *domain.User, teamID uuid.UUID) error {
	if _, err := a.teamRepo.GetByID(ctx, teamID); err != nil {
		return err
	}

	isMember, err := a.teamRepo.IsMember(ctx, teamID, user.ID)
	if err != nil {
		return err
	}
	if !isMember {
		return domain.ErrNotTeamMember
	}

	return nil
}

// RequireProjectAccess loads the project and checks membership in its team
func (a *Authorizer) RequireProjectAccess(ctx context.Context, user *domain.User, projectID uuid.UUID) (*domain.Project, error) {
	project, err := a.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if err := a.RequireTeamMember(ctx, user, project.TeamID); err != nil {
		return nil, err
	}

	return project, nil
}

// RequireTaskAccess loads the task and checks access to its project
func (a *Authorizer) RequireTaskAccess(ctx context.Context, user *domain.User, taskID uuid.UUID) (*domain.Task, *domain.Project, error) {
	task, err := a.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}

	project, err := a.RequireProjectAccess(ctx, user, task.ProjectID)
	if err != nil {
		return nil, nil, err
	}

	return task, project, nil
}
