package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/aidar/taskhub/internal/domain"
	"github.com/aidar/taskhub/internal/repository"
)

// ProjectService handles business logic for projects
type ProjectService struct {
	tx          repository.Transactor
	projectRepo repository.ProjectRepository
	authz       *Authorizer
	activity    *ActivityService
}

// NewProjectService creates a new ProjectService
func NewProjectService(
	tx repository.Transactor,
	projectRepo repository.ProjectRepository,
	authz *Authorizer,
	activity *ActivityService,
) *ProjectService {
	return &ProjectService{
		tx:          tx,
		projectRepo: projectRepo,
		authz:       authz,
		activity:    activity,
	}
}

// Create creates a project under a team the actor belongs to.
// The project log starts empty: only changes to an existing project and its tasks are recorded
func (s *ProjectService) Create(
	ctx context.Context,
	actor *domain.User,
	teamID uuid.UUID,
	name, description string,
) (*domain.Project, error) {
	name = strings.TrimSpace(name)
	if err := validateName("name", name); err != nil {
		return nil, err
	}
	if err := s.authz.RequireTeamMember(ctx, actor, teamID); err != nil {
		return nil, err
	}

	project := &domain.Project{
		ID:          uuid.New(),
		TeamID:      teamID,
		Name:        name,
		Description: description,
		CreatedBy:   actor.ID,
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}

	return project, nil
}

// ListForUser returns projects of the actor's teams, optionally of a single team
func (s *ProjectService) ListForUser(ctx context.Context, actor *domain.User, teamID *uuid.UUID) ([]*domain.Project, error) {
	if teamID != nil {
		if err := s.authz.RequireTeamMember(ctx, actor, *teamID); err != nil {
			return nil, err
		}
	}
	return s.projectRepo.ListByMember(ctx, actor.ID, teamID)
}

// Get returns a project the actor can access
func (s *ProjectService) Get(ctx context.Context, actor *domain.User, projectID uuid.UUID) (*domain.Project, error) {
	return s.authz.RequireProjectAccess(ctx, actor, projectID)
}

// Update changes name and/or description
func (s *ProjectService) Update(
	ctx context.Context,
	actor *domain.User,
	projectID uuid.UUID,
	name, description *string,
) (*domain.Project, error) {
	if name == nil && description == nil {
		return nil, domain.NewValidationError("nothing to update")
	}

	var trimmed string
	if name != nil {
		trimmed = strings.TrimSpace(*name)
		if err := validateName("name", trimmed); err != nil {
			return nil, err
		}
	}

	if _, err := s.authz.RequireProjectAccess(ctx, actor, projectID); err != nil {
		return nil, err
	}

	var (
		project *domain.Project
		entry   *domain.ActivityLog
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.activity.Lock(ctx, projectID); err != nil {
			return err
		}

		var err error
		project, err = s.projectRepo.GetForUpdate(ctx, projectID)
		if err != nil {
			return err
		}

		var changed []string
		if name != nil && trimmed != project.Name {
			project.Name = trimmed
			changed = append(changed, "name")
		}
		if description != nil && *description != project.Description {
			project.Description = *description
			changed = append(changed, "description")
		}
		if len(changed) == 0 {
			return nil
		}

		if err := s.projectRepo.Update(ctx, project); err != nil {
			return err
		}

		entry, err = s.activity.Record(ctx, project.ID, actor.ID,
			domain.ActionProjectUpdated, domain.EntityProject, project.ID,
			map[string]any{"name": project.Name, "changes": changed},
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Publish(ctx, entry)
	return project, nil
}

// Delete removes the project; the deletion is logged before the row goes away
func (s *ProjectService) Delete(ctx context.Context, actor *domain.User, projectID uuid.UUID) error {
	if _, err := s.authz.RequireProjectAccess(ctx, actor, projectID); err != nil {
		return err
	}

	var entry *domain.ActivityLog
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.activity.Lock(ctx, projectID); err != nil {
			return err
		}
		project, err := s.projectRepo.GetForUpdate(ctx, projectID)
		if err != nil {
			return err
		}

		entry, err = s.activity.Record(ctx, project.ID, actor.ID,
			domain.ActionProjectDeleted, domain.EntityProject, project.ID,
			map[string]any{"name": project.Name},
		)
		if err != nil {
			return err
		}
		return s.projectRepo.Delete(ctx, project.ID)
	})
	if err != nil {
		return err
	}

	s.activity.Publish(ctx, entry)
	return nil
}
