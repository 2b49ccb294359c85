package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/aidar/taskhub/internal/domain"
	"github.com/aidar/taskhub/internal/repository"
)

const maxNameLength = 100

// TeamService handles business logic for teams and memberships
type TeamService struct {
	tx          repository.Transactor
	teamRepo    repository.TeamRepository
	userRepo    repository.UserRepository
	projectRepo repository.ProjectRepository
	taskRepo    repository.TaskRepository
	authz       *Authorizer
	activity    *ActivityService
}

// NewTeamService creates a new TeamService
func NewTeamService(
	tx repository.Transactor,
	teamRepo repository.TeamRepository,
	userRepo repository.UserRepository,
	projectRepo repository.ProjectRepository,
	taskRepo repository.TaskRepository,
	authz *Authorizer,
	activity *ActivityService,
) *TeamService {
	return &TeamService{
		tx:          tx,
		teamRepo:    teamRepo,
		userRepo:    userRepo,
		projectRepo: projectRepo,
		taskRepo:    taskRepo,
		authz:       authz,
		activity:    activity,
	}
}

// Create creates a team and makes the creator its first member
func (s *TeamService) Create(ctx context.Context, actor *domain.User, name string) (*domain.Team, error) {
	name = strings.TrimSpace(name)
	if err := validateName("name", name); err != nil {
		return nil, err
	}

	team := &domain.Team{
		ID:        uuid.New(),
		Name:      name,
		CreatedBy: actor.ID,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.teamRepo.Create(ctx, team); err != nil {
			return err
		}
		return s.teamRepo.AddMember(ctx, team.ID, actor.ID)
	})
	if err != nil {
		return nil, err
	}

	return team, nil
}

// ListForUser returns the teams the user belongs to
func (s *TeamService) ListForUser(ctx context.Context, actor *domain.User) ([]*domain.Team, error) {
	return s.teamRepo.ListByMember(ctx, actor.ID)
}

// Get returns a team the user belongs to
func (s *TeamService) Get(ctx context.Context, actor *domain.User, teamID uuid.UUID) (*domain.Team, error) {
	if err := s.authz.RequireTeamMember(ctx, actor, teamID); err != nil {
		return nil, err
	}
	return s.teamRepo.GetByID(ctx, teamID)
}

// Delete removes a team with all its projects. Admin only.
// Every project gets a project_deleted entry before the cascade removes it
func (s *TeamService) Delete(ctx context.Context, actor *domain.User, teamID uuid.UUID) error {
	if err := s.authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return err
	}

	var entries []*domain.ActivityLog
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Holding the team row keeps new projects out until the cascade is done
		if err := s.teamRepo.Lock(ctx, teamID); err != nil {
			return err
		}

		projects, err := s.lockProjects(ctx, teamID)
		if err != nil {
			return err
		}

		for _, project := range projects {
			entry, err := s.activity.Record(ctx, project.ID, actor.ID,
				domain.ActionProjectDeleted, domain.EntityProject, project.ID,
				map[string]any{"name": project.Name},
			)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}

		return s.teamRepo.Delete(ctx, teamID)
	})
	if err != nil {
		return err
	}

	s.activity.Publish(ctx, entries...)
	return nil
}

// AddMember adds an existing user to the team. The actor must be a member
func (s *TeamService) AddMember(ctx context.Context, actor *domain.User, teamID, userID uuid.UUID) (*domain.TeamMember, error) {
	if err := s.authz.RequireTeamMember(ctx, actor, teamID); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.teamRepo.AddMember(ctx, teamID, userID); err != nil {
		return nil, err
	}

	members, err := s.teamRepo.ListMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.UserID == user.ID {
			return m, nil
		}
	}

	return nil, domain.ErrMemberNotFound
}

// RemoveMember removes a user from the team. The actor must be a member.
// The user is unassigned from every task of the team's projects in the same transaction
func (s *TeamService) RemoveMember(ctx context.Context, actor *domain.User, teamID, userID uuid.UUID) error {
	if err := s.authz.RequireTeamMember(ctx, actor, teamID); err != nil {
		return err
	}

	var entries []*domain.ActivityLog
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.lockProjects(ctx, teamID); err != nil {
			return err
		}
		if err := s.teamRepo.RemoveMember(ctx, teamID, userID); err != nil {
			return err
		}

		tasks, err := s.taskRepo.UnassignInTeam(ctx, teamID, userID)
		if err != nil {
			return err
		}

		for _, task := range tasks {
			entry, err := s.activity.Record(ctx, task.ProjectID, actor.ID,
				domain.ActionTaskUpdated, domain.EntityTask, task.ID,
				map[string]any{
					"title":   task.Title,
					"changes": []string{"assignee_id"},
				},
			)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.activity.Publish(ctx, entries...)
	return nil
}

// ListMembers returns the members of a team the actor belongs to
func (s *TeamService) ListMembers(ctx context.Context, actor *domain.User, teamID uuid.UUID) ([]*domain.TeamMember, error) {
	if err := s.authz.RequireTeamMember(ctx, actor, teamID); err != nil {
		return nil, err
	}
	return s.teamRepo.ListMembers(ctx, teamID)
}

// lockProjects takes the activity lock of every project of the team in id order
func (s *TeamService) lockProjects(ctx context.Context, teamID uuid.UUID) ([]*domain.Project, error) {
	projects, err := s.projectRepo.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}

	for _, project := range projects {
		if err := s.activity.Lock(ctx, project.ID); err != nil {
			return nil, err
		}
	}

	return projects, nil
}

func validateName(field, value string) error {
	if value == "" {
		return domain.NewValidationError("%s is required", field)
	}
	if len([]rune(value)) > maxNameLength {
		return domain.NewValidationError("%s must be at most %d characters", field, maxNameLength)
	}
	return nil
}
