package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aidar/taskhub/internal/domain"
	"github.com/aidar/taskhub/internal/repository"
)

// StatsService handles statistics queries
type StatsService struct {
	statsRepo repository.StatsRepository
	authz     *Authorizer
	now       func() time.Time
}

// NewStatsService creates a new StatsService
func NewStatsService(statsRepo repository.StatsRepository, authz *Authorizer) *StatsService {
	return &StatsService{
		statsRepo: statsRepo,
		authz:     authz,
		now:       time.Now,
	}
}

// ProjectStats returns task, comment and activity counters for a project
func (s *StatsService) ProjectStats(ctx context.Context, actor *domain.User, projectID uuid.UUID) (*domain.ProjectStats, error) {
	if _, err := s.authz.RequireProjectAccess(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return s.statsRepo.ProjectStats(ctx, projectID, s.now().UTC())
}
