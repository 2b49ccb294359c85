package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aidar/taskhub/internal/domain"
	"github.com/aidar/taskhub/internal/repository"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// Broadcaster pushes recorded activity to live subscribers of a project
type Broadcaster interface {
	Publish(ctx context.Context, entry *domain.ActivityLog) error
}

// ActivityService appends to the project activity log and fans entries out to subscribers
type ActivityService struct {
	activityRepo repository.ActivityRepository
	authz        *Authorizer
	broadcaster  Broadcaster
	logger       *zap.Logger
}

// NewActivityService creates a new ActivityService. broadcaster may be nil when the live feed is disabled
func NewActivityService(
	activityRepo repository.ActivityRepository,
	authz *Authorizer,
	broadcaster Broadcaster,
	logger *zap.Logger,
) *ActivityService {
	return &ActivityService{
		activityRepo: activityRepo,
		authz:        authz,
		broadcaster:  broadcaster,
		logger:       logger,
	}
}

// Lock serializes writes to the project's log until the transaction ends.
// Call it before taking any row locks so that concurrent changes of one project queue in the same order.
func (s *ActivityService) Lock(ctx context.Context, projectID uuid.UUID) error {
	return s.activityRepo.LockProject(ctx, projectID)
}

// Record appends one entry. It must run inside the transaction of the change it describes
func (s *ActivityService) Record(
	ctx context.Context,
	projectID, actorID uuid.UUID,
	action domain.ActivityAction,
	entityType domain.EntityType,
	entityID uuid.UUID,
	summary map[string]any,
) (*domain.ActivityLog, error) {
	entry := &domain.ActivityLog{
		ProjectID:  projectID,
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Summary:    summary,
	}

	// Reentrant within the transaction; a no-op when the caller already holds the lock.
	if err := s.activityRepo.LockProject(ctx, projectID); err != nil {
		return nil, err
	}
	if err := s.activityRepo.Append(ctx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// Publish delivers committed entries to subscribers.
// Delivery is best-effort: failures are logged and never returned to the caller.
func (s *ActivityService) Publish(ctx context.Context, entries ...*domain.ActivityLog) {
	if s.broadcaster == nil {
		return
	}

	for _, entry := range entries {
		if entry == nil {
			continue
		}
		if err := s.broadcaster.Publish(ctx, entry); err != nil {
			s.logger.Warn("failed to publish activity",
				zap.Int64("activity_id", entry.ID),
				zap.Int64("seq", entry.Seq),
				zap.String("project_id", entry.ProjectID.String()),
				zap.Error(err),
			)
		}
	}
}

// List returns the project's activity, newest first
func (s *ActivityService) List(
	ctx context.Context,
	actor *domain.User,
	projectID uuid.UUID,
	filter domain.ActivityFilter,
) ([]*domain.ActivityLog, error) {
	if _, err := s.authz.RequireProjectAccess(ctx, actor, projectID); err != nil {
		return nil, err
	}

	filter.Page = filter.Page.Normalize(defaultActivityLimit, maxActivityLimit)
	return s.activityRepo.ListByProject(ctx, projectID, filter)
}

// CanSubscribe checks that the user may follow the project's live feed
func (s *ActivityService) CanSubscribe(ctx context.Context, actor *domain.User, projectID uuid.UUID) error {
	_, err := s.authz.RequireProjectAccess(ctx, actor, projectID)
	return err
}

// LastSeq returns the seq of the project's newest entry, or zero for an empty log.
// A live subscriber starts expecting the entry right after it.
func (s *ActivityService) LastSeq(ctx context.Context, projectID uuid.UUID) (int64, error) {
	entries, err := s.activityRepo.ListByProject(ctx, projectID, domain.ActivityFilter{Page: domain.Page{Limit: 1}})
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[0].Seq, nil
}
