package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aidar/taskhub/internal/domain"
)

// memStore хранит данные всех in-memory репозиториев под одной блокировкой
type memStore struct {
	mu       sync.Mutex
	clock    time.Time
	users    map[uuid.UUID]*domain.User
	teams    map[uuid.UUID]*domain.Team
	members  map[uuid.UUID]map[uuid.UUID]time.Time
	projects map[uuid.UUID]*domain.Project
	tasks    map[uuid.UUID]*domain.Task
	comments []*domain.Comment
	activity []*domain.ActivityLog
}

func newMemStore() *memStore {
	return &memStore{
		clock:    time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		users:    make(map[uuid.UUID]*domain.User),
		teams:    make(map[uuid.UUID]*domain.Team),
		members:  make(map[uuid.UUID]map[uuid.UUID]time.Time),
		projects: make(map[uuid.UUID]*domain.Project),
		tasks:    make(map[uuid.UUID]*domain.Task),
	}
}

// tick возвращает строго возрастающее время, чтобы порядок записей был детерминирован
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// dropTasks повторяет каскадное удаление задач и комментариев проекта. Вызывается под mu
func (s *memStore) dropTasks(projectID uuid.UUID) {
	for id, t := range s.tasks {
		if t.ProjectID != projectID {
			continue
		}
		delete(s.tasks, id)

		kept := s.comments[:0]
		for _, c := range s.comments {
			if c.TaskID != id {
				kept = append(kept, c)
			}
		}
		s.comments = kept
	}
}

type noopTx struct{}

func (noopTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// interleavedTx выполняет before перед телом транзакции, имитируя конкурентную запись между проверкой доступа и блокировкой
type interleavedTx struct {
	before func()
}

func (tx interleavedTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx.before != nil {
		tx.before()
	}
	return fn(ctx)
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}
	user.CreatedAt = r.s.tick()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	r.s.users[user.ID] = &stored
	return nil
}

func (r memUsers) GetByID(_ context.Context, userID uuid.UUID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r memUsers) List(_ context.Context, page domain.Page) ([]*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	users := make([]*domain.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		copied := *u
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return paginate(users, page), nil
}

func (r memUsers) SetRole(_ context.Context, userID uuid.UUID, role domain.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Role = role
	return nil
}

type memTeams struct{ s *memStore }

func (r memTeams) Create(_ context.Context, team *domain.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, t := range r.s.teams {
		if t.Name == team.Name {
			return domain.ErrTeamExists
		}
	}
	team.CreatedAt = r.s.tick()
	team.UpdatedAt = team.CreatedAt
	stored := *team
	r.s.teams[team.ID] = &stored
	r.s.members[team.ID] = make(map[uuid.UUID]time.Time)
	return nil
}

func (r memTeams) GetByID(_ context.Context, teamID uuid.UUID) (*domain.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.teams[teamID]
	if !ok {
		return nil, domain.ErrTeamNotFound
	}
	copied := *t
	return &copied, nil
}

func (r memTeams) Lock(_ context.Context, teamID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.teams[teamID]; !ok {
		return domain.ErrTeamNotFound
	}
	return nil
}

func (r memTeams) ListByMember(_ context.Context, userID uuid.UUID) ([]*domain.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var teams []*domain.Team
	for id, members := range r.s.members {
		if _, ok := members[userID]; ok {
			copied := *r.s.teams[id]
			teams = append(teams, &copied)
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams, nil
}

func (r memTeams) Delete(_ context.Context, teamID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.teams[teamID]; !ok {
		return domain.ErrTeamNotFound
	}
	delete(r.s.teams, teamID)
	delete(r.s.members, teamID)
	for id, p := range r.s.projects {
		if p.TeamID == teamID {
			delete(r.s.projects, id)
			r.s.dropTasks(id)
		}
	}
	return nil
}

func (r memTeams) AddMember(_ context.Context, teamID, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	members, ok := r.s.members[teamID]
	if !ok {
		return domain.ErrTeamNotFound
	}
	if _, ok := r.s.users[userID]; !ok {
		return domain.ErrUserNotFound
	}
	if _, ok := members[userID]; ok {
		return domain.ErrAlreadyMember
	}
	members[userID] = r.s.tick()
	return nil
}

func (r memTeams) RemoveMember(_ context.Context, teamID, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	members := r.s.members[teamID]
	if _, ok := members[userID]; !ok {
		return domain.ErrMemberNotFound
	}
	delete(members, userID)
	return nil
}

func (r memTeams) IsMember(_ context.Context, teamID, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, ok := r.s.members[teamID][userID]
	return ok, nil
}

func (r memTeams) ListMembers(_ context.Context, teamID uuid.UUID) ([]*domain.TeamMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var members []*domain.TeamMember
	for userID, joined := range r.s.members[teamID] {
		u := r.s.users[userID]
		members = append(members, &domain.TeamMember{
			TeamID:   teamID,
			UserID:   userID,
			Email:    u.Email,
			Role:     u.Role,
			JoinedAt: joined,
		})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].JoinedAt.Before(members[j].JoinedAt) })
	return members, nil
}

type memProjects struct{ s *memStore }

func (r memProjects) Create(_ context.Context, project *domain.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.teams[project.TeamID]; !ok {
		return domain.ErrTeamNotFound
	}
	for _, p := range r.s.projects {
		if p.TeamID == project.TeamID && p.Name == project.Name {
			return domain.ErrProjectExists
		}
	}
	project.CreatedAt = r.s.tick()
	project.UpdatedAt = project.CreatedAt
	stored := *project
	r.s.projects[project.ID] = &stored
	return nil
}

func (r memProjects) GetByID(_ context.Context, projectID uuid.UUID) (*domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.projects[projectID]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	copied := *p
	return &copied, nil
}

func (r memProjects) GetForUpdate(ctx context.Context, projectID uuid.UUID) (*domain.Project, error) {
	return r.GetByID(ctx, projectID)
}

func (r memProjects) ListByTeam(_ context.Context, teamID uuid.UUID) ([]*domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var projects []*domain.Project
	for _, p := range r.s.projects {
		if p.TeamID == teamID {
			copied := *p
			projects = append(projects, &copied)
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID.String() < projects[j].ID.String() })
	return projects, nil
}

func (r memProjects) ListByMember(_ context.Context, userID uuid.UUID, teamID *uuid.UUID) ([]*domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var projects []*domain.Project
	for _, p := range r.s.projects {
		if teamID != nil && p.TeamID != *teamID {
			continue
		}
		if _, ok := r.s.members[p.TeamID][userID]; !ok {
			continue
		}
		copied := *p
		projects = append(projects, &copied)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].CreatedAt.Before(projects[j].CreatedAt) })
	return projects, nil
}

func (r memProjects) Update(_ context.Context, project *domain.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.projects[project.ID]; !ok {
		return domain.ErrProjectNotFound
	}
	project.UpdatedAt = r.s.tick()
	stored := *project
	r.s.projects[project.ID] = &stored
	return nil
}

func (r memProjects) Delete(_ context.Context, projectID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.projects[projectID]; !ok {
		return domain.ErrProjectNotFound
	}
	delete(r.s.projects, projectID)
	r.s.dropTasks(projectID)
	return nil
}

type memTasks struct{ s *memStore }

func (r memTasks) Create(_ context.Context, task *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.projects[task.ProjectID]; !ok {
		return domain.ErrProjectNotFound
	}
	task.CreatedAt = r.s.tick()
	task.UpdatedAt = task.CreatedAt
	stored := *task
	r.s.tasks[task.ID] = &stored
	return nil
}

func (r memTasks) GetByID(_ context.Context, taskID uuid.UUID) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	copied := *t
	return &copied, nil
}

func (r memTasks) GetForUpdate(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	return r.GetByID(ctx, taskID)
}

func (r memTasks) UnassignInTeam(_ context.Context, teamID, userID uuid.UUID) ([]*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var tasks []*domain.Task
	for _, t := range r.s.tasks {
		if r.s.projects[t.ProjectID].TeamID != teamID {
			continue
		}
		if t.AssigneeID == nil || *t.AssigneeID != userID {
			continue
		}
		t.AssigneeID = nil
		t.UpdatedAt = r.s.tick()
		copied := *t
		tasks = append(tasks, &copied)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].ProjectID != tasks[j].ProjectID {
			return tasks[i].ProjectID.String() < tasks[j].ProjectID.String()
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (r memTasks) Update(_ context.Context, task *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tasks[task.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	task.UpdatedAt = r.s.tick()
	stored := *task
	r.s.tasks[task.ID] = &stored
	return nil
}

func (r memTasks) Delete(_ context.Context, taskID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tasks[taskID]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(r.s.tasks, taskID)
	return nil
}

func (r memTasks) List(_ context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var tasks []*domain.Task
	for _, t := range r.s.tasks {
		project := r.s.projects[t.ProjectID]
		if _, ok := r.s.members[project.TeamID][filter.MemberID]; !ok {
			continue
		}
		if filter.ProjectID != nil && t.ProjectID != *filter.ProjectID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		if filter.AssigneeID != nil && (t.AssigneeID == nil || *t.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if filter.DueBefore != nil && (t.DueDate == nil || t.DueDate.After(*filter.DueBefore)) {
			continue
		}
		if filter.DueAfter != nil && (t.DueDate == nil || t.DueDate.Before(*filter.DueAfter)) {
			continue
		}
		copied := *t
		tasks = append(tasks, &copied)
	}

	sort.Slice(tasks, func(i, j int) bool {
		if filter.Order == domain.SortDesc {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return paginate(tasks, filter.Page), nil
}

type memComments struct{ s *memStore }

func (r memComments) Create(_ context.Context, comment *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tasks[comment.TaskID]; !ok {
		return domain.ErrTaskNotFound
	}
	comment.CreatedAt = r.s.tick()
	stored := *comment
	r.s.comments = append(r.s.comments, &stored)
	return nil
}

func (r memComments) GetByID(_ context.Context, commentID uuid.UUID) (*domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.comments {
		if c.ID == commentID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, domain.ErrCommentNotFound
}

func (r memComments) ListByTask(_ context.Context, taskID uuid.UUID) ([]*domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	comments := []*domain.Comment{}
	for _, c := range r.s.comments {
		if c.TaskID == taskID {
			copied := *c
			comments = append(comments, &copied)
		}
	}
	return comments, nil
}

func (r memComments) Delete(_ context.Context, commentID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i, c := range r.s.comments {
		if c.ID == commentID {
			r.s.comments = append(r.s.comments[:i], r.s.comments[i+1:]...)
			return nil
		}
	}
	return domain.ErrCommentNotFound
}

type memActivity struct{ s *memStore }

func (memActivity) LockProject(context.Context, uuid.UUID) error {
	return nil
}

func (r memActivity) Append(_ context.Context, entry *domain.ActivityLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var seq int64
	for _, e := range r.s.activity {
		if e.ProjectID == entry.ProjectID && e.Seq > seq {
			seq = e.Seq
		}
	}
	entry.ID = int64(len(r.s.activity) + 1)
	entry.Seq = seq + 1
	entry.CreatedAt = r.s.tick()
	stored := *entry
	r.s.activity = append(r.s.activity, &stored)
	return nil
}

func (r memActivity) ListByProject(_ context.Context, projectID uuid.UUID, filter domain.ActivityFilter) ([]*domain.ActivityLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	entries := []*domain.ActivityLog{}
	for i := len(r.s.activity) - 1; i >= 0; i-- {
		e := r.s.activity[i]
		if e.ProjectID != projectID {
			continue
		}
		if filter.BeforeID != nil && e.ID >= *filter.BeforeID {
			continue
		}
		copied := *e
		entries = append(entries, &copied)
	}
	return paginate(entries, filter.Page), nil
}

// forProject возвращает записи проекта в порядке добавления
func (r memActivity) forProject(projectID uuid.UUID) []*domain.ActivityLog {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var entries []*domain.ActivityLog
	for _, e := range r.s.activity {
		if e.ProjectID == projectID {
			entries = append(entries, e)
		}
	}
	return entries
}

type memStats struct{ s *memStore }

func (r memStats) ProjectStats(_ context.Context, projectID uuid.UUID, now time.Time) (*domain.ProjectStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stats := &domain.ProjectStats{
		ProjectID:  projectID,
		ByStatus:   make(map[domain.TaskStatus]int),
		ByPriority: make(map[domain.TaskPriority]int),
	}
	taskIDs := make(map[uuid.UUID]bool)
	for _, t := range r.s.tasks {
		if t.ProjectID != projectID {
			continue
		}
		taskIDs[t.ID] = true
		stats.TotalTasks++
		stats.ByStatus[t.Status]++
		stats.ByPriority[t.Priority]++
		if t.IsOverdue(now) {
			stats.OverdueTasks++
		}
	}
	for _, c := range r.s.comments {
		if taskIDs[c.TaskID] {
			stats.Comments++
		}
	}
	for _, e := range r.s.activity {
		if e.ProjectID == projectID {
			stats.ActivityCount++
		}
	}
	return stats, nil
}

// recordingBroadcaster запоминает опубликованные записи
type recordingBroadcaster struct {
	mu        sync.Mutex
	published []*domain.ActivityLog
	err       error
}

func (b *recordingBroadcaster) Publish(_ context.Context, entry *domain.ActivityLog) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, entry)
	return nil
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func paginate[T any](items []T, page domain.Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	items = items[page.Offset:]
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}
