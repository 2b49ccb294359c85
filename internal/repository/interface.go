package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aidar/taskhub/internal/domain"
)

// Transactor выполняет функцию внутри транзакции БД.
// Репозитории, вызванные с переданным контекстом, работают в этой же транзакции
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository определяет методы для работы с данными пользователей
type UserRepository interface {
	// Create создает пользователя. Занятый email возвращает domain.ErrEmailTaken
	Create(ctx context.Context, user *domain.User) error

	// GetByID получает пользователя по ID
	GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)

	// GetByEmail получает пользователя по email (без учета регистра)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// List возвращает пользователей постранично
	List(ctx context.Context, page domain.Page) ([]*domain.User, error)

	// SetRole обновляет роль пользователя
	SetRole(ctx context.Context, userID uuid.UUID, role domain.Role) error
}

// TeamRepository определяет методы для работы с командами и членством
type TeamRepository interface {
	// Create создает новую команду
	Create(ctx context.Context, team *domain.Team) error

	// GetByID получает команду по ID
	GetByID(ctx context.Context, teamID uuid.UUID) (*domain.Team, error)

	// Lock блокирует команду до конца транзакции
	Lock(ctx context.Context, teamID uuid.UUID) error

	// ListByMember возвращает команды, в которых состоит пользователь
	ListByMember(ctx context.Context, userID uuid.UUID) ([]*domain.Team, error)

	// Delete удаляет команду вместе с проектами
	Delete(ctx context.Context, teamID uuid.UUID) error

	// AddMember добавляет пользователя в команду. Повтор возвращает domain.ErrAlreadyMember
	AddMember(ctx context.Context, teamID, userID uuid.UUID) error

	// RemoveMember удаляет пользователя из команды
	RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error

	// IsMember проверяет наличие TeamMembership
	IsMember(ctx context.Context, teamID, userID uuid.UUID) (bool, error)

	// ListMembers возвращает участников команды
	ListMembers(ctx context.Context, teamID uuid.UUID) ([]*domain.TeamMember, error)
}

// ProjectRepository определяет методы для работы с проектами
type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, projectID uuid.UUID) (*domain.Project, error)

	// GetForUpdate получает проект с блокировкой строки до конца транзакции
	GetForUpdate(ctx context.Context, projectID uuid.UUID) (*domain.Project, error)

	// ListByTeam возвращает проекты команды в порядке id
	ListByTeam(ctx context.Context, teamID uuid.UUID) ([]*domain.Project, error)

	// ListByMember возвращает проекты всех команд пользователя, опционально одной команды
	ListByMember(ctx context.Context, userID uuid.UUID, teamID *uuid.UUID) ([]*domain.Project, error)

	Update(ctx context.Context, project *domain.Project) error
	Delete(ctx context.Context, projectID uuid.UUID) error
}

// TaskRepository определяет методы для работы с задачами
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)

	// GetForUpdate получает задачу с блокировкой строки до конца транзакции
	GetForUpdate(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)

	// Update сохраняет все изменяемые поля задачи
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, taskID uuid.UUID) error

	// UnassignInTeam снимает пользователя со всех задач команды и возвращает эти задачи
	UnassignInTeam(ctx context.Context, teamID, userID uuid.UUID) ([]*domain.Task, error)

	// List выполняет выборку по фильтру, не изменяя данные
	List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error)
}

// CommentRepository определяет методы для работы с комментариями
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	GetByID(ctx context.Context, commentID uuid.UUID) (*domain.Comment, error)

	// ListByTask возвращает комментарии по возрастанию created_at
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Comment, error)
	Delete(ctx context.Context, commentID uuid.UUID) error
}

// ActivityRepository определяет методы для работы с журналом активности.
// Журнал только дополняется: методов изменения и удаления нет
type ActivityRepository interface {
	// LockProject сериализует запись в журнал проекта до конца транзакции
	LockProject(ctx context.Context, projectID uuid.UUID) error

	// Append добавляет запись и присваивает ей id и следующий seq проекта
	Append(ctx context.Context, entry *domain.ActivityLog) error

	// ListByProject возвращает записи проекта от новых к старым
	ListByProject(ctx context.Context, projectID uuid.UUID, filter domain.ActivityFilter) ([]*domain.ActivityLog, error)
}

// StatsRepository определяет агрегирующие запросы для статистики
type StatsRepository interface {
	ProjectStats(ctx context.Context, projectID uuid.UUID, now time.Time) (*domain.ProjectStats, error)
}
