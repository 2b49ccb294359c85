package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aidar/taskhub/internal/domain"
)

// TaskRepository реализует repository.TaskRepository для PostgreSQL
type TaskRepository struct {
	db *pgxpool.Pool
}

// NewTaskRepository создает новый экземпляр TaskRepository
func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `t.id, t.project_id, t.title, t.description, t.status, t.priority,
	t.due_date, t.assignee_id, t.created_by, t.created_at, t.updated_at`

// Create создает новую задачу
func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	query := `
		INSERT INTO tasks (id, project_id, title, description, status, priority, due_date, assignee_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := conn(ctx, r.db).QueryRow(ctx, query,
		task.ID,
		task.ProjectID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueDate,
		task.AssigneeID,
		task.CreatedBy,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if pgErrorCode(err) == codeForeignKeyViolation {
			return domain.ErrProjectNotFound
		}
		return err
	}

	return nil
}

// GetByID получает задачу по ID
func (r *TaskRepository) GetByID(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = $1`

	task, err := scanTask(conn(ctx, r.db).QueryRow(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	return task, nil
}

// GetForUpdate получает задачу и блокирует строку до конца транзакции
func (r *TaskRepository) GetForUpdate(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = $1 FOR UPDATE`

	task, err := scanTask(conn(ctx, r.db).QueryRow(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	return task, nil
}

// Update сохраняет все изменяемые поля задачи
func (r *TaskRepository) Update(ctx context.Context, task *domain.Task) error {
	query := `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, priority = $4,
		    due_date = $5, assignee_id = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at
	`

	err := conn(ctx, r.db).QueryRow(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueDate,
		task.AssigneeID,
		task.ID,
	).Scan(&task.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTaskNotFound
		}
		if pgErrorCode(err) == codeForeignKeyViolation {
			return domain.ErrUserNotFound
		}
		return err
	}

	return nil
}

// Delete удаляет задачу вместе с комментариями
func (r *TaskRepository) Delete(ctx context.Context, taskID uuid.UUID) error {
	result, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}

	return nil
}

// UnassignInTeam снимает пользователя с задач всех проектов команды и возвращает измененные задачи
func (r *TaskRepository) UnassignInTeam(ctx context.Context, teamID, userID uuid.UUID) ([]*domain.Task, error) {
	query := `
		UPDATE tasks t
		SET assignee_id = NULL, updated_at = NOW()
		FROM projects p
		WHERE p.id = t.project_id AND p.team_id = $1 AND t.assignee_id = $2
		RETURNING ` + taskColumns

	rows, err := conn(ctx, r.db).Query(ctx, query, teamID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].ProjectID != tasks[j].ProjectID {
			return tasks[i].ProjectID.String() < tasks[j].ProjectID.String()
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// List выполняет выборку задач по фильтру. Выборка всегда ограничена командами filter.MemberID
func (r *TaskRepository) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	query, args := buildTaskListQuery(filter)

	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// buildTaskListQuery собирает SQL запрос и аргументы по фильтру
func buildTaskListQuery(filter domain.TaskFilter) (string, []any) {
	var sb strings.Builder
	args := []any{filter.MemberID}

	sb.WriteString(`SELECT ` + taskColumns + `
		FROM tasks t
		INNER JOIN projects p ON p.id = t.project_id
		INNER JOIN team_members tm ON tm.team_id = p.team_id AND tm.user_id = $1
		WHERE TRUE`)

	where := func(cond string, arg any) {
		args = append(args, arg)
		fmt.Fprintf(&sb, " AND "+cond, len(args))
	}

	if filter.ProjectID != nil {
		where("t.project_id = $%d", *filter.ProjectID)
	}
	if filter.Status != nil {
		where("t.status = $%d", string(*filter.Status))
	}
	if filter.Priority != nil {
		where("t.priority = $%d", string(*filter.Priority))
	}
	if filter.AssigneeID != nil {
		where("t.assignee_id = $%d", *filter.AssigneeID)
	}
	if filter.DueBefore != nil {
		where("t.due_date <= $%d", *filter.DueBefore)
	}
	if filter.DueAfter != nil {
		where("t.due_date >= $%d", *filter.DueAfter)
	}

	order := "ASC"
	if filter.Order == domain.SortDesc {
		order = "DESC"
	}
	fmt.Fprintf(&sb, " ORDER BY t.created_at %s, t.id %s", order, order)

	args = append(args, filter.Page.Limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	args = append(args, filter.Page.Offset)
	fmt.Fprintf(&sb, " OFFSET $%d", len(args))

	return sb.String(), args
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	err := row.Scan(
		&task.ID,
		&task.ProjectID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.DueDate,
		&task.AssigneeID,
		&task.CreatedBy,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}
