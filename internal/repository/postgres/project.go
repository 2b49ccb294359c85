package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aidar/taskhub/internal/domain"
)

// ProjectRepository реализует repository.ProjectRepository для PostgreSQL
type ProjectRepository struct {
	db *pgxpool.Pool
}

// NewProjectRepository создает новый экземпляр ProjectRepository
func NewProjectRepository(db *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `p.id, p.team_id, p.name, p.description, p.created_by, p.created_at, p.updated_at`

// Create создает новый проект
func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	query := `
		INSERT INTO projects (id, team_id, name, description, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := conn(ctx, r.db).QueryRow(ctx, query,
		project.ID, project.TeamID, project.Name, project.Description, project.CreatedBy,
	).Scan(&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		switch pgErrorCode(err) {
		case codeUniqueViolation:
			return domain.ErrProjectExists
		case codeForeignKeyViolation:
			return domain.ErrTeamNotFound
		}
		return err
	}

	return nil
}

// GetByID получает проект по ID
func (r *ProjectRepository) GetByID(ctx context.Context, projectID uuid.UUID) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects p WHERE p.id = $1`

	project, err := scanProject(conn(ctx, r.db).QueryRow(ctx, query, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}

	return project, nil
}

// GetForUpdate получает проект и блокирует строку до конца транзакции
func (r *ProjectRepository) GetForUpdate(ctx context.Context, projectID uuid.UUID) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects p WHERE p.id = $1 FOR UPDATE`

	project, err := scanProject(conn(ctx, r.db).QueryRow(ctx, query, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}

	return project, nil
}

// ListByTeam возвращает проекты команды, упорядоченные по id
func (r *ProjectRepository) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects p WHERE p.team_id = $1 ORDER BY p.id`

	rows, err := conn(ctx, r.db).Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []*domain.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

// ListByMember возвращает проекты команд пользователя
func (r *ProjectRepository) ListByMember(ctx context.Context, userID uuid.UUID, teamID *uuid.UUID) ([]*domain.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects p
		INNER JOIN team_members tm ON tm.team_id = p.team_id AND tm.user_id = $1
		WHERE ($2::uuid IS NULL OR p.team_id = $2)
		ORDER BY p.created_at, p.id
	`

	rows, err := conn(ctx, r.db).Query(ctx, query, userID, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []*domain.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

// Update сохраняет название и описание проекта
func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	query := `
		UPDATE projects
		SET name = $1, description = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`

	err := conn(ctx, r.db).QueryRow(ctx, query, project.Name, project.Description, project.ID).
		Scan(&project.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrProjectNotFound
		}
		if pgErrorCode(err) == codeUniqueViolation {
			return domain.ErrProjectExists
		}
		return err
	}

	return nil
}

// Delete удаляет проект. Задачи и комментарии удаляются каскадно, журнал активности сохраняется
func (r *ProjectRepository) Delete(ctx context.Context, projectID uuid.UUID) error {
	result, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrProjectNotFound
	}

	return nil
}

func scanProject(row pgx.Row) (*domain.Project, error) {
	var project domain.Project
	err := row.Scan(
		&project.ID,
		&project.TeamID,
		&project.Name,
		&project.Description,
		&project.CreatedBy,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &project, nil
}
