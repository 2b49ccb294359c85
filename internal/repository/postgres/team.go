package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aidar/taskhub/internal/domain"
)

// TeamRepository реализует repository.TeamRepository для PostgreSQL
type TeamRepository struct {
	db *pgxpool.Pool
}

// NewTeamRepository создает новый экземпляр TeamRepository
func NewTeamRepository(db *pgxpool.Pool) *TeamRepository {
	return &TeamRepository{db: db}
}

// Create создает новую команду
func (r *TeamRepository) Create(ctx context.Context, team *domain.Team) error {
	query := `
		INSERT INTO teams (id, name, created_by)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`

	err := conn(ctx, r.db).QueryRow(ctx, query, team.ID, team.Name, team.CreatedBy).
		Scan(&team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		switch pgErrorCode(err) {
		case codeUniqueViolation:
			return domain.ErrTeamExists
		case codeForeignKeyViolation:
			return domain.ErrUserNotFound
		}
		return err
	}

	return nil
}

// GetByID получает команду по ID
func (r *TeamRepository) GetByID(ctx context.Context, teamID uuid.UUID) (*domain.Team, error) {
	query := `
		SELECT id, name, created_by, created_at, updated_at
		FROM teams
		WHERE id = $1
	`

	var team domain.Team
	err := conn(ctx, r.db).QueryRow(ctx, query, teamID).Scan(
		&team.ID,
		&team.Name,
		&team.CreatedBy,
		&team.CreatedAt,
		&team.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTeamNotFound
		}
		return nil, err
	}

	return &team, nil
}

// Lock блокирует строку команды до конца транзакции.
// Пока блокировка держится, в команде нельзя создать проект
func (r *TeamRepository) Lock(ctx context.Context, teamID uuid.UUID) error {
	var one int
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT 1 FROM teams WHERE id = $1 FOR UPDATE`, teamID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTeamNotFound
		}
		return err
	}

	return nil
}

// ListByMember возвращает команды, в которых состоит пользователь
func (r *TeamRepository) ListByMember(ctx context.Context, userID uuid.UUID) ([]*domain.Team, error) {
	query := `
		SELECT t.id, t.name, t.created_by, t.created_at, t.updated_at
		FROM teams t
		INNER JOIN team_members tm ON tm.team_id = t.id
		WHERE tm.user_id = $1
		ORDER BY t.name
	`

	rows, err := conn(ctx, r.db).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := []*domain.Team{}
	for rows.Next() {
		var team domain.Team
		if err := rows.Scan(&team.ID, &team.Name, &team.CreatedBy, &team.CreatedAt, &team.UpdatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, &team)
	}

	return teams, rows.Err()
}

// Delete удаляет команду. Проекты, задачи и членство удаляются каскадно
func (r *TeamRepository) Delete(ctx context.Context, teamID uuid.UUID) error {
	result, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM teams WHERE id = $1`, teamID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrTeamNotFound
	}

	return nil
}

// AddMember добавляет пользователя в команду
func (r *TeamRepository) AddMember(ctx context.Context, teamID, userID uuid.UUID) error {
	query := `INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)`

	_, err := conn(ctx, r.db).Exec(ctx, query, teamID, userID)
	if err != nil {
		switch pgErrorCode(err) {
		case codeUniqueViolation:
			return domain.ErrAlreadyMember
		case codeForeignKeyViolation:
			return domain.ErrUserNotFound
		}
		return err
	}

	return nil
}

// RemoveMember удаляет пользователя из команды
func (r *TeamRepository) RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error {
	query := `DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`

	result, err := conn(ctx, r.db).Exec(ctx, query, teamID, userID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrMemberNotFound
	}

	return nil
}

// IsMember проверяет наличие TeamMembership.
// Внутри транзакции строка членства остается заблокированной на удаление до ее конца
func (r *TeamRepository) IsMember(ctx context.Context, teamID, userID uuid.UUID) (bool, error) {
	query := `SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2 FOR SHARE`

	var one int
	if err := conn(ctx, r.db).QueryRow(ctx, query, teamID, userID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// ListMembers возвращает участников команды в порядке вступления
func (r *TeamRepository) ListMembers(ctx context.Context, teamID uuid.UUID) ([]*domain.TeamMember, error) {
	query := `
		SELECT tm.team_id, u.id, u.email, u.role, tm.created_at
		FROM team_members tm
		INNER JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1
		ORDER BY tm.created_at, u.id
	`

	rows, err := conn(ctx, r.db).Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []*domain.TeamMember{}
	for rows.Next() {
		var member domain.TeamMember
		if err := rows.Scan(&member.TeamID, &member.UserID, &member.Email, &member.Role, &member.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, &member)
	}

	return members, rows.Err()
}
