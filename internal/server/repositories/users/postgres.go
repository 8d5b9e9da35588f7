package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/stagepass/internal/common"
	"github.com/dmitrijs2005/stagepass/internal/dbx"
	"github.com/dmitrijs2005/stagepass/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, password_verifier, role, name, birth_date, number_of_participants, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u            models.User
		role         string
		participants sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordVerifier, &role, &u.Name, &u.BirthDate,
		&participants, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	if participants.Valid {
		n := int(participants.Int64)
		u.NumberOfParticipants = &n
	}
	return &u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO users (id, email, password_verifier, role, name, birth_date, number_of_participants, active)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at
		 `

	var participants any
	if user.NumberOfParticipants != nil {
		participants = int64(*user.NumberOfParticipants)
	}

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.PasswordVerifier, string(user.Role), user.Name, user.BirthDate,
		participants, user.Active).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("email %q: %w", user.Email, common.ErrorAlreadyExists)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// GetUserByEmail matches case-insensitively.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE lower(email) = lower($1)
		 `
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) Lock(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE id = $1
		 FOR UPDATE
		 `
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id string, verifier string) error {
	query :=
		`UPDATE users SET password_verifier = $2, updated_at = NOW()
		 WHERE id = $1
		 `
	return r.exec(ctx, query, id, verifier)
}

func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) error {
	query :=
		`UPDATE users SET active = $2, updated_at = NOW()
		 WHERE id = $1
		 `
	return r.exec(ctx, query, id, active)
}
