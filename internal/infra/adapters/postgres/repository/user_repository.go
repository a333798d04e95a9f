package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/TeleVisit/internal/domain/models"
	"github.com/qrave1/TeleVisit/internal/domain/repository"
)

// 23505 - unique_violation
const uniqueViolation = "23505"

type userRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) repository.UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, username, password, role, display_name, created_at, updated_at)
		VALUES (:id, :username, :password, :role, :display_name, :created_at, :updated_at)`

	res, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("create user %s: %w", user.Username, repository.ErrAlreadyExists)
		}

		return fmt.Errorf("create user: %w", err)
	}

	if aff, err := res.RowsAffected(); aff == 0 || err != nil {
		return fmt.Errorf("create user no rows affected: %w", err)
	}

	return nil
}

func (r *userRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User

	query := "SELECT id, username, password, role, display_name, created_at, updated_at FROM users WHERE id = $1"

	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, wrapNotFound(err, "get user by id")
	}

	return &user, nil
}

func (r *userRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User

	query := "SELECT id, username, password, role, display_name, created_at, updated_at FROM users WHERE username = $1"

	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		return nil, wrapNotFound(err, "get user by username")
	}

	return &user, nil
}

func wrapNotFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return fmt.Errorf("%s: %w", op, err)
}
