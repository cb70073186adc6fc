package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jorcase/exadocs/internal/domain/model"
)

// UserRepository — пользователи, провизионированные из токенов.
type UserRepository interface {
	// Upsert создаёт пользователя или обновляет имя, email и роли.
	Upsert(ctx context.Context, u *model.User) error
	// GetByID возвращает пользователя по sub.
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Upsert(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, name, email, roles)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, roles = EXCLUDED.roles
		WHERE (users.name, users.email, users.roles) IS DISTINCT FROM
			(EXCLUDED.name, EXCLUDED.email, EXCLUDED.roles)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query, u.ID, u.Name, u.Email, u.Roles).Scan(&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Данные не изменились — строка не обновлялась
		return nil
	}
	if err != nil {
		return fmt.Errorf("ошибка сохранения пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT id, name, email, roles, created_at, updated_at FROM users WHERE id = $1`

	u := &model.User{}
	err := r.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.Roles, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}
