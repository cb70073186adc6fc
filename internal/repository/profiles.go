package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jorcase/exadocs/internal/domain/model"
)

// ProfileRepository — CRUD для таблицы user_profiles.
type ProfileRepository interface {
	Create(ctx context.Context, p *model.UserProfile) error
	GetByID(ctx context.Context, id string) (*model.UserProfile, error)
	GetByUserID(ctx context.Context, userID string) (*model.UserProfile, error)
	List(ctx context.Context, limit, offset int) ([]*model.UserProfile, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, p *model.UserProfile) error
	Delete(ctx context.Context, id string) error
}

type profileRepo struct {
	db DBTX
}

// NewProfileRepository создаёт репозиторий профилей.
func NewProfileRepository(db DBTX) ProfileRepository {
	return &profileRepo{db: db}
}

const profileColumns = `id, user_id, career_id, student_code, bio, avatar_path, created_at, updated_at`

func scanProfile(row pgx.Row) (*model.UserProfile, error) {
	p := &model.UserProfile{}
	err := row.Scan(&p.ID, &p.UserID, &p.CareerID, &p.StudentCode, &p.Bio, &p.AvatarPath, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *profileRepo) Create(ctx context.Context, p *model.UserProfile) error {
	query := `
		INSERT INTO user_profiles (id, user_id, career_id, student_code, bio, avatar_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query, p.ID, p.UserID, p.CareerID, p.StudentCode, p.Bio, p.AvatarPath).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "создания профиля")
	}
	return nil
}

func (r *profileRepo) get(ctx context.Context, where string, arg any) (*model.UserProfile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения профиля: %w", err)
	}
	return p, nil
}

func (r *profileRepo) GetByID(ctx context.Context, id string) (*model.UserProfile, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *profileRepo) GetByUserID(ctx context.Context, userID string) (*model.UserProfile, error) {
	return r.get(ctx, "user_id = $1", userID)
}

func (r *profileRepo) List(ctx context.Context, limit, offset int) ([]*model.UserProfile, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+profileColumns+` FROM user_profiles ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка профилей: %w", err)
	}
	defer rows.Close()

	var result []*model.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования профиля: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *profileRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_profiles`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта профилей: %w", err)
	}
	return count, nil
}

func (r *profileRepo) Update(ctx context.Context, p *model.UserProfile) error {
	query := `
		UPDATE user_profiles
		SET career_id = $2, student_code = $3, bio = $4, avatar_path = $5
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query, p.ID, p.CareerID, p.StudentCode, p.Bio, p.AvatarPath).Scan(&p.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "обновления профиля")
	}
	return nil
}

func (r *profileRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM user_profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления профиля: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
