package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jorcase/exadocs/internal/domain/model"
)

// RatingRepository — оценки архивов. Уникальность (file_id, user_id)
// обеспечивается индексом, нарушение возвращается как ErrConflict.
type RatingRepository interface {
	Create(ctx context.Context, rt *model.Rating) error
	GetByID(ctx context.Context, id string) (*model.Rating, error)
	ListByFile(ctx context.Context, fileID string, limit, offset int) ([]*model.Rating, error)
	CountByFile(ctx context.Context, fileID string) (int, error)
	Summary(ctx context.Context, fileID string) (*model.RatingSummary, error)
	Update(ctx context.Context, rt *model.Rating) error
	Delete(ctx context.Context, id string) error
}

type ratingRepo struct {
	db DBTX
}

// NewRatingRepository создаёт репозиторий оценок.
func NewRatingRepository(db DBTX) RatingRepository {
	return &ratingRepo{db: db}
}

const ratingColumns = `id, file_id, user_id, score, comment, created_at, updated_at`

func scanRating(row pgx.Row) (*model.Rating, error) {
	rt := &model.Rating{}
	err := row.Scan(&rt.ID, &rt.FileID, &rt.UserID, &rt.Score, &rt.Comment, &rt.CreatedAt, &rt.UpdatedAt)
	return rt, err
}

func (r *ratingRepo) Create(ctx context.Context, rt *model.Rating) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO ratings (id, file_id, user_id, score, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		rt.ID, rt.FileID, rt.UserID, rt.Score, rt.Comment,
	).Scan(&rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "создания оценки")
	}
	return nil
}

func (r *ratingRepo) GetByID(ctx context.Context, id string) (*model.Rating, error) {
	rt, err := scanRating(r.db.QueryRow(ctx, `SELECT `+ratingColumns+` FROM ratings WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "получения оценки")
	}
	return rt, nil
}

func (r *ratingRepo) ListByFile(ctx context.Context, fileID string, limit, offset int) ([]*model.Rating, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+ratingColumns+`
		FROM ratings
		WHERE file_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, fileID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения оценок: %w", err)
	}
	defer rows.Close()

	var result []*model.Rating
	for rows.Next() {
		rt, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования оценки: %w", err)
		}
		result = append(result, rt)
	}
	return result, rows.Err()
}

func (r *ratingRepo) CountByFile(ctx context.Context, fileID string) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM ratings WHERE file_id = $1`, fileID).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта оценок: %w", err)
	}
	return count, nil
}

func (r *ratingRepo) Summary(ctx context.Context, fileID string) (*model.RatingSummary, error) {
	s := &model.RatingSummary{FileID: fileID}
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(AVG(score), 0)::float8, COUNT(*) FROM ratings WHERE file_id = $1`, fileID,
	).Scan(&s.Average, &s.Count)
	if err != nil {
		return nil, fmt.Errorf("ошибка агрегации оценок: %w", err)
	}
	return s, nil
}

func (r *ratingRepo) Update(ctx context.Context, rt *model.Rating) error {
	err := r.db.QueryRow(ctx,
		`UPDATE ratings SET score = $2, comment = $3 WHERE id = $1 RETURNING updated_at`,
		rt.ID, rt.Score, rt.Comment,
	).Scan(&rt.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "обновления оценки")
	}
	return nil
}

func (r *ratingRepo) Delete(ctx context.Context, id string) error {
	return execDelete(ctx, r.db, `DELETE FROM ratings WHERE id = $1`, "оценки", id)
}
