package repository

import (
	"context"
	"fmt"

	"github.com/jorcase/exadocs/internal/domain/model"
)

// ReviewHistoryRepository — история ревью. Только добавление и чтение.
type ReviewHistoryRepository interface {
	Append(ctx context.Context, e *model.ReviewHistoryEntry) error
	// ListByFile возвращает историю архива в хронологическом порядке.
	ListByFile(ctx context.Context, fileID string) ([]*model.ReviewHistoryEntry, error)
}

type reviewHistoryRepo struct {
	db DBTX
}

// NewReviewHistoryRepository создаёт репозиторий истории ревью.
func NewReviewHistoryRepository(db DBTX) ReviewHistoryRepository {
	return &reviewHistoryRepo{db: db}
}

func (r *reviewHistoryRepo) Append(ctx context.Context, e *model.ReviewHistoryEntry) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO review_history (id, file_id, reviewer_id, previous_state, new_state, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		e.ID, e.FileID, e.ReviewerID, e.PreviousState, e.NewState, e.Comment,
	).Scan(&e.CreatedAt)
	if err != nil {
		return mapWriteError(err, "записи истории ревью")
	}
	return nil
}

func (r *reviewHistoryRepo) ListByFile(ctx context.Context, fileID string) ([]*model.ReviewHistoryEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, file_id, reviewer_id, previous_state, new_state, comment, created_at
		FROM review_history
		WHERE file_id = $1
		ORDER BY created_at, id`, fileID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории ревью: %w", err)
	}
	defer rows.Close()

	var result []*model.ReviewHistoryEntry
	for rows.Next() {
		e := &model.ReviewHistoryEntry{}
		if err := rows.Scan(&e.ID, &e.FileID, &e.ReviewerID, &e.PreviousState, &e.NewState, &e.Comment, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования истории: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
