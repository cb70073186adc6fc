package repository

import (
	"context"
	"fmt"

	"github.com/jorcase/exadocs/internal/domain/model"
)

// FileStateRepository — состояния ревью архивов.
type FileStateRepository interface {
	Create(ctx context.Context, s *model.FileState) error
	GetByID(ctx context.Context, id string) (*model.FileState, error)
	// GetDefault возвращает состояние новых архивов.
	GetDefault(ctx context.Context) (*model.FileState, error)
	List(ctx context.Context) ([]*model.FileState, error)
	Update(ctx context.Context, s *model.FileState) error
	// ClearDefault снимает признак по умолчанию со всех состояний, кроме exceptID.
	// Вызывается в одной транзакции с назначением нового состояния по умолчанию.
	ClearDefault(ctx context.Context, exceptID string) error
	Delete(ctx context.Context, id string) error
}

type fileStateRepo struct {
	db DBTX
}

// NewFileStateRepository создаёт репозиторий состояний.
func NewFileStateRepository(db DBTX) FileStateRepository {
	return &fileStateRepo{db: db}
}

const fileStateColumns = `id, name, is_final, is_default, publishes, created_at, updated_at`

func (r *fileStateRepo) Create(ctx context.Context, s *model.FileState) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO file_states (id, name, is_final, is_default, publishes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		s.ID, s.Name, s.IsFinal, s.IsDefault, s.Publishes,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "создания состояния")
	}
	return nil
}

func (r *fileStateRepo) one(ctx context.Context, where string, args ...any) (*model.FileState, error) {
	s := &model.FileState{}
	err := r.db.QueryRow(ctx, `SELECT `+fileStateColumns+` FROM file_states WHERE `+where, args...).
		Scan(&s.ID, &s.Name, &s.IsFinal, &s.IsDefault, &s.Publishes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "получения состояния")
	}
	return s, nil
}

func (r *fileStateRepo) GetByID(ctx context.Context, id string) (*model.FileState, error) {
	return r.one(ctx, "id = $1", id)
}

func (r *fileStateRepo) GetDefault(ctx context.Context) (*model.FileState, error) {
	return r.one(ctx, "is_default")
}

func (r *fileStateRepo) List(ctx context.Context) ([]*model.FileState, error) {
	rows, err := r.db.Query(ctx, `SELECT `+fileStateColumns+` FROM file_states ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка состояний: %w", err)
	}
	defer rows.Close()

	var result []*model.FileState
	for rows.Next() {
		s := &model.FileState{}
		if err := rows.Scan(&s.ID, &s.Name, &s.IsFinal, &s.IsDefault, &s.Publishes, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования состояния: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *fileStateRepo) Update(ctx context.Context, s *model.FileState) error {
	err := r.db.QueryRow(ctx, `
		UPDATE file_states SET name = $2, is_final = $3, is_default = $4, publishes = $5
		WHERE id = $1
		RETURNING updated_at`,
		s.ID, s.Name, s.IsFinal, s.IsDefault, s.Publishes,
	).Scan(&s.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "обновления состояния")
	}
	return nil
}

func (r *fileStateRepo) ClearDefault(ctx context.Context, exceptID string) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE file_states SET is_default = false WHERE is_default AND id <> $1`, exceptID,
	); err != nil {
		return fmt.Errorf("ошибка снятия состояния по умолчанию: %w", err)
	}
	return nil
}

func (r *fileStateRepo) Delete(ctx context.Context, id string) error {
	return execDelete(ctx, r.db, `DELETE FROM file_states WHERE id = $1`, "состояния", id)
}
