package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jorcase/exadocs/internal/domain/model"
)

// CommentRepository — комментарии к архивам.
type CommentRepository interface {
	Create(ctx context.Context, c *model.Comment) error
	GetByID(ctx context.Context, id string) (*model.Comment, error)
	// ListByFile возвращает комментарии: сначала выделенные, затем новые.
	ListByFile(ctx context.Context, fileID string, limit, offset int) ([]*model.Comment, error)
	CountByFile(ctx context.Context, fileID string) (int, error)
	Update(ctx context.Context, c *model.Comment) error
	SetFeatured(ctx context.Context, id string, featured bool) (*model.Comment, error)
	Delete(ctx context.Context, id string) error
}

type commentRepo struct {
	db DBTX
}

// NewCommentRepository создаёт репозиторий комментариев.
func NewCommentRepository(db DBTX) CommentRepository {
	return &commentRepo{db: db}
}

const commentColumns = `id, file_id, author_id, body, featured, created_at, updated_at`

func scanComment(row pgx.Row) (*model.Comment, error) {
	c := &model.Comment{}
	err := row.Scan(&c.ID, &c.FileID, &c.AuthorID, &c.Body, &c.Featured, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *commentRepo) Create(ctx context.Context, c *model.Comment) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO comments (id, file_id, author_id, body, featured)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		c.ID, c.FileID, c.AuthorID, c.Body, c.Featured,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "создания комментария")
	}
	return nil
}

func (r *commentRepo) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	c, err := scanComment(r.db.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "получения комментария")
	}
	return c, nil
}

func (r *commentRepo) ListByFile(ctx context.Context, fileID string, limit, offset int) ([]*model.Comment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE file_id = $1
		ORDER BY featured DESC, created_at DESC
		LIMIT $2 OFFSET $3`, fileID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения комментариев: %w", err)
	}
	defer rows.Close()

	var result []*model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования комментария: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *commentRepo) CountByFile(ctx context.Context, fileID string) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE file_id = $1`, fileID).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта комментариев: %w", err)
	}
	return count, nil
}

func (r *commentRepo) Update(ctx context.Context, c *model.Comment) error {
	err := r.db.QueryRow(ctx,
		`UPDATE comments SET body = $2 WHERE id = $1 RETURNING updated_at`,
		c.ID, c.Body,
	).Scan(&c.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "обновления комментария")
	}
	return nil
}

func (r *commentRepo) SetFeatured(ctx context.Context, id string, featured bool) (*model.Comment, error) {
	c, err := scanComment(r.db.QueryRow(ctx,
		`UPDATE comments SET featured = $2 WHERE id = $1 RETURNING `+commentColumns, id, featured))
	if err != nil {
		return nil, notFoundOr(err, "выделения комментария")
	}
	return c, nil
}

func (r *commentRepo) Delete(ctx context.Context, id string) error {
	return execDelete(ctx, r.db, `DELETE FROM comments WHERE id = $1`, "комментария", id)
}
