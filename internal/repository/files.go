package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jorcase/exadocs/internal/domain/model"
)

// FileRepository — CRUD для таблицы files.
// Все чтения исключают мягко удалённые архивы.
type FileRepository interface {
	Create(ctx context.Context, f *model.File) error
	GetByID(ctx context.Context, id string) (*model.File, error)
	// GetForUpdate блокирует строку архива до конца транзакции.
	GetForUpdate(ctx context.Context, id string) (*model.File, error)
	List(ctx context.Context, filters FileListFilters, limit, offset int) ([]*model.File, error)
	Count(ctx context.Context, filters FileListFilters) (int, error)
	// Update обновляет редактируемые поля (без состояния).
	Update(ctx context.Context, f *model.File) error
	// UpdateState меняет состояние и увеличивает version.
	// publish=true задаёт published_at, если он ещё не задан.
	UpdateState(ctx context.Context, f *model.File, stateID string, publish bool) error
	// IncrementVisits увеличивает счётчик просмотров и возвращает новое значение.
	IncrementVisits(ctx context.Context, id string) (int64, error)
	SoftDelete(ctx context.Context, id string) error
	// ExportRows возвращает строки выгрузки для всех активных архивов.
	ExportRows(ctx context.Context) ([]*model.ExportRow, error)

	Save(ctx context.Context, fileID, userID string) error
	Unsave(ctx context.Context, fileID, userID string) error
	ListSaved(ctx context.Context, userID string, limit, offset int) ([]*model.File, error)
	CountSaved(ctx context.Context, userID string) (int, error)
}

// FileListFilters — фильтры для списка архивов.
type FileListFilters struct {
	SubjectID    *string
	CareerID     *string
	CurriculumID *string
	FileTypeID   *string
	StateID      *string
	OwnerID      *string
	// Search — подстрока названия (без учёта регистра)
	Search *string
}

type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий архивов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

const fileColumns = `f.id, f.owner_id, f.subject_id, f.curriculum_id, f.file_type_id, f.state_id,
	f.title, f.description, f.storage_path, f.size_bytes, f.metadata, f.published_at,
	f.visit_count, f.version, f.created_at, f.updated_at, f.deleted_at`

func scanFile(row pgx.Row) (*model.File, error) {
	f := &model.File{}
	err := row.Scan(
		&f.ID, &f.OwnerID, &f.SubjectID, &f.CurriculumID, &f.FileTypeID, &f.StateID,
		&f.Title, &f.Description, &f.StoragePath, &f.SizeBytes, &f.Metadata, &f.PublishedAt,
		&f.VisitCount, &f.Version, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt,
	)
	return f, err
}

func collectFiles(rows pgx.Rows) ([]*model.File, error) {
	defer rows.Close()
	var result []*model.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования архива: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileRepo) Create(ctx context.Context, f *model.File) error {
	if len(f.Metadata) == 0 {
		f.Metadata = []byte("{}")
	}
	query := `
		INSERT INTO files (id, owner_id, subject_id, curriculum_id, file_type_id, state_id,
			title, description, storage_path, size_bytes, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING visit_count, version, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		f.ID, f.OwnerID, f.SubjectID, f.CurriculumID, f.FileTypeID, f.StateID,
		f.Title, f.Description, f.StoragePath, f.SizeBytes, f.Metadata,
	).Scan(&f.VisitCount, &f.Version, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "создания архива")
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, id string) (*model.File, error) {
	f, err := scanFile(r.db.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files f WHERE f.id = $1 AND f.deleted_at IS NULL`, id))
	if err != nil {
		return nil, notFoundOr(err, "получения архива")
	}
	return f, nil
}

func (r *fileRepo) GetForUpdate(ctx context.Context, id string) (*model.File, error) {
	f, err := scanFile(r.db.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files f WHERE f.id = $1 AND f.deleted_at IS NULL FOR UPDATE`, id))
	if err != nil {
		return nil, notFoundOr(err, "блокировки архива")
	}
	return f, nil
}

// buildFileWhere строит WHERE-условие для фильтрации архивов.
func buildFileWhere(filters FileListFilters) *whereBuilder {
	w := &whereBuilder{}
	w.raw("f.deleted_at IS NULL")
	if filters.SubjectID != nil {
		w.add("f.subject_id = ?", *filters.SubjectID)
	}
	if filters.CareerID != nil {
		w.add(`(f.subject_id IN (SELECT subject_id FROM career_subjects WHERE career_id = ?)
			OR f.curriculum_id IN (SELECT id FROM curricula WHERE career_id = ?))`, *filters.CareerID)
	}
	if filters.CurriculumID != nil {
		w.add("f.curriculum_id = ?", *filters.CurriculumID)
	}
	if filters.FileTypeID != nil {
		w.add("f.file_type_id = ?", *filters.FileTypeID)
	}
	if filters.StateID != nil {
		w.add("f.state_id = ?", *filters.StateID)
	}
	if filters.OwnerID != nil {
		w.add("f.owner_id = ?", *filters.OwnerID)
	}
	if filters.Search != nil && *filters.Search != "" {
		w.add("f.title ILIKE '%' || ? || '%'", *filters.Search)
	}
	return w
}

func (r *fileRepo) List(ctx context.Context, filters FileListFilters, limit, offset int) ([]*model.File, error) {
	w := buildFileWhere(filters)
	argNum := w.next()

	query := fmt.Sprintf(`SELECT %s FROM files f %s
		ORDER BY f.created_at DESC
		LIMIT $%d OFFSET $%d`, fileColumns, w.String(), argNum, argNum+1)

	rows, err := r.db.Query(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка архивов: %w", err)
	}
	return collectFiles(rows)
}

func (r *fileRepo) Count(ctx context.Context, filters FileListFilters) (int, error) {
	w := buildFileWhere(filters)
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM files f `+w.String(), w.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта архивов: %w", err)
	}
	return count, nil
}

func (r *fileRepo) Update(ctx context.Context, f *model.File) error {
	query := `
		UPDATE files
		SET subject_id = $2, curriculum_id = $3, file_type_id = $4, title = $5,
			description = $6, storage_path = $7, size_bytes = $8, metadata = $9
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		f.ID, f.SubjectID, f.CurriculumID, f.FileTypeID, f.Title,
		f.Description, f.StoragePath, f.SizeBytes, f.Metadata,
	).Scan(&f.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "обновления архива")
	}
	return nil
}

func (r *fileRepo) UpdateState(ctx context.Context, f *model.File, stateID string, publish bool) error {
	query := `
		UPDATE files
		SET state_id = $2,
			version = version + 1,
			published_at = CASE WHEN $3 AND published_at IS NULL THEN now() ELSE published_at END
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING version, published_at, updated_at`

	err := r.db.QueryRow(ctx, query, f.ID, stateID, publish).Scan(&f.Version, &f.PublishedAt, &f.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "смены состояния архива")
	}
	f.StateID = stateID
	return nil
}

func (r *fileRepo) IncrementVisits(ctx context.Context, id string) (int64, error) {
	var visits int64
	err := r.db.QueryRow(ctx,
		`UPDATE files SET visit_count = visit_count + 1 WHERE id = $1 AND deleted_at IS NULL RETURNING visit_count`,
		id,
	).Scan(&visits)
	if err != nil {
		return 0, notFoundOr(err, "учёта просмотра")
	}
	return visits, nil
}

func (r *fileRepo) SoftDelete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE files SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ошибка удаления архива: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) ExportRows(ctx context.Context) ([]*model.ExportRow, error) {
	// Карьера: из плана обучения, иначе первая по имени карьера материи.
	query := `
		SELECT f.id, f.title, s.name,
			COALESCE(cc.name, (
				SELECT c.name FROM career_subjects cs
				JOIN careers c ON c.id = cs.career_id
				WHERE cs.subject_id = f.subject_id
				ORDER BY c.name LIMIT 1
			), ''),
			COALESCE(cu.name, ''), ft.name, st.name,
			COALESCE(NULLIF(u.name, ''), u.email, ''),
			f.size_bytes, f.visit_count,
			(SELECT AVG(score)::float8 FROM ratings WHERE file_id = f.id),
			f.published_at, f.created_at
		FROM files f
		JOIN subjects s ON s.id = f.subject_id
		JOIN file_types ft ON ft.id = f.file_type_id
		JOIN file_states st ON st.id = f.state_id
		LEFT JOIN curricula cu ON cu.id = f.curriculum_id
		LEFT JOIN careers cc ON cc.id = cu.career_id
		LEFT JOIN users u ON u.id = f.owner_id
		WHERE f.deleted_at IS NULL
		ORDER BY f.created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки для выгрузки: %w", err)
	}
	defer rows.Close()

	var result []*model.ExportRow
	for rows.Next() {
		e := &model.ExportRow{}
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Subject, &e.Career, &e.Curriculum, &e.FileType, &e.State,
			&e.Author, &e.SizeBytes, &e.VisitCount, &e.AverageRating, &e.PublishedAt, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки выгрузки: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// --- Избранное ---

func (r *fileRepo) Save(ctx context.Context, fileID, userID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO file_saves (file_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		fileID, userID)
	if err != nil {
		return mapWriteError(err, "сохранения архива в избранное")
	}
	return nil
}

func (r *fileRepo) Unsave(ctx context.Context, fileID, userID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM file_saves WHERE file_id = $1 AND user_id = $2`, fileID, userID)
	if err != nil {
		return fmt.Errorf("ошибка удаления из избранного: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) ListSaved(ctx context.Context, userID string, limit, offset int) ([]*model.File, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+fileColumns+`
		FROM file_saves fs
		JOIN files f ON f.id = fs.file_id
		WHERE fs.user_id = $1 AND f.deleted_at IS NULL
		ORDER BY fs.created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения избранного: %w", err)
	}
	return collectFiles(rows)
}

func (r *fileRepo) CountSaved(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM file_saves fs
		JOIN files f ON f.id = fs.file_id
		WHERE fs.user_id = $1 AND f.deleted_at IS NULL`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта избранного: %w", err)
	}
	return count, nil
}
