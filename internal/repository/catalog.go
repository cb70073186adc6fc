package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jorcase/exadocs/internal/domain/model"
)

// CatalogRepository — справочники: карьеры, материи, планы обучения,
// типы архивов и связи материй с карьерами и планами.
type CatalogRepository interface {
	CreateCareer(ctx context.Context, c *model.Career) error
	GetCareer(ctx context.Context, id string) (*model.Career, error)
	ListCareers(ctx context.Context) ([]*model.Career, error)
	UpdateCareer(ctx context.Context, c *model.Career) error
	DeleteCareer(ctx context.Context, id string) error

	CreateSubject(ctx context.Context, s *model.Subject) error
	GetSubject(ctx context.Context, id string) (*model.Subject, error)
	// ListSubjects возвращает материи; careerID и curriculumID фильтруют по связям.
	ListSubjects(ctx context.Context, careerID, curriculumID *string) ([]*model.Subject, error)
	UpdateSubject(ctx context.Context, s *model.Subject) error
	DeleteSubject(ctx context.Context, id string) error

	CreateCurriculum(ctx context.Context, c *model.Curriculum) error
	GetCurriculum(ctx context.Context, id string) (*model.Curriculum, error)
	ListCurricula(ctx context.Context, careerID *string) ([]*model.Curriculum, error)
	UpdateCurriculum(ctx context.Context, c *model.Curriculum) error
	DeleteCurriculum(ctx context.Context, id string) error

	CreateFileType(ctx context.Context, ft *model.FileType) error
	GetFileType(ctx context.Context, id string) (*model.FileType, error)
	ListFileTypes(ctx context.Context) ([]*model.FileType, error)
	UpdateFileType(ctx context.Context, ft *model.FileType) error
	DeleteFileType(ctx context.Context, id string) error

	LinkCareerSubject(ctx context.Context, careerID, subjectID string) error
	UnlinkCareerSubject(ctx context.Context, careerID, subjectID string) error
	LinkCurriculumSubject(ctx context.Context, curriculumID, subjectID string) error
	UnlinkCurriculumSubject(ctx context.Context, curriculumID, subjectID string) error
	// CurriculumHasSubject проверяет, входит ли материя в план обучения.
	CurriculumHasSubject(ctx context.Context, curriculumID, subjectID string) (bool, error)
}

type catalogRepo struct {
	db DBTX
}

// NewCatalogRepository создаёт репозиторий справочников.
func NewCatalogRepository(db DBTX) CatalogRepository {
	return &catalogRepo{db: db}
}

// execDelete удаляет строку и различает «не найдено» и «используется».
func execDelete(ctx context.Context, db DBTX, query, what string, args ...any) error {
	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return mapWriteError(err, "удаления "+what)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
		return ErrNotFound
	}
	return fmt.Errorf("ошибка %s: %w", op, err)
}

// --- Карьеры ---

func (r *catalogRepo) CreateCareer(ctx context.Context, c *model.Career) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO careers (id, name, code) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Code,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "создания карьеры")
	}
	return nil
}

func (r *catalogRepo) GetCareer(ctx context.Context, id string) (*model.Career, error) {
	c := &model.Career{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, code, created_at, updated_at FROM careers WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Code, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "получения карьеры")
	}
	return c, nil
}

func (r *catalogRepo) ListCareers(ctx context.Context) ([]*model.Career, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, code, created_at, updated_at FROM careers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка карьер: %w", err)
	}
	defer rows.Close()

	var result []*model.Career
	for rows.Next() {
		c := &model.Career{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования карьеры: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *catalogRepo) UpdateCareer(ctx context.Context, c *model.Career) error {
	err := r.db.QueryRow(ctx,
		`UPDATE careers SET name = $2, code = $3 WHERE id = $1 RETURNING updated_at`,
		c.ID, c.Name, c.Code,
	).Scan(&c.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "обновления карьеры")
	}
	return nil
}

func (r *catalogRepo) DeleteCareer(ctx context.Context, id string) error {
	return execDelete(ctx, r.db, `DELETE FROM careers WHERE id = $1`, "карьеры", id)
}

// --- Материи ---

func (r *catalogRepo) CreateSubject(ctx context.Context, s *model.Subject) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO subjects (id, name, code) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		s.ID, s.Name, s.Code,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "создания материи")
	}
	return nil
}

func (r *catalogRepo) GetSubject(ctx context.Context, id string) (*model.Subject, error) {
	s := &model.Subject{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, code, created_at, updated_at FROM subjects WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.Code, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "получения материи")
	}
	return s, nil
}

func (r *catalogRepo) ListSubjects(ctx context.Context, careerID, curriculumID *string) ([]*model.Subject, error) {
	var w whereBuilder
	if careerID != nil {
		w.add("s.id IN (SELECT subject_id FROM career_subjects WHERE career_id = ?)", *careerID)
	}
	if curriculumID != nil {
		w.add("s.id IN (SELECT subject_id FROM curriculum_subjects WHERE curriculum_id = ?)", *curriculumID)
	}

	rows, err := r.db.Query(ctx,
		`SELECT s.id, s.name, s.code, s.created_at, s.updated_at FROM subjects s `+w.String()+` ORDER BY s.name`,
		w.args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка материй: %w", err)
	}
	defer rows.Close()

	var result []*model.Subject
	for rows.Next() {
		s := &model.Subject{}
		if err := rows.Scan(&s.ID, &s.Name, &s.Code, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования материи: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *catalogRepo) UpdateSubject(ctx context.Context, s *model.Subject) error {
	err := r.db.QueryRow(ctx,
		`UPDATE subjects SET name = $2, code = $3 WHERE id = $1 RETURNING updated_at`,
		s.ID, s.Name, s.Code,
	).Scan(&s.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "обновления материи")
	}
	return nil
}

func (r *catalogRepo) DeleteSubject(ctx context.Context, id string) error {
	return execDelete(ctx, r.db, `DELETE FROM subjects WHERE id = $1`, "материи", id)
}

// --- Планы обучения ---

func (r *catalogRepo) CreateCurriculum(ctx context.Context, c *model.Curriculum) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO curricula (id, career_id, name, year) VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`,
		c.ID, c.CareerID, c.Name, c.Year,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "создания плана обучения")
	}
	return nil
}

func (r *catalogRepo) GetCurriculum(ctx context.Context, id string) (*model.Curriculum, error) {
	c := &model.Curriculum{}
	err := r.db.QueryRow(ctx,
		`SELECT id, career_id, name, year, created_at, updated_at FROM curricula WHERE id = $1`, id,
	).Scan(&c.ID, &c.CareerID, &c.Name, &c.Year, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "получения плана обучения")
	}
	return c, nil
}

func (r *catalogRepo) ListCurricula(ctx context.Context, careerID *string) ([]*model.Curriculum, error) {
	var w whereBuilder
	if careerID != nil {
		w.add("career_id = ?", *careerID)
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, career_id, name, year, created_at, updated_at FROM curricula `+w.String()+` ORDER BY name`,
		w.args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка планов: %w", err)
	}
	defer rows.Close()

	var result []*model.Curriculum
	for rows.Next() {
		c := &model.Curriculum{}
		if err := rows.Scan(&c.ID, &c.CareerID, &c.Name, &c.Year, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования плана: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *catalogRepo) UpdateCurriculum(ctx context.Context, c *model.Curriculum) error {
	err := r.db.QueryRow(ctx,
		`UPDATE curricula SET career_id = $2, name = $3, year = $4 WHERE id = $1 RETURNING updated_at`,
		c.ID, c.CareerID, c.Name, c.Year,
	).Scan(&c.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "обновления плана обучения")
	}
	return nil
}

func (r *catalogRepo) DeleteCurriculum(ctx context.Context, id string) error {
	return execDelete(ctx, r.db, `DELETE FROM curricula WHERE id = $1`, "плана обучения", id)
}

// --- Типы архивов ---

func (r *catalogRepo) CreateFileType(ctx context.Context, ft *model.FileType) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO file_types (id, name, extensions) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		ft.ID, ft.Name, ft.Extensions,
	).Scan(&ft.CreatedAt, &ft.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "создания типа архива")
	}
	return nil
}

func (r *catalogRepo) GetFileType(ctx context.Context, id string) (*model.FileType, error) {
	ft := &model.FileType{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, extensions, created_at, updated_at FROM file_types WHERE id = $1`, id,
	).Scan(&ft.ID, &ft.Name, &ft.Extensions, &ft.CreatedAt, &ft.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "получения типа архива")
	}
	return ft, nil
}

func (r *catalogRepo) ListFileTypes(ctx context.Context) ([]*model.FileType, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, extensions, created_at, updated_at FROM file_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка типов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileType
	for rows.Next() {
		ft := &model.FileType{}
		if err := rows.Scan(&ft.ID, &ft.Name, &ft.Extensions, &ft.CreatedAt, &ft.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования типа: %w", err)
		}
		result = append(result, ft)
	}
	return result, rows.Err()
}

func (r *catalogRepo) UpdateFileType(ctx context.Context, ft *model.FileType) error {
	err := r.db.QueryRow(ctx,
		`UPDATE file_types SET name = $2, extensions = $3 WHERE id = $1 RETURNING updated_at`,
		ft.ID, ft.Name, ft.Extensions,
	).Scan(&ft.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "обновления типа архива")
	}
	return nil
}

func (r *catalogRepo) DeleteFileType(ctx context.Context, id string) error {
	return execDelete(ctx, r.db, `DELETE FROM file_types WHERE id = $1`, "типа архива", id)
}

// --- Связи ---

func (r *catalogRepo) LinkCareerSubject(ctx context.Context, careerID, subjectID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO career_subjects (career_id, subject_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		careerID, subjectID)
	if err != nil {
		return mapWriteError(err, "связывания материи с карьерой")
	}
	return nil
}

func (r *catalogRepo) UnlinkCareerSubject(ctx context.Context, careerID, subjectID string) error {
	return execDelete(ctx, r.db,
		`DELETE FROM career_subjects WHERE career_id = $1 AND subject_id = $2`,
		"связи материи с карьерой", careerID, subjectID)
}

func (r *catalogRepo) LinkCurriculumSubject(ctx context.Context, curriculumID, subjectID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO curriculum_subjects (curriculum_id, subject_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		curriculumID, subjectID)
	if err != nil {
		return mapWriteError(err, "связывания материи с планом")
	}
	return nil
}

func (r *catalogRepo) UnlinkCurriculumSubject(ctx context.Context, curriculumID, subjectID string) error {
	return execDelete(ctx, r.db,
		`DELETE FROM curriculum_subjects WHERE curriculum_id = $1 AND subject_id = $2`,
		"связи материи с планом", curriculumID, subjectID)
}

func (r *catalogRepo) CurriculumHasSubject(ctx context.Context, curriculumID, subjectID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM curriculum_subjects WHERE curriculum_id = $1 AND subject_id = $2)`,
		curriculumID, subjectID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки материи плана: %w", err)
	}
	return exists, nil
}
