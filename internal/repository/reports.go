package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jorcase/exadocs/internal/domain/model"
)

// ReportRepository — жалобы на архивы.
type ReportRepository interface {
	Create(ctx context.Context, rp *model.ContentReport) error
	GetByID(ctx context.Context, id string) (*model.ContentReport, error)
	List(ctx context.Context, filters ReportListFilters, limit, offset int) ([]*model.ContentReport, error)
	Count(ctx context.Context, filters ReportListFilters) (int, error)
	// UpdateStatus меняет статус, только если текущий статус равен from.
	// Для resolved задаются resolved_by и resolved_at.
	UpdateStatus(ctx context.Context, id, from, to string, resolvedBy *string) (*model.ContentReport, error)
}

// ReportListFilters — фильтры списка жалоб.
type ReportListFilters struct {
	Status *string
	FileID *string
}

type reportRepo struct {
	db DBTX
}

// NewReportRepository создаёт репозиторий жалоб.
func NewReportRepository(db DBTX) ReportRepository {
	return &reportRepo{db: db}
}

const reportColumns = `id, file_id, reporter_id, reason, detail, status, resolved_by, resolved_at, created_at, updated_at`

func scanReport(row pgx.Row) (*model.ContentReport, error) {
	rp := &model.ContentReport{}
	err := row.Scan(&rp.ID, &rp.FileID, &rp.ReporterID, &rp.Reason, &rp.Detail, &rp.Status,
		&rp.ResolvedBy, &rp.ResolvedAt, &rp.CreatedAt, &rp.UpdatedAt)
	return rp, err
}

func (r *reportRepo) Create(ctx context.Context, rp *model.ContentReport) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO content_reports (id, file_id, reporter_id, reason, detail, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		rp.ID, rp.FileID, rp.ReporterID, rp.Reason, rp.Detail, rp.Status,
	).Scan(&rp.CreatedAt, &rp.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "создания жалобы")
	}
	return nil
}

func (r *reportRepo) GetByID(ctx context.Context, id string) (*model.ContentReport, error) {
	rp, err := scanReport(r.db.QueryRow(ctx, `SELECT `+reportColumns+` FROM content_reports WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "получения жалобы")
	}
	return rp, nil
}

func buildReportWhere(filters ReportListFilters) *whereBuilder {
	w := &whereBuilder{}
	if filters.Status != nil {
		w.add("status = ?", *filters.Status)
	}
	if filters.FileID != nil {
		w.add("file_id = ?", *filters.FileID)
	}
	return w
}

func (r *reportRepo) List(ctx context.Context, filters ReportListFilters, limit, offset int) ([]*model.ContentReport, error) {
	w := buildReportWhere(filters)
	argNum := w.next()
	query := fmt.Sprintf(`SELECT %s FROM content_reports %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		reportColumns, w.String(), argNum, argNum+1)

	rows, err := r.db.Query(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка жалоб: %w", err)
	}
	defer rows.Close()

	var result []*model.ContentReport
	for rows.Next() {
		rp, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования жалобы: %w", err)
		}
		result = append(result, rp)
	}
	return result, rows.Err()
}

func (r *reportRepo) Count(ctx context.Context, filters ReportListFilters) (int, error) {
	w := buildReportWhere(filters)
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM content_reports `+w.String(), w.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта жалоб: %w", err)
	}
	return count, nil
}

func (r *reportRepo) UpdateStatus(ctx context.Context, id, from, to string, resolvedBy *string) (*model.ContentReport, error) {
	var resolvedAt *time.Time
	if to == model.ReportStatusResolved {
		now := time.Now().UTC()
		resolvedAt = &now
	} else {
		resolvedBy = nil
	}

	rp, err := scanReport(r.db.QueryRow(ctx, `
		UPDATE content_reports
		SET status = $3, resolved_by = $4, resolved_at = $5
		WHERE id = $1 AND status = $2
		RETURNING `+reportColumns,
		id, from, to, resolvedBy, resolvedAt))
	if err != nil {
		// Нет строки — жалоба удалена или статус изменён параллельно
		return nil, mapWriteError(err, "смены статуса жалобы")
	}
	return rp, nil
}
