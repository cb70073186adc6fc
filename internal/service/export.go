// export.go — выгрузка архивов в .xlsx (excelize, потоковая запись).
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jorcase/exadocs/internal/domain/model"
	"github.com/jorcase/exadocs/internal/domain/rbac"
	"github.com/jorcase/exadocs/internal/repository"
)

const (
	exportSheet      = "Archivos"
	exportTimeLayout = "2006-01-02 15:04"
)

// exportHeaders — заголовки столбцов выгрузки.
var exportHeaders = []string{
	"ID", "Título", "Materia", "Carrera", "Plan de estudio", "Tipo", "Estado",
	"Autor", "Tamaño (bytes)", "Visitas", "Calificación promedio", "Publicado", "Creado",
}

// ExportService — выгрузка неудалённых архивов в таблицу.
type ExportService struct {
	files  repository.FileRepository
	logger *slog.Logger
}

// NewExportService создаёт сервис выгрузки.
func NewExportService(files repository.FileRepository, logger *slog.Logger) *ExportService {
	return &ExportService{
		files:  files,
		logger: logger.With(slog.String("component", "export")),
	}
}

// Authorize: выгрузка доступна администраторам и модераторам.
func (s *ExportService) Authorize(actor rbac.Actor) error {
	if !actor.IsStaff() {
		return forbidden("выгрузка архивов")
	}
	return nil
}

// WriteXLSX пишет книгу с архивами в w. Возвращает число строк данных.
func (s *ExportService) WriteXLSX(ctx context.Context, w io.Writer) (int, error) {
	rows, err := s.files.ExportRows(ctx)
	if err != nil {
		return 0, fmt.Errorf("получение строк выгрузки: %w", err)
	}

	book := excelize.NewFile()
	defer func() {
		if err := book.Close(); err != nil {
			s.logger.Warn("Ошибка закрытия книги", slog.String("error", err.Error()))
		}
	}()

	if err := book.SetSheetName(book.GetSheetName(0), exportSheet); err != nil {
		return 0, fmt.Errorf("переименование листа: %w", err)
	}
	sw, err := book.NewStreamWriter(exportSheet)
	if err != nil {
		return 0, fmt.Errorf("создание потокового writer: %w", err)
	}

	headerStyle, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, fmt.Errorf("создание стиля заголовка: %w", err)
	}
	if err := sw.SetColWidth(1, len(exportHeaders), 20); err != nil {
		return 0, fmt.Errorf("ширина столбцов: %w", err)
	}

	header := make([]any, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: h}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return 0, fmt.Errorf("запись заголовка: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, err
		}
		if err := sw.SetRow(cell, exportRowValues(r)); err != nil {
			return 0, fmt.Errorf("запись строки %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return 0, fmt.Errorf("завершение листа: %w", err)
	}
	if _, err := book.WriteTo(w); err != nil {
		return 0, fmt.Errorf("запись книги: %w", err)
	}

	s.logger.Info("Выгрузка архивов сформирована", slog.Int("rows", len(rows)))
	return len(rows), nil
}

// exportRowValues раскладывает строку выгрузки по столбцам.
func exportRowValues(r *model.ExportRow) []any {
	return []any{
		r.ID,
		r.Title,
		r.Subject,
		r.Career,
		r.Curriculum,
		r.FileType,
		r.State,
		r.Author,
		r.SizeBytes,
		r.VisitCount,
		formatAverage(r.AverageRating),
		formatTime(r.PublishedAt),
		r.CreatedAt.UTC().Format(exportTimeLayout),
	}
}

// formatAverage — два знака после точки, 0.00 без оценок.
func formatAverage(avg *float64) string {
	if avg == nil {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", *avg)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(exportTimeLayout)
}
