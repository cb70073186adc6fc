package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jorcase/exadocs/internal/domain/model"
	"github.com/jorcase/exadocs/internal/domain/rbac"
	"github.com/jorcase/exadocs/internal/mail"
	"github.com/jorcase/exadocs/internal/repository"
)

// ReportService — жалобы на архивы.
type ReportService struct {
	reports    repository.ReportRepository
	files      repository.FileRepository
	audit      *AuditService
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewReportService создаёт сервис жалоб.
func NewReportService(reports repository.ReportRepository, files repository.FileRepository, audit *AuditService, dispatcher *Dispatcher, logger *slog.Logger) *ReportService {
	return &ReportService{
		reports:    reports,
		files:      files,
		audit:      audit,
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "report_service")),
	}
}

func reportResource(rp *model.ContentReport) rbac.ReportResource {
	if rp.ReporterID == nil {
		return rbac.ReportResource{}
	}
	return rbac.ReportResource{ReporterID: *rp.ReporterID}
}

// Create регистрирует жалобу в статусе pending и уведомляет владельца.
func (s *ReportService) Create(ctx context.Context, actor rbac.Actor, fileID, reason string, detail *string) (*model.ContentReport, error) {
	if !rbac.CanPerform(actor, rbac.ActionCreate, rbac.ReportResource{ReporterID: actor.UserID}) {
		return nil, forbidden("жалоба на архив")
	}
	if !model.IsValidReportReason(reason) {
		return nil, validationf("неизвестная причина жалобы %q", reason)
	}
	if detail != nil && strings.TrimSpace(*detail) == "" {
		detail = nil
	}
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, mapRepoError(err, "архив")
	}

	reporterID := actor.UserID
	rp := &model.ContentReport{
		ID:         uuid.New().String(),
		FileID:     fileID,
		ReporterID: &reporterID,
		Reason:     reason,
		Detail:     detail,
		Status:     model.ReportStatusPending,
	}
	if err := s.reports.Create(ctx, rp); err != nil {
		return nil, mapRepoError(err, "жалоба")
	}

	s.logger.Info("Жалоба зарегистрирована",
		slog.String("report_id", rp.ID),
		slog.String("file_id", fileID),
		slog.String("reason", reason),
	)

	s.dispatcher.NotifyOwner(ctx, ownerEvent{
		File:     f,
		ActorID:  actor.UserID,
		Type:     model.NotificationReport,
		Title:    fmt.Sprintf("Tu archivo \"%s\" fue reportado", f.Title),
		Data:     map[string]any{"file_id": fileID, "report_id": rp.ID, "motivo": reason},
		Template: mail.TemplateNewReport,
		Subject:  fmt.Sprintf("Reporte sobre \"%s\"", f.Title),
		MailData: map[string]any{"reason": reason},
	})
	return rp, nil
}

// List возвращает жалобы (модераторы и администраторы).
func (s *ReportService) List(ctx context.Context, actor rbac.Actor, filters repository.ReportListFilters, limit, offset int) ([]*model.ContentReport, int, error) {
	if !rbac.CanPerform(actor, rbac.ActionViewAny, rbac.ReportResource{}) {
		return nil, 0, forbidden("просмотр жалоб")
	}
	if filters.Status != nil && !isReportStatus(*filters.Status) {
		return nil, 0, validationf("неизвестный статус жалобы %q", *filters.Status)
	}
	items, err := s.reports.List(ctx, filters, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение жалоб: %w", err)
	}
	total, err := s.reports.Count(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт жалоб: %w", err)
	}
	return items, total, nil
}

// Get возвращает жалобу (персонал или автор жалобы).
func (s *ReportService) Get(ctx context.Context, actor rbac.Actor, id string) (*model.ContentReport, error) {
	rp, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "жалоба")
	}
	if !rbac.CanPerform(actor, rbac.ActionView, reportResource(rp)) {
		return nil, forbidden("просмотр жалобы")
	}
	return rp, nil
}

// ChangeStatus переводит жалобу вперёд: pending → in_review → resolved
// (или сразу pending → resolved).
func (s *ReportService) ChangeStatus(ctx context.Context, actor rbac.Actor, id, status string) (*model.ContentReport, error) {
	rp, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "жалоба")
	}
	if !rbac.CanPerform(actor, rbac.ActionUpdate, reportResource(rp)) {
		return nil, forbidden("изменение статуса жалобы")
	}
	if !isReportStatus(status) {
		return nil, validationf("неизвестный статус жалобы %q", status)
	}
	if !model.CanReportTransition(rp.Status, status) {
		return nil, validationf("статус жалобы не может смениться %s → %s", rp.Status, status)
	}

	var resolvedBy *string
	if status == model.ReportStatusResolved {
		uid := actor.UserID
		resolvedBy = &uid
	}
	from := rp.Status
	updated, err := s.reports.UpdateStatus(ctx, id, from, status, resolvedBy)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Статус изменён параллельно
			return nil, fmt.Errorf("%w: статус жалобы уже изменён", ErrConflict)
		}
		return nil, fmt.Errorf("смена статуса жалобы: %w", err)
	}

	s.logger.Info("Статус жалобы изменён",
		slog.String("report_id", id),
		slog.String("from", from),
		slog.String("to", status),
	)
	s.audit.recordBestEffort(ctx, actor.UserID, AuditReportStatusChanged, "content_report", id, map[string]any{
		"from":    from,
		"to":      status,
		"file_id": rp.FileID,
	})
	return updated, nil
}

func isReportStatus(status string) bool {
	switch status {
	case model.ReportStatusPending, model.ReportStatusInReview, model.ReportStatusResolved:
		return true
	}
	return false
}
