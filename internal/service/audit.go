package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jorcase/exadocs/internal/domain/model"
	"github.com/jorcase/exadocs/internal/domain/rbac"
	"github.com/jorcase/exadocs/internal/repository"
)

// Действия журнала аудита.
const (
	AuditFileCreated         = "file.created"
	AuditFileUpdated         = "file.updated"
	AuditFileDeleted         = "file.deleted"
	AuditFileStateChanged    = "file.state_changed"
	AuditReportStatusChanged = "report.status_changed"
	AuditCatalogChanged      = "catalog.changed"
	AuditProfileChanged      = "profile.changed"
)

// AuditService — запись и просмотр журнала аудита.
type AuditService struct {
	repo   repository.AuditRepository
	logger *slog.Logger
}

// NewAuditService создаёт сервис аудита.
func NewAuditService(repo repository.AuditRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		logger: logger.With(slog.String("component", "audit")),
	}
}

// newAuditEntry собирает запись аудита; IP и User-Agent берутся из контекста.
func newAuditEntry(ctx context.Context, actorID, action, entityType, entityID string, payload map[string]any) (*model.AuditEntry, error) {
	e := &model.AuditEntry{
		ID:     uuid.New().String(),
		Action: action,
	}
	if actorID != "" {
		e.ActorID = &actorID
	}
	if entityType != "" {
		e.EntityType = &entityType
	}
	if entityID != "" {
		e.EntityID = &entityID
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("сериализация данных аудита: %w", err)
		}
		e.Payload = b
	}

	meta := RequestMetaFrom(ctx)
	if meta.IP != "" {
		e.IP = &meta.IP
	}
	if meta.UserAgent != "" {
		e.UserAgent = &meta.UserAgent
	}
	return e, nil
}

// appendAudit записывает запись через указанный репозиторий
// (пул или транзакция).
func appendAudit(ctx context.Context, repo repository.AuditRepository, actorID, action, entityType, entityID string, payload map[string]any) error {
	e, err := newAuditEntry(ctx, actorID, action, entityType, entityID, payload)
	if err != nil {
		return err
	}
	if err := repo.Append(ctx, e); err != nil {
		return fmt.Errorf("запись аудита %s: %w", action, err)
	}
	return nil
}

// Record записывает действие в журнал аудита.
func (s *AuditService) Record(ctx context.Context, actorID, action, entityType, entityID string, payload map[string]any) error {
	return appendAudit(ctx, s.repo, actorID, action, entityType, entityID, payload)
}

// List возвращает журнал аудита (только администратор).
func (s *AuditService) List(ctx context.Context, actor rbac.Actor, filters repository.AuditListFilters, limit, offset int) ([]*model.AuditEntry, int, error) {
	if !rbac.CanPerform(actor, rbac.ActionViewAny, rbac.AuditResource{}) {
		return nil, 0, forbidden("просмотр журнала аудита")
	}

	entries, err := s.repo.List(ctx, filters, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение журнала аудита: %w", err)
	}
	total, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт записей аудита: %w", err)
	}
	return entries, total, nil
}

// recordBestEffort пишет аудит вне транзакции; ошибка только логируется.
func (s *AuditService) recordBestEffort(ctx context.Context, actorID, action, entityType, entityID string, payload map[string]any) {
	if s == nil {
		return
	}
	if err := s.Record(ctx, actorID, action, entityType, entityID, payload); err != nil {
		s.logger.Error("Не удалось записать аудит",
			slog.String("action", action),
			slog.String("entity_id", entityID),
			slog.String("error", err.Error()),
		)
	}
}
