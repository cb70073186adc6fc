// notifier.go — уведомления в приложении.
// Каждый вызов создаёт ровно одну запись, без дедупликации.
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

// NotifyInput — параметры уведомления.
type NotifyInput struct {
	RecipientID string
	ActorID     *string
	FileID      *string
	Type        string
	Title       string
	Message     *string
	Data        map[string]any
}

// Notifier — создание уведомлений. Подменяется в тестах.
type Notifier interface {
	Notify(ctx context.Context, in NotifyInput) (*model.Notification, error)
	// NotifyOwnerOf уведомляет владельца архива; без владельца — nil, nil.
	NotifyOwnerOf(ctx context.Context, file *model.File, actorID *string, typ, title string, data map[string]any) (*model.Notification, error)
}

// NotificationService — уведомления: создание и операции получателя.
type NotificationService struct {
	repo   repository.NotificationRepository
	logger *slog.Logger
}

// NewNotificationService создаёт сервис уведомлений.
func NewNotificationService(repo repository.NotificationRepository, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		repo:   repo,
		logger: logger.With(slog.String("component", "notifier")),
	}
}

// Notify сохраняет уведомление.
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) (*model.Notification, error) {
	if in.RecipientID == "" {
		return nil, validationf("не задан получатель уведомления")
	}
	if in.Type == "" || in.Title == "" {
		return nil, validationf("тип и заголовок уведомления обязательны")
	}

	n := &model.Notification{
		ID:          uuid.New().String(),
		RecipientID: in.RecipientID,
		ActorID:     in.ActorID,
		FileID:      in.FileID,
		Type:        in.Type,
		Title:       in.Title,
		Message:     in.Message,
	}
	if in.Data != nil {
		b, err := json.Marshal(in.Data)
		if err != nil {
			return nil, fmt.Errorf("сериализация данных уведомления: %w", err)
		}
		n.Data = b
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, mapRepoError(err, "уведомление")
	}

	s.logger.Debug("Уведомление создано",
		slog.String("notification_id", n.ID),
		slog.String("recipient_id", n.RecipientID),
		slog.String("type", n.Type),
	)
	return n, nil
}

// NotifyOwnerOf уведомляет владельца архива.
func (s *NotificationService) NotifyOwnerOf(ctx context.Context, file *model.File, actorID *string, typ, title string, data map[string]any) (*model.Notification, error) {
	if file == nil || file.OwnerID == nil || *file.OwnerID == "" {
		return nil, nil
	}
	fileID := file.ID
	return s.Notify(ctx, NotifyInput{
		RecipientID: *file.OwnerID,
		ActorID:     actorID,
		FileID:      &fileID,
		Type:        typ,
		Title:       title,
		Data:        data,
	})
}

// List возвращает уведомления текущего пользователя.
func (s *NotificationService) List(ctx context.Context, actor rbac.Actor, unreadOnly bool, limit, offset int) ([]*model.Notification, int, error) {
	if !actor.IsAuthenticated() {
		return nil, 0, forbidden("просмотр уведомлений")
	}
	items, err := s.repo.ListByRecipient(ctx, actor.UserID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение уведомлений: %w", err)
	}
	total, err := s.repo.CountByRecipient(ctx, actor.UserID, unreadOnly)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт уведомлений: %w", err)
	}
	return items, total, nil
}

// UnreadCount возвращает число непрочитанных уведомлений.
func (s *NotificationService) UnreadCount(ctx context.Context, actor rbac.Actor) (int, error) {
	if !actor.IsAuthenticated() {
		return 0, forbidden("просмотр уведомлений")
	}
	n, err := s.repo.CountByRecipient(ctx, actor.UserID, true)
	if err != nil {
		return 0, fmt.Errorf("подсчёт непрочитанных: %w", err)
	}
	return n, nil
}

// MarkRead отмечает уведомление прочитанным (только получатель).
func (s *NotificationService) MarkRead(ctx context.Context, actor rbac.Actor, id string) (*model.Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "уведомление")
	}
	if !rbac.CanPerform(actor, rbac.ActionUpdate, rbac.NotificationResource{RecipientID: n.RecipientID}) {
		return nil, forbidden("отметка чужого уведомления")
	}
	n, err = s.repo.MarkRead(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "уведомление")
	}
	return n, nil
}

// MarkAllRead отмечает все уведомления пользователя прочитанными.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor rbac.Actor) (int, error) {
	if !actor.IsAuthenticated() {
		return 0, forbidden("отметка уведомлений")
	}
	n, err := s.repo.MarkAllRead(ctx, actor.UserID)
	if err != nil {
		return 0, fmt.Errorf("отметка уведомлений: %w", err)
	}
	return n, nil
}
