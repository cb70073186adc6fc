package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jorcase/exadocs/internal/domain/model"
	"github.com/jorcase/exadocs/internal/domain/rbac"
	"github.com/jorcase/exadocs/internal/mail"
	"github.com/jorcase/exadocs/internal/repository"
)

const maxCommentLen = 5000

// CommentService — комментарии к архивам.
type CommentService struct {
	comments   repository.CommentRepository
	files      repository.FileRepository
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewCommentService создаёт сервис комментариев.
func NewCommentService(comments repository.CommentRepository, files repository.FileRepository, dispatcher *Dispatcher, logger *slog.Logger) *CommentService {
	return &CommentService{
		comments:   comments,
		files:      files,
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "comment_service")),
	}
}

func commentResource(c *model.Comment) rbac.CommentResource {
	if c.AuthorID == nil {
		return rbac.CommentResource{}
	}
	return rbac.CommentResource{AuthorID: *c.AuthorID}
}

func validateBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", validationf("текст комментария обязателен")
	}
	if len([]rune(body)) > maxCommentLen {
		return "", validationf("комментарий длиннее %d символов", maxCommentLen)
	}
	return body, nil
}

// Create добавляет комментарий к архиву и уведомляет владельца.
func (s *CommentService) Create(ctx context.Context, actor rbac.Actor, fileID, body string) (*model.Comment, error) {
	if !rbac.CanPerform(actor, rbac.ActionCreate, rbac.CommentResource{AuthorID: actor.UserID}) {
		return nil, forbidden("комментирование")
	}
	body, err := validateBody(body)
	if err != nil {
		return nil, err
	}
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, mapRepoError(err, "архив")
	}

	authorID := actor.UserID
	c := &model.Comment{
		ID:       uuid.New().String(),
		FileID:   fileID,
		AuthorID: &authorID,
		Body:     body,
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, mapRepoError(err, "комментарий")
	}

	s.logger.Info("Комментарий добавлен",
		slog.String("comment_id", c.ID),
		slog.String("file_id", fileID),
	)

	// Свои комментарии владельцу не сообщаем
	if !f.IsOwnedBy(actor.UserID) {
		s.dispatcher.NotifyOwner(ctx, ownerEvent{
			File:     f,
			ActorID:  actor.UserID,
			Type:     model.NotificationComment,
			Title:    fmt.Sprintf("Nuevo comentario en \"%s\"", f.Title),
			Data:     map[string]any{"file_id": fileID, "comment_id": c.ID},
			Template: mail.TemplateNewComment,
			Subject:  fmt.Sprintf("Nuevo comentario en \"%s\"", f.Title),
			MailData: map[string]any{"body": body},
		})
	}
	return c, nil
}

// List возвращает комментарии архива; выделенные первыми.
func (s *CommentService) List(ctx context.Context, actor rbac.Actor, fileID string, limit, offset int) ([]*model.Comment, int, error) {
	if !rbac.CanPerform(actor, rbac.ActionViewAny, rbac.CommentResource{}) {
		return nil, 0, forbidden("просмотр комментариев")
	}
	if _, err := s.files.GetByID(ctx, fileID); err != nil {
		return nil, 0, mapRepoError(err, "архив")
	}
	items, err := s.comments.ListByFile(ctx, fileID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение комментариев: %w", err)
	}
	total, err := s.comments.CountByFile(ctx, fileID)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт комментариев: %w", err)
	}
	return items, total, nil
}

// Update меняет текст комментария.
func (s *CommentService) Update(ctx context.Context, actor rbac.Actor, id, body string) (*model.Comment, error) {
	c, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "комментарий")
	}
	if !rbac.CanPerform(actor, rbac.ActionUpdate, commentResource(c)) {
		return nil, forbidden("изменение комментария")
	}
	body, err = validateBody(body)
	if err != nil {
		return nil, err
	}
	c.Body = body
	if err := s.comments.Update(ctx, c); err != nil {
		return nil, mapRepoError(err, "комментарий")
	}
	return c, nil
}

// Delete удаляет комментарий.
func (s *CommentService) Delete(ctx context.Context, actor rbac.Actor, id string) error {
	c, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return mapRepoError(err, "комментарий")
	}
	if !rbac.CanPerform(actor, rbac.ActionDelete, commentResource(c)) {
		return forbidden("удаление комментария")
	}
	if err := s.comments.Delete(ctx, id); err != nil {
		return mapRepoError(err, "комментарий")
	}
	s.logger.Info("Комментарий удалён",
		slog.String("comment_id", id),
		slog.String("actor_id", actor.UserID),
	)
	return nil
}

// SetFeatured выделяет комментарий или снимает выделение.
func (s *CommentService) SetFeatured(ctx context.Context, actor rbac.Actor, id string, featured bool) (*model.Comment, error) {
	c, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "комментарий")
	}
	if !rbac.CanPerform(actor, rbac.ActionFeature, commentResource(c)) {
		return nil, forbidden("выделение комментария")
	}
	c, err = s.comments.SetFeatured(ctx, id, featured)
	if err != nil {
		return nil, mapRepoError(err, "комментарий")
	}
	return c, nil
}
