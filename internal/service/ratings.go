package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jorcase/exadocs/internal/domain/model"
	"github.com/jorcase/exadocs/internal/domain/rbac"
	"github.com/jorcase/exadocs/internal/mail"
	"github.com/jorcase/exadocs/internal/repository"
)

// Границы оценки.
const (
	MinScore = 1
	MaxScore = 5
)

// RatingService — оценки архивов. Одна оценка на пару (архив, пользователь).
type RatingService struct {
	ratings    repository.RatingRepository
	files      repository.FileRepository
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewRatingService создаёт сервис оценок.
func NewRatingService(ratings repository.RatingRepository, files repository.FileRepository, dispatcher *Dispatcher, logger *slog.Logger) *RatingService {
	return &RatingService{
		ratings:    ratings,
		files:      files,
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "rating_service")),
	}
}

func validateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return validationf("оценка должна быть от %d до %d", MinScore, MaxScore)
	}
	return nil
}

// Create оценивает архив. Повторная оценка того же архива — ErrConflict.
func (s *RatingService) Create(ctx context.Context, actor rbac.Actor, fileID string, score int, comment *string) (*model.Rating, error) {
	if !rbac.CanPerform(actor, rbac.ActionCreate, rbac.RatingResource{UserID: actor.UserID}) {
		return nil, forbidden("оценка архива")
	}
	if err := validateScore(score); err != nil {
		return nil, err
	}
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, mapRepoError(err, "архив")
	}

	rt := &model.Rating{
		ID:      uuid.New().String(),
		FileID:  fileID,
		UserID:  actor.UserID,
		Score:   score,
		Comment: comment,
	}
	if err := s.ratings.Create(ctx, rt); err != nil {
		return nil, mapRepoError(err, "оценка этого архива от пользователя")
	}

	s.logger.Info("Архив оценён",
		slog.String("rating_id", rt.ID),
		slog.String("file_id", fileID),
		slog.Int("score", score),
	)

	if !f.IsOwnedBy(actor.UserID) {
		s.dispatcher.NotifyOwner(ctx, ownerEvent{
			File:     f,
			ActorID:  actor.UserID,
			Type:     model.NotificationRating,
			Title:    fmt.Sprintf("Tu archivo \"%s\" recibió una calificación de %d", f.Title, score),
			Data:     map[string]any{"file_id": fileID, "rating_id": rt.ID, "score": score},
			Template: mail.TemplateNewRating,
			Subject:  fmt.Sprintf("Nueva calificación en \"%s\"", f.Title),
			MailData: map[string]any{"score": score},
		})
	}
	return rt, nil
}

// List возвращает оценки архива.
func (s *RatingService) List(ctx context.Context, actor rbac.Actor, fileID string, limit, offset int) ([]*model.Rating, int, error) {
	if !rbac.CanPerform(actor, rbac.ActionViewAny, rbac.RatingResource{}) {
		return nil, 0, forbidden("просмотр оценок")
	}
	if _, err := s.files.GetByID(ctx, fileID); err != nil {
		return nil, 0, mapRepoError(err, "архив")
	}
	items, err := s.ratings.ListByFile(ctx, fileID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение оценок: %w", err)
	}
	total, err := s.ratings.CountByFile(ctx, fileID)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт оценок: %w", err)
	}
	return items, total, nil
}

// Summary возвращает среднюю оценку и число оценок архива.
func (s *RatingService) Summary(ctx context.Context, actor rbac.Actor, fileID string) (*model.RatingSummary, error) {
	if !rbac.CanPerform(actor, rbac.ActionViewAny, rbac.RatingResource{}) {
		return nil, forbidden("просмотр оценок")
	}
	if _, err := s.files.GetByID(ctx, fileID); err != nil {
		return nil, mapRepoError(err, "архив")
	}
	sum, err := s.ratings.Summary(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("агрегат оценок: %w", err)
	}
	return sum, nil
}

// Update меняет собственную оценку.
func (s *RatingService) Update(ctx context.Context, actor rbac.Actor, id string, score int, comment *string) (*model.Rating, error) {
	rt, err := s.ratings.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "оценка")
	}
	if !rbac.CanPerform(actor, rbac.ActionUpdate, rbac.RatingResource{UserID: rt.UserID}) {
		return nil, forbidden("изменение чужой оценки")
	}
	if err := validateScore(score); err != nil {
		return nil, err
	}
	rt.Score = score
	rt.Comment = comment
	if err := s.ratings.Update(ctx, rt); err != nil {
		return nil, mapRepoError(err, "оценка")
	}
	return rt, nil
}

// Delete удаляет оценку (автор или администратор).
func (s *RatingService) Delete(ctx context.Context, actor rbac.Actor, id string) error {
	rt, err := s.ratings.GetByID(ctx, id)
	if err != nil {
		return mapRepoError(err, "оценка")
	}
	if !rbac.CanPerform(actor, rbac.ActionDelete, rbac.RatingResource{UserID: rt.UserID}) {
		return forbidden("удаление оценки")
	}
	if err := s.ratings.Delete(ctx, id); err != nil {
		return mapRepoError(err, "оценка")
	}
	return nil
}
