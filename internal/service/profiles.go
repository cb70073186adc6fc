package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jorcase/exadocs/internal/domain/model"
	"github.com/jorcase/exadocs/internal/domain/rbac"
	"github.com/jorcase/exadocs/internal/repository"
)

// ProfileInput — изменяемые поля профиля.
type ProfileInput struct {
	CareerID    *string
	StudentCode *string
	Bio         *string
	AvatarPath  *string
}

// ProfileService — профили пользователей.
type ProfileService struct {
	profiles repository.ProfileRepository
	audit    *AuditService
	logger   *slog.Logger
}

// NewProfileService создаёт сервис профилей.
func NewProfileService(profiles repository.ProfileRepository, audit *AuditService, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		audit:    audit,
		logger:   logger.With(slog.String("component", "profile_service")),
	}
}

// Get возвращает профиль по ID.
func (s *ProfileService) Get(ctx context.Context, actor rbac.Actor, id string) (*model.UserProfile, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "профиль")
	}
	if !rbac.CanPerform(actor, rbac.ActionView, rbac.ProfileResource{UserID: p.UserID}) {
		return nil, forbidden("просмотр профиля")
	}
	return p, nil
}

// GetByUser возвращает профиль пользователя.
func (s *ProfileService) GetByUser(ctx context.Context, actor rbac.Actor, userID string) (*model.UserProfile, error) {
	p, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "профиль")
	}
	if !rbac.CanPerform(actor, rbac.ActionView, rbac.ProfileResource{UserID: p.UserID}) {
		return nil, forbidden("просмотр профиля")
	}
	return p, nil
}

// List возвращает профили (нужно разрешение view_perfiles).
func (s *ProfileService) List(ctx context.Context, actor rbac.Actor, limit, offset int) ([]*model.UserProfile, int, error) {
	if !rbac.CanPerform(actor, rbac.ActionViewAny, rbac.ProfileResource{}) {
		return nil, 0, forbidden("просмотр профилей")
	}
	items, err := s.profiles.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение профилей: %w", err)
	}
	total, err := s.profiles.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт профилей: %w", err)
	}
	return items, total, nil
}

// Create создаёт профиль пользователя userID.
func (s *ProfileService) Create(ctx context.Context, actor rbac.Actor, userID string, in ProfileInput) (*model.UserProfile, error) {
	if !rbac.CanPerform(actor, rbac.ActionCreate, rbac.ProfileResource{UserID: userID}) {
		return nil, forbidden("создание профиля")
	}
	if userID == "" {
		return nil, validationf("user_id обязателен")
	}
	p := &model.UserProfile{
		ID:          uuid.New().String(),
		UserID:      userID,
		CareerID:    in.CareerID,
		StudentCode: in.StudentCode,
		Bio:         in.Bio,
		AvatarPath:  in.AvatarPath,
	}
	if err := s.profiles.Create(ctx, p); err != nil {
		return nil, mapRepoError(err, "профиль пользователя")
	}

	s.logger.Info("Профиль создан",
		slog.String("profile_id", p.ID),
		slog.String("user_id", userID),
	)
	s.audit.recordBestEffort(ctx, actor.UserID, AuditProfileChanged, "user_profile", p.ID, map[string]any{"op": "create"})
	return p, nil
}

// Update обновляет профиль. nil-поля не меняются.
func (s *ProfileService) Update(ctx context.Context, actor rbac.Actor, id string, in ProfileInput) (*model.UserProfile, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "профиль")
	}
	if !rbac.CanPerform(actor, rbac.ActionUpdate, rbac.ProfileResource{UserID: p.UserID}) {
		return nil, forbidden("изменение профиля")
	}

	if in.CareerID != nil {
		p.CareerID = emptyToNil(in.CareerID)
	}
	if in.StudentCode != nil {
		p.StudentCode = emptyToNil(in.StudentCode)
	}
	if in.Bio != nil {
		p.Bio = emptyToNil(in.Bio)
	}
	if in.AvatarPath != nil {
		p.AvatarPath = emptyToNil(in.AvatarPath)
	}

	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, mapRepoError(err, "профиль")
	}
	s.audit.recordBestEffort(ctx, actor.UserID, AuditProfileChanged, "user_profile", p.ID, map[string]any{"op": "update"})
	return p, nil
}

// Delete удаляет профиль (нужно разрешение delete_perfiles).
func (s *ProfileService) Delete(ctx context.Context, actor rbac.Actor, id string) error {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return mapRepoError(err, "профиль")
	}
	if !rbac.CanPerform(actor, rbac.ActionDelete, rbac.ProfileResource{UserID: p.UserID}) {
		return forbidden("удаление профиля")
	}
	if err := s.profiles.Delete(ctx, id); err != nil {
		return mapRepoError(err, "профиль")
	}
	s.logger.Info("Профиль удалён", slog.String("profile_id", id))
	s.audit.recordBestEffort(ctx, actor.UserID, AuditProfileChanged, "user_profile", id, map[string]any{"op": "delete"})
	return nil
}

// emptyToNil: пустая строка очищает поле.
func emptyToNil(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}
