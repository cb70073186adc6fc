package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/jorcase/exadocs/internal/domain/model"
	"github.com/jorcase/exadocs/internal/domain/rbac"
	"github.com/jorcase/exadocs/internal/repository"
)

// Кэш недавно провизионированных пользователей: пока данные токена
// не меняются, повторный upsert не выполняется.
const (
	seenUsersSize = 10000
	seenUsersTTL  = time.Minute
)

// UserService — пользователи, провизионируемые из токенов.
type UserService struct {
	users    repository.UserRepository
	profiles repository.ProfileRepository
	// seen — ID пользователя → отпечаток name/email/roles
	seen   *expirable.LRU[string, string]
	logger *slog.Logger
}

// NewUserService создаёт сервис пользователей.
func NewUserService(users repository.UserRepository, profiles repository.ProfileRepository, logger *slog.Logger) *UserService {
	return &UserService{
		users:    users,
		profiles: profiles,
		seen:     expirable.NewLRU[string, string](seenUsersSize, nil, seenUsersTTL),
		logger:   logger.With(slog.String("component", "user_service")),
	}
}

// EnsureUser создаёт или обновляет пользователя по данным токена.
// Вызывается на каждом аутентифицированном запросе.
func (s *UserService) EnsureUser(ctx context.Context, actor rbac.Actor, name, email string) (*model.User, error) {
	if !actor.IsAuthenticated() {
		return nil, forbidden("провизионирование без идентификатора")
	}
	if name == "" {
		name = email
	}
	u := &model.User{
		ID:    actor.UserID,
		Name:  name,
		Email: email,
		Roles: actor.RoleStrings(),
	}
	fingerprint := u.Name + "\x00" + u.Email + "\x00" + strings.Join(u.Roles, ",")
	if prev, ok := s.seen.Get(u.ID); ok && prev == fingerprint {
		return u, nil
	}

	if err := s.users.Upsert(ctx, u); err != nil {
		return nil, fmt.Errorf("провизионирование пользователя: %w", err)
	}
	s.seen.Add(u.ID, fingerprint)
	s.logger.Debug("Пользователь провизионирован",
		slog.String("user_id", u.ID),
		slog.Any("roles", u.Roles),
	)
	return u, nil
}

// Me возвращает текущего пользователя и его профиль (nil, если профиля нет).
func (s *UserService) Me(ctx context.Context, actor rbac.Actor) (*model.User, *model.UserProfile, error) {
	u, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, nil, mapRepoError(err, "пользователь")
	}
	p, err := s.profiles.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return u, nil, nil
		}
		return nil, nil, fmt.Errorf("получение профиля: %w", err)
	}
	return u, p, nil
}
