// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/jorcase/exadocs/internal/repository"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrForbidden — действие запрещено для текущего пользователя.
	ErrForbidden = errors.New("действие запрещено")
)

// mapRepoError переводит ошибку репозитория в ошибку сервисного слоя.
// what — описание ресурса для сообщения.
func mapRepoError(err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %s", ErrConflict, what)
	case errors.Is(err, repository.ErrReferenced):
		return fmt.Errorf("%w: %s ссылается на несуществующую запись или используется", ErrValidation, what)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

// validationf создаёт ошибку валидации с сообщением.
func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// forbidden создаёт ошибку запрета с описанием действия.
func forbidden(action string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, action)
}
