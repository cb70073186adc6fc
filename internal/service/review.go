// review.go — рабочий процесс ревью: смена состояния архива.
//
// Блокировка строки, смена состояния, запись истории и аудита выполняются
// в одной транзакции. Уведомление и письмо владельцу отправляются после
// коммита и не откатывают переход при сбое.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jorcase/exadocs/internal/domain/model"
	"github.com/jorcase/exadocs/internal/domain/rbac"
	"github.com/jorcase/exadocs/internal/mail"
	"github.com/jorcase/exadocs/internal/repository"
)

// ReviewService — переходы состояний архивов.
type ReviewService struct {
	tx         Transactor
	files      repository.FileRepository
	states     *StateCache
	dispatcher *Dispatcher
	// transitions — разрешённые переходы по именам состояний; nil — любые
	transitions map[string][]string
	logger      *slog.Logger
}

// NewReviewService создаёт сервис ревью.
func NewReviewService(
	tx Transactor,
	files repository.FileRepository,
	states *StateCache,
	dispatcher *Dispatcher,
	transitions map[string][]string,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		tx:          tx,
		files:       files,
		states:      states,
		dispatcher:  dispatcher,
		transitions: transitions,
		logger:      logger.With(slog.String("component", "review")),
	}
}

// allowed проверяет переход по таблице разрешённых переходов.
func (s *ReviewService) allowed(from, to string) bool {
	if s.transitions == nil {
		return true
	}
	for _, t := range s.transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// TransitionState переводит архив в состояние newStateID от имени reviewer.
// Возвращает созданную запись истории.
func (s *ReviewService) TransitionState(ctx context.Context, fileID string, reviewer rbac.Actor, newStateID string, comment *string) (*model.ReviewHistoryEntry, error) {
	newState, err := s.states.Get(ctx, newStateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, validationf("состояние %s не существует", newStateID)
		}
		return nil, fmt.Errorf("получение состояния: %w", err)
	}

	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, mapRepoError(err, "архив")
	}
	if !rbac.CanPerform(reviewer, rbac.ActionUpdate, fileResource(file)) {
		return nil, forbidden("смена состояния архива")
	}

	var (
		entry     *model.ReviewHistoryEntry
		prevState *model.FileState
	)

	err = s.tx.InTx(ctx, func(r TxRepos) error {
		locked, err := r.Files.GetForUpdate(ctx, fileID)
		if err != nil {
			return mapRepoError(err, "архив")
		}

		prevState, err = s.states.Get(ctx, locked.StateID)
		if err != nil {
			return fmt.Errorf("получение текущего состояния: %w", err)
		}
		if prevState.ID == newState.ID {
			return validationf("архив уже в состоянии %s", newState.Name)
		}
		// Владелец без роли модератора не выводит архив из финального состояния
		if prevState.IsFinal && !reviewer.IsStaff() {
			return forbidden("архив в финальном состоянии " + prevState.Name)
		}
		if !s.allowed(prevState.Name, newState.Name) {
			return validationf("переход %s → %s не разрешён", prevState.Name, newState.Name)
		}

		if err := r.Files.UpdateState(ctx, locked, newState.ID, newState.Publishes); err != nil {
			return mapRepoError(err, "архив")
		}
		file = locked

		reviewerID := reviewer.UserID
		entry = &model.ReviewHistoryEntry{
			ID:            uuid.New().String(),
			FileID:        fileID,
			ReviewerID:    &reviewerID,
			PreviousState: prevState.Name,
			NewState:      newState.Name,
			Comment:       comment,
		}
		if err := r.History.Append(ctx, entry); err != nil {
			return fmt.Errorf("запись истории ревью: %w", err)
		}

		return appendAudit(ctx, r.Audit, reviewer.UserID, AuditFileStateChanged, "file", fileID, map[string]any{
			"from":    prevState.Name,
			"to":      newState.Name,
			"version": locked.Version,
		})
	})
	if err != nil {
		return nil, err
	}

	reviewTransitionsTotal.WithLabelValues(prevState.Name, newState.Name).Inc()
	s.logger.Info("Состояние архива изменено",
		slog.String("file_id", fileID),
		slog.String("reviewer_id", reviewer.UserID),
		slog.String("from", prevState.Name),
		slog.String("to", newState.Name),
		slog.Int("version", file.Version),
	)

	var commentText any
	if comment != nil {
		commentText = *comment
	}
	s.dispatcher.NotifyOwner(ctx, ownerEvent{
		File:    file,
		ActorID: reviewer.UserID,
		Type:    model.NotificationReview,
		Title:   fmt.Sprintf("Tu archivo \"%s\" ahora está %s", file.Title, newState.Name),
		Data: map[string]any{
			"file_id":         fileID,
			"estado":          newState.Name,
			"estado_anterior": prevState.Name,
			"comentario":      commentText,
		},
		Template: mail.TemplateFileStateChanged,
		Subject:  fmt.Sprintf("Revisión de \"%s\": %s", file.Title, newState.Name),
		MailData: map[string]any{
			"estado":          newState.Name,
			"estado_anterior": prevState.Name,
			"comentario":      commentText,
		},
	})

	return entry, nil
}

// fileResource строит ресурс авторизации для архива.
func fileResource(f *model.File) rbac.FileResource {
	if f.OwnerID == nil {
		return rbac.FileResource{}
	}
	return rbac.FileResource{OwnerID: *f.OwnerID}
}
