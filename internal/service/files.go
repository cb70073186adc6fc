// files.go — сервис архивов: загрузка, просмотр, редактирование,
// мягкое удаление, история ревью и избранное.
package service

import (
	"bytes"
	"context"
	"encoding/json"
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

const maxTitleLen = 255

// CreateFileInput — данные нового архива.
type CreateFileInput struct {
	SubjectID    string
	CurriculumID *string
	FileTypeID   string
	Title        string
	Description  string
	StoragePath  string
	SizeBytes    int64
	Metadata     json.RawMessage
}

// UpdateFileInput — частичное обновление архива; nil — поле не меняется.
type UpdateFileInput struct {
	SubjectID    *string
	CurriculumID *string
	FileTypeID   *string
	Title        *string
	Description  *string
	StoragePath  *string
	SizeBytes    *int64
	Metadata     json.RawMessage
}

// FileService — операции над архивами.
type FileService struct {
	files      repository.FileRepository
	catalog    repository.CatalogRepository
	history    repository.ReviewHistoryRepository
	states     *StateCache
	audit      *AuditService
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewFileService создаёт сервис архивов.
func NewFileService(
	files repository.FileRepository,
	catalog repository.CatalogRepository,
	history repository.ReviewHistoryRepository,
	states *StateCache,
	audit *AuditService,
	dispatcher *Dispatcher,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		files:      files,
		catalog:    catalog,
		history:    history,
		states:     states,
		audit:      audit,
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "file_service")),
	}
}

// validateMetadata допускает пустые метаданные или JSON-объект.
func validateMetadata(m json.RawMessage) error {
	if len(m) == 0 {
		return nil
	}
	trimmed := bytes.TrimSpace(m)
	if !json.Valid(trimmed) || len(trimmed) == 0 || trimmed[0] != '{' {
		return validationf("metadata должен быть JSON-объектом")
	}
	return nil
}

func validateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return validationf("title обязателен")
	}
	if len([]rune(title)) > maxTitleLen {
		return validationf("title длиннее %d символов", maxTitleLen)
	}
	return nil
}

// checkRefs проверяет ссылки архива на справочники.
func (s *FileService) checkRefs(ctx context.Context, subjectID string, curriculumID *string, fileTypeID string) error {
	if _, err := s.catalog.GetSubject(ctx, subjectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return validationf("материя %s не существует", subjectID)
		}
		return fmt.Errorf("проверка материи: %w", err)
	}
	if _, err := s.catalog.GetFileType(ctx, fileTypeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return validationf("тип архива %s не существует", fileTypeID)
		}
		return fmt.Errorf("проверка типа архива: %w", err)
	}
	if curriculumID == nil {
		return nil
	}
	if _, err := s.catalog.GetCurriculum(ctx, *curriculumID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return validationf("план обучения %s не существует", *curriculumID)
		}
		return fmt.Errorf("проверка плана обучения: %w", err)
	}
	ok, err := s.catalog.CurriculumHasSubject(ctx, *curriculumID, subjectID)
	if err != nil {
		return fmt.Errorf("проверка материи в плане: %w", err)
	}
	if !ok {
		return validationf("материя %s не входит в план %s", subjectID, *curriculumID)
	}
	return nil
}

// Create загружает архив от имени actor в состоянии по умолчанию.
func (s *FileService) Create(ctx context.Context, actor rbac.Actor, in CreateFileInput) (*model.File, error) {
	if !rbac.CanPerform(actor, rbac.ActionCreate, rbac.FileResource{OwnerID: actor.UserID}) {
		return nil, forbidden("загрузка архива")
	}
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.StoragePath) == "" {
		return nil, validationf("storage_path обязателен")
	}
	if in.SizeBytes < 0 {
		return nil, validationf("size_bytes не может быть отрицательным")
	}
	if err := validateMetadata(in.Metadata); err != nil {
		return nil, err
	}
	// Пустой curriculum_id — архив без плана, как и в Update
	if in.CurriculumID != nil && strings.TrimSpace(*in.CurriculumID) == "" {
		in.CurriculumID = nil
	}
	if err := s.checkRefs(ctx, in.SubjectID, in.CurriculumID, in.FileTypeID); err != nil {
		return nil, err
	}

	state, err := s.states.Default(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение состояния по умолчанию: %w", err)
	}

	ownerID := actor.UserID
	f := &model.File{
		ID:           uuid.New().String(),
		OwnerID:      &ownerID,
		SubjectID:    in.SubjectID,
		CurriculumID: in.CurriculumID,
		FileTypeID:   in.FileTypeID,
		StateID:      state.ID,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		StoragePath:  in.StoragePath,
		SizeBytes:    in.SizeBytes,
		Metadata:     in.Metadata,
	}
	if err := s.files.Create(ctx, f); err != nil {
		return nil, mapRepoError(err, "архив")
	}

	s.logger.Info("Архив загружен",
		slog.String("file_id", f.ID),
		slog.String("owner_id", ownerID),
		slog.String("state", state.Name),
	)

	s.audit.recordBestEffort(ctx, actor.UserID, AuditFileCreated, "file", f.ID, map[string]any{
		"title": f.Title,
		"state": state.Name,
	})
	s.dispatcher.NotifyOwner(ctx, ownerEvent{
		File:     f,
		ActorID:  actor.UserID,
		Type:     model.NotificationFileCreated,
		Title:    fmt.Sprintf("Tu archivo \"%s\" fue recibido", f.Title),
		Data:     map[string]any{"file_id": f.ID, "estado": state.Name},
		Template: mail.TemplateFileCreated,
		Subject:  fmt.Sprintf("Recibimos tu archivo \"%s\"", f.Title),
		MailData: map[string]any{"estado": state.Name},
	})

	return f, nil
}

// Get возвращает архив и учитывает просмотр.
func (s *FileService) Get(ctx context.Context, actor rbac.Actor, id string) (*model.File, error) {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "архив")
	}
	if !rbac.CanPerform(actor, rbac.ActionView, fileResource(f)) {
		return nil, forbidden("просмотр архива")
	}

	visits, err := s.files.IncrementVisits(ctx, id)
	if err != nil {
		// Просмотр всё равно отдаём
		s.logger.Warn("Не удалось учесть просмотр",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
	} else {
		f.VisitCount = visits
	}
	return f, nil
}

// List возвращает архивы с фильтрацией и пагинацией.
func (s *FileService) List(ctx context.Context, actor rbac.Actor, filters repository.FileListFilters, limit, offset int) ([]*model.File, int, error) {
	if !rbac.CanPerform(actor, rbac.ActionViewAny, rbac.FileResource{}) {
		return nil, 0, forbidden("просмотр архивов")
	}

	files, err := s.files.List(ctx, filters, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка архивов: %w", err)
	}
	total, err := s.files.Count(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт архивов: %w", err)
	}
	return files, total, nil
}

// authorizeEdit проверяет право на изменение архива: правило update
// и запрет владельцу менять архив в финальном состоянии.
func (s *FileService) authorizeEdit(ctx context.Context, actor rbac.Actor, f *model.File) error {
	if !rbac.CanPerform(actor, rbac.ActionUpdate, fileResource(f)) {
		return forbidden("изменение архива")
	}
	if actor.IsStaff() {
		return nil
	}
	state, err := s.states.Get(ctx, f.StateID)
	if err != nil {
		return fmt.Errorf("получение состояния архива: %w", err)
	}
	if state.IsFinal {
		return forbidden("архив в финальном состоянии " + state.Name)
	}
	return nil
}

// Update изменяет поля архива.
func (s *FileService) Update(ctx context.Context, actor rbac.Actor, id string, in UpdateFileInput) (*model.File, error) {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "архив")
	}
	if err := s.authorizeEdit(ctx, actor, f); err != nil {
		return nil, err
	}

	changed := make([]string, 0, 8)
	if in.Title != nil {
		if err := validateTitle(*in.Title); err != nil {
			return nil, err
		}
		f.Title = strings.TrimSpace(*in.Title)
		changed = append(changed, "title")
	}
	if in.Description != nil {
		f.Description = *in.Description
		changed = append(changed, "description")
	}
	if in.StoragePath != nil {
		if strings.TrimSpace(*in.StoragePath) == "" {
			return nil, validationf("storage_path не может быть пустым")
		}
		f.StoragePath = *in.StoragePath
		changed = append(changed, "storage_path")
	}
	if in.SizeBytes != nil {
		if *in.SizeBytes < 0 {
			return nil, validationf("size_bytes не может быть отрицательным")
		}
		f.SizeBytes = *in.SizeBytes
		changed = append(changed, "size_bytes")
	}
	if in.Metadata != nil {
		if err := validateMetadata(in.Metadata); err != nil {
			return nil, err
		}
		f.Metadata = in.Metadata
		changed = append(changed, "metadata")
	}

	refsChanged := false
	if in.SubjectID != nil {
		f.SubjectID = *in.SubjectID
		refsChanged = true
		changed = append(changed, "subject_id")
	}
	if in.CurriculumID != nil {
		// Пустая строка снимает план обучения
		if strings.TrimSpace(*in.CurriculumID) == "" {
			f.CurriculumID = nil
		} else {
			f.CurriculumID = in.CurriculumID
		}
		refsChanged = true
		changed = append(changed, "curriculum_id")
	}
	if in.FileTypeID != nil {
		f.FileTypeID = *in.FileTypeID
		refsChanged = true
		changed = append(changed, "file_type_id")
	}
	if refsChanged {
		if err := s.checkRefs(ctx, f.SubjectID, f.CurriculumID, f.FileTypeID); err != nil {
			return nil, err
		}
	}

	if len(changed) == 0 {
		return f, nil
	}
	if err := s.files.Update(ctx, f); err != nil {
		return nil, mapRepoError(err, "архив")
	}

	s.logger.Info("Архив обновлён",
		slog.String("file_id", id),
		slog.Any("fields", changed),
	)

	s.audit.recordBestEffort(ctx, actor.UserID, AuditFileUpdated, "file", id, map[string]any{
		"fields": changed,
	})
	s.dispatcher.NotifyOwner(ctx, ownerEvent{
		File:     f,
		ActorID:  actor.UserID,
		Type:     model.NotificationFileUpdated,
		Title:    fmt.Sprintf("Tu archivo \"%s\" fue actualizado", f.Title),
		Data:     map[string]any{"file_id": id, "campos": changed},
		Template: mail.TemplateFileUpdated,
		Subject:  fmt.Sprintf("Se actualizó tu archivo \"%s\"", f.Title),
	})

	return f, nil
}

// Delete выполняет мягкое удаление архива.
func (s *FileService) Delete(ctx context.Context, actor rbac.Actor, id string) error {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return mapRepoError(err, "архив")
	}
	if !rbac.CanPerform(actor, rbac.ActionDelete, fileResource(f)) {
		return forbidden("удаление архива")
	}

	if err := s.files.SoftDelete(ctx, id); err != nil {
		return mapRepoError(err, "архив")
	}

	s.logger.Info("Архив удалён",
		slog.String("file_id", id),
		slog.String("actor_id", actor.UserID),
	)
	s.audit.recordBestEffort(ctx, actor.UserID, AuditFileDeleted, "file", id, map[string]any{
		"title": f.Title,
	})
	return nil
}

// History возвращает историю ревью архива.
func (s *FileService) History(ctx context.Context, actor rbac.Actor, id string) ([]*model.ReviewHistoryEntry, error) {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "архив")
	}
	if !rbac.CanPerform(actor, rbac.ActionView, fileResource(f)) {
		return nil, forbidden("просмотр истории")
	}
	entries, err := s.history.ListByFile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("получение истории ревью: %w", err)
	}
	return entries, nil
}

// Save добавляет архив в избранное пользователя. Повтор — без ошибки.
func (s *FileService) Save(ctx context.Context, actor rbac.Actor, id string) error {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return mapRepoError(err, "архив")
	}
	if !actor.IsAuthenticated() || !rbac.CanPerform(actor, rbac.ActionView, fileResource(f)) {
		return forbidden("сохранение архива")
	}
	if err := s.files.Save(ctx, id, actor.UserID); err != nil {
		return mapRepoError(err, "избранное")
	}
	return nil
}

// Unsave убирает архив из избранного.
func (s *FileService) Unsave(ctx context.Context, actor rbac.Actor, id string) error {
	if !actor.IsAuthenticated() {
		return forbidden("изменение избранного")
	}
	if err := s.files.Unsave(ctx, id, actor.UserID); err != nil {
		return mapRepoError(err, "архив в избранном")
	}
	return nil
}

// ListSaved возвращает избранные архивы пользователя.
func (s *FileService) ListSaved(ctx context.Context, actor rbac.Actor, limit, offset int) ([]*model.File, int, error) {
	if !actor.IsAuthenticated() {
		return nil, 0, forbidden("просмотр избранного")
	}
	files, err := s.files.ListSaved(ctx, actor.UserID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение избранного: %w", err)
	}
	total, err := s.files.CountSaved(ctx, actor.UserID)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт избранного: %w", err)
	}
	return files, total, nil
}
