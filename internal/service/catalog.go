// catalog.go — справочники: карьеры, материи, планы обучения,
// типы и состояния архивов. Чтение доступно всем, запись — администратору.
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
	"github.com/jorcase/exadocs/internal/repository"
)

// CatalogService — операции над справочниками.
type CatalogService struct {
	catalog repository.CatalogRepository
	states  repository.FileStateRepository
	cache   *StateCache
	tx      Transactor
	audit   *AuditService
	logger  *slog.Logger
}

// NewCatalogService создаёт сервис справочников.
func NewCatalogService(
	catalog repository.CatalogRepository,
	states repository.FileStateRepository,
	cache *StateCache,
	tx Transactor,
	audit *AuditService,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		catalog: catalog,
		states:  states,
		cache:   cache,
		tx:      tx,
		audit:   audit,
		logger:  logger.With(slog.String("component", "catalog_service")),
	}
}

// authorizeWrite проверяет право на изменение справочников.
func authorizeWrite(actor rbac.Actor, action rbac.Action) error {
	if !rbac.CanPerform(actor, action, rbac.CatalogResource{}) {
		return forbidden("изменение справочников")
	}
	return nil
}

// mapDeleteError: удаление записи, на которую ссылаются, — конфликт.
func mapDeleteError(err error, what string) error {
	if errors.Is(err, repository.ErrReferenced) {
		return fmt.Errorf("%w: %s используется", ErrConflict, what)
	}
	return mapRepoError(err, what)
}

func requireName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", validationf("name обязателен")
	}
	return name, nil
}

// changed пишет аудит изменения справочника.
func (s *CatalogService) changed(ctx context.Context, actor rbac.Actor, entity, op, id string) {
	s.logger.Info("Справочник изменён",
		slog.String("entity", entity),
		slog.String("op", op),
		slog.String("id", id),
	)
	s.audit.recordBestEffort(ctx, actor.UserID, AuditCatalogChanged, entity, id, map[string]any{"op": op})
}

// --- Карьеры ---

// CreateCareer создаёт карьеру.
func (s *CatalogService) CreateCareer(ctx context.Context, actor rbac.Actor, c *model.Career) error {
	if err := authorizeWrite(actor, rbac.ActionCreate); err != nil {
		return err
	}
	name, err := requireName(c.Name)
	if err != nil {
		return err
	}
	c.Name = name
	c.ID = uuid.New().String()
	if err := s.catalog.CreateCareer(ctx, c); err != nil {
		return mapRepoError(err, fmt.Sprintf("карьера '%s'", c.Name))
	}
	s.changed(ctx, actor, "career", "create", c.ID)
	return nil
}

// GetCareer возвращает карьеру.
func (s *CatalogService) GetCareer(ctx context.Context, id string) (*model.Career, error) {
	c, err := s.catalog.GetCareer(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "карьера")
	}
	return c, nil
}

// ListCareers возвращает все карьеры.
func (s *CatalogService) ListCareers(ctx context.Context) ([]*model.Career, error) {
	items, err := s.catalog.ListCareers(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение карьер: %w", err)
	}
	return items, nil
}

// UpdateCareer обновляет карьеру.
func (s *CatalogService) UpdateCareer(ctx context.Context, actor rbac.Actor, c *model.Career) error {
	if err := authorizeWrite(actor, rbac.ActionUpdate); err != nil {
		return err
	}
	name, err := requireName(c.Name)
	if err != nil {
		return err
	}
	c.Name = name
	if err := s.catalog.UpdateCareer(ctx, c); err != nil {
		return mapRepoError(err, "карьера")
	}
	s.changed(ctx, actor, "career", "update", c.ID)
	return nil
}

// DeleteCareer удаляет карьеру.
func (s *CatalogService) DeleteCareer(ctx context.Context, actor rbac.Actor, id string) error {
	if err := authorizeWrite(actor, rbac.ActionDelete); err != nil {
		return err
	}
	if err := s.catalog.DeleteCareer(ctx, id); err != nil {
		return mapDeleteError(err, "карьера")
	}
	s.changed(ctx, actor, "career", "delete", id)
	return nil
}

// --- Материи ---

// CreateSubject создаёт материю.
func (s *CatalogService) CreateSubject(ctx context.Context, actor rbac.Actor, sub *model.Subject) error {
	if err := authorizeWrite(actor, rbac.ActionCreate); err != nil {
		return err
	}
	name, err := requireName(sub.Name)
	if err != nil {
		return err
	}
	sub.Name = name
	sub.Code = strings.TrimSpace(sub.Code)
	if sub.Code == "" {
		return validationf("code обязателен")
	}
	sub.ID = uuid.New().String()
	if err := s.catalog.CreateSubject(ctx, sub); err != nil {
		return mapRepoError(err, fmt.Sprintf("материя с кодом '%s'", sub.Code))
	}
	s.changed(ctx, actor, "subject", "create", sub.ID)
	return nil
}

// GetSubject возвращает материю.
func (s *CatalogService) GetSubject(ctx context.Context, id string) (*model.Subject, error) {
	sub, err := s.catalog.GetSubject(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "материя")
	}
	return sub, nil
}

// ListSubjects возвращает материи, опционально по карьере или плану.
func (s *CatalogService) ListSubjects(ctx context.Context, careerID, curriculumID *string) ([]*model.Subject, error) {
	items, err := s.catalog.ListSubjects(ctx, careerID, curriculumID)
	if err != nil {
		return nil, fmt.Errorf("получение материй: %w", err)
	}
	return items, nil
}

// UpdateSubject обновляет материю.
func (s *CatalogService) UpdateSubject(ctx context.Context, actor rbac.Actor, sub *model.Subject) error {
	if err := authorizeWrite(actor, rbac.ActionUpdate); err != nil {
		return err
	}
	name, err := requireName(sub.Name)
	if err != nil {
		return err
	}
	sub.Name = name
	sub.Code = strings.TrimSpace(sub.Code)
	if sub.Code == "" {
		return validationf("code обязателен")
	}
	if err := s.catalog.UpdateSubject(ctx, sub); err != nil {
		return mapRepoError(err, "материя")
	}
	s.changed(ctx, actor, "subject", "update", sub.ID)
	return nil
}

// DeleteSubject удаляет материю.
func (s *CatalogService) DeleteSubject(ctx context.Context, actor rbac.Actor, id string) error {
	if err := authorizeWrite(actor, rbac.ActionDelete); err != nil {
		return err
	}
	if err := s.catalog.DeleteSubject(ctx, id); err != nil {
		return mapDeleteError(err, "материя")
	}
	s.changed(ctx, actor, "subject", "delete", id)
	return nil
}

// --- Планы обучения ---

// CreateCurriculum создаёт план обучения карьеры.
func (s *CatalogService) CreateCurriculum(ctx context.Context, actor rbac.Actor, c *model.Curriculum) error {
	if err := authorizeWrite(actor, rbac.ActionCreate); err != nil {
		return err
	}
	name, err := requireName(c.Name)
	if err != nil {
		return err
	}
	c.Name = name
	if c.CareerID == "" {
		return validationf("career_id обязателен")
	}
	c.ID = uuid.New().String()
	if err := s.catalog.CreateCurriculum(ctx, c); err != nil {
		return mapRepoError(err, fmt.Sprintf("план обучения '%s'", c.Name))
	}
	s.changed(ctx, actor, "curriculum", "create", c.ID)
	return nil
}

// GetCurriculum возвращает план обучения.
func (s *CatalogService) GetCurriculum(ctx context.Context, id string) (*model.Curriculum, error) {
	c, err := s.catalog.GetCurriculum(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "план обучения")
	}
	return c, nil
}

// ListCurricula возвращает планы обучения, опционально одной карьеры.
func (s *CatalogService) ListCurricula(ctx context.Context, careerID *string) ([]*model.Curriculum, error) {
	items, err := s.catalog.ListCurricula(ctx, careerID)
	if err != nil {
		return nil, fmt.Errorf("получение планов обучения: %w", err)
	}
	return items, nil
}

// UpdateCurriculum обновляет план обучения.
func (s *CatalogService) UpdateCurriculum(ctx context.Context, actor rbac.Actor, c *model.Curriculum) error {
	if err := authorizeWrite(actor, rbac.ActionUpdate); err != nil {
		return err
	}
	name, err := requireName(c.Name)
	if err != nil {
		return err
	}
	c.Name = name
	if err := s.catalog.UpdateCurriculum(ctx, c); err != nil {
		return mapRepoError(err, "план обучения")
	}
	s.changed(ctx, actor, "curriculum", "update", c.ID)
	return nil
}

// DeleteCurriculum удаляет план обучения.
func (s *CatalogService) DeleteCurriculum(ctx context.Context, actor rbac.Actor, id string) error {
	if err := authorizeWrite(actor, rbac.ActionDelete); err != nil {
		return err
	}
	if err := s.catalog.DeleteCurriculum(ctx, id); err != nil {
		return mapDeleteError(err, "план обучения")
	}
	s.changed(ctx, actor, "curriculum", "delete", id)
	return nil
}

// --- Типы архивов ---

// CreateFileType создаёт тип архива.
func (s *CatalogService) CreateFileType(ctx context.Context, actor rbac.Actor, ft *model.FileType) error {
	if err := authorizeWrite(actor, rbac.ActionCreate); err != nil {
		return err
	}
	name, err := requireName(ft.Name)
	if err != nil {
		return err
	}
	ft.Name = name
	ft.Extensions = normalizeExtensions(ft.Extensions)
	ft.ID = uuid.New().String()
	if err := s.catalog.CreateFileType(ctx, ft); err != nil {
		return mapRepoError(err, fmt.Sprintf("тип архива '%s'", ft.Name))
	}
	s.changed(ctx, actor, "file_type", "create", ft.ID)
	return nil
}

// GetFileType возвращает тип архива.
func (s *CatalogService) GetFileType(ctx context.Context, id string) (*model.FileType, error) {
	ft, err := s.catalog.GetFileType(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "тип архива")
	}
	return ft, nil
}

// ListFileTypes возвращает все типы архивов.
func (s *CatalogService) ListFileTypes(ctx context.Context) ([]*model.FileType, error) {
	items, err := s.catalog.ListFileTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение типов архивов: %w", err)
	}
	return items, nil
}

// UpdateFileType обновляет тип архива.
func (s *CatalogService) UpdateFileType(ctx context.Context, actor rbac.Actor, ft *model.FileType) error {
	if err := authorizeWrite(actor, rbac.ActionUpdate); err != nil {
		return err
	}
	name, err := requireName(ft.Name)
	if err != nil {
		return err
	}
	ft.Name = name
	ft.Extensions = normalizeExtensions(ft.Extensions)
	if err := s.catalog.UpdateFileType(ctx, ft); err != nil {
		return mapRepoError(err, "тип архива")
	}
	s.changed(ctx, actor, "file_type", "update", ft.ID)
	return nil
}

// DeleteFileType удаляет тип архива.
func (s *CatalogService) DeleteFileType(ctx context.Context, actor rbac.Actor, id string) error {
	if err := authorizeWrite(actor, rbac.ActionDelete); err != nil {
		return err
	}
	if err := s.catalog.DeleteFileType(ctx, id); err != nil {
		return mapDeleteError(err, "тип архива")
	}
	s.changed(ctx, actor, "file_type", "delete", id)
	return nil
}

// normalizeExtensions приводит расширения к нижнему регистру без точки
// и убирает дубликаты.
func normalizeExtensions(exts []string) []string {
	seen := make(map[string]bool, len(exts))
	result := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		result = append(result, e)
	}
	return result
}

// --- Состояния архивов ---

// CreateFileState создаёт состояние. Новое состояние по умолчанию
// снимает признак с прежнего в той же транзакции.
func (s *CatalogService) CreateFileState(ctx context.Context, actor rbac.Actor, st *model.FileState) error {
	if err := authorizeWrite(actor, rbac.ActionCreate); err != nil {
		return err
	}
	name, err := requireName(st.Name)
	if err != nil {
		return err
	}
	st.Name = name
	st.ID = uuid.New().String()
	err = s.writeFileState(ctx, st, func(ctx context.Context, repo repository.FileStateRepository) error {
		return repo.Create(ctx, st)
	})
	if err != nil {
		return mapRepoError(err, fmt.Sprintf("состояние '%s'", st.Name))
	}
	s.cache.Purge()
	s.changed(ctx, actor, "file_state", "create", st.ID)
	return nil
}

// GetFileState возвращает состояние (через кэш).
func (s *CatalogService) GetFileState(ctx context.Context, id string) (*model.FileState, error) {
	st, err := s.cache.Get(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "состояние")
	}
	return st, nil
}

// ListFileStates возвращает все состояния.
func (s *CatalogService) ListFileStates(ctx context.Context) ([]*model.FileState, error) {
	items, err := s.states.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение состояний: %w", err)
	}
	return items, nil
}

// UpdateFileState обновляет состояние.
func (s *CatalogService) UpdateFileState(ctx context.Context, actor rbac.Actor, st *model.FileState) error {
	if err := authorizeWrite(actor, rbac.ActionUpdate); err != nil {
		return err
	}
	name, err := requireName(st.Name)
	if err != nil {
		return err
	}
	st.Name = name

	current, err := s.states.GetByID(ctx, st.ID)
	if err != nil {
		return mapRepoError(err, "состояние")
	}
	if current.IsDefault && !st.IsDefault {
		return validationf("нельзя снять признак по умолчанию: отметьте по умолчанию другое состояние")
	}

	err = s.writeFileState(ctx, st, func(ctx context.Context, repo repository.FileStateRepository) error {
		return repo.Update(ctx, st)
	})
	if err != nil {
		return mapRepoError(err, "состояние")
	}
	s.cache.Purge()
	s.changed(ctx, actor, "file_state", "update", st.ID)
	return nil
}

// writeFileState выполняет запись состояния. Если st становится состоянием
// по умолчанию, признак снимается с прежнего в той же транзакции:
// частичный уникальный индекс допускает только одно такое состояние.
func (s *CatalogService) writeFileState(
	ctx context.Context,
	st *model.FileState,
	write func(context.Context, repository.FileStateRepository) error,
) error {
	if !st.IsDefault {
		return write(ctx, s.states)
	}
	return s.tx.InTx(ctx, func(r TxRepos) error {
		if err := r.States.ClearDefault(ctx, st.ID); err != nil {
			return err
		}
		return write(ctx, r.States)
	})
}

// DeleteFileState удаляет состояние. Состояние по умолчанию не удаляется.
func (s *CatalogService) DeleteFileState(ctx context.Context, actor rbac.Actor, id string) error {
	if err := authorizeWrite(actor, rbac.ActionDelete); err != nil {
		return err
	}
	current, err := s.states.GetByID(ctx, id)
	if err != nil {
		return mapRepoError(err, "состояние")
	}
	if current.IsDefault {
		return validationf("состояние по умолчанию нельзя удалить")
	}
	if err := s.states.Delete(ctx, id); err != nil {
		return mapDeleteError(err, "состояние")
	}
	s.cache.Purge()
	s.changed(ctx, actor, "file_state", "delete", id)
	return nil
}

// --- Связи материй ---

// AssignSubjectToCareer связывает материю с карьерой.
func (s *CatalogService) AssignSubjectToCareer(ctx context.Context, actor rbac.Actor, careerID, subjectID string) error {
	if err := authorizeWrite(actor, rbac.ActionUpdate); err != nil {
		return err
	}
	if err := s.catalog.LinkCareerSubject(ctx, careerID, subjectID); err != nil {
		return mapRepoError(err, "связь карьеры и материи")
	}
	s.changed(ctx, actor, "career_subject", "link", careerID+"/"+subjectID)
	return nil
}

// UnassignSubjectFromCareer удаляет связь материи с карьерой.
func (s *CatalogService) UnassignSubjectFromCareer(ctx context.Context, actor rbac.Actor, careerID, subjectID string) error {
	if err := authorizeWrite(actor, rbac.ActionUpdate); err != nil {
		return err
	}
	if err := s.catalog.UnlinkCareerSubject(ctx, careerID, subjectID); err != nil {
		return mapRepoError(err, "связь карьеры и материи")
	}
	s.changed(ctx, actor, "career_subject", "unlink", careerID+"/"+subjectID)
	return nil
}

// AssignSubjectToCurriculum включает материю в план обучения.
func (s *CatalogService) AssignSubjectToCurriculum(ctx context.Context, actor rbac.Actor, curriculumID, subjectID string) error {
	if err := authorizeWrite(actor, rbac.ActionUpdate); err != nil {
		return err
	}
	if err := s.catalog.LinkCurriculumSubject(ctx, curriculumID, subjectID); err != nil {
		return mapRepoError(err, "связь плана и материи")
	}
	s.changed(ctx, actor, "curriculum_subject", "link", curriculumID+"/"+subjectID)
	return nil
}

// UnassignSubjectFromCurriculum исключает материю из плана обучения.
func (s *CatalogService) UnassignSubjectFromCurriculum(ctx context.Context, actor rbac.Actor, curriculumID, subjectID string) error {
	if err := authorizeWrite(actor, rbac.ActionUpdate); err != nil {
		return err
	}
	if err := s.catalog.UnlinkCurriculumSubject(ctx, curriculumID, subjectID); err != nil {
		return mapRepoError(err, "связь плана и материи")
	}
	s.changed(ctx, actor, "curriculum_subject", "unlink", curriculumID+"/"+subjectID)
	return nil
}
