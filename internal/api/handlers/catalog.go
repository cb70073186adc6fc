// catalog.go — справочники: карьеры, материи, планы обучения,
// типы и состояния архивов. Чтение — любому пользователю, изменения — admin.
package handlers

import (
	"context"
	"net/http"

	"github.com/jorcase/exadocs/internal/domain/model"
	"github.com/jorcase/exadocs/internal/domain/rbac"
)

// --- Карьеры ---

// ListCareers — GET /api/v1/careers.
func (h *APIHandler) ListCareers(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	items, err := h.svc.Catalog.ListCareers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "получение карьер", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": mapSlice(items, mapCareer)})
}

// CreateCareer — POST /api/v1/careers.
func (h *APIHandler) CreateCareer(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req careerRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	c := &model.Career{Name: req.Name, Code: req.Code}
	if err := h.svc.Catalog.CreateCareer(r.Context(), a, c); err != nil {
		h.writeServiceError(w, r, "создание карьеры", err)
		return
	}
	h.respondCareer(w, r, http.StatusCreated, c.ID)
}

// GetCareer — GET /api/v1/careers/{id}.
func (h *APIHandler) GetCareer(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.respondCareer(w, r, http.StatusOK, id)
}

// UpdateCareer — PUT /api/v1/careers/{id}.
func (h *APIHandler) UpdateCareer(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req careerRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.Catalog.UpdateCareer(r.Context(), a, &model.Career{ID: id, Name: req.Name, Code: req.Code}); err != nil {
		h.writeServiceError(w, r, "изменение карьеры", err)
		return
	}
	h.respondCareer(w, r, http.StatusOK, id)
}

// DeleteCareer — DELETE /api/v1/careers/{id}. Используемая карьера — 409.
func (h *APIHandler) DeleteCareer(w http.ResponseWriter, r *http.Request) {
	h.deleteCatalog(w, r, "удаление карьеры", h.svc.Catalog.DeleteCareer)
}

// respondCareer перечитывает карьеру, чтобы вернуть заполненные БД поля.
func (h *APIHandler) respondCareer(w http.ResponseWriter, r *http.Request, status int, id string) {
	c, err := h.svc.Catalog.GetCareer(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "получение карьеры", err)
		return
	}
	writeJSON(w, status, mapCareer(c))
}

// --- Материи ---

// ListSubjects — GET /api/v1/subjects?career_id=&curriculum_id=.
func (h *APIHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	careerID, ok := queryUUID(w, r, "career_id")
	if !ok {
		return
	}
	curriculumID, ok := queryUUID(w, r, "curriculum_id")
	if !ok {
		return
	}
	items, err := h.svc.Catalog.ListSubjects(r.Context(), careerID, curriculumID)
	if err != nil {
		h.writeServiceError(w, r, "получение материй", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": mapSlice(items, mapSubject)})
}

// CreateSubject — POST /api/v1/subjects.
func (h *APIHandler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req subjectRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	sub := &model.Subject{Name: req.Name, Code: req.Code}
	if err := h.svc.Catalog.CreateSubject(r.Context(), a, sub); err != nil {
		h.writeServiceError(w, r, "создание материи", err)
		return
	}
	h.respondSubject(w, r, http.StatusCreated, sub.ID)
}

// GetSubject — GET /api/v1/subjects/{id}.
func (h *APIHandler) GetSubject(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.respondSubject(w, r, http.StatusOK, id)
}

// UpdateSubject — PUT /api/v1/subjects/{id}.
func (h *APIHandler) UpdateSubject(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req subjectRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.Catalog.UpdateSubject(r.Context(), a, &model.Subject{ID: id, Name: req.Name, Code: req.Code}); err != nil {
		h.writeServiceError(w, r, "изменение материи", err)
		return
	}
	h.respondSubject(w, r, http.StatusOK, id)
}

// DeleteSubject — DELETE /api/v1/subjects/{id}.
func (h *APIHandler) DeleteSubject(w http.ResponseWriter, r *http.Request) {
	h.deleteCatalog(w, r, "удаление материи", h.svc.Catalog.DeleteSubject)
}

func (h *APIHandler) respondSubject(w http.ResponseWriter, r *http.Request, status int, id string) {
	s, err := h.svc.Catalog.GetSubject(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "получение материи", err)
		return
	}
	writeJSON(w, status, mapSubject(s))
}

// --- Планы обучения ---

// ListCurricula — GET /api/v1/curricula?career_id=.
func (h *APIHandler) ListCurricula(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	careerID, ok := queryUUID(w, r, "career_id")
	if !ok {
		return
	}
	items, err := h.svc.Catalog.ListCurricula(r.Context(), careerID)
	if err != nil {
		h.writeServiceError(w, r, "получение планов обучения", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": mapSlice(items, mapCurriculum)})
}

// CreateCurriculum — POST /api/v1/curricula.
func (h *APIHandler) CreateCurriculum(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req curriculumRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	c := &model.Curriculum{CareerID: req.CareerID, Name: req.Name, Year: req.Year}
	if err := h.svc.Catalog.CreateCurriculum(r.Context(), a, c); err != nil {
		h.writeServiceError(w, r, "создание плана обучения", err)
		return
	}
	h.respondCurriculum(w, r, http.StatusCreated, c.ID)
}

// GetCurriculum — GET /api/v1/curricula/{id}.
func (h *APIHandler) GetCurriculum(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.respondCurriculum(w, r, http.StatusOK, id)
}

// UpdateCurriculum — PUT /api/v1/curricula/{id}.
func (h *APIHandler) UpdateCurriculum(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req curriculumRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	c := &model.Curriculum{ID: id, CareerID: req.CareerID, Name: req.Name, Year: req.Year}
	if err := h.svc.Catalog.UpdateCurriculum(r.Context(), a, c); err != nil {
		h.writeServiceError(w, r, "изменение плана обучения", err)
		return
	}
	h.respondCurriculum(w, r, http.StatusOK, id)
}

// DeleteCurriculum — DELETE /api/v1/curricula/{id}.
func (h *APIHandler) DeleteCurriculum(w http.ResponseWriter, r *http.Request) {
	h.deleteCatalog(w, r, "удаление плана обучения", h.svc.Catalog.DeleteCurriculum)
}

func (h *APIHandler) respondCurriculum(w http.ResponseWriter, r *http.Request, status int, id string) {
	c, err := h.svc.Catalog.GetCurriculum(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "получение плана обучения", err)
		return
	}
	writeJSON(w, status, mapCurriculum(c))
}

// --- Типы архивов ---

// ListFileTypes — GET /api/v1/file-types.
func (h *APIHandler) ListFileTypes(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	items, err := h.svc.Catalog.ListFileTypes(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "получение типов архивов", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": mapSlice(items, mapFileType)})
}

// CreateFileType — POST /api/v1/file-types.
func (h *APIHandler) CreateFileType(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req fileTypeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	ft := &model.FileType{Name: req.Name, Extensions: req.Extensions}
	if err := h.svc.Catalog.CreateFileType(r.Context(), a, ft); err != nil {
		h.writeServiceError(w, r, "создание типа архива", err)
		return
	}
	h.respondFileType(w, r, http.StatusCreated, ft.ID)
}

// GetFileType — GET /api/v1/file-types/{id}.
func (h *APIHandler) GetFileType(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.respondFileType(w, r, http.StatusOK, id)
}

// UpdateFileType — PUT /api/v1/file-types/{id}.
func (h *APIHandler) UpdateFileType(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req fileTypeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.Catalog.UpdateFileType(r.Context(), a, &model.FileType{ID: id, Name: req.Name, Extensions: req.Extensions}); err != nil {
		h.writeServiceError(w, r, "изменение типа архива", err)
		return
	}
	h.respondFileType(w, r, http.StatusOK, id)
}

// DeleteFileType — DELETE /api/v1/file-types/{id}.
func (h *APIHandler) DeleteFileType(w http.ResponseWriter, r *http.Request) {
	h.deleteCatalog(w, r, "удаление типа архива", h.svc.Catalog.DeleteFileType)
}

func (h *APIHandler) respondFileType(w http.ResponseWriter, r *http.Request, status int, id string) {
	ft, err := h.svc.Catalog.GetFileType(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "получение типа архива", err)
		return
	}
	writeJSON(w, status, mapFileType(ft))
}

// --- Состояния архивов ---

// ListFileStates — GET /api/v1/file-states.
func (h *APIHandler) ListFileStates(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	items, err := h.svc.Catalog.ListFileStates(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "получение состояний", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": mapSlice(items, mapFileState)})
}

// CreateFileState — POST /api/v1/file-states.
func (h *APIHandler) CreateFileState(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req fileStateRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	st := &model.FileState{Name: req.Name, IsFinal: req.IsFinal, IsDefault: req.IsDefault, Publishes: req.Publishes}
	if err := h.svc.Catalog.CreateFileState(r.Context(), a, st); err != nil {
		h.writeServiceError(w, r, "создание состояния", err)
		return
	}
	h.respondFileState(w, r, http.StatusCreated, st.ID)
}

// GetFileState — GET /api/v1/file-states/{id}.
func (h *APIHandler) GetFileState(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.respondFileState(w, r, http.StatusOK, id)
}

// UpdateFileState — PUT /api/v1/file-states/{id}.
func (h *APIHandler) UpdateFileState(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req fileStateRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	st := &model.FileState{ID: id, Name: req.Name, IsFinal: req.IsFinal, IsDefault: req.IsDefault, Publishes: req.Publishes}
	if err := h.svc.Catalog.UpdateFileState(r.Context(), a, st); err != nil {
		h.writeServiceError(w, r, "изменение состояния", err)
		return
	}
	h.respondFileState(w, r, http.StatusOK, id)
}

// DeleteFileState — DELETE /api/v1/file-states/{id}. Состояние по умолчанию не удаляется.
func (h *APIHandler) DeleteFileState(w http.ResponseWriter, r *http.Request) {
	h.deleteCatalog(w, r, "удаление состояния", h.svc.Catalog.DeleteFileState)
}

func (h *APIHandler) respondFileState(w http.ResponseWriter, r *http.Request, status int, id string) {
	st, err := h.svc.Catalog.GetFileState(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "получение состояния", err)
		return
	}
	writeJSON(w, status, mapFileState(st))
}

// --- Связи материй ---

// AssignSubjectToCareer — PUT /api/v1/careers/{id}/subjects/{subjectId}.
func (h *APIHandler) AssignSubjectToCareer(w http.ResponseWriter, r *http.Request) {
	h.linkCatalog(w, r, "привязка материи к карьере", h.svc.Catalog.AssignSubjectToCareer)
}

// UnassignSubjectFromCareer — DELETE /api/v1/careers/{id}/subjects/{subjectId}.
func (h *APIHandler) UnassignSubjectFromCareer(w http.ResponseWriter, r *http.Request) {
	h.linkCatalog(w, r, "отвязка материи от карьеры", h.svc.Catalog.UnassignSubjectFromCareer)
}

// AssignSubjectToCurriculum — PUT /api/v1/curricula/{id}/subjects/{subjectId}.
func (h *APIHandler) AssignSubjectToCurriculum(w http.ResponseWriter, r *http.Request) {
	h.linkCatalog(w, r, "привязка материи к плану", h.svc.Catalog.AssignSubjectToCurriculum)
}

// UnassignSubjectFromCurriculum — DELETE /api/v1/curricula/{id}/subjects/{subjectId}.
func (h *APIHandler) UnassignSubjectFromCurriculum(w http.ResponseWriter, r *http.Request) {
	h.linkCatalog(w, r, "отвязка материи от плана", h.svc.Catalog.UnassignSubjectFromCurriculum)
}

// catalogDeleteFunc — удаление записи справочника по ID.
type catalogDeleteFunc func(ctx context.Context, a rbac.Actor, id string) error

// catalogLinkFunc — изменение связи родитель ↔ материя.
type catalogLinkFunc func(ctx context.Context, a rbac.Actor, parentID, subjectID string) error

func (h *APIHandler) deleteCatalog(w http.ResponseWriter, r *http.Request, op string, del catalogDeleteFunc) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := del(r.Context(), a, id); err != nil {
		h.writeServiceError(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) linkCatalog(w http.ResponseWriter, r *http.Request, op string, link catalogLinkFunc) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	parentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	subjectID, ok := pathID(w, r, "subjectId")
	if !ok {
		return
	}
	if err := link(r.Context(), a, parentID, subjectID); err != nil {
		h.writeServiceError(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
