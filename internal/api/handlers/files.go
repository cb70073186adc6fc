// files.go — обработчики /api/v1/files endpoints.
// Архивы: загрузка, список, просмотр, изменение, мягкое удаление,
// переходы состояния, история ревью, избранное и выгрузка.
package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jorcase/exadocs/internal/repository"
	"github.com/jorcase/exadocs/internal/service"
)

// ListFiles — GET /api/v1/files.
// Фильтры: subject_id, career_id, curriculum_id, file_type_id, state_id, owner_id, q.
func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}

	var filters repository.FileListFilters
	for _, f := range []struct {
		name string
		dst  **string
	}{
		{"subject_id", &filters.SubjectID},
		{"career_id", &filters.CareerID},
		{"curriculum_id", &filters.CurriculumID},
		{"file_type_id", &filters.FileTypeID},
		{"state_id", &filters.StateID},
	} {
		v, ok := queryUUID(w, r, f.name)
		if !ok {
			return
		}
		*f.dst = v
	}
	filters.OwnerID = queryString(r, "owner_id")
	filters.Search = queryString(r, "q")

	files, total, err := h.svc.Files.List(r.Context(), a, filters, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, "получение списка архивов", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(files, mapFile, total, limit, offset))
}

// CreateFile — POST /api/v1/files.
func (h *APIHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req createFileRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	f, err := h.svc.Files.Create(r.Context(), a, service.CreateFileInput{
		SubjectID:    req.SubjectID,
		CurriculumID: req.CurriculumID,
		FileTypeID:   req.FileTypeID,
		Title:        req.Title,
		Description:  req.Description,
		StoragePath:  req.StoragePath,
		SizeBytes:    req.SizeBytes,
		Metadata:     req.Metadata,
	})
	if err != nil {
		h.writeServiceError(w, r, "загрузка архива", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapFile(f))
}

// GetFile — GET /api/v1/files/{id}. Увеличивает счётчик просмотров.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	f, err := h.svc.Files.Get(r.Context(), a, id)
	if err != nil {
		h.writeServiceError(w, r, "получение архива", err)
		return
	}
	writeJSON(w, http.StatusOK, mapFile(f))
}

// UpdateFile — PUT /api/v1/files/{id}.
func (h *APIHandler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateFileRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	f, err := h.svc.Files.Update(r.Context(), a, id, service.UpdateFileInput{
		SubjectID:    req.SubjectID,
		CurriculumID: req.CurriculumID,
		FileTypeID:   req.FileTypeID,
		Title:        req.Title,
		Description:  req.Description,
		StoragePath:  req.StoragePath,
		SizeBytes:    req.SizeBytes,
		Metadata:     req.Metadata,
	})
	if err != nil {
		h.writeServiceError(w, r, "изменение архива", err)
		return
	}
	writeJSON(w, http.StatusOK, mapFile(f))
}

// DeleteFile — DELETE /api/v1/files/{id} (мягкое удаление).
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Files.Delete(r.Context(), a, id); err != nil {
		h.writeServiceError(w, r, "удаление архива", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TransitionFileState — POST /api/v1/files/{id}/state.
// Возвращает созданную запись истории ревью.
func (h *APIHandler) TransitionFileState(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.svc.Review.TransitionState(r.Context(), id, a, req.StateID, req.Comment)
	if err != nil {
		h.writeServiceError(w, r, "смена состояния архива", err)
		return
	}
	writeJSON(w, http.StatusOK, mapHistory(entry))
}

// GetFileHistory — GET /api/v1/files/{id}/history.
func (h *APIHandler) GetFileHistory(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	entries, err := h.svc.Files.History(r.Context(), a, id)
	if err != nil {
		h.writeServiceError(w, r, "получение истории ревью", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": mapSlice(entries, mapHistory)})
}

// SaveFile — POST /api/v1/files/{id}/save.
func (h *APIHandler) SaveFile(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Files.Save(r.Context(), a, id); err != nil {
		h.writeServiceError(w, r, "сохранение архива", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnsaveFile — DELETE /api/v1/files/{id}/save.
func (h *APIHandler) UnsaveFile(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Files.Unsave(r.Context(), a, id); err != nil {
		h.writeServiceError(w, r, "удаление из сохранённых", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSavedFiles — GET /api/v1/me/saved.
func (h *APIHandler) ListSavedFiles(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	files, total, err := h.svc.Files.ListSaved(r.Context(), a, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, "получение сохранённых архивов", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(files, mapFile, total, limit, offset))
}

// xlsxContentType — MIME-тип книги Excel.
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportFiles — GET /api/v1/files/export. Книга .xlsx со всеми активными архивами.
// Доступ: admin, moderador.
func (h *APIHandler) ExportFiles(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Export.Authorize(a); err != nil {
		h.writeServiceError(w, r, "выгрузка архивов", err)
		return
	}

	// Книга собирается в буфер: заголовки пишутся только после успешной сборки.
	var buf bytes.Buffer
	n, err := h.svc.Export.WriteXLSX(r.Context(), &buf)
	if err != nil {
		h.writeServiceError(w, r, "выгрузка архивов", err)
		return
	}

	filename := fmt.Sprintf("exadocs-archivos-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("Ошибка отправки выгрузки", slog.String("error", err.Error()))
		return
	}
	h.logger.Info("Выгрузка архивов отправлена",
		slog.String("user_id", a.UserID),
		slog.Int("rows", n),
	)
}
