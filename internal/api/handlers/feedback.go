// feedback.go — комментарии, оценки и жалобы на архивы.
package handlers

import (
	"net/http"

	"github.com/jorcase/exadocs/internal/repository"
)

// --- Комментарии ---

// ListComments — GET /api/v1/files/{id}/comments.
func (h *APIHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	fileID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	items, total, err := h.svc.Comments.List(r.Context(), a, fileID, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, "получение комментариев", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(items, mapComment, total, limit, offset))
}

// CreateComment — POST /api/v1/files/{id}/comments.
func (h *APIHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	fileID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req commentRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.Comments.Create(r.Context(), a, fileID, req.Body)
	if err != nil {
		h.writeServiceError(w, r, "создание комментария", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapComment(c))
}

// UpdateComment — PUT /api/v1/comments/{id}.
func (h *APIHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req commentRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.Comments.Update(r.Context(), a, id, req.Body)
	if err != nil {
		h.writeServiceError(w, r, "изменение комментария", err)
		return
	}
	writeJSON(w, http.StatusOK, mapComment(c))
}

// DeleteComment — DELETE /api/v1/comments/{id}.
func (h *APIHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Comments.Delete(r.Context(), a, id); err != nil {
		h.writeServiceError(w, r, "удаление комментария", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetCommentFeatured — PUT /api/v1/comments/{id}/featured. Доступ: admin, moderador.
func (h *APIHandler) SetCommentFeatured(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req featuredRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.Comments.SetFeatured(r.Context(), a, id, *req.Featured)
	if err != nil {
		h.writeServiceError(w, r, "выделение комментария", err)
		return
	}
	writeJSON(w, http.StatusOK, mapComment(c))
}

// --- Оценки ---

// ListRatings — GET /api/v1/files/{id}/ratings.
func (h *APIHandler) ListRatings(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	fileID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	items, total, err := h.svc.Ratings.List(r.Context(), a, fileID, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, "получение оценок", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(items, mapRating, total, limit, offset))
}

// CreateRating — POST /api/v1/files/{id}/ratings. Повторная оценка — 409.
func (h *APIHandler) CreateRating(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	fileID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ratingRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	rt, err := h.svc.Ratings.Create(r.Context(), a, fileID, req.Score, req.Comment)
	if err != nil {
		h.writeServiceError(w, r, "создание оценки", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapRating(rt))
}

// GetRatingSummary — GET /api/v1/files/{id}/ratings/summary.
func (h *APIHandler) GetRatingSummary(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	fileID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sum, err := h.svc.Ratings.Summary(r.Context(), a, fileID)
	if err != nil {
		h.writeServiceError(w, r, "получение сводки оценок", err)
		return
	}
	writeJSON(w, http.StatusOK, ratingSummaryResponse{FileID: sum.FileID, Average: sum.Average, Count: sum.Count})
}

// UpdateRating — PUT /api/v1/ratings/{id}.
func (h *APIHandler) UpdateRating(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ratingRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	rt, err := h.svc.Ratings.Update(r.Context(), a, id, req.Score, req.Comment)
	if err != nil {
		h.writeServiceError(w, r, "изменение оценки", err)
		return
	}
	writeJSON(w, http.StatusOK, mapRating(rt))
}

// DeleteRating — DELETE /api/v1/ratings/{id}.
func (h *APIHandler) DeleteRating(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Ratings.Delete(r.Context(), a, id); err != nil {
		h.writeServiceError(w, r, "удаление оценки", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Жалобы ---

// CreateReport — POST /api/v1/files/{id}/reports.
func (h *APIHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	fileID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req reportRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	rep, err := h.svc.Reports.Create(r.Context(), a, fileID, req.Reason, req.Detail)
	if err != nil {
		h.writeServiceError(w, r, "создание жалобы", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapReport(rep))
}

// ListReports — GET /api/v1/reports. Фильтры: status, file_id.
// Доступ: admin, moderador.
func (h *APIHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	fileID, ok := queryUUID(w, r, "file_id")
	if !ok {
		return
	}
	filters := repository.ReportListFilters{
		Status: queryString(r, "status"),
		FileID: fileID,
	}
	items, total, err := h.svc.Reports.List(r.Context(), a, filters, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, "получение жалоб", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(items, mapReport, total, limit, offset))
}

// GetReport — GET /api/v1/reports/{id}.
func (h *APIHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rep, err := h.svc.Reports.Get(r.Context(), a, id)
	if err != nil {
		h.writeServiceError(w, r, "получение жалобы", err)
		return
	}
	writeJSON(w, http.StatusOK, mapReport(rep))
}

// ChangeReportStatus — PUT /api/v1/reports/{id}/status.
// Статус меняется только вперёд; устаревшее состояние — 409.
func (h *APIHandler) ChangeReportStatus(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req reportStatusRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	rep, err := h.svc.Reports.ChangeStatus(r.Context(), a, id, req.Status)
	if err != nil {
		h.writeServiceError(w, r, "смена статуса жалобы", err)
		return
	}
	writeJSON(w, http.StatusOK, mapReport(rep))
}
