// profiles.go — профили пользователей и текущий пользователь.
package handlers

import (
	"net/http"

	"github.com/jorcase/exadocs/internal/api/middleware"
	"github.com/jorcase/exadocs/internal/domain/rbac"
	"github.com/jorcase/exadocs/internal/service"
)

// GetMe — GET /api/v1/me. Пользователь, его роли, права и профиль.
func (h *APIHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	u, p, err := h.svc.Users.Me(r.Context(), a)
	if err != nil {
		h.writeServiceError(w, r, "получение текущего пользователя", err)
		return
	}

	resp := userResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Roles:       a.RoleStrings(),
		Permissions: permissionStrings(a),
	}
	if resp.Name == "" {
		resp.Name = middleware.IdentityFromContext(r.Context()).Name
	}
	if p != nil {
		pr := mapProfile(p)
		resp.Profile = &pr
	}
	writeJSON(w, http.StatusOK, resp)
}

func permissionStrings(a rbac.Actor) []string {
	out := make([]string, 0, len(a.Permissions))
	for _, p := range a.Permissions {
		out = append(out, string(p))
	}
	return out
}

func (req profileRequest) input() service.ProfileInput {
	return service.ProfileInput{
		CareerID:    req.CareerID,
		StudentCode: req.StudentCode,
		Bio:         req.Bio,
		AvatarPath:  req.AvatarPath,
	}
}

// ListProfiles — GET /api/v1/profiles. Требует право view_perfiles.
func (h *APIHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	items, total, err := h.svc.Profiles.List(r.Context(), a, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, "получение профилей", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(items, mapProfile, total, limit, offset))
}

// CreateProfile — POST /api/v1/profiles.
func (h *APIHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req createProfileRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	userID := a.UserID
	if req.UserID != nil && *req.UserID != "" {
		userID = *req.UserID
	}
	p, err := h.svc.Profiles.Create(r.Context(), a, userID, req.input())
	if err != nil {
		h.writeServiceError(w, r, "создание профиля", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapProfile(p))
}

// GetProfile — GET /api/v1/profiles/{id}.
func (h *APIHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.svc.Profiles.Get(r.Context(), a, id)
	if err != nil {
		h.writeServiceError(w, r, "получение профиля", err)
		return
	}
	writeJSON(w, http.StatusOK, mapProfile(p))
}

// UpdateProfile — PUT /api/v1/profiles/{id}.
func (h *APIHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req profileRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.Profiles.Update(r.Context(), a, id, req.input())
	if err != nil {
		h.writeServiceError(w, r, "изменение профиля", err)
		return
	}
	writeJSON(w, http.StatusOK, mapProfile(p))
}

// DeleteProfile — DELETE /api/v1/profiles/{id}. Требует право delete_perfiles.
func (h *APIHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Profiles.Delete(r.Context(), a, id); err != nil {
		h.writeServiceError(w, r, "удаление профиля", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
