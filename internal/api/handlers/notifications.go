// notifications.go — уведомления текущего пользователя.
package handlers

import (
	"net/http"
)

// ListNotifications — GET /api/v1/notifications?unread=true.
func (h *APIHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"

	items, total, err := h.svc.Notifications.List(r.Context(), a, unreadOnly, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, "получение уведомлений", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(items, mapNotification, total, limit, offset))
}

// GetUnreadCount — GET /api/v1/notifications/unread-count.
func (h *APIHandler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	n, err := h.svc.Notifications.UnreadCount(r.Context(), a)
	if err != nil {
		h.writeServiceError(w, r, "подсчёт непрочитанных уведомлений", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// MarkNotificationRead — POST /api/v1/notifications/{id}/read.
func (h *APIHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	n, err := h.svc.Notifications.MarkRead(r.Context(), a, id)
	if err != nil {
		h.writeServiceError(w, r, "отметка уведомления", err)
		return
	}
	writeJSON(w, http.StatusOK, mapNotification(n))
}

// MarkAllNotificationsRead — POST /api/v1/notifications/read-all.
func (h *APIHandler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	n, err := h.svc.Notifications.MarkAllRead(r.Context(), a)
	if err != nil {
		h.writeServiceError(w, r, "отметка всех уведомлений", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}
