// audit.go — журнал аудита. Доступ: admin.
package handlers

import (
	"net/http"

	"github.com/jorcase/exadocs/internal/repository"
)

// ListAudit — GET /api/v1/audit. Фильтры: actor_id, action, entity_type, entity_id.
func (h *APIHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	filters := repository.AuditListFilters{
		ActorID:    queryString(r, "actor_id"),
		Action:     queryString(r, "action"),
		EntityType: queryString(r, "entity_type"),
		EntityID:   queryString(r, "entity_id"),
	}
	items, total, err := h.svc.Audit.List(r.Context(), a, filters, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, "получение журнала аудита", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(items, mapAudit, total, limit, offset))
}
