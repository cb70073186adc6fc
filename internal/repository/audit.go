package repository

import (
	"context"
	"fmt"

	"github.com/jorcase/exadocs/internal/domain/model"
)

// AuditRepository — журнал аудита. Изменение и удаление записей не предусмотрено.
type AuditRepository interface {
	Append(ctx context.Context, e *model.AuditEntry) error
	List(ctx context.Context, filters AuditListFilters, limit, offset int) ([]*model.AuditEntry, error)
	Count(ctx context.Context, filters AuditListFilters) (int, error)
}

// AuditListFilters — фильтры журнала аудита.
type AuditListFilters struct {
	ActorID    *string
	Action     *string
	EntityType *string
	EntityID   *string
}

type auditRepo struct {
	db DBTX
}

// NewAuditRepository создаёт репозиторий аудита.
func NewAuditRepository(db DBTX) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Append(ctx context.Context, e *model.AuditEntry) error {
	if len(e.Payload) == 0 {
		e.Payload = []byte("{}")
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO audit_entries (id, actor_id, action, entity_type, entity_id, payload, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		e.ID, e.ActorID, e.Action, e.EntityType, e.EntityID, e.Payload, e.IP, e.UserAgent,
	).Scan(&e.CreatedAt)
	if err != nil {
		return mapWriteError(err, "записи аудита")
	}
	return nil
}

func buildAuditWhere(filters AuditListFilters) *whereBuilder {
	w := &whereBuilder{}
	if filters.ActorID != nil {
		w.add("actor_id = ?", *filters.ActorID)
	}
	if filters.Action != nil {
		w.add("action = ?", *filters.Action)
	}
	if filters.EntityType != nil {
		w.add("entity_type = ?", *filters.EntityType)
	}
	if filters.EntityID != nil {
		w.add("entity_id = ?", *filters.EntityID)
	}
	return w
}

func (r *auditRepo) List(ctx context.Context, filters AuditListFilters, limit, offset int) ([]*model.AuditEntry, error) {
	w := buildAuditWhere(filters)
	argNum := w.next()
	query := fmt.Sprintf(`
		SELECT id, actor_id, action, entity_type, entity_id, payload, ip, user_agent, created_at
		FROM audit_entries %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, w.String(), argNum, argNum+1)

	rows, err := r.db.Query(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала аудита: %w", err)
	}
	defer rows.Close()

	var result []*model.AuditEntry
	for rows.Next() {
		e := &model.AuditEntry{}
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID,
			&e.Payload, &e.IP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи аудита: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *auditRepo) Count(ctx context.Context, filters AuditListFilters) (int, error) {
	w := buildAuditWhere(filters)
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_entries `+w.String(), w.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей аудита: %w", err)
	}
	return count, nil
}
