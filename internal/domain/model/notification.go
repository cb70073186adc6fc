package model

import (
	"encoding/json"
	"time"
)

// Типы уведомлений.
const (
	NotificationFileCreated = "archivo_creado"
	NotificationFileUpdated = "archivo_actualizado"
	NotificationReview      = "revisión"
	NotificationComment     = "comentario"
	NotificationRating      = "calificación"
	NotificationReport      = "reporte"
)

// Notification — уведомление в приложении.
type Notification struct {
	ID          string
	RecipientID string
	ActorID     *string
	FileID      *string
	Type        string
	Title       string
	Message     *string
	Data        json.RawMessage
	// ReadAt — nil до прочтения
	ReadAt    *time.Time
	CreatedAt time.Time
}

// AuditEntry — запись журнала аудита. Неизменяема.
type AuditEntry struct {
	ID         string
	ActorID    *string
	Action     string
	EntityType *string
	EntityID   *string
	Payload    json.RawMessage
	IP         *string
	UserAgent  *string
	CreatedAt  time.Time
}
