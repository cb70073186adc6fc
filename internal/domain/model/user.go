// Пакет model — доменные модели ExaDocs.
package model

import "time"

// User — пользователь, провизионированный из токена.
// ID совпадает с claim sub провайдера идентификации.
type User struct {
	ID    string
	Name  string
	Email string
	// Roles — роли из токена (admin, moderador, estudiante)
	Roles     []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserProfile — профиль пользователя. Один профиль на пользователя.
type UserProfile struct {
	ID     string
	UserID string
	// CareerID — карьера студента (опционально)
	CareerID    *string
	StudentCode *string
	Bio         *string
	AvatarPath  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
