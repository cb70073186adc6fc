package model

import "time"

// FileType — тип архива (экзамен, конспект, практика...).
type FileType struct {
	ID   string
	Name string
	// Extensions — допустимые расширения без точки
	Extensions []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Career — карьера (учебная программа).
type Career struct {
	ID        string
	Name      string
	Code      *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Curriculum — план обучения карьеры. Имя уникально в пределах карьеры.
type Curriculum struct {
	ID        string
	CareerID  string
	Name      string
	Year      *int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subject — материя. Код уникален.
type Subject struct {
	ID        string
	Name      string
	Code      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
