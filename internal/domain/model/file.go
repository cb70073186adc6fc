package model

import (
	"encoding/json"
	"time"
)

// File — загруженный учебный архив.
// Хранится в таблице files.
type File struct {
	// ID — UUID архива
	ID string
	// OwnerID — автор загрузки (nil, если пользователь удалён)
	OwnerID *string
	// SubjectID — материя, к которой относится архив
	SubjectID string
	// CurriculumID — план обучения (опционально)
	CurriculumID *string
	// FileTypeID — тип архива
	FileTypeID string
	// StateID — текущее состояние ревью
	StateID string
	Title   string
	// Description — описание (может быть пустым)
	Description string
	// StoragePath — путь к содержимому во внешнем хранилище
	StoragePath string
	// SizeBytes — размер содержимого в байтах
	SizeBytes int64
	// Metadata — произвольные метаданные клиента (JSON-объект)
	Metadata json.RawMessage
	// PublishedAt — время первой публикации
	PublishedAt *time.Time
	// VisitCount — счётчик просмотров
	VisitCount int64
	// Version — номер версии, увеличивается при каждом изменении состояния
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
	// DeletedAt — время мягкого удаления (nil — архив активен)
	DeletedAt *time.Time
}

// IsOwnedBy проверяет, принадлежит ли архив пользователю.
func (f *File) IsOwnedBy(userID string) bool {
	return f.OwnerID != nil && userID != "" && *f.OwnerID == userID
}

// FileState — состояние ревью архива.
type FileState struct {
	ID   string
	Name string
	// IsFinal — терминальное состояние (владелец больше не может редактировать)
	IsFinal bool
	// IsDefault — состояние новых архивов (ровно одно)
	IsDefault bool
	// Publishes — переход в это состояние публикует архив
	Publishes bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FileSave — архив, сохранённый пользователем в избранное.
type FileSave struct {
	FileID    string
	UserID    string
	CreatedAt time.Time
}

// ReviewHistoryEntry — запись истории ревью.
// Только добавление: одна запись на каждый переход.
type ReviewHistoryEntry struct {
	ID     string
	FileID string
	// ReviewerID — кто выполнил переход
	ReviewerID *string
	// PreviousState — имя предыдущего состояния
	PreviousState string
	// NewState — имя нового состояния
	NewState  string
	Comment   *string
	CreatedAt time.Time
}

// ExportRow — строка выгрузки архивов в таблицу.
// Собирается одним запросом с join-ами справочников.
type ExportRow struct {
	ID            string
	Title         string
	Subject       string
	Career        string
	Curriculum    string
	FileType      string
	State         string
	Author        string
	SizeBytes     int64
	VisitCount    int64
	AverageRating *float64
	PublishedAt   *time.Time
	CreatedAt     time.Time
}
