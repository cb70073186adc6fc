// dto.go — JSON-представления доменных моделей и тела запросов.
package handlers

import (
	"encoding/json"
	"time"

	"github.com/jorcase/exadocs/internal/domain/model"
)

// --- Ответы ---

type fileResponse struct {
	ID           string          `json:"id"`
	OwnerID      *string         `json:"owner_id"`
	SubjectID    string          `json:"subject_id"`
	CurriculumID *string         `json:"curriculum_id"`
	FileTypeID   string          `json:"file_type_id"`
	StateID      string          `json:"state_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	StoragePath  string          `json:"storage_path"`
	SizeBytes    int64           `json:"size_bytes"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	PublishedAt  *time.Time      `json:"published_at"`
	VisitCount   int64           `json:"visit_count"`
	Version      int             `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func mapFile(f *model.File) fileResponse {
	return fileResponse{
		ID:           f.ID,
		OwnerID:      f.OwnerID,
		SubjectID:    f.SubjectID,
		CurriculumID: f.CurriculumID,
		FileTypeID:   f.FileTypeID,
		StateID:      f.StateID,
		Title:        f.Title,
		Description:  f.Description,
		StoragePath:  f.StoragePath,
		SizeBytes:    f.SizeBytes,
		Metadata:     f.Metadata,
		PublishedAt:  f.PublishedAt,
		VisitCount:   f.VisitCount,
		Version:      f.Version,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

type historyResponse struct {
	ID            string    `json:"id"`
	FileID        string    `json:"file_id"`
	ReviewerID    *string   `json:"reviewer_id"`
	PreviousState string    `json:"previous_state"`
	NewState      string    `json:"new_state"`
	Comment       *string   `json:"comment"`
	CreatedAt     time.Time `json:"created_at"`
}

func mapHistory(e *model.ReviewHistoryEntry) historyResponse {
	return historyResponse{
		ID:            e.ID,
		FileID:        e.FileID,
		ReviewerID:    e.ReviewerID,
		PreviousState: e.PreviousState,
		NewState:      e.NewState,
		Comment:       e.Comment,
		CreatedAt:     e.CreatedAt,
	}
}

type commentResponse struct {
	ID        string    `json:"id"`
	FileID    string    `json:"file_id"`
	AuthorID  *string   `json:"author_id"`
	Body      string    `json:"body"`
	Featured  bool      `json:"featured"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func mapComment(c *model.Comment) commentResponse {
	return commentResponse{
		ID:        c.ID,
		FileID:    c.FileID,
		AuthorID:  c.AuthorID,
		Body:      c.Body,
		Featured:  c.Featured,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type ratingResponse struct {
	ID        string    `json:"id"`
	FileID    string    `json:"file_id"`
	UserID    string    `json:"user_id"`
	Score     int       `json:"score"`
	Comment   *string   `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func mapRating(r *model.Rating) ratingResponse {
	return ratingResponse{
		ID:        r.ID,
		FileID:    r.FileID,
		UserID:    r.UserID,
		Score:     r.Score,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type ratingSummaryResponse struct {
	FileID  string  `json:"file_id"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

type reportResponse struct {
	ID         string     `json:"id"`
	FileID     string     `json:"file_id"`
	ReporterID *string    `json:"reporter_id"`
	Reason     string     `json:"reason"`
	Detail     *string    `json:"detail"`
	Status     string     `json:"status"`
	ResolvedBy *string    `json:"resolved_by"`
	ResolvedAt *time.Time `json:"resolved_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func mapReport(r *model.ContentReport) reportResponse {
	return reportResponse{
		ID:         r.ID,
		FileID:     r.FileID,
		ReporterID: r.ReporterID,
		Reason:     r.Reason,
		Detail:     r.Detail,
		Status:     r.Status,
		ResolvedBy: r.ResolvedBy,
		ResolvedAt: r.ResolvedAt,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type notificationResponse struct {
	ID        string          `json:"id"`
	ActorID   *string         `json:"actor_id"`
	FileID    *string         `json:"file_id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   *string         `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	Read      bool            `json:"read"`
	ReadAt    *time.Time      `json:"read_at"`
	CreatedAt time.Time       `json:"created_at"`
}

func mapNotification(n *model.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		ActorID:   n.ActorID,
		FileID:    n.FileID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		Read:      n.ReadAt != nil,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

type profileResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CareerID    *string   `json:"career_id"`
	StudentCode *string   `json:"student_code"`
	Bio         *string   `json:"bio"`
	AvatarPath  *string   `json:"avatar_path"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func mapProfile(p *model.UserProfile) profileResponse {
	return profileResponse{
		ID:          p.ID,
		UserID:      p.UserID,
		CareerID:    p.CareerID,
		StudentCode: p.StudentCode,
		Bio:         p.Bio,
		AvatarPath:  p.AvatarPath,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type userResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Email       string           `json:"email"`
	Roles       []string         `json:"roles"`
	Permissions []string         `json:"permissions"`
	Profile     *profileResponse `json:"profile"`
}

type careerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      *string   `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func mapCareer(c *model.Career) careerResponse {
	return careerResponse{ID: c.ID, Name: c.Name, Code: c.Code, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

type subjectResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func mapSubject(s *model.Subject) subjectResponse {
	return subjectResponse{ID: s.ID, Name: s.Name, Code: s.Code, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

type curriculumResponse struct {
	ID        string    `json:"id"`
	CareerID  string    `json:"career_id"`
	Name      string    `json:"name"`
	Year      *int      `json:"year"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func mapCurriculum(c *model.Curriculum) curriculumResponse {
	return curriculumResponse{
		ID: c.ID, CareerID: c.CareerID, Name: c.Name, Year: c.Year,
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

type fileTypeResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Extensions []string  `json:"extensions"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func mapFileType(ft *model.FileType) fileTypeResponse {
	ext := ft.Extensions
	if ext == nil {
		ext = []string{}
	}
	return fileTypeResponse{ID: ft.ID, Name: ft.Name, Extensions: ext, CreatedAt: ft.CreatedAt, UpdatedAt: ft.UpdatedAt}
}

type fileStateResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsFinal   bool      `json:"is_final"`
	IsDefault bool      `json:"is_default"`
	Publishes bool      `json:"publishes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func mapFileState(st *model.FileState) fileStateResponse {
	return fileStateResponse{
		ID: st.ID, Name: st.Name, IsFinal: st.IsFinal, IsDefault: st.IsDefault, Publishes: st.Publishes,
		CreatedAt: st.CreatedAt, UpdatedAt: st.UpdatedAt,
	}
}

type auditResponse struct {
	ID         string          `json:"id"`
	ActorID    *string         `json:"actor_id"`
	Action     string          `json:"action"`
	EntityType *string         `json:"entity_type"`
	EntityID   *string         `json:"entity_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	IP         *string         `json:"ip"`
	UserAgent  *string         `json:"user_agent"`
	CreatedAt  time.Time       `json:"created_at"`
}

func mapAudit(e *model.AuditEntry) auditResponse {
	return auditResponse{
		ID: e.ID, ActorID: e.ActorID, Action: e.Action, EntityType: e.EntityType, EntityID: e.EntityID,
		Payload: e.Payload, IP: e.IP, UserAgent: e.UserAgent, CreatedAt: e.CreatedAt,
	}
}

// --- Запросы ---

type createFileRequest struct {
	SubjectID    string          `json:"subject_id" validate:"required,uuid"`
	CurriculumID *string         `json:"curriculum_id" validate:"omitempty,uuid"`
	FileTypeID   string          `json:"file_type_id" validate:"required,uuid"`
	Title        string          `json:"title" validate:"required,max=255"`
	Description  string          `json:"description" validate:"max=10000"`
	StoragePath  string          `json:"storage_path" validate:"required,max=1024"`
	SizeBytes    int64           `json:"size_bytes" validate:"gte=0"`
	Metadata     json.RawMessage `json:"metadata"`
}

// updateFileRequest — частичное обновление; curriculum_id "" снимает план.
type updateFileRequest struct {
	SubjectID    *string         `json:"subject_id" validate:"omitempty,uuid"`
	CurriculumID *string         `json:"curriculum_id" validate:"omitempty,uuid"`
	FileTypeID   *string         `json:"file_type_id" validate:"omitempty,uuid"`
	Title        *string         `json:"title" validate:"omitempty,max=255"`
	Description  *string         `json:"description" validate:"omitempty,max=10000"`
	StoragePath  *string         `json:"storage_path" validate:"omitempty,max=1024"`
	SizeBytes    *int64          `json:"size_bytes" validate:"omitempty,gte=0"`
	Metadata     json.RawMessage `json:"metadata"`
}

type transitionRequest struct {
	StateID string  `json:"state_id" validate:"required,uuid"`
	Comment *string `json:"comment" validate:"omitempty,max=2000"`
}

type commentRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}

type featuredRequest struct {
	Featured *bool `json:"featured" validate:"required"`
}

type ratingRequest struct {
	Score   int     `json:"score" validate:"required,gte=1,lte=5"`
	Comment *string `json:"comment" validate:"omitempty,max=2000"`
}

type reportRequest struct {
	Reason string  `json:"reason" validate:"required,oneof=spam incorrect copyright other"`
	Detail *string `json:"detail" validate:"omitempty,max=2000"`
}

type reportStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in_review resolved"`
}

type profileRequest struct {
	CareerID    *string `json:"career_id" validate:"omitempty,uuid"`
	StudentCode *string `json:"student_code" validate:"omitempty,max=50"`
	Bio         *string `json:"bio" validate:"omitempty,max=2000"`
	AvatarPath  *string `json:"avatar_path" validate:"omitempty,max=1024"`
}

// createProfileRequest — профиль создаётся для указанного пользователя
// (по умолчанию — для текущего).
type createProfileRequest struct {
	UserID *string `json:"user_id" validate:"omitempty,max=255"`
	profileRequest
}

type careerRequest struct {
	Name string  `json:"name" validate:"required,max=255"`
	Code *string `json:"code" validate:"omitempty,max=50"`
}

type subjectRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Code string `json:"code" validate:"max=50"`
}

type curriculumRequest struct {
	CareerID string `json:"career_id" validate:"required,uuid"`
	Name     string `json:"name" validate:"required,max=255"`
	Year     *int   `json:"year" validate:"omitempty,gte=1900,lte=2200"`
}

type fileTypeRequest struct {
	Name       string   `json:"name" validate:"required,max=255"`
	Extensions []string `json:"extensions" validate:"dive,max=16"`
}

type fileStateRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	IsFinal   bool   `json:"is_final"`
	IsDefault bool   `json:"is_default"`
	Publishes bool   `json:"publishes"`
}
