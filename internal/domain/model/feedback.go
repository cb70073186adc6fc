package model

import "time"

// Comment — комментарий к архиву.
type Comment struct {
	ID       string
	FileID   string
	AuthorID *string
	Body     string
	// Featured — выделенный модератором комментарий (выводится первым)
	Featured  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Rating — оценка архива. Одна оценка на пару (архив, пользователь).
type Rating struct {
	ID     string
	FileID string
	UserID string
	// Score — оценка от 1 до 5
	Score     int
	Comment   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RatingSummary — агрегат оценок архива.
type RatingSummary struct {
	FileID  string
	Average float64
	Count   int
}

// Причины жалобы.
const (
	ReportReasonSpam      = "spam"
	ReportReasonIncorrect = "incorrect"
	ReportReasonCopyright = "copyright"
	ReportReasonOther     = "other"
)

// Статусы жалобы. Статус меняется только вперёд.
const (
	ReportStatusPending  = "pending"
	ReportStatusInReview = "in_review"
	ReportStatusResolved = "resolved"
)

// ContentReport — жалоба пользователя на архив.
type ContentReport struct {
	ID         string
	FileID     string
	ReporterID *string
	Reason     string
	Detail     *string
	Status     string
	// ResolvedBy и ResolvedAt заданы тогда и только тогда, когда статус resolved
	ResolvedBy *string
	ResolvedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsValidReportReason проверяет причину жалобы.
func IsValidReportReason(reason string) bool {
	switch reason {
	case ReportReasonSpam, ReportReasonIncorrect, ReportReasonCopyright, ReportReasonOther:
		return true
	}
	return false
}

// reportTransitions — допустимые переходы статуса жалобы.
var reportTransitions = map[string][]string{
	ReportStatusPending:  {ReportStatusInReview, ReportStatusResolved},
	ReportStatusInReview: {ReportStatusResolved},
}

// CanReportTransition проверяет, допустим ли переход статуса жалобы.
func CanReportTransition(from, to string) bool {
	for _, s := range reportTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
