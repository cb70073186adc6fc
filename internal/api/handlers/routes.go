// routes.go — регистрация маршрутов API на chi.
package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterHealth регистрирует публичные endpoints: health и metrics.
func (h *APIHandler) RegisterHealth(r chi.Router) {
	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)
	r.Get("/metrics", h.GetMetrics)
}

// RegisterAPI регистрирует маршруты /api/v1 (вызывается внутри группы с JWT).
func (h *APIHandler) RegisterAPI(r chi.Router) {
	r.Get("/me", h.GetMe)
	r.Get("/me/saved", h.ListSavedFiles)

	r.Route("/files", func(r chi.Router) {
		r.Get("/", h.ListFiles)
		r.Post("/", h.CreateFile)
		r.Get("/export", h.ExportFiles)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetFile)
			r.Put("/", h.UpdateFile)
			r.Delete("/", h.DeleteFile)
			r.Post("/state", h.TransitionFileState)
			r.Get("/history", h.GetFileHistory)
			r.Post("/save", h.SaveFile)
			r.Delete("/save", h.UnsaveFile)
			r.Get("/comments", h.ListComments)
			r.Post("/comments", h.CreateComment)
			r.Get("/ratings", h.ListRatings)
			r.Post("/ratings", h.CreateRating)
			r.Get("/ratings/summary", h.GetRatingSummary)
			r.Post("/reports", h.CreateReport)
		})
	})

	r.Route("/comments/{id}", func(r chi.Router) {
		r.Put("/", h.UpdateComment)
		r.Delete("/", h.DeleteComment)
		r.Put("/featured", h.SetCommentFeatured)
	})

	r.Route("/ratings/{id}", func(r chi.Router) {
		r.Put("/", h.UpdateRating)
		r.Delete("/", h.DeleteRating)
	})

	r.Route("/reports", func(r chi.Router) {
		r.Get("/", h.ListReports)
		r.Get("/{id}", h.GetReport)
		r.Put("/{id}/status", h.ChangeReportStatus)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.ListNotifications)
		r.Get("/unread-count", h.GetUnreadCount)
		r.Post("/read-all", h.MarkAllNotificationsRead)
		r.Post("/{id}/read", h.MarkNotificationRead)
	})

	r.Route("/profiles", func(r chi.Router) {
		r.Get("/", h.ListProfiles)
		r.Post("/", h.CreateProfile)
		r.Get("/{id}", h.GetProfile)
		r.Put("/{id}", h.UpdateProfile)
		r.Delete("/{id}", h.DeleteProfile)
	})

	r.Route("/careers", func(r chi.Router) {
		r.Get("/", h.ListCareers)
		r.Post("/", h.CreateCareer)
		r.Get("/{id}", h.GetCareer)
		r.Put("/{id}", h.UpdateCareer)
		r.Delete("/{id}", h.DeleteCareer)
		r.Put("/{id}/subjects/{subjectId}", h.AssignSubjectToCareer)
		r.Delete("/{id}/subjects/{subjectId}", h.UnassignSubjectFromCareer)
	})

	r.Route("/subjects", func(r chi.Router) {
		r.Get("/", h.ListSubjects)
		r.Post("/", h.CreateSubject)
		r.Get("/{id}", h.GetSubject)
		r.Put("/{id}", h.UpdateSubject)
		r.Delete("/{id}", h.DeleteSubject)
	})

	r.Route("/curricula", func(r chi.Router) {
		r.Get("/", h.ListCurricula)
		r.Post("/", h.CreateCurriculum)
		r.Get("/{id}", h.GetCurriculum)
		r.Put("/{id}", h.UpdateCurriculum)
		r.Delete("/{id}", h.DeleteCurriculum)
		r.Put("/{id}/subjects/{subjectId}", h.AssignSubjectToCurriculum)
		r.Delete("/{id}/subjects/{subjectId}", h.UnassignSubjectFromCurriculum)
	})

	r.Route("/file-types", func(r chi.Router) {
		r.Get("/", h.ListFileTypes)
		r.Post("/", h.CreateFileType)
		r.Get("/{id}", h.GetFileType)
		r.Put("/{id}", h.UpdateFileType)
		r.Delete("/{id}", h.DeleteFileType)
	})

	r.Route("/file-states", func(r chi.Router) {
		r.Get("/", h.ListFileStates)
		r.Post("/", h.CreateFileState)
		r.Get("/{id}", h.GetFileState)
		r.Put("/{id}", h.UpdateFileState)
		r.Delete("/{id}", h.DeleteFileState)
	})

	r.Get("/audit", h.ListAudit)
}
