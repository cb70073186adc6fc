package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorcase/exadocs/internal/domain/model"
	"github.com/jorcase/exadocs/internal/repository"
)

type fakeComments struct {
	repository.CommentRepository
	mu       sync.Mutex
	comments map[string]*model.Comment
}

func (r *fakeComments) Create(_ context.Context, c *model.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.comments == nil {
		r.comments = map[string]*model.Comment{}
	}
	cp := *c
	r.comments[c.ID] = &cp
	return nil
}

func (r *fakeComments) GetByID(_ context.Context, id string) (*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeComments) SetFeatured(_ context.Context, id string, featured bool) (*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c.Featured = featured
	cp := *c
	return &cp, nil
}

func (r *fakeComments) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.comments, id)
	return nil
}

type fakeRatings struct {
	repository.RatingRepository
	mu      sync.Mutex
	ratings map[string]*model.Rating
}

func (r *fakeRatings) Create(_ context.Context, rt *model.Rating) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ratings == nil {
		r.ratings = map[string]*model.Rating{}
	}
	for _, existing := range r.ratings {
		if existing.FileID == rt.FileID && existing.UserID == rt.UserID {
			return repository.ErrConflict
		}
	}
	cp := *rt
	r.ratings[rt.ID] = &cp
	return nil
}

func (r *fakeRatings) GetByID(_ context.Context, id string) (*model.Rating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.ratings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rt
	return &cp, nil
}

func (r *fakeRatings) Update(_ context.Context, rt *model.Rating) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rt
	r.ratings[rt.ID] = &cp
	return nil
}

type fakeReports struct {
	repository.ReportRepository
	mu      sync.Mutex
	reports map[string]*model.ContentReport
}

func (r *fakeReports) Create(_ context.Context, rp *model.ContentReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reports == nil {
		r.reports = map[string]*model.ContentReport{}
	}
	cp := *rp
	r.reports[rp.ID] = &cp
	return nil
}

func (r *fakeReports) GetByID(_ context.Context, id string) (*model.ContentReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rp, ok := r.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rp
	return &cp, nil
}

func (r *fakeReports) UpdateStatus(_ context.Context, id, from, to string, resolvedBy *string) (*model.ContentReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rp, ok := r.reports[id]
	if !ok || rp.Status != from {
		return nil, repository.ErrNotFound
	}
	rp.Status = to
	if to == model.ReportStatusResolved {
		now := time.Now().UTC()
		rp.ResolvedBy = resolvedBy
		rp.ResolvedAt = &now
	}
	cp := *rp
	return &cp, nil
}

func TestCommentCreate(t *testing.T) {
	e := newEnv(t)
	e.addFile("f-1", statePending.ID)
	comments := &fakeComments{}
	svc := NewCommentService(comments, e.files, e.dispatcher, testLogger())

	c, err := svc.Create(context.Background(), stranger, "f-1", "  Muy útil, gracias  ")
	require.NoError(t, err)
	assert.Equal(t, "Muy útil, gracias", c.Body)
	require.Equal(t, 1, e.notifier.count())
	assert.Equal(t, model.NotificationComment, e.notifier.calls[0].Type)

	// Комментарий владельца к своему архиву не уведомляет
	_, err = svc.Create(context.Background(), owner, "f-1", "Subí la versión corregida")
	require.NoError(t, err)
	assert.Equal(t, 1, e.notifier.count())

	_, err = svc.Create(context.Background(), stranger, "f-1", "   ")
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Create(context.Background(), stranger, "f-missing", "hola")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCommentModeration(t *testing.T) {
	e := newEnv(t)
	e.addFile("f-1", statePending.ID)
	comments := &fakeComments{}
	svc := NewCommentService(comments, e.files, e.dispatcher, testLogger())
	ctx := context.Background()

	c, err := svc.Create(ctx, stranger, "f-1", "spam spam")
	require.NoError(t, err)

	_, err = svc.SetFeatured(ctx, stranger, c.ID, true)
	require.ErrorIs(t, err, ErrForbidden)

	featured, err := svc.SetFeatured(ctx, moderator, c.ID, true)
	require.NoError(t, err)
	assert.True(t, featured.Featured)

	require.ErrorIs(t, svc.Delete(ctx, owner, c.ID), ErrForbidden, "владелец архива не автор комментария")
	require.NoError(t, svc.Delete(ctx, moderator, c.ID))
}

func TestRatingCreate(t *testing.T) {
	e := newEnv(t)
	e.addFile("f-1", statePending.ID)
	ratings := &fakeRatings{}
	svc := NewRatingService(ratings, e.files, e.dispatcher, testLogger())
	ctx := context.Background()

	rt, err := svc.Create(ctx, stranger, "f-1", 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, rt.Score)
	require.Equal(t, 1, e.notifier.count())
	assert.Equal(t, model.NotificationRating, e.notifier.calls[0].Type)

	_, err = svc.Create(ctx, stranger, "f-1", 5, nil)
	require.ErrorIs(t, err, ErrConflict, "одна оценка на пару архив-пользователь")
	assert.Len(t, ratings.ratings, 1)
	assert.Equal(t, 1, e.notifier.count())

	// Оценка владельцем своего архива сохраняется, но не уведомляет и не шлёт письмо
	mails := len(e.mailer.messages)
	_, err = svc.Create(ctx, owner, "f-1", 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, e.notifier.count())
	assert.Len(t, e.mailer.messages, mails)
}

func TestRatingScoreBounds(t *testing.T) {
	tests := []struct {
		score   int
		wantErr bool
	}{
		{0, true}, {1, false}, {3, false}, {5, false}, {6, true}, {-2, true},
	}
	for _, tt := range tests {
		e := newEnv(t)
		e.addFile("f-1", statePending.ID)
		svc := NewRatingService(&fakeRatings{}, e.files, e.dispatcher, testLogger())

		_, err := svc.Create(context.Background(), stranger, "f-1", tt.score, nil)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrValidation, "score=%d", tt.score)
		} else {
			assert.NoError(t, err, "score=%d", tt.score)
		}
	}
}

func TestRatingUpdateOwnOnly(t *testing.T) {
	e := newEnv(t)
	e.addFile("f-1", statePending.ID)
	svc := NewRatingService(&fakeRatings{}, e.files, e.dispatcher, testLogger())
	ctx := context.Background()

	rt, err := svc.Create(ctx, stranger, "f-1", 2, nil)
	require.NoError(t, err)

	_, err = svc.Update(ctx, admin, rt.ID, 5, nil)
	require.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.Update(ctx, stranger, rt.ID, 5, strPtr("mejoró"))
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Score)
}

func TestReportLifecycle(t *testing.T) {
	e := newEnv(t)
	e.addFile("f-1", statePending.ID)
	reports := &fakeReports{}
	svc := NewReportService(reports, e.files, NewAuditService(e.audit, testLogger()), e.dispatcher, testLogger())
	ctx := context.Background()

	_, err := svc.Create(ctx, stranger, "f-1", "ofensivo", nil)
	require.ErrorIs(t, err, ErrValidation)

	rp, err := svc.Create(ctx, stranger, "f-1", model.ReportReasonCopyright, strPtr("copiado del libro"))
	require.NoError(t, err)
	assert.Equal(t, model.ReportStatusPending, rp.Status)
	require.Equal(t, 1, e.notifier.count())
	assert.Equal(t, model.NotificationReport, e.notifier.calls[0].Type)

	// Автор жалобы видит её, но статус не меняет
	_, err = svc.Get(ctx, stranger, rp.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, owner, rp.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.ChangeStatus(ctx, stranger, rp.ID, model.ReportStatusInReview)
	require.ErrorIs(t, err, ErrForbidden)

	inReview, err := svc.ChangeStatus(ctx, moderator, rp.ID, model.ReportStatusInReview)
	require.NoError(t, err)
	assert.Nil(t, inReview.ResolvedAt)
	assert.Nil(t, inReview.ResolvedBy)

	_, err = svc.ChangeStatus(ctx, moderator, rp.ID, model.ReportStatusPending)
	require.ErrorIs(t, err, ErrValidation, "статус не движется назад")

	resolved, err := svc.ChangeStatus(ctx, admin, rp.ID, model.ReportStatusResolved)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, admin.UserID, *resolved.ResolvedBy)

	_, err = svc.ChangeStatus(ctx, admin, rp.ID, model.ReportStatusInReview)
	require.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, []string{AuditReportStatusChanged, AuditReportStatusChanged}, e.audit.actions())
}
