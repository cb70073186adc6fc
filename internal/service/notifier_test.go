package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorcase/exadocs/internal/domain/model"
	"github.com/jorcase/exadocs/internal/repository"
)

type fakeNotificationRepo struct {
	repository.NotificationRepository
	mu    sync.Mutex
	items []*model.Notification
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.CreatedAt = time.Now().UTC()
	r.items = append(r.items, n)
	return nil
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, id string) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeNotificationRepo) MarkRead(ctx context.Context, id string) (*model.Notification, error) {
	n, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.ReadAt == nil {
		now := time.Now().UTC()
		n.ReadAt = &now
	}
	return n, nil
}

func (r *fakeNotificationRepo) CountByRecipient(_ context.Context, recipientID string, unreadOnly bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.items {
		if n.RecipientID == recipientID && (!unreadOnly || n.ReadAt == nil) {
			count++
		}
	}
	return count, nil
}

func TestNotificationService_NotifyOwnerOf(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo, testLogger())
	ctx := context.Background()

	f := &model.File{ID: "f-1", OwnerID: strPtr(owner.UserID), Title: "Parcial"}
	n, err := svc.NotifyOwnerOf(ctx, f, strPtr(moderator.UserID), model.NotificationReview,
		"Tu archivo \"Parcial\" ahora está Aprobado", map[string]any{"estado": "Aprobado"})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, owner.UserID, n.RecipientID)
	require.NotNil(t, n.FileID)
	assert.Equal(t, "f-1", *n.FileID)

	var data map[string]any
	require.NoError(t, json.Unmarshal(n.Data, &data))
	assert.Equal(t, "Aprobado", data["estado"])

	// Архив без владельца — ничего не создаётся
	n, err = svc.NotifyOwnerOf(ctx, &model.File{ID: "f-2"}, nil, model.NotificationReview, "x", nil)
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.Len(t, repo.items, 1)

	// Без дедупликации: повтор — ещё одна запись
	_, err = svc.NotifyOwnerOf(ctx, f, nil, model.NotificationReview, "otra vez", nil)
	require.NoError(t, err)
	assert.Len(t, repo.items, 2)
}

func TestNotificationService_Validation(t *testing.T) {
	svc := NewNotificationService(&fakeNotificationRepo{}, testLogger())
	_, err := svc.Notify(context.Background(), NotifyInput{Type: "comentario", Title: "x"})
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Notify(context.Background(), NotifyInput{RecipientID: "u", Title: "x"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestNotificationService_MarkReadRecipientOnly(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo, testLogger())
	ctx := context.Background()

	n, err := svc.Notify(ctx, NotifyInput{RecipientID: owner.UserID, Type: model.NotificationComment, Title: "Nuevo comentario"})
	require.NoError(t, err)

	_, err = svc.MarkRead(ctx, admin, n.ID)
	require.ErrorIs(t, err, ErrForbidden)

	unread, err := svc.UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	read, err := svc.MarkRead(ctx, owner, n.ID)
	require.NoError(t, err)
	assert.NotNil(t, read.ReadAt)

	unread, err = svc.UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, unread)

	_, err = svc.MarkRead(ctx, owner, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDispatcher_MailSkippedWithoutEmail(t *testing.T) {
	notifier := &fakeNotifier{}
	mailer := &fakeMailer{}
	users := &fakeUsers{users: map[string]*model.User{owner.UserID: {ID: owner.UserID, Name: "Sin correo"}}}
	d := NewDispatcher(notifier, mailer, users, "https://exadocs.test", testLogger())

	d.NotifyOwner(context.Background(), ownerEvent{
		File:     &model.File{ID: "f-1", OwnerID: strPtr(owner.UserID), Title: "Parcial"},
		Type:     model.NotificationComment,
		Title:    "Nuevo comentario",
		Template: "new_comment",
		Subject:  "Nuevo comentario",
	})
	assert.Equal(t, 1, notifier.count())
	assert.Empty(t, mailer.messages)
}

func TestDispatcher_NilMailer(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(notifier, nil, defaultUsers(), "https://exadocs.test", testLogger())

	d.NotifyOwner(context.Background(), ownerEvent{
		File:     &model.File{ID: "f-1", OwnerID: strPtr(owner.UserID), Title: "Parcial"},
		Type:     model.NotificationRating,
		Title:    "Nueva calificación",
		Template: "new_rating",
	})
	assert.Equal(t, 1, notifier.count())
}
