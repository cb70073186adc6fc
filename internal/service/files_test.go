package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorcase/exadocs/internal/domain/model"
	"github.com/jorcase/exadocs/internal/mail"
)

func validCreateInput() CreateFileInput {
	return CreateFileInput{
		SubjectID:    "sub-alg",
		CurriculumID: strPtr("cur-2011"),
		FileTypeID:   "ft-exam",
		Title:        "  Parcial 1 Álgebra  ",
		StoragePath:  "archivos/parcial1.pdf",
		SizeBytes:    4096,
		Metadata:     json.RawMessage(`{"paginas": 3}`),
	}
}

func TestFileCreate(t *testing.T) {
	e := newEnv(t)
	svc := e.fileService()

	f, err := svc.Create(context.Background(), owner, validCreateInput())
	require.NoError(t, err)

	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "Parcial 1 Álgebra", f.Title)
	assert.Equal(t, statePending.ID, f.StateID, "новый архив получает состояние по умолчанию")
	require.NotNil(t, f.OwnerID)
	assert.Equal(t, owner.UserID, *f.OwnerID)
	assert.NotNil(t, e.files.get(f.ID))

	require.Equal(t, 1, e.notifier.count())
	assert.Equal(t, model.NotificationFileCreated, e.notifier.calls[0].Type)
	require.Len(t, e.mailer.messages, 1)
	assert.Equal(t, mail.TemplateFileCreated, e.mailer.messages[0].Template)
	assert.Equal(t, []string{AuditFileCreated}, e.audit.actions())
}

func TestFileCreate_EmptyCurriculumMeansNone(t *testing.T) {
	e := newEnv(t)
	svc := e.fileService()

	for _, cur := range []string{"", "  "} {
		in := validCreateInput()
		in.CurriculumID = strPtr(cur)

		f, err := svc.Create(context.Background(), owner, in)
		require.NoError(t, err, "curriculum_id=%q", cur)
		assert.Nil(t, f.CurriculumID)
	}
	assert.Zero(t, e.catalog.curriculumLookups, "план не запрашивается")
}

func TestFileCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(in *CreateFileInput)
	}{
		{"пустой title", func(in *CreateFileInput) { in.Title = "   " }},
		{"нет storage_path", func(in *CreateFileInput) { in.StoragePath = "" }},
		{"отрицательный размер", func(in *CreateFileInput) { in.SizeBytes = -1 }},
		{"metadata — массив", func(in *CreateFileInput) { in.Metadata = json.RawMessage(`[1,2]`) }},
		{"metadata — не JSON", func(in *CreateFileInput) { in.Metadata = json.RawMessage(`{oops`) }},
		{"неизвестная материя", func(in *CreateFileInput) { in.SubjectID = "sub-missing" }},
		{"неизвестный тип", func(in *CreateFileInput) { in.FileTypeID = "ft-missing" }},
		{"неизвестный план", func(in *CreateFileInput) { in.CurriculumID = strPtr("cur-missing") }},
		{"материя не в плане", func(in *CreateFileInput) { in.SubjectID = "sub-fis" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			in := validCreateInput()
			tt.modify(&in)

			_, err := e.fileService().Create(context.Background(), owner, in)
			require.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, e.files.files)
			assert.Zero(t, e.notifier.count())
		})
	}
}

func TestFileCreate_Unauthenticated(t *testing.T) {
	e := newEnv(t)
	_, err := e.fileService().Create(context.Background(), anonymous(), validCreateInput())
	require.ErrorIs(t, err, ErrForbidden)
}

func TestFileUpdate(t *testing.T) {
	tests := []struct {
		name    string
		actor   actorCase
		stateID string
		wantErr error
	}{
		{"владелец, не финальное", actorOwner, statePending.ID, nil},
		{"владелец, финальное", actorOwner, stateApproved.ID, ErrForbidden},
		{"модератор, финальное", actorModerator, stateApproved.ID, nil},
		{"чужой студент", actorStranger, statePending.ID, ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.addFile("f-1", tt.stateID)

			f, err := e.fileService().Update(context.Background(), tt.actor.actor(), "f-1", UpdateFileInput{
				Title: strPtr("Parcial 1 (resuelto)"),
			})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, "Parcial 1 Álgebra", e.files.get("f-1").Title)
				assert.Empty(t, e.audit.actions())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Parcial 1 (resuelto)", f.Title)
			assert.Equal(t, "Parcial 1 (resuelto)", e.files.get("f-1").Title)
			assert.Equal(t, []string{AuditFileUpdated}, e.audit.actions())
			require.Equal(t, 1, e.notifier.count())
			assert.Equal(t, model.NotificationFileUpdated, e.notifier.calls[0].Type)
		})
	}
}

func TestFileUpdate_ReferenceChecks(t *testing.T) {
	e := newEnv(t)
	e.addFile("f-1", statePending.ID)
	svc := e.fileService()

	// Материя sub-alg входит в cur-2011
	_, err := svc.Update(context.Background(), owner, "f-1", UpdateFileInput{CurriculumID: strPtr("cur-2011")})
	require.NoError(t, err)

	// sub-fis в cur-2011 не входит
	_, err = svc.Update(context.Background(), owner, "f-1", UpdateFileInput{SubjectID: strPtr("sub-fis")})
	require.ErrorIs(t, err, ErrValidation)

	// Пустая строка снимает план
	f, err := svc.Update(context.Background(), owner, "f-1", UpdateFileInput{CurriculumID: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, f.CurriculumID)
}

func TestFileDelete(t *testing.T) {
	tests := []struct {
		name    string
		actor   actorCase
		wantErr error
	}{
		{"владелец", actorOwner, nil},
		{"администратор", actorAdmin, nil},
		{"модератор", actorModerator, ErrForbidden},
		{"чужой студент", actorStranger, ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.addFile("f-1", statePending.ID)
			svc := e.fileService()

			err := svc.Delete(context.Background(), tt.actor.actor(), "f-1")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, e.files.get("f-1").DeletedAt)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, e.files.get("f-1").DeletedAt, "мягкое удаление сохраняет строку")

			_, err = svc.Get(context.Background(), admin, "f-1")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFileGet_IncrementsVisits(t *testing.T) {
	e := newEnv(t)
	e.addFile("f-1", statePending.ID)
	svc := e.fileService()

	for i := 1; i <= 3; i++ {
		f, err := svc.Get(context.Background(), stranger, "f-1")
		require.NoError(t, err)
		assert.EqualValues(t, i, f.VisitCount)
	}
}

func TestFileSaveUnsave(t *testing.T) {
	e := newEnv(t)
	e.addFile("f-1", statePending.ID)
	svc := e.fileService()
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, stranger, "f-1"))
	require.NoError(t, svc.Save(ctx, stranger, "f-1"), "повторное сохранение не ошибка")
	require.NoError(t, svc.Unsave(ctx, stranger, "f-1"))
	require.ErrorIs(t, svc.Unsave(ctx, stranger, "f-1"), ErrNotFound)
	require.ErrorIs(t, svc.Save(ctx, stranger, "f-missing"), ErrNotFound)
}

func TestFileHistory(t *testing.T) {
	e := newEnv(t)
	e.addFile("f-1", statePending.ID)
	_, err := e.reviewService(nil).TransitionState(context.Background(), "f-1", moderator, stateApproved.ID, nil)
	require.NoError(t, err)

	entries, err := e.fileService().History(context.Background(), stranger, "f-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Aprobado", entries[0].NewState)
}
