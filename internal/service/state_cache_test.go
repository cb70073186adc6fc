package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorcase/exadocs/internal/domain/model"
	"github.com/jorcase/exadocs/internal/repository"
)

func TestStateCache_GetUsesCache(t *testing.T) {
	repo := seededStates()
	cache := NewStateCache(repo, 16, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s, err := cache.Get(ctx, stateApproved.ID)
		require.NoError(t, err)
		assert.Equal(t, "Aprobado", s.Name)
	}
	assert.Equal(t, 1, repo.calls, "повторные чтения из кэша")

	_, err := cache.Get(ctx, "st-missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStateCache_DefaultFillsByID(t *testing.T) {
	repo := seededStates()
	cache := NewStateCache(repo, 16, time.Minute)
	ctx := context.Background()

	def, err := cache.Default(ctx)
	require.NoError(t, err)
	assert.Equal(t, statePending.ID, def.ID)

	_, err = cache.Get(ctx, statePending.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, 2, cache.Len())
}

func TestStateCache_TTLAndPurge(t *testing.T) {
	repo := seededStates()
	cache := NewStateCache(repo, 16, 20*time.Millisecond)
	ctx := context.Background()

	_, err := cache.Get(ctx, stateDraft.ID)
	require.NoError(t, err)
	cache.Purge()
	assert.Zero(t, cache.Len())

	_, err = cache.Get(ctx, stateDraft.ID)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = cache.Get(ctx, stateDraft.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, repo.calls)
}

func TestCatalogFileStateWritesPurgeCache(t *testing.T) {
	repo := seededStates()
	cache := NewStateCache(repo, 16, time.Minute)
	audit := &fakeAudit{}
	svc := NewCatalogService(nil, repo, cache, &fakeStateTx{states: repo}, NewAuditService(audit, testLogger()), testLogger())
	ctx := context.Background()

	s, err := svc.GetFileState(ctx, stateApproved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aprobado", s.Name)

	upd := *s
	upd.Name = "Publicado"
	require.ErrorIs(t, svc.UpdateFileState(ctx, moderator, &upd), ErrForbidden)
	require.NoError(t, svc.UpdateFileState(ctx, admin, &upd))

	s, err = svc.GetFileState(ctx, stateApproved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Publicado", s.Name, "кэш сброшен после записи")
	assert.Equal(t, []string{AuditCatalogChanged}, audit.actions())
}

func TestCatalogDefaultStateProtected(t *testing.T) {
	repo := seededStates()
	svc := NewCatalogService(nil, repo, NewStateCache(repo, 16, time.Minute), &fakeStateTx{states: repo}, nil, testLogger())
	ctx := context.Background()

	require.ErrorIs(t, svc.DeleteFileState(ctx, admin, statePending.ID), ErrValidation)

	upd := *repo.states[statePending.ID]
	upd.IsDefault = false
	require.ErrorIs(t, svc.UpdateFileState(ctx, admin, &upd), ErrValidation)
}

func TestCatalogDefaultStateReassigned(t *testing.T) {
	repo := seededStates()
	cache := NewStateCache(repo, 16, time.Minute)
	tx := &fakeStateTx{states: repo}
	audit := &fakeAudit{}
	svc := NewCatalogService(nil, repo, cache, tx, NewAuditService(audit, testLogger()), testLogger())
	ctx := context.Background()

	// Прогреваем кэш прежним значением
	def, err := cache.Default(ctx)
	require.NoError(t, err)
	require.Equal(t, statePending.ID, def.ID)

	upd := *repo.states[stateDraft.ID]
	upd.IsDefault = true
	require.NoError(t, svc.UpdateFileState(ctx, admin, &upd))
	assert.Equal(t, 1, tx.calls, "переназначение выполняется в транзакции")

	assert.True(t, repo.states[stateDraft.ID].IsDefault)
	assert.False(t, repo.states[statePending.ID].IsDefault)
	def, err = cache.Default(ctx)
	require.NoError(t, err)
	assert.Equal(t, stateDraft.ID, def.ID, "кэш сброшен")

	// Новое состояние по умолчанию при создании
	created := &model.FileState{Name: "En revisión", IsDefault: true}
	require.NoError(t, svc.CreateFileState(ctx, admin, created))
	assert.Equal(t, 2, tx.calls)
	assert.False(t, repo.states[stateDraft.ID].IsDefault)
	assert.True(t, repo.states[created.ID].IsDefault)

	// Обычное изменение — без транзакции
	plain := *repo.states[stateRejected.ID]
	plain.Name = "Rechazado definitivo"
	require.NoError(t, svc.UpdateFileState(ctx, admin, &plain))
	assert.Equal(t, 2, tx.calls)
}

func TestCatalogDefaultStateRollback(t *testing.T) {
	repo := seededStates()
	tx := &fakeStateTx{states: repo}
	svc := NewCatalogService(nil, repo, NewStateCache(repo, 16, time.Minute), tx, nil, testLogger())

	// Имя занято: создание падает, прежнее состояние по умолчанию сохраняется
	dup := &model.FileState{Name: "Aprobado", IsDefault: true}
	require.ErrorIs(t, svc.CreateFileState(context.Background(), admin, dup), ErrConflict)
	assert.True(t, repo.states[statePending.ID].IsDefault)
}
