// state_cache.go — LRU-кэш справочника состояний архивов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/jorcase/exadocs/internal/domain/model"
	"github.com/jorcase/exadocs/internal/repository"
)

// defaultStateKey — ключ кэша для состояния по умолчанию.
const defaultStateKey = "\x00default"

// StateCache — чтение состояний через кэш. Запись состояний
// через CatalogService сбрасывает кэш целиком.
type StateCache struct {
	repo  repository.FileStateRepository
	cache *expirable.LRU[string, *model.FileState]
}

// NewStateCache создаёт кэш состояний.
func NewStateCache(repo repository.FileStateRepository, maxSize int, ttl time.Duration) *StateCache {
	return &StateCache{
		repo:  repo,
		cache: expirable.NewLRU[string, *model.FileState](maxSize, nil, ttl),
	}
}

// Get возвращает состояние по ID. Неизвестный ID — repository.ErrNotFound.
func (c *StateCache) Get(ctx context.Context, id string) (*model.FileState, error) {
	if s, ok := c.cache.Get(id); ok {
		stateCacheHitsTotal.Inc()
		return s, nil
	}
	stateCacheMissesTotal.Inc()

	s, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, s)
	return s, nil
}

// Default возвращает состояние новых архивов.
func (c *StateCache) Default(ctx context.Context) (*model.FileState, error) {
	if s, ok := c.cache.Get(defaultStateKey); ok {
		stateCacheHitsTotal.Inc()
		return s, nil
	}
	stateCacheMissesTotal.Inc()

	s, err := c.repo.GetDefault(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Add(defaultStateKey, s)
	c.cache.Add(s.ID, s)
	return s, nil
}

// Purge сбрасывает кэш.
func (c *StateCache) Purge() {
	c.cache.Purge()
}

// Len возвращает число записей в кэше.
func (c *StateCache) Len() int {
	return c.cache.Len()
}
