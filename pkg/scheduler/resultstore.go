package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/travigo/railops/pkg/ctdf"
)

// ResultStore keeps optimization results so they can be fetched by run identifier
type ResultStore interface {
	Put(ctx context.Context, result ctdf.OptimizationResult) error
	Get(ctx context.Context, runIdentifier string) (ctdf.OptimizationResult, error)
}

type MemoryResultStore struct {
	mutex   sync.RWMutex
	results map[string]ctdf.OptimizationResult
}

func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{
		results: map[string]ctdf.OptimizationResult{},
	}
}

func (m *MemoryResultStore) Put(_ context.Context, result ctdf.OptimizationResult) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.results[result.RunIdentifier] = result

	return nil
}

func (m *MemoryResultStore) Get(_ context.Context, runIdentifier string) (ctdf.OptimizationResult, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result, exists := m.results[runIdentifier]
	if !exists {
		return ctdf.OptimizationResult{}, fmt.Errorf("%w: %s", ctdf.ErrUnknownRun, runIdentifier)
	}

	return result, nil
}

// CacheResultStore shares results through redis so every API replica can serve them
type CacheResultStore struct {
	Cache *cache.Cache[string]
}

func NewCacheResultStore(client *redis.Client, expiration time.Duration) *CacheResultStore {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(expiration))

	return &CacheResultStore{
		Cache: cache.New[string](redisStore),
	}
}

func (c *CacheResultStore) Put(ctx context.Context, result ctdf.OptimizationResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return c.Cache.Set(ctx, cacheKey(result.RunIdentifier), string(resultJSON))
}

func (c *CacheResultStore) Get(ctx context.Context, runIdentifier string) (ctdf.OptimizationResult, error) {
	var result ctdf.OptimizationResult

	resultJSON, err := c.Cache.Get(ctx, cacheKey(runIdentifier))
	if err != nil {
		return result, fmt.Errorf("%w: %s", ctdf.ErrUnknownRun, runIdentifier)
	}

	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return result, err
	}

	return result, nil
}

func cacheKey(runIdentifier string) string {
	return "railops/optimization/" + runIdentifier
}
