package settings

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	"bingeworthy/searchservice/internal/domain"
)

const redisKey = "binge:settings:cards"

// Store persists the admin card settings. Reads always return a usable
// value: a store with nothing saved yet serves the defaults.
type Store interface {
	Get(ctx context.Context) (domain.CardSettings, error)
	Put(ctx context.Context, settings domain.CardSettings) error
}

// MemoryStore keeps settings in process memory. Used when Redis is not
// configured; settings then reset on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	settings domain.CardSettings
	saved    bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(_ context.Context) (domain.CardSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.saved {
		return domain.DefaultCardSettings(), nil
	}
	return cloneSettings(m.settings), nil
}

func (m *MemoryStore) Put(_ context.Context, settings domain.CardSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = cloneSettings(settings)
	m.saved = true
	return nil
}

// RedisStore persists settings in Redis so every replica serves the same
// configuration.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context) (domain.CardSettings, error) {
	data, err := r.client.Get(ctx, redisKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.DefaultCardSettings(), nil
		}
		return domain.CardSettings{}, err
	}
	var settings domain.CardSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return domain.CardSettings{}, err
	}
	return settings, nil
}

func (r *RedisStore) Put(ctx context.Context, settings domain.CardSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKey, data, 0).Err()
}

func cloneSettings(settings domain.CardSettings) domain.CardSettings {
	cloned := domain.CardSettings{
		SearchFields: make(map[string]bool, len(settings.SearchFields)),
		CardFields:   make(map[string]bool, len(settings.CardFields)),
	}
	for key, value := range settings.SearchFields {
		cloned.SearchFields[key] = value
	}
	for key, value := range settings.CardFields {
		cloned.CardFields[key] = value
	}
	return cloned
}
