package session

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Repository persists sessions between requests. Update serialises changes to one
// session: fn sees the latest state and its changes are stored only if it returns nil.
type Repository interface {
	Create(ctx context.Context, s *EditSession) error
	Get(ctx context.Context, id string) (*EditSession, error)
	Update(ctx context.Context, id string, fn func(*EditSession) error) (*EditSession, error)
	Delete(ctx context.Context, id string) error
}

// MemoryRepository keeps encoded sessions in a go-cache with a sliding TTL.
type MemoryRepository struct {
	cache *cache.Cache
	ttl   time.Duration
	locks sync.Map
}

// NewMemoryRepository creates a repository whose sessions expire ttl after their last
// change.
func NewMemoryRepository(ttl time.Duration) *MemoryRepository {
	r := &MemoryRepository{
		cache: cache.New(ttl, ttl/2+time.Second),
		ttl:   ttl,
	}
	r.cache.OnEvicted(func(id string, _ interface{}) {
		r.locks.Delete(id)
	})
	return r
}

func (r *MemoryRepository) lock(id string) *sync.Mutex {
	mu, _ := r.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (r *MemoryRepository) Create(ctx context.Context, s *EditSession) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	r.cache.Set(s.ID, data, r.ttl)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*EditSession, error) {
	raw, ok := r.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return decode(raw.([]byte))
}

func (r *MemoryRepository) Update(ctx context.Context, id string, fn func(*EditSession) error) (*EditSession, error) {
	mu := r.lock(id)
	mu.Lock()
	defer mu.Unlock()

	s, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	data, err := encode(s)
	if err != nil {
		return nil, err
	}
	r.cache.Set(id, data, r.ttl)
	return s, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	if _, ok := r.cache.Get(id); !ok {
		return ErrNotFound
	}
	r.cache.Delete(id)
	return nil
}
