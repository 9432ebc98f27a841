package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgcarpool/carpool/internal/domain/location"
)

// LocationRepository is an in-memory location.Repository used in tests
type LocationRepository struct {
	mu        sync.Mutex
	locations map[uuid.UUID]*location.Location
	Now       func() time.Time
}

// NewLocationRepository creates an empty in-memory location repository
func NewLocationRepository() *LocationRepository {
	return &LocationRepository{
		locations: make(map[uuid.UUID]*location.Location),
		Now:       time.Now,
	}
}

// Put seeds a location directly
func (r *LocationRepository) Put(l *location.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.locations[cp.ID] = &cp
}

func (r *LocationRepository) Create(ctx context.Context, l *location.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.locations {
		if existing.Name == l.Name {
			return location.ErrDuplicateName
		}
	}
	cp := *l
	now := r.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	r.locations[cp.ID] = &cp
	return nil
}

func (r *LocationRepository) GetByID(ctx context.Context, id uuid.UUID) (*location.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locations[id]
	if !ok {
		return nil, location.ErrLocationNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *LocationRepository) GetByName(ctx context.Context, name string) (*location.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.locations {
		if l.Name == name {
			cp := *l
			return &cp, nil
		}
	}
	return nil, location.ErrLocationNotFound
}

func (r *LocationRepository) List(ctx context.Context, activeOnly bool) ([]*location.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*location.Location
	for _, l := range r.locations {
		if activeOnly && !l.IsActive {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *LocationRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*location.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locations[id]
	if !ok {
		return nil, location.ErrLocationNotFound
	}
	l.IsActive = active
	l.UpdatedAt = r.Now()
	cp := *l
	return &cp, nil
}

func (r *LocationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.locations[id]; !ok {
		return location.ErrLocationNotFound
	}
	delete(r.locations, id)
	return nil
}

func (r *LocationRepository) exists(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.locations[id]
	return ok
}
