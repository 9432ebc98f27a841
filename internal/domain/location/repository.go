package location

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for location data access
type Repository interface {
	// Create inserts a new location; ErrDuplicateName if the name is taken
	Create(ctx context.Context, l *Location) error

	// GetByID retrieves a location by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Location, error)

	// GetByName retrieves a location by its unique name
	GetByName(ctx context.Context, name string) (*Location, error)

	// List returns locations sorted by name; activeOnly filters on IsActive
	List(ctx context.Context, activeOnly bool) ([]*Location, error)

	// SetActive sets the active flag and returns the updated location
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*Location, error)

	// Delete removes the location
	Delete(ctx context.Context, id uuid.UUID) error
}
