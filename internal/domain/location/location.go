package location

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Coordinates is an optional lat/lng pair for a location
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location represents a named, reusable pickup/drop-off point
type Location struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Address     string       `json:"address,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IsValid validates the location entity
func (l *Location) IsValid() error {
	if strings.TrimSpace(l.Name) == "" {
		return ErrInvalidName
	}
	return nil
}
