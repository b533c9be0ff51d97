package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert or update violates a unique constraint.
	ErrDuplicate = errors.New("duplicate")
	// ErrInsufficientStock is returned when a quantity change would go below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Inventory is a registered inventory database file.
type Inventory struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// ComponentFilter narrows ListComponents. Zero values disable a condition.
type ComponentFilter struct {
	Type        string
	Search      string
	MaxQuantity *int
	Limit       int
	Offset      int
}
