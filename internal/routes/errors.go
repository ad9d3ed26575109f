package routes

import "errors"

// Sentinel errors for route table operations.
var (
	// ErrNotFound indicates that no route exists for the given key.
	ErrNotFound = errors.New("route not found")

	// ErrEmptyDestination indicates an upsert with a blank destination.
	ErrEmptyDestination = errors.New("destination must not be empty")

	// ErrInvalidKey indicates a route key that is empty or not path-safe.
	ErrInvalidKey = errors.New("invalid route key")
)
