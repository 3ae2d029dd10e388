package profile

import (
	"context"
	"errors"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
)

// Store persists profile documents keyed by the account id.
type Store interface {
	Create(ctx context.Context, p Profile) error
	Get(ctx context.Context, id string) (Profile, error)
	// Update applies patch to an existing document.
	Update(ctx context.Context, id string, patch Patch) (Profile, error)
	// Upsert applies patch to the document with seed.ID, creating it from
	// seed first when it does not exist.
	Upsert(ctx context.Context, seed Profile, patch Patch) (Profile, error)
	// CreateIfAbsent inserts p unless a document with the same id exists and
	// reports whether it inserted.
	CreateIfAbsent(ctx context.Context, p Profile) (bool, error)
}
