package storage

import (
	"context"
	"time"
)

// Metadata is the retention metadata attached to a stored pack.
type Metadata map[string]string

// Backend is the object-store abstraction the retention manager works
// against. Implementations must be safe for concurrent use.
type Backend interface {
	// Exists reports whether a pack with the given id is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// GetMetadata returns the pack's retention metadata. A missing
	// pack yields a NotFoundError.
	GetMetadata(ctx context.Context, id string) (Metadata, error)

	// SetMetadata replaces the pack's retention metadata.
	SetMetadata(ctx context.Context, id string, md Metadata) error

	// SetImmutableUntil locks the pack against deletion until the
	// given time. Backends may only extend an existing lock.
	SetImmutableUntil(ctx context.Context, id string, until time.Time) error

	// RestoreImmutableUntil resets the lock to the given time even when
	// that shrinks the window; a zero until clears the lock entirely.
	// The extend-only rule applies to retention locks, not to
	// reinstating the window that preceded a released legal hold.
	RestoreImmutableUntil(ctx context.Context, id string, until time.Time) error

	// CheckImmutable reports whether the pack is currently locked and
	// until when.
	CheckImmutable(ctx context.Context, id string) (bool, time.Time, error)

	// Delete removes the pack and its metadata. Deleting an immutable
	// pack fails.
	Delete(ctx context.Context, id string) error
}
