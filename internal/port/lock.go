package port

import "context"

// HashLocker serializes work on a single document hash.
type HashLocker interface {
	// Lock blocks until the hash is held or ctx is done. The returned
	// function releases it.
	Lock(ctx context.Context, hash string) (func(), error)
}
