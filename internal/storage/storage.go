package storage

import "context"

// BlobStore is a key-addressed byte store for uploaded submission files.
// Keys are opaque to callers; every Put yields a fresh key so a replace
// never races the deletion of a just-written blob. Delete is idempotent:
// removing a missing key is not an error.
type BlobStore interface {
	Put(ctx context.Context, data []byte, typeHint string) (string, error)
	Delete(ctx context.Context, key string) error
	Resolve(key string) string
}
