// Package blob stores original document bytes keyed by catalog record ID.
// The catalog never validates back-references: a dangling blob (record
// deleted, blob not) or dangling record (blob missing) are tolerated and
// handled at read time.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound signals absence of a blob for the given id.
var ErrNotFound = errors.New("blob not found")

// Store is the binary object store contract.
type Store interface {
	// Put persists the blob under id. A nil reader is a successful no-op so a
	// record without recoverable bytes can still be committed.
	Put(ctx context.Context, id string, r io.Reader) error
	// Get returns the blob bytes. Absence is signalled by ErrNotFound.
	Get(ctx context.Context, id string) (io.ReadCloser, error)
	// Delete removes the blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, id string) error
}
