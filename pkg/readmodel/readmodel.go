// Package readmodel defines the document store holding the queryable
// projections of aggregate event histories.  Documents are mutated only by
// the projection engine, never directly by application code.
package readmodel

import (
	"context"
	"errors"
	"fmt"

	"github.com/snagmail/snagmail/pkg/config"
)

var (
	// ErrNoDocument indicates the requested document does not exist.
	ErrNoDocument = errors.New("document does not exist")

	// ErrUnavailable indicates the backing store could not be reached.
	ErrUnavailable = errors.New("read-model storage unavailable")
)

// Store is a collection/key addressed document store.
type Store interface {
	// Put unconditionally writes a document.
	Put(ctx context.Context, collection, key string, doc []byte) error

	// Get returns one document, or ErrNoDocument.
	Get(ctx context.Context, collection, key string) ([]byte, error)

	// Delete removes one document; removing an absent document is a no-op.
	Delete(ctx context.Context, collection, key string) error

	// DeleteAll truncates a collection, used by projection rebuild.
	DeleteAll(ctx context.Context, collection string) error

	// Visit walks a collection in unspecified order, stopping when visit
	// returns false.
	Visit(ctx context.Context, collection string, visit func(key string, doc []byte) bool) error

	// Close releases backend resources.
	Close() error
}

// Constructors tracks registered store backends by type name.
var Constructors = make(map[string]func(config.ReadModel) (Store, error))

// FromConfig creates an instance of the configured store backend.
func FromConfig(cfg config.ReadModel) (Store, error) {
	if cons, ok := Constructors[cfg.Type]; ok {
		return cons(cfg)
	}
	return nil, fmt.Errorf("unknown read-model store type %q", cfg.Type)
}
