// Package mem implements an in-memory read-model store, used for tests and
// ephemeral deployments.
package mem

import (
	"context"
	"sync"

	"github.com/snagmail/snagmail/pkg/config"
	"github.com/snagmail/snagmail/pkg/readmodel"
)

// Store implements an in-memory document store.
type Store struct {
	sync.Mutex
	collections map[string]*collection
}

type collection struct {
	sync.RWMutex
	docs map[string][]byte
}

var _ readmodel.Store = &Store{}

// New returns an empty memory store.
func New(_ config.ReadModel) (readmodel.Store, error) {
	return &Store{collections: make(map[string]*collection)}, nil
}

// Put unconditionally writes a document.
func (s *Store) Put(ctx context.Context, coll, key string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := make([]byte, len(doc))
	copy(cp, doc)
	s.withCollection(coll, true, func(c *collection) {
		c.docs[key] = cp
	})
	return nil
}

// Get returns one document, or readmodel.ErrNoDocument.
func (s *Store) Get(ctx context.Context, coll, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var doc []byte
	var ok bool
	s.withCollection(coll, false, func(c *collection) {
		doc, ok = c.docs[key]
	})
	if !ok {
		return nil, readmodel.ErrNoDocument
	}
	cp := make([]byte, len(doc))
	copy(cp, doc)
	return cp, nil
}

// Delete removes one document; absent documents are a no-op.
func (s *Store) Delete(ctx context.Context, coll, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.withCollection(coll, true, func(c *collection) {
		delete(c.docs, key)
	})
	return nil
}

// DeleteAll truncates a collection.
func (s *Store) DeleteAll(ctx context.Context, coll string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.withCollection(coll, true, func(c *collection) {
		c.docs = make(map[string][]byte)
	})
	return nil
}

// Visit walks a collection.
func (s *Store) Visit(ctx context.Context, coll string, visit func(key string, doc []byte) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Snapshot under the read lock, visit outside it.
	type entry struct {
		key string
		doc []byte
	}
	var entries []entry
	s.withCollection(coll, false, func(c *collection) {
		entries = make([]entry, 0, len(c.docs))
		for k, d := range c.docs {
			entries = append(entries, entry{k, d})
		}
	})
	for _, e := range entries {
		if !visit(e.key, e.doc) {
			return nil
		}
	}
	return nil
}

// Close is a no-op for the memory store.
func (s *Store) Close() error {
	return nil
}

// withCollection gets or creates a collection, locks it, then calls f.
func (s *Store) withCollection(name string, writeLock bool, f func(c *collection)) {
	s.Lock()
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string][]byte)}
		s.collections[name] = c
	}
	s.Unlock()
	if writeLock {
		c.Lock()
	} else {
		c.RLock()
	}
	defer func() {
		if writeLock {
			c.Unlock()
		} else {
			c.RUnlock()
		}
	}()
	f(c)
}
