package substrate

import (
	"context"
	"sync"

	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory keeps collections in process memory. Documents are copied on the
// way in and out so callers never share backing arrays with the store.
type Memory struct {
	mu   sync.Mutex
	cols map[string]*memCollection
}

// NewMemory returns an empty in-memory substrate.
func NewMemory() *Memory {
	return &Memory{cols: make(map[string]*memCollection)}
}

func (m *Memory) Backend() string { return "memory" }

func (m *Memory) Open(_ context.Context, name string) (Collection, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cols[name]
	if !ok {
		c = &memCollection{name: name, docs: make(map[primitive.ObjectID]Document)}
		m.cols[name] = c
	}
	return c, nil
}

func (m *Memory) Drop(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cols, name)
	return nil
}

// Exists reports whether a collection named name is present.
func (m *Memory) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.cols[name]
	return ok
}

type memCollection struct {
	name  string
	mu    sync.RWMutex
	order []primitive.ObjectID
	docs  map[primitive.ObjectID]Document
}

func (c *memCollection) Name() string { return c.name }

func (c *memCollection) Insert(_ context.Context, doc Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.docs[doc.ID]; exists {
		return &apperr.DuplicateError{Key: "_id"}
	}
	c.docs[doc.ID] = cloneDocument(doc)
	c.order = append(c.order, doc.ID)
	return nil
}

func (c *memCollection) Get(_ context.Context, id primitive.ObjectID) (Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.docs[id]
	if !ok {
		return Document{}, apperr.ErrNotFound
	}
	return cloneDocument(d), nil
}

func (c *memCollection) Find(_ context.Context) (Cursor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		snap = append(snap, cloneDocument(c.docs[id]))
	}
	return &sliceCursor{docs: snap, pos: -1}, nil
}

func (c *memCollection) Set(_ context.Context, id primitive.ObjectID, values map[string]models.Value) (Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.docs[id]
	if !ok {
		return Document{}, apperr.ErrNotFound
	}
	for k, v := range cloneValues(values) {
		d.Values[k] = v
	}
	c.docs[id] = d
	return cloneDocument(d), nil
}

func (c *memCollection) Delete(_ context.Context, id primitive.ObjectID) (Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.docs[id]
	if !ok {
		return Document{}, apperr.ErrNotFound
	}
	delete(c.docs, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return d, nil
}

func (c *memCollection) Count(_ context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.docs)), nil
}

// sliceCursor walks a snapshot taken when Find was called.
type sliceCursor struct {
	docs []Document
	pos  int
	err  error
}

func (s *sliceCursor) Next(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if s.pos+1 >= len(s.docs) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceCursor) Document() Document { return s.docs[s.pos] }

func (s *sliceCursor) Err() error { return s.err }

func (s *sliceCursor) Close(context.Context) error { return nil }
