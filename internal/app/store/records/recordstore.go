// internal/app/store/records/recordstore.go
package recordstore

import (
	"context"
	"errors"

	"github.com/dalemusser/formhub/internal/app/store/substrate"
	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/app/system/registry"
	"github.com/dalemusser/formhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store performs record CRUD against the collection of a resolved binding.
// It is stateless; every call names the binding it works on.
type Store struct{}

func New() *Store {
	return &Store{}
}

// Create validates values against the binding's schema and inserts a record.
//
// Fields are checked in declaration order and the first failure is returned
// as *apperr.ValidationError. Keys that are not stored fields are dropped.
// Omitted optional enumerated fields are stored as "".
func (s *Store) Create(ctx context.Context, b *registry.Binding, values map[string]any) (models.Record, error) {
	out := make(map[string]models.Value, b.Schema.Len())

	for _, e := range b.Schema.Entries {
		raw, present := values[e.Name]
		if !present || raw == nil {
			if e.Required {
				return models.Record{}, invalid(e.Name, reasonRequired)
			}
			if e.Enumerated() {
				out[e.Name] = models.StringValue("")
			}
			continue
		}
		v, err := coerce(e, raw)
		if err != nil {
			return models.Record{}, err
		}
		out[e.Name] = v
	}

	doc := substrate.Document{
		ID:     primitive.NewObjectID(),
		FormID: b.FormID,
		Values: out,
	}
	if err := b.Collection.Insert(ctx, doc); err != nil {
		return models.Record{}, err
	}
	return toRecord(b, doc), nil
}

// Get returns the record with the given hex id. An id that does not parse
// is reported as apperr.ErrNotFound.
func (s *Store) Get(ctx context.Context, b *registry.Binding, recordID string) (models.Record, error) {
	id, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		return models.Record{}, apperr.ErrNotFound
	}
	doc, err := b.Collection.Get(ctx, id)
	if err != nil {
		return models.Record{}, err
	}
	return toRecord(b, doc), nil
}

// List starts an iteration over every record of the binding in storage
// order. Call List again to restart.
func (s *Store) List(ctx context.Context, b *registry.Binding) (*Iterator, error) {
	cur, err := b.Collection.Find(ctx)
	if err != nil {
		return nil, err
	}
	return &Iterator{b: b, cur: cur}, nil
}

// Collect drains List into a slice.
func (s *Store) Collect(ctx context.Context, b *registry.Binding) ([]models.Record, error) {
	it, err := s.List(ctx, b)
	if err != nil {
		return nil, err
	}
	defer it.Close(ctx)

	out := []models.Record{}
	for it.Next(ctx) {
		out = append(out, it.Record())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies patch to the record. Only keys in the binding's mutable
// set are applied; other keys are ignored. Touched fields are re-validated
// in declaration order. A null value counts as an omitted key.
func (s *Store) Update(ctx context.Context, b *registry.Binding, recordID string, patch map[string]any) (models.Record, error) {
	id, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		return models.Record{}, apperr.ErrNotFound
	}

	set := make(map[string]models.Value)
	for _, e := range b.Schema.Entries {
		raw, present := patch[e.Name]
		if !present || !b.Mutable.Has(e.Name) {
			continue
		}
		if raw == nil {
			// null reads as an omitted key, as in Create: required fields
			// reject it and optional fields keep their stored value.
			if e.Required {
				return models.Record{}, invalid(e.Name, reasonRequired)
			}
			continue
		}
		v, err := coerce(e, raw)
		if err != nil {
			return models.Record{}, err
		}
		set[e.Name] = v
	}

	var doc substrate.Document
	if len(set) == 0 {
		doc, err = b.Collection.Get(ctx, id)
	} else {
		doc, err = b.Collection.Set(ctx, id, set)
	}
	if err != nil {
		return models.Record{}, err
	}
	return toRecord(b, doc), nil
}

// Delete removes the record and returns it.
func (s *Store) Delete(ctx context.Context, b *registry.Binding, recordID string) (models.Record, error) {
	id, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		return models.Record{}, apperr.ErrNotFound
	}
	doc, err := b.Collection.Delete(ctx, id)
	if err != nil {
		return models.Record{}, err
	}
	return toRecord(b, doc), nil
}

// Count returns the number of records in the binding's collection.
func (s *Store) Count(ctx context.Context, b *registry.Binding) (int64, error) {
	return b.Collection.Count(ctx)
}

func toRecord(b *registry.Binding, d substrate.Document) models.Record {
	return models.Record{
		ID:      d.ID,
		FormID:  d.FormID,
		Version: b.Version,
		Values:  d.Values,
	}
}

// Iterator walks records lazily. It must be closed.
type Iterator struct {
	b   *registry.Binding
	cur substrate.Cursor
	rec models.Record
}

func (it *Iterator) Next(ctx context.Context) bool {
	if !it.cur.Next(ctx) {
		return false
	}
	it.rec = toRecord(it.b, it.cur.Document())
	return true
}

func (it *Iterator) Record() models.Record { return it.rec }

func (it *Iterator) Err() error { return it.cur.Err() }

func (it *Iterator) Close(ctx context.Context) error {
	if err := it.cur.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
