// Package substrate is the persistence layer underneath form-version record
// collections. A Substrate creates, opens and drops named physical
// collections; a Collection performs CRUD on the documents inside one.
//
// Three backends are provided:
//   - Mongo: one MongoDB collection per form version (production default)
//   - SQLite: one table per form version in an embedded database file
//   - Memory: process-local maps, used by tests and the formctl CLI
//
// Backends return apperr.ErrNotFound for missing documents and pass every
// other storage failure through unchanged.
package substrate

import (
	"context"
	"fmt"
	"regexp"

	"github.com/dalemusser/formhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is the stored form of a record. The form version is implied by
// the collection holding it.
type Document struct {
	ID     primitive.ObjectID
	FormID primitive.ObjectID
	Values map[string]models.Value
}

// Cursor iterates documents in storage order.
type Cursor interface {
	Next(ctx context.Context) bool
	Document() Document
	Err() error
	Close(ctx context.Context) error
}

// Collection is one physical record collection.
type Collection interface {
	Name() string
	Insert(ctx context.Context, doc Document) error
	Get(ctx context.Context, id primitive.ObjectID) (Document, error)
	Find(ctx context.Context) (Cursor, error)
	// Set overwrites the given values and returns the updated document.
	Set(ctx context.Context, id primitive.ObjectID, values map[string]models.Value) (Document, error)
	Delete(ctx context.Context, id primitive.ObjectID) (Document, error)
	Count(ctx context.Context) (int64, error)
}

// Substrate manages named collections. Open creates the collection on first
// use and is idempotent; Drop is idempotent.
type Substrate interface {
	Backend() string
	Open(ctx context.Context, name string) (Collection, error)
	Drop(ctx context.Context, name string) error
}

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// CheckName rejects collection names that are not safe to use verbatim as a
// MongoDB collection or quoted SQL identifier.
func CheckName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("substrate: invalid collection name %q", name)
	}
	return nil
}

func cloneValues(in map[string]models.Value) map[string]models.Value {
	out := make(map[string]models.Value, len(in))
	for k, v := range in {
		if v.Type == models.TypeBytes && v.Bytes != nil {
			v.Bytes = append([]byte(nil), v.Bytes...)
		}
		out[k] = v
	}
	return out
}

func cloneDocument(d Document) Document {
	d.Values = cloneValues(d.Values)
	return d
}
