// internal/app/store/forms/formstore.go
package formstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	FormsCollection    = "forms"
	VersionsCollection = "form_versions"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store persists form heads in "forms" and one immutable field-list snapshot
// per version in "form_versions".
type Store struct {
	c *mongo.Collection
	v *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c: db.Collection(FormsCollection),
		v: db.Collection(VersionsCollection),
	}
}

// ValidateName checks a form name against the allowed pattern.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return &apperr.ValidationError{Field: "name", Reason: "may only contain letters, digits, '_' and '-'"}
	}
	return nil
}

// normalizeAccess applies the default access mode and clears RestrictedTo
// when the form is not restricted.
func normalizeAccess(f *models.Form) {
	if f.Access == "" {
		f.Access = models.AccessPrivate
	}
	if f.Access != models.AccessRestricted {
		f.RestrictedTo = nil
	}
}

// Create inserts a new form at version 1 together with its first snapshot.
// A name already used in the same project yields *apperr.DuplicateError.
func (s *Store) Create(ctx context.Context, f models.Form) (models.Form, error) {
	f.Name = strings.TrimSpace(f.Name)
	if err := ValidateName(f.Name); err != nil {
		return models.Form{}, err
	}

	now := time.Now().UTC()
	f.ID = primitive.NewObjectID()
	f.NameCI = text.Fold(f.Name)
	f.Version = 1
	f.Fields = models.NormalizeFields(f.Fields)
	if f.Fields == nil {
		f.Fields = []models.Field{}
	}
	normalizeAccess(&f)
	f.CreatedAt = now
	f.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, f); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Form{}, &apperr.DuplicateError{Key: "name"}
		}
		return models.Form{}, fmt.Errorf("insert form: %w", err)
	}
	if err := s.insertSnapshot(ctx, f.ID, 1, f.Fields, now); err != nil {
		_, _ = s.c.DeleteOne(ctx, bson.M{"_id": f.ID})
		return models.Form{}, err
	}
	return f, nil
}

func (s *Store) insertSnapshot(ctx context.Context, formID primitive.ObjectID, version int, fields []models.Field, at time.Time) error {
	snap := models.FormVersion{
		ID:        primitive.NewObjectID(),
		FormID:    formID,
		Version:   version,
		Fields:    fields,
		CreatedAt: at,
	}
	if _, err := s.v.InsertOne(ctx, snap); err != nil {
		if wafflemongo.IsDup(err) {
			return &apperr.DuplicateError{Key: "version"}
		}
		return fmt.Errorf("insert form version: %w", err)
	}
	return nil
}

// GetByID returns a form by its ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Form, error) {
	var f models.Form
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Form{}, apperr.ErrNotFound
		}
		return models.Form{}, err
	}
	return f, nil
}

// ListByProject returns the forms of a project ordered by name.
func (s *Store) ListByProject(ctx context.Context, projectID primitive.ObjectID) ([]models.Form, error) {
	return s.find(ctx, bson.M{"project_id": projectID},
		options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}))
}

func (s *Store) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Form, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Form{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Each calls fn for every stored form in _id order, stopping at the first
// error.
func (s *Store) Each(ctx context.Context, fn func(models.Form) error) error {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var f models.Form
		if err := cur.Decode(&f); err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return cur.Err()
}

// CountByProjects returns how many forms belong to the given projects and
// how many of those are inactive.
func (s *Store) CountByProjects(ctx context.Context, projectIDs []primitive.ObjectID) (total, inactive int64, err error) {
	if len(projectIDs) == 0 {
		return 0, 0, nil
	}
	filter := bson.M{"project_id": bson.M{"$in": projectIDs}}
	if total, err = s.c.CountDocuments(ctx, filter); err != nil {
		return 0, 0, err
	}
	filter["active"] = false
	if inactive, err = s.c.CountDocuments(ctx, filter); err != nil {
		return 0, 0, err
	}
	return total, inactive, nil
}

// UpdateMeta replaces the name, description and access settings of the form
// with id from f. Fields and Version are left alone.
func (s *Store) UpdateMeta(ctx context.Context, id primitive.ObjectID, f models.Form) (models.Form, error) {
	f.Name = strings.TrimSpace(f.Name)
	if err := ValidateName(f.Name); err != nil {
		return models.Form{}, err
	}
	normalizeAccess(&f)

	set := bson.M{
		"name":        f.Name,
		"name_ci":     text.Fold(f.Name),
		"description": f.Description,
		"access":      f.Access,
		"updated_at":  time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if len(f.RestrictedTo) > 0 {
		set["restricted_to"] = f.RestrictedTo
	} else {
		update["$unset"] = bson.M{"restricted_to": ""}
	}

	var out models.Form
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return models.Form{}, apperr.ErrNotFound
		case wafflemongo.IsDup(err):
			return models.Form{}, &apperr.DuplicateError{Key: "name"}
		}
		return models.Form{}, err
	}
	return out, nil
}

// AddVersion records fields as version from+1 and advances the form head.
// from must be the form's current version; a concurrent edit that already
// took from+1 yields *apperr.DuplicateError{Key: "version"}.
func (s *Store) AddVersion(ctx context.Context, id primitive.ObjectID, from int, fields []models.Field) (models.Form, error) {
	fields = models.NormalizeFields(fields)
	if fields == nil {
		fields = []models.Field{}
	}
	now := time.Now().UTC()
	next := from + 1

	// The (form_id, version) unique index makes the snapshot insert the
	// point where concurrent edits collide.
	if err := s.insertSnapshot(ctx, id, next, fields, now); err != nil {
		return models.Form{}, err
	}

	var out models.Form
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "version": from},
		bson.M{
			"$set": bson.M{"fields": fields, "updated_at": now},
			"$inc": bson.M{"version": 1},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		_, _ = s.v.DeleteOne(ctx, bson.M{"form_id": id, "version": next})
		if errors.Is(err, mongo.ErrNoDocuments) {
			if _, gerr := s.GetByID(ctx, id); gerr != nil {
				return models.Form{}, gerr
			}
			return models.Form{}, &apperr.DuplicateError{Key: "version"}
		}
		return models.Form{}, err
	}
	return out, nil
}

// Versions returns every snapshot of the form in ascending version order.
func (s *Store) Versions(ctx context.Context, formID primitive.ObjectID) ([]models.FormVersion, error) {
	cur, err := s.v.Find(ctx, bson.M{"form_id": formID},
		options.Find().SetSort(bson.D{{Key: "version", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.FormVersion{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetActiveByProject sets active on every form of the project and returns
// how many forms changed.
func (s *Store) SetActiveByProject(ctx context.Context, projectID primitive.ObjectID, active bool) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"project_id": projectID, "active": bson.M{"$ne": active}},
		bson.M{"$set": bson.M{"active": active, "updated_at": time.Now().UTC()}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes the form and its snapshots and returns the removed form.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (models.Form, error) {
	var f models.Form
	if err := s.c.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Form{}, apperr.ErrNotFound
		}
		return models.Form{}, err
	}
	if _, err := s.v.DeleteMany(ctx, bson.M{"form_id": id}); err != nil {
		return f, fmt.Errorf("delete form versions: %w", err)
	}
	return f, nil
}

// DeleteByProject removes every form of the project with their snapshots and
// returns the removed forms.
func (s *Store) DeleteByProject(ctx context.Context, projectID primitive.ObjectID) ([]models.Form, error) {
	forms, err := s.find(ctx, bson.M{"project_id": projectID})
	if err != nil {
		return nil, err
	}
	if len(forms) == 0 {
		return forms, nil
	}
	ids := make([]primitive.ObjectID, len(forms))
	for i, f := range forms {
		ids[i] = f.ID
	}
	if _, err := s.c.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return nil, err
	}
	if _, err := s.v.DeleteMany(ctx, bson.M{"form_id": bson.M{"$in": ids}}); err != nil {
		return forms, fmt.Errorf("delete form versions: %w", err)
	}
	return forms, nil
}
