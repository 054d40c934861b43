// internal/app/store/projects/projectstore.go
package projectstore

import (
	"context"
	"errors"
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

const Collection = "projects"

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

func normalizeAccess(p *models.Project) {
	if p.Access == "" {
		p.Access = models.AccessPublic
	}
	if p.Access != models.AccessRestricted {
		p.RestrictedTo = nil
	}
}

// Create inserts a new project, setting NameCI and timestamps. Projects
// default to public access.
func (s *Store) Create(ctx context.Context, p models.Project) (models.Project, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return models.Project{}, &apperr.ValidationError{Field: "name", Reason: "is required"}
	}

	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.NameCI = text.Fold(p.Name)
	normalizeAccess(&p)
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Project{}, &apperr.DuplicateError{Key: "name"}
		}
		return models.Project{}, err
	}
	return p, nil
}

// GetByID returns a project by its ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Project, error) {
	var p models.Project
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Project{}, apperr.ErrNotFound
		}
		return models.Project{}, err
	}
	return p, nil
}

// ListByOwner returns the owner's projects ordered by name.
func (s *Store) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Project, error) {
	cur, err := s.c.Find(ctx, bson.M{"owner_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Project{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces name, description and access settings from p and returns
// the stored project.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, p models.Project) (models.Project, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return models.Project{}, &apperr.ValidationError{Field: "name", Reason: "is required"}
	}
	normalizeAccess(&p)

	set := bson.M{
		"name":        p.Name,
		"name_ci":     text.Fold(p.Name),
		"description": p.Description,
		"access":      p.Access,
		"updated_at":  time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if len(p.RestrictedTo) > 0 {
		set["restricted_to"] = p.RestrictedTo
	} else {
		update["$unset"] = bson.M{"restricted_to": ""}
	}
	return s.findAndUpdate(ctx, id, update)
}

// SetActive sets the project's active flag.
func (s *Store) SetActive(ctx context.Context, id primitive.ObjectID, active bool) (models.Project, error) {
	return s.findAndUpdate(ctx, id, bson.M{"$set": bson.M{"active": active, "updated_at": time.Now().UTC()}})
}

func (s *Store) findAndUpdate(ctx context.Context, id primitive.ObjectID, update bson.M) (models.Project, error) {
	var out models.Project
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return models.Project{}, apperr.ErrNotFound
		case wafflemongo.IsDup(err):
			return models.Project{}, &apperr.DuplicateError{Key: "name"}
		}
		return models.Project{}, err
	}
	return out, nil
}

// Delete removes a project and returns it.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (models.Project, error) {
	var p models.Project
	if err := s.c.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Project{}, apperr.ErrNotFound
		}
		return models.Project{}, err
	}
	return p, nil
}
