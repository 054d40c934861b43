// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/formhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates the metadata collections (if missing) and tries to attach
// JSON-Schema validators. On servers that don't support collMod/validators
// (e.g. some DocumentDB versions), we log and skip gracefully.
//
// Record collections are created on demand by the record substrate and carry
// no validator: their shape is enforced by the compiled form schema.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("projects", projectsSchema())
	ensure("forms", formsSchema())
	ensure("form_versions", formVersionsSchema())

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func accessEnum() bson.A {
	return bson.A{string(models.AccessPublic), string(models.AccessPrivate), string(models.AccessRestricted)}
}

// fieldSchema constrains one entry of a stored field list. Only the name and
// kind are checked here; the full rules live in schema.Compile.
func fieldSchema() bson.M {
	return bson.M{
		"bsonType": "object",
		"required": bson.A{"name", "type"},
		"properties": bson.M{
			"name": bson.M{"bsonType": "string"},
			"type": bson.M{"bsonType": "string", "minLength": 1},
		},
	}
}

func projectsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "owner_id", "access", "active"},
			"properties": bson.M{
				"name":          bson.M{"bsonType": "string"},
				"name_ci":       bson.M{"bsonType": "string"},
				"description":   bson.M{"bsonType": "string"},
				"owner_id":      bson.M{"bsonType": "objectId"},
				"access":        bson.M{"enum": accessEnum()},
				"restricted_to": bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
				"active":        bson.M{"bsonType": "bool"},
				"created_at":    bson.M{"bsonType": "date"},
				"updated_at":    bson.M{"bsonType": "date"},
			},
		},
	}
}

func formsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "project_id", "version", "access", "active"},
			"properties": bson.M{
				"name":          bson.M{"bsonType": "string"},
				"name_ci":       bson.M{"bsonType": "string"},
				"description":   bson.M{"bsonType": "string"},
				"fields":        bson.M{"bsonType": bson.A{"array", "null"}, "items": fieldSchema()},
				"version":       bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1},
				"project_id":    bson.M{"bsonType": "objectId"},
				"access":        bson.M{"enum": accessEnum()},
				"restricted_to": bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
				"active":        bson.M{"bsonType": "bool"},
				"created_at":    bson.M{"bsonType": "date"},
				"updated_at":    bson.M{"bsonType": "date"},
			},
		},
	}
}

func formVersionsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"form_id", "version"},
			"properties": bson.M{
				"form_id":    bson.M{"bsonType": "objectId"},
				"version":    bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1},
				"fields":     bson.M{"bsonType": bson.A{"array", "null"}, "items": fieldSchema()},
				"created_at": bson.M{"bsonType": "date"},
			},
		},
	}
}
