// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Errors are aggregated so every problem is visible and startup can fail fast.

Record collections (records-<form>-v<n>) are not handled here; they only
need the default _id index, which MongoDB creates with the collection.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureProjects(ctx, db); err != nil {
		problems = append(problems, "projects: "+err.Error())
	}
	if err := ensureForms(ctx, db); err != nil {
		problems = append(problems, "forms: "+err.Error())
	}
	if err := ensureFormVersions(ctx, db); err != nil {
		problems = append(problems, "form_versions: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolVal(b *bool) bool {
	return b != nil && *b
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// listExisting returns the collection's indexes keyed by key signature.
// A collection that does not exist yet has none.
func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	existing := listExisting(ctx, coll)

	for _, m := range models {
		var name string
		var unique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			unique = m.Options.Unique
		}
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()
		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", boolVal(unique)))

		if ex, ok := existing[sig]; ok {
			if boolVal(unique) == boolVal(ex.Unique) && (name == "" || ex.Name == name) {
				log.Debug("reusing existing index")
				continue
			}
			// Same keys with a different name or uniqueness: drop and recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				log.Warn("drop existing index failed", zap.String("existing", ex.Name), zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), name, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) && boolVal(unique) {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), name))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			}
			log.Warn("index ensure failed", zap.Duration("took", time.Since(start)), zap.Error(err))
			continue
		}
		log.Info("index ensured", zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureProjects(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("projects")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Project names are unique (case/diacritics folded).
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_projects_nameci"),
		},
		// Owner listings and stats, sorted by name.
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_projects_owner_nameci__id"),
		},
	})
}

func ensureForms(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("forms")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Form names are unique within a project; the prefix also serves
		// per-project listings sorted by name.
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_forms_project_nameci"),
		},
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "active", Value: 1}},
			Options: options.Index().SetName("idx_forms_project_active"),
		},
	})
}

func ensureFormVersions(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("form_versions")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One snapshot per (form, version); concurrent edits collide here.
		{
			Keys:    bson.D{{Key: "form_id", Value: 1}, {Key: "version", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_formversions_form_version"),
		},
	})
}
