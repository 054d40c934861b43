package formstore_test

import (
	"errors"
	"testing"

	formstore "github.com/dalemusser/formhub/internal/app/store/forms"
	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/app/system/indexes"
	"github.com/dalemusser/formhub/internal/domain/models"
	"github.com/dalemusser/formhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func setup(t *testing.T) *formstore.Store {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	return formstore.New(db)
}

func nameField() []models.Field {
	return []models.Field{{Name: "name", Kind: models.KindText, Required: true}}
}

func TestStore_Create(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Form{
		Name:         "Survey",
		ProjectID:    primitive.NewObjectID(),
		Fields:       nameField(),
		Access:       models.AccessPublic,
		RestrictedTo: []primitive.ObjectID{primitive.NewObjectID()},
		Active:       true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.NameCI != "survey" {
		t.Errorf("NameCI: got %q, want %q", created.NameCI, "survey")
	}
	if created.Version != 1 {
		t.Errorf("Version: got %d, want 1", created.Version)
	}
	if len(created.RestrictedTo) != 0 {
		t.Error("expected RestrictedTo to be cleared for a public form")
	}

	versions, err := store.Versions(ctx, created.ID)
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	if len(versions) != 1 || versions[0].Version != 1 || len(versions[0].Fields) != 1 {
		t.Errorf("expected one version-1 snapshot, got %+v", versions)
	}
}

func TestStore_Create_DefaultsToPrivate(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Form{Name: "f", ProjectID: primitive.NewObjectID()})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Access != models.AccessPrivate {
		t.Errorf("Access: got %q, want private", created.Access)
	}
	if created.Fields == nil {
		t.Error("expected Fields to be an empty list, not nil")
	}
}

func TestStore_Create_InvalidName(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, name := range []string{"", "has space", "dot.name", "semi;colon"} {
		_, err := store.Create(ctx, models.Form{Name: name, ProjectID: primitive.NewObjectID()})
		var ve *apperr.ValidationError
		if !errors.As(err, &ve) || ve.Field != "name" {
			t.Errorf("name %q: expected name ValidationError, got %v", name, err)
		}
	}
}

func TestStore_Create_DuplicateNameInProject(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	projectID := primitive.NewObjectID()
	if _, err := store.Create(ctx, models.Form{Name: "Survey", ProjectID: projectID}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := store.Create(ctx, models.Form{Name: "SURVEY", ProjectID: projectID})
	var de *apperr.DuplicateError
	if !errors.As(err, &de) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if de.Error() != "'name' is already taken" {
		t.Errorf("message: got %q", de.Error())
	}

	if _, err := store.Create(ctx, models.Form{Name: "Survey", ProjectID: primitive.NewObjectID()}); err != nil {
		t.Errorf("same name in another project should succeed: %v", err)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.GetByID(ctx, primitive.NewObjectID())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		t.Error("driver error should not leak")
	}
}

func TestStore_AddVersion(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f, err := store.Create(ctx, models.Form{Name: "f", ProjectID: primitive.NewObjectID(), Fields: nameField()})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	fields := append(nameField(), models.Field{Name: "age", Kind: models.KindNumber})
	updated, err := store.AddVersion(ctx, f.ID, 1, fields)
	if err != nil {
		t.Fatalf("AddVersion failed: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Version: got %d, want 2", updated.Version)
	}
	if len(updated.Fields) != 2 {
		t.Errorf("Fields: got %d, want 2", len(updated.Fields))
	}

	// A stale edit from version 1 collides with the existing version 2.
	_, err = store.AddVersion(ctx, f.ID, 1, nameField())
	var de *apperr.DuplicateError
	if !errors.As(err, &de) || de.Key != "version" {
		t.Errorf("expected version DuplicateError, got %v", err)
	}

	versions, err := store.Versions(ctx, f.ID)
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	if len(versions) != 2 || versions[0].Version != 1 || versions[1].Version != 2 {
		t.Errorf("unexpected versions: %+v", versions)
	}
	if len(versions[0].Fields) != 1 {
		t.Error("version 1 snapshot must keep its original fields")
	}

	_, err = store.AddVersion(ctx, primitive.NewObjectID(), 1, nameField())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown form, got %v", err)
	}
}

func TestStore_UpdateMeta(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	projectID := primitive.NewObjectID()
	f, err := store.Create(ctx, models.Form{Name: "f", ProjectID: projectID, Fields: nameField()})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	other, err := store.Create(ctx, models.Form{Name: "taken", ProjectID: projectID})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	user := primitive.NewObjectID()
	f.Name = "renamed"
	f.Description = "desc"
	f.Access = models.AccessRestricted
	f.RestrictedTo = []primitive.ObjectID{user}
	updated, err := store.UpdateMeta(ctx, f.ID, f)
	if err != nil {
		t.Fatalf("UpdateMeta failed: %v", err)
	}
	if updated.Name != "renamed" || updated.NameCI != "renamed" || updated.Description != "desc" {
		t.Errorf("unexpected metadata: %+v", updated)
	}
	if !updated.IsRestrictedTo(user) {
		t.Error("expected user in RestrictedTo")
	}
	if updated.Version != 1 {
		t.Error("metadata edits must not bump the version")
	}

	updated.Access = models.AccessPrivate
	updated, err = store.UpdateMeta(ctx, f.ID, updated)
	if err != nil {
		t.Fatalf("UpdateMeta failed: %v", err)
	}
	if len(updated.RestrictedTo) != 0 {
		t.Error("expected RestrictedTo to be cleared")
	}

	updated.Name = other.Name
	_, err = store.UpdateMeta(ctx, f.ID, updated)
	var de *apperr.DuplicateError
	if !errors.As(err, &de) {
		t.Errorf("expected DuplicateError, got %v", err)
	}
}

func TestStore_ProjectOperations(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	projectID := primitive.NewObjectID()
	for _, name := range []string{"b", "a", "c"} {
		if _, err := store.Create(ctx, models.Form{Name: name, ProjectID: projectID, Active: true}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if _, err := store.Create(ctx, models.Form{Name: "x", ProjectID: primitive.NewObjectID(), Active: true}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	list, err := store.ListByProject(ctx, projectID)
	if err != nil {
		t.Fatalf("ListByProject failed: %v", err)
	}
	if len(list) != 3 || list[0].Name != "a" || list[2].Name != "c" {
		t.Errorf("unexpected listing: %+v", list)
	}

	n, err := store.SetActiveByProject(ctx, projectID, false)
	if err != nil {
		t.Fatalf("SetActiveByProject failed: %v", err)
	}
	if n != 3 {
		t.Errorf("modified: got %d, want 3", n)
	}

	total, inactive, err := store.CountByProjects(ctx, []primitive.ObjectID{projectID})
	if err != nil {
		t.Fatalf("CountByProjects failed: %v", err)
	}
	if total != 3 || inactive != 3 {
		t.Errorf("counts: got %d/%d, want 3/3", total, inactive)
	}

	seen := 0
	if err := store.Each(ctx, func(models.Form) error { seen++; return nil }); err != nil {
		t.Fatalf("Each failed: %v", err)
	}
	if seen != 4 {
		t.Errorf("Each: saw %d forms, want 4", seen)
	}

	deleted, err := store.DeleteByProject(ctx, projectID)
	if err != nil {
		t.Fatalf("DeleteByProject failed: %v", err)
	}
	if len(deleted) != 3 {
		t.Errorf("deleted: got %d, want 3", len(deleted))
	}
	for _, f := range deleted {
		vs, err := store.Versions(ctx, f.ID)
		if err != nil {
			t.Fatalf("Versions failed: %v", err)
		}
		if len(vs) != 0 {
			t.Error("expected snapshots to be deleted with the form")
		}
	}
}

func TestStore_Delete(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f, err := store.Create(ctx, models.Form{Name: "f", ProjectID: primitive.NewObjectID()})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	deleted, err := store.Delete(ctx, f.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted.ID != f.ID {
		t.Error("expected the deleted form to be returned")
	}
	if _, err := store.Delete(ctx, f.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}
