package testutil

import (
	"context"
	"testing"

	"github.com/dalemusser/formhub/internal/app/store/substrate"
	"github.com/dalemusser/formhub/internal/app/system/formsvc"
	"github.com/dalemusser/formhub/internal/app/system/registry"
	"github.com/dalemusser/formhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Fixtures wires a formsvc.Service over in-memory repositories and the
// memory substrate, and creates test data through it.
type Fixtures struct {
	t *testing.T

	Forms     *MemForms
	Projects  *MemProjects
	Substrate *substrate.Memory
	Registry  *registry.Registry
	Service   *formsvc.Service
}

// NewFixtures creates an empty, fully wired service for one test.
func NewFixtures(t *testing.T) *Fixtures {
	t.Helper()
	f := &Fixtures{
		t:         t,
		Forms:     NewMemForms(),
		Projects:  NewMemProjects(),
		Substrate: substrate.NewMemory(),
	}
	f.Registry = registry.New(f.Substrate, nil)
	f.Service = formsvc.New(formsvc.Deps{
		Forms:    f.Forms,
		Projects: f.Projects,
		Registry: f.Registry,
	})
	return f
}

// CreateProject creates an active project owned by owner.
func (f *Fixtures) CreateProject(ctx context.Context, owner primitive.ObjectID, name string, access models.AccessMode, restrictedTo ...primitive.ObjectID) models.Project {
	f.t.Helper()
	p, err := f.Service.CreateProject(ctx, owner, formsvc.ProjectInput{
		Name:         name,
		Access:       string(access),
		RestrictedTo: restrictedTo,
	})
	if err != nil {
		f.t.Fatalf("CreateProject(%q) failed: %v", name, err)
	}
	return p
}

// CreateForm creates a form in project (owned by owner) with a bound
// version 1.
func (f *Fixtures) CreateForm(ctx context.Context, owner, projectID primitive.ObjectID, name string, access models.AccessMode, fields []models.Field, restrictedTo ...primitive.ObjectID) models.Form {
	f.t.Helper()
	form, err := f.Service.CreateForm(ctx, owner, projectID, formsvc.FormInput{
		Name:         name,
		Fields:       fields,
		Access:       string(access),
		RestrictedTo: restrictedTo,
	})
	if err != nil {
		f.t.Fatalf("CreateForm(%q) failed: %v", name, err)
	}
	return form
}

// NameAgeFields is a small field list used across tests: a required text
// "name" and an optional number "age".
func NameAgeFields() []models.Field {
	return []models.Field{
		{Name: "name", Kind: models.KindText, Required: true},
		{Name: "age", Kind: models.KindNumber},
	}
}
