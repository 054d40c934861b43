package formsvc_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/dalemusser/formhub/internal/app/policy/formpolicy"
	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/app/system/formsvc"
	"github.com/dalemusser/formhub/internal/app/system/registry"
	"github.com/dalemusser/formhub/internal/domain/models"
	"github.com/dalemusser/formhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func intp(v int) *int { return &v }

func TestCreateForm_BindsVersionOne(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner := primitive.NewObjectID()
	p := fx.CreateProject(ctx, owner, "census", models.AccessPublic)

	f := fx.CreateForm(ctx, owner, p.ID, "intake", models.AccessPublic, testutil.NameAgeFields())
	assert.Equal(t, 1, f.Version)
	assert.True(t, f.Active)

	b, err := fx.Service.ResolveBinding(ctx, f.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Version)
	assert.Equal(t, registry.StoreID(f.ID, 1), b.PhysicalStoreID)
	assert.True(t, fx.Substrate.Exists(b.PhysicalStoreID))
}

func TestCreateForm_Errors(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner := primitive.NewObjectID()
	p := fx.CreateProject(ctx, owner, "census", models.AccessPublic)

	_, err := fx.Service.CreateForm(ctx, primitive.NewObjectID(), p.ID, formsvc.FormInput{Name: "x"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = fx.Service.CreateForm(ctx, owner, p.ID, formsvc.FormInput{
		Name:   "bad",
		Fields: []models.Field{{Name: "", Kind: models.KindText}},
	})
	assert.Equal(t, apperr.KindSchema, apperr.KindOf(err))
	assert.Zero(t, fx.Registry.Len(), "a rejected field list binds nothing")

	_, err = fx.Service.CreateForm(ctx, owner, p.ID, formsvc.FormInput{Name: "x", Access: "secret"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	fx.CreateForm(ctx, owner, p.ID, "dup", models.AccessPrivate, nil)
	_, err = fx.Service.CreateForm(ctx, owner, p.ID, formsvc.FormInput{Name: "DUP"})
	var de *apperr.DuplicateError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "'name' is already taken", de.Error())

	_, err = fx.Service.CreateForm(ctx, owner, primitive.NewObjectID(), formsvc.FormInput{Name: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// Scenario A: numeric coercion and required fields through the service.
func TestRecords_NumberCoercion(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner := primitive.NewObjectID()
	p := fx.CreateProject(ctx, owner, "p", models.AccessPublic)
	f := fx.CreateForm(ctx, owner, p.ID, "ages", models.AccessPublic,
		[]models.Field{{Name: "age", Kind: models.KindNumber, Required: true}})

	rec, err := fx.Service.CreateRecord(ctx, primitive.NilObjectID, f.ID, nil, map[string]any{"age": "17"})
	require.NoError(t, err)
	assert.Equal(t, models.NumberValue(17), rec.Values["age"])

	_, err = fx.Service.CreateRecord(ctx, primitive.NilObjectID, f.ID, nil, map[string]any{})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "age", ve.Field)
}

// Scenario B: editing fields creates version 2 with a separate store.
func TestUpdateForm_NewVersionIsolatesRecords(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner := primitive.NewObjectID()
	p := fx.CreateProject(ctx, owner, "p", models.AccessPublic)
	x := models.Field{Name: "x", Kind: models.KindText}
	y := models.Field{Name: "y", Kind: models.KindText}
	f := fx.CreateForm(ctx, owner, p.ID, "f", models.AccessPrivate, []models.Field{x})

	rec, err := fx.Service.CreateRecord(ctx, owner, f.ID, nil, map[string]any{"x": "one"})
	require.NoError(t, err)

	fields := []models.Field{x, y}
	updated, err := fx.Service.UpdateForm(ctx, owner, f.ID, formsvc.FormPatch{Fields: &fields})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	got, err := fx.Service.GetRecord(ctx, owner, f.ID, intp(1), rec.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "one", got.Values["x"].Str)
	assert.Equal(t, 1, got.Version)

	cur, err := fx.Service.ListRecords(ctx, owner, f.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, cur)

	v1, err := fx.Service.ListRecords(ctx, owner, f.ID, intp(1))
	require.NoError(t, err)
	assert.Len(t, v1, 1)

	// resolve with no version follows the form's version field.
	b, err := fx.Service.ResolveBinding(ctx, f.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, updated.Version, b.Version)
	assert.Equal(t, []string{"x", "y"}, b.Schema.Names())

	versions, err := fx.Service.FormVersions(ctx, owner, f.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Len(t, versions[0].Fields, 1)
}

func TestUpdateForm_MetadataAndUnchangedFieldsKeepVersion(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner := primitive.NewObjectID()
	member := primitive.NewObjectID()
	p := fx.CreateProject(ctx, owner, "p", models.AccessPublic)
	f := fx.CreateForm(ctx, owner, p.ID, "f", models.AccessPrivate, testutil.NameAgeFields())

	name, access := "renamed", "restrict"
	fields := testutil.NameAgeFields()
	members := []primitive.ObjectID{member}
	updated, err := fx.Service.UpdateForm(ctx, owner, f.ID, formsvc.FormPatch{
		Name:         &name,
		Access:       &access,
		RestrictedTo: &members,
		Fields:       &fields,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Version)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, models.AccessRestricted, updated.Access)
	assert.True(t, updated.IsRestrictedTo(member))

	public := "public"
	updated, err = fx.Service.UpdateForm(ctx, owner, f.ID, formsvc.FormPatch{Access: &public})
	require.NoError(t, err)
	assert.Empty(t, updated.RestrictedTo, "restricted list is cleared when access is not restricted")

	_, err = fx.Service.UpdateForm(ctx, member, f.ID, formsvc.FormPatch{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	bad := []models.Field{{Name: "s", Kind: models.KindSelect}}
	_, err = fx.Service.UpdateForm(ctx, owner, f.ID, formsvc.FormPatch{Name: &name, Fields: &bad})
	assert.Equal(t, apperr.KindSchema, apperr.KindOf(err))
	assert.Equal(t, []int{1}, fx.Registry.Versions(f.ID))
}

func TestFormDescription_Sanitized(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner := primitive.NewObjectID()
	p := fx.CreateProject(ctx, owner, "p", models.AccessPublic)

	f, err := fx.Service.CreateForm(ctx, owner, p.ID, formsvc.FormInput{
		Name:        "intake",
		Description: `<b>hi</b><script>alert(1)</script>`,
	})
	require.NoError(t, err)
	assert.Equal(t, "<b>hi</b>", f.Description)

	desc := `<a href="javascript:alert(1)">x</a>`
	f, err = fx.Service.UpdateForm(ctx, owner, f.ID, formsvc.FormPatch{Description: &desc})
	require.NoError(t, err)
	assert.NotContains(t, f.Description, "javascript")
}

// failingVersions refuses every new version.
type failingVersions struct {
	*testutil.MemForms
}

func (failingVersions) AddVersion(context.Context, primitive.ObjectID, int, []models.Field) (models.Form, error) {
	return models.Form{}, &apperr.DuplicateError{Key: "version"}
}

func TestUpdateForm_FailedVersionKeepsMetadata(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner := primitive.NewObjectID()
	p := fx.CreateProject(ctx, owner, "p", models.AccessPublic)
	f := fx.CreateForm(ctx, owner, p.ID, "f", models.AccessPrivate, testutil.NameAgeFields())
	fx.CreateForm(ctx, owner, p.ID, "taken", models.AccessPrivate, nil)

	svc := formsvc.New(formsvc.Deps{
		Forms:    failingVersions{fx.Forms},
		Projects: fx.Projects,
		Registry: fx.Registry,
	})
	name, public := "renamed", "public"
	fields := []models.Field{{Name: "other", Kind: models.KindText}}
	_, err := svc.UpdateForm(ctx, owner, f.ID, formsvc.FormPatch{Name: &name, Access: &public, Fields: &fields})
	assert.Equal(t, apperr.KindDuplicate, apperr.KindOf(err))

	got, err := fx.Service.GetForm(ctx, owner, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "f", got.Name)
	assert.Equal(t, models.AccessPrivate, got.Access)
	assert.Equal(t, 1, got.Version)

	// a name clash is caught before the version step.
	taken := "TAKEN"
	_, err = fx.Service.UpdateForm(ctx, owner, f.ID, formsvc.FormPatch{Name: &taken, Fields: &fields})
	var de *apperr.DuplicateError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "name", de.Key)
	bad := "no spaces"
	_, err = fx.Service.UpdateForm(ctx, owner, f.ID, formsvc.FormPatch{Name: &bad, Fields: &fields})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, []int{1}, fx.Registry.Versions(f.ID))
}

// Scenario C: restricted forms admit the owner and listed users only.
func TestCanAccess_Restricted(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	u1, u2, u3 := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	p := fx.CreateProject(ctx, u1, "p", models.AccessPublic)
	f := fx.CreateForm(ctx, u1, p.ID, "f", models.AccessRestricted, testutil.NameAgeFields(), u2)

	assert.True(t, fx.Service.CanAccess(u1, p, f, formpolicy.Write))
	assert.True(t, fx.Service.CanAccess(u2, p, f, formpolicy.Write))
	assert.False(t, fx.Service.CanAccess(u3, p, f, formpolicy.Write))

	_, err := fx.Service.CreateRecord(ctx, u2, f.ID, nil, map[string]any{"name": "ok"})
	assert.NoError(t, err)

	_, err = fx.Service.CreateRecord(ctx, u3, f.ID, nil, map[string]any{"name": "no"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestRecords_ListIsOwnerOnly(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner := primitive.NewObjectID()
	p := fx.CreateProject(ctx, owner, "p", models.AccessPublic)
	f := fx.CreateForm(ctx, owner, p.ID, "f", models.AccessPublic, testutil.NameAgeFields())

	visitor := primitive.NewObjectID()
	rec, err := fx.Service.CreateRecord(ctx, visitor, f.ID, nil, map[string]any{"name": "Alice"})
	require.NoError(t, err)

	_, err = fx.Service.GetRecord(ctx, visitor, f.ID, nil, rec.ID.Hex())
	assert.NoError(t, err)

	_, err = fx.Service.ListRecords(ctx, visitor, f.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = fx.Service.ExportRecords(ctx, visitor, f.ID, nil, "csv")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	recs, err := fx.Service.ListRecords(ctx, owner, f.ID, nil)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRecords_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner := primitive.NewObjectID()
	p := fx.CreateProject(ctx, owner, "p", models.AccessPublic)
	f := fx.CreateForm(ctx, owner, p.ID, "f", models.AccessPrivate, testutil.NameAgeFields())

	rec, err := fx.Service.CreateRecord(ctx, owner, f.ID, nil, map[string]any{"name": "Alice", "age": 30})
	require.NoError(t, err)

	upd, err := fx.Service.UpdateRecord(ctx, owner, f.ID, nil, rec.ID.Hex(), map[string]any{"age": "31"})
	require.NoError(t, err)
	assert.Equal(t, models.NumberValue(31), upd.Values["age"])

	stranger := primitive.NewObjectID()
	_, err = fx.Service.UpdateRecord(ctx, stranger, f.ID, nil, rec.ID.Hex(), map[string]any{"age": 1})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = fx.Service.DeleteRecord(ctx, stranger, f.ID, nil, rec.ID.Hex())
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = fx.Service.DeleteRecord(ctx, owner, f.ID, nil, rec.ID.Hex())
	require.NoError(t, err)
	_, err = fx.Service.GetRecord(ctx, owner, f.ID, nil, rec.ID.Hex())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = fx.Service.GetRecord(ctx, owner, f.ID, intp(9), rec.ID.Hex())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecords_InactiveFormDeniesOthers(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner := primitive.NewObjectID()
	p := fx.CreateProject(ctx, owner, "p", models.AccessPublic)
	f := fx.CreateForm(ctx, owner, p.ID, "f", models.AccessPublic, testutil.NameAgeFields())

	_, err := fx.Service.SetProjectActive(ctx, owner, p.ID, false)
	require.NoError(t, err)

	_, err = fx.Service.CreateRecord(ctx, primitive.NilObjectID, f.ID, nil, map[string]any{"name": "x"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = fx.Service.CreateRecord(ctx, owner, f.ID, nil, map[string]any{"name": "x"})
	assert.NoError(t, err, "owners keep access to inactive forms")

	got, err := fx.Service.GetForm(ctx, owner, f.ID)
	require.NoError(t, err)
	assert.False(t, got.Active, "deactivating the project cascades to its forms")
}

// Scenario D through the service, plus the unsupported-format path.
func TestExportRecords(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner := primitive.NewObjectID()
	p := fx.CreateProject(ctx, owner, "p", models.AccessPublic)
	f := fx.CreateForm(ctx, owner, p.ID, "people", models.AccessPrivate,
		[]models.Field{{Kind: models.KindHeader, Label: "Hi"}, {Name: "name", Kind: models.KindText}})

	for _, n := range []string{"Alice", "Bob"} {
		_, err := fx.Service.CreateRecord(ctx, owner, f.ID, nil, map[string]any{"name": n})
		require.NoError(t, err)
	}

	out, err := fx.Service.ExportRecords(ctx, owner, f.ID, nil, "csv")
	require.NoError(t, err)
	assert.Equal(t, "people_v1.csv", out.FileName)
	assert.Equal(t, 2, out.Records)

	rows, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(out.Body, []byte{0xEF, 0xBB, 0xBF}))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"name"}, {"Alice"}, {"Bob"}}, rows)

	_, err = fx.Service.ExportRecords(ctx, owner, f.ID, nil, "pdf")
	var ee *apperr.ExportError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "pdf", ee.Format)

	// The format is checked before anything else, even for strangers.
	_, err = fx.Service.ExportRecords(ctx, primitive.NewObjectID(), f.ID, nil, "pdf")
	assert.Equal(t, apperr.KindExport, apperr.KindOf(err))
}

func TestExportRecords_Limit(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	svc := formsvc.New(formsvc.Deps{
		Forms:            fx.Forms,
		Projects:         fx.Projects,
		Registry:         fx.Registry,
		ExportMaxRecords: 1,
	})
	owner := primitive.NewObjectID()
	p := fx.CreateProject(ctx, owner, "p", models.AccessPublic)
	f := fx.CreateForm(ctx, owner, p.ID, "f", models.AccessPrivate, testutil.NameAgeFields())
	for _, n := range []string{"a", "b"} {
		_, err := svc.CreateRecord(ctx, owner, f.ID, nil, map[string]any{"name": n})
		require.NoError(t, err)
	}

	_, err := svc.ExportRecords(ctx, owner, f.ID, nil, "json")
	assert.Equal(t, apperr.KindExport, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "limit")
}

func TestReleaseVersion_Idempotent(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner := primitive.NewObjectID()
	p := fx.CreateProject(ctx, owner, "p", models.AccessPublic)
	f := fx.CreateForm(ctx, owner, p.ID, "f", models.AccessPrivate, testutil.NameAgeFields())

	require.NoError(t, fx.Service.ReleaseVersion(ctx, owner, f.ID, 1))
	require.NoError(t, fx.Service.ReleaseVersion(ctx, owner, f.ID, 1))

	_, err := fx.Service.ResolveBinding(ctx, f.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = fx.Service.ReleaseVersion(ctx, primitive.NewObjectID(), f.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestDeleteForm_DropsEveryVersion(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner := primitive.NewObjectID()
	p := fx.CreateProject(ctx, owner, "p", models.AccessPublic)
	f := fx.CreateForm(ctx, owner, p.ID, "f", models.AccessPrivate, testutil.NameAgeFields())

	_, err := fx.Service.CreateFormVersion(ctx, owner, f.ID, []models.Field{{Name: "z", Kind: models.KindText}})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, fx.Registry.Versions(f.ID))

	_, err = fx.Service.DeleteForm(ctx, owner, f.ID)
	require.NoError(t, err)

	assert.Empty(t, fx.Registry.Versions(f.ID))
	assert.False(t, fx.Substrate.Exists(registry.StoreID(f.ID, 1)))
	assert.False(t, fx.Substrate.Exists(registry.StoreID(f.ID, 2)))

	_, err = fx.Service.GetForm(ctx, owner, f.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListForms_Visibility(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner, member, stranger := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	p := fx.CreateProject(ctx, owner, "p", models.AccessPublic)
	fx.CreateForm(ctx, owner, p.ID, "a-public", models.AccessPublic, nil)
	fx.CreateForm(ctx, owner, p.ID, "b-private", models.AccessPrivate, nil)
	fx.CreateForm(ctx, owner, p.ID, "c-restricted", models.AccessRestricted, nil, member)

	all, err := fx.Service.ListForms(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := fx.Service.ListForms(ctx, member, p.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "a-public", mine[0].Name)
	assert.Equal(t, "c-restricted", mine[1].Name)

	theirs, err := fx.Service.ListForms(ctx, stranger, p.ID)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)

	private := fx.CreateProject(ctx, owner, "hidden", models.AccessPrivate)
	_, err = fx.Service.ListForms(ctx, stranger, private.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestProjects_Lifecycle(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner, other := primitive.NewObjectID(), primitive.NewObjectID()

	_, err := fx.Service.CreateProject(ctx, primitive.NilObjectID, formsvc.ProjectInput{Name: "anon"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	p := fx.CreateProject(ctx, owner, "census", "")
	assert.Equal(t, models.AccessPublic, p.Access)
	assert.True(t, p.Active)

	_, err = fx.Service.CreateProject(ctx, other, formsvc.ProjectInput{Name: "Census"})
	var de *apperr.DuplicateError
	assert.ErrorAs(t, err, &de)

	desc := "updated"
	up, err := fx.Service.UpdateProject(ctx, owner, p.ID, formsvc.ProjectPatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "updated", up.Description)

	_, err = fx.Service.UpdateProject(ctx, other, p.ID, formsvc.ProjectPatch{Description: &desc})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	got, err := fx.Service.GetProject(ctx, other, p.ID)
	require.NoError(t, err, "public projects are visible")
	assert.Equal(t, p.ID, got.ID)

	list, err := fx.Service.ListProjects(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = fx.Service.ListProjects(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCloneProject(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner, cloner := primitive.NewObjectID(), primitive.NewObjectID()
	src := fx.CreateProject(ctx, owner, "src", models.AccessPublic)
	f := fx.CreateForm(ctx, owner, src.ID, "survey", models.AccessPublic, testutil.NameAgeFields())

	// Give the source form a record and a second version.
	_, err := fx.Service.CreateRecord(ctx, owner, f.ID, nil, map[string]any{"name": "Alice"})
	require.NoError(t, err)
	_, err = fx.Service.CreateFormVersion(ctx, owner, f.ID, []models.Field{{Name: "name", Kind: models.KindText}})
	require.NoError(t, err)

	clone, err := fx.Service.CloneProject(ctx, cloner, src.ID, formsvc.ProjectInput{Name: "copy"})
	require.NoError(t, err)
	assert.Equal(t, cloner, clone.OwnerID)

	forms, err := fx.Service.ListForms(ctx, cloner, clone.ID)
	require.NoError(t, err)
	require.Len(t, forms, 1)
	copied := forms[0]
	assert.Equal(t, "survey", copied.Name)
	assert.Equal(t, 1, copied.Version)
	assert.Len(t, copied.Fields, 1, "the copy starts from the current fields")

	recs, err := fx.Service.ListRecords(ctx, cloner, copied.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, recs, "clones start with an empty store")

	hidden := fx.CreateProject(ctx, owner, "hidden", models.AccessPrivate)
	_, err = fx.Service.CloneProject(ctx, cloner, hidden.ID, formsvc.ProjectInput{Name: "nope"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestDeleteProject(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner := primitive.NewObjectID()
	p := fx.CreateProject(ctx, owner, "p", models.AccessPublic)
	f := fx.CreateForm(ctx, owner, p.ID, "f", models.AccessPublic, testutil.NameAgeFields())

	_, err := fx.Service.DeleteProject(ctx, primitive.NewObjectID(), p.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = fx.Service.DeleteProject(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Zero(t, fx.Registry.Len())
	assert.False(t, fx.Substrate.Exists(registry.StoreID(f.ID, 1)))

	_, err = fx.Service.GetProject(ctx, owner, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner := primitive.NewObjectID()
	a := fx.CreateProject(ctx, owner, "a", models.AccessPublic)
	b := fx.CreateProject(ctx, owner, "b", models.AccessPublic)
	fx.CreateForm(ctx, owner, a.ID, "f1", models.AccessPublic, nil)
	fx.CreateForm(ctx, owner, b.ID, "f2", models.AccessPublic, nil)
	fx.CreateForm(ctx, owner, b.ID, "f3", models.AccessPublic, nil)

	_, err := fx.Service.SetProjectActive(ctx, owner, b.ID, false)
	require.NoError(t, err)

	st, err := fx.Service.Stats(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, formsvc.Counts{Total: 2, Inactive: 1}, st.Projects)
	assert.Equal(t, formsvc.Counts{Total: 3, Inactive: 2}, st.Forms)
}

func TestRehydrate_RestoresBindingsAndRecords(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixtures(t)
	owner := primitive.NewObjectID()
	p := fx.CreateProject(ctx, owner, "p", models.AccessPublic)
	f := fx.CreateForm(ctx, owner, p.ID, "f", models.AccessPrivate, testutil.NameAgeFields())
	rec, err := fx.Service.CreateRecord(ctx, owner, f.ID, nil, map[string]any{"name": "Alice"})
	require.NoError(t, err)
	_, err = fx.Service.CreateFormVersion(ctx, owner, f.ID, testutil.NameAgeFields()[:1])
	require.NoError(t, err)

	// A new process: same metadata and substrate, empty registry.
	reg := registry.New(fx.Substrate, nil)
	svc := formsvc.New(formsvc.Deps{Forms: fx.Forms, Projects: fx.Projects, Registry: reg})
	n, err := svc.Rehydrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{1, 2}, reg.Versions(f.ID))

	got, err := svc.GetRecord(ctx, owner, f.ID, intp(1), rec.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Values["name"].Str)

	b, err := svc.ResolveBinding(ctx, f.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Version)
}
