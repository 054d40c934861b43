package recordstore_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	recordstore "github.com/dalemusser/formhub/internal/app/store/records"
	"github.com/dalemusser/formhub/internal/app/store/substrate"
	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/app/system/registry"
	"github.com/dalemusser/formhub/internal/app/system/schema"
	"github.com/dalemusser/formhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func bind(t *testing.T, reg *registry.Registry, formID primitive.ObjectID, version int, fields []models.Field) *registry.Binding {
	t.Helper()
	d, m, err := schema.Compile(fields)
	require.NoError(t, err)
	b, err := reg.Bind(context.Background(), formID, version, d, m)
	require.NoError(t, err)
	return b
}

func setup(t *testing.T, fields []models.Field) (*recordstore.Store, *registry.Binding) {
	t.Helper()
	reg := registry.New(substrate.NewMemory(), nil)
	return recordstore.New(), bind(t, reg, primitive.NewObjectID(), 1, fields)
}

func requireInvalid(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, field, ve.Field)
}

func TestCreate_NumberCoercion(t *testing.T) {
	store, b := setup(t, []models.Field{{Name: "age", Kind: models.KindNumber, Required: true}})
	ctx := context.Background()

	rec, err := store.Create(ctx, b, map[string]any{"age": "17"})
	require.NoError(t, err)
	assert.Equal(t, models.NumberValue(17), rec.Values["age"])

	_, err = store.Create(ctx, b, map[string]any{})
	requireInvalid(t, err, "age")

	_, err = store.Create(ctx, b, map[string]any{"age": "seventeen"})
	requireInvalid(t, err, "age")

	_, err = store.Create(ctx, b, map[string]any{"age": json.Number("21.5")})
	require.NoError(t, err)
}

func TestCreate_FirstFailureWins(t *testing.T) {
	store, b := setup(t, []models.Field{
		{Name: "a", Kind: models.KindText, Required: true},
		{Name: "b", Kind: models.KindNumber, Required: true},
	})
	_, err := store.Create(context.Background(), b, map[string]any{"b": "nope"})
	requireInvalid(t, err, "a")
}

func TestCreate_Enumerated(t *testing.T) {
	store, b := setup(t, []models.Field{
		{Name: "colour", Kind: models.KindSelect, Options: []models.Option{{Value: "red"}, {Value: "blue"}}},
		{Name: "size", Kind: models.KindRadioGroup, Required: true, Options: []models.Option{{Value: "s"}, {Value: "m"}}},
	})
	ctx := context.Background()

	rec, err := store.Create(ctx, b, map[string]any{"size": "m"})
	require.NoError(t, err)
	assert.Equal(t, models.StringValue(""), rec.Values["colour"])

	_, err = store.Create(ctx, b, map[string]any{"size": "xl"})
	requireInvalid(t, err, "size")

	_, err = store.Create(ctx, b, map[string]any{"size": ""})
	requireInvalid(t, err, "size")

	_, err = store.Create(ctx, b, map[string]any{"colour": "green", "size": "s"})
	requireInvalid(t, err, "colour")
}

func TestCreate_RoundTrip(t *testing.T) {
	store, b := setup(t, []models.Field{
		{Kind: models.KindHeader, Label: "Welcome"},
		{Name: "name", Kind: models.KindText, Required: true},
		{Name: "age", Kind: models.KindNumber},
		{Name: "photo", Kind: models.KindFile},
		{Name: "pick", Kind: models.KindAutocomplete, Options: []models.Option{{Value: "x"}}},
	})
	ctx := context.Background()

	rec, err := store.Create(ctx, b, map[string]any{
		"name":    "Alice",
		"age":     float64(30),
		"photo":   "aGVsbG8=",
		"pick":    "x",
		"ignored": "dropped",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)
	assert.Equal(t, b.FormID, rec.FormID)
	assert.NotContains(t, rec.Values, "ignored")

	got, err := store.Get(ctx, b, rec.ID.Hex())
	require.NoError(t, err)
	require.Len(t, got.Values, 4)
	for k, v := range rec.Values {
		assert.True(t, v.Equal(got.Values[k]), k)
	}
	assert.Equal(t, []byte("hello"), got.Values["photo"].Bytes)
}

func TestCreate_BadBytes(t *testing.T) {
	store, b := setup(t, []models.Field{{Name: "photo", Kind: models.KindFile}})
	_, err := store.Create(context.Background(), b, map[string]any{"photo": "%%%"})
	requireInvalid(t, err, "photo")
}

func TestGet_NotFound(t *testing.T) {
	store, b := setup(t, []models.Field{{Name: "x", Kind: models.KindText}})
	ctx := context.Background()

	_, err := store.Get(ctx, b, "not-an-id")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = store.Get(ctx, b, primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestList_StorageOrderAndRestart(t *testing.T) {
	store, b := setup(t, []models.Field{{Name: "name", Kind: models.KindText}})
	ctx := context.Background()

	for _, n := range []string{"Alice", "Bob", "Carol"} {
		_, err := store.Create(ctx, b, map[string]any{"name": n})
		require.NoError(t, err)
	}

	for i := 0; i < 2; i++ {
		recs, err := store.Collect(ctx, b)
		require.NoError(t, err)
		require.Len(t, recs, 3)
		names := []string{recs[0].Values["name"].Str, recs[1].Values["name"].Str, recs[2].Values["name"].Str}
		assert.Equal(t, "Alice,Bob,Carol", strings.Join(names, ","))
	}

	it, err := store.List(ctx, b)
	require.NoError(t, err)
	require.True(t, it.Next(ctx))
	assert.Equal(t, "Alice", it.Record().Values["name"].Str)
	require.NoError(t, it.Close(ctx))
}

func TestUpdate_Allowlist(t *testing.T) {
	store, b := setup(t, []models.Field{
		{Kind: models.KindParagraph, Name: "intro"},
		{Name: "name", Kind: models.KindText, Required: true},
		{Name: "age", Kind: models.KindNumber},
	})
	ctx := context.Background()

	rec, err := store.Create(ctx, b, map[string]any{"name": "Alice", "age": 30})
	require.NoError(t, err)

	upd, err := store.Update(ctx, b, rec.ID.Hex(), map[string]any{
		"age":     "31",
		"intro":   "ignored",
		"unknown": 1,
	})
	require.NoError(t, err)
	assert.Equal(t, models.NumberValue(31), upd.Values["age"])
	assert.Equal(t, "Alice", upd.Values["name"].Str)
	assert.NotContains(t, upd.Values, "intro")
	assert.NotContains(t, upd.Values, "unknown")

	_, err = store.Update(ctx, b, rec.ID.Hex(), map[string]any{"age": "old"})
	requireInvalid(t, err, "age")

	_, err = store.Update(ctx, b, rec.ID.Hex(), map[string]any{"name": nil})
	requireInvalid(t, err, "name")

	// Only unknown keys: a no-op that still checks existence.
	same, err := store.Update(ctx, b, rec.ID.Hex(), map[string]any{"unknown": 1})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, same.ID)

	_, err = store.Update(ctx, b, primitive.NewObjectID().Hex(), map[string]any{"age": 1})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = store.Update(ctx, b, "zzz", map[string]any{"age": 1})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDelete(t *testing.T) {
	store, b := setup(t, []models.Field{{Name: "name", Kind: models.KindText}})
	ctx := context.Background()

	rec, err := store.Create(ctx, b, map[string]any{"name": "Alice"})
	require.NoError(t, err)

	del, err := store.Delete(ctx, b, rec.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, rec.ID, del.ID)

	_, err = store.Delete(ctx, b, rec.ID.Hex())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	n, err := store.Count(ctx, b)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVersionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	reg := registry.New(substrate.NewMemory(), nil)
	store := recordstore.New()
	formID := primitive.NewObjectID()

	x := models.Field{Name: "x", Kind: models.KindText}
	y := models.Field{Name: "y", Kind: models.KindText}

	b1 := bind(t, reg, formID, 1, []models.Field{x})
	rec, err := store.Create(ctx, b1, map[string]any{"x": "one"})
	require.NoError(t, err)

	bind(t, reg, formID, 2, []models.Field{x, y})

	v1 := 1
	r1, err := reg.Resolve(formID, &v1)
	require.NoError(t, err)
	got, err := store.Get(ctx, r1, rec.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "one", got.Values["x"].Str)

	cur, err := reg.Resolve(formID, nil)
	require.NoError(t, err)
	recs, err := store.Collect(ctx, cur)
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = store.Get(ctx, cur, rec.ID.Hex())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdate_NullOptional(t *testing.T) {
	store, b := setup(t, []models.Field{
		{Name: "name", Kind: models.KindText},
		{Name: "age", Kind: models.KindNumber},
		{Name: "photo", Kind: models.KindFile},
		{Name: "pick", Kind: models.KindSelect, Options: []models.Option{{Label: "A", Value: "a"}}},
	})
	ctx := context.Background()

	// Create treats null like an omitted key.
	rec, err := store.Create(ctx, b, map[string]any{"name": "Alice", "age": nil, "photo": nil, "pick": nil})
	require.NoError(t, err)
	assert.NotContains(t, rec.Values, "age")
	assert.NotContains(t, rec.Values, "photo")
	assert.Equal(t, models.StringValue(""), rec.Values["pick"])

	rec, err = store.Update(ctx, b, rec.ID.Hex(), map[string]any{"age": 40, "pick": "a"})
	require.NoError(t, err)

	// So does Update: nulls on optional fields leave stored values alone.
	upd, err := store.Update(ctx, b, rec.ID.Hex(), map[string]any{"age": nil, "photo": nil, "pick": nil, "name": "Al"})
	require.NoError(t, err)
	assert.Equal(t, models.NumberValue(40), upd.Values["age"])
	assert.Equal(t, models.StringValue("a"), upd.Values["pick"])
	assert.NotContains(t, upd.Values, "photo")
	assert.Equal(t, "Al", upd.Values["name"].Str)
}
