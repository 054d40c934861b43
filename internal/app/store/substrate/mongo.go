package substrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// codeNamespaceExists is returned by createCollection when the collection
// is already present.
const codeNamespaceExists = 48

// Mongo stores each collection as a MongoDB collection in db.
//
// Document layout:
//
//	{ _id: ObjectID, form: ObjectID, values: { <field>: string | double | binary } }
type Mongo struct {
	db *mongo.Database
}

// NewMongo returns a substrate backed by db.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

func (m *Mongo) Backend() string { return "mongo" }

// Open creates the collection explicitly so that it exists (and shows up in
// listCollections) even before the first record is written.
func (m *Mongo) Open(ctx context.Context, name string) (Collection, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	err := m.db.CreateCollection(ctx, name)
	if err != nil {
		var ce mongo.CommandError
		if !errors.As(err, &ce) || ce.Code != codeNamespaceExists {
			return nil, fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	return &mongoCollection{c: m.db.Collection(name)}, nil
}

// Drop removes the collection. Dropping a missing collection is not an error.
func (m *Mongo) Drop(ctx context.Context, name string) error {
	if err := CheckName(name); err != nil {
		return err
	}
	if err := m.db.Collection(name).Drop(ctx); err != nil {
		return fmt.Errorf("drop collection %s: %w", name, err)
	}
	return nil
}

type mongoCollection struct {
	c *mongo.Collection
}

func (c *mongoCollection) Name() string { return c.c.Name() }

func (c *mongoCollection) Insert(ctx context.Context, doc Document) error {
	_, err := c.c.InsertOne(ctx, bson.D{
		{Key: "_id", Value: doc.ID},
		{Key: "form", Value: doc.FormID},
		{Key: "values", Value: encodeBSONValues(doc.Values)},
	})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return &apperr.DuplicateError{Key: "_id"}
		}
		return err
	}
	return nil
}

func (c *mongoCollection) Get(ctx context.Context, id primitive.ObjectID) (Document, error) {
	raw, err := c.c.FindOne(ctx, bson.M{"_id": id}).Raw()
	if err == mongo.ErrNoDocuments {
		return Document{}, apperr.ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return decodeBSONDocument(raw)
}

func (c *mongoCollection) Find(ctx context.Context) (Cursor, error) {
	cur, err := c.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return &mongoCursor{cur: cur}, nil
}

func (c *mongoCollection) Set(ctx context.Context, id primitive.ObjectID, values map[string]models.Value) (Document, error) {
	set := bson.M{}
	for k, v := range values {
		set["values."+k] = encodeBSONValue(v)
	}
	if len(set) == 0 {
		return c.Get(ctx, id)
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	raw, err := c.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Raw()
	if err == mongo.ErrNoDocuments {
		return Document{}, apperr.ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return decodeBSONDocument(raw)
}

func (c *mongoCollection) Delete(ctx context.Context, id primitive.ObjectID) (Document, error) {
	raw, err := c.c.FindOneAndDelete(ctx, bson.M{"_id": id}).Raw()
	if err == mongo.ErrNoDocuments {
		return Document{}, apperr.ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return decodeBSONDocument(raw)
}

func (c *mongoCollection) Count(ctx context.Context) (int64, error) {
	return c.c.CountDocuments(ctx, bson.M{})
}

type mongoCursor struct {
	cur *mongo.Cursor
	doc Document
	err error
}

func (m *mongoCursor) Next(ctx context.Context) bool {
	if m.err != nil || !m.cur.Next(ctx) {
		return false
	}
	m.doc, m.err = decodeBSONDocument(m.cur.Current)
	return m.err == nil
}

func (m *mongoCursor) Document() Document { return m.doc }

func (m *mongoCursor) Err() error {
	if m.err != nil {
		return m.err
	}
	return m.cur.Err()
}

func (m *mongoCursor) Close(ctx context.Context) error { return m.cur.Close(ctx) }

func encodeBSONValue(v models.Value) any {
	switch v.Type {
	case models.TypeNumber:
		return v.Num
	case models.TypeBytes:
		return primitive.Binary{Subtype: 0x00, Data: v.Bytes}
	default:
		return v.Str
	}
}

func encodeBSONValues(values map[string]models.Value) bson.M {
	out := make(bson.M, len(values))
	for k, v := range values {
		out[k] = encodeBSONValue(v)
	}
	return out
}

func decodeBSONDocument(raw bson.Raw) (Document, error) {
	var d Document
	if err := raw.Lookup("_id").Unmarshal(&d.ID); err != nil {
		return Document{}, fmt.Errorf("decode _id: %w", err)
	}
	if err := raw.Lookup("form").Unmarshal(&d.FormID); err != nil {
		return Document{}, fmt.Errorf("decode form: %w", err)
	}
	d.Values = map[string]models.Value{}

	vals, ok := raw.Lookup("values").DocumentOK()
	if !ok {
		return d, nil
	}
	elems, err := vals.Elements()
	if err != nil {
		return Document{}, fmt.Errorf("decode values: %w", err)
	}
	for _, el := range elems {
		rv := el.Value()
		switch rv.Type {
		case bsontype.String:
			d.Values[el.Key()] = models.StringValue(rv.StringValue())
		case bsontype.Double:
			d.Values[el.Key()] = models.NumberValue(rv.Double())
		case bsontype.Int32:
			d.Values[el.Key()] = models.NumberValue(float64(rv.Int32()))
		case bsontype.Int64:
			d.Values[el.Key()] = models.NumberValue(float64(rv.Int64()))
		case bsontype.Binary:
			// raw may be a cursor buffer that is reused on the next call.
			_, data := rv.Binary()
			d.Values[el.Key()] = models.BytesValue(append([]byte(nil), data...))
		case bsontype.Null:
			// absent
		default:
			return Document{}, fmt.Errorf("decode values.%s: unsupported bson type %s", el.Key(), rv.Type)
		}
	}
	return d, nil
}
