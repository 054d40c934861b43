package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoURIEnv names the environment variable holding the MongoDB URI used by
// store tests. Tests that need MongoDB are skipped when it is unset.
const MongoURIEnv = "FORMHUB_TEST_MONGO_URI"

// TestContext returns a context with a timeout suitable for a single test.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// SetupTestDB connects to the test MongoDB and returns a fresh, uniquely named
// database that is dropped when the test finishes.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv(MongoURIEnv)
	if uri == "" {
		t.Skipf("%s not set; skipping MongoDB test", MongoURIEnv)
	}

	ctx, cancel := TestContext()
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect to test MongoDB: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("ping test MongoDB: %v", err)
	}

	db := client.Database("formhub_test_" + primitive.NewObjectID().Hex())

	t.Cleanup(func() {
		ctx, cancel := TestContext()
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}
