package mongo_test

import (
	"context"
	"os"
	"testing"

	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/store"
	"github.com/garagescholars/garage-tech-stack-sub001/store/mongo"
	"github.com/garagescholars/garage-tech-stack-sub001/store/storetest"
)

// newStore connects to FIELDWORK_TEST_MONGO_URI, which must point at a
// replica set for change streams, and uses a throwaway database.
func newStore(t *testing.T) store.Store {
	t.Helper()
	uri := os.Getenv("FIELDWORK_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("FIELDWORK_TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	client, err := mongod.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	suffix := id.NewEventID().String()
	db := client.Database("fieldwork_test_" + suffix[len(suffix)-12:])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	s := mongo.New(db)
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, newStore)
}
