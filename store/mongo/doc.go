// Package mongo implements store.Store using the official MongoDB driver.
// Each aggregate is stored as JSON text next to the fields that queries
// filter on. Job writes are conditional on version or status, milestones
// use $addToSet, and the change feed is a change stream, which requires a
// replica set.
//
// The caller owns the *mongo.Client lifecycle -- the store never
// disconnects it:
//
//	client, _ := mongod.Connect(options.Client().ApplyURI(uri))
//	store := mongo.New(client.Database("fieldwork"))
//	store.Migrate(ctx)
package mongo
