// Package redis implements store.Store on Redis.
//
// Every aggregate is stored as a JSON document under its own key. Job
// writes are optimistic: UpdateJob and ClaimJob WATCH the job key, check
// the stored version (or claimability) and commit in a MULTI block, so a
// concurrent writer aborts the transaction. Milestones are Sets, which
// makes RecordMilestone a single atomic SADD. The job change feed is a
// Pub/Sub channel.
//
// The caller owns the client lifecycle; Close only stops change feeds.
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
