// Package postgres implements the store using pgx/v5 with raw SQL.
// Aggregates are stored as jsonb documents next to the columns that
// queries filter on. Job writes are version checked, claims are guarded
// on status, and the change feed uses LISTEN/NOTIFY. Schema migrations
// are embedded SQL files.
package postgres
