// Package writer archives gateway messages to PostgreSQL.
//
// The dispatcher pushes MESSAGE_CREATE events onto an unbounded Queue; a
// MessageWriter drains it into batches and inserts them with pgx.Batch.
// Inserts are append-only: rows that collide on message_id are skipped.
// received_at is stored as microseconds since the Unix epoch.
package writer
