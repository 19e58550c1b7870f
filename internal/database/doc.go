// Package database provides the PostgreSQL connection pool and schema for the
// message archive.
//
// Table messages:
//   - archive_id: UUID minted per archived row
//   - message_id: platform message ID, unique when present
//   - session_id: gateway session that delivered the message
//   - received_at: local receive time, µs since epoch
package database
