// Package model defines the wire payload types shared by the gateway connection,
// the REST/CDN client and the archive writer.
//
// Conventions:
//   - JSON field names follow the platform API (snake_case)
//   - Optional request fields are pointers with omitempty
//   - Platform identifiers use ID, which accepts JSON numbers and strings
package model
