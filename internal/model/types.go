package model

import "encoding/json"

// -----------------------------------------------------------------------------
// Messages
// -----------------------------------------------------------------------------

// Message is a chat message as delivered by the gateway and returned by the REST API.
type Message struct {
	ID      ID     `json:"id,omitempty"`
	Author  string `json:"author"`
	Content string `json:"content"`
}

// MessageCreate is the body of POST /messages.
type MessageCreate struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

// -----------------------------------------------------------------------------
// Users & sessions
// -----------------------------------------------------------------------------

// User is a platform account.
type User struct {
	ID           ID      `json:"id"`
	Username     string  `json:"username"`
	DisplayName  *string `json:"display_name,omitempty"`
	SocialCredit int     `json:"social_credit"`
	Status       *string `json:"status,omitempty"`
	Bio          *string `json:"bio,omitempty"`
	Avatar       *ID     `json:"avatar,omitempty"`
	Banner       *ID     `json:"banner,omitempty"`
	Badges       uint64  `json:"badges"`
	Permissions  uint64  `json:"permissions"`
	Email        *string `json:"email,omitempty"`
	Verified     *bool   `json:"verified,omitempty"`
}

// UserCreate is the body of POST /users.
type UserCreate struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUser is the body of PATCH /users. Password is always required.
type UpdateUser struct {
	Password    string  `json:"password"`
	Username    *string `json:"username,omitempty"`
	Email       *string `json:"email,omitempty"`
	NewPassword *string `json:"new_password,omitempty"`
}

// UpdateUserProfile is the body of PATCH /users/profile.
type UpdateUserProfile struct {
	DisplayName *string `json:"display_name,omitempty"`
	Status      *string `json:"status,omitempty"`
	StatusType  *string `json:"status_type,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	Avatar      *ID     `json:"avatar,omitempty"`
	Banner      *ID     `json:"banner,omitempty"`
}

// PasswordDeleteCredentials confirms destructive account operations.
type PasswordDeleteCredentials struct {
	Password string `json:"password"`
}

// SessionCreate is the body of POST /sessions.
type SessionCreate struct {
	Identifier string `json:"identifier"` // username or email
	Password   string `json:"password"`
	Platform   string `json:"platform"`
	Client     string `json:"client"`
}

// Session is an authenticated login session.
type Session struct {
	ID       ID      `json:"id"`
	UserID   ID      `json:"user_id"`
	Platform string  `json:"platform"`
	Client   string  `json:"client"`
	IP       *string `json:"ip,omitempty"`
}

// SessionCreated is returned by POST /sessions.
type SessionCreated struct {
	Token   string  `json:"token"`
	Session Session `json:"session"`
}

// -----------------------------------------------------------------------------
// Files
// -----------------------------------------------------------------------------

// FileMetadata describes the stored file's content.
type FileMetadata struct {
	Type   string `json:"type"` // "image", "video", "text" or "other"
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
}

// FileData is the metadata of an uploaded file.
type FileData struct {
	ID       ID           `json:"id"`
	Name     string       `json:"name"`
	Bucket   string       `json:"bucket"`
	Spoiler  bool         `json:"spoiler,omitempty"`
	Metadata FileMetadata `json:"metadata"`
}

// -----------------------------------------------------------------------------
// Instance
// -----------------------------------------------------------------------------

// InstanceInfo describes the instance the client talks to.
type InstanceInfo struct {
	InstanceName       string          `json:"instance_name"`
	Description        *string         `json:"description,omitempty"`
	Version            string          `json:"version"`
	MessageLimit       int             `json:"message_limit"`
	OprishURL          string          `json:"oprish_url"`
	PandemoniumURL     string          `json:"pandemonium_url"`
	EffisURL           string          `json:"effis_url"`
	FileSize           int64           `json:"file_size"`
	AttachmentFileSize int64           `json:"attachment_file_size"`
	RateLimits         json.RawMessage `json:"rate_limits,omitempty"` // only with ?rate_limits
}
