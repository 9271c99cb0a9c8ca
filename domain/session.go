package domain

import "time"

// RefreshSession records issuance metadata for a refresh token. It exists
// for session visibility and management only; token verification never
// depends on it.
type RefreshSession struct {
	ID        string    `bson:"_id,omitempty"        json:"id"`
	UserID    string    `bson:"user_id"              json:"user_id"`
	TokenID   string    `bson:"token_id"             json:"token_id"`
	UserAgent string    `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	IPAddress string    `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	IssuedAt  time.Time `bson:"issued_at"            json:"issued_at"`
	ExpiresAt time.Time `bson:"expires_at"           json:"expires_at"`
}
