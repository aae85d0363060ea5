package models

// APIKey is an accepted API key. The key itself is never serialized.
type APIKey struct {
	ID  string `json:"id"`
	Key string `json:"-"`
}
