package models

import "time"

// Secret is a stored credential. EncryptedSecret is always the hex ciphertext
// produced by cipherx; plaintext never reaches the store. TagID and the
// optional text fields are empty strings when absent.
type Secret struct {
	ID              string
	OwnerID         string
	Host            string
	Username        string
	EncryptedSecret string
	TagID           string
	Note            string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SecretSummary is the list-page projection of a secret: joined display
// values, never the credential itself.
type SecretSummary struct {
	ID        string
	Host      string
	TagName   string
	OwnerName string
	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SecretListFilter narrows ListSecrets output. Zero values mean "no filter";
// Search matches host and note substrings.
type SecretListFilter struct {
	TagID   string
	OwnerID string
	Search  string
}
