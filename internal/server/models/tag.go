package models

import "time"

// Tag is an administrator-managed label referenced by secrets. Deleting a tag
// that is still referenced is blocked.
type Tag struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
