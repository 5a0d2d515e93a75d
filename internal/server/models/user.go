package models

import "time"

// User mirrors an actor row from the external identity system. Rows are
// referenced by id; the server never creates or mutates them.
type User struct {
	ID        string
	UserName  string
	Name      string // display name shown in views
	IsAdmin   bool
	CreatedAt time.Time
}
