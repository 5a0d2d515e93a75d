package models

import "time"

// Permission is a request by one user to read another user's secret.
// Agree=false is the pending state; the only transition is approval, which
// sets Agree and DecidedAt. There is no rejection state.
type Permission struct {
	ID          string
	SecretID    string
	ApplicantID string
	Agree       bool
	Reason      string
	CreatedAt   time.Time
	DecidedAt   *time.Time
}

// Approved reports whether the request has been granted.
func (p *Permission) Approved() bool {
	return p.Agree
}

// PermissionSummary is the list-page projection of a request: joined display
// values for the secret's host and the two parties.
type PermissionSummary struct {
	ID            string
	Host          string
	ApplicantName string
	OwnerName     string
	Agree         bool
	CreatedAt     time.Time
	DecidedAt     *time.Time
}
