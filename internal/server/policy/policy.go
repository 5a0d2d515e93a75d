// Package policy holds the pure access decisions for the vault. Every rule is
// a stateless function over the actor, the secret (nil in creation context)
// and the secret's permission requests; nothing here reads or writes storage.
package policy

import "github.com/dbateam/secretvault/internal/server/models"

// Field names a renderable attribute of a secret or permission record.
type Field string

const (
	FieldOwner    Field = "owner" // owner display name
	FieldHost     Field = "host"
	FieldTag      Field = "tag"
	FieldNote     Field = "note"
	FieldUsername Field = "username"
	// FieldSecret is the decrypted credential, editable by the owner.
	FieldSecret Field = "secret"
	// FieldSecretReadonly is the decrypted credential shown to an approved
	// applicant; never editable.
	FieldSecretReadonly Field = "secret_readonly"

	FieldApplicant Field = "applicant"
	FieldReason    Field = "reason"
	FieldAgree     Field = "agree"
)

// hasApproval reports whether perms contains an approved request by actor for
// the given secret.
func hasApproval(actor *models.User, secret *models.Secret, perms []*models.Permission) bool {
	for _, p := range perms {
		if p.Agree && p.ApplicantID == actor.ID && p.SecretID == secret.ID {
			return true
		}
	}
	return false
}

// CanViewFullRecord reports whether actor may open the secret's detail view.
// A nil secret is the creation context, which everyone may enter.
func CanViewFullRecord(actor *models.User, secret *models.Secret, perms []*models.Permission) bool {
	if secret == nil {
		return true
	}
	if actor.ID == secret.OwnerID {
		return true
	}
	return hasApproval(actor, secret, perms)
}

// VisibleFields returns the fields actor may see on the secret's detail view,
// in display order. An empty result means the record is hidden entirely.
func VisibleFields(actor *models.User, secret *models.Secret, perms []*models.Permission) []Field {
	base := []Field{FieldHost, FieldTag, FieldNote}
	if secret == nil {
		return append(base, FieldUsername, FieldSecret)
	}
	if actor.ID == secret.OwnerID {
		return append([]Field{FieldOwner}, append(base, FieldUsername, FieldSecret)...)
	}
	if hasApproval(actor, secret, perms) {
		return append([]Field{FieldOwner}, append(base, FieldUsername, FieldSecretReadonly)...)
	}
	return nil
}

// CanEdit reports whether actor may modify the secret. Only the owner may;
// approved applicants get read access only.
func CanEdit(actor *models.User, secret *models.Secret) bool {
	return secret == nil || actor.ID == secret.OwnerID
}

// CanDelete follows the same rule as CanEdit.
func CanDelete(actor *models.User, secret *models.Secret) bool {
	return CanEdit(actor, secret)
}

// ReadonlyFields returns the fields frozen on the edit form. The owner of an
// existing secret cannot reassign ownership; every other permitted context has
// no frozen fields.
func ReadonlyFields(actor *models.User, secret *models.Secret) []Field {
	if secret == nil {
		return nil
	}
	if actor.ID == secret.OwnerID {
		return []Field{FieldOwner}
	}
	return nil
}

// CanManageTags gates tag creation, modification, deletion, and listing.
func CanManageTags(actor *models.User) bool {
	return actor.IsAdmin
}

// CanViewPermission reports whether actor may see a permission request:
// only the applicant and the owner of the referenced secret.
func CanViewPermission(actor *models.User, perm *models.Permission, secretOwnerID string) bool {
	return actor.ID == perm.ApplicantID || actor.ID == secretOwnerID
}

// PermissionReadonlyFields returns the frozen fields on a permission record.
// The secret's owner may only toggle agree, so everything else is frozen for
// them; every other viewer gets a fully read-only record.
func PermissionReadonlyFields(actor *models.User, secretOwnerID string) []Field {
	if actor.ID == secretOwnerID {
		return []Field{FieldHost, FieldApplicant, FieldReason}
	}
	return []Field{FieldAgree}
}

// CanApprovePermission reports whether actor may approve the request: only
// the owner of the referenced secret.
func CanApprovePermission(actor *models.User, secretOwnerID string) bool {
	return actor.ID == secretOwnerID
}
