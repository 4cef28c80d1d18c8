package domain

import "strings"

// IdentityKind distinguishes authenticated users from anonymous sessions.
type IdentityKind string

const (
	IdentityKindUser      IdentityKind = "user"
	IdentityKindAnonymous IdentityKind = "anonymous"
)

// Identity is the unit against which usage is metered: either an
// authenticated user or a browser-local anonymous session.
type Identity struct {
	ID    string
	Kind  IdentityKind
	Email string
	Name  string
}

// UserIdentity builds an authenticated identity from a stable user id.
func UserIdentity(id string) Identity {
	return Identity{ID: strings.TrimSpace(id), Kind: IdentityKindUser}
}

// AnonymousIdentity builds an identity from a browser-local session id.
func AnonymousIdentity(sessionID string) Identity {
	return Identity{ID: strings.TrimSpace(sessionID), Kind: IdentityKindAnonymous}
}

// Key returns the kind-prefixed id the durable stores are keyed on.
// Anonymous sessions never share a counter or artifact namespace with a
// user account, even when a client picks a session id equal to a user id.
func (i Identity) Key() string {
	return string(i.Kind) + ":" + i.ID
}

// Owns reports whether the identity is the given owner. Both id and kind
// must match; a session id equal to a user id is a different principal.
func (i Identity) Owns(ownerID string, ownerKind IdentityKind) bool {
	return i.Valid() && i.ID == ownerID && i.Kind == ownerKind
}

// IsAnonymous reports whether the identity is a session without an account.
func (i Identity) IsAnonymous() bool {
	return i.Kind == IdentityKindAnonymous
}

// Valid reports whether the identity carries a usable id.
func (i Identity) Valid() bool {
	return strings.TrimSpace(i.ID) != ""
}
