/*
Package user contains the identity a chat participant asserts when joining.

Identities are self-asserted: the server binds whatever a join frame carries to
the connection that sent it and performs no uniqueness or ownership checks.
*/
package user

// Identity is the identity bound to a connection by a join frame.
type Identity struct {
	// UserID is the client-generated identifier. It is not guaranteed to be unique.
	UserID string `json:"userId"`

	// DisplayName is the name shown to other participants (wire field "username").
	DisplayName string `json:"username"`
}

// Valid reports whether the identity can be registered.
func (i Identity) Valid() bool {
	return i.UserID != ""
}
