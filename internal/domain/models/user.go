package models

// User is the identity the engine consumes: an id, a role, and an
// optional signature image path. Authentication happens elsewhere.
type User struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Rol            string  `json:"rol"`
	SignatureImage *string `json:"signature_image,omitempty"`
}

// Identity is the authenticated caller extracted from a request token.
type Identity struct {
	UserID int64
	Rol    string
}
