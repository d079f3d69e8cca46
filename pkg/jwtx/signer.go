package jwtx

import "errors"

// ErrIncompleteClaims is returned by Sign for claims that do not name an
// account or never expire.
var ErrIncompleteClaims = errors.New("jwtx: session claims need a subject and an expiry")

// Signer mints console session tokens. Each token names the account it was
// issued to and carries its own expiry.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
	Validate() error
}

// NewSignerEdDSA creates an EdDSA session signer from PKCS8 PEM bytes.
func NewSignerEdDSA(kid string, pemKey []byte) (Signer, error) {
	return newEdDSASigner(kid, pemKey)
}
