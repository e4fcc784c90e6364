package oidc

import (
	jose "github.com/go-jose/go-jose/v3"

	"github.com/authcove/idp/pkg/crypto"
)

// ClaimHash computes the *_hash claim value (at_hash, c_hash) for the given
// token: the left half of the hash matching the signature algorithm,
// base64url encoded.
func ClaimHash(claim string, sigAlgorithm jose.SignatureAlgorithm) (string, error) {
	hash, err := crypto.GetHashAlgorithm(sigAlgorithm)
	if err != nil {
		return "", err
	}
	return crypto.HashString(hash, claim, true), nil
}
