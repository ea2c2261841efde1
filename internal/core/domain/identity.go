package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// IdentityLength is the number of hex characters kept from the digest.
const IdentityLength = 7

// IdentitySchemeVersion identifies the canonical derivation below. Persisted
// role snapshots record it so a scheme change is detected on load instead of
// silently orphaning every stored identity.
//
//	v1: sha256(seed)                      (retired)
//	v2: sha256(name + "\x00" + seed)
const IdentitySchemeVersion = 2

// Identity is the pseudonymous display hash of a poster.
type Identity string

// ResolveIdentity derives the identity for a display name and secret seed.
// The NUL separator cannot be typed into a form field, so distinct
// (name, seed) pairs never share an input.
func ResolveIdentity(name, seed string) Identity {
	sum := sha256.Sum256([]byte(name + "\x00" + seed))
	return Identity(hex.EncodeToString(sum[:])[:IdentityLength])
}

// Valid reports whether id has the shape produced by ResolveIdentity.
func (id Identity) Valid() bool {
	if len(id) != IdentityLength {
		return false
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func (id Identity) String() string { return string(id) }
