package domain

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// AddressLen is the raw byte length of every on-chain identity.
const AddressLen = 32

// Address is a base58-encoded 32-byte identity: a holder account,
// a token contract, a pool contract, or the vault itself.
type Address string

// ParseAddress validates raw base58 input and returns a typed Address.
func ParseAddress(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return "", fmt.Errorf("decode address %q: %w", s, err)
	}
	if len(raw) != AddressLen {
		return "", fmt.Errorf("address %q: got %d bytes, want %d", s, len(raw), AddressLen)
	}
	return Address(s), nil
}

// Validate re-checks an Address that arrived pre-typed (e.g. decoded from JSON).
func (a Address) Validate() error {
	_, err := ParseAddress(string(a))
	return err
}

// String implements fmt.Stringer.
func (a Address) String() string { return string(a) }

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == "" }

// vaultAddressMarker domain-separates vault address derivation from
// other sha256-based derivations on the host.
const vaultAddressMarker = "PooledVaultAddress"

// DeriveVaultAddress derives the vault's own identity from its
// instantiate-time seeds. The derivation walks bump values from 255
// downward and keeps the first digest that is not a valid ed25519
// curve point, so the resulting account can never carry a signing key.
func DeriveVaultAddress(seeds ...[]byte) (Address, error) {
	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, []byte(vaultAddressMarker)...)

		hash := sha256.Sum256(data)

		if !isOnCurve(hash[:]) {
			return Address(base58.Encode(hash[:])), nil
		}
	}
	return "", fmt.Errorf("no off-curve vault address for given seeds")
}

func isOnCurve(point []byte) bool {
	if len(point) != AddressLen {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
