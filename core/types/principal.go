package types

import (
	"fmt"
	"strings"

	"raisemoney/crypto"
)

// Principal identifies a contributor, beneficiary or custody account. The
// ledger only relies on equality and use as a map key.
type Principal [crypto.AddressLength]byte

// ZeroPrincipal is the unset identity.
var ZeroPrincipal Principal

// IsZero reports whether p is unset.
func (p Principal) IsZero() bool { return p == ZeroPrincipal }

// String renders the principal as a bech32 address.
func (p Principal) String() string {
	return crypto.MustAddress(crypto.PrincipalPrefix, p).String()
}

// Bytes returns a copy of the raw identifier.
func (p Principal) Bytes() []byte { return append([]byte(nil), p[:]...) }

// ParsePrincipal decodes a bech32 principal with the expected prefix.
func ParsePrincipal(raw string) (Principal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ZeroPrincipal, fmt.Errorf("principal required")
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return ZeroPrincipal, err
	}
	if addr.Prefix() != crypto.PrincipalPrefix {
		return ZeroPrincipal, fmt.Errorf("principal prefix must be %q, got %q", crypto.PrincipalPrefix, addr.Prefix())
	}
	var p Principal
	copy(p[:], addr.Bytes())
	return p, nil
}

// PrincipalFromBytes copies b into a principal. b must be 20 bytes long.
func PrincipalFromBytes(b []byte) (Principal, error) {
	if len(b) != crypto.AddressLength {
		return ZeroPrincipal, fmt.Errorf("principal must be %d bytes, got %d", crypto.AddressLength, len(b))
	}
	var p Principal
	copy(p[:], b)
	return p, nil
}
