package types

import (
	"bytes"
	"testing"
)

func TestPrincipalRoundTrip(t *testing.T) {
	var p Principal
	copy(p[:], bytes.Repeat([]byte{0x07}, len(p)))
	parsed, err := ParsePrincipal(p.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != p {
		t.Fatalf("round trip mismatch: %x != %x", parsed, p)
	}
}

func TestParsePrincipalErrors(t *testing.T) {
	if _, err := ParsePrincipal("  "); err == nil {
		t.Fatalf("expected empty principal error")
	}
	if _, err := ParsePrincipal("not-bech32"); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := PrincipalFromBytes([]byte{1}); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestPrincipalAsMapKey(t *testing.T) {
	a, _ := PrincipalFromBytes(bytes.Repeat([]byte{1}, 20))
	b, _ := PrincipalFromBytes(bytes.Repeat([]byte{1}, 20))
	seen := map[Principal]int{a: 1}
	seen[b]++
	if len(seen) != 1 || seen[a] != 2 {
		t.Fatalf("equal principals must collapse to one key: %v", seen)
	}
	if !ZeroPrincipal.IsZero() || a.IsZero() {
		t.Fatalf("unexpected IsZero results")
	}
}
