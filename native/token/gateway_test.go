package token

import (
	"errors"
	"math/big"
	"testing"
)

func TestGatewayCustodyFlow(t *testing.T) {
	ledger, _ := newTestLedger(t)
	custody, contributor := principal(0xCC), principal(0x01)
	gateway := NewGateway(ledger, custody)
	if gateway.Custody() != custody {
		t.Fatalf("unexpected custody principal")
	}
	if err := ledger.Mint(contributor, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := gateway.TransferInto(contributor, big.NewInt(30)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected approval required, got %v", err)
	}
	if err := ledger.Approve(contributor, custody, big.NewInt(30)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := gateway.TransferInto(contributor, big.NewInt(30)); err != nil {
		t.Fatalf("transfer into: %v", err)
	}
	if bal, _ := gateway.BalanceOf(custody); bal.Int64() != 30 {
		t.Fatalf("unexpected custody balance %s", bal)
	}
	if err := gateway.TransferOut(contributor, big.NewInt(31)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := gateway.TransferOut(contributor, big.NewInt(30)); err != nil {
		t.Fatalf("transfer out: %v", err)
	}
	if bal, _ := gateway.BalanceOf(contributor); bal.Int64() != 100 {
		t.Fatalf("unexpected contributor balance %s", bal)
	}
}

func TestGatewayRequiresLedger(t *testing.T) {
	var gateway *Gateway
	if err := gateway.TransferOut(principal(1), big.NewInt(1)); !errors.Is(err, errNilLedger) {
		t.Fatalf("expected errNilLedger, got %v", err)
	}
}
