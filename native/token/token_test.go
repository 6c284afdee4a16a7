package token

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"raisemoney/core/events"
	"raisemoney/core/types"
)

type allowanceKey struct {
	owner   types.Principal
	spender types.Principal
}

type mockState struct {
	meta       *Metadata
	balances   map[types.Principal]*big.Int
	allowances map[allowanceKey]*big.Int
	supply     *big.Int
}

func newMockState() *mockState {
	return &mockState{
		balances:   make(map[types.Principal]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
		supply:     big.NewInt(0),
	}
}

func (m *mockState) TokenMetadataPut(meta *Metadata) error {
	clone := *meta
	m.meta = &clone
	return nil
}

func (m *mockState) TokenMetadata() (*Metadata, bool, error) {
	if m.meta == nil {
		return nil, false, nil
	}
	clone := *m.meta
	return &clone, true, nil
}

func (m *mockState) TokenBalance(p types.Principal) (*big.Int, error) {
	if bal, ok := m.balances[p]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) SetTokenBalance(p types.Principal, amount *big.Int) error {
	m.balances[p] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) TokenAllowance(owner, spender types.Principal) (*big.Int, error) {
	if amt, ok := m.allowances[allowanceKey{owner, spender}]; ok {
		return new(big.Int).Set(amt), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) SetTokenAllowance(owner, spender types.Principal, amount *big.Int) error {
	m.allowances[allowanceKey{owner, spender}] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) TokenSupply() (*big.Int, error) { return new(big.Int).Set(m.supply), nil }

func (m *mockState) SetTokenSupply(amount *big.Int) error {
	m.supply = new(big.Int).Set(amount)
	return nil
}

func principal(fill byte) types.Principal {
	var p types.Principal
	copy(p[:], bytes.Repeat([]byte{fill}, len(p)))
	return p
}

func newTestLedger(t *testing.T) (*Ledger, *mockState) {
	t.Helper()
	state := newMockState()
	ledger := NewLedger()
	ledger.SetState(state)
	if _, err := ledger.Init(Metadata{Symbol: " mobi ", Name: "MobiCoin", Decimals: 18}); err != nil {
		t.Fatalf("init: %v", err)
	}
	return ledger, state
}

func TestInitNormalizesMetadata(t *testing.T) {
	ledger, _ := newTestLedger(t)
	meta, err := ledger.Metadata()
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.Symbol != "MOBI" || meta.Name != "MobiCoin" || meta.Decimals != 18 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	again, err := ledger.Init(Metadata{Symbol: "OTHER"})
	if err != nil {
		t.Fatalf("re-init: %v", err)
	}
	if again.Symbol != "MOBI" {
		t.Fatalf("existing metadata must be kept, got %q", again.Symbol)
	}
	if _, err := NormalizeMetadata(Metadata{Symbol: "A B"}); !errors.Is(err, ErrInvalidMetadata) {
		t.Fatalf("expected ErrInvalidMetadata, got %v", err)
	}
	if _, err := NormalizeMetadata(Metadata{Symbol: ""}); !errors.Is(err, ErrInvalidMetadata) {
		t.Fatalf("expected ErrInvalidMetadata for empty symbol, got %v", err)
	}
}

func TestMintAndTransfer(t *testing.T) {
	ledger, _ := newTestLedger(t)
	alice, bob := principal(0x01), principal(0x02)
	buf := &events.Buffer{}
	ledger.SetEmitter(buf)

	if err := ledger.Mint(alice, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(300)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if bal, _ := ledger.BalanceOf(alice); bal.Int64() != 700 {
		t.Fatalf("unexpected alice balance %s", bal)
	}
	if bal, _ := ledger.BalanceOf(bob); bal.Int64() != 300 {
		t.Fatalf("unexpected bob balance %s", bal)
	}
	if supply, _ := ledger.TotalSupply(); supply.Int64() != 1000 {
		t.Fatalf("unexpected supply %s", supply)
	}
	if err := ledger.Transfer(bob, alice, big.NewInt(301)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := ledger.Transfer(alice, types.ZeroPrincipal, big.NewInt(1)); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
	if err := ledger.Mint(alice, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	evts := buf.Drain()
	if len(evts) != 2 || evts[0].Type != EventTypeMint || evts[1].Type != EventTypeTransfer {
		t.Fatalf("unexpected events %+v", evts)
	}
}

func TestSelfTransferKeepsBalance(t *testing.T) {
	ledger, _ := newTestLedger(t)
	alice := principal(0x01)
	if err := ledger.Mint(alice, big.NewInt(50)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(alice, alice, big.NewInt(50)); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	if bal, _ := ledger.BalanceOf(alice); bal.Int64() != 50 {
		t.Fatalf("self transfer changed balance to %s", bal)
	}
}

func TestMintRejectsSupplyOverflow(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ceiling := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if err := ledger.Mint(principal(0x01), ceiling); err != nil {
		t.Fatalf("mint max: %v", err)
	}
	if err := ledger.Mint(principal(0x02), big.NewInt(1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected overflow rejected, got %v", err)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ledger, _ := newTestLedger(t)
	owner, spender, to := principal(0x01), principal(0x02), principal(0x03)
	if err := ledger.Mint(owner, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.TransferFrom(spender, owner, to, big.NewInt(10)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	if err := ledger.Approve(owner, spender, big.NewInt(60)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.TransferFrom(spender, owner, to, big.NewInt(40)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	allowance, _ := ledger.Allowance(owner, spender)
	if allowance.Int64() != 20 {
		t.Fatalf("expected remaining allowance 20, got %s", allowance)
	}
	if bal, _ := ledger.BalanceOf(to); bal.Int64() != 40 {
		t.Fatalf("unexpected recipient balance %s", bal)
	}
	if err := ledger.Approve(owner, spender, big.NewInt(0)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := ledger.TransferFrom(spender, owner, to, big.NewInt(1)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected revoked allowance, got %v", err)
	}
	if err := ledger.Approve(owner, spender, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransferFromKeepsAllowanceOnFailure(t *testing.T) {
	ledger, _ := newTestLedger(t)
	owner, spender := principal(0x01), principal(0x02)
	if err := ledger.Mint(owner, big.NewInt(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Approve(owner, spender, big.NewInt(50)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.TransferFrom(spender, owner, spender, big.NewInt(10)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if allowance, _ := ledger.Allowance(owner, spender); allowance.Int64() != 50 {
		t.Fatalf("allowance consumed by failed transfer: %s", allowance)
	}
}

func TestLedgerRequiresState(t *testing.T) {
	ledger := NewLedger()
	if _, err := ledger.BalanceOf(principal(1)); !errors.Is(err, errNilState) {
		t.Fatalf("expected errNilState, got %v", err)
	}
}
