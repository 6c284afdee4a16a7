package state

import (
	"fmt"
	"math/big"

	"raisemoney/core/types"
	"raisemoney/native/token"
)

var (
	tokenMetadataKey     = []byte("token/metadata")
	tokenSupplyKey       = []byte("token/supply")
	tokenBalancePrefix   = []byte("token/balance/")
	tokenAllowancePrefix = []byte("token/allowance/")
)

type storedTokenMetadata struct {
	Symbol   string
	Name     string
	Decimals uint8
}

func tokenBalanceKey(p types.Principal) []byte {
	return append(append([]byte(nil), tokenBalancePrefix...), p[:]...)
}

func tokenAllowanceKey(owner, spender types.Principal) []byte {
	key := append(append([]byte(nil), tokenAllowancePrefix...), owner[:]...)
	return append(key, spender[:]...)
}

// TokenMetadataPut stores the token's descriptive metadata.
func (m *Manager) TokenMetadataPut(meta *token.Metadata) error {
	if meta == nil {
		return fmt.Errorf("token: nil metadata")
	}
	return m.KVPut(tokenMetadataKey, &storedTokenMetadata{Symbol: meta.Symbol, Name: meta.Name, Decimals: meta.Decimals})
}

// TokenMetadata loads the token metadata if it has been registered.
func (m *Manager) TokenMetadata() (*token.Metadata, bool, error) {
	stored := new(storedTokenMetadata)
	ok, err := m.KVGet(tokenMetadataKey, stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &token.Metadata{Symbol: stored.Symbol, Name: stored.Name, Decimals: stored.Decimals}, true, nil
}

// TokenBalance returns the balance held by p.
func (m *Manager) TokenBalance(p types.Principal) (*big.Int, error) {
	return m.loadBigInt(tokenBalanceKey(p))
}

// SetTokenBalance overwrites the balance held by p.
func (m *Manager) SetTokenBalance(p types.Principal, amount *big.Int) error {
	return m.writeBigInt(tokenBalanceKey(p), amount)
}

// TokenAllowance returns how much spender may move on behalf of owner.
func (m *Manager) TokenAllowance(owner, spender types.Principal) (*big.Int, error) {
	return m.loadBigInt(tokenAllowanceKey(owner, spender))
}

// SetTokenAllowance overwrites the allowance granted by owner to spender.
func (m *Manager) SetTokenAllowance(owner, spender types.Principal, amount *big.Int) error {
	return m.writeBigInt(tokenAllowanceKey(owner, spender), amount)
}

// TokenSupply returns the total minted supply.
func (m *Manager) TokenSupply() (*big.Int, error) {
	return m.loadBigInt(tokenSupplyKey)
}

// SetTokenSupply overwrites the total supply.
func (m *Manager) SetTokenSupply(amount *big.Int) error {
	return m.writeBigInt(tokenSupplyKey, amount)
}
