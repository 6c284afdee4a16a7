package core

import (
	"context"
	"math/big"

	"go.opentelemetry.io/otel/attribute"

	"raisemoney/core/types"
	"raisemoney/native/token"
)

// TokenMetadata returns the registered token metadata.
func (n *Node) TokenMetadata() (*token.Metadata, error) {
	var meta *token.Metadata
	err := n.view(func() error {
		var err error
		meta, err = n.ledger.Metadata()
		return err
	})
	return meta, err
}

// BalanceOf returns the token balance of p.
func (n *Node) BalanceOf(p types.Principal) (*big.Int, error) {
	var balance *big.Int
	err := n.view(func() error {
		var err error
		balance, err = n.ledger.BalanceOf(p)
		return err
	})
	return balance, err
}

// TotalSupply returns the minted token supply.
func (n *Node) TotalSupply() (*big.Int, error) {
	var supply *big.Int
	err := n.view(func() error {
		var err error
		supply, err = n.ledger.TotalSupply()
		return err
	})
	return supply, err
}

// Allowance returns the amount spender may move for owner.
func (n *Node) Allowance(owner, spender types.Principal) (*big.Int, error) {
	var allowance *big.Int
	err := n.view(func() error {
		var err error
		allowance, err = n.ledger.Allowance(owner, spender)
		return err
	})
	return allowance, err
}

// Approve sets the allowance owner grants spender.
func (n *Node) Approve(ctx context.Context, owner, spender types.Principal, amount *big.Int) error {
	return n.execute(ctx, "token_approve", []attribute.KeyValue{attribute.String("spender", spender.String())}, func() error {
		return n.ledger.Approve(owner, spender, amount)
	})
}

// Transfer moves tokens between principals.
func (n *Node) Transfer(ctx context.Context, from, to types.Principal, amount *big.Int) error {
	return n.execute(ctx, "token_transfer", nil, func() error {
		return n.ledger.Transfer(from, to, amount)
	})
}

// Mint creates new tokens. Only nodes configured with AllowMint accept it.
func (n *Node) Mint(ctx context.Context, to types.Principal, amount *big.Int) error {
	if !n.allowMint {
		return ErrMintDisabled
	}
	return n.execute(ctx, "token_mint", nil, func() error {
		return n.ledger.Mint(to, amount)
	})
}
