package token

import (
	"errors"
	"math/big"

	"raisemoney/core/types"
)

var errNilLedger = errors.New("token gateway: ledger not configured")

// Gateway moves campaign funds between contributors and a custody principal
// held by the node. Pulling funds into custody requires the contributor to
// have approved the custody principal beforehand.
type Gateway struct {
	ledger  *Ledger
	custody types.Principal
}

// NewGateway binds the ledger to the custody principal.
func NewGateway(ledger *Ledger, custody types.Principal) *Gateway {
	return &Gateway{ledger: ledger, custody: custody}
}

// Custody returns the principal holding campaign funds.
func (g *Gateway) Custody() types.Principal { return g.custody }

// TransferInto pulls amount from the contributor into custody.
func (g *Gateway) TransferInto(from types.Principal, amount *big.Int) error {
	if g == nil || g.ledger == nil {
		return errNilLedger
	}
	return g.ledger.TransferFrom(g.custody, from, g.custody, amount)
}

// TransferOut pays amount from custody to the recipient.
func (g *Gateway) TransferOut(to types.Principal, amount *big.Int) error {
	if g == nil || g.ledger == nil {
		return errNilLedger
	}
	return g.ledger.Transfer(g.custody, to, amount)
}

// BalanceOf returns the token balance of p.
func (g *Gateway) BalanceOf(p types.Principal) (*big.Int, error) {
	if g == nil || g.ledger == nil {
		return nil, errNilLedger
	}
	return g.ledger.BalanceOf(p)
}
