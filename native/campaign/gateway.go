package campaign

import (
	"math/big"

	"raisemoney/core/types"
)

// TokenGateway moves funds between principals and ledger custody. Either
// method may fail; implementations may also call back into the engine before
// returning.
type TokenGateway interface {
	// TransferInto moves amount from the principal's balance into custody.
	// The principal must have authorised custody beforehand.
	TransferInto(from types.Principal, amount *big.Int) error
	// TransferOut moves amount from custody to the principal.
	TransferOut(to types.Principal, amount *big.Int) error
}

// BalanceReader exposes external balances to callers and tests.
type BalanceReader interface {
	BalanceOf(p types.Principal) (*big.Int, error)
}
