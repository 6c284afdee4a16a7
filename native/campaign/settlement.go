package campaign

import (
	"math/big"

	"raisemoney/core/types"
)

// CheckSuccess reports whether the campaign's raised amount meets its target.
func (e *Engine) CheckSuccess(id uint64) (bool, error) {
	c, err := e.loadCampaign(id)
	if err != nil {
		return false, err
	}
	return c.Successful(), nil
}

// Withdrawal pays the raised amount to the beneficiary once the deadline has
// been reached. It does not require the target to have been met: after the
// deadline the beneficiary may collect whatever was raised, and the first of
// Withdrawal or Refund to run settles the campaign for good. Contributors to a
// campaign that missed its target must therefore call Refund before the
// beneficiary withdraws.
//
// The campaign is marked withdrawn before the transfer is issued, so a
// re-entrant withdrawal or refund fails with ErrAlreadySettled. A failed
// transfer returns the campaign to the unsettled state.
func (e *Engine) Withdrawal(id uint64, caller types.Principal) error {
	if err := e.requireGateway(); err != nil {
		return err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	if caller != c.Beneficiary {
		return ErrUnauthorized
	}
	if !c.Ended(e.now()) {
		return ErrTooEarly
	}
	if c.Settled() {
		return ErrAlreadySettled
	}
	amount := cloneBigInt(c.Raised)
	c.Status = StatusWithdrawn
	if err := e.state.CampaignPut(c); err != nil {
		return err
	}
	if amount.Sign() > 0 {
		if err := e.gateway.TransferOut(c.Beneficiary, cloneBigInt(amount)); err != nil {
			if restoreErr := e.restoreStatus(id); restoreErr != nil {
				return restoreErr
			}
			return transferFailed(err)
		}
	}
	e.emit(NewWithdrawnEvent(c, amount))
	return nil
}

type refundPayout struct {
	contributor types.Principal
	amount      *big.Int
}

// Refund returns every contributor's entry after the deadline of a campaign
// that missed its target. Any caller may trigger the sweep. The campaign is
// marked refunded and each entry is zeroed before its transfer is issued.
//
// If a transfer fails the campaign returns to the unsettled state and only the
// failing contributor's entry is restored. Entries already paid out stay
// zeroed, so a later Refund pays each remaining contributor exactly once.
func (e *Engine) Refund(id uint64, caller types.Principal) error {
	if err := e.requireGateway(); err != nil {
		return err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	if !c.Ended(e.now()) {
		return ErrTooEarly
	}
	if c.Successful() {
		return ErrTargetAlreadyMet
	}
	if c.Settled() {
		return ErrAlreadySettled
	}
	c.Status = StatusRefunded
	if err := e.state.CampaignPut(c); err != nil {
		return err
	}
	benefactors, err := e.state.Benefactors(id)
	if err != nil {
		return e.abortRefund(id, nil, nil, err)
	}
	paid := make([]refundPayout, 0, len(benefactors))
	total := big.NewInt(0)
	for _, contributor := range benefactors {
		entry, _, err := e.loadContribution(id, contributor)
		if err != nil {
			return e.abortRefund(id, paid, nil, err)
		}
		if entry.Sign() == 0 {
			continue
		}
		pending := &refundPayout{contributor: contributor, amount: cloneBigInt(entry)}
		if err := e.state.ContributionPut(id, contributor, big.NewInt(0)); err != nil {
			return e.abortRefund(id, paid, nil, err)
		}
		c.Raised = new(big.Int).Sub(c.Raised, entry)
		if err := e.state.CampaignPut(c); err != nil {
			c.Raised = new(big.Int).Add(c.Raised, entry)
			if restoreErr := e.state.ContributionPut(id, contributor, cloneBigInt(entry)); restoreErr != nil {
				return restoreErr
			}
			return e.abortRefund(id, paid, nil, err)
		}
		if err := e.gateway.TransferOut(contributor, cloneBigInt(entry)); err != nil {
			return e.abortRefund(id, paid, pending, transferFailed(err))
		}
		paid = append(paid, *pending)
		total.Add(total, entry)
	}
	for _, payout := range paid {
		e.emit(NewRefundPaidEvent(c, payout.contributor, payout.amount))
	}
	e.emit(NewRefundedEvent(c, caller, total, len(paid)))
	return nil
}

// abortRefund returns the campaign to the unsettled state after a failed
// sweep, restores the entry of the contributor whose transfer failed and
// records the payouts that did complete. It returns cause.
func (e *Engine) abortRefund(id uint64, paid []refundPayout, failed *refundPayout, cause error) error {
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	if failed != nil {
		entry, _, err := e.loadContribution(id, failed.contributor)
		if err != nil {
			return err
		}
		if err := e.state.ContributionPut(id, failed.contributor, new(big.Int).Add(entry, failed.amount)); err != nil {
			return err
		}
		c.Raised = new(big.Int).Add(c.Raised, failed.amount)
	}
	c.Status = StatusUnsettled
	if err := e.state.CampaignPut(c); err != nil {
		return err
	}
	for _, payout := range paid {
		e.emit(NewRefundPaidEvent(c, payout.contributor, payout.amount))
	}
	return cause
}

func (e *Engine) restoreStatus(id uint64) error {
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	c.Status = StatusUnsettled
	return e.state.CampaignPut(c)
}
