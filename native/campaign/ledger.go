package campaign

import (
	"math/big"

	"raisemoney/core/types"
)

// Give pulls amount from contributor into custody and credits it to the
// campaign. The ledger is only updated once the gateway has accepted the
// transfer, so a gateway re-entering the engine during TransferInto sees the
// pre-contribution state.
//
// Eligibility is re-evaluated on every call: a campaign that dropped back
// below its target after UndoGiving accepts contributions again.
func (e *Engine) Give(id uint64, contributor types.Principal, amount *big.Int) error {
	if err := e.requireGateway(); err != nil {
		return err
	}
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	if c.Expired(e.now()) {
		return ErrCampaignExpired
	}
	if c.Successful() {
		return ErrTargetReached
	}
	if c.Settled() {
		return ErrAlreadySettled
	}
	if _, err := addWithinRange(c.Raised, amount); err != nil {
		return err
	}

	value := cloneBigInt(amount)
	if err := e.gateway.TransferInto(contributor, value); err != nil {
		return transferFailed(err)
	}

	// The gateway may have re-entered; commit against fresh state.
	c, err = e.loadCampaign(id)
	if err != nil {
		return err
	}
	if c.Settled() {
		if err := e.gateway.TransferOut(contributor, cloneBigInt(value)); err != nil {
			return transferFailed(err)
		}
		return ErrAlreadySettled
	}
	entry, existed, err := e.loadContribution(id, contributor)
	if err != nil {
		return err
	}
	raised, err := addWithinRange(c.Raised, value)
	if err != nil {
		return err
	}
	updated, err := addWithinRange(entry, value)
	if err != nil {
		return err
	}
	if err := e.state.ContributionPut(id, contributor, updated); err != nil {
		return err
	}
	if !existed {
		if err := e.state.BenefactorsAppend(id, contributor); err != nil {
			return err
		}
	}
	c.Raised = raised
	if err := e.state.CampaignPut(c); err != nil {
		return err
	}
	e.emit(NewContributedEvent(c, contributor, value, updated))
	return nil
}

// UndoGiving returns amount of the contributor's entry from custody. The entry
// and the campaign total are reduced before TransferOut is issued; a failed
// transfer restores both.
func (e *Engine) UndoGiving(id uint64, contributor types.Principal, amount *big.Int) error {
	if err := e.requireGateway(); err != nil {
		return err
	}
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	if c.Settled() {
		return ErrAlreadySettled
	}
	entry, _, err := e.loadContribution(id, contributor)
	if err != nil {
		return err
	}
	if entry.Cmp(amount) < 0 {
		return ErrInsufficientContribution
	}
	value := cloneBigInt(amount)
	remaining := new(big.Int).Sub(entry, value)
	if err := e.state.ContributionPut(id, contributor, remaining); err != nil {
		return err
	}
	c.Raised = new(big.Int).Sub(c.Raised, value)
	if err := e.state.CampaignPut(c); err != nil {
		return err
	}

	if err := e.gateway.TransferOut(contributor, cloneBigInt(value)); err != nil {
		if restoreErr := e.restoreContribution(id, contributor, value); restoreErr != nil {
			return restoreErr
		}
		return transferFailed(err)
	}
	e.emit(NewContributionUndoneEvent(c, contributor, value, remaining))
	return nil
}

// restoreContribution adds amount back to the contributor's entry and the
// campaign total. It reloads both so changes made by a re-entrant gateway
// are preserved.
func (e *Engine) restoreContribution(id uint64, contributor types.Principal, amount *big.Int) error {
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	entry, _, err := e.loadContribution(id, contributor)
	if err != nil {
		return err
	}
	if err := e.state.ContributionPut(id, contributor, new(big.Int).Add(entry, amount)); err != nil {
		return err
	}
	c.Raised = new(big.Int).Add(c.Raised, amount)
	return e.state.CampaignPut(c)
}

// TrackRaisedMoney returns the amount currently tracked for contributor. Unknown
// campaigns and contributors yield zero.
func (e *Engine) TrackRaisedMoney(id uint64, contributor types.Principal) (*big.Int, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	amount, _, err := e.loadContribution(id, contributor)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(amount), nil
}

// GetBenefactors lists every principal that ever held a non-zero entry, in
// order of first contribution. Principals whose entries were later zeroed
// remain in the list.
func (e *Engine) GetBenefactors(id uint64) ([]types.Principal, error) {
	if _, err := e.loadCampaign(id); err != nil {
		return nil, err
	}
	list, err := e.state.Benefactors(id)
	if err != nil {
		return nil, err
	}
	out := make([]types.Principal, len(list))
	copy(out, list)
	return out, nil
}
