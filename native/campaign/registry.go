package campaign

import (
	"math/big"

	"raisemoney/core/types"
)

// KickOff opens a new campaign for beneficiary with the supplied target and a
// deadline durationDays after the current time. Identifiers are allocated
// sequentially starting at 1.
func (e *Engine) KickOff(beneficiary types.Principal, target *big.Int, durationDays uint32) (uint64, error) {
	if err := e.requireState(); err != nil {
		return 0, err
	}
	if durationDays == 0 || durationDays > MaxDurationDays {
		return 0, ErrInvalidDuration
	}
	if target == nil || target.Sign() <= 0 {
		return 0, ErrInvalidTarget
	}
	if err := ValidateAmount(target); err != nil {
		return 0, ErrInvalidTarget
	}
	if beneficiary.IsZero() {
		return 0, ErrInvalidBeneficiary
	}
	id, err := e.state.CampaignNextID()
	if err != nil {
		return 0, err
	}
	now := e.now()
	c := &Campaign{
		ID:           id,
		Beneficiary:  beneficiary,
		Target:       cloneBigInt(target),
		Raised:       big.NewInt(0),
		CreatedAt:    now,
		DurationDays: durationDays,
		Deadline:     now + int64(durationDays)*SecondsPerDay,
		Status:       StatusUnsettled,
	}
	if err := e.state.CampaignPut(c); err != nil {
		return 0, err
	}
	e.emit(NewCreatedEvent(c))
	return id, nil
}

// GetCampaign returns a copy of the stored campaign.
func (e *Engine) GetCampaign(id uint64) (*Campaign, error) {
	c, err := e.loadCampaign(id)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// CampaignCount returns the number of campaigns created so far.
func (e *Engine) CampaignCount() (uint64, error) {
	if err := e.requireState(); err != nil {
		return 0, err
	}
	return e.state.CampaignCount()
}
