package campaign

import (
	"fmt"
	"math/big"
	"strings"

	"raisemoney/core/types"
)

const (
	// MaxDurationDays bounds the fundraising window accepted by KickOff.
	MaxDurationDays = 30
	// SecondsPerDay converts a duration expressed in days to a deadline offset.
	SecondsPerDay = 24 * 60 * 60
)

// SettlementStatus represents the terminal state machine of a campaign.
type SettlementStatus uint8

const (
	StatusUnsettled SettlementStatus = iota
	StatusWithdrawn
	StatusRefunded
)

// Valid reports whether the status value is within the supported range.
func (s SettlementStatus) Valid() bool {
	switch s {
	case StatusUnsettled, StatusWithdrawn, StatusRefunded:
		return true
	default:
		return false
	}
}

func (s SettlementStatus) String() string {
	switch s {
	case StatusUnsettled:
		return "unsettled"
	case StatusWithdrawn:
		return "withdrawn"
	case StatusRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// parseStatus converts the textual form produced by String back to a status.
func parseStatus(raw string) (SettlementStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "unsettled":
		return StatusUnsettled, nil
	case "withdrawn":
		return StatusWithdrawn, nil
	case "refunded":
		return StatusRefunded, nil
	default:
		return 0, fmt.Errorf("campaign: unknown status %q", raw)
	}
}

// Campaign captures a single fundraising effort. Beneficiary, Target and
// Deadline are fixed at creation; Raised always equals the sum of the
// campaign's contribution entries.
type Campaign struct {
	ID           uint64
	Beneficiary  types.Principal
	Target       *big.Int
	Raised       *big.Int
	CreatedAt    int64
	DurationDays uint32
	Deadline     int64
	Status       SettlementStatus
}

// Clone returns a deep copy of the campaign so callers can safely mutate the
// copy without affecting the stored instance.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Target = cloneBigInt(c.Target)
	clone.Raised = cloneBigInt(c.Raised)
	return &clone
}

// Settled reports whether the campaign reached a terminal status.
func (c *Campaign) Settled() bool {
	return c != nil && c.Status != StatusUnsettled
}

// Successful reports whether the raised amount meets the target.
func (c *Campaign) Successful() bool {
	if c == nil || c.Target == nil {
		return false
	}
	raised := c.Raised
	if raised == nil {
		raised = big.NewInt(0)
	}
	return raised.Cmp(c.Target) >= 0
}

// Expired reports whether now is strictly past the deadline.
func (c *Campaign) Expired(now int64) bool {
	return c != nil && now > c.Deadline
}

// Ended reports whether the deadline has been reached.
func (c *Campaign) Ended(now int64) bool {
	return c != nil && now >= c.Deadline
}
