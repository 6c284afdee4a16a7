package campaign

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"raisemoney/core/events"
	"raisemoney/core/types"
)

var (
	errNilState   = errors.New("campaign engine: state not configured")
	errNilGateway = errors.New("campaign engine: token gateway not configured")
)

type engineState interface {
	CampaignNextID() (uint64, error)
	CampaignCount() (uint64, error)
	CampaignPut(*Campaign) error
	CampaignGet(id uint64) (*Campaign, bool, error)
	ContributionGet(id uint64, contributor types.Principal) (*big.Int, bool, error)
	ContributionPut(id uint64, contributor types.Principal, amount *big.Int) error
	BenefactorsAppend(id uint64, contributor types.Principal) error
	Benefactors(id uint64) ([]types.Principal, error)
}

type campaignEvent struct {
	evt *types.Event
}

func (e campaignEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e campaignEvent) Event() *types.Event { return e.evt }

// Engine implements the campaign registry, contribution ledger and settlement
// state machine on top of an external state backend and token gateway.
//
// Engine holds no locks. Every external transfer is ordered so that a gateway
// calling back into the engine observes consistent state: outward transfers
// happen after the ledger has been updated, inward transfers before.
type Engine struct {
	state   engineState
	gateway TokenGateway
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a campaign engine with a no-op emitter and the system
// clock. State and gateway must be configured before use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetGateway configures the collaborator that moves funds in and out of
// custody.
func (e *Engine) SetGateway(gateway TokenGateway) { e.gateway = gateway }

// SetNowFunc overrides the time source used by the engine. Passing nil
// restores the system clock.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(campaignEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) requireState() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) requireGateway() error {
	if err := e.requireState(); err != nil {
		return err
	}
	if e.gateway == nil {
		return errNilGateway
	}
	return nil
}

func (e *Engine) loadCampaign(id uint64) (*Campaign, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	c, ok, err := e.state.CampaignGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || c == nil {
		return nil, ErrNotFound
	}
	if c.Target == nil {
		c.Target = big.NewInt(0)
	}
	if c.Raised == nil {
		c.Raised = big.NewInt(0)
	}
	return c, nil
}

func (e *Engine) loadContribution(id uint64, contributor types.Principal) (*big.Int, bool, error) {
	amount, ok, err := e.state.ContributionGet(id, contributor)
	if err != nil {
		return nil, false, err
	}
	if !ok || amount == nil {
		return big.NewInt(0), ok, nil
	}
	return amount, true, nil
}

// ValidateAmount checks that amount is a positive value representable as an
// unsigned 256-bit integer.
func ValidateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return ErrInvalidAmount
	}
	return nil
}

func addWithinRange(a, b *big.Int) (*big.Int, error) {
	x, overflow := uint256.FromBig(cloneBigInt(a))
	if overflow {
		return nil, ErrInvalidAmount
	}
	y, overflow := uint256.FromBig(cloneBigInt(b))
	if overflow {
		return nil, ErrInvalidAmount
	}
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrInvalidAmount
	}
	return sum.ToBig(), nil
}

func transferFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrTransferFailed, err)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
