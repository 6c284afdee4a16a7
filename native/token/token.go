package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"golang.org/x/text/unicode/norm"

	"raisemoney/core/events"
	"raisemoney/core/types"
)

var (
	ErrInvalidAmount         = errors.New("token: amount must be a positive 256-bit value")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrZeroAddress           = errors.New("token: zero address")
	ErrInvalidMetadata       = errors.New("token: invalid metadata")
	errNilState              = errors.New("token ledger: state not configured")
)

const (
	EventTypeTransfer = "token.transfer"
	EventTypeApproval = "token.approval"
	EventTypeMint     = "token.mint"
)

// Metadata describes the fungible token tracked by the ledger.
type Metadata struct {
	Symbol   string
	Name     string
	Decimals uint8
}

// NormalizeMetadata trims and canonicalises the metadata. Symbols are upper
// case NFKC strings of at most 12 characters.
func NormalizeMetadata(meta Metadata) (Metadata, error) {
	symbol := norm.NFKC.String(strings.ToUpper(strings.TrimSpace(meta.Symbol)))
	name := norm.NFKC.String(strings.TrimSpace(meta.Name))
	if symbol == "" || len([]rune(symbol)) > 12 {
		return Metadata{}, fmt.Errorf("%w: symbol %q", ErrInvalidMetadata, meta.Symbol)
	}
	if strings.ContainsAny(symbol, " \t\n") {
		return Metadata{}, fmt.Errorf("%w: symbol must not contain whitespace", ErrInvalidMetadata)
	}
	if name == "" {
		name = symbol
	}
	if meta.Decimals > 36 {
		return Metadata{}, fmt.Errorf("%w: decimals %d", ErrInvalidMetadata, meta.Decimals)
	}
	return Metadata{Symbol: symbol, Name: name, Decimals: meta.Decimals}, nil
}

type ledgerState interface {
	TokenMetadataPut(*Metadata) error
	TokenMetadata() (*Metadata, bool, error)
	TokenBalance(p types.Principal) (*big.Int, error)
	SetTokenBalance(p types.Principal, amount *big.Int) error
	TokenAllowance(owner, spender types.Principal) (*big.Int, error)
	SetTokenAllowance(owner, spender types.Principal, amount *big.Int) error
	TokenSupply() (*big.Int, error)
	SetTokenSupply(amount *big.Int) error
}

type tokenEvent struct {
	evt *types.Event
}

func (e tokenEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e tokenEvent) Event() *types.Event { return e.evt }

// Ledger implements a single fungible token with balances, allowances and a
// mintable supply.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
}

// NewLedger returns a ledger with a no-op emitter.
func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetEmitter configures the event emitter used by the ledger. Passing nil resets
// the emitter to a no-op implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(evt *types.Event) {
	if l == nil || l.emitter == nil || evt == nil {
		return
	}
	l.emitter.Emit(tokenEvent{evt: evt})
}

func (l *Ledger) requireState() error {
	if l == nil || l.state == nil {
		return errNilState
	}
	return nil
}

func validateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return ErrInvalidAmount
	}
	return nil
}

func checkedAdd(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(a, b)
	if _, overflow := uint256.FromBig(sum); overflow {
		return nil, ErrInvalidAmount
	}
	return sum, nil
}

// Init registers the token metadata when none is stored yet. Existing
// metadata is left unchanged.
func (l *Ledger) Init(meta Metadata) (*Metadata, error) {
	if err := l.requireState(); err != nil {
		return nil, err
	}
	existing, ok, err := l.state.TokenMetadata()
	if err != nil {
		return nil, err
	}
	if ok {
		return existing, nil
	}
	normalized, err := NormalizeMetadata(meta)
	if err != nil {
		return nil, err
	}
	if err := l.state.TokenMetadataPut(&normalized); err != nil {
		return nil, err
	}
	return &normalized, nil
}

// Metadata returns the registered token metadata.
func (l *Ledger) Metadata() (*Metadata, error) {
	if err := l.requireState(); err != nil {
		return nil, err
	}
	meta, ok, err := l.state.TokenMetadata()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: not registered", ErrInvalidMetadata)
	}
	return meta, nil
}

// BalanceOf returns the balance of p.
func (l *Ledger) BalanceOf(p types.Principal) (*big.Int, error) {
	if err := l.requireState(); err != nil {
		return nil, err
	}
	return l.state.TokenBalance(p)
}

// TotalSupply returns the total minted supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	if err := l.requireState(); err != nil {
		return nil, err
	}
	return l.state.TokenSupply()
}

// Allowance returns the amount spender may transfer on behalf of owner.
func (l *Ledger) Allowance(owner, spender types.Principal) (*big.Int, error) {
	if err := l.requireState(); err != nil {
		return nil, err
	}
	return l.state.TokenAllowance(owner, spender)
}

// Mint creates amount new tokens credited to the recipient.
func (l *Ledger) Mint(to types.Principal, amount *big.Int) error {
	if err := l.requireState(); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	supply, err := l.state.TokenSupply()
	if err != nil {
		return err
	}
	newSupply, err := checkedAdd(supply, amount)
	if err != nil {
		return err
	}
	balance, err := l.state.TokenBalance(to)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenSupply(newSupply); err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(to, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	l.emit(&types.Event{Type: EventTypeMint, Attributes: map[string]string{
		"to":     to.String(),
		"amount": amount.String(),
		"supply": newSupply.String(),
	}})
	return nil
}

// Approve sets the allowance granted by owner to spender. A zero amount
// revokes the allowance.
func (l *Ledger) Approve(owner, spender types.Principal, amount *big.Int) error {
	if err := l.requireState(); err != nil {
		return err
	}
	if owner.IsZero() || spender.IsZero() {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return ErrInvalidAmount
	}
	if err := l.state.SetTokenAllowance(owner, spender, amount); err != nil {
		return err
	}
	l.emit(&types.Event{Type: EventTypeApproval, Attributes: map[string]string{
		"owner":   owner.String(),
		"spender": spender.String(),
		"amount":  amount.String(),
	}})
	return nil
}

// Transfer moves amount from one principal to another.
func (l *Ledger) Transfer(from, to types.Principal, amount *big.Int) error {
	if err := l.requireState(); err != nil {
		return err
	}
	return l.move(from, to, amount)
}

// TransferFrom moves amount from owner to the recipient using the allowance
// owner granted to spender.
func (l *Ledger) TransferFrom(spender, owner, to types.Principal, amount *big.Int) error {
	if err := l.requireState(); err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	allowance, err := l.state.TokenAllowance(owner, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.move(owner, to, amount); err != nil {
		return err
	}
	return l.state.SetTokenAllowance(owner, spender, new(big.Int).Sub(allowance, amount))
}

func (l *Ledger) move(from, to types.Principal, amount *big.Int) error {
	if from.IsZero() || to.IsZero() {
		return ErrZeroAddress
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	fromBalance, err := l.state.TokenBalance(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from != to {
		toBalance, err := l.state.TokenBalance(to)
		if err != nil {
			return err
		}
		credited, err := checkedAdd(toBalance, amount)
		if err != nil {
			return err
		}
		if err := l.state.SetTokenBalance(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
			return err
		}
		if err := l.state.SetTokenBalance(to, credited); err != nil {
			return err
		}
	}
	l.emit(&types.Event{Type: EventTypeTransfer, Attributes: map[string]string{
		"from":   from.String(),
		"to":     to.String(),
		"amount": amount.String(),
	}})
	return nil
}
