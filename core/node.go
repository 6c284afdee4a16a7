package core

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"raisemoney/core/clock"
	nodeerrors "raisemoney/core/errors"
	"raisemoney/core/events"
	"raisemoney/core/state"
	"raisemoney/core/types"
	"raisemoney/native/campaign"
	"raisemoney/native/token"
	"raisemoney/observability"
	telemetry "raisemoney/observability/otel"
	"raisemoney/storage"
)

var (
	ErrClockNotManual = nodeerrors.ErrClockNotManual
	ErrMintDisabled   = nodeerrors.ErrMintDisabled
)

// DefaultCustody is the principal holding campaign funds unless configured
// otherwise.
var DefaultCustody = deriveCustody("raisemoney/custody")

func deriveCustody(seed string) types.Principal {
	var p types.Principal
	copy(p[:], ethcrypto.Keccak256([]byte(seed))[12:])
	return p
}

// Options configures a Node.
type Options struct {
	Token         token.Metadata
	InitialSupply *big.Int
	Treasury      types.Principal
	Custody       types.Principal
	Clock         clock.Clock
	AllowMint     bool
	EventBacklog  int
	Logger        *slog.Logger
}

// Node owns the ledger state and serialises every operation against it. Each
// mutating call runs inside a state snapshot: it either commits to storage in
// full or leaves no trace.
type Node struct {
	stateMu sync.Mutex

	db        storage.Database
	state     *state.Manager
	engine    *campaign.Engine
	ledger    *token.Ledger
	gateway   *token.Gateway
	buffer    *events.Buffer
	bus       *events.Bus
	clock     clock.Clock
	allowMint bool

	logger  *slog.Logger
	metrics *observability.LedgerMetrics
	tracer  trace.Tracer
}

// NewNode wires the campaign engine and token ledger over db. On first start
// it registers the token and mints the initial supply to the treasury.
func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	custody := opts.Custody
	if custody.IsZero() {
		custody = DefaultCustody
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	n := &Node{
		db:        db,
		state:     state.NewManager(db),
		buffer:    &events.Buffer{},
		bus:       events.NewBus(opts.EventBacklog),
		clock:     clk,
		allowMint: opts.AllowMint,
		logger:    logger.With(slog.String("component", "node")),
		metrics:   observability.Ledger(),
		tracer:    telemetry.Tracer(),
	}

	n.ledger = token.NewLedger()
	n.ledger.SetState(n.state)
	n.ledger.SetEmitter(n.buffer)
	n.gateway = token.NewGateway(n.ledger, custody)

	n.engine = campaign.NewEngine()
	n.engine.SetState(n.state)
	n.engine.SetGateway(n.gateway)
	n.engine.SetEmitter(n.buffer)
	n.engine.SetNowFunc(clk.Now)

	if err := n.genesis(opts); err != nil {
		return nil, err
	}
	if err := n.resumeClock(); err != nil {
		return nil, err
	}
	if count, err := n.state.CampaignCount(); err == nil {
		n.metrics.SetCampaignCount(count)
	}
	return n, nil
}

func (n *Node) genesis(opts Options) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	_, registered, err := n.state.TokenMetadata()
	if err != nil {
		return fmt.Errorf("node: load token metadata: %w", err)
	}
	if registered {
		return nil
	}
	meta := opts.Token
	if meta.Symbol == "" {
		meta.Symbol = "MOBI"
	}
	if _, err := n.ledger.Init(meta); err != nil {
		n.state.Discard()
		return fmt.Errorf("node: register token: %w", err)
	}
	if opts.InitialSupply != nil && opts.InitialSupply.Sign() > 0 {
		if opts.Treasury.IsZero() {
			n.state.Discard()
			return fmt.Errorf("node: treasury required for initial supply")
		}
		if err := n.ledger.Mint(opts.Treasury, opts.InitialSupply); err != nil {
			n.state.Discard()
			return fmt.Errorf("node: mint initial supply: %w", err)
		}
	}
	n.buffer.Reset()
	if err := n.state.Commit(); err != nil {
		return fmt.Errorf("node: commit genesis: %w", err)
	}
	n.logger.Info("token registered",
		slog.String("symbol", meta.Symbol),
		slog.String("treasury", opts.Treasury.String()))
	return nil
}

// resumeClock keeps a manual clock from moving backwards across restarts: it
// resumes from the later of the persisted reading and the configured start.
func (n *Node) resumeClock() error {
	manual, ok := n.clock.(*clock.Manual)
	if !ok {
		return nil
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	saved, found, err := n.state.ManualClockTime()
	if err != nil {
		return fmt.Errorf("node: load clock: %w", err)
	}
	if found && saved > manual.Now() {
		if err := manual.Set(saved); err != nil {
			return fmt.Errorf("node: resume clock: %w", err)
		}
		n.logger.Info("clock resumed", slog.Int64("now", saved))
	}
	return n.persistClock(manual.Now())
}

func (n *Node) persistClock(now int64) error {
	if err := n.state.SetManualClockTime(now); err != nil {
		n.state.Discard()
		return fmt.Errorf("node: persist clock: %w", err)
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		return fmt.Errorf("node: persist clock: %w", err)
	}
	return nil
}

// Events returns the bus carrying committed events.
func (n *Node) Events() *events.Bus { return n.bus }

// Custody returns the principal that holds campaign funds. Contributors must
// approve it before giving.
func (n *Node) Custody() types.Principal { return n.gateway.Custody() }

// Now returns the ledger time in unix seconds.
func (n *Node) Now() int64 { return n.clock.Now() }

// ManualClock reports whether time travel is available.
func (n *Node) ManualClock() bool {
	_, ok := n.clock.(*clock.Manual)
	return ok
}

// AdvanceTime moves a manual clock forward and returns the new time. The
// reading is persisted before the clock moves.
func (n *Node) AdvanceTime(d time.Duration) (int64, error) {
	manual, ok := n.clock.(*clock.Manual)
	if !ok {
		return 0, ErrClockNotManual
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	now, err := manual.After(d)
	if err != nil {
		return 0, err
	}
	if err := n.persistClock(now); err != nil {
		return 0, err
	}
	if err := manual.Set(now); err != nil {
		return 0, err
	}
	n.logger.Info("clock advanced", slog.Int64("now", now), slog.Duration("by", d))
	return now, nil
}

// Close releases the underlying database.
func (n *Node) Close() {
	if n == nil || n.db == nil {
		return
	}
	n.db.Close()
}

// execute runs fn under the state lock inside a snapshot. Buffered events are
// published only if the operation commits.
func (n *Node) execute(ctx context.Context, operation string, attrs []attribute.KeyValue, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	_, span := n.tracer.Start(ctx, "ledger."+operation, trace.WithAttributes(attrs...))
	defer span.End()

	n.stateMu.Lock()
	snapshot := n.state.Snapshot()
	n.buffer.Reset()
	err := fn()
	writes := n.state.Pending()
	if err == nil {
		if commitErr := n.state.Commit(); commitErr != nil {
			err = fmt.Errorf("node: commit %s: %w", operation, commitErr)
		}
	}
	var published []*types.Event
	if err != nil {
		n.state.RevertToSnapshot(snapshot)
		n.buffer.Reset()
	} else {
		published = n.buffer.Drain()
		n.bus.Publish(published...)
		n.metrics.SetDroppedDeliveries(n.bus.Dropped())
	}
	n.stateMu.Unlock()

	kind := nodeerrors.Kind(err)
	n.metrics.Observe(operation, kind, err != nil, time.Since(start))
	n.metrics.RecordPublished(len(published))
	if err != nil {
		span.SetStatus(codes.Error, kind)
		span.RecordError(err)
		level := slog.LevelDebug
		if nodeerrors.Category(err) == campaign.CategoryInternal {
			level = slog.LevelWarn
		}
		n.logger.Log(ctx, level, "ledger operation failed",
			slog.String("operation", operation),
			slog.String("kind", kind),
			slog.String("error", err.Error()))
		return err
	}
	n.logger.Debug("ledger operation committed",
		slog.String("operation", operation),
		slog.Int("writes", writes),
		slog.Int("events", len(published)))
	return nil
}

func (n *Node) view(fn func() error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return fn()
}

func campaignAttr(id uint64) attribute.KeyValue {
	return attribute.String("campaign.id", strconv.FormatUint(id, 10))
}

// KickOff opens a campaign for beneficiary.
func (n *Node) KickOff(ctx context.Context, beneficiary types.Principal, target *big.Int, durationDays uint32) (uint64, error) {
	var id uint64
	err := n.execute(ctx, "kick_off", []attribute.KeyValue{
		attribute.String("beneficiary", beneficiary.String()),
		attribute.Int("duration_days", int(durationDays)),
	}, func() error {
		var err error
		id, err = n.engine.KickOff(beneficiary, target, durationDays)
		return err
	})
	if err != nil {
		return 0, err
	}
	n.metrics.SetCampaignCount(id)
	return id, nil
}

// Give credits amount from contributor to the campaign.
func (n *Node) Give(ctx context.Context, id uint64, contributor types.Principal, amount *big.Int) error {
	return n.execute(ctx, "give", []attribute.KeyValue{campaignAttr(id)}, func() error {
		return n.engine.Give(id, contributor, amount)
	})
}

// UndoGiving returns part of the contributor's entry.
func (n *Node) UndoGiving(ctx context.Context, id uint64, contributor types.Principal, amount *big.Int) error {
	return n.execute(ctx, "undo_giving", []attribute.KeyValue{campaignAttr(id)}, func() error {
		return n.engine.UndoGiving(id, contributor, amount)
	})
}

// Withdrawal pays the raised funds to the beneficiary.
func (n *Node) Withdrawal(ctx context.Context, id uint64, caller types.Principal) error {
	err := n.execute(ctx, "withdrawal", []attribute.KeyValue{campaignAttr(id)}, func() error {
		return n.engine.Withdrawal(id, caller)
	})
	if err == nil {
		n.metrics.RecordSettlement(campaign.StatusWithdrawn.String())
	}
	return err
}

// Refund returns every contribution of a campaign that missed its target.
func (n *Node) Refund(ctx context.Context, id uint64, caller types.Principal) error {
	err := n.execute(ctx, "refund", []attribute.KeyValue{campaignAttr(id)}, func() error {
		return n.engine.Refund(id, caller)
	})
	if err == nil {
		n.metrics.RecordSettlement(campaign.StatusRefunded.String())
	}
	return err
}

// GetCampaign returns a copy of the campaign.
func (n *Node) GetCampaign(id uint64) (*campaign.Campaign, error) {
	var out *campaign.Campaign
	err := n.view(func() error {
		var err error
		out, err = n.engine.GetCampaign(id)
		return err
	})
	return out, err
}

// CampaignCount returns the number of campaigns created.
func (n *Node) CampaignCount() (uint64, error) {
	var count uint64
	err := n.view(func() error {
		var err error
		count, err = n.engine.CampaignCount()
		return err
	})
	return count, err
}

// CheckSuccess reports whether the campaign met its target.
func (n *Node) CheckSuccess(id uint64) (bool, error) {
	var ok bool
	err := n.view(func() error {
		var err error
		ok, err = n.engine.CheckSuccess(id)
		return err
	})
	return ok, err
}

// TrackRaisedMoney returns the contributor's tracked entry.
func (n *Node) TrackRaisedMoney(id uint64, contributor types.Principal) (*big.Int, error) {
	var amount *big.Int
	err := n.view(func() error {
		var err error
		amount, err = n.engine.TrackRaisedMoney(id, contributor)
		return err
	})
	return amount, err
}

// GetBenefactors lists the campaign's contributors in first-contribution
// order.
func (n *Node) GetBenefactors(id uint64) ([]types.Principal, error) {
	var list []types.Principal
	err := n.view(func() error {
		var err error
		list, err = n.engine.GetBenefactors(id)
		return err
	})
	return list, err
}
