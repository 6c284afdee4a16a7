package core

import (
	"bytes"
	"context"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raisemoney/core/clock"
	"raisemoney/core/types"
	"raisemoney/native/campaign"
	"raisemoney/native/token"
	"raisemoney/storage"
)

const testStart = int64(1_700_000_000)

func principal(fill byte) types.Principal {
	var p types.Principal
	copy(p[:], bytes.Repeat([]byte{fill}, len(p)))
	return p
}

var (
	treasury    = principal(0xEE)
	beneficiary = principal(0x01)
	alice       = principal(0x0A)
	bob         = principal(0x0B)
)

func newTestNode(t *testing.T, db storage.Database) (*Node, *clock.Manual) {
	t.Helper()
	if db == nil {
		db = storage.NewMemDB()
	}
	manual := clock.NewManual(testStart)
	node, err := NewNode(db, Options{
		Token:         token.Metadata{Symbol: "mobi", Name: "MobiCoin", Decimals: 18},
		InitialSupply: big.NewInt(1_000_000),
		Treasury:      treasury,
		Clock:         manual,
		AllowMint:     true,
	})
	require.NoError(t, err)
	return node, manual
}

func fund(t *testing.T, node *Node, p types.Principal, amount int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, node.Transfer(ctx, treasury, p, big.NewInt(amount)))
	require.NoError(t, node.Approve(ctx, p, node.Custody(), big.NewInt(amount)))
}

func TestNodeGenesisIsIdempotent(t *testing.T) {
	db := storage.NewMemDB()
	node, _ := newTestNode(t, db)
	supply, err := node.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), supply.Int64())
	meta, err := node.TokenMetadata()
	require.NoError(t, err)
	assert.Equal(t, "MOBI", meta.Symbol)

	reopened, _ := newTestNode(t, db)
	supply, err = reopened.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), supply.Int64(), "genesis must only mint once")
}

func TestNodeGenesisRequiresTreasury(t *testing.T) {
	_, err := NewNode(storage.NewMemDB(), Options{InitialSupply: big.NewInt(10)})
	require.Error(t, err)
}

func TestNodeSuccessfulCampaign(t *testing.T) {
	node, manual := newTestNode(t, nil)
	ctx := context.Background()
	fund(t, node, alice, 500)
	fund(t, node, bob, 500)

	id, err := node.KickOff(ctx, beneficiary, big.NewInt(200), 29)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	require.NoError(t, node.Give(ctx, id, alice, big.NewInt(50)))
	require.NoError(t, node.Give(ctx, id, bob, big.NewInt(200)))
	ok, err := node.CheckSuccess(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ErrorIs(t, node.Give(ctx, id, alice, big.NewInt(1)), campaign.ErrTargetReached)

	custody, err := node.BalanceOf(node.Custody())
	require.NoError(t, err)
	assert.Equal(t, int64(250), custody.Int64())

	assert.ErrorIs(t, node.Withdrawal(ctx, id, beneficiary), campaign.ErrTooEarly)
	_, err = node.AdvanceTime(29 * 24 * time.Hour)
	require.NoError(t, err)
	assert.ErrorIs(t, node.Withdrawal(ctx, id, alice), campaign.ErrUnauthorized)
	require.NoError(t, node.Withdrawal(ctx, id, beneficiary))
	assert.ErrorIs(t, node.Withdrawal(ctx, id, beneficiary), campaign.ErrAlreadySettled)

	paid, err := node.BalanceOf(beneficiary)
	require.NoError(t, err)
	assert.Equal(t, int64(250), paid.Int64())
	assert.Equal(t, testStart+29*campaign.SecondsPerDay, manual.Now())
}

func TestNodeRefundReturnsBalances(t *testing.T) {
	node, _ := newTestNode(t, nil)
	ctx := context.Background()
	fund(t, node, alice, 300)
	fund(t, node, bob, 300)

	id, err := node.KickOff(ctx, beneficiary, big.NewInt(500), 3)
	require.NoError(t, err)
	require.NoError(t, node.Give(ctx, id, alice, big.NewInt(100)))
	require.NoError(t, node.Give(ctx, id, bob, big.NewInt(150)))

	_, err = node.AdvanceTime(4 * 24 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, node.Refund(ctx, id, bob))

	for _, p := range []types.Principal{alice, bob} {
		bal, err := node.BalanceOf(p)
		require.NoError(t, err)
		assert.Equal(t, int64(300), bal.Int64())
		tracked, err := node.TrackRaisedMoney(id, p)
		require.NoError(t, err)
		assert.Zero(t, tracked.Sign())
	}
	benefactors, err := node.GetBenefactors(id)
	require.NoError(t, err)
	assert.Equal(t, []types.Principal{alice, bob}, benefactors)
	custody, err := node.BalanceOf(node.Custody())
	require.NoError(t, err)
	assert.Zero(t, custody.Sign())
}

func TestNodeFailedGiveLeavesNoTrace(t *testing.T) {
	node, _ := newTestNode(t, nil)
	ctx := context.Background()
	require.NoError(t, node.Transfer(ctx, treasury, alice, big.NewInt(100)))
	id, err := node.KickOff(ctx, beneficiary, big.NewInt(500), 3)
	require.NoError(t, err)

	backlog, _, cancel := node.Events().Subscribe(node.Events().Sequence(), 8)
	defer cancel()
	require.Empty(t, backlog)

	err = node.Give(ctx, id, alice, big.NewInt(10))
	require.ErrorIs(t, err, campaign.ErrTransferFailed)
	require.ErrorIs(t, err, token.ErrInsufficientAllowance)

	bal, err := node.BalanceOf(alice)
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal.Int64())
	c, err := node.GetCampaign(id)
	require.NoError(t, err)
	assert.Zero(t, c.Raised.Sign())
	backlog, _, cancel2 := node.Events().Subscribe(0, 8)
	defer cancel2()
	for _, env := range backlog {
		assert.NotEqual(t, campaign.EventTypeContributed, env.Event.Type)
	}
}

func TestNodePublishesCommittedEvents(t *testing.T) {
	node, _ := newTestNode(t, nil)
	ctx := context.Background()
	fund(t, node, alice, 100)

	_, live, cancel := node.Events().Subscribe(node.Events().Sequence(), 16)
	defer cancel()

	id, err := node.KickOff(ctx, beneficiary, big.NewInt(50), 1)
	require.NoError(t, err)
	require.NoError(t, node.Give(ctx, id, alice, big.NewInt(20)))

	want := []string{campaign.EventTypeCampaignCreated, token.EventTypeTransfer, campaign.EventTypeContributed}
	var last uint64
	for _, eventType := range want {
		select {
		case env := <-live:
			assert.Equal(t, eventType, env.Event.Type)
			assert.Greater(t, env.Sequence, last)
			last = env.Sequence
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

func TestNodeTimeTravelRequiresManualClock(t *testing.T) {
	node, err := NewNode(storage.NewMemDB(), Options{})
	require.NoError(t, err)
	assert.False(t, node.ManualClock())
	_, err = node.AdvanceTime(time.Hour)
	assert.ErrorIs(t, err, ErrClockNotManual)
	assert.ErrorIs(t, node.Mint(context.Background(), alice, big.NewInt(1)), ErrMintDisabled)

	manualNode, _ := newTestNode(t, nil)
	_, err = manualNode.AdvanceTime(-time.Hour)
	assert.ErrorIs(t, err, clock.ErrBackwards)
}

func TestNodeSerialisesConcurrentGives(t *testing.T) {
	node, _ := newTestNode(t, nil)
	ctx := context.Background()
	contributors := make([]types.Principal, 8)
	for i := range contributors {
		contributors[i] = principal(byte(0x40 + i))
		fund(t, node, contributors[i], 1000)
	}
	id, err := node.KickOff(ctx, beneficiary, big.NewInt(1_000_000), 30)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, p := range contributors {
		wg.Add(1)
		go func(p types.Principal) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if err := node.Give(ctx, id, p, big.NewInt(10)); err != nil {
					t.Errorf("give: %v", err)
					return
				}
			}
		}(p)
	}
	wg.Wait()

	c, err := node.GetCampaign(id)
	require.NoError(t, err)
	sum := big.NewInt(0)
	for _, p := range contributors {
		tracked, err := node.TrackRaisedMoney(id, p)
		require.NoError(t, err)
		sum.Add(sum, tracked)
	}
	assert.Equal(t, 0, sum.Cmp(c.Raised))
	assert.Equal(t, int64(8*25*10), c.Raised.Int64())
}

func TestNodeStatePersistsAcrossRestart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	db, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	node, _ := newTestNode(t, db)
	ctx := context.Background()
	fund(t, node, alice, 100)
	id, err := node.KickOff(ctx, beneficiary, big.NewInt(80), 5)
	require.NoError(t, err)
	require.NoError(t, node.Give(ctx, id, alice, big.NewInt(30)))
	node.Close()

	db, err = storage.NewLevelDB(dir)
	require.NoError(t, err)
	restarted, _ := newTestNode(t, db)
	defer restarted.Close()
	count, err := restarted.CampaignCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	tracked, err := restarted.TrackRaisedMoney(id, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(30), tracked.Int64())
}

func TestNodeManualClockSurvivesRestart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	db, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	node, _ := newTestNode(t, db)
	ctx := context.Background()
	fund(t, node, alice, 100)
	id, err := node.KickOff(ctx, beneficiary, big.NewInt(80), 1)
	require.NoError(t, err)
	advanced, err := node.AdvanceTime(2 * campaign.SecondsPerDay * time.Second)
	require.NoError(t, err)
	node.Close()

	db, err = storage.NewLevelDB(dir)
	require.NoError(t, err)
	restarted, manual := newTestNode(t, db)
	defer restarted.Close()
	assert.Equal(t, advanced, manual.Now())
	assert.Equal(t, advanced, restarted.Now())
	assert.ErrorIs(t, restarted.Give(ctx, id, alice, big.NewInt(10)), campaign.ErrCampaignExpired)
}

func TestNodeManualClockStartsFromLaterConfiguredTime(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	db, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	node, _ := newTestNode(t, db)
	node.Close()

	db, err = storage.NewLevelDB(dir)
	require.NoError(t, err)
	later := testStart + 10*campaign.SecondsPerDay
	restarted, err := NewNode(db, Options{Clock: clock.NewManual(later)})
	require.NoError(t, err)
	defer restarted.Close()
	assert.Equal(t, later, restarted.Now())
}
