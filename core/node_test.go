package core

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	stakeerrors "stakebadge/core/errors"
	"stakebadge/core/events"
	"stakebadge/crypto"
	"stakebadge/native/badge"
	"stakebadge/storage"
)

const (
	testBaseURI = "ipfs://123456789/"
	testGenesis = int64(1_700_000_000)
	day         = 24 * time.Hour
)

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(e events.Event) {
	r.events = append(r.events, e)
}

func (r *recordingEmitter) types() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

func nodeAddr(index byte) [20]byte {
	var out [20]byte
	out[0] = 0x11
	out[19] = index
	return out
}

func testOptions(allocs ...Allocation) Options {
	return Options{
		AssetSymbol: "lp",
		BaseURI:     testBaseURI,
		Operator:    nodeAddr(0xD0),
		Allocations: allocs,
		Clock:       func() int64 { return testGenesis },
	}
}

func newTestNode(t *testing.T, db storage.Database, allocs ...Allocation) *Node {
	t.Helper()
	node, err := NewNode(db, testOptions(allocs...))
	require.NoError(t, err)
	return node
}

func TestNewNodeGenesis(t *testing.T) {
	user := nodeAddr(1)
	db := storage.NewMemDB()
	node := newTestNode(t, db, Allocation{Address: user, Amount: big.NewInt(999999999999999999)})

	require.Equal(t, crypto.ModuleAddress(VaultModule), node.Vault())
	owner, err := node.registry.Owner()
	require.NoError(t, err)
	require.Equal(t, node.Vault(), owner)

	balance, err := node.TokenBalance(user)
	require.NoError(t, err)
	require.Equal(t, "999999999999999999", balance.String())
	require.Zero(t, node.state.Pending())
	require.NoError(t, node.Audit())
}

func TestNewNodeRequiresOperatorOnFreshState(t *testing.T) {
	opts := testOptions()
	opts.Operator = [20]byte{}
	_, err := NewNode(storage.NewMemDB(), opts)
	require.ErrorIs(t, err, ErrOperatorRequired)
}

func TestNodeRejectsForeignRegistryOwner(t *testing.T) {
	db := storage.NewMemDB()
	node := newTestNode(t, db)
	require.NoError(t, node.registry.TransferOwnership(node.Vault(), nodeAddr(0x99)))
	require.NoError(t, node.state.Commit())

	_, err := NewNode(db, testOptions())
	require.ErrorIs(t, err, ErrVaultNotOwner)
}

func TestNodeClaimFlow(t *testing.T) {
	ctx := context.Background()
	user := nodeAddr(1)
	node := newTestNode(t, storage.NewMemDB(), Allocation{Address: user, Amount: big.NewInt(500)})
	sink := &recordingEmitter{}
	node.Subscribe(sink)

	require.NoError(t, node.Approve(ctx, user, big.NewInt(500)))
	pos, err := node.Stake(ctx, user, big.NewInt(500))
	require.NoError(t, err)
	require.Equal(t, uint64(testGenesis), pos.StakedAt)

	node.AdvanceTime(30 * day)
	require.Equal(t, testGenesis+int64((30*day)/time.Second), node.Now())
	claim, err := node.ClaimReward(ctx, user)
	require.NoError(t, err)
	require.Equal(t, uint8(3), claim.Tier)
	require.Equal(t, testBaseURI+"3", claim.URI)

	uri, err := node.BadgeURI(claim.BadgeID)
	require.NoError(t, err)
	require.Equal(t, claim.URI, uri)
	holder, err := node.BadgeOwner(claim.BadgeID)
	require.NoError(t, err)
	require.Equal(t, user, holder)

	_, err = node.ClaimReward(ctx, user)
	require.ErrorIs(t, err, stakeerrors.ErrAlreadyAtMaxTier)

	require.Equal(t, []string{
		events.TypeApproval,
		events.TypeTransfer,
		events.TypeStaked,
		events.TypeBadgeMinted,
		events.TypeRewardClaimed,
	}, sink.types())
	require.NoError(t, node.Audit())
}

func TestNodeDiscardsFailedOperation(t *testing.T) {
	ctx := context.Background()
	user := nodeAddr(1)
	db := storage.NewMemDB()
	node := newTestNode(t, db, Allocation{Address: user, Amount: big.NewInt(1000)})
	sink := &recordingEmitter{}
	node.Subscribe(sink)
	keys := db.Len()

	_, err := node.Stake(ctx, user, big.NewInt(1000))
	require.ErrorIs(t, err, stakeerrors.ErrInsufficientAllowance)
	require.Empty(t, sink.events)
	require.Equal(t, keys, db.Len())
	require.Zero(t, node.state.Pending())

	total, err := node.TotalStaked()
	require.NoError(t, err)
	require.Zero(t, total.Sign())
	balance, err := node.TokenBalance(user)
	require.NoError(t, err)
	require.Equal(t, int64(1000), balance.Int64())
}

func TestNodeHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	node := newTestNode(t, storage.NewMemDB())
	_, err := node.Stake(ctx, nodeAddr(1), big.NewInt(1))
	require.ErrorIs(t, err, context.Canceled)
}

func TestNodeEligibilityFollowsClock(t *testing.T) {
	ctx := context.Background()
	user := nodeAddr(1)
	node := newTestNode(t, storage.NewMemDB(), Allocation{Address: user, Amount: big.NewInt(500)})
	require.NoError(t, node.Approve(ctx, user, big.NewInt(500)))
	_, err := node.Stake(ctx, user, big.NewInt(500))
	require.NoError(t, err)

	node.SetTime(testGenesis + 15*86400)
	report, err := node.Eligibility(user)
	require.NoError(t, err)
	require.Equal(t, uint8(1), report.Claimable)
	require.Equal(t, uint64(testGenesis+20*86400), report.NextTierAt)
}

func TestNodeTransferAndWithdraw(t *testing.T) {
	ctx := context.Background()
	alice, bob := nodeAddr(1), nodeAddr(2)
	node := newTestNode(t, storage.NewMemDB(), Allocation{Address: alice, Amount: big.NewInt(800)})

	require.NoError(t, node.Transfer(ctx, alice, bob, big.NewInt(300)))
	require.NoError(t, node.Approve(ctx, bob, big.NewInt(300)))
	allowance, err := node.Allowance(bob)
	require.NoError(t, err)
	require.Equal(t, int64(300), allowance.Int64())

	_, err = node.Stake(ctx, bob, big.NewInt(300))
	require.NoError(t, err)
	_, err = node.Withdraw(ctx, bob, big.NewInt(301))
	require.ErrorIs(t, err, stakeerrors.ErrInsufficientBalance)
	pos, err := node.Withdraw(ctx, bob, big.NewInt(300))
	require.NoError(t, err)
	require.Zero(t, pos.Balance.Sign())

	balance, err := node.TokenBalance(bob)
	require.NoError(t, err)
	require.Equal(t, int64(300), balance.Int64())
}

func TestNodeStatePersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "pool")
	user := nodeAddr(1)
	alloc := Allocation{Address: user, Amount: big.NewInt(500)}

	db, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	node := newTestNode(t, db, alloc)
	require.NoError(t, node.Approve(ctx, user, big.NewInt(500)))
	_, err = node.Stake(ctx, user, big.NewInt(500))
	require.NoError(t, err)
	node.AdvanceTime(15 * day)
	first, err := node.ClaimReward(ctx, user)
	require.NoError(t, err)
	db.Close()

	db, err = storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer db.Close()
	restarted := newTestNode(t, db, alloc)

	balance, err := restarted.TokenBalance(user)
	require.NoError(t, err)
	require.Zero(t, balance.Sign(), "genesis allocations must not be minted twice")
	pos, err := restarted.Position(user)
	require.NoError(t, err)
	require.Equal(t, int64(500), pos.Balance.Int64())
	require.Equal(t, uint8(1), pos.Tier)
	require.Equal(t, first.BadgeID, pos.BadgeID)

	restarted.SetTime(testGenesis + 25*86400)
	second, err := restarted.ClaimReward(ctx, user)
	require.NoError(t, err)
	require.Equal(t, uint8(2), second.Tier)
	_, err = restarted.BadgeOwner(first.BadgeID)
	require.ErrorIs(t, err, badge.ErrBadgeNotFound)
	require.NoError(t, restarted.Audit())
}

func TestOutcomeLabels(t *testing.T) {
	require.Equal(t, "ok", outcome(nil))
	require.Equal(t, "zero_amount", outcome(stakeerrors.ErrZeroStakeAmount))
	require.Equal(t, "tier_not_yet_reached", outcome(stakeerrors.ErrTierNotYetReached))
	require.Equal(t, "unauthorized", outcome(badge.ErrUnauthorized))
	require.Equal(t, "error", outcome(ErrVaultNotOwner))
}

type readingSubscriber struct {
	node   *Node
	totals []string
}

func (r *readingSubscriber) Emit(e events.Event) {
	if e.EventType() != events.TypeStaked {
		return
	}
	total, err := r.node.TotalStaked()
	if err != nil {
		r.totals = append(r.totals, err.Error())
		return
	}
	r.totals = append(r.totals, total.String())
}

func TestSubscriberMayQueryNode(t *testing.T) {
	ctx := context.Background()
	user := nodeAddr(1)
	node := newTestNode(t, storage.NewMemDB(), Allocation{Address: user, Amount: big.NewInt(1000)})
	sub := &readingSubscriber{node: node}
	node.Subscribe(sub)
	require.NoError(t, node.Approve(ctx, user, big.NewInt(1000)))

	done := make(chan error, 1)
	go func() {
		_, err := node.Stake(ctx, user, big.NewInt(400))
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stake did not return while a subscriber read node state")
	}
	require.Equal(t, []string{"400"}, sub.totals)
}

func TestAdvanceTimeAccumulatesSubSecondSteps(t *testing.T) {
	node := newTestNode(t, storage.NewMemDB())
	node.AdvanceTime(500 * time.Millisecond)
	require.Equal(t, testGenesis, node.Now())
	node.AdvanceTime(500 * time.Millisecond)
	require.Equal(t, testGenesis+1, node.Now())
	node.AdvanceTime(day)
	require.Equal(t, testGenesis+1+86400, node.Now())
}
