package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	stakeerrors "stakebadge/core/errors"
	"stakebadge/core/events"
	"stakebadge/core/state"
	"stakebadge/crypto"
	"stakebadge/native/asset"
	"stakebadge/native/badge"
	"stakebadge/native/staking"
	"stakebadge/observability/metrics"
	stakeotel "stakebadge/observability/otel"
	"stakebadge/storage"
)

// VaultModule names the module account that custodies deposits and owns the
// badge registry.
const VaultModule = "staking"

var (
	ErrOperatorRequired = errors.New("core: operator address required to initialise a fresh pool")
	ErrVaultNotOwner    = errors.New("core: badge registry is not owned by the staking vault")
)

// Allocation is a genesis balance of the deposit asset.
type Allocation struct {
	Address [20]byte
	Amount  *big.Int
}

// Options configures a Node. Zero values fall back to defaults.
type Options struct {
	AssetSymbol string
	BaseURI     string
	Params      staking.TierParams
	// Operator deploys the badge registry and hands ownership to the vault
	// during genesis.
	Operator    [20]byte
	Allocations []Allocation
	Clock       func() int64
	Logger      *slog.Logger
	Metrics     *metrics.StakingMetrics
}

// Node is the central controller, wiring all components together. Calls are
// serialized by stateMu; each mutating call is committed to the database on
// success and discarded on failure.
type Node struct {
	db       storage.Database
	state    *state.Manager
	token    *asset.Token
	registry *badge.Registry
	engine   *staking.Engine
	vault    [20]byte

	buffer      *events.Buffer
	subscribers []events.Emitter

	logger  *slog.Logger
	metrics *metrics.StakingMetrics
	tracer  trace.Tracer

	stateMu  sync.Mutex
	clock    func() int64
	offset   time.Duration
	callTime int64
}

func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, errors.New("core: database required")
	}
	if opts.Params == (staking.TierParams{}) {
		opts.Params = staking.DefaultTierParams()
	}
	if strings.TrimSpace(opts.AssetSymbol) == "" {
		opts.AssetSymbol = "LP"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() int64 { return time.Now().Unix() }
	}

	st := state.NewManager(db)
	n := &Node{
		db:       db,
		state:    st,
		token:    asset.NewToken(st, opts.AssetSymbol),
		registry: badge.NewRegistry(st),
		vault:    crypto.ModuleAddress(VaultModule),
		buffer:   &events.Buffer{},
		logger:   logger.With(slog.String("component", "pool")),
		metrics:  opts.Metrics,
		tracer:   stakeotel.Tracer(),
		clock:    clock,
	}
	engine, err := staking.NewEngine(st, asset.NewCustodian(n.token, n.vault), n.registry, n.vault, opts.Params)
	if err != nil {
		return nil, err
	}
	engine.SetNowFunc(func() int64 { return n.callTime })
	n.engine = engine

	if err := n.genesis(opts); err != nil {
		st.Discard()
		return nil, err
	}

	n.token.SetEmitter(n.buffer)
	n.registry.SetEmitter(n.buffer)
	n.engine.SetEmitter(n.buffer)
	n.metrics.InitTiers(opts.Params.MaxTier)
	n.refreshGauges()

	n.logger.Info("Pool ready",
		slog.String("vault", crypto.FormatAddress(n.vault)),
		slog.String("asset", n.token.Symbol()),
		slog.Uint64("maxTier", uint64(opts.Params.MaxTier)),
		slog.Uint64("unitSeconds", opts.Params.UnitSeconds))
	return n, nil
}

// genesis initialises a fresh database: the operator deploys the registry,
// hands it to the vault and the configured allocations are minted. An
// existing database is only checked for the vault's ownership.
func (n *Node) genesis(opts Options) error {
	initialized, err := n.registry.Initialized()
	if err != nil {
		return err
	}
	if initialized {
		owner, err := n.registry.Owner()
		if err != nil {
			return err
		}
		if owner != n.vault {
			return fmt.Errorf("%w: owner %s", ErrVaultNotOwner, crypto.FormatAddress(owner))
		}
		return nil
	}
	var zero [20]byte
	if opts.Operator == zero {
		return ErrOperatorRequired
	}
	if err := n.registry.Init(opts.Operator, opts.BaseURI); err != nil {
		return fmt.Errorf("init badge registry: %w", err)
	}
	if err := n.registry.TransferOwnership(opts.Operator, n.vault); err != nil {
		return fmt.Errorf("hand registry to vault: %w", err)
	}
	for _, alloc := range opts.Allocations {
		if err := n.token.Mint(alloc.Address, alloc.Amount); err != nil {
			return fmt.Errorf("allocate %s: %w", crypto.FormatAddress(alloc.Address), err)
		}
	}
	if err := n.state.Commit(); err != nil {
		return fmt.Errorf("commit genesis: %w", err)
	}
	n.logger.Info("Initialised pool state",
		slog.String("operator", crypto.FormatAddress(opts.Operator)),
		slog.Int("allocations", len(opts.Allocations)))
	return nil
}

// Subscribe registers an emitter that receives the events of every committed
// operation, in emission order.
func (n *Node) Subscribe(emitter events.Emitter) {
	if emitter == nil {
		return
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.subscribers = append(n.subscribers, emitter)
}

// Vault returns the custody account users approve before staking.
func (n *Node) Vault() [20]byte { return n.vault }

// Params returns the tier formula parameters in force.
func (n *Node) Params() staking.TierParams { return n.engine.Params() }

// Now returns the unix time the next operation will observe.
func (n *Node) Now() int64 {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.nowLocked()
}

func (n *Node) nowLocked() int64 {
	return n.clock() + int64(n.offset/time.Second)
}

// AdvanceTime moves the node clock forward by d. Sub-second steps accumulate;
// operations observe whole seconds.
func (n *Node) AdvanceTime(d time.Duration) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.offset += d
}

// SetTime pins the node clock to the given unix time.
func (n *Node) SetTime(unix int64) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.clock = func() int64 { return unix }
	n.offset = 0
}

// Approve lets the vault pull up to amount of owner's asset.
func (n *Node) Approve(ctx context.Context, owner [20]byte, amount *big.Int) error {
	return n.execute(ctx, "approve", owner, func() error {
		return n.token.Approve(owner, n.vault, amount)
	})
}

// Transfer moves asset between two holders.
func (n *Node) Transfer(ctx context.Context, from, to [20]byte, amount *big.Int) error {
	return n.execute(ctx, "transfer", from, func() error {
		return n.token.Transfer(from, to, amount)
	})
}

// Stake deposits amount of user's asset into the pool. The vault must hold a
// sufficient allowance.
func (n *Node) Stake(ctx context.Context, user [20]byte, amount *big.Int) (*staking.Position, error) {
	var pos *staking.Position
	err := n.execute(ctx, "stake", user, func() error {
		var err error
		pos, err = n.engine.Stake(user, amount)
		return err
	})
	return pos, err
}

// Withdraw returns amount of user's stake to them.
func (n *Node) Withdraw(ctx context.Context, user [20]byte, amount *big.Int) (*staking.Position, error) {
	var pos *staking.Position
	err := n.execute(ctx, "withdraw", user, func() error {
		var err error
		pos, err = n.engine.Withdraw(user, amount)
		return err
	})
	return pos, err
}

// ClaimReward promotes user to the highest tier reached and swaps their badge.
func (n *Node) ClaimReward(ctx context.Context, user [20]byte) (*staking.Claim, error) {
	var claim *staking.Claim
	err := n.execute(ctx, "claim", user, func() error {
		var err error
		claim, err = n.engine.ClaimReward(user)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.metrics.ObserveClaim(claim.Tier)
	return claim, nil
}

// Position returns user's ledger record.
func (n *Node) Position(user [20]byte) (*staking.Position, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.Position(user)
}

// BalanceOf returns user's staked balance.
func (n *Node) BalanceOf(user [20]byte) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.BalanceOf(user)
}

// TotalStaked returns the pool total.
func (n *Node) TotalStaked() (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.TotalStaked()
}

// Eligibility evaluates user against the current node time.
func (n *Node) Eligibility(user [20]byte) (*staking.Eligibility, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.callTime = n.nowLocked()
	return n.engine.Eligibility(user)
}

// TokenBalance returns holder's unstaked asset balance.
func (n *Node) TokenBalance(holder [20]byte) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.token.BalanceOf(holder)
}

// Allowance returns what the vault may still pull from owner.
func (n *Node) Allowance(owner [20]byte) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.token.Allowance(owner, n.vault)
}

// BadgeOwner resolves the holder of badge id.
func (n *Node) BadgeOwner(id uint64) ([20]byte, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.registry.OwnerOf(id)
}

// BadgeURI returns the metadata URI of badge id.
func (n *Node) BadgeURI(id uint64) (string, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.registry.TokenURI(id)
}

// Audit re-checks the pool invariants against committed state.
func (n *Node) Audit() error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.Audit()
}

func (n *Node) execute(ctx context.Context, op string, caller [20]byte, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	requestID := uuid.NewString()
	_, span := n.tracer.Start(ctx, "pool."+op, trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.String("pool.caller", crypto.FormatAddress(caller)),
	))
	defer span.End()
	logger := n.logger.With(
		slog.String("requestId", requestID),
		slog.String("op", op),
		slog.String("caller", crypto.FormatAddress(caller)),
	)

	start := time.Now()
	published, subscribers, err := n.apply(op, fn)
	label := outcome(err)
	n.metrics.ObserveOperation(op, label, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, label)
		logger.Warn("Pool operation rejected", slog.String("outcome", label), slog.Any("error", err))
		return err
	}

	// Delivery runs without stateMu so subscribers may query the node.
	for _, evt := range published {
		logger.Debug("Event committed",
			slog.String("type", evt.EventType()),
			slog.Any("attributes", evt.Event().Attributes))
		for _, sub := range subscribers {
			sub.Emit(evt)
		}
	}
	span.SetStatus(codes.Ok, "")
	logger.Info("Pool operation applied", slog.Int("events", len(published)))
	return nil
}

// apply runs fn under stateMu, committing on success and discarding
// otherwise. It returns the committed events and the subscribers to notify.
func (n *Node) apply(op string, fn func() error) ([]events.Event, []events.Emitter, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	n.callTime = n.nowLocked()
	n.buffer.Reset()
	err := fn()
	if err == nil {
		if commitErr := n.state.Commit(); commitErr != nil {
			err = fmt.Errorf("commit %s: %w", op, commitErr)
		}
	}
	if err != nil {
		n.state.Discard()
		n.buffer.Reset()
		return nil, nil, err
	}
	published := n.buffer.Drain()
	n.refreshGauges()
	subscribers := append([]events.Emitter(nil), n.subscribers...)
	return published, subscribers, nil
}

func (n *Node) refreshGauges() {
	if n.metrics == nil {
		return
	}
	if total, err := n.engine.TotalStaked(); err == nil {
		value, _ := new(big.Float).SetInt(total).Float64()
		n.metrics.SetPoolTotal(value)
	}
	if participants, err := n.engine.Ledger().Participants(); err == nil {
		n.metrics.SetParticipants(len(participants))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, stakeerrors.ErrZeroStakeAmount), errors.Is(err, stakeerrors.ErrZeroWithdrawAmount):
		return "zero_amount"
	case errors.Is(err, stakeerrors.ErrInsufficientAllowance):
		return "insufficient_allowance"
	case errors.Is(err, stakeerrors.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, stakeerrors.ErrTierNotYetReached):
		return "tier_not_yet_reached"
	case errors.Is(err, stakeerrors.ErrAlreadyAtMaxTier):
		return "max_tier"
	case errors.Is(err, stakeerrors.ErrUnauthorizedRegistryCall):
		return "unauthorized"
	case errors.Is(err, stakeerrors.ErrReentrantCall):
		return "reentrant"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
