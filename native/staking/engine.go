package staking

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	stakeerrors "stakebadge/core/errors"
	"stakebadge/core/events"
)

var errNegativeAmount = errors.New("staking: amount must not be negative")

type engineState interface {
	ledgerState
	Snapshot() int
	RevertToSnapshot(id int)
}

// Asset moves the deposit asset between participants and the pool custody.
// Any returned error aborts the enclosing engine call.
type Asset interface {
	TransferIn(from [20]byte, amount *big.Int) error
	TransferOut(to [20]byte, amount *big.Int) error
}

// Engine is the public face of the staking pool. Each mutating call either
// applies completely or leaves ledger, asset and badge state untouched.
//
// The engine is not safe for concurrent use; the host serializes calls.
type Engine struct {
	state   engineState
	ledger  *Ledger
	badges  *BadgeManager
	asset   Asset
	params  TierParams
	emitter events.Emitter
	nowFn   func() int64
	entered bool
}

// NewEngine constructs a staking engine. authority is the account that owns
// the badge registry on the engine's behalf.
func NewEngine(state engineState, asset Asset, registry badgeRegistry, authority [20]byte, params TierParams) (*Engine, error) {
	if state == nil {
		return nil, errNilState
	}
	if asset == nil {
		return nil, errors.New("staking: asset collaborator required")
	}
	if registry == nil {
		return nil, errors.New("staking: badge registry required")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	ledger := NewLedger(state, params.MaxTier)
	return &Engine{
		state:   state,
		ledger:  ledger,
		badges:  NewBadgeManager(registry, authority, ledger),
		asset:   asset,
		params:  params,
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}, nil
}

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock. The host supplies one value per call so the
// elapsed time is deterministic and can be advanced in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Params returns the tier formula parameters.
func (e *Engine) Params() TierParams { return e.params }

// Ledger exposes the read side of the pool bookkeeping.
func (e *Engine) Ledger() *Ledger { return e.ledger }

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

// atomic runs fn inside a state snapshot, reverting every write when fn fails
// and rejecting calls that re-enter the engine from a collaborator.
func (e *Engine) atomic(fn func() error) (err error) {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.entered {
		return stakeerrors.ErrReentrantCall
	}
	e.entered = true
	snap := e.state.Snapshot()
	defer func() {
		if r := recover(); r != nil {
			e.state.RevertToSnapshot(snap)
			e.entered = false
			panic(r)
		}
		if err != nil {
			e.state.RevertToSnapshot(snap)
		}
		e.entered = false
	}()
	return fn()
}

// Stake deposits amount of the asset from caller into the pool. The ledger is
// credited before the asset is pulled so a reentrant caller already observes
// the new balance.
func (e *Engine) Stake(caller [20]byte, amount *big.Int) (*Position, error) {
	if amount == nil || amount.Sign() == 0 {
		return nil, stakeerrors.ErrZeroStakeAmount
	}
	if amount.Sign() < 0 {
		return nil, errNegativeAmount
	}
	var (
		pos   *Position
		total *big.Int
	)
	err := e.atomic(func() error {
		var err error
		pos, err = e.ledger.Deposit(caller, amount, e.now())
		if err != nil {
			return err
		}
		if total, err = e.ledger.TotalStaked(); err != nil {
			return err
		}
		if err := e.asset.TransferIn(caller, amount); err != nil {
			return fmt.Errorf("%w: %w", stakeerrors.ErrInsufficientAllowance, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(events.Staked{User: caller, Amount: newBigInt(amount), Total: total})
	return pos, nil
}

// Withdraw returns amount of the caller's stake. Tier and badge are kept.
func (e *Engine) Withdraw(caller [20]byte, amount *big.Int) (*Position, error) {
	if amount == nil || amount.Sign() == 0 {
		return nil, stakeerrors.ErrZeroWithdrawAmount
	}
	if amount.Sign() < 0 {
		return nil, errNegativeAmount
	}
	var (
		pos   *Position
		total *big.Int
	)
	err := e.atomic(func() error {
		var err error
		pos, err = e.ledger.Withdraw(caller, amount)
		if err != nil {
			return err
		}
		if total, err = e.ledger.TotalStaked(); err != nil {
			return err
		}
		if err := e.asset.TransferOut(caller, amount); err != nil {
			return fmt.Errorf("staking: return funds: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(events.Withdrawn{User: caller, Amount: newBigInt(amount), Total: total})
	return pos, nil
}

// ClaimReward promotes the caller to the highest tier the formula allows under
// the current pool total, replacing their badge.
func (e *Engine) ClaimReward(caller [20]byte) (*Claim, error) {
	var claim *Claim
	err := e.atomic(func() error {
		pos, err := e.ledger.Position(caller)
		if err != nil {
			return err
		}
		if pos.Balance.Sign() == 0 {
			return stakeerrors.ErrInsufficientBalance
		}
		if pos.Tier >= e.params.MaxTier {
			return stakeerrors.ErrAlreadyAtMaxTier
		}
		total, err := e.ledger.TotalStaked()
		if err != nil {
			return err
		}
		newTier, err := ComputeTier(pos.Balance, total, e.elapsed(pos), e.params)
		if err != nil {
			return err
		}
		if newTier <= pos.Tier {
			return fmt.Errorf("%w: eligible for tier %d, holding %d", stakeerrors.ErrTierNotYetReached, newTier, pos.Tier)
		}
		id, uri, err := e.badges.Promote(caller, newTier)
		if err != nil {
			return err
		}
		claim = &Claim{User: caller, BadgeID: id, Tier: newTier, URI: uri}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(events.RewardClaimed{User: claim.User, BadgeID: claim.BadgeID, Tier: claim.Tier, URI: claim.URI})
	return claim, nil
}

func (e *Engine) elapsed(pos *Position) uint64 {
	now := e.now()
	if now <= pos.StakedAt {
		return 0
	}
	return now - pos.StakedAt
}

// BalanceOf returns the staked balance of user.
func (e *Engine) BalanceOf(user [20]byte) (*big.Int, error) {
	if e == nil {
		return nil, errNilState
	}
	return e.ledger.BalanceOf(user)
}

// TotalStaked returns the pool total.
func (e *Engine) TotalStaked() (*big.Int, error) {
	if e == nil {
		return nil, errNilState
	}
	return e.ledger.TotalStaked()
}

// Position returns the participant's record.
func (e *Engine) Position(user [20]byte) (*Position, error) {
	if e == nil {
		return nil, errNilState
	}
	return e.ledger.Position(user)
}

// Eligibility reports the tier a claim would reach right now and when the
// following tier unlocks if the pool stays as it is.
func (e *Engine) Eligibility(user [20]byte) (*Eligibility, error) {
	if e == nil {
		return nil, errNilState
	}
	pos, err := e.ledger.Position(user)
	if err != nil {
		return nil, err
	}
	now := e.now()
	out := &Eligibility{Tier: pos.Tier, Claimable: pos.Tier, ComputedAt: now}
	if pos.Balance.Sign() == 0 {
		return out, nil
	}
	total, err := e.ledger.TotalStaked()
	if err != nil {
		return nil, err
	}
	unit, ok, err := UnitSeconds(pos.Balance, total, e.params)
	if err != nil {
		return nil, err
	}
	if ok {
		out.UnitSeconds = unit
	}
	tier, err := ComputeTier(pos.Balance, total, e.elapsed(pos), e.params)
	if err != nil {
		return nil, err
	}
	if tier > out.Claimable {
		out.Claimable = tier
	}
	if next, ok, err := NextTierAt(pos.Balance, total, pos.StakedAt, out.Claimable, e.params); err != nil {
		return nil, err
	} else if ok {
		out.NextTierAt = next
	}
	return out, nil
}

// Audit checks the pool-sum and tier/badge invariants.
func (e *Engine) Audit() error {
	if e == nil {
		return errNilState
	}
	return e.ledger.Audit()
}
