package staking

import (
	"errors"
	"fmt"
	"math/big"

	stakeerrors "stakebadge/core/errors"
)

var (
	errNilState         = errors.New("staking: state not configured")
	errInvalidAmount    = errors.New("staking: amount must be positive")
	errTierOutOfRange   = errors.New("staking: tier above maximum")
	errTierRegression   = errors.New("staking: tier cannot decrease")
	errBadgeMismatch    = errors.New("staking: badge reference must be present iff tier is positive")
	errPoolInconsistent = errors.New("staking: pool total does not match position balances")
)

var (
	totalKey        = []byte("staking/total")
	participantsKey = []byte("staking/participants")
)

func positionKey(user [20]byte) []byte {
	return append([]byte("staking/position/"), user[:]...)
}

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Ledger owns per-participant positions and the pool total. It re-checks its
// own invariants but leaves request validation to the Engine.
type Ledger struct {
	st      ledgerState
	maxTier uint8
}

// NewLedger binds a ledger to the provided state.
func NewLedger(st ledgerState, maxTier uint8) *Ledger {
	return &Ledger{st: st, maxTier: maxTier}
}

func (l *Ledger) ready() error {
	if l == nil || l.st == nil {
		return errNilState
	}
	return nil
}

func (l *Ledger) load(user [20]byte) (*Position, bool, error) {
	if err := l.ready(); err != nil {
		return nil, false, err
	}
	pos := new(Position)
	ok, err := l.st.KVGet(positionKey(user), pos)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return &Position{User: user, Balance: big.NewInt(0)}, false, nil
	}
	if pos.Balance == nil {
		pos.Balance = big.NewInt(0)
	}
	return pos, true, nil
}

func (l *Ledger) put(pos *Position) error {
	return l.st.KVPut(positionKey(pos.User), pos)
}

// Position returns a copy of the participant's record. Unknown participants
// get an empty position that is not persisted.
func (l *Ledger) Position(user [20]byte) (*Position, error) {
	pos, _, err := l.load(user)
	return pos, err
}

// BalanceOf returns the staked balance of user.
func (l *Ledger) BalanceOf(user [20]byte) (*big.Int, error) {
	pos, _, err := l.load(user)
	if err != nil {
		return nil, err
	}
	return newBigInt(pos.Balance), nil
}

// TotalStaked returns the pool total.
func (l *Ledger) TotalStaked() (*big.Int, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	total := new(big.Int)
	ok, err := l.st.KVGet(totalKey, total)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return total, nil
}

// Participants lists every address that ever held a position, in first-deposit order.
func (l *Ledger) Participants() ([][20]byte, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	var list [][20]byte
	if _, err := l.st.KVGet(participantsKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (l *Ledger) addParticipant(user [20]byte) error {
	list, err := l.Participants()
	if err != nil {
		return err
	}
	return l.st.KVPut(participantsKey, append(list, user))
}

func (l *Ledger) adjustTotal(delta *big.Int) (*big.Int, error) {
	total, err := l.TotalStaked()
	if err != nil {
		return nil, err
	}
	total.Add(total, delta)
	if total.Sign() < 0 {
		return nil, errPoolInconsistent
	}
	if err := l.st.KVPut(totalKey, total); err != nil {
		return nil, err
	}
	return total, nil
}

// Deposit credits amount to user and the pool. The eligibility clock starts at
// now when the balance moves away from zero; top-ups leave it untouched.
func (l *Ledger) Deposit(user [20]byte, amount *big.Int, now uint64) (*Position, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	pos, exists, err := l.load(user)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := l.addParticipant(user); err != nil {
			return nil, err
		}
	}
	if pos.Balance.Sign() == 0 {
		pos.StakedAt = now
	}
	pos.Balance = new(big.Int).Add(pos.Balance, amount)
	if err := l.put(pos); err != nil {
		return nil, err
	}
	if _, err := l.adjustTotal(amount); err != nil {
		return nil, err
	}
	return pos.Clone(), nil
}

// Withdraw debits amount from user and the pool. Emptying a position stops its
// clock but keeps the tier and badge reference.
func (l *Ledger) Withdraw(user [20]byte, amount *big.Int) (*Position, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	pos, _, err := l.load(user)
	if err != nil {
		return nil, err
	}
	if pos.Balance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: have %s, requested %s", stakeerrors.ErrInsufficientBalance, pos.Balance, amount)
	}
	pos.Balance = new(big.Int).Sub(pos.Balance, amount)
	if pos.Balance.Sign() == 0 {
		pos.StakedAt = 0
	}
	if err := l.put(pos); err != nil {
		return nil, err
	}
	if _, err := l.adjustTotal(new(big.Int).Neg(amount)); err != nil {
		return nil, err
	}
	return pos.Clone(), nil
}

// SetTier records a promotion. Tiers only move forward and a positive tier
// always carries a badge reference.
func (l *Ledger) SetTier(user [20]byte, tier uint8, badgeID uint64) (*Position, error) {
	if tier > l.maxTier {
		return nil, fmt.Errorf("%w: %d > %d", errTierOutOfRange, tier, l.maxTier)
	}
	if (tier > 0) != (badgeID != 0) {
		return nil, errBadgeMismatch
	}
	pos, _, err := l.load(user)
	if err != nil {
		return nil, err
	}
	if tier < pos.Tier {
		return nil, fmt.Errorf("%w: %d -> %d", errTierRegression, pos.Tier, tier)
	}
	pos.Tier = tier
	pos.BadgeID = badgeID
	if err := l.put(pos); err != nil {
		return nil, err
	}
	return pos.Clone(), nil
}

// Audit verifies that the pool total equals the sum of every position balance
// and that each position satisfies the tier/badge invariant.
func (l *Ledger) Audit() error {
	participants, err := l.Participants()
	if err != nil {
		return err
	}
	sum := big.NewInt(0)
	for _, user := range participants {
		pos, _, err := l.load(user)
		if err != nil {
			return err
		}
		if pos.Tier > l.maxTier || (pos.Tier > 0) != pos.HasBadge() {
			return fmt.Errorf("%w: position %x tier %d badge %d", errBadgeMismatch, user, pos.Tier, pos.BadgeID)
		}
		sum.Add(sum, pos.Balance)
	}
	total, err := l.TotalStaked()
	if err != nil {
		return err
	}
	if sum.Cmp(total) != 0 {
		return fmt.Errorf("%w: sum %s, total %s", errPoolInconsistent, sum, total)
	}
	return nil
}
