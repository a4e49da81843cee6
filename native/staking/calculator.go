package staking

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	// ErrZeroBalance signals a tier computation requested for an empty
	// position. Callers report ErrInsufficientBalance before reaching it.
	ErrZeroBalance = errors.New("staking: tier requires a positive balance")
	// ErrInvalidPool signals a pool total smaller than the position balance.
	ErrInvalidPool = errors.New("staking: pool total below position balance")
)

// UnitSeconds returns the number of seconds a position needs to advance one
// tier under the supplied pool total. The boolean is false when the unit does
// not fit in 64 bits, in which case no tier can be reached.
func UnitSeconds(balance, total *big.Int, params TierParams) (uint64, bool, error) {
	if balance == nil || balance.Sign() <= 0 {
		return 0, false, ErrZeroBalance
	}
	if total == nil || total.Cmp(balance) < 0 {
		return 0, false, ErrInvalidPool
	}
	if err := params.Validate(); err != nil {
		return 0, false, err
	}
	b, overflow := uint256.FromBig(balance)
	if overflow {
		return 0, false, nil
	}
	t, overflow := uint256.FromBig(total)
	if overflow {
		return 0, false, nil
	}
	scaled, overflow := new(uint256.Int).MulOverflow(t, uint256.NewInt(params.Scale))
	if overflow {
		return 0, false, nil
	}
	unit := new(uint256.Int).Div(scaled, b)
	seconds, overflow := new(uint256.Int).MulOverflow(unit, uint256.NewInt(params.UnitSeconds))
	if overflow || !seconds.IsUint64() {
		return 0, false, nil
	}
	return seconds.Uint64(), true, nil
}

// ComputeTier maps a position balance, the live pool total and the elapsed
// seconds since the position's clock started to a reward tier. Thresholds are
// inclusive: elapsed == k*unit yields tier k.
func ComputeTier(balance, total *big.Int, elapsed uint64, params TierParams) (uint8, error) {
	unit, ok, err := UnitSeconds(balance, total, params)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	tier := elapsed / unit
	if tier > uint64(params.MaxTier) {
		return params.MaxTier, nil
	}
	return uint8(tier), nil
}

// NextTierAt returns the unix time at which tier+1 becomes claimable for a
// clock started at stakedAt, assuming the pool total stays unchanged. The
// boolean is false at the ceiling or when the time is unreachable.
func NextTierAt(balance, total *big.Int, stakedAt uint64, tier uint8, params TierParams) (uint64, bool, error) {
	if tier >= params.MaxTier {
		return 0, false, nil
	}
	unit, ok, err := UnitSeconds(balance, total, params)
	if err != nil || !ok {
		return 0, false, err
	}
	next := uint64(tier) + 1
	if unit > (^uint64(0)-stakedAt)/next {
		return 0, false, nil
	}
	return stakedAt + next*unit, true, nil
}
