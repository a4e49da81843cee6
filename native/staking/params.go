package staking

import (
	"errors"
	"fmt"
)

const (
	// DefaultScale multiplies the pool total before dividing by the balance.
	DefaultScale uint64 = 10
	// DefaultMaxTier is the highest badge tier that can be claimed.
	DefaultMaxTier uint8 = 3
	// DefaultUnitSeconds makes one formula unit a whole day.
	DefaultUnitSeconds uint64 = 24 * 60 * 60
)

var errInvalidParams = errors.New("staking: invalid tier params")

// TierParams configures the tier formula
//
//	unit = floor(total * Scale / balance) * UnitSeconds
//	tier = min(floor(elapsed / unit), MaxTier)
type TierParams struct {
	Scale       uint64
	MaxTier     uint8
	UnitSeconds uint64
}

// DefaultTierParams returns the reference formula: scale 10, three tiers,
// whole-day units.
func DefaultTierParams() TierParams {
	return TierParams{
		Scale:       DefaultScale,
		MaxTier:     DefaultMaxTier,
		UnitSeconds: DefaultUnitSeconds,
	}
}

// Validate ensures the parameters describe a usable formula.
func (p TierParams) Validate() error {
	if p.Scale == 0 {
		return fmt.Errorf("%w: scale must be positive", errInvalidParams)
	}
	if p.MaxTier == 0 {
		return fmt.Errorf("%w: max tier must be positive", errInvalidParams)
	}
	if p.UnitSeconds == 0 {
		return fmt.Errorf("%w: unit seconds must be positive", errInvalidParams)
	}
	return nil
}
