package staking

import "math/big"

// Position is a participant's record in the pool. BadgeID is 0 while no badge
// is held; registry ids start at 1.
type Position struct {
	User     [20]byte
	Balance  *big.Int
	StakedAt uint64
	Tier     uint8
	BadgeID  uint64
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Balance = newBigInt(p.Balance)
	return &clone
}

// HasBadge reports whether the position references a held badge.
func (p *Position) HasBadge() bool {
	return p != nil && p.BadgeID != 0
}

// Claim is the outcome of a successful reward claim.
type Claim struct {
	User    [20]byte
	BadgeID uint64
	Tier    uint8
	URI     string
}

// Eligibility summarises where a participant stands against the tier formula
// at a given instant.
type Eligibility struct {
	Tier        uint8  `json:"tier"`
	Claimable   uint8  `json:"claimable"`
	UnitSeconds uint64 `json:"unitSeconds"`
	// NextTierAt is zero at the ceiling, for empty positions and when the next
	// tier cannot be reached.
	NextTierAt uint64 `json:"nextTierAt"`
	ComputedAt uint64 `json:"computedAt"`
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
