package events

import (
	"math/big"

	"stakebadge/core/types"
)

const (
	// TypeStaked is emitted when a participant deposits into the pool.
	TypeStaked = "staking.staked"
	// TypeWithdrawn is emitted when a participant withdraws from the pool.
	TypeWithdrawn = "staking.withdrawn"
	// TypeRewardClaimed is emitted when a claim promotes the participant's badge.
	TypeRewardClaimed = "staking.rewardClaimed"
)

// Staked captures a deposit into the pool.
type Staked struct {
	User   [20]byte
	Amount *big.Int
	// Total is the pool total after the deposit.
	Total *big.Int
}

// EventType satisfies the Event interface.
func (Staked) EventType() string { return TypeStaked }

// Event converts the structured payload into a broadcastable event.
func (e Staked) Event() *types.Event {
	attrs := map[string]string{
		"user":   formatAddr(e.User),
		"amount": formatAmount(e.Amount),
	}
	if e.Total != nil {
		attrs["total"] = e.Total.String()
	}
	return &types.Event{Type: TypeStaked, Attributes: attrs}
}

// Withdrawn captures a withdrawal from the pool.
type Withdrawn struct {
	User   [20]byte
	Amount *big.Int
	Total  *big.Int
}

// EventType satisfies the Event interface.
func (Withdrawn) EventType() string { return TypeWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e Withdrawn) Event() *types.Event {
	attrs := map[string]string{
		"user":   formatAddr(e.User),
		"amount": formatAmount(e.Amount),
	}
	if e.Total != nil {
		attrs["total"] = e.Total.String()
	}
	return &types.Event{Type: TypeWithdrawn, Attributes: attrs}
}

// RewardClaimed captures a tier promotion and the badge minted for it.
type RewardClaimed struct {
	User    [20]byte
	BadgeID uint64
	Tier    uint8
	URI     string
}

// EventType satisfies the Event interface.
func (RewardClaimed) EventType() string { return TypeRewardClaimed }

// Event converts the structured payload into a broadcastable event.
func (e RewardClaimed) Event() *types.Event {
	attrs := map[string]string{
		"user":    formatAddr(e.User),
		"badgeId": formatUint(e.BadgeID),
		"tier":    formatUint(uint64(e.Tier)),
	}
	if e.URI != "" {
		attrs["uri"] = e.URI
	}
	return &types.Event{Type: TypeRewardClaimed, Attributes: attrs}
}
