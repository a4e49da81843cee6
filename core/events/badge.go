package events

import "stakebadge/core/types"

const (
	TypeBadgeMinted               = "badge.minted"
	TypeBadgeBurned               = "badge.burned"
	TypeBadgeTransferred          = "badge.transferred"
	TypeBadgeOwnershipTransferred = "badge.ownershipTransferred"
)

// BadgeMinted records a new badge and its metadata URI.
type BadgeMinted struct {
	ID    uint64
	Owner [20]byte
	URI   string
}

func (BadgeMinted) EventType() string { return TypeBadgeMinted }

func (e BadgeMinted) Event() *types.Event {
	return &types.Event{Type: TypeBadgeMinted, Attributes: map[string]string{
		"id":    formatUint(e.ID),
		"owner": formatAddr(e.Owner),
		"uri":   e.URI,
	}}
}

// BadgeBurned records the destruction of a superseded badge.
type BadgeBurned struct {
	ID    uint64
	Owner [20]byte
}

func (BadgeBurned) EventType() string { return TypeBadgeBurned }

func (e BadgeBurned) Event() *types.Event {
	return &types.Event{Type: TypeBadgeBurned, Attributes: map[string]string{
		"id":    formatUint(e.ID),
		"owner": formatAddr(e.Owner),
	}}
}

// BadgeTransferred records an administrative badge move between holders.
type BadgeTransferred struct {
	ID   uint64
	From [20]byte
	To   [20]byte
}

func (BadgeTransferred) EventType() string { return TypeBadgeTransferred }

func (e BadgeTransferred) Event() *types.Event {
	return &types.Event{Type: TypeBadgeTransferred, Attributes: map[string]string{
		"id":   formatUint(e.ID),
		"from": formatAddr(e.From),
		"to":   formatAddr(e.To),
	}}
}

// BadgeOwnershipTransferred records a change of the registry administrator.
type BadgeOwnershipTransferred struct {
	Previous [20]byte
	Next     [20]byte
}

func (BadgeOwnershipTransferred) EventType() string { return TypeBadgeOwnershipTransferred }

func (e BadgeOwnershipTransferred) Event() *types.Event {
	return &types.Event{Type: TypeBadgeOwnershipTransferred, Attributes: map[string]string{
		"previous": formatAddr(e.Previous),
		"next":     formatAddr(e.Next),
	}}
}
