package staking

import (
	"errors"
	"fmt"
	"strconv"
)

type badgeRegistry interface {
	Mint(caller, to [20]byte, uriSuffix string) (uint64, error)
	Burn(caller [20]byte, id uint64) error
	TokenURI(id uint64) (string, error)
}

// BadgeManager is the only component that mints or burns badges. It acts on
// the registry with the engine's authority and records the held badge on the
// ledger.
type BadgeManager struct {
	registry  badgeRegistry
	authority [20]byte
	ledger    *Ledger
}

// NewBadgeManager wires a badge manager to the registry and ledger.
func NewBadgeManager(registry badgeRegistry, authority [20]byte, ledger *Ledger) *BadgeManager {
	return &BadgeManager{registry: registry, authority: authority, ledger: ledger}
}

// Promote mints a badge for newTier, burns the superseded badge and records
// the new one. Minting first means the user never holds zero badges between
// the two registry calls.
func (m *BadgeManager) Promote(user [20]byte, newTier uint8) (uint64, string, error) {
	if m == nil || m.registry == nil || m.ledger == nil {
		return 0, "", errors.New("staking: badge manager not configured")
	}
	pos, err := m.ledger.Position(user)
	if err != nil {
		return 0, "", err
	}
	id, err := m.registry.Mint(m.authority, user, strconv.FormatUint(uint64(newTier), 10))
	if err != nil {
		return 0, "", fmt.Errorf("mint tier %d badge: %w", newTier, err)
	}
	if pos.HasBadge() {
		if err := m.registry.Burn(m.authority, pos.BadgeID); err != nil {
			return 0, "", fmt.Errorf("burn badge %d: %w", pos.BadgeID, err)
		}
	}
	if _, err := m.ledger.SetTier(user, newTier, id); err != nil {
		return 0, "", err
	}
	uri, err := m.registry.TokenURI(id)
	if err != nil {
		return 0, "", err
	}
	return id, uri, nil
}

// BadgeOf returns the id of the badge user currently holds, or 0.
func (m *BadgeManager) BadgeOf(user [20]byte) (uint64, error) {
	pos, err := m.ledger.Position(user)
	if err != nil {
		return 0, err
	}
	return pos.BadgeID, nil
}
