package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"stakebadge/crypto"
	"stakebadge/native/staking"
)

// GenesisAllocation is a parsed Allocation.
type GenesisAllocation struct {
	Address [20]byte
	Amount  *big.Int
}

// TierParams converts the tier section into formula parameters.
func (c *Config) TierParams() staking.TierParams {
	return staking.TierParams{
		Scale:       c.Tiers.Scale,
		MaxTier:     c.Tiers.MaxTier,
		UnitSeconds: c.Tiers.UnitSeconds,
	}
}

// GenesisAllocations parses the configured allocations.
func (c *Config) GenesisAllocations() ([]GenesisAllocation, error) {
	out := make([]GenesisAllocation, 0, len(c.Allocations))
	seen := make(map[[20]byte]struct{}, len(c.Allocations))
	for i, alloc := range c.Allocations {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(alloc.Address))
		if err != nil {
			return nil, fmt.Errorf("allocations[%d]: address: %w", i, err)
		}
		if addr.Prefix() != crypto.StakePrefix {
			return nil, fmt.Errorf("allocations[%d]: address must use the %s prefix", i, crypto.StakePrefix)
		}
		amount, err := ParseAmount(alloc.Amount)
		if err != nil {
			return nil, fmt.Errorf("allocations[%d]: %w", i, err)
		}
		key := addr.Bytes()
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("allocations[%d]: duplicate address %s", i, addr.String())
		}
		seen[key] = struct{}{}
		out = append(out, GenesisAllocation{Address: key, Amount: amount})
	}
	return out, nil
}

// ParseAmount parses a positive base-10 integer amount.
func ParseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}
	return amount, nil
}

// Validate checks the configuration before the node starts.
func Validate(c *Config) error {
	if c == nil {
		return errors.New("config: nil configuration")
	}
	if err := c.TierParams().Validate(); err != nil {
		return fmt.Errorf("tiers: %w", err)
	}
	if strings.TrimSpace(c.BaseURI) == "" {
		return errors.New("config: BaseURI required")
	}
	if strings.TrimSpace(c.AssetSymbol) == "" {
		return errors.New("config: AssetSymbol required")
	}
	if !c.InMemory && strings.TrimSpace(c.DataDir) == "" {
		return errors.New("config: DataDir required unless InMemory is set")
	}
	if _, err := c.GenesisAllocations(); err != nil {
		return err
	}
	if c.Telemetry.Traces || c.Telemetry.Metrics {
		if strings.TrimSpace(c.Telemetry.Endpoint) == "" {
			return errors.New("telemetry: Endpoint required when exporters are enabled")
		}
	}
	return nil
}
