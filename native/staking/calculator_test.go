package staking

import (
	"errors"
	"math/big"
	"testing"
)

const day = DefaultUnitSeconds

func TestComputeTierTable(t *testing.T) {
	params := DefaultTierParams()
	cases := []struct {
		name    string
		balance int64
		total   int64
		elapsed uint64
		want    uint8
	}{
		{"sole staker capped", 500, 500, 30 * day, 3},
		{"sole staker far past cap", 500, 500, 120 * day, 3},
		{"sole staker early", 500, 500, 5 * day, 0},
		{"sole staker tier one", 500, 500, 15 * day, 1},
		{"sole staker tier two", 500, 500, 25 * day, 2},
		{"third of pool", 500, 1500, 30 * day, 1},
		{"two thirds of pool", 1000, 1500, 30 * day, 2},
		{"no time elapsed", 1000, 1500, 0, 0},
		{"unit floors", 3, 10, 33 * day, 1},
	}
	for _, tc := range cases {
		got, err := ComputeTier(big.NewInt(tc.balance), big.NewInt(tc.total), tc.elapsed, params)
		if err != nil {
			t.Fatalf("%s: compute tier: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected tier %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestComputeTierInclusiveBoundary(t *testing.T) {
	params := DefaultTierParams()
	balance, total := big.NewInt(500), big.NewInt(500)
	unit := 10 * day
	for k := uint64(1); k <= 3; k++ {
		at, err := ComputeTier(balance, total, k*unit, params)
		if err != nil {
			t.Fatalf("compute tier: %v", err)
		}
		if uint64(at) != k {
			t.Fatalf("elapsed %d*unit should yield tier %d, got %d", k, k, at)
		}
		before, err := ComputeTier(balance, total, k*unit-1, params)
		if err != nil {
			t.Fatalf("compute tier: %v", err)
		}
		if uint64(before) != k-1 {
			t.Fatalf("elapsed %d*unit-1 should yield tier %d, got %d", k, k-1, before)
		}
	}
}

func TestComputeTierRejectsBadInput(t *testing.T) {
	params := DefaultTierParams()
	if _, err := ComputeTier(big.NewInt(0), big.NewInt(10), day, params); !errors.Is(err, ErrZeroBalance) {
		t.Fatalf("expected zero balance error, got %v", err)
	}
	if _, err := ComputeTier(nil, big.NewInt(10), day, params); !errors.Is(err, ErrZeroBalance) {
		t.Fatalf("expected zero balance error for nil, got %v", err)
	}
	if _, err := ComputeTier(big.NewInt(11), big.NewInt(10), day, params); !errors.Is(err, ErrInvalidPool) {
		t.Fatalf("expected invalid pool error, got %v", err)
	}
	if _, err := ComputeTier(big.NewInt(1), big.NewInt(1), day, TierParams{}); err == nil {
		t.Fatalf("expected params validation error")
	}
}

func TestComputeTierOverflowSaturates(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 255)
	tier, err := ComputeTier(big.NewInt(1), huge, ^uint64(0), DefaultTierParams())
	if err != nil {
		t.Fatalf("compute tier: %v", err)
	}
	if tier != 0 {
		t.Fatalf("overflowing unit should leave tier 0, got %d", tier)
	}
	if _, ok, err := UnitSeconds(big.NewInt(1), huge, DefaultTierParams()); err != nil || ok {
		t.Fatalf("expected unreachable unit, got ok=%v err=%v", ok, err)
	}
}

func TestNextTierAt(t *testing.T) {
	params := DefaultTierParams()
	start := uint64(1_000)
	next, ok, err := NextTierAt(big.NewInt(500), big.NewInt(1500), start, 0, params)
	if err != nil || !ok {
		t.Fatalf("next tier at: ok=%v err=%v", ok, err)
	}
	if next != start+30*day {
		t.Fatalf("expected %d, got %d", start+30*day, next)
	}
	next, ok, err = NextTierAt(big.NewInt(500), big.NewInt(500), start, 2, params)
	if err != nil || !ok {
		t.Fatalf("next tier at: ok=%v err=%v", ok, err)
	}
	if next != start+30*day {
		t.Fatalf("expected tier 3 at %d, got %d", start+30*day, next)
	}
	if _, ok, _ := NextTierAt(big.NewInt(500), big.NewInt(500), start, 3, params); ok {
		t.Fatalf("no next tier at the ceiling")
	}
}

func TestTierParamsValidate(t *testing.T) {
	if err := DefaultTierParams().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	bad := []TierParams{
		{Scale: 0, MaxTier: 3, UnitSeconds: 1},
		{Scale: 10, MaxTier: 0, UnitSeconds: 1},
		{Scale: 10, MaxTier: 3, UnitSeconds: 0},
	}
	for i, p := range bad {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
