package asset_test

import (
	"errors"
	"math/big"
	"testing"

	"stakebadge/core/events"
	"stakebadge/core/state"
	"stakebadge/native/asset"
	"stakebadge/storage"
)

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(e events.Event) {
	c.events = append(c.events, e)
}

func addr(index byte) [20]byte {
	var out [20]byte
	out[19] = index
	return out
}

func newTestToken(t *testing.T) *asset.Token {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return asset.NewToken(state.NewManager(db), "lp")
}

func mustBalance(t *testing.T, token *asset.Token, who [20]byte) *big.Int {
	t.Helper()
	balance, err := token.BalanceOf(who)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return balance
}

func TestMintInitialSupply(t *testing.T) {
	token := newTestToken(t)
	deployer := addr(1)
	initial := big.NewInt(999999999999999999)
	if err := token.Mint(deployer, initial); err != nil {
		t.Fatalf("mint: %v", err)
	}
	supply, err := token.TotalSupply()
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Cmp(initial) != 0 {
		t.Fatalf("expected supply %s, got %s", initial, supply)
	}
	if mustBalance(t, token, deployer).Cmp(initial) != 0 {
		t.Fatalf("deployer should hold the initial supply")
	}
	if token.Symbol() != "LP" {
		t.Fatalf("unexpected symbol %q", token.Symbol())
	}
}

func TestTransferFromRequiresAllowance(t *testing.T) {
	token := newTestToken(t)
	emitter := &capturingEmitter{}
	token.SetEmitter(emitter)
	holder, spender := addr(1), addr(2)
	if err := token.Mint(holder, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := token.Approve(holder, spender, big.NewInt(1000)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	err := token.TransferFrom(spender, holder, spender, big.NewInt(1001))
	if !errors.Is(err, asset.ErrInsufficientAllowance) {
		t.Fatalf("expected insufficient allowance, got %v", err)
	}
	if err := token.TransferFrom(spender, holder, spender, big.NewInt(400)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	allowance, err := token.Allowance(holder, spender)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if allowance.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("expected remaining allowance 600, got %s", allowance)
	}
	if mustBalance(t, token, holder).Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("unexpected holder balance")
	}
	if mustBalance(t, token, spender).Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("unexpected spender balance")
	}
	if len(emitter.events) != 3 {
		t.Fatalf("expected mint, approval and transfer events, got %d", len(emitter.events))
	}
}

func TestTransferRejectsOverdraft(t *testing.T) {
	token := newTestToken(t)
	if err := token.Mint(addr(1), big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := token.Transfer(addr(1), addr(2), big.NewInt(11)); !errors.Is(err, asset.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if err := token.Transfer(addr(1), addr(2), big.NewInt(-1)); !errors.Is(err, asset.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if err := token.Mint(addr(1), big.NewInt(0)); !errors.Is(err, asset.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount for zero mint, got %v", err)
	}
}

func TestCustodianMovesThroughVault(t *testing.T) {
	token := newTestToken(t)
	holder, vault := addr(1), addr(9)
	custodian := asset.NewCustodian(token, vault)
	if err := token.Mint(holder, big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := custodian.TransferIn(holder, big.NewInt(100)); !errors.Is(err, asset.ErrInsufficientAllowance) {
		t.Fatalf("expected allowance failure before approval, got %v", err)
	}
	if err := token.Approve(holder, custodian.Vault(), big.NewInt(500)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := custodian.TransferIn(holder, big.NewInt(500)); err != nil {
		t.Fatalf("transfer in: %v", err)
	}
	if mustBalance(t, token, vault).Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("vault should hold the deposit")
	}
	if err := custodian.TransferOut(holder, big.NewInt(200)); err != nil {
		t.Fatalf("transfer out: %v", err)
	}
	if mustBalance(t, token, holder).Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("holder should have 200 back")
	}
}
