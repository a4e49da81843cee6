package asset

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"stakebadge/core/events"
)

var (
	ErrInvalidAmount         = errors.New("asset: amount must not be negative")
	ErrInsufficientFunds     = errors.New("asset: transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("asset: insufficient allowance")
	ErrZeroAddress           = errors.New("asset: zero address")
	errNilState              = errors.New("asset: state not configured")
)

type tokenState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Token is the fungible deposit asset. Balances, allowances and supply live in
// the shared ledger state so a reverted operation also reverts token movements.
type Token struct {
	st      tokenState
	symbol  string
	emitter events.Emitter
}

// NewToken binds a token symbol to the provided state.
func NewToken(st tokenState, symbol string) *Token {
	return &Token{
		st:      st,
		symbol:  strings.ToUpper(strings.TrimSpace(symbol)),
		emitter: events.NoopEmitter{},
	}
}

// SetEmitter configures the event emitter used to broadcast token movements.
func (t *Token) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		t.emitter = events.NoopEmitter{}
		return
	}
	t.emitter = emitter
}

// Symbol returns the normalized token symbol.
func (t *Token) Symbol() string { return t.symbol }

func (t *Token) supplyKey() []byte {
	return []byte("asset/" + t.symbol + "/supply")
}

func (t *Token) balanceKey(addr [20]byte) []byte {
	key := []byte("asset/" + t.symbol + "/balance/")
	return append(key, addr[:]...)
}

func (t *Token) allowanceKey(owner, spender [20]byte) []byte {
	key := []byte("asset/" + t.symbol + "/allowance/")
	key = append(key, owner[:]...)
	return append(key, spender[:]...)
}

func (t *Token) load(key []byte) (*big.Int, error) {
	if t == nil || t.st == nil {
		return nil, errNilState
	}
	value := new(big.Int)
	ok, err := t.st.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (t *Token) store(key []byte, value *big.Int) error {
	return t.st.KVPut(key, value)
}

// TotalSupply returns the amount minted so far.
func (t *Token) TotalSupply() (*big.Int, error) {
	return t.load(t.supplyKey())
}

// BalanceOf returns the spendable balance of addr.
func (t *Token) BalanceOf(addr [20]byte) (*big.Int, error) {
	return t.load(t.balanceKey(addr))
}

// Allowance returns how much spender may still move on behalf of owner.
func (t *Token) Allowance(owner, spender [20]byte) (*big.Int, error) {
	return t.load(t.allowanceKey(owner, spender))
}

// Mint creates amount new units for to.
func (t *Token) Mint(to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if isZero(to) {
		return ErrZeroAddress
	}
	supply, err := t.TotalSupply()
	if err != nil {
		return err
	}
	balance, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := t.store(t.supplyKey(), new(big.Int).Add(supply, amount)); err != nil {
		return err
	}
	if err := t.store(t.balanceKey(to), new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	t.emitter.Emit(events.Transfer{Asset: t.symbol, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Approve sets the allowance of spender over owner's balance.
func (t *Token) Approve(owner, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if isZero(owner) || isZero(spender) {
		return ErrZeroAddress
	}
	if err := t.store(t.allowanceKey(owner, spender), amount); err != nil {
		return err
	}
	t.emitter.Emit(events.Approval{Asset: t.symbol, Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// Transfer moves amount from from to to.
func (t *Token) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if isZero(from) || isZero(to) {
		return ErrZeroAddress
	}
	fromBalance, err := t.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, fromBalance, amount)
	}
	if err := t.store(t.balanceKey(from), new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	toBalance, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := t.store(t.balanceKey(to), new(big.Int).Add(toBalance, amount)); err != nil {
		return err
	}
	t.emitter.Emit(events.Transfer{Asset: t.symbol, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// TransferFrom spends spender's allowance over from and moves amount to to.
// The allowance is checked before the balance.
func (t *Token) TransferFrom(spender, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	allowance, err := t.Allowance(from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: approved %s, need %s", ErrInsufficientAllowance, allowance, amount)
	}
	if err := t.store(t.allowanceKey(from, spender), new(big.Int).Sub(allowance, amount)); err != nil {
		return err
	}
	return t.Transfer(from, to, amount)
}

func isZero(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}
