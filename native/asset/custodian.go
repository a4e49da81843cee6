package asset

import "math/big"

// Custodian adapts a Token to the staking engine's transfer contract. Deposits
// are pulled into the vault account through the holder's allowance and
// withdrawals are paid out of it.
type Custodian struct {
	token *Token
	vault [20]byte
}

// NewCustodian binds token movements to the supplied vault account.
func NewCustodian(token *Token, vault [20]byte) *Custodian {
	return &Custodian{token: token, vault: vault}
}

// Vault returns the custody account; holders approve it before staking.
func (c *Custodian) Vault() [20]byte { return c.vault }

// TransferIn pulls amount from the holder into the vault.
func (c *Custodian) TransferIn(from [20]byte, amount *big.Int) error {
	return c.token.TransferFrom(c.vault, from, c.vault, amount)
}

// TransferOut pays amount from the vault to the holder.
func (c *Custodian) TransferOut(to [20]byte, amount *big.Int) error {
	return c.token.Transfer(c.vault, to, amount)
}
