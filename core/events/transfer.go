package events

import (
	"math/big"

	"stakebadge/core/types"
)

const (
	// TypeTransfer is emitted for deposit asset balance movements, including mints.
	TypeTransfer = "asset.transfer"
	// TypeApproval is emitted when an owner sets a spender allowance.
	TypeApproval = "asset.approval"
)

// Transfer captures a deposit asset movement. A zero From denotes a mint.
type Transfer struct {
	Asset  string
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{}
	if asset := normalizeAsset(e.Asset); asset != "" {
		attrs["asset"] = asset
	}
	if !zeroAddress(e.From) {
		attrs["from"] = formatAddr(e.From)
	}
	attrs["to"] = formatAddr(e.To)
	attrs["amount"] = formatAmount(e.Amount)
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}

// Approval captures an allowance update.
type Approval struct {
	Asset   string
	Owner   [20]byte
	Spender [20]byte
	Amount  *big.Int
}

func (Approval) EventType() string { return TypeApproval }

func (e Approval) Event() *types.Event {
	attrs := map[string]string{
		"owner":   formatAddr(e.Owner),
		"spender": formatAddr(e.Spender),
		"amount":  formatAmount(e.Amount),
	}
	if asset := normalizeAsset(e.Asset); asset != "" {
		attrs["asset"] = asset
	}
	return &types.Event{Type: TypeApproval, Attributes: attrs}
}
