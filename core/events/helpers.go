package events

import (
	"math/big"
	"strconv"
	"strings"

	"stakebadge/crypto"
)

func normalizeAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(trimmed)
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddr(addr [20]byte) string {
	return crypto.FormatAddress(addr)
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func zeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}
