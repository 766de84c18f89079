// Package domain defines the core types and collaborator interfaces of the
// order-validity watcher: signed orders, their derived validity state, and
// the external read/event/evaluation contracts the watcher depends on.
package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// SignedOrder is the subset of a signed off-chain order the watcher needs to
// track its on-chain validity. Amounts are arbitrary-precision decimals so
// comparisons against chain-read balances never lose wei-level precision.
type SignedOrder struct {
	OrderHash              common.Hash
	Maker                  common.Address
	Taker                  common.Address
	MakerTokenAddress      common.Address
	TakerTokenAddress      common.Address
	MakerAmount            decimal.Decimal
	TakerAmount            decimal.Decimal
	MakerFee               decimal.Decimal
	TakerFee               decimal.Decimal
	ExpirationTimestampSec int64
	Signature              []byte
}

// ExpirationMs returns the order's expiration timestamp in milliseconds,
// the unit the ExpirationQueue is keyed on.
func (o SignedOrder) ExpirationMs() int64 {
	return o.ExpirationTimestampSec * 1000
}
