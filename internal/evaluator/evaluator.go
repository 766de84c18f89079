// Package evaluator implements a concrete domain.Evaluator: the pure
// function that derives a SignedOrder's current OrderState from its
// expiration, fill/cancel history, and the maker's balance and allowance of
// its trade and fee tokens. The watcher core only depends on the
// domain.Evaluator interface; this package is a plugged-in implementation,
// not part of the core state machine.
package evaluator

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

// Evaluator is a stateless domain.Evaluator. It is safe for concurrent use.
type Evaluator struct {
	now    func() time.Time
	zrxTTL struct{} // placeholder kept intentionally empty; ZRX address is read through reader
}

// New creates an Evaluator using time.Now for expiration checks.
func New() *Evaluator {
	return &Evaluator{now: time.Now}
}

// Evaluate returns Valid when the order's remaining fillable amount is
// positive, it has not expired, and the maker holds sufficient balance and
// allowance (plus ZRX fee balance/allowance, when fees are non-zero) to
// cover its pro-rata share of that remaining amount. It returns Invalid
// with the first applicable RejectReason otherwise, checked in the order:
// expiration, fill/cancel exhaustion, maker balance, maker allowance, maker
// fee balance, maker fee allowance.
func (e *Evaluator) Evaluate(ctx context.Context, order domain.SignedOrder, reader domain.ChainReader) (domain.OrderState, error) {
	if e.now().Unix() >= order.ExpirationTimestampSec {
		return domain.NewInvalidState(order.OrderHash, domain.ReasonOrderFillExpired), nil
	}

	filled, err := reader.GetFilled(ctx, order.OrderHash)
	if err != nil {
		return domain.OrderState{}, err
	}
	cancelled, err := reader.GetCancelled(ctx, order.OrderHash)
	if err != nil {
		return domain.OrderState{}, err
	}

	remaining := order.TakerAmount.Sub(filled).Sub(cancelled)
	if remaining.Sign() <= 0 {
		if cancelled.Sign() > 0 {
			return domain.NewInvalidState(order.OrderHash, domain.ReasonOrderCancelled), nil
		}
		return domain.NewInvalidState(order.OrderHash, domain.ReasonOrderRemainingFillAmountZero), nil
	}

	makerBalance, err := reader.GetBalance(ctx, order.MakerTokenAddress, order.Maker)
	if err != nil {
		return domain.OrderState{}, err
	}
	makerAllowance, err := reader.GetAllowance(ctx, order.MakerTokenAddress, order.Maker, order.Maker)
	if err != nil {
		return domain.OrderState{}, err
	}

	fillableMakerAmount := proRata(remaining, order.MakerAmount, order.TakerAmount)
	if makerBalance.LessThan(fillableMakerAmount) {
		return domain.NewInvalidState(order.OrderHash, domain.ReasonInsufficientMakerBalance), nil
	}
	if makerAllowance.LessThan(fillableMakerAmount) {
		return domain.NewInvalidState(order.OrderHash, domain.ReasonInsufficientMakerAllowance), nil
	}

	if order.MakerFee.Sign() > 0 {
		zrx, err := reader.GetZRXTokenAddress(ctx)
		if err != nil {
			return domain.OrderState{}, err
		}
		fillableFee := proRata(remaining, order.MakerFee, order.TakerAmount)

		feeBalance, err := reader.GetBalance(ctx, zrx, order.Maker)
		if err != nil {
			return domain.OrderState{}, err
		}
		if feeBalance.LessThan(fillableFee) {
			return domain.NewInvalidState(order.OrderHash, domain.ReasonInsufficientMakerFeeBalance), nil
		}

		feeAllowance, err := reader.GetAllowance(ctx, zrx, order.Maker, order.Maker)
		if err != nil {
			return domain.OrderState{}, err
		}
		if feeAllowance.LessThan(fillableFee) {
			return domain.NewInvalidState(order.OrderHash, domain.ReasonInsufficientMakerFeeAllowance), nil
		}
	}

	return domain.NewValidState(order.OrderHash, domain.RelevantState{
		MakerBalance:   makerBalance.String(),
		MakerAllowance: makerAllowance.String(),
		Remaining:      remaining.String(),
	}), nil
}

// proRata returns remaining * numerator / denominator, the standard 0x
// partial-fill scaling of a maker-side quantity to the still-unfilled taker
// amount.
func proRata(remaining, numerator, denominator decimal.Decimal) decimal.Decimal {
	if denominator.Sign() == 0 {
		return decimal.Zero
	}
	return remaining.Mul(numerator).Div(denominator)
}

var _ domain.Evaluator = (*Evaluator)(nil)
