package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

type tokenOwner struct {
	token common.Address
	owner common.Address
}

type stubReader struct {
	balance   map[common.Address]decimal.Decimal
	allowance map[common.Address]decimal.Decimal
	byToken   map[tokenOwner]decimal.Decimal
	filled    decimal.Decimal
	cancelled decimal.Decimal
	zrx       common.Address
}

func (s stubReader) GetBalance(ctx context.Context, token, owner common.Address) (decimal.Decimal, error) {
	if s.byToken != nil {
		if v, ok := s.byToken[tokenOwner{token, owner}]; ok {
			return v, nil
		}
	}
	return s.balance[owner], nil
}
func (s stubReader) GetAllowance(ctx context.Context, token, owner, spender common.Address) (decimal.Decimal, error) {
	if s.byToken != nil {
		if v, ok := s.byToken[tokenOwner{token, owner}]; ok {
			return v, nil
		}
	}
	return s.allowance[owner], nil
}
func (s stubReader) GetFilled(ctx context.Context, orderHash common.Hash) (decimal.Decimal, error) {
	return s.filled, nil
}
func (s stubReader) GetCancelled(ctx context.Context, orderHash common.Hash) (decimal.Decimal, error) {
	return s.cancelled, nil
}
func (s stubReader) GetZRXTokenAddress(ctx context.Context) (common.Address, error) {
	return s.zrx, nil
}

func baseOrder() domain.SignedOrder {
	maker := common.HexToAddress("0xmaker")
	return domain.SignedOrder{
		OrderHash:              common.HexToHash("0xorder"),
		Maker:                  maker,
		MakerTokenAddress:      common.HexToAddress("0xmakertoken"),
		TakerTokenAddress:      common.HexToAddress("0xtakertoken"),
		MakerAmount:            decimal.NewFromInt(100),
		TakerAmount:            decimal.NewFromInt(100),
		MakerFee:               decimal.Zero,
		TakerFee:               decimal.Zero,
		ExpirationTimestampSec: time.Now().Add(time.Hour).Unix(),
	}
}

func TestEvaluateValidWhenFullyCollateralized(t *testing.T) {
	order := baseOrder()
	reader := stubReader{
		balance:   map[common.Address]decimal.Decimal{order.Maker: decimal.NewFromInt(1000)},
		allowance: map[common.Address]decimal.Decimal{order.Maker: decimal.NewFromInt(1000)},
	}

	state, err := New().Evaluate(context.Background(), order, reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.Valid {
		t.Fatalf("expected valid state, got reason %s", state.Reason)
	}
}

func TestEvaluateExpired(t *testing.T) {
	order := baseOrder()
	order.ExpirationTimestampSec = time.Now().Add(-time.Hour).Unix()

	state, err := New().Evaluate(context.Background(), order, stubReader{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Valid || state.Reason != domain.ReasonOrderFillExpired {
		t.Fatalf("expected ReasonOrderFillExpired, got %+v", state)
	}
}

func TestEvaluateCancelledVsZeroRemaining(t *testing.T) {
	order := baseOrder()
	reader := stubReader{cancelled: decimal.NewFromInt(100)}
	state, err := New().Evaluate(context.Background(), order, reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Valid || state.Reason != domain.ReasonOrderCancelled {
		t.Fatalf("expected ReasonOrderCancelled, got %+v", state)
	}

	reader2 := stubReader{filled: decimal.NewFromInt(100)}
	state2, err := New().Evaluate(context.Background(), order, reader2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state2.Valid || state2.Reason != domain.ReasonOrderRemainingFillAmountZero {
		t.Fatalf("expected ReasonOrderRemainingFillAmountZero, got %+v", state2)
	}
}

func TestEvaluateInsufficientBalanceBeforeAllowance(t *testing.T) {
	order := baseOrder()
	reader := stubReader{
		balance:   map[common.Address]decimal.Decimal{order.Maker: decimal.Zero},
		allowance: map[common.Address]decimal.Decimal{order.Maker: decimal.NewFromInt(1000)},
	}
	state, err := New().Evaluate(context.Background(), order, reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Valid || state.Reason != domain.ReasonInsufficientMakerBalance {
		t.Fatalf("expected ReasonInsufficientMakerBalance, got %+v", state)
	}
}

func TestEvaluateInsufficientAllowance(t *testing.T) {
	order := baseOrder()
	reader := stubReader{
		balance:   map[common.Address]decimal.Decimal{order.Maker: decimal.NewFromInt(1000)},
		allowance: map[common.Address]decimal.Decimal{order.Maker: decimal.Zero},
	}
	state, err := New().Evaluate(context.Background(), order, reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Valid || state.Reason != domain.ReasonInsufficientMakerAllowance {
		t.Fatalf("expected ReasonInsufficientMakerAllowance, got %+v", state)
	}
}

func TestEvaluateFeeChecksWhenFeeNonZero(t *testing.T) {
	order := baseOrder()
	order.MakerFee = decimal.NewFromInt(10)
	zrx := common.HexToAddress("0xee")

	// Sufficient trade collateral, zero ZRX balance -> fee balance rejection.
	reader := stubReader{
		balance: map[common.Address]decimal.Decimal{
			order.Maker: decimal.NewFromInt(1000),
		},
		allowance: map[common.Address]decimal.Decimal{
			order.Maker: decimal.NewFromInt(1000),
		},
		byToken: map[tokenOwner]decimal.Decimal{
			{token: zrx, owner: order.Maker}: decimal.Zero,
		},
		zrx: zrx,
	}
	state, err := New().Evaluate(context.Background(), order, reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Valid || state.Reason != domain.ReasonInsufficientMakerFeeBalance {
		t.Fatalf("expected ReasonInsufficientMakerFeeBalance, got %+v", state)
	}
}

func TestProRataZeroDenominator(t *testing.T) {
	if got := proRata(decimal.NewFromInt(10), decimal.NewFromInt(5), decimal.Zero); !got.Equal(decimal.Zero) {
		t.Fatalf("expected zero for zero denominator, got %s", got)
	}
}
