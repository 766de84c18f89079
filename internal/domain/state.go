package domain

import "github.com/ethereum/go-ethereum/common"

// RejectReason enumerates the ways an order can be invalid. It mirrors the
// 0x exchange-protocol error set this watcher was built to track.
type RejectReason string

const (
	ReasonOrderFillExpired              RejectReason = "ORDER_FILL_EXPIRED"
	ReasonOrderCancelled                RejectReason = "ORDER_CANCELLED"
	ReasonOrderRemainingFillAmountZero  RejectReason = "ORDER_REMAINING_FILL_AMOUNT_ZERO"
	ReasonInsufficientMakerBalance      RejectReason = "INSUFFICIENT_MAKER_BALANCE"
	ReasonInsufficientMakerAllowance    RejectReason = "INSUFFICIENT_MAKER_ALLOWANCE"
	ReasonInsufficientMakerFeeBalance   RejectReason = "INSUFFICIENT_MAKER_FEE_BALANCE"
	ReasonInsufficientMakerFeeAllowance RejectReason = "INSUFFICIENT_MAKER_FEE_ALLOWANCE"
)

// OrderState is the result of evaluating a SignedOrder against current
// on-chain state. Exactly one of Valid/Invalid is meaningful, selected by
// the Valid field; RelevantState is only populated when Valid is true, and
// Reason only when it is false.
type OrderState struct {
	OrderHash     common.Hash
	Valid         bool
	RelevantState RelevantState
	Reason        RejectReason
}

// RelevantState captures the on-chain quantities that determined a Valid
// verdict, for callers that want to display remaining fillable size.
type RelevantState struct {
	MakerBalance   string
	MakerAllowance string
	Remaining      string
}

// NewValidState builds the Valid variant of OrderState.
func NewValidState(hash common.Hash, rs RelevantState) OrderState {
	return OrderState{OrderHash: hash, Valid: true, RelevantState: rs}
}

// NewInvalidState builds the Invalid variant of OrderState.
func NewInvalidState(hash common.Hash, reason RejectReason) OrderState {
	return OrderState{OrderHash: hash, Valid: false, Reason: reason}
}
