package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind tags a decoded chain log by the table in spec §4.4. The
// dispatcher performs a total match over these.
type EventKind int

const (
	// EventUnknown covers undecodable logs and log kinds the dispatcher has
	// no invalidation rule for; it is always ignored.
	EventUnknown EventKind = iota
	EventTokenApproval
	EventTokenTransfer
	EventEtherDeposit
	EventEtherWithdrawal
	EventExchangeFill
	EventExchangeCancel
	EventExchangeLogError
)

// String renders the event kind for logging.
func (k EventKind) String() string {
	switch k {
	case EventTokenApproval:
		return "Approval"
	case EventTokenTransfer:
		return "Transfer"
	case EventEtherDeposit:
		return "Deposit"
	case EventEtherWithdrawal:
		return "Withdrawal"
	case EventExchangeFill:
		return "LogFill"
	case EventExchangeCancel:
		return "LogCancel"
	case EventExchangeLogError:
		return "LogError"
	default:
		return "Unknown"
	}
}

// ApprovalArgs carries Approval(owner, spender, value) arguments.
type ApprovalArgs struct {
	Owner   common.Address
	Spender common.Address
	Value   *big.Int
}

// TransferArgs carries Transfer(from, to, value) arguments.
type TransferArgs struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

// EtherTokenArgs carries Deposit(owner, value) / Withdrawal(owner, value)
// arguments; both events share this shape.
type EtherTokenArgs struct {
	Owner common.Address
	Value *big.Int
}

// FillArgs carries the orderHash out of a LogFill event; the remaining
// exchange fields are not needed for invalidation.
type FillArgs struct {
	OrderHash common.Hash
}

// CancelArgs carries the orderHash out of a LogCancel event.
type CancelArgs struct {
	OrderHash common.Hash
}

// DecodedLog is a single chain log the dispatcher consumes, already
// classified by kind with its arguments decoded into the matching Args
// field. Only the field matching Kind is populated.
type DecodedLog struct {
	ContractAddress common.Address
	Kind            EventKind
	Approval        *ApprovalArgs
	Transfer        *TransferArgs
	EtherToken      *EtherTokenArgs
	Fill            *FillArgs
	Cancel          *CancelArgs
}
