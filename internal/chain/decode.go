package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

// eventsABIJSON declares every log shape the dispatcher's event taxonomy
// cares about. The address and hash arguments are indexed and are read from
// topics with ParseTopics; the non-indexed uint256 values live in Data,
// which is never unpacked, so decoded Value fields stay unset.
const eventsABIJSON = `[
	{"anonymous":false,"name":"Approval","type":"event","inputs":[
		{"indexed":true,"name":"owner","type":"address"},
		{"indexed":true,"name":"spender","type":"address"},
		{"indexed":false,"name":"value","type":"uint256"}
	]},
	{"anonymous":false,"name":"Transfer","type":"event","inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"value","type":"uint256"}
	]},
	{"anonymous":false,"name":"Deposit","type":"event","inputs":[
		{"indexed":true,"name":"owner","type":"address"},
		{"indexed":false,"name":"value","type":"uint256"}
	]},
	{"anonymous":false,"name":"Withdrawal","type":"event","inputs":[
		{"indexed":true,"name":"owner","type":"address"},
		{"indexed":false,"name":"value","type":"uint256"}
	]},
	{"anonymous":false,"name":"LogFill","type":"event","inputs":[
		{"indexed":true,"name":"maker","type":"address"},
		{"indexed":true,"name":"orderHash","type":"bytes32"}
	]},
	{"anonymous":false,"name":"LogCancel","type":"event","inputs":[
		{"indexed":true,"name":"maker","type":"address"},
		{"indexed":true,"name":"orderHash","type":"bytes32"}
	]},
	{"anonymous":false,"name":"LogError","type":"event","inputs":[
		{"indexed":true,"name":"errorId","type":"uint8"},
		{"indexed":true,"name":"orderHash","type":"bytes32"}
	]}
]`

// Decoder classifies raw chain logs into domain.DecodedLog values.
type Decoder struct {
	eventsABI abi.ABI
	byTopic0  map[common.Hash]string
}

// NewDecoder parses the event taxonomy ABI and precomputes the topic0 ->
// event-name lookup used to classify incoming logs.
func NewDecoder() (*Decoder, error) {
	parsed, err := abi.JSON(strings.NewReader(eventsABIJSON))
	if err != nil {
		return nil, fmt.Errorf("chain: parsing events ABI: %w", err)
	}
	byTopic0 := make(map[common.Hash]string, len(parsed.Events))
	for name, ev := range parsed.Events {
		byTopic0[ev.ID] = name
	}
	return &Decoder{eventsABI: parsed, byTopic0: byTopic0}, nil
}

// Decode classifies log and extracts its arguments. A log whose topic0
// matches none of the known events, or whose topic count is wrong, decodes
// to domain.EventUnknown with no error: per spec §4.4, undecodable logs are
// ignored rather than rejected.
func (d *Decoder) Decode(log ethtypes.Log) domain.DecodedLog {
	out := domain.DecodedLog{ContractAddress: log.Address}
	if len(log.Topics) == 0 {
		return out
	}

	name, ok := d.byTopic0[log.Topics[0]]
	if !ok {
		return out
	}
	ev, ok := d.eventsABI.Events[name]
	if !ok || len(log.Topics) != len(indexedInputs(ev))+1 {
		return out
	}

	switch name {
	case "Approval":
		var args struct {
			Owner   common.Address
			Spender common.Address
		}
		if abi.ParseTopics(&args, indexedInputs(ev), log.Topics[1:]) == nil {
			out.Kind = domain.EventTokenApproval
			out.Approval = &domain.ApprovalArgs{Owner: args.Owner, Spender: args.Spender, Value: new(big.Int)}
		}
	case "Transfer":
		var args struct {
			From common.Address
			To   common.Address
		}
		if abi.ParseTopics(&args, indexedInputs(ev), log.Topics[1:]) == nil {
			out.Kind = domain.EventTokenTransfer
			out.Transfer = &domain.TransferArgs{From: args.From, To: args.To, Value: new(big.Int)}
		}
	case "Deposit":
		var args struct{ Owner common.Address }
		if abi.ParseTopics(&args, indexedInputs(ev), log.Topics[1:]) == nil {
			out.Kind = domain.EventEtherDeposit
			out.EtherToken = &domain.EtherTokenArgs{Owner: args.Owner, Value: new(big.Int)}
		}
	case "Withdrawal":
		var args struct{ Owner common.Address }
		if abi.ParseTopics(&args, indexedInputs(ev), log.Topics[1:]) == nil {
			out.Kind = domain.EventEtherWithdrawal
			out.EtherToken = &domain.EtherTokenArgs{Owner: args.Owner, Value: new(big.Int)}
		}
	case "LogFill":
		var args struct {
			Maker     common.Address
			OrderHash common.Hash
		}
		if abi.ParseTopics(&args, indexedInputs(ev), log.Topics[1:]) == nil {
			out.Kind = domain.EventExchangeFill
			out.Fill = &domain.FillArgs{OrderHash: args.OrderHash}
		}
	case "LogCancel":
		var args struct {
			Maker     common.Address
			OrderHash common.Hash
		}
		if abi.ParseTopics(&args, indexedInputs(ev), log.Topics[1:]) == nil {
			out.Kind = domain.EventExchangeCancel
			out.Cancel = &domain.CancelArgs{OrderHash: args.OrderHash}
		}
	case "LogError":
		out.Kind = domain.EventExchangeLogError
	}
	return out
}

func indexedInputs(ev abi.Event) abi.Arguments {
	var out abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			out = append(out, arg)
		}
	}
	return out
}

// topicHash is kept for completeness/tests that want to build synthetic
// logs without going through the full ABI machinery.
func topicHash(signature string) common.Hash {
	return common.BytesToHash(ethcrypto.Keccak256([]byte(signature)))
}
