package chain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

func addrTopic(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
}

func TestDecodeApproval(t *testing.T) {
	d, err := NewDecoder()
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}
	owner := common.HexToAddress("0x1")
	spender := common.HexToAddress("0x2")
	token := common.HexToAddress("0xtoken")

	log := ethtypes.Log{
		Address: token,
		Topics:  []common.Hash{topicHash("Approval(address,address,uint256)"), addrTopic(owner), addrTopic(spender)},
	}

	out := d.Decode(log)
	if out.Kind != domain.EventTokenApproval {
		t.Fatalf("expected EventTokenApproval, got %v", out.Kind)
	}
	if out.Approval == nil || out.Approval.Owner != owner || out.Approval.Spender != spender {
		t.Fatalf("unexpected approval args: %+v", out.Approval)
	}
	if out.ContractAddress != token {
		t.Fatalf("expected contract address %v, got %v", token, out.ContractAddress)
	}
}

func TestDecodeTransfer(t *testing.T) {
	d, _ := NewDecoder()
	from := common.HexToAddress("0x1")
	to := common.HexToAddress("0x2")

	log := ethtypes.Log{
		Address: common.HexToAddress("0xtoken"),
		Topics:  []common.Hash{topicHash("Transfer(address,address,uint256)"), addrTopic(from), addrTopic(to)},
	}

	out := d.Decode(log)
	if out.Kind != domain.EventTokenTransfer {
		t.Fatalf("expected EventTokenTransfer, got %v", out.Kind)
	}
	if out.Transfer == nil || out.Transfer.From != from || out.Transfer.To != to {
		t.Fatalf("unexpected transfer args: %+v", out.Transfer)
	}
}

func TestDecodeDepositAndWithdrawal(t *testing.T) {
	d, _ := NewDecoder()
	owner := common.HexToAddress("0x1")

	depositLog := ethtypes.Log{
		Address: common.HexToAddress("0xweth"),
		Topics:  []common.Hash{topicHash("Deposit(address,uint256)"), addrTopic(owner)},
	}
	out := d.Decode(depositLog)
	if out.Kind != domain.EventEtherDeposit || out.EtherToken == nil || out.EtherToken.Owner != owner {
		t.Fatalf("unexpected deposit decode: %+v", out)
	}

	withdrawalLog := ethtypes.Log{
		Address: common.HexToAddress("0xweth"),
		Topics:  []common.Hash{topicHash("Withdrawal(address,uint256)"), addrTopic(owner)},
	}
	out2 := d.Decode(withdrawalLog)
	if out2.Kind != domain.EventEtherWithdrawal || out2.EtherToken == nil || out2.EtherToken.Owner != owner {
		t.Fatalf("unexpected withdrawal decode: %+v", out2)
	}
}

func TestDecodeFillAndCancel(t *testing.T) {
	d, _ := NewDecoder()
	maker := common.HexToAddress("0x1")
	orderHash := common.HexToHash("0xabc")

	fillLog := ethtypes.Log{
		Address: common.HexToAddress("0xexchange"),
		Topics:  []common.Hash{topicHash("LogFill(address,bytes32)"), addrTopic(maker), orderHash},
	}
	out := d.Decode(fillLog)
	if out.Kind != domain.EventExchangeFill || out.Fill == nil || out.Fill.OrderHash != orderHash {
		t.Fatalf("unexpected fill decode: %+v", out)
	}

	cancelLog := ethtypes.Log{
		Address: common.HexToAddress("0xexchange"),
		Topics:  []common.Hash{topicHash("LogCancel(address,bytes32)"), addrTopic(maker), orderHash},
	}
	out2 := d.Decode(cancelLog)
	if out2.Kind != domain.EventExchangeCancel || out2.Cancel == nil || out2.Cancel.OrderHash != orderHash {
		t.Fatalf("unexpected cancel decode: %+v", out2)
	}
}

func TestDecodeLogError(t *testing.T) {
	d, _ := NewDecoder()
	log := ethtypes.Log{
		Address: common.HexToAddress("0xexchange"),
		Topics:  []common.Hash{topicHash("LogError(uint8,bytes32)"), common.HexToHash("0x1"), common.HexToHash("0xabc")},
	}
	out := d.Decode(log)
	if out.Kind != domain.EventExchangeLogError {
		t.Fatalf("expected EventExchangeLogError, got %v", out.Kind)
	}
}

func TestDecodeUnknownTopic0(t *testing.T) {
	d, _ := NewDecoder()
	log := ethtypes.Log{
		Address: common.HexToAddress("0xexchange"),
		Topics:  []common.Hash{common.HexToHash("0xdeadbeef")},
	}
	out := d.Decode(log)
	if out.Kind != domain.EventUnknown {
		t.Fatalf("expected EventUnknown for an unrecognized topic0, got %v", out.Kind)
	}
}

func TestDecodeWrongTopicCountFallsBackToUnknown(t *testing.T) {
	d, _ := NewDecoder()
	// Approval expects 2 indexed args (3 topics total); give it only 1.
	log := ethtypes.Log{
		Address: common.HexToAddress("0xtoken"),
		Topics:  []common.Hash{topicHash("Approval(address,address,uint256)"), addrTopic(common.HexToAddress("0x1"))},
	}
	out := d.Decode(log)
	if out.Kind != domain.EventUnknown {
		t.Fatalf("expected EventUnknown for a malformed topic count, got %v", out.Kind)
	}
}

func TestDecodeEmptyTopicsIsUnknown(t *testing.T) {
	d, _ := NewDecoder()
	out := d.Decode(ethtypes.Log{Address: common.HexToAddress("0xtoken")})
	if out.Kind != domain.EventUnknown {
		t.Fatalf("expected EventUnknown for a log with no topics, got %v", out.Kind)
	}
}
