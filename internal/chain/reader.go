// Package chain implements the out-of-core collaborators the watcher
// depends on through domain.ChainReader and domain.EventSource: a
// go-ethereum-backed read-only accessor for balances, allowances, and
// exchange fill/cancel counters, plus two log-delivery transports (polling
// and websocket push).
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

const exchangeABIJSON = `[
	{"constant":true,"inputs":[{"name":"orderHash","type":"bytes32"}],"name":"filled","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"orderHash","type":"bytes32"}],"name":"cancelled","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"ZRX_TOKEN_CONTRACT","outputs":[{"name":"","type":"address"}],"type":"function"}
]`

// stateLayerBlock resolves a configured block tag into the *big.Int
// CallContract expects, or nil for "latest" (the go-ethereum default).
func stateLayerBlock(stateLayer string) *big.Int {
	switch strings.ToLower(stateLayer) {
	case "", "latest":
		return nil
	case "finalized":
		// ethclient.CallContract has no symbolic tag support pre-1.13's
		// CallContractAtHash; callers wanting a finalized read should
		// resolve the block number themselves and pass a Reader configured
		// with that fixed height.
		return nil
	default:
		return nil
	}
}

// Reader is a domain.ChainReader backed by a JSON-RPC Ethereum client.
type Reader struct {
	client          *ethclient.Client
	erc20ABI        abi.ABI
	exchangeABI     abi.ABI
	exchangeAddress common.Address
	zrxAddress      common.Address
	stateLayer      string
}

// NewReader builds a Reader. zrxAddress is the network's ZRX token address;
// it is returned directly by GetZRXTokenAddress rather than re-read from
// the exchange contract on every call, since it cannot change within a
// deployment.
func NewReader(client *ethclient.Client, exchangeAddress, zrxAddress common.Address, stateLayer string) (*Reader, error) {
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("chain: parsing erc20 ABI: %w", err)
	}
	exchangeABI, err := abi.JSON(strings.NewReader(exchangeABIJSON))
	if err != nil {
		return nil, fmt.Errorf("chain: parsing exchange ABI: %w", err)
	}
	return &Reader{
		client:          client,
		erc20ABI:        erc20ABI,
		exchangeABI:     exchangeABI,
		exchangeAddress: exchangeAddress,
		zrxAddress:      zrxAddress,
		stateLayer:      stateLayer,
	}, nil
}

func (r *Reader) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return r.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, stateLayerBlock(r.stateLayer))
}

// GetBalance returns token.balanceOf(owner) as a decimal.
func (r *Reader) GetBalance(ctx context.Context, token, owner common.Address) (decimal.Decimal, error) {
	data, err := r.erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("chain: packing balanceOf: %w", err)
	}
	out, err := r.call(ctx, token, data)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("chain: calling balanceOf(%s) on %s: %w", owner, token, err)
	}
	var balance *big.Int
	if err := r.erc20ABI.UnpackIntoInterface(&balance, "balanceOf", out); err != nil {
		return decimal.Decimal{}, fmt.Errorf("chain: unpacking balanceOf: %w", err)
	}
	return decimal.NewFromBigInt(balance, 0), nil
}

// GetAllowance returns token.allowance(owner, spender) as a decimal.
func (r *Reader) GetAllowance(ctx context.Context, token, owner, spender common.Address) (decimal.Decimal, error) {
	data, err := r.erc20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("chain: packing allowance: %w", err)
	}
	out, err := r.call(ctx, token, data)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("chain: calling allowance(%s,%s) on %s: %w", owner, spender, token, err)
	}
	var allowance *big.Int
	if err := r.erc20ABI.UnpackIntoInterface(&allowance, "allowance", out); err != nil {
		return decimal.Decimal{}, fmt.Errorf("chain: unpacking allowance: %w", err)
	}
	return decimal.NewFromBigInt(allowance, 0), nil
}

// GetFilled returns the exchange's cumulative filled taker amount for
// orderHash.
func (r *Reader) GetFilled(ctx context.Context, orderHash common.Hash) (decimal.Decimal, error) {
	return r.exchangeUint256(ctx, "filled", orderHash)
}

// GetCancelled returns the exchange's cumulative cancelled taker amount for
// orderHash.
func (r *Reader) GetCancelled(ctx context.Context, orderHash common.Hash) (decimal.Decimal, error) {
	return r.exchangeUint256(ctx, "cancelled", orderHash)
}

func (r *Reader) exchangeUint256(ctx context.Context, method string, orderHash common.Hash) (decimal.Decimal, error) {
	data, err := r.exchangeABI.Pack(method, orderHash)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("chain: packing %s: %w", method, err)
	}
	out, err := r.call(ctx, r.exchangeAddress, data)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("chain: calling %s(%s): %w", method, orderHash, err)
	}
	var amount *big.Int
	if err := r.exchangeABI.UnpackIntoInterface(&amount, method, out); err != nil {
		return decimal.Decimal{}, fmt.Errorf("chain: unpacking %s: %w", method, err)
	}
	return decimal.NewFromBigInt(amount, 0), nil
}

// GetZRXTokenAddress returns the network's ZRX token address, fixed at
// construction.
func (r *Reader) GetZRXTokenAddress(ctx context.Context) (common.Address, error) {
	return r.zrxAddress, nil
}

var _ domain.ChainReader = (*Reader)(nil)
