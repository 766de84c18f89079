// Package crypto provides the order-hash computation and signature
// verification the watcher's addOrder path uses to admit a SignedOrder,
// plus a PBKDF2/AES-GCM encrypted keystore for operator tooling.
package crypto

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

// orderTypeHash is the pre-computed keccak256 of the canonical EIP-712 type
// string for the trade fields the watcher treats as order identity. Amounts
// are uint256 in the type string; decimal.Decimal values are truncated to
// their integer (wei-denominated) big.Int form before hashing.
var orderTypeHash = ethcrypto.Keccak256(
	[]byte("Order(address maker,address taker,address makerTokenAddress,address takerTokenAddress,uint256 makerAmount,uint256 takerAmount,uint256 makerFee,uint256 takerFee,uint256 expirationTimestampSec)"),
)

// Validator implements domain.OrderValidator by recomputing an EIP-712-style
// struct hash over a SignedOrder's trade fields and checking an ECDSA
// signature against it with ecrecover.
type Validator struct{}

// NewValidator returns a stateless Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Hash returns the canonical order hash for order, independent of whatever
// OrderHash value order itself carries. addOrder calls this to detect a
// forged or corrupted hash field.
func (Validator) Hash(order domain.SignedOrder) common.Hash {
	return common.BytesToHash(ethcrypto.Keccak256(
		concatBytes(
			orderTypeHash,
			common.LeftPadBytes(order.Maker.Bytes(), 32),
			common.LeftPadBytes(order.Taker.Bytes(), 32),
			common.LeftPadBytes(order.MakerTokenAddress.Bytes(), 32),
			common.LeftPadBytes(order.TakerTokenAddress.Bytes(), 32),
			bigIntTo32Bytes(order.MakerAmount.BigInt()),
			bigIntTo32Bytes(order.TakerAmount.BigInt()),
			bigIntTo32Bytes(order.MakerFee.BigInt()),
			bigIntTo32Bytes(order.TakerFee.BigInt()),
			bigIntTo32Bytes(big.NewInt(order.ExpirationTimestampSec)),
		),
	))
}

// Verify reports whether signature is a valid ECDSA signature of hash
// recoverable to signer. signature must be the 65-byte (r || s || v) form;
// v may be either {0,1} or {27,28}.
func (Validator) Verify(hash common.Hash, signature []byte, signer common.Address) bool {
	if len(signature) != 65 {
		return false
	}

	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := ethcrypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return false
	}
	return ethcrypto.PubkeyToAddress(*pubKey) == signer
}

var _ domain.OrderValidator = Validator{}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n.
func bigIntTo32Bytes(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
