package crypto

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

func sampleOrder() domain.SignedOrder {
	return domain.SignedOrder{
		Maker:                  common.HexToAddress("0x1"),
		Taker:                  common.HexToAddress("0x2"),
		MakerTokenAddress:      common.HexToAddress("0x3"),
		TakerTokenAddress:      common.HexToAddress("0x4"),
		MakerAmount:            decimal.NewFromInt(100),
		TakerAmount:            decimal.NewFromInt(200),
		MakerFee:               decimal.Zero,
		TakerFee:               decimal.Zero,
		ExpirationTimestampSec: 1700000000,
	}
}

func TestHashIsDeterministic(t *testing.T) {
	v := NewValidator()
	order := sampleOrder()

	h1 := v.Hash(order)
	h2 := v.Hash(order)
	if h1 != h2 {
		t.Fatalf("expected deterministic hash, got %v vs %v", h1, h2)
	}
}

func TestHashChangesWithAnyField(t *testing.T) {
	v := NewValidator()
	base := sampleOrder()
	baseHash := v.Hash(base)

	mutated := base
	mutated.MakerAmount = decimal.NewFromInt(101)
	if v.Hash(mutated) == baseHash {
		t.Fatal("expected hash to change when MakerAmount changes")
	}

	mutated = base
	mutated.ExpirationTimestampSec = base.ExpirationTimestampSec + 1
	if v.Hash(mutated) == baseHash {
		t.Fatal("expected hash to change when ExpirationTimestampSec changes")
	}
}

func TestVerifyAcceptsGenuineSignature(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := ethcrypto.PubkeyToAddress(key.PublicKey)

	v := NewValidator()
	order := sampleOrder()
	order.Maker = signer
	hash := v.Hash(order)

	sig, err := ethcrypto.Sign(hash.Bytes(), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if !v.Verify(hash, sig, signer) {
		t.Fatal("expected genuine signature to verify")
	}
}

func TestVerifyAcceptsEip155StyleVValue(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := ethcrypto.PubkeyToAddress(key.PublicKey)

	v := NewValidator()
	order := sampleOrder()
	order.Maker = signer
	hash := v.Hash(order)

	sig, err := ethcrypto.Sign(hash.Bytes(), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	shifted := make([]byte, 65)
	copy(shifted, sig)
	shifted[64] += 27

	if !v.Verify(hash, shifted, signer) {
		t.Fatal("expected 27/28-shifted v value to still verify")
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	v := NewValidator()
	order := sampleOrder()
	hash := v.Hash(order)

	sig, err := ethcrypto.Sign(hash.Bytes(), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	other := common.HexToAddress("0xdeadbeef")
	if v.Verify(hash, sig, other) {
		t.Fatal("expected verification to fail for a non-signing address")
	}
}

func TestVerifyRejectsMalformedSignatureLength(t *testing.T) {
	v := NewValidator()
	if v.Verify(common.HexToHash("0x1"), []byte{1, 2, 3}, common.HexToAddress("0x1")) {
		t.Fatal("expected malformed signature to be rejected")
	}
}

func TestVerifyRejectsTamperedHash(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := ethcrypto.PubkeyToAddress(key.PublicKey)

	v := NewValidator()
	order := sampleOrder()
	order.Maker = signer
	hash := v.Hash(order)

	sig, err := ethcrypto.Sign(hash.Bytes(), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tampered := common.HexToHash("0xbadbadbad")
	if v.Verify(tampered, sig, signer) {
		t.Fatal("expected verification to fail against a different hash")
	}
}
