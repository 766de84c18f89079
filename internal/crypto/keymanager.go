package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Key-derivation and envelope parameters for the maker keystore below. The
// iteration count is the OWASP-recommended floor for PBKDF2-HMAC-SHA256.
const (
	keystoreKDFIterations = 480_000
	keystoreSaltBytes     = 16
	keystoreKeyBytes      = 32
	keystoreVersion       = 1
)

// keystoreFile is the on-disk envelope for a password-protected maker key,
// shaped after go-ethereum's Web3 Secret Storage keystore (a cipher/kdf
// parameter block alongside the ciphertext) rather than a flat struct,
// since this package already speaks go-ethereum idioms elsewhere
// (see orderhash.go).
type keystoreFile struct {
	Version int           `json:"version"`
	Crypto  cipherEnvelope `json:"crypto"`
}

type cipherEnvelope struct {
	Cipher       string    `json:"cipher"`
	CipherText   string    `json:"ciphertext"` // base64 standard encoding
	CipherParams nonceParams `json:"cipherparams"`
	KDF          string    `json:"kdf"`
	KDFParams    kdfParams `json:"kdfparams"`
}

type nonceParams struct {
	Nonce string `json:"nonce"` // base64 standard encoding
}

type kdfParams struct {
	Salt       string `json:"salt"` // base64 standard encoding
	Iterations int    `json:"iterations"`
}

// KeyConfig selects where a maker's signing key comes from. Exactly one of
// RawPrivateKey or EncryptedKeyPath should be set; RawPrivateKey wins if
// both are.
type KeyConfig struct {
	// RawPrivateKey is a hex-encoded private key, with or without a 0x
	// prefix, typically sourced from an environment variable in
	// development. LoadKey returns it unchanged (prefix stripped).
	RawPrivateKey string

	// EncryptedKeyPath points at a keystoreFile JSON document produced by
	// EncryptKey, decrypted with KeyPassword.
	EncryptedKeyPath string
	KeyPassword      string
}

func deriveAESKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, keystoreKDFIterations, keystoreKeyBytes, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm mode: %w", err)
	}
	return gcm, nil
}

func decodeHexKey(privateKeyHex string) ([]byte, error) {
	keyBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: malformed private key hex: %w", err)
	}
	if len(keyBytes) != keystoreKeyBytes {
		return nil, fmt.Errorf("crypto: private key must be %d bytes, got %d", keystoreKeyBytes, len(keyBytes))
	}
	return keyBytes, nil
}

// EncryptKey seals a hex-encoded maker private key behind a password,
// deriving the encryption key via PBKDF2-HMAC-SHA256 and authenticating
// the ciphertext with AES-256-GCM. The returned bytes are a JSON document
// suitable for writing to disk.
func EncryptKey(privateKeyHex, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}

	keyBytes, err := decodeHexKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, keystoreSaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: reading random salt: %w", err)
	}

	gcm, err := newGCM(deriveAESKey(password, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: reading random nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, keyBytes, nil)

	doc := keystoreFile{
		Version: keystoreVersion,
		Crypto: cipherEnvelope{
			Cipher:       "aes-256-gcm",
			CipherText:   base64.StdEncoding.EncodeToString(sealed),
			CipherParams: nonceParams{Nonce: base64.StdEncoding.EncodeToString(nonce)},
			KDF:          "pbkdf2-hmac-sha256",
			KDFParams: kdfParams{
				Salt:       base64.StdEncoding.EncodeToString(salt),
				Iterations: keystoreKDFIterations,
			},
		},
	}

	return json.MarshalIndent(doc, "", "  ")
}

// DecryptKey opens a keystoreFile document produced by EncryptKey and
// returns the hex-encoded private key (without a 0x prefix).
func DecryptKey(document []byte, password string) (string, error) {
	if password == "" {
		return "", errors.New("crypto: password must not be empty")
	}

	var doc keystoreFile
	if err := json.Unmarshal(document, &doc); err != nil {
		return "", fmt.Errorf("crypto: parsing keystore document: %w", err)
	}
	if doc.Version != keystoreVersion {
		return "", fmt.Errorf("crypto: unsupported keystore version %d", doc.Version)
	}
	if doc.Crypto.Cipher != "aes-256-gcm" || doc.Crypto.KDF != "pbkdf2-hmac-sha256" {
		return "", fmt.Errorf("crypto: unsupported cipher/kdf %q/%q", doc.Crypto.Cipher, doc.Crypto.KDF)
	}

	salt, err := base64.StdEncoding.DecodeString(doc.Crypto.KDFParams.Salt)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(doc.Crypto.CipherParams.Nonce)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(doc.Crypto.CipherText)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	gcm, err := newGCM(deriveAESKey(password, salt))
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: keystore open failed, wrong password?: %w", err)
	}

	return hex.EncodeToString(plaintext), nil
}

// LoadKey resolves a maker private key from cfg: a RawPrivateKey takes
// precedence, falling back to decrypting EncryptedKeyPath with
// KeyPassword. Returns an error if neither source is configured.
func LoadKey(cfg KeyConfig) (string, error) {
	if cfg.RawPrivateKey != "" {
		trimmed := strings.TrimPrefix(cfg.RawPrivateKey, "0x")
		if _, err := hex.DecodeString(trimmed); err != nil {
			return "", fmt.Errorf("crypto: RawPrivateKey is not valid hex: %w", err)
		}
		return trimmed, nil
	}

	if cfg.EncryptedKeyPath != "" {
		document, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return "", fmt.Errorf("crypto: reading keystore file: %w", err)
		}
		return DecryptKey(document, cfg.KeyPassword)
	}

	return "", errors.New("crypto: no key source configured, set RawPrivateKey or EncryptedKeyPath")
}
