package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

// AccountID is the 32-byte public identifier of an on-chain account.
type AccountID [32]byte

// ParseAccountID decodes an SS58 address. Any registered network format is
// accepted; callers that care about the network should use DecodeSS58.
func ParseAccountID(address string) (AccountID, error) {
	id, _, err := DecodeSS58(address)
	return id, err
}

// SS58 renders the account using the supplied network format.
func (a AccountID) SS58(format uint16) string {
	return EncodeSS58(a, format)
}

// String renders the account using the DataHighway network format.
func (a AccountID) String() string {
	return EncodeSS58(a, DataHighwayFormat)
}

// Hex returns the 0x-prefixed hex encoding of the raw account bytes.
func (a AccountID) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the account is unset.
func (a AccountID) IsZero() bool {
	return a == AccountID{}
}

// MarshalText encodes the account as an SS58 address.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes an SS58 address.
func (a *AccountID) UnmarshalText(text []byte) error {
	id, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return ethcrypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// AccountID returns the chain account controlled by the key.
func (k *PrivateKey) AccountID() AccountID {
	return k.PubKey().AccountID()
}

// Sign produces a 65-byte recoverable signature over the BLAKE2b-256 digest of
// payload.
func (k *PrivateKey) Sign(payload []byte) ([]byte, error) {
	if k == nil || k.PrivateKey == nil {
		return nil, errors.New("crypto: nil private key")
	}
	digest := blake2b.Sum256(payload)
	return ethcrypto.Sign(digest[:], k.PrivateKey)
}

// AccountID derives the account of an ECDSA signer: the BLAKE2b-256 hash of the
// 33-byte compressed public key.
func (k *PublicKey) AccountID() AccountID {
	return AccountID(blake2b.Sum256(ethcrypto.CompressPubkey(k.PublicKey)))
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// VerifySignature checks that sig was produced over payload by the key that
// controls account.
func VerifySignature(account AccountID, payload, sig []byte) error {
	if len(sig) != 65 {
		return fmt.Errorf("crypto: signature must be 65 bytes, got %d", len(sig))
	}
	digest := blake2b.Sum256(payload)
	pub, err := ethcrypto.SigToPub(digest[:], sig)
	if err != nil {
		return fmt.Errorf("crypto: recover signer: %w", err)
	}
	if (&PublicKey{pub}).AccountID() != account {
		return errors.New("crypto: signature does not match account")
	}
	return nil
}
