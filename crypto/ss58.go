package crypto

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

// Network formats used by the SS58 address codec.
const (
	DataHighwayFormat uint16 = 33
	SubstrateFormat   uint16 = 42

	maxSS58Format uint16 = 16383
)

var (
	ss58ChecksumPrefix = []byte("SS58PRE")

	ErrInvalidSS58 = errors.New("crypto: invalid ss58 address")
)

// EncodeSS58 renders a 32-byte account with the given network format. Formats
// above 16383 are not representable and are clamped to the generic Substrate
// format.
func EncodeSS58(id AccountID, format uint16) string {
	if format > maxSS58Format {
		format = SubstrateFormat
	}
	prefix := ss58FormatBytes(format)
	body := make([]byte, 0, len(prefix)+len(id)+2)
	body = append(body, prefix...)
	body = append(body, id[:]...)
	sum := ss58Checksum(body)
	body = append(body, sum[:2]...)
	return base58.Encode(body)
}

// DecodeSS58 parses an SS58 address and returns the account along with the
// network format encoded in the address.
func DecodeSS58(address string) (AccountID, uint16, error) {
	var id AccountID
	raw := base58.Decode(address)
	if len(raw) == 0 {
		return id, 0, fmt.Errorf("%w: not base58", ErrInvalidSS58)
	}
	var (
		format    uint16
		prefixLen int
	)
	switch {
	case raw[0] < 64:
		format = uint16(raw[0])
		prefixLen = 1
	case raw[0] < 128:
		if len(raw) < 2 {
			return id, 0, fmt.Errorf("%w: truncated prefix", ErrInvalidSS58)
		}
		lower := (raw[0] << 2) | (raw[1] >> 6)
		upper := raw[1] & 0b0011_1111
		format = uint16(lower) | uint16(upper)<<8
		prefixLen = 2
	default:
		return id, 0, fmt.Errorf("%w: reserved prefix %d", ErrInvalidSS58, raw[0])
	}
	if len(raw) != prefixLen+len(id)+2 {
		return id, 0, fmt.Errorf("%w: unexpected length %d", ErrInvalidSS58, len(raw))
	}
	body := raw[:prefixLen+len(id)]
	sum := ss58Checksum(body)
	if !bytes.Equal(sum[:2], raw[len(body):]) {
		return id, 0, fmt.Errorf("%w: checksum mismatch", ErrInvalidSS58)
	}
	copy(id[:], body[prefixLen:])
	return id, format, nil
}

func ss58FormatBytes(format uint16) []byte {
	if format < 64 {
		return []byte{byte(format)}
	}
	first := byte((format&0b0000_0000_1111_1100)>>2) | 0b0100_0000
	second := byte(format>>8) | byte((format&0b0000_0000_0000_0011)<<6)
	return []byte{first, second}
}

func ss58Checksum(body []byte) [64]byte {
	payload := make([]byte, 0, len(ss58ChecksumPrefix)+len(body))
	payload = append(payload, ss58ChecksumPrefix...)
	payload = append(payload, body...)
	return blake2b.Sum512(payload)
}
