package crypto

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const aliceSS58 = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

func aliceAccount(t *testing.T) AccountID {
	t.Helper()
	raw, err := hex.DecodeString("d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d")
	require.NoError(t, err)
	var id AccountID
	copy(id[:], raw)
	return id
}

func TestEncodeSS58KnownVector(t *testing.T) {
	require.Equal(t, aliceSS58, EncodeSS58(aliceAccount(t), SubstrateFormat))
}

func TestDecodeSS58KnownVector(t *testing.T) {
	id, format, err := DecodeSS58(aliceSS58)
	require.NoError(t, err)
	require.Equal(t, SubstrateFormat, format)
	require.Equal(t, aliceAccount(t), id)
}

func TestSS58RoundTripFormats(t *testing.T) {
	id := aliceAccount(t)
	for _, format := range []uint16{0, DataHighwayFormat, SubstrateFormat, 63, 64, 255, 1284, maxSS58Format} {
		encoded := EncodeSS58(id, format)
		decoded, gotFormat, err := DecodeSS58(encoded)
		require.NoError(t, err, "format %d", format)
		require.Equal(t, format, gotFormat)
		require.Equal(t, id, decoded)
	}
}

func TestDecodeSS58RejectsCorruption(t *testing.T) {
	corrupted := []byte(aliceSS58)
	if corrupted[10] == 'a' {
		corrupted[10] = 'b'
	} else {
		corrupted[10] = 'a'
	}
	_, _, err := DecodeSS58(string(corrupted))
	require.True(t, errors.Is(err, ErrInvalidSS58), "got %v", err)

	_, _, err = DecodeSS58("")
	require.ErrorIs(t, err, ErrInvalidSS58)

	_, _, err = DecodeSS58("0OIl")
	require.ErrorIs(t, err, ErrInvalidSS58)

	_, _, err = DecodeSS58(aliceSS58[:20])
	require.ErrorIs(t, err, ErrInvalidSS58)
}

func TestAccountIDTextRoundTrip(t *testing.T) {
	id := aliceAccount(t)
	text, err := id.MarshalText()
	require.NoError(t, err)

	var decoded AccountID
	require.NoError(t, decoded.UnmarshalText(text))
	require.Equal(t, id, decoded)
	require.False(t, decoded.IsZero())
	require.Equal(t, "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d", decoded.Hex())
}
