package header

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_AddFamilyIPv4(t *testing.T) {
	packet := []byte{0x45, 0x00, 0x00, 0x14}

	framed, err := AddFamily(nil, packet)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 2}, framed[:FamilyLen])
	assert.Equal(t, packet, framed[FamilyLen:])

	stripped, err := StripFamily(framed)
	require.NoError(t, err)
	assert.Equal(t, packet, stripped)
}

func Test_AddFamilyIPv6(t *testing.T) {
	packet := []byte{0x60, 0x00, 0x00, 0x00}

	framed, err := AddFamily(make([]byte, 0, 64), packet)
	require.NoError(t, err)
	assert.Equal(t, afInet6, binary.BigEndian.Uint32(framed))
}

func Test_AddFamilyUnknownVersion(t *testing.T) {
	_, err := AddFamily(nil, []byte{0x10, 0x00})
	assert.True(t, errors.Is(err, ErrUnknownFamily))

	_, err = AddFamily(nil, nil)
	assert.True(t, errors.Is(err, ErrShortPacket))
}

func Test_StripFamilyShort(t *testing.T) {
	_, err := StripFamily([]byte{0, 0, 0, 2})
	assert.ErrorIs(t, err, ErrShortPacket)
}

func Test_Sequence(t *testing.T) {
	b := AppendSequence([]byte("payload"), 0x01020304)
	assert.Equal(t, []byte{1, 2, 3, 4}, b[len(b)-SeqLen:])

	payload, seq, err := SplitSequence(b)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(payload))
	assert.EqualValues(t, 0x01020304, seq)

	_, _, err = SplitSequence([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrShortPacket)
}
