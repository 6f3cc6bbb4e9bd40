package header

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// FamilyLen is the size of the address family prefix some tun drivers
	// put in front of every packet.
	FamilyLen = 4
	// SeqLen is the size of the big-endian sequence trailer.
	SeqLen = 4
)

var (
	ErrShortPacket   = errors.New("packet too short")
	ErrUnknownFamily = errors.New("unknown ip version")
)

// Family returns the address family value for the ip version of packet.
func Family(packet []byte) (uint32, error) {
	if len(packet) == 0 {
		return 0, ErrShortPacket
	}

	switch packet[0] >> 4 {
	case 4:
		return afInet, nil
	case 6:
		return afInet6, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownFamily, packet[0]>>4)
	}
}

// AddFamily writes the family prefix followed by packet into dst and
// returns the framed slice. dst is grown if its capacity is too small.
func AddFamily(dst []byte, packet []byte) ([]byte, error) {
	af, err := Family(packet)
	if err != nil {
		return nil, err
	}

	n := FamilyLen + len(packet)
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]

	binary.BigEndian.PutUint32(dst[:FamilyLen], af)
	copy(dst[FamilyLen:], packet)
	return dst, nil
}

// StripFamily returns the packet that follows the family prefix.
func StripFamily(b []byte) ([]byte, error) {
	if len(b) <= FamilyLen {
		return nil, ErrShortPacket
	}
	return b[FamilyLen:], nil
}

// AppendSequence appends seq in big-endian order.
func AppendSequence(b []byte, seq uint32) []byte {
	return binary.BigEndian.AppendUint32(b, seq)
}

// SplitSequence separates the trailing sequence number from the payload.
func SplitSequence(b []byte) ([]byte, uint32, error) {
	if len(b) < SeqLen {
		return nil, 0, ErrShortPacket
	}

	n := len(b) - SeqLen
	return b[:n], binary.BigEndian.Uint32(b[n:]), nil
}
