package codec

import (
	"strings"
	"unicode/utf8"
)

// radix is a block codec: every full group of blockBytes bytes is written as
// blockBytes+1 symbols of the alphabet, most significant first. A trailing
// group of k bytes is written as k+1 symbols.
type radix struct {
	name       string
	alphabet   []rune
	index      map[rune]uint64
	blockBytes int
}

func newRadix(name string, alphabet []rune, blockBytes int) *radix {
	r := &radix{
		name:       name,
		alphabet:   alphabet,
		index:      make(map[rune]uint64, len(alphabet)),
		blockBytes: blockBytes,
	}
	for i, c := range alphabet {
		if _, dup := r.index[c]; dup {
			panic("codec: duplicate symbol in " + name + " alphabet")
		}
		r.index[c] = uint64(i)
	}
	return r
}

func (r *radix) Name() string {
	return r.name
}

func (r *radix) EncodedLen(n int) int {
	full := n / r.blockBytes
	rem := n % r.blockBytes
	l := full * (r.blockBytes + 1)
	if rem > 0 {
		l += rem + 1
	}
	return l
}

func (r *radix) Encode(b []byte) string {
	var sb strings.Builder
	sb.Grow(r.EncodedLen(len(b)) * utf8.UTFMax)

	group := make([]rune, r.blockBytes+1)
	base := uint64(len(r.alphabet))

	for len(b) > 0 {
		k := min(len(b), r.blockBytes)

		var v uint64
		for _, c := range b[:k] {
			v = v<<8 | uint64(c)
		}

		symbols := group[:k+1]
		for i := len(symbols) - 1; i >= 0; i-- {
			symbols[i] = r.alphabet[v%base]
			v /= base
		}
		for _, c := range symbols {
			sb.WriteRune(c)
		}

		b = b[k:]
	}

	return sb.String()
}

func (r *radix) Decode(s string) ([]byte, error) {
	symbols := []rune(s)
	out := make([]byte, 0, len(symbols)*r.blockBytes/(r.blockBytes+1)+1)
	base := uint64(len(r.alphabet))
	width := r.blockBytes + 1

	for start := 0; start < len(symbols); start += width {
		group := symbols[start:min(start+width, len(symbols))]
		k := len(group) - 1
		if k == 0 {
			return nil, &CodecError{Codec: r.name, Offset: start, Reason: "dangling symbol"}
		}

		var v uint64
		for i, c := range group {
			d, ok := r.index[c]
			if !ok {
				return nil, &CodecError{Codec: r.name, Offset: start + i, Reason: "symbol outside alphabet"}
			}
			v = v*base + d
		}

		if v>>(8*uint(k)) != 0 {
			return nil, &CodecError{Codec: r.name, Offset: start, Reason: "group value overflows"}
		}

		for i := k - 1; i >= 0; i-- {
			out = append(out, byte(v>>(8*uint(i))))
		}
	}

	return out, nil
}
