package codec

import "encoding/base64"

const alnum = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Base85 uses the RFC 1924 alphabet, 4 bytes per 5 symbols.
var Base85 Codec = newRadix("base85",
	[]rune(alnum+"!#$%&()*+-;<=>?@^_`{|}~"), 4)

// Base116 packs 6 bytes into 7 symbols. The alphabet is alphanumeric ASCII
// plus Latin-1 letters, so chat clients never reinterpret it as markup,
// mentions or whitespace.
var Base116 Codec = newRadix("base116", base116Alphabet(), 6)

var Base64 Codec = base64Codec{enc: base64.StdEncoding}

func base116Alphabet() []rune {
	a := []rune(alnum)
	for c := rune(0xC0); len(a) < 116; c++ {
		if c == 0xD7 || c == 0xF7 {
			continue
		}
		a = append(a, c)
	}
	return a
}

type base64Codec struct {
	enc *base64.Encoding
}

func (base64Codec) Name() string {
	return "base64"
}

func (c base64Codec) EncodedLen(n int) int {
	return c.enc.EncodedLen(n)
}

func (c base64Codec) Encode(b []byte) string {
	return c.enc.EncodeToString(b)
}

func (c base64Codec) Decode(s string) ([]byte, error) {
	b, err := c.enc.DecodeString(s)
	if err != nil {
		offset := -1
		if ce, ok := err.(base64.CorruptInputError); ok {
			offset = int(ce)
		}
		return nil, &CodecError{Codec: "base64", Offset: offset, Reason: err.Error()}
	}
	return b, nil
}
