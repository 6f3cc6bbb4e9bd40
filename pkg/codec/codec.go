package codec

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCodec is matched by every decode failure.
var ErrCodec = errors.New("codec error")

// Codec maps arbitrary bytes to text made only of symbols a destination
// field accepts, and back. Codecs are stateless and safe for concurrent use.
type Codec interface {
	Name() string
	Encode(b []byte) string
	Decode(s string) ([]byte, error)
	// EncodedLen returns the number of symbols Encode produces for n bytes.
	EncodedLen(n int) int
}

type CodecError struct {
	Codec  string
	Offset int
	Reason string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("%s: invalid input at symbol %d: %s", e.Codec, e.Offset, e.Reason)
}

func (e *CodecError) Is(target error) bool {
	return target == ErrCodec
}

var registry = map[string]Codec{
	Base116.Name(): Base116,
	Base85.Name():  Base85,
	Base64.Name():  Base64,
}

// Lookup returns the codec registered under name.
func Lookup(name string) (Codec, error) {
	c, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", name)
	}
	return c, nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Capacity returns the largest input that c encodes to at most symbols
// symbols.
func Capacity(c Codec, symbols int) int {
	n := 0
	for c.EncodedLen(n+1) <= symbols {
		n++
	}
	return n
}
