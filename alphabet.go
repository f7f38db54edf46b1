package rankindex

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	ErrInvalidInput   = errors.New("rankindex: invalid input")
	ErrPatternTooLong = errors.New("rankindex: pattern longer than indexed text")
)

const (
	DefaultSentinel = 0x00
	DefaultWildcard = '?'

	// Level-1 keys are symbol+1, so key 0 belongs to the sentinel alone.
	sentinelKey = 0
	keyDomain   = 256 + 1

	maxTextLen = math.MaxUint32 - 1
)

// Alphabet names the reserved symbols of an index.
// The sentinel never appears in indexed text and always sorts first,
// whatever its byte value.
type Alphabet struct {
	Sentinel byte
	Wildcard byte
}

func DefaultAlphabet() Alphabet {
	return Alphabet{Sentinel: DefaultSentinel, Wildcard: DefaultWildcard}
}

type transform struct {
	caseInsensitive bool
	normalize       bool
}

func (t transform) active() bool {
	return t.caseInsensitive || t.normalize
}

func (t transform) apply(b []byte) ([]byte, error) {
	if !t.active() {
		return b, nil
	}
	if !utf8.Valid(b) {
		return nil, fmt.Errorf("%w: text transforms need valid UTF-8", ErrInvalidInput)
	}
	s := string(b)
	if t.caseInsensitive {
		s = strings.ToLower(s)
	}
	if t.normalize {
		s = norm.NFC.String(s)
	}
	return []byte(s), nil
}

// encode returns the level-1 keys of text with the sentinel appended.
func encode(text []byte, alphabet Alphabet) ([]int, error) {
	if i := bytes.IndexByte(text, alphabet.Sentinel); i >= 0 {
		return nil, fmt.Errorf("%w: sentinel symbol %#x at position %d", ErrInvalidInput, alphabet.Sentinel, i)
	}
	if uint64(len(text)) > maxTextLen {
		return nil, fmt.Errorf("%w: text of %d symbols exceeds %d", ErrInvalidInput, len(text), uint64(maxTextLen))
	}
	keys := make([]int, len(text)+1)
	for i, c := range text {
		keys[i] = int(c) + 1
	}
	keys[len(text)] = sentinelKey
	return keys, nil
}
