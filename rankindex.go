package rankindex

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/viniciusth/rankindex/internal/logger"
	"github.com/viniciusth/rmq"
)

type Builder struct {
	text            []byte
	alphabet        Alphabet
	caseInsensitive bool
	normalize       bool
	useLCP          bool
	logger          *slog.Logger
}

func NewBuilder(text []byte) *Builder {
	return &Builder{
		text:     text,
		alphabet: DefaultAlphabet(),
		logger:   logger.WithComponent("rankindex"),
	}
}

// Replaces the reserved sentinel and wildcard symbols.
func (b *Builder) WithAlphabet(alphabet Alphabet) *Builder {
	b.alphabet = alphabet
	return b
}

// Lower-cases the text and every pattern before use.
// Positions then refer to the lower-cased text, see Index.Text.
func (b *Builder) CaseInsensitive() *Builder {
	b.caseInsensitive = true
	return b
}

// Normalizes the text and every pattern with NFC.
// Positions then refer to the normalized text, see Index.Text.
func (b *Builder) Normalize() *Builder {
	b.normalize = true
	return b
}

// Builds the LCP array of the final level, so exact search runs its bounds
// over the full suffix order with an RMQ instead of picking a level.
// Costs O(n) extra memory, results are unchanged.
func (b *Builder) UseLCP() *Builder {
	b.useLCP = true
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) transform() transform {
	return transform{caseInsensitive: b.caseInsensitive, normalize: b.normalize}
}

// Validate checks the alphabet against the other options without touching
// the text. Patterns are transformed before they are split on the wildcard,
// so the wildcard must come out of the transforms unchanged.
func (b *Builder) Validate() error {
	if b.alphabet.Sentinel == b.alphabet.Wildcard {
		return fmt.Errorf("%w: sentinel and wildcard are both %#x", ErrInvalidInput, b.alphabet.Sentinel)
	}
	wildcard := []byte{b.alphabet.Wildcard}
	if got, err := b.transform().apply(wildcard); err != nil || !bytes.Equal(got, wildcard) {
		return fmt.Errorf("%w: wildcard %q does not survive case folding or normalization", ErrInvalidInput, b.alphabet.Wildcard)
	}
	return nil
}

func (b *Builder) Build() (*Index, error) {
	start := time.Now()
	if err := b.Validate(); err != nil {
		return nil, err
	}

	tr := b.transform()
	text, err := tr.apply(b.text)
	if err != nil {
		return nil, err
	}
	if !tr.active() {
		text = bytes.Clone(text)
	}

	keys, err := encode(text, b.alphabet)
	if err != nil {
		return nil, err
	}
	levels := extractLevels(buildRankTables(keys, keyDomain))

	ix := &Index{
		text:      text,
		alphabet:  b.alphabet,
		transform: tr,
		levels:    levels,
	}
	if b.useLCP {
		ix.lcp = BuildLCPArray(ix.finalLevel().order, text)
		if len(ix.lcp) > 0 {
			ix.lcpRMQ = rmq.NewRMQHybridNaive(ix.lcp)
		}
	}

	b.logger.Debug("index built",
		"symbols", len(text),
		"levels", len(levels),
		"classes", ix.finalLevel().count,
		"lcp", b.useLCP,
		"duration", time.Since(start),
	)
	return ix, nil
}

// Build indexes text with the default alphabet and no transforms.
func Build(text []byte) (*Index, error) {
	return NewBuilder(text).Build()
}

// Index is immutable once built and safe for concurrent queries.
type Index struct {
	text      []byte
	alphabet  Alphabet
	transform transform
	levels    []level
	lcp       []int
	lcpRMQ    *rmq.RMQHybridNaive[int]
}

// Len is the length of the indexed text, without the sentinel.
func (ix *Index) Len() int {
	return len(ix.text)
}

// Text returns a copy of the indexed text after transforms.
func (ix *Index) Text() []byte {
	return bytes.Clone(ix.text)
}

// Levels is the number of doubling levels kept by the index.
func (ix *Index) Levels() int {
	return len(ix.levels)
}

func (ix *Index) Alphabet() Alphabet {
	return ix.alphabet
}

func (ix *Index) finalLevel() *level {
	return &ix.levels[len(ix.levels)-1]
}
