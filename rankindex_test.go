package rankindex

import (
	"bytes"
	"errors"
	"log/slog"
	"math/rand"
	"slices"
	"strings"
	"testing"
)

// naiveMatches scans every alignment. The empty pattern matches 0..len(text).
func naiveMatches(text, pattern []byte, wildcard int) []int {
	res := []int{}
	for p := 0; p+len(pattern) <= len(text); p++ {
		ok := true
		for i, c := range pattern {
			if int(c) != wildcard && text[p+i] != c {
				ok = false
				break
			}
		}
		if ok {
			res = append(res, p)
		}
	}
	return res
}

func checkSet(t *testing.T, got, expected []int) {
	t.Helper()
	got = slices.Clone(got)
	slices.Sort(got)
	if got == nil {
		got = []int{}
	}
	if expected == nil {
		expected = []int{}
	}
	if !slices.Equal(got, expected) {
		t.Errorf("wrong matches: got %v, want %v", got, expected)
	}
}

func buildBoth(t *testing.T, text []byte) []*Index {
	t.Helper()
	plain, err := Build(text)
	if err != nil {
		t.Fatal(err)
	}
	withLCP, err := NewBuilder(text).UseLCP().Build()
	if err != nil {
		t.Fatal(err)
	}
	return []*Index{plain, withLCP}
}

func TestSearchBanana(t *testing.T) {
	for _, ix := range buildBoth(t, []byte("banana")) {
		got, err := ix.Search([]byte("an"))
		if err != nil {
			t.Fatal(err)
		}
		checkSet(t, got, []int{1, 3})
	}
}

func TestSearchEmptyPatternIncludesSentinel(t *testing.T) {
	for _, ix := range buildBoth(t, []byte("banana")) {
		got, err := ix.Search(nil)
		if err != nil {
			t.Fatal(err)
		}
		checkSet(t, got, []int{0, 1, 2, 3, 4, 5, 6})
	}
}

func TestSearchPatternTooLong(t *testing.T) {
	for _, ix := range buildBoth(t, []byte("banana")) {
		if _, err := ix.Search([]byte("bananas")); !errors.Is(err, ErrPatternTooLong) {
			t.Errorf("got err %v, want ErrPatternTooLong", err)
		}
		got, err := ix.Search([]byte("banana"))
		if err != nil {
			t.Fatal(err)
		}
		checkSet(t, got, []int{0})
	}
}

func TestBuildRejectsSentinel(t *testing.T) {
	if _, err := Build([]byte("ba\x00na")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got err %v, want ErrInvalidInput", err)
	}

	alphabet := Alphabet{Sentinel: '$', Wildcard: '?'}
	if _, err := NewBuilder([]byte("a$b")).WithAlphabet(alphabet).Build(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got err %v, want ErrInvalidInput", err)
	}
	if _, err := NewBuilder([]byte("a\x00b")).WithAlphabet(alphabet).Build(); err != nil {
		t.Errorf("0x00 is an ordinary symbol under a '$' sentinel: %v", err)
	}

	same := Alphabet{Sentinel: '#', Wildcard: '#'}
	if _, err := NewBuilder([]byte("abc")).WithAlphabet(same).Build(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got err %v, want ErrInvalidInput", err)
	}
}

func TestSearchAgainstNaive(t *testing.T) {
	texts := []string{
		"a",
		"aaaaaaa",
		"abracadabra",
		"mississippi",
		"ACGTACGTTTACG",
		"the quick brown fox jumps over the lazy dog",
		"ab?ab??ab",
	}
	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			indexes := buildBoth(t, []byte(text))
			for i := 0; i <= len(text); i++ {
				for j := i; j <= len(text); j++ {
					pattern := []byte(text[i:j])
					expected := naiveMatches([]byte(text), pattern, -1)
					for _, ix := range indexes {
						got, err := ix.Search(pattern)
						if err != nil {
							t.Fatal(err)
						}
						checkSet(t, got, expected)
					}
				}
			}
			for _, ix := range indexes {
				got, err := ix.Search([]byte{'#'})
				if err != nil {
					t.Fatal(err)
				}
				checkSet(t, got, nil)
			}
		})
	}
}

func TestCustomSentinelOrdersFirst(t *testing.T) {
	// '!' sorts below '$' as a byte, but the sentinel must still come first
	text := []byte("b!a!!b")
	ix, err := NewBuilder(text).WithAlphabet(Alphabet{Sentinel: '$', Wildcard: '?'}).Build()
	if err != nil {
		t.Fatal(err)
	}
	if ix.finalLevel().order[0] != len(text) {
		t.Errorf("sentinel slot holds %d, want %d", ix.finalLevel().order[0], len(text))
	}
	for _, pattern := range []string{"!", "!!", "b", "a!", "!b"} {
		got, err := ix.Search([]byte(pattern))
		if err != nil {
			t.Fatal(err)
		}
		checkSet(t, got, naiveMatches(text, []byte(pattern), -1))
	}
}

func TestCaseInsensitive(t *testing.T) {
	ix, err := NewBuilder([]byte("BaNaNa")).CaseInsensitive().Build()
	if err != nil {
		t.Fatal(err)
	}
	got, err := ix.Search([]byte("AN"))
	if err != nil {
		t.Fatal(err)
	}
	checkSet(t, got, []int{1, 3})
	if !bytes.Equal(ix.Text(), []byte("banana")) {
		t.Errorf("indexed text %q, want %q", ix.Text(), "banana")
	}
}

func TestNormalize(t *testing.T) {
	decomposed := []byte("cafe\u0301 au lait")
	precomposed := []byte("caf\u00e9")

	plain, err := Build(decomposed)
	if err != nil {
		t.Fatal(err)
	}
	got, err := plain.Search(precomposed)
	if err != nil {
		t.Fatal(err)
	}
	checkSet(t, got, nil)

	normalized, err := NewBuilder(decomposed).Normalize().Build()
	if err != nil {
		t.Fatal(err)
	}
	got, err = normalized.Search(precomposed)
	if err != nil {
		t.Fatal(err)
	}
	checkSet(t, got, []int{0})

	if _, err := NewBuilder([]byte{'a', 0xff}).Normalize().Build(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got err %v, want ErrInvalidInput", err)
	}
}

func TestEmptyText(t *testing.T) {
	for _, ix := range buildBoth(t, []byte{}) {
		if ix.Levels() != 1 {
			t.Errorf("got %d levels, want 1", ix.Levels())
		}
		got, err := ix.Search(nil)
		if err != nil {
			t.Fatal(err)
		}
		checkSet(t, got, []int{0})
		if _, err := ix.Search([]byte("a")); !errors.Is(err, ErrPatternTooLong) {
			t.Errorf("got err %v, want ErrPatternTooLong", err)
		}
		got, err = ix.SearchWithWildcards(nil)
		if err != nil {
			t.Fatal(err)
		}
		checkSet(t, got, []int{0})
	}
}

func TestIndexOwnsText(t *testing.T) {
	text := []byte("banana")
	ix, err := Build(text)
	if err != nil {
		t.Fatal(err)
	}
	text[1] = 'x'
	got, err := ix.Search([]byte("an"))
	if err != nil {
		t.Fatal(err)
	}
	checkSet(t, got, []int{1, 3})
	ix.Text()[0] = 'x'
	if ix.Text()[0] != 'b' {
		t.Error("Text exposes the indexed bytes")
	}
}

func TestDeterministic(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	text := make([]byte, 500)
	for i := range text {
		text[i] = byte('a' + r.Intn(3))
	}
	first, err := Build(text)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Build(text)
	if err != nil {
		t.Fatal(err)
	}
	for _, pattern := range []string{"a", "ab", "cab", "a?c", "bb?a?c", "??"} {
		a, err := first.SearchWithWildcards([]byte(pattern))
		if err != nil {
			t.Fatal(err)
		}
		b, err := second.SearchWithWildcards([]byte(pattern))
		if err != nil {
			t.Fatal(err)
		}
		slices.Sort(a)
		checkSet(t, b, a)
	}
}

func TestBuildLogsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	if _, err := NewBuilder([]byte("banana")).WithLogger(logger).Build(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"index built", "symbols=6", "levels=4", "classes=7"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q misses %q", out, want)
		}
	}
}

func FuzzSearch(f *testing.F) {
	f.Add([]byte("banana"), []byte("an"))
	f.Add([]byte("abracadabra"), []byte("a?a"))
	f.Add([]byte("aaaaa"), []byte("a?a?a"))
	f.Add([]byte("ACGT?ACGT"), []byte("??G"))

	f.Fuzz(func(t *testing.T, text, pattern []byte) {
		if len(text) > 300 || bytes.IndexByte(text, DefaultSentinel) >= 0 {
			return
		}
		indexes := buildBoth(t, text)
		for _, ix := range indexes {
			got, err := ix.Search(pattern)
			if len(pattern) > len(text) {
				if !errors.Is(err, ErrPatternTooLong) {
					t.Fatalf("got err %v, want ErrPatternTooLong", err)
				}
				continue
			}
			if err != nil {
				t.Fatal(err)
			}
			checkSet(t, got, naiveMatches(text, pattern, -1))

			got, err = ix.SearchWithWildcards(pattern)
			if err != nil {
				t.Fatal(err)
			}
			checkSet(t, got, naiveMatches(text, pattern, DefaultWildcard))
		}
	})
}
