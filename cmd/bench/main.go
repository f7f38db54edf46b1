package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/viniciusth/rankindex"
	"golang.org/x/sync/errgroup"
)

type variant struct {
	name   string
	config func(*rankindex.Builder) *rankindex.Builder
}

var variants = map[string]variant{
	"levels": {name: "levels", config: func(b *rankindex.Builder) *rankindex.Builder { return b }},
	"lcp":    {name: "lcp", config: func(b *rankindex.Builder) *rankindex.Builder { return b.UseLCP() }},
}

type memMonitor struct {
	maxAlloc uint64
	stop     chan struct{}
	done     chan struct{}
}

func newMemMonitor() *memMonitor {
	mm := &memMonitor{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(mm.done)
		for {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			if m.Alloc > mm.maxAlloc {
				mm.maxAlloc = m.Alloc
			}
			select {
			case <-mm.stop:
				return
			default:
				time.Sleep(10 * time.Millisecond)
			}
		}
	}()
	return mm
}

func (mm *memMonitor) Stop() uint64 {
	close(mm.stop)
	<-mm.done
	return mm.maxAlloc
}

func getCurrentAlloc() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc
}

func measureBuild(text []byte, config func(*rankindex.Builder) *rankindex.Builder) (time.Duration, uint64, uint64, *rankindex.Index) {
	runtime.GC()
	mm := newMemMonitor()
	start := time.Now()
	ix, err := config(rankindex.NewBuilder(text)).Build()
	if err != nil {
		panic(err)
	}
	dur := time.Since(start)
	peak := mm.Stop()
	runtime.GC()
	alloc := getCurrentAlloc()
	return dur, peak, alloc, ix
}

// measureQuery splits the patterns over workers; the index is read-only
// after Build, so they share it without locking.
func measureQuery(ix *rankindex.Index, patterns [][]byte, wildcard bool, workers int) (time.Duration, uint64, int, error) {
	search := ix.Search
	if wildcard {
		search = ix.SearchWithWildcards
	}

	runtime.GC()
	mm := newMemMonitor()
	start := time.Now()
	counts := make([]int, len(patterns))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, p := range patterns {
		g.Go(func() error {
			positions, err := search(p)
			if err != nil {
				return fmt.Errorf("pattern %q: %w", p, err)
			}
			counts[i] = len(positions)
			return nil
		})
	}
	err := g.Wait()
	dur := time.Since(start)
	peak := mm.Stop()

	total := 0
	for _, c := range counts {
		total += c
	}
	return dur, peak, total, err
}

func randomText(r *rand.Rand, n, sigma int) []byte {
	text := make([]byte, n)
	for i := range text {
		text[i] = byte('a' + r.Intn(sigma))
	}
	return text
}

// samplePatterns cuts patterns out of the text, so most of them match, and
// replaces up to wildcards symbols of each with '?'.
func samplePatterns(r *rand.Rand, text []byte, count, length, wildcards int) [][]byte {
	patterns := make([][]byte, count)
	for i := range patterns {
		start := r.Intn(len(text) - length + 1)
		p := append([]byte(nil), text[start:start+length]...)
		for range wildcards {
			p[r.Intn(length)] = rankindex.DefaultWildcard
		}
		patterns[i] = p
	}
	return patterns
}

func runBenchmark(v variant, N, sigma, P, Q, wildcards, workers, runs int) error {
	for run := 0; run < runs; run++ {
		r := rand.New(rand.NewSource(int64(run)))
		text := randomText(r, N, sigma)
		bt, bp, ba, ix := measureBuild(text, v.config)
		patterns := samplePatterns(r, text, Q, P, wildcards)
		qt, qp, matches, err := measureQuery(ix, patterns, wildcards > 0, workers)
		if err != nil {
			return err
		}
		fmt.Printf("%s,%d,%d,%d,%d,%d,%d,%d,%.0f,%d,%d,%.0f,%d,%d\n",
			v.name, N, sigma, P, Q, wildcards, workers, ix.Levels(),
			float64(bt.Nanoseconds()), bp, ba,
			float64(qt.Nanoseconds()), qp, matches)
	}
	return nil
}

func main() {
	variantName := flag.String("variant", "", "Variant to benchmark")
	n := flag.Int("n", 0, "Text length N")
	sigma := flag.Int("sigma", 4, "Alphabet size")
	p := flag.Int("p", 0, "Pattern length P")
	q := flag.Int("q", 0, "Number of queries Q")
	wildcards := flag.Int("wildcards", 0, "Wildcards per pattern, > 0 runs wildcard search")
	workers := flag.Int("workers", runtime.GOMAXPROCS(0), "Concurrent query workers")
	runs := flag.Int("runs", 3, "Number of runs for averaging")
	cpuprofile := flag.String("cpuprofile", "", "Write CPU profile to file")
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if *variantName == "" || *n <= 0 || *p <= 0 || *q <= 0 || *p > *n ||
		*sigma < 1 || *sigma > 26 || *wildcards < 0 || *workers < 1 {
		fmt.Println("Usage: go run main.go -variant=<variant> -n=<N> -p=<P> -q=<Q> [-sigma=<S>] [-wildcards=<W>] [-workers=<K>] [-runs=<runs>]")
		fmt.Println("Available variants: levels, lcp")
		os.Exit(1)
	}

	v, ok := variants[*variantName]
	if !ok {
		fmt.Println("Invalid variant:", *variantName)
		os.Exit(1)
	}

	if err := runBenchmark(v, *n, *sigma, *p, *q, *wildcards, *workers, *runs); err != nil {
		fmt.Fprintf(os.Stderr, "benchmark failed: %v\n", err)
		os.Exit(1)
	}
}
