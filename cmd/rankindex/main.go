package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/viniciusth/rankindex"
	"github.com/viniciusth/rankindex/internal/cache"
	"github.com/viniciusth/rankindex/internal/config"
	"github.com/viniciusth/rankindex/internal/logger"
	"github.com/viniciusth/rankindex/internal/metrics"
	"github.com/viniciusth/rankindex/internal/server"
)

const usage = `usage:
  rankindex query -f <file> [-config <path>] [-wildcard] <pattern>...
  rankindex serve -f <file> [-config <path>]`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "query":
		err = runQuery(os.Args[2:], os.Stdout)
	case "serve":
		err = runServe(os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "rankindex: %v\n", err)
		os.Exit(1)
	}
}

type commonFlags struct {
	configPath string
	textPath   string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to YAML config file")
	fs.StringVar(&c.textPath, "f", "", "file holding the text to index")
}

func (c *commonFlags) load() (*config.Config, error) {
	if c.textPath == "" {
		return nil, errors.New("-f is required")
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// loadIndex reads and indexes the text file. m may be nil.
func loadIndex(cfg *config.Config, path string, m *metrics.Metrics) (*rankindex.Index, []byte, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading text file %s: %w", path, err)
	}
	start := time.Now()
	ix, err := cfg.Index.Builder(text).Build()
	if err != nil {
		return nil, nil, fmt.Errorf("indexing %s: %w", path, err)
	}
	elapsed := time.Since(start)
	if m != nil {
		m.ObserveBuild(ix, elapsed)
	}
	alphabet := ix.Alphabet()
	slog.Info("index ready",
		"file", path,
		"symbols", ix.Len(),
		"levels", ix.Levels(),
		"sentinel", fmt.Sprintf("%#x", alphabet.Sentinel),
		"wildcard", string(rune(alphabet.Wildcard)),
		"duration", elapsed,
	)
	return ix, text, nil
}

func runQuery(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	wildcard := fs.Bool("wildcard", false, "treat the wildcard symbol as matching any single symbol")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("no patterns given")
	}

	ix, _, err := loadIndex(cfg, common.textPath, nil)
	if err != nil {
		return err
	}
	search := ix.Search
	if *wildcard {
		search = ix.SearchWithWildcards
	}
	for _, pattern := range fs.Args() {
		positions, err := search([]byte(pattern))
		if err != nil {
			return fmt.Errorf("pattern %q: %w", pattern, err)
		}
		slices.Sort(positions)
		strs := make([]string, len(positions))
		for i, p := range positions {
			strs[i] = fmt.Sprint(p)
		}
		fmt.Fprintf(out, "%s\t%d\t%s\n", pattern, len(positions), strings.Join(strs, " "))
	}
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}

	var reg *prometheus.Registry
	var m *metrics.Metrics
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		metricsHandler = metrics.Handler(reg)
	}

	ix, text, err := loadIndex(cfg, common.textPath, m)
	if err != nil {
		return err
	}
	var searcher metrics.Searcher = ix
	if m != nil {
		searcher = metrics.Instrument(ix, m)
	}

	var queryCache *cache.QueryCache
	var client *cache.Client
	if cfg.Redis.Enabled {
		client, err = cache.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, query caching disabled", "error", err)
			client = nil
		} else {
			defer client.Close()
			options := fmt.Sprintf("%+v", cfg.Index)
			queryCache = cache.New(client, cache.Namespace(text, options), cfg.Redis.CacheTTL)
			if reg != nil {
				reg.MustRegister(metrics.NewCacheCollector(queryCache))
			}
			slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	h := server.New(searcher, queryCache)
	if client != nil {
		h.WithRedis(client)
	}
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      h.Routes(metricsHandler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("rankindex listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("rankindex stopped")
	return nil
}
