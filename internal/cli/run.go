package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/iwacpipe/internal/cache"
	"github.com/ppiankov/iwacpipe/internal/model"
	"github.com/ppiankov/iwacpipe/internal/pipeline"
	"github.com/ppiankov/iwacpipe/internal/worker"
)

var runTimeout time.Duration

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch the collection and write the observation file",
	Long: `Run downloads every newspaper item set of the configured countries and
the five category partitions, labels each subject mention with its
category and writes the rows to one JSON file.

Any failed request aborts the run and leaves an existing output file
untouched.

Example:
  iwacpipe run
  iwacpipe run --output data/preprocessed_data.json --pretty
  iwacpipe run --cache --rps 5 --metrics-file /var/lib/node_exporter/iwacpipe.prom`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.DurationVar(&runTimeout, "timeout", 30*time.Minute, "overall run timeout (0 for none)")

	// Flags below override the matching config keys
	f.String("base-url", "", "Omeka S API base URL")
	f.StringP("output", "o", "", "output JSON path")
	f.String("metrics-file", "", "write Prometheus metrics to this file after the run")
	f.Bool("strict", false, "fail when an identifier appears in more than one category table")
	f.Duration("request-timeout", 0, "timeout for each page request")
	f.String("ua", "", "HTTP User-Agent")
	f.Int("workers", 0, "item sets fetched concurrently")
	f.Float64("rps", 0, "max requests per second to the API (0 for unlimited)")
	f.Bool("cache", false, "cache API pages between runs")
	f.String("cache-dir", "", "page cache directory (empty for memory only)")
	f.String("redis-url", "", "Redis URL for the page cache")
	f.String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	f.String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")

	bindFlags(viper.GetViper(), runCmd, map[string]string{
		"base-url":        "api.base_url",
		"output":          "output.path",
		"metrics-file":    "output.metrics_file",
		"strict":          "categories.strict",
		"request-timeout": "http.timeout",
		"ua":              "http.user_agent",
		"workers":         "concurrency.item_set_workers",
		"rps":             "rate_limiting.requests_per_second",
		"cache":           "cache.enabled",
		"cache-dir":       "cache.dir",
		"redis-url":       "cache.redis_url",
		"http-proxy":      "http.http_proxy",
		"https-proxy":     "http.https_proxy",
	})
}

// bindFlags binds each flag to a config key; a flag only takes effect
// when set on the command line.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		_ = v.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	printBanner(os.Stderr, cfg)

	if cfg.API.Key == "" || cfg.API.Identity == "" {
		log.Warn().Msg("OMEKA_API_KEY or OMEKA_API_IDENTITY not set, requests are anonymous")
	}

	metrics := pipeline.NewMetrics()
	client, closeClient, err := newClient(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeClient(); err != nil {
			log.Warn().Err(err).Msg("Failed to close page cache")
		}
	}()

	p, err := pipeline.NewPipeline(cfg, client, metrics)
	if err != nil {
		return err
	}

	summary, runErr := p.Run(ctx)

	// Metrics are written for failed runs too
	if cfg.Output.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			log.Warn().Err(err).Str("path", cfg.Output.MetricsFile).Msg("Failed to write metrics")
		}
	}

	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	printSummary(os.Stderr, summary)
	return nil
}

// newClient builds the API client with the optional cache and limiter.
// The returned close function releases the cache.
func newClient(ctx context.Context, cfg *model.Config, metrics *pipeline.Metrics) (*pipeline.Client, func() error, error) {
	pageCache, closeCache, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}

	opts := []pipeline.ClientOption{pipeline.WithMetrics(metrics)}
	if pageCache != nil {
		opts = append(opts, pipeline.WithCache(pageCache, cfg.Cache.TTL))
	}
	if cfg.RateLimiting.RequestsPerSecond > 0 {
		opts = append(opts, pipeline.WithLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)))
	}

	client, err := pipeline.NewClient(pipeline.ClientConfig{
		BaseURL: cfg.API.BaseURL,
		Credentials: pipeline.Credentials{
			Key:      cfg.API.Key,
			Identity: cfg.API.Identity,
		},
		Timeout:    cfg.HTTP.Timeout,
		UserAgent:  cfg.HTTP.UserAgent,
		HTTPProxy:  cfg.HTTP.HTTPProxy,
		HTTPSProxy: cfg.HTTP.HTTPSProxy,
	}, opts...)
	if err != nil {
		_ = closeCache()
		return nil, nil, err
	}
	return client, closeCache, nil
}

func printBanner(w io.Writer, cfg *model.Config) {
	itemSets := 0
	for _, c := range cfg.Countries {
		itemSets += len(c.ItemSets)
	}
	cacheMode := "off"
	switch {
	case !cfg.Cache.Enabled:
	case cfg.Cache.RedisURL != "":
		cacheMode = "redis"
	case cfg.Cache.Dir != "":
		cacheMode = cfg.Cache.Dir
	default:
		cacheMode = "memory"
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  iwacpipe\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  API:          %s\n", cfg.API.BaseURL)
	fmt.Fprintf(w, "  Countries:    %d (%d item sets)\n", len(cfg.Countries), itemSets)
	fmt.Fprintf(w, "  Workers:      %d\n", cfg.Concurrency.ItemSetWorkers)
	fmt.Fprintf(w, "  Cache:        %s\n", cacheMode)
	fmt.Fprintf(w, "  Output:       %s\n", cfg.Output.Path)
	if runTimeout > 0 {
		fmt.Fprintf(w, "  Timeout:      %v\n", runTimeout)
	}
	fmt.Fprintf(w, "\n")
}

func printSummary(w io.Writer, s *pipeline.Summary) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Run Complete\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	for _, c := range s.Countries {
		fmt.Fprintf(w, "  %-14s %d rows\n", c.Country+":", c.Rows)
	}
	fmt.Fprintf(w, "\n")

	categories := make([]string, 0, len(s.Categories))
	for c := range s.Categories {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(w, "  %-14s %d\n", c+":", s.Categories[model.Category(c)])
	}
	fmt.Fprintf(w, "  %-14s %d\n", "Unclassified:", s.Unclassified)
	if len(s.Overlaps) > 0 {
		fmt.Fprintf(w, "  %-14s %d identifiers (first match used)\n", "Overlaps:", len(s.Overlaps))
	}
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Total:     %d rows\n", s.Rows)
	fmt.Fprintf(w, "  Output:    %s\n", s.OutputPath)
	fmt.Fprintf(w, "  Duration:  %v\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "\n")
}
