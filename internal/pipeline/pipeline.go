package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/iwacpipe/internal/logging"
	"github.com/ppiankov/iwacpipe/internal/model"
)

// Pipeline runs one complete ingestion: category tables and per-country
// fetches, classification, then the output file.
type Pipeline struct {
	fetcher      PageFetcher
	orchestrator *Orchestrator
	config       *model.Config
	metrics      *Metrics
	logger       zerolog.Logger
}

// NewPipeline validates cfg and wires the stages around fetcher.
func NewPipeline(cfg *model.Config, fetcher PageFetcher, metrics *Metrics) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	countries, err := model.NewCountryTable(cfg.Countries)
	if err != nil {
		return nil, fmt.Errorf("country table: %w", err)
	}

	if metrics == nil {
		metrics = NewMetrics()
	}

	return &Pipeline{
		fetcher:      fetcher,
		orchestrator: NewOrchestrator(fetcher, countries, cfg.Concurrency.ItemSetWorkers, metrics),
		config:       cfg,
		metrics:      metrics,
		logger:       logging.NewLogger("pipeline"),
	}, nil
}

// CountrySummary reports the rows produced for one country
type CountrySummary struct {
	Country string
	Rows    int
}

// Summary describes a completed run
type Summary struct {
	OutputPath   string
	Rows         int
	Countries    []CountrySummary
	Categories   map[model.Category]int
	Unclassified int
	Overlaps     []model.Overlap
	Duration     time.Duration
}

type tablesOutcome struct {
	tables model.CategoryTables
	err    error
}

// Run fetches everything, classifies and writes the output file. Any fetch
// error stops the run before the output file is touched.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Category partitions are independent of the countries; fetch them
	// alongside.
	tablesCh := make(chan tablesOutcome, 1)
	go func() {
		tables, err := BuildCategoryTables(runCtx, p.fetcher,
			p.config.Categories.Partitions.ByCategory(),
			p.config.Concurrency.CategoryWorkers, p.metrics)
		if err != nil {
			// Stop the country fetches too
			cancel()
		}
		tablesCh <- tablesOutcome{tables: tables, err: err}
	}()

	summary := &Summary{OutputPath: p.config.Output.Path}

	var rows []model.FlatRow
	for _, country := range p.config.Countries {
		p.logger.Info().
			Str("country", country.Name).
			Int("item_sets", len(country.ItemSets)).
			Msg("Processing country")

		countryRows, err := p.orchestrator.FetchCountry(runCtx, country.Name, country.ItemSets)
		if err != nil {
			cancel()
			outcome := <-tablesCh
			// A category failure cancels the countries; report the cause
			if outcome.err != nil && runCtx.Err() != nil && ctx.Err() == nil && isCancellation(err) {
				return nil, outcome.err
			}
			return nil, err
		}

		summary.Countries = append(summary.Countries, CountrySummary{Country: country.Name, Rows: len(countryRows)})
		rows = append(rows, countryRows...)

		p.logger.Info().
			Str("country", country.Name).
			Int("rows", len(countryRows)).
			Msgf("Processed %d rows for %s", len(countryRows), country.Name)
	}

	outcome := <-tablesCh
	if outcome.err != nil {
		return nil, outcome.err
	}

	overlaps := outcome.tables.Overlaps()
	for _, o := range overlaps {
		p.logger.Warn().
			Str("id", o.ID).
			Strs("categories", categoryNames(o.Categories)).
			Msgf("Identifier in several category tables, using %s", o.Categories[0])
	}
	if len(overlaps) > 0 && p.config.Categories.Strict {
		return nil, fmt.Errorf("%d identifiers appear in more than one category table (first: %s)", len(overlaps), overlaps[0])
	}

	classified := Classify(rows, outcome.tables)
	counts := CategoryCounts(classified)

	if err := WriteJSON(classified, p.config.Output.Path); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}

	summary.Rows = len(classified)
	summary.Unclassified = counts[""]
	delete(counts, "")
	summary.Categories = counts
	summary.Overlaps = overlaps
	summary.Duration = time.Since(start)

	p.metrics.LastSuccess.SetToCurrentTime()
	p.logger.Info().
		Int("rows", summary.Rows).
		Int("unclassified", summary.Unclassified).
		Str("output", summary.OutputPath).
		Dur("duration", summary.Duration).
		Msg("Run complete")

	return summary, nil
}

func categoryNames(cats []model.Category) []string {
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return names
}
