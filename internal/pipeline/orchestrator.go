package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/iwacpipe/internal/logging"
	"github.com/ppiankov/iwacpipe/internal/model"
	"github.com/ppiankov/iwacpipe/internal/worker"
)

// DefaultItemSetWorkers is the number of item sets fetched at once
const DefaultItemSetWorkers = 5

// Orchestrator fetches the item sets of a country and flattens their items
type Orchestrator struct {
	fetcher   PageFetcher
	countries model.CountryTable
	workers   int
	metrics   *Metrics
	logger    zerolog.Logger
}

// NewOrchestrator creates an orchestrator. countries is used to label
// rows by the item set each item belongs to.
func NewOrchestrator(fetcher PageFetcher, countries model.CountryTable, workers int, metrics *Metrics) *Orchestrator {
	if workers <= 0 {
		workers = DefaultItemSetWorkers
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Orchestrator{
		fetcher:   fetcher,
		countries: countries,
		workers:   workers,
		metrics:   metrics,
		logger:    logging.NewLogger("orchestrator"),
	}
}

// itemSetJob fetches one item set and folds its items into rows
type itemSetJob struct {
	itemSetID string
	fetcher   PageFetcher
	countries model.CountryTable
}

type itemSetResult struct {
	ItemSetID string
	Items     int
	Rows      []model.FlatRow
	Duration  time.Duration
	Error     error
}

func (r *itemSetResult) GetError() error {
	return r.Error
}

func (j *itemSetJob) Execute(ctx context.Context) worker.Result {
	start := time.Now()

	items, err := j.fetcher.FetchAllPages(ctx, url.Values{"item_set_id": {j.itemSetID}})
	if err != nil {
		return &itemSetResult{ItemSetID: j.itemSetID, Error: err}
	}

	var rows []model.FlatRow
	for _, item := range items {
		rows = append(rows, Flatten(item, j.countries)...)
	}

	return &itemSetResult{
		ItemSetID: j.itemSetID,
		Items:     len(items),
		Rows:      rows,
		Duration:  time.Since(start),
	}
}

// FetchCountry fetches every item set of one country, at most o.workers
// at a time, and returns the flattened rows. Rows of different item sets
// are grouped by completion order, which is not deterministic. The first
// failed item set cancels the others and its error is returned.
func (o *Orchestrator) FetchCountry(ctx context.Context, country string, itemSetIDs []string) ([]model.FlatRow, error) {
	jobs := make([]worker.Job, 0, len(itemSetIDs))
	for _, id := range itemSetIDs {
		jobs = append(jobs, &itemSetJob{
			itemSetID: id,
			fetcher:   o.fetcher,
			countries: o.countries,
		})
	}

	results := worker.Run(ctx, o.workers, jobs, worker.WithStopOnError())
	if err := worker.FirstError(results); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", country, err)
	}
	if len(results) != len(jobs) {
		// Only possible when ctx was cancelled before every job ran
		return nil, fmt.Errorf("fetch %s: %w", country, context.Cause(ctx))
	}

	var rows []model.FlatRow
	for i, r := range results {
		res := r.(*itemSetResult)
		o.metrics.Items.WithLabelValues("observation").Add(float64(res.Items))
		o.logger.Info().
			Str("country", country).
			Str("item_set", res.ItemSetID).
			Int("items", res.Items).
			Int("rows", len(res.Rows)).
			Dur("duration", res.Duration).
			Msgf("Fetched item set %d/%d", i+1, len(results))
		rows = append(rows, res.Rows...)
	}

	o.metrics.Rows.WithLabelValues(country).Add(float64(len(rows)))
	return rows, nil
}
