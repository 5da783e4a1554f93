package pipeline

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ppiankov/iwacpipe/internal/logging"
	"github.com/ppiankov/iwacpipe/internal/model"
	"github.com/ppiankov/iwacpipe/internal/worker"
)

// DefaultCategoryWorkers fetches all five partitions at once
const DefaultCategoryWorkers = 5

// BuildCategoryTable maps the id of every titled item in a partition to
// its title. Items without an id or title are skipped.
func BuildCategoryTable(ctx context.Context, fetcher PageFetcher, partitionID string) (model.CategoryTable, error) {
	items, err := fetcher.FetchAllPages(ctx, url.Values{"item_set_id": {partitionID}})
	if err != nil {
		return nil, err
	}

	table := make(model.CategoryTable, len(items))
	for _, item := range items {
		id, ok := item.Identifier()
		if !ok {
			continue
		}
		title, ok := item.Title()
		if !ok {
			continue
		}
		table[id] = title
	}
	return table, nil
}

type categoryJob struct {
	category    model.Category
	partitionID string
	fetcher     PageFetcher
}

type categoryResult struct {
	Category model.Category
	Table    model.CategoryTable
	Error    error
}

func (r *categoryResult) GetError() error {
	return r.Error
}

func (j *categoryJob) Execute(ctx context.Context) worker.Result {
	table, err := BuildCategoryTable(ctx, j.fetcher, j.partitionID)
	if err != nil {
		err = fmt.Errorf("category %s: %w", j.category, err)
	}
	return &categoryResult{Category: j.category, Table: table, Error: err}
}

// BuildCategoryTables builds the table of every category concurrently.
// partitions maps each category to the item set holding its resources.
func BuildCategoryTables(ctx context.Context, fetcher PageFetcher, partitions map[model.Category]string, workers int, metrics *Metrics) (model.CategoryTables, error) {
	if workers <= 0 {
		workers = DefaultCategoryWorkers
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	logger := logging.NewLogger("categories")

	jobs := make([]worker.Job, 0, len(partitions))
	for _, category := range model.CategoryPriority {
		id, ok := partitions[category]
		if !ok || id == "" {
			return model.CategoryTables{}, fmt.Errorf("no partition for category %s", category)
		}
		jobs = append(jobs, &categoryJob{category: category, partitionID: id, fetcher: fetcher})
	}

	results := worker.Run(ctx, workers, jobs, worker.WithStopOnError())
	if err := worker.FirstError(results); err != nil {
		return model.CategoryTables{}, err
	}
	if len(results) != len(jobs) {
		return model.CategoryTables{}, fmt.Errorf("build category tables: %w", context.Cause(ctx))
	}

	tables := make(map[model.Category]model.CategoryTable, len(results))
	for _, r := range results {
		res := r.(*categoryResult)
		tables[res.Category] = res.Table
		metrics.Items.WithLabelValues("category").Add(float64(len(res.Table)))
		metrics.CategoryEntries.WithLabelValues(string(res.Category)).Set(float64(len(res.Table)))
		logger.Info().
			Str("category", string(res.Category)).
			Str("partition", partitions[res.Category]).
			Int("entries", len(res.Table)).
			Msg("Loaded category table")
	}

	return model.NewCategoryTables(tables), nil
}
