package etl

import (
	"context"
	"time"

	"github.com/BartekS5/dailyetl/pkg/models"
)

// Extractor produces the raw result set for one run. SQLExtractor reads the
// whole table into memory; a paginated or streaming source only has to
// satisfy this interface for the clean and load stages to stay unchanged.
type Extractor interface {
	Extract(ctx context.Context) (*models.Table, error)
}

// Index accepts documents in one batched write and reports how many it
// stored. Any rejected document fails the whole call.
type Index interface {
	BulkIndex(ctx context.Context, index string, docs []models.Document) (int, error)
}

// Recorder observes stage executions and run outcomes.
type Recorder interface {
	ObserveStage(stage string, d time.Duration, records int, err error)
	ObserveRun(state string, documents int, finished time.Time)
}
