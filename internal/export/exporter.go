package export

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"pooled-vault/internal/domain"
	"pooled-vault/internal/observability"
	"pooled-vault/internal/storage"
)

// Exporter copies operations from the transactional audit trail into the
// columnar analytics sink. Runs are idempotent: already-exported rows are
// detected by operation ID and skipped.
type Exporter struct {
	source    storage.OperationStore
	sink      storage.OperationAnalyticsStore
	batchSize int
	clock     func() time.Time
	logger    *log.Logger
}

// Options contains configuration for creating an Exporter.
type Options struct {
	Source    storage.OperationStore
	Sink      storage.OperationAnalyticsStore
	BatchSize int
	Logger    *log.Logger
}

// NewExporter creates a new audit-trail exporter.
func NewExporter(opts Options) *Exporter {
	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = 1000
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Exporter{
		source:    opts.Source,
		sink:      opts.Sink,
		batchSize: batchSize,
		clock:     func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// WithClock sets a custom clock function for deterministic ranges in tests.
func (e *Exporter) WithClock(clock func() time.Time) *Exporter {
	e.clock = clock
	return e
}

// Result contains statistics from one export run.
type Result struct {
	OperationsExported int
	DuplicatesSkipped  int
	Errors             int
	Duration           time.Duration
}

// Run exports everything newer than the sink's high-water mark. The
// boundary timestamp is re-read on purpose: a prior run may have copied
// only part of the operations sharing it, and the duplicate handling in
// ExportRange skips the rest.
func (e *Exporter) Run(ctx context.Context) (*Result, error) {
	latest, err := e.sink.LatestTimestamp(ctx)
	if err != nil {
		observability.RecordExportRun("error", 0, 0)
		return nil, fmt.Errorf("sink latest timestamp: %w", err)
	}

	return e.ExportRange(ctx, latest, e.clock().UnixMilli())
}

// ExportRange copies operations with timestamps in [from, to] from the
// source to the sink in batches.
func (e *Exporter) ExportRange(ctx context.Context, from, to int64) (*Result, error) {
	start := time.Now()
	result := &Result{}

	ops, err := e.source.GetByTimeRange(ctx, from, to)
	if err != nil {
		observability.RecordExportRun("error", time.Since(start).Seconds(), 0)
		return result, fmt.Errorf("read source range [%d, %d]: %w", from, to, err)
	}

	if len(ops) > 0 {
		e.logger.Printf("Exporting %d operations from range [%d, %d]", len(ops), from, to)
	}

	for i := 0; i < len(ops); i += e.batchSize {
		end := i + e.batchSize
		if end > len(ops) {
			end = len(ops)
		}

		batch := ops[i:end]
		err := e.sink.InsertBulk(ctx, batch)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				// Insert one by one to find which are duplicates
				for _, op := range batch {
					if err := e.sink.InsertBulk(ctx, []*domain.Operation{op}); err != nil {
						if errors.Is(err, storage.ErrDuplicateKey) {
							result.DuplicatesSkipped++
						} else {
							result.Errors++
						}
					} else {
						result.OperationsExported++
					}
				}
			} else {
				result.Errors += len(batch)
				e.logger.Printf("Error exporting batch: %v", err)
			}
		} else {
			result.OperationsExported += len(batch)
		}
	}

	result.Duration = time.Since(start)

	status := "ok"
	if result.Errors > 0 {
		status = "error"
	}
	observability.RecordExportRun(status, result.Duration.Seconds(), result.OperationsExported)
	if result.Errors == 0 {
		observability.DefaultMetrics.LastSuccessfulExport.SetToCurrentTime()
	}

	if result.OperationsExported > 0 || result.DuplicatesSkipped > 0 || result.Errors > 0 {
		e.logger.Printf("Export complete: %d exported, %d duplicates skipped, %d errors in %v",
			result.OperationsExported, result.DuplicatesSkipped, result.Errors, result.Duration)
	}

	return result, nil
}
