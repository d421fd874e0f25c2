package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/docharvest/internal/config"
	"github.com/nao1215/docharvest/internal/model"
	"golang.org/x/sync/errgroup"
)

// Factory builds the pipeline for one domain. It is called once per domain
// so that per-site settings (headers, cookie, depth) can differ.
type Factory func(domain string) (*Pipeline, error)

// BatchProcessor harvests several domains concurrently.
// Each domain gets its own pipeline and therefore its own fetch gate;
// the concurrency limit bounds how many domains run at once.
type BatchProcessor struct {
	// factory creates a fresh pipeline per domain.
	factory Factory

	// concurrency is the maximum number of domains harvested at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent domains.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: config.DefaultBatchSize,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch harvests domains and returns one report per domain in input
// order. A failing domain does not stop the others; its error is recorded in
// its report. The returned error is the context's, if it ended the batch.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, domains []string) ([]*model.HarvestReport, error) {
	bp.logger.Info("starting batch processing",
		"total_domains", len(domains),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()
	results := make([]*model.HarvestReport, len(domains))

	err := bp.run(ctx, domains, func(report *model.HarvestReport, index int) {
		results[index] = report
	})

	bp.logger.Info("batch processing complete",
		"total_domains", len(domains),
		"elapsed", time.Since(startTime),
	)

	return results, err
}

// ProcessBatchWithCallback harvests domains and calls callback as each one
// finishes. callback runs on the worker goroutine, so it must be safe for
// concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	domains []string,
	callback func(report *model.HarvestReport, index int),
) error {
	return bp.run(ctx, domains, callback)
}

func (bp *BatchProcessor) run(ctx context.Context, domains []string, done func(*model.HarvestReport, int)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, domain := range domains {
		g.Go(func() error {
			report := model.NewHarvestReport(domain)
			if err := ctx.Err(); err != nil {
				report.TimedOut = true
				report.SetError(err)
				done(report, i)
				return err
			}

			bp.logger.Info("harvesting domain",
				"domain", domain,
				"index", i+1,
				"total", len(domains),
			)

			p, err := bp.factory(domain)
			if err != nil {
				report.SetError(err)
				done(report, i)
				bp.logger.Warn("failed to build pipeline", "domain", domain, "error", err)
				return nil
			}

			if err := p.Execute(ctx, report); err != nil {
				bp.logger.Warn("harvest failed", "domain", domain, "error", err)
			} else {
				bp.logger.Info("harvest completed", "domain", domain)
			}
			done(report, i)

			// The error is recorded in the report; other domains keep going.
			return nil
		})
	}

	return g.Wait()
}
