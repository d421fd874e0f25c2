package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/docharvest/internal/model"
	"github.com/nao1215/docharvest/internal/robots"
)

// Run carries the state of one harvest run between steps.
// The report is the durable result; the other fields are working data
// that only later steps read.
type Run struct {
	// Report is filled in by every step and outlives the run.
	Report *model.HarvestReport

	// Policy is the robots.txt policy of the domain, set by RobotsStep.
	Policy *robots.Policy

	// Discovered holds the download records of all seeds before deduplication.
	Discovered []model.DownloadRecord

	// Pending holds the downloads still waiting for processing.
	Pending []model.DownloadRecord
}

// Step is one stage of a harvest run.
type Step interface {
	// Do executes the step. A returned error stops the pipeline unless it
	// was built with WithContinueOnError; recoverable problems are logged
	// by the step itself and not returned.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. The last error is kept in the report.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence against report.
//
// Cancellation is checked between steps; a step interrupted by the context
// returns the context error itself. Either way the report is marked as timed
// out. Returns the first error when continueOnError is false.
func (p *Pipeline) Execute(ctx context.Context, report *model.HarvestReport) error {
	run := &Run{Report: report}
	defer func() {
		report.Duration = time.Since(report.StartedAt)
	}()

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", err,
			)
			report.TimedOut = true
			report.SetError(err)
			return err
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"domain", report.Domain,
		)

		err := step.Do(ctx, run)
		report.AddPerformedStep(step.Name())
		if err == nil {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"domain", report.Domain,
			)
			continue
		}

		p.logger.Error("step failed",
			"step", step.Name(),
			"domain", report.Domain,
			"error", err,
		)
		report.SetError(err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			report.TimedOut = true
		}

		if !p.continueOnError {
			return err
		}
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
