// Package orchestrator runs a batch of activity records through the
// pipeline: parse, validate, normalize, shape, submit. Every parsed section
// ends in exactly one terminal outcome; a failed record never aborts the
// batch. All work happens on the caller's goroutine, with external calls as
// the only suspension points.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anilreddyavula/FormPilot/internal/config"
	"github.com/anilreddyavula/FormPilot/internal/normalize"
	"github.com/anilreddyavula/FormPilot/internal/record"
	"github.com/anilreddyavula/FormPilot/internal/submit"
)

// State names for logging the run's progress.
type State string

const (
	StateIdle        State = "idle"
	StateParsing     State = "parsing"
	StateValidating  State = "validating"
	StateNormalizing State = "normalizing"
	StateShaping     State = "shaping"
	StateSubmitting  State = "submitting"
	StateSummarizing State = "summarizing"
	StateDone        State = "done"
)

// Status is a record's terminal outcome.
type Status string

const (
	StatusSubmitted        Status = "submitted"
	StatusFailedValidation Status = "failed-validation"
	StatusFailedSubmission Status = "failed-submission"
)

// Outcome is the terminal result for one parsed section.
type Outcome struct {
	Index    int
	Title    string
	Status   Status
	Reasons  []string
	Warnings []normalize.Warning
}

// Summary aggregates a run.
type Summary struct {
	RunID            string
	Total            int
	Submitted        int
	FailedValidation int
	FailedSubmission int
	Outcomes         []Outcome
}

// Submitter is the submission surface. *submit.Driver satisfies it; tests
// substitute fakes.
type Submitter interface {
	RefreshOptions(ctx context.Context) (normalize.OptionSet, error)
	CachedOptions() normalize.OptionSet
	Submit(ctx context.Context, rec *record.ActivityRecord, confirm func(ctx context.Context) (bool, error)) error
}

// Shaper applies character limits to a validated record.
type Shaper interface {
	Apply(ctx context.Context, rec *record.ActivityRecord)
}

// Confirmer blocks the run for user decisions in interactive modes.
type Confirmer interface {
	// Review shows the planned entries before submission. False skips the
	// record.
	Review(ctx context.Context, rec *record.ActivityRecord, warnings []normalize.Warning) (bool, error)
	// ConfirmSave runs between fill-complete and the save action.
	ConfirmSave(ctx context.Context, rec *record.ActivityRecord) (bool, error)
}

// Orchestrator coordinates one batch run.
type Orchestrator struct {
	cfg       *config.Config
	driver    Submitter
	shaper    Shaper
	confirmer Confirmer
	logger    *zap.Logger
	state     State
}

// New creates an Orchestrator. confirmer may be nil when neither interactive
// review nor confirm-before-save is enabled.
func New(cfg *config.Config, driver Submitter, shaper Shaper, confirmer Confirmer, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		driver:    driver,
		shaper:    shaper,
		confirmer: confirmer,
		logger:    logger,
		state:     StateIdle,
	}
}

type pending struct {
	index    int
	rec      *record.ActivityRecord
	warnings []normalize.Warning
}

// Run processes the markdown stream and returns the per-record outcomes.
// The error is non-nil only for cancellation; record failures are outcomes,
// not errors.
func (o *Orchestrator) Run(ctx context.Context, input io.Reader) (*Summary, error) {
	summary := &Summary{RunID: uuid.NewString()}
	o.transition(StateParsing)

	iter := record.NewSectionIterator(input)
	opts := o.loadOptions(ctx)

	batchSize := 1
	if o.cfg.Run.Mode == "batched" {
		batchSize = o.cfg.Run.BatchSize
	}

	index := 0
	window := make([]pending, 0, batchSize)
	for {
		if err := ctx.Err(); err != nil {
			o.finish(summary)
			return summary, fmt.Errorf("run aborted: %w", err)
		}

		raw, ok := iter.Next()
		if !ok {
			break
		}
		index++

		o.transition(StateValidating)
		rec, verr := record.Validate(raw)
		if verr != nil {
			summary.record(o.failValidation(index, raw, verr))
			continue
		}

		p, outcome := o.prepare(ctx, index, rec, opts)
		if outcome != nil {
			summary.record(*outcome)
			continue
		}

		window = append(window, p)
		if len(window) >= batchSize {
			o.submitWindow(ctx, summary, window)
			window = window[:0]
		}
	}
	o.submitWindow(ctx, summary, window)

	o.finish(summary)
	return summary, nil
}

// prepare normalizes and shapes one record. A nil outcome means the record
// is ready to submit.
func (o *Orchestrator) prepare(ctx context.Context, index int, rec *record.ActivityRecord, opts normalize.OptionSet) (pending, *Outcome) {
	o.transition(StateNormalizing)
	warnings := normalize.Apply(rec, opts, normalize.DefaultMinConfidence)
	for _, w := range warnings {
		o.logger.Warn("normalization warning",
			zap.String("title", rec.Title),
			zap.String("field", w.Field),
			zap.String("original", w.Original))
	}

	o.transition(StateShaping)
	o.shaper.Apply(ctx, rec)

	if o.cfg.Run.Interactive && o.confirmer != nil {
		proceed, err := o.confirmer.Review(ctx, rec, warnings)
		if err != nil {
			return pending{}, &Outcome{
				Index: index, Title: rec.Title, Status: StatusFailedSubmission,
				Reasons: []string{fmt.Sprintf("review aborted: %v", err)}, Warnings: warnings,
			}
		}
		if !proceed {
			return pending{}, &Outcome{
				Index: index, Title: rec.Title, Status: StatusFailedSubmission,
				Reasons: []string{"declined during review"}, Warnings: warnings,
			}
		}
	}

	return pending{index: index, rec: rec, warnings: warnings}, nil
}

// submitWindow drives each prepared record into the form.
func (o *Orchestrator) submitWindow(ctx context.Context, summary *Summary, window []pending) {
	for _, p := range window {
		o.transition(StateSubmitting)
		summary.record(o.submitOne(ctx, p))
	}
}

func (o *Orchestrator) submitOne(ctx context.Context, p pending) Outcome {
	var confirm func(ctx context.Context) (bool, error)
	if o.cfg.Run.ConfirmBeforeSave && o.confirmer != nil {
		rec := p.rec
		confirm = func(ctx context.Context) (bool, error) {
			return o.confirmer.ConfirmSave(ctx, rec)
		}
	}

	err := o.driver.Submit(ctx, p.rec, confirm)
	if err == nil {
		o.logger.Info("record submitted",
			zap.Int("index", p.index),
			zap.String("title", p.rec.Title))
		return Outcome{Index: p.index, Title: p.rec.Title, Status: StatusSubmitted, Warnings: p.warnings}
	}

	reason := err.Error()
	if errors.Is(err, submit.ErrDeclined) {
		reason = "declined before save"
	}
	o.logger.Error("submission failed",
		zap.Int("index", p.index),
		zap.String("title", p.rec.Title),
		zap.Error(err))
	return Outcome{
		Index: p.index, Title: p.rec.Title, Status: StatusFailedSubmission,
		Reasons: []string{reason}, Warnings: p.warnings,
	}
}

func (o *Orchestrator) failValidation(index int, raw map[string]string, verr *record.ValidationError) Outcome {
	reasons := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		reasons = append(reasons, fmt.Sprintf("%s: %s", f.Field, f.Reason))
	}
	title := verr.Title
	if title == "" {
		title = raw[record.KeyTitle]
	}
	o.logger.Warn("record failed validation",
		zap.Int("index", index),
		zap.String("title", title),
		zap.Strings("reasons", reasons))
	return Outcome{Index: index, Title: title, Status: StatusFailedValidation, Reasons: reasons}
}

// loadOptions pulls live option lists from the form, falling back to the
// cache plus built-ins when the form is unreachable at startup.
func (o *Orchestrator) loadOptions(ctx context.Context) normalize.OptionSet {
	opts, err := o.driver.RefreshOptions(ctx)
	if err != nil {
		o.logger.Warn("live option extraction failed, using cached options", zap.Error(err))
		return o.driver.CachedOptions()
	}
	return opts
}

func (o *Orchestrator) finish(summary *Summary) {
	o.transition(StateSummarizing)
	o.logger.Info("run complete",
		zap.String("run_id", summary.RunID),
		zap.Int("total", summary.Total),
		zap.Int("submitted", summary.Submitted),
		zap.Int("failed_validation", summary.FailedValidation),
		zap.Int("failed_submission", summary.FailedSubmission))
	o.transition(StateDone)
}

func (o *Orchestrator) transition(next State) {
	if o.state == next {
		return
	}
	o.logger.Debug("state transition",
		zap.String("from", string(o.state)),
		zap.String("to", string(next)))
	o.state = next
}

func (s *Summary) record(out Outcome) {
	s.Outcomes = append(s.Outcomes, out)
	s.Total++
	switch out.Status {
	case StatusSubmitted:
		s.Submitted++
	case StatusFailedValidation:
		s.FailedValidation++
	case StatusFailedSubmission:
		s.FailedSubmission++
	}
}
