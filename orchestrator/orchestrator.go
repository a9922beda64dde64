package orchestrator

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"nba-stats-scraper/fetcher"
	"nba-stats-scraper/filter"
	"nba-stats-scraper/merge"
	"nba-stats-scraper/models"
	"nba-stats-scraper/parser"
	"nba-stats-scraper/scraper"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Parser reads stats tables and filter dropdowns from rendered markup
type Parser interface {
	parser.TableParser
	ParseFilterAxes(markup string) ([]models.FilterAxis, error)
}

// Job describes one stats page to extract
type Job struct {
	Family    models.Family
	URL       string
	RobotsURL string
	// Categories to keep; nil takes every header column
	Categories []string
	// Combinations restricts the run to a shard. Nil discovers the
	// combinations from the page.
	Combinations []models.FilterCombination
}

// Options are the capability flags and pacing of an orchestrator
type Options struct {
	RenderTimeout   time.Duration
	AcceptCookies   bool
	AdvancedFilters bool
	// MinDelay and MaxDelay bound the random pause between submissions
	MinDelay          time.Duration
	MaxDelay          time.Duration
	RequestsPerMinute float64
	// Allow narrows discovered axis values; an empty list keeps them all
	Allow map[models.Axis][]string
	// Rand drives the pauses; nil uses a randomly seeded source
	Rand *rand.Rand
}

// Orchestrator drives one browser session through every filter combination
// of a stats page and accumulates the parsed rows. It is not safe for
// concurrent use; run one per session.
type Orchestrator struct {
	session scraper.Session
	access  fetcher.AccessChecker
	parser  Parser
	opts    Options
	limiter *rate.Limiter
	rng     *rand.Rand

	family models.Family
	state  State

	// OnTransition, when set, observes every state change
	OnTransition func(from, to State, combo models.FilterCombination)
}

// New creates an Orchestrator over session
func New(session scraper.Session, access fetcher.AccessChecker, p Parser, opts Options) *Orchestrator {
	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Limit(opts.RequestsPerMinute / 60)
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Orchestrator{
		session: session,
		access:  access,
		parser:  p,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		rng:     rng,
		state:   Idle,
	}
}

// State returns the current state of the machine
func (o *Orchestrator) State() State {
	return o.state
}

// Discover opens the job's page and returns the allowed filter combinations
// in enumeration order
func (o *Orchestrator) Discover(ctx context.Context, job Job) ([]models.FilterCombination, error) {
	o.reset(job.Family)
	if err := o.open(ctx, job); err != nil {
		o.abort(models.FilterCombination{})
		return nil, err
	}
	combos, err := o.discover(ctx)
	if err != nil {
		o.abort(models.FilterCombination{})
		return nil, err
	}
	return combos, nil
}

// Extract runs every filter combination of the job and returns the rows it
// collected. Combinations that fail are recorded in the summary and skipped.
// When ctx is cancelled the rows collected so far are returned with ctx's error.
func (o *Orchestrator) Extract(ctx context.Context, job Job) (*models.ExtractionBatch, *Summary, error) {
	start := time.Now()
	o.reset(job.Family)

	summary := &Summary{Family: job.Family, URL: job.URL}
	batch := &models.ExtractionBatch{Family: job.Family}
	if job.Categories != nil {
		batch.Categories = append([]string(nil), job.Categories...)
	}
	finish := func(err error) (*models.ExtractionBatch, *Summary, error) {
		summary.Duration = time.Since(start)
		summary.Rows = len(batch.Records)
		if err != nil {
			summary.Aborted = true
		}
		return batch, summary, err
	}

	if err := o.open(ctx, job); err != nil {
		o.abort(models.FilterCombination{})
		return finish(err)
	}

	combos := job.Combinations
	if combos == nil {
		var err error
		if combos, err = o.discover(ctx); err != nil {
			o.abort(models.FilterCombination{})
			return finish(err)
		}
	}
	summary.Combinations = len(combos)
	log.Printf("Extracting %s: %d filter combinations\n", job.Family, len(combos))

	for i, combo := range combos {
		if err := o.pace(ctx, i); err != nil {
			o.abort(combo)
			return finish(err)
		}

		records, err := o.extractOne(ctx, job, combo, batch)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, scraper.ErrSessionUnavailable) {
				o.abort(combo)
				if ctx.Err() != nil {
					return finish(ctx.Err())
				}
				return finish(err)
			}
			skip := Skip{Combination: combo, State: o.state, Err: err}
			var se *stepError
			if errors.As(err, &se) {
				skip.State, skip.Err = se.state, se.err
			}
			summary.Skipped = append(summary.Skipped, skip)
			log.Printf("Warning: skipping %s (%d/%d): %v\n", combo, i+1, len(combos), err)
			continue
		}

		batch.Records = append(batch.Records, records...)
		summary.Accumulated++
		log.Printf("Extracted %s (%d/%d): %d teams\n", combo, i+1, len(combos), len(records))
	}

	return finish(nil)
}

// open checks access and prepares the page. Any failure here is session-wide.
func (o *Orchestrator) open(ctx context.Context, job Job) error {
	allowed, err := o.access.CanFetch(ctx, job.RobotsURL, job.URL)
	if err != nil {
		return fmt.Errorf("access check for %s against %s failed: %w", job.URL, job.RobotsURL, err)
	}
	if !allowed {
		return fmt.Errorf("%w: %s (rules at %s)", fetcher.ErrAccessDenied, job.URL, job.RobotsURL)
	}
	log.Printf("%s visited!\n", job.URL)

	if err := o.session.Navigate(ctx, job.URL); err != nil {
		return err
	}
	if o.opts.AcceptCookies {
		if err := o.session.AcceptCookies(ctx); err != nil {
			return err
		}
	}
	if o.opts.AdvancedFilters {
		if err := o.session.OpenAdvancedFilters(ctx); err != nil {
			return err
		}
	}
	return nil
}

// discover reads the filter dropdowns of the current page
func (o *Orchestrator) discover(ctx context.Context) ([]models.FilterCombination, error) {
	markup, err := o.session.CurrentMarkup(ctx)
	if err != nil {
		return nil, err
	}
	axes, err := o.parser.ParseFilterAxes(markup)
	if err != nil {
		return nil, err
	}
	for i := range axes {
		axes[i].Values = filter.Allow(axes[i].Values, o.opts.Allow[axes[i].Name])
	}
	return filter.EnumerateAxes(axes)
}

// extractOne drives the state machine through a single combination
func (o *Orchestrator) extractOne(ctx context.Context, job Job, combo models.FilterCombination, batch *models.ExtractionBatch) ([]models.StatRecord, error) {
	o.transition(Idle, combo)

	fail := func(err error, format string, args ...interface{}) error {
		reached := o.state
		o.transition(Failed, combo)
		return &stepError{state: reached, err: errors.Wrapf(err, format, args...)}
	}

	if err := o.session.SelectOption(ctx, models.Season, combo.Season); err != nil {
		return nil, fail(err, "select season %s", combo.Season)
	}
	o.transition(SeasonSelected, combo)

	if err := o.session.SelectOption(ctx, models.Conference, combo.Conference); err != nil {
		return nil, fail(err, "select conference %s", combo.Conference)
	}
	o.transition(ConferenceSelected, combo)

	if err := o.session.SelectOption(ctx, models.Position, combo.Position); err != nil {
		return nil, fail(err, "select position %s", combo.Position)
	}
	if err := o.session.Submit(ctx); err != nil {
		return nil, fail(err, "submit %s", combo)
	}
	o.transition(Applied, combo)

	if err := o.session.WaitForTableVisible(ctx, o.opts.RenderTimeout); err != nil {
		return nil, fail(err, "render %s", combo)
	}
	o.transition(Rendered, combo)

	markup, err := o.session.CurrentMarkup(ctx)
	if err != nil {
		return nil, fail(err, "read markup for %s", combo)
	}
	table, err := o.parser.ParseTable(markup, job.Categories)
	if err != nil {
		return nil, fail(err, "parse %s", combo)
	}
	if batch.Categories == nil {
		batch.Categories = append([]string(nil), table.Categories...)
	} else if !sameCategories(batch.Categories, table.Categories) {
		return nil, fail(parser.ErrSchemaMismatch, "header of %s differs from earlier combinations", combo)
	}
	o.transition(Parsed, combo)

	records := make([]models.StatRecord, 0, len(table.Rows))
	seen := make(map[string]bool, len(table.Rows))
	for _, row := range table.Rows {
		if seen[row.Team] {
			return nil, fail(merge.ErrDuplicateKey, "team %s listed twice in %s", row.Team, combo)
		}
		seen[row.Team] = true

		values := make(map[string]*float64, len(table.Categories))
		for i, c := range table.Categories {
			values[c] = row.Values[i]
		}
		records = append(records, models.StatRecord{
			Key:    models.CompositeKey{Team: row.Team, FilterCombination: combo},
			Values: values,
		})
	}
	o.transition(Accumulated, combo)
	return records, nil
}

// pace waits for the rate limiter and, after the first submission, a random
// human-like pause
func (o *Orchestrator) pace(ctx context.Context, i int) error {
	if i > 0 {
		if delay := o.delay(); delay > 0 {
			log.Printf("Waiting %s before the next request...\n", delay.Round(10*time.Millisecond))
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return o.limiter.Wait(ctx)
}

func (o *Orchestrator) delay() time.Duration {
	lo, hi := o.opts.MinDelay, o.opts.MaxDelay
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(o.rng.Int64N(int64(hi-lo)+1))
}

func (o *Orchestrator) reset(family models.Family) {
	o.family = family
	o.state = Idle
}

func (o *Orchestrator) abort(combo models.FilterCombination) {
	if o.state != Aborted {
		o.transition(Aborted, combo)
	}
}

func (o *Orchestrator) transition(to State, combo models.FilterCombination) {
	from := o.state
	if !validTransition(from, to) {
		log.Printf("Warning: unexpected transition %s -> %s for %s\n", from, to, combo)
	}
	o.state = to
	if from != to {
		log.Printf("[%s] %s: %s -> %s\n", o.family, combo, from, to)
	}
	if o.OnTransition != nil {
		o.OnTransition(from, to, combo)
	}
}

// stepError carries the last state a failed combination reached
type stepError struct {
	state State
	err   error
}

func (e *stepError) Error() string { return e.err.Error() }

func (e *stepError) Unwrap() error { return e.err }

func sameCategories(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
