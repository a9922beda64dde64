package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"nba-stats-scraper/anonymizer"
	"nba-stats-scraper/config"
	"nba-stats-scraper/db"
	"nba-stats-scraper/fetcher"
	"nba-stats-scraper/merge"
	"nba-stats-scraper/models"
	"nba-stats-scraper/notify"
	"nba-stats-scraper/orchestrator"
	"nba-stats-scraper/output"
	"nba-stats-scraper/pages"
	"nba-stats-scraper/parser"
	"nba-stats-scraper/scraper"
	"nba-stats-scraper/sheets"

	"github.com/google/uuid"
)

// SessionFactory opens a browser session for one orchestrator
type SessionFactory func(ctx context.Context) (scraper.Session, error)

// Store persists runs and their tables
type Store interface {
	CreateRun(baseURL string) (*db.Run, error)
	SaveSkipped(runID uuid.UUID, skipped []db.SkippedCombination) error
	SaveTable(runID uuid.UUID, dataset string, table *models.Table) error
	FinishRun(id uuid.UUID, status string, combinations, rows, skipped int, runErr error) error
	GetRunByID(id uuid.UUID) (*db.Run, error)
}

// Exporter publishes a table to a spreadsheet
type Exporter interface {
	CreateSheetAndWriteTable(sheetName string, table *models.Table, info string) (string, int64, error)
}

// Notifier receives the report of a finished run
type Notifier interface {
	Send(r notify.Report)
}

// Result is everything a run produced
type Result struct {
	RunID     uuid.UUID
	Merged    *models.Table
	Synthetic *models.Table
	Summaries []*orchestrator.Summary
	Files     []string
	SheetURL  string
}

// Skipped returns the number of combinations left out across every family
func (r *Result) Skipped() int {
	n := 0
	for _, s := range r.Summaries {
		n += len(s.Skipped)
	}
	return n
}

// Pipeline extracts every stat family, merges them and writes the raw and
// synthetic datasets
type Pipeline struct {
	cfg      *config.Config
	sessions SessionFactory
	access   fetcher.AccessChecker
	parser   *parser.Parser
	workers  int

	// Optional sinks; nil disables them
	Store          Store
	Exporter       Exporter
	SpreadsheetURL string
	Notifier       Notifier
}

// New creates a Pipeline that runs workers browser sessions side by side
func New(cfg *config.Config, sessions SessionFactory, access fetcher.AccessChecker, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		cfg:      cfg,
		sessions: sessions,
		access:   access,
		parser: parser.NewParser(parser.Selectors{
			Table:       cfg.Selectors.Table,
			HeaderRow:   cfg.Selectors.HeaderRow,
			HeaderAttr:  cfg.Selectors.HeaderAttr,
			FilterBlock: cfg.Selectors.FilterBlock,
			FilterLabel: cfg.Selectors.FilterLabel,
		}),
		workers: workers,
	}
}

// Run executes the whole pipeline. A run that loses some combinations, or
// stops after the base family was extracted, still writes its outputs.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: uuid.New()}

	store := p.Store
	if store != nil {
		run, err := store.CreateRun(p.cfg.Site.BaseURL)
		if err != nil {
			log.Printf("Warning: Failed to register run, continuing without database: %v\n", err)
			store = nil
		} else {
			result.RunID = run.ID
		}
	}
	log.Printf("Starting run %s\n", result.RunID)

	runErr := p.run(ctx, result)

	if store != nil {
		p.persist(store, result, runErr)
	}
	if p.Notifier != nil {
		report := notify.Report{
			RunID:    result.RunID.String(),
			Skipped:  result.Skipped(),
			Files:    result.Files,
			SheetURL: result.SheetURL,
			Duration: time.Since(start),
			Err:      runErr,
		}
		if result.Merged != nil {
			report.Rows = len(result.Merged.Records)
		}
		for _, s := range result.Summaries {
			report.Families = append(report.Families, string(s.Family))
		}
		p.Notifier.Send(report)
	}

	log.Printf("Run %s finished in %s\n", result.RunID, time.Since(start).Round(time.Millisecond))
	return result, runErr
}

func (p *Pipeline) run(ctx context.Context, result *Result) error {
	statsPages, err := pages.Build(p.cfg.Site.BaseURL, p.cfg.Categories)
	if err != nil {
		return err
	}
	robotsURL, err := pages.RobotsURL(p.cfg.Site.BaseURL)
	if err != nil {
		return err
	}

	sessions, err := p.openSessions(ctx)
	if err != nil {
		return err
	}
	defer func() {
		for _, s := range sessions {
			if err := s.Close(); err != nil {
				log.Printf("Warning: Failed to close browser: %v\n", err)
			}
		}
	}()

	batches := make(map[models.Family]*models.ExtractionBatch, len(statsPages))
	var extractErr error
	for _, page := range statsPages {
		job := orchestrator.Job{
			Family:     page.Family,
			URL:        page.URL,
			RobotsURL:  robotsURL,
			Categories: page.Categories,
		}
		batch, summaries, err := p.extract(ctx, sessions, job)
		result.Summaries = append(result.Summaries, summaries...)
		for _, s := range summaries {
			fmt.Println(s.Render())
		}
		if batch != nil {
			batches[page.Family] = batch
		}
		if err != nil {
			extractErr = fmt.Errorf("extracting %s: %w", page.Family, err)
			log.Printf("Error: %v\n", extractErr)
			break
		}
	}

	// Families that never ran still contribute their configured columns, null-filled
	for _, page := range statsPages {
		if batches[page.Family] == nil {
			batches[page.Family] = &models.ExtractionBatch{Family: page.Family, Categories: page.Categories}
		}
	}

	base := batches[pages.Families[0]]
	if base == nil || len(base.Records) == 0 {
		if extractErr != nil {
			return extractErr
		}
		return fmt.Errorf("no %s rows were extracted", pages.Families[0])
	}

	var sides []*models.ExtractionBatch
	for _, family := range pages.Families[1:] {
		sides = append(sides, batches[family])
	}
	merged, err := merge.Merge(base, sides...)
	if err != nil {
		return errors.Join(extractErr, err)
	}
	result.Merged = merged

	synthetic := p.anonymizer().Anonymize(merged)
	result.Synthetic = synthetic

	if err := p.write(result); err != nil {
		return errors.Join(extractErr, err)
	}
	p.export(result)

	return extractErr
}

// extract runs one job, sharded over every session when there is more than one
func (p *Pipeline) extract(ctx context.Context, sessions []scraper.Session, job orchestrator.Job) (*models.ExtractionBatch, []*orchestrator.Summary, error) {
	if len(sessions) == 1 {
		batch, summary, err := p.orchestrator(sessions[0]).Extract(ctx, job)
		return batch, []*orchestrator.Summary{summary}, err
	}

	combos, err := p.orchestrator(sessions[0]).Discover(ctx, job)
	if err != nil {
		return nil, nil, err
	}
	shards := orchestrator.Partition(combos, len(sessions))
	log.Printf("Extracting %s: %d combinations over %d sessions\n", job.Family, len(combos), len(shards))

	batches := make([]*models.ExtractionBatch, len(shards))
	summaries := make([]*orchestrator.Summary, len(shards))
	errs := make([]error, len(shards))

	var wg sync.WaitGroup
	for i, shard := range shards {
		wg.Add(1)
		go func(i int, shard []models.FilterCombination) {
			defer wg.Done()
			shardJob := job
			shardJob.Combinations = shard
			batches[i], summaries[i], errs[i] = p.orchestrator(sessions[i]).Extract(ctx, shardJob)
		}(i, shard)
	}
	wg.Wait()

	var collected []*models.ExtractionBatch
	for _, b := range batches {
		if b != nil {
			collected = append(collected, b)
		}
	}
	if len(collected) == 0 {
		return nil, summaries, errors.Join(errs...)
	}
	batch, err := models.ConcatBatches(collected...)
	if err != nil {
		return nil, summaries, errors.Join(append(errs, err)...)
	}
	return batch, summaries, errors.Join(errs...)
}

func (p *Pipeline) orchestrator(session scraper.Session) *orchestrator.Orchestrator {
	return orchestrator.New(session, p.access, p.parser, orchestrator.Options{
		RenderTimeout:     p.cfg.Browser.RenderTimeout,
		AcceptCookies:     p.cfg.Browser.AcceptCookies,
		AdvancedFilters:   p.cfg.Browser.AdvancedFilters,
		MinDelay:          p.cfg.Pacing.MinDelay,
		MaxDelay:          p.cfg.Pacing.MaxDelay,
		RequestsPerMinute: p.cfg.Pacing.RequestsPerMinute,
		Allow: map[models.Axis][]string{
			models.Season:     p.cfg.Filters.Seasons,
			models.Conference: p.cfg.Filters.Conferences,
			models.Position:   p.cfg.Filters.Positions,
		},
	})
}

func (p *Pipeline) openSessions(ctx context.Context) ([]scraper.Session, error) {
	sessions := make([]scraper.Session, 0, p.workers)
	for i := 0; i < p.workers; i++ {
		s, err := p.sessions(ctx)
		if err != nil {
			if len(sessions) > 0 {
				log.Printf("Warning: Could only open %d of %d browser sessions: %v\n", len(sessions), p.workers, err)
				break
			}
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (p *Pipeline) anonymizer() *anonymizer.Anonymizer {
	if p.cfg.Anonymize.Seed != 0 {
		return anonymizer.NewSeeded(p.cfg.Anonymize.Seed)
	}
	return anonymizer.NewAnonymizer(nil)
}

func (p *Pipeline) write(result *Result) error {
	raw, err := output.WriteBoth(p.cfg.Output.Dir, p.cfg.Output.Name, result.Merged)
	if err != nil {
		return err
	}
	synthetic, err := output.WriteBoth(p.cfg.Output.Dir, p.cfg.Output.SyntheticName, result.Synthetic)
	if err != nil {
		return err
	}
	result.Files = append(raw, synthetic...)
	return nil
}

// export publishes the synthetic table. Failures are logged only.
func (p *Pipeline) export(result *Result) {
	if p.Exporter == nil {
		return
	}
	sheetName := fmt.Sprintf("Run_%s_%s", time.Now().Format("20060102_150405"), result.RunID.String()[:8])
	info := fmt.Sprintf("Synthetic dataset, run %s, %d rows", result.RunID, len(result.Synthetic.Records))
	_, sheetID, err := p.Exporter.CreateSheetAndWriteTable(sheetName, result.Synthetic, info)
	if err != nil {
		log.Printf("Warning: Failed to write to Google Sheets: %v\n", err)
		return
	}
	if p.SpreadsheetURL != "" {
		result.SheetURL = sheets.SheetURL(p.SpreadsheetURL, sheetID)
	}
}

func (p *Pipeline) persist(store Store, result *Result, runErr error) {
	var skipped []db.SkippedCombination
	combinations := 0
	for _, s := range result.Summaries {
		combinations += s.Combinations
		for _, sk := range s.Skipped {
			skipped = append(skipped, db.SkippedCombination{
				Family:      s.Family,
				Combination: sk.Combination,
				State:       sk.State.String(),
				Error:       sk.Err.Error(),
			})
		}
	}
	if err := store.SaveSkipped(result.RunID, skipped); err != nil {
		log.Printf("Warning: Failed to save skipped combinations: %v\n", err)
	}

	rows := 0
	if result.Merged != nil {
		rows = len(result.Merged.Records)
		if err := store.SaveTable(result.RunID, db.DatasetMerged, result.Merged); err != nil {
			log.Printf("Warning: Failed to save merged table: %v\n", err)
		}
		if err := store.SaveTable(result.RunID, db.DatasetSynthetic, result.Synthetic); err != nil {
			log.Printf("Warning: Failed to save synthetic table: %v\n", err)
		}
	}

	if err := store.FinishRun(result.RunID, runStatus(result, runErr), combinations, rows, len(skipped), runErr); err != nil {
		log.Printf("Error updating run status: %v\n", err)
		return
	}

	run, err := store.GetRunByID(result.RunID)
	if err != nil || run == nil {
		log.Printf("Warning: Could not read back run %s: %v\n", result.RunID, err)
		return
	}
	log.Printf("Run %s stored as %s: %d rows, %d skipped\n", run.ID, run.Status, run.RowsCount, run.SkippedCount)
}

func runStatus(result *Result, runErr error) string {
	switch {
	case result.Merged == nil:
		return db.StatusFailed
	case runErr != nil || result.Skipped() > 0:
		return db.StatusPartial
	}
	return db.StatusDone
}

// AnonymizeFile produces the synthetic dataset from a previously written
// raw dataset
func AnonymizeFile(cfg *config.Config, path string) ([]string, error) {
	table, err := output.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded %d rows with %d categories from %s\n", len(table.Records), len(table.Categories), path)

	p := &Pipeline{cfg: cfg}
	synthetic := p.anonymizer().Anonymize(table)
	return output.WriteBoth(cfg.Output.Dir, cfg.Output.SyntheticName, synthetic)
}
