package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/linelogic/linelogic/internal/provider"

	"github.com/linelogic/linelogic/internal/pkg/config"
	"github.com/linelogic/linelogic/internal/pkg/models"
	"github.com/linelogic/linelogic/internal/pkg/rawstore"
	"github.com/linelogic/linelogic/internal/pkg/registry"
	"github.com/linelogic/linelogic/internal/pkg/snapshotstore"
)

// Unit lifecycle states, for logs and the run summary.
const (
	statePlanned      = "planned"
	stateFetching     = "fetching"
	stateNormalizing  = "normalizing"
	stateCheckpointed = "checkpointed"
	stateDone         = "done"
	stateFailed       = "failed"
)

// UnitFailure is one plan unit that did not complete.
type UnitFailure struct {
	UnitKey  string                `json:"unit_key"`
	Provider string                `json:"provider"`
	Class    provider.FailureClass `json:"class,omitempty"`
	Error    string                `json:"error"`
}

// RunSummary reports one date's ingestion outcome. A run with failed or
// aborted units is partial, not failed: completed units are durable and a
// later run picks up the remainder from the checkpoint. Aborted units are
// those a provider drain or run cancellation discarded before they finished;
// every planned unit lands in exactly one of skipped, completed, failed or
// aborted.
type RunSummary struct {
	RunID          string        `json:"run_id"`
	League         string        `json:"league"`
	Date           string        `json:"date"`
	StartedAt      time.Time     `json:"started_at_utc"`
	FinishedAt     time.Time     `json:"finished_at_utc"`
	UnitsPlanned   int           `json:"units_planned"`
	UnitsSkipped   int           `json:"units_skipped"`
	UnitsCompleted int           `json:"units_completed"`
	UnitsFailed    int           `json:"units_failed"`
	UnitsAborted   int           `json:"units_aborted"`
	RowsWritten    int           `json:"rows_written"`
	RowsDuplicate  int           `json:"rows_duplicate"`
	Partial        bool          `json:"partial"`
	Failures       []UnitFailure `json:"failures,omitempty"`
}

// Orchestrator drives one league's ingestion: schedule discovery, canonical
// resolution, planned point-in-time odds captures, normalization and
// checkpointing. It owns no provider state; rate limits and breakers live
// inside each source's client.
type Orchestrator struct {
	cfg         *config.Config
	logger      *slog.Logger
	registry    *registry.Registry
	raw         *rawstore.Store
	snapshots   snapshotstore.Store
	cache       *snapshotstore.LatestCache // optional, nil disables
	checkpoints CheckpointStore
	schedule    provider.ScheduleSource
	odds        []provider.OddsSource

	now func() time.Time
}

func NewOrchestrator(
	cfg *config.Config,
	logger *slog.Logger,
	reg *registry.Registry,
	raw *rawstore.Store,
	snapshots snapshotstore.Store,
	cache *snapshotstore.LatestCache,
	checkpoints CheckpointStore,
	schedule provider.ScheduleSource,
	odds []provider.OddsSource,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:         cfg,
		logger:      logger,
		registry:    reg,
		raw:         raw,
		snapshots:   snapshots,
		cache:       cache,
		checkpoints: checkpoints,
		schedule:    schedule,
		odds:        odds,
		now:         time.Now,
	}
}

// Daily ingests today's slate (UTC).
func (o *Orchestrator) Daily(ctx context.Context) (*RunSummary, error) {
	today := o.now().UTC().Truncate(24 * time.Hour)
	return o.RunDate(ctx, today)
}

// Backfill ingests every date in [from, to] in order, oldest first. Each
// date gets its own run id and manifest; a context cancellation or fatal
// storage failure stops the walk and returns the summaries finished so far.
func (o *Orchestrator) Backfill(ctx context.Context, from, to time.Time) ([]*RunSummary, error) {
	from = from.UTC().Truncate(24 * time.Hour)
	to = to.UTC().Truncate(24 * time.Hour)
	if to.Before(from) {
		return nil, fmt.Errorf("backfill range inverted: %s after %s",
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	var summaries []*RunSummary
	for date := from; !date.After(to); date = date.Add(24 * time.Hour) {
		summary, err := o.RunDate(ctx, date)
		if summary != nil {
			summaries = append(summaries, summary)
		}
		if err != nil {
			return summaries, err
		}
	}
	return summaries, nil
}

// RunDate ingests one date end to end. The returned error is non-nil only
// for run-level failures (schedule unavailable, storage broken, context
// cancelled); individual unit failures leave the run partial instead.
func (o *Orchestrator) RunDate(ctx context.Context, date time.Time) (*RunSummary, error) {
	started := o.now().UTC()
	runID := rawstore.NewRunID(started)
	league := o.cfg.Ingest.League

	summary := &RunSummary{
		RunID:     runID,
		League:    league,
		Date:      date.UTC().Format("2006-01-02"),
		StartedAt: started,
	}
	run := &runContext{
		runID:   runID,
		league:  league,
		summary: summary,
	}
	logger := o.logger.With("run_id", runID, "league", league, "date", summary.Date)
	logger.Info("Starting ingestion run")

	providers := make([]string, 0, len(o.odds)+1)
	providers = append(providers, o.schedule.Name())
	for _, s := range o.odds {
		providers = append(providers, s.Name())
	}
	if _, err := o.raw.WriteRunConfig(models.RunConfig{
		RunID:           runID,
		League:          league,
		Date:            summary.Date,
		Workers:         o.cfg.Ingest.Workers,
		SnapshotOffsets: o.cfg.Ingest.SnapshotOffsets,
		Providers:       providers,
		StartedAt:       started,
	}); err != nil {
		return summary, fmt.Errorf("failed to write run config: %w", err)
	}

	events, err := o.discoverEvents(ctx, run, date)
	if err != nil {
		o.finishRun(run, logger)
		return summary, fmt.Errorf("failed to discover events for %s: %w", summary.Date, err)
	}
	if len(events) == 0 {
		logger.Info("No events scheduled, nothing to ingest")
		o.finishRun(run, logger)
		return summary, nil
	}

	for _, source := range o.odds {
		if err := o.runProvider(ctx, run, source, events); err != nil {
			o.finishRun(run, logger)
			return summary, err
		}
	}

	o.finishRun(run, logger)
	return summary, nil
}

// runContext carries the per-run mutable state shared by workers.
type runContext struct {
	runID  string
	league string

	mu       sync.Mutex
	summary  *RunSummary
	manifest []models.ManifestEntry
	problems []string
}

func (r *runContext) recordCall(entry models.ManifestEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manifest = append(r.manifest, entry)
}

func (r *runContext) recordFailure(f UnitFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.UnitsFailed++
	r.summary.Failures = append(r.summary.Failures, f)
	r.problems = append(r.problems, f.Error)
}

func (r *runContext) recordCompleted(written, duplicate int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.UnitsCompleted++
	r.summary.RowsWritten += written
	r.summary.RowsDuplicate += duplicate
}

func (r *runContext) recordProblem(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.problems = append(r.problems, p)
}

func manifestEntry(providerName string, raw *provider.Fetched, records int) models.ManifestEntry {
	entry := models.ManifestEntry{
		Provider:    providerName,
		Outcome:     "ok",
		RecordCount: records,
	}
	if raw != nil {
		entry.Endpoint = raw.Endpoint
		entry.Attempts = len(raw.Attempts)
		for _, a := range raw.Attempts {
			entry.Latency += a.Latency
		}
	}
	return entry
}

func failedEntry(providerName, endpoint string, err error) models.ManifestEntry {
	outcome := string(provider.ClassOf(err))
	if outcome == "" {
		outcome = "error"
	}
	return models.ManifestEntry{
		Provider: providerName,
		Endpoint: endpoint,
		Outcome:  outcome,
		Error:    err.Error(),
	}
}

// discoverEvents pulls the schedule, captures every page to bronze, and
// resolves each game to a canonical event.
func (o *Orchestrator) discoverEvents(ctx context.Context, run *runContext, date time.Time) ([]PlannedEvent, error) {
	pages, err := o.schedule.GamesForDate(ctx, run.league, date)
	if err != nil {
		run.recordCall(failedEntry(o.schedule.Name(), "schedule", err))
		return nil, err
	}

	var games []models.ScheduleGame
	for _, page := range pages {
		if page.Raw != nil {
			if _, err := o.raw.Put(o.schedule.Name(), page.Endpoint, run.runID, page.Raw.Body); err != nil {
				return nil, fmt.Errorf("failed to capture schedule page: %w", err)
			}
		}
		run.recordCall(manifestEntry(o.schedule.Name(), page.Raw, len(page.Games)))
		games = append(games, page.Games...)
	}

	for _, problem := range models.ValidateScheduleGames(games) {
		o.logger.Warn("Schedule validation problem", "problem", problem)
		run.recordProblem(problem)
	}

	seen := make(map[string]bool)
	events := make([]PlannedEvent, 0, len(games))
	for _, game := range games {
		res, err := o.registry.ResolveEvent(ctx, game.Provider, game.ProviderGameID, registry.EventAttrs{
			League:       run.league,
			HomeTeamName: game.HomeTeam,
			AwayTeamName: game.AwayTeam,
			StartTime:    game.CommenceTime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve game %s: %w", game.ProviderGameID, err)
		}
		if seen[res.CanonicalID] {
			continue
		}
		seen[res.CanonicalID] = true
		events = append(events, PlannedEvent{
			CanonicalEventID: res.CanonicalID,
			HomeTeam:         game.HomeTeam,
			AwayTeam:         game.AwayTeam,
			CommenceTime:     game.CommenceTime,
		})
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CanonicalEventID < events[j].CanonicalEventID
	})
	return events, nil
}

// runProvider executes one odds source's plan with its own worker pool. A
// non-nil return means the whole run must stop (storage failure or context
// cancellation); provider-scoped failures drain that provider's units and
// let the next provider proceed.
func (o *Orchestrator) runProvider(ctx context.Context, run *runContext, source provider.OddsSource, events []PlannedEvent) error {
	plan := BuildPlan(source.Name(), run.league, events, o.cfg.Ingest.SnapshotOffsets)
	cp, err := o.checkpoints.Load(source.Name(), run.league)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint for %s: %w", source.Name(), err)
	}

	run.mu.Lock()
	run.summary.UnitsPlanned += len(plan)
	run.mu.Unlock()

	pending := make([]PlanUnit, 0, len(plan))
	for _, unit := range plan {
		if cp.Done(unit.Key()) {
			run.mu.Lock()
			run.summary.UnitsSkipped++
			run.mu.Unlock()
			continue
		}
		pending = append(pending, unit)
	}
	o.logger.Info("Provider plan ready",
		"provider", source.Name(), "planned", len(plan),
		"pending", len(pending), "state", statePlanned)
	if len(pending) == 0 {
		return nil
	}

	// Provider-scoped cancellation: a fatal provider failure (auth) drains
	// this provider's remaining units without touching the run context.
	providerCtx, cancelProvider := context.WithCancel(ctx)
	defer cancelProvider()

	exec := &providerExec{
		o:        o,
		run:      run,
		source:   source,
		listings: make(map[int64]*listingEntry),
		cp:       cp,
		cancel:   cancelProvider,
	}

	units := make(chan PlanUnit)
	var wg sync.WaitGroup
	workers := o.cfg.Ingest.Workers
	if workers > len(pending) {
		workers = len(pending)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range units {
				exec.runUnit(providerCtx, unit)
			}
		}()
	}

	for _, unit := range pending {
		select {
		case units <- unit:
		case <-providerCtx.Done():
		}
		if providerCtx.Err() != nil {
			break
		}
	}
	close(units)
	wg.Wait()

	// Units neither finished nor failed were drained by a cancellation;
	// count them so the summary reconciles against the plan.
	exec.mu.Lock()
	aborted := len(pending) - exec.done - exec.failed
	exec.mu.Unlock()
	if aborted > 0 {
		run.mu.Lock()
		run.summary.UnitsAborted += aborted
		run.mu.Unlock()
		o.logger.Warn("Provider drained before finishing",
			"provider", source.Name(), "aborted", aborted)
	}

	if err := exec.fatal(); err != nil {
		return err
	}
	return ctx.Err()
}

// providerExec is the shared state of one provider's worker pool.
type providerExec struct {
	o      *Orchestrator
	run    *runContext
	source provider.OddsSource
	cancel context.CancelFunc

	mu       sync.Mutex
	listings map[int64]*listingEntry
	cp       *Checkpoint
	fatalErr error
	done     int
	failed   int
}

// listingEntry memoizes one historical event listing per snapshot instant,
// so many units sharing a snapshot time cost one provider call.
type listingEntry struct {
	once        sync.Once
	byCanonical map[string]provider.EventRef
	err         error
}

func (e *providerExec) fatal() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fatalErr
}

// setFatal stops the whole run: nothing may continue once local storage
// rejects writes, otherwise progress would be silently lost.
func (e *providerExec) setFatal(err error) {
	e.mu.Lock()
	if e.fatalErr == nil {
		e.fatalErr = err
	}
	e.mu.Unlock()
	e.cancel()
}

func (e *providerExec) runUnit(ctx context.Context, unit PlanUnit) {
	if ctx.Err() != nil {
		return
	}
	logger := e.o.logger.With(
		"provider", e.source.Name(), "event", unit.CanonicalEventID,
		"snapshot_at", unit.SnapshotAt.Format(time.RFC3339))
	logger.Debug("Unit started", "state", stateFetching)

	ref, ok, err := e.eventRefAt(ctx, unit)
	if err != nil {
		e.failUnit(ctx, unit, err, logger)
		return
	}
	if !ok {
		// The provider never listed this event at this instant. That is a
		// completed observation of absence, not a failure to retry forever.
		logger.Debug("Event absent from provider listing", "state", stateDone)
		e.markDone(unit, 0)
		e.run.recordCompleted(0, 0)
		return
	}

	doc, err := e.source.EventOddsAt(ctx, unit.League, ref.ProviderEventID, unit.SnapshotAt)
	if err != nil {
		e.run.recordCall(failedEntry(e.source.Name(), "event odds", err))
		e.failUnit(ctx, unit, err, logger)
		return
	}

	var rawRef string
	if doc.Raw != nil {
		capture, err := e.o.raw.Put(e.source.Name(), doc.Endpoint, e.run.runID, doc.Raw.Body)
		if err != nil {
			e.setFatal(fmt.Errorf("failed to capture odds payload: %w", err))
			return
		}
		rawRef = capture.Ref()
	}
	e.run.recordCall(manifestEntry(e.source.Name(), doc.Raw, len(doc.Quotes)))

	logger.Debug("Unit normalizing", "state", stateNormalizing, "quotes", len(doc.Quotes))
	rows := rowsFromDocument(doc, unit.CanonicalEventID, e.source.Name(), unit.League, e.run.runID, rawRef, e.o.now())

	result, err := e.o.snapshots.Append(ctx, rows)
	if err != nil {
		e.setFatal(fmt.Errorf("failed to append snapshots: %w", err))
		return
	}
	if e.o.cache != nil {
		// Cache updates are best-effort; the silver store is the source of
		// truth.
		if err := e.o.cache.Update(ctx, rows); err != nil {
			logger.Warn("Failed to update latest-quote cache", "error", err)
		}
	}

	e.markDone(unit, result.Written)
	e.run.recordCompleted(result.Written, result.SkippedDuplicate)
	logger.Info("Unit completed", "state", stateDone,
		"written", result.Written, "duplicates", result.SkippedDuplicate)
}

// eventRefAt maps the unit's canonical event to the provider's own event id
// using the memoized listing for the unit's snapshot instant.
func (e *providerExec) eventRefAt(ctx context.Context, unit PlanUnit) (provider.EventRef, bool, error) {
	key := unit.SnapshotAt.Unix()
	e.mu.Lock()
	entry, ok := e.listings[key]
	if !ok {
		entry = &listingEntry{}
		e.listings[key] = entry
	}
	e.mu.Unlock()

	entry.once.Do(func() {
		entry.byCanonical, entry.err = e.fetchListing(ctx, unit.League, unit.SnapshotAt)
	})
	if entry.err != nil {
		return provider.EventRef{}, false, entry.err
	}
	ref, found := entry.byCanonical[unit.CanonicalEventID]
	return ref, found, nil
}

func (e *providerExec) fetchListing(ctx context.Context, league string, at time.Time) (map[string]provider.EventRef, error) {
	page, err := e.source.EventsAt(ctx, league, at)
	if err != nil {
		e.run.recordCall(failedEntry(e.source.Name(), "event listing", err))
		return nil, err
	}
	if page.Raw != nil {
		if _, err := e.o.raw.Put(e.source.Name(), page.Endpoint, e.run.runID, page.Raw.Body); err != nil {
			fatal := fmt.Errorf("failed to capture event listing: %w", err)
			e.setFatal(fatal)
			return nil, fatal
		}
	}
	e.run.recordCall(manifestEntry(e.source.Name(), page.Raw, len(page.Events)))

	byCanonical := make(map[string]provider.EventRef, len(page.Events))
	for _, ref := range page.Events {
		res, err := e.o.registry.ResolveEvent(ctx, e.source.Name(), ref.ProviderEventID, registry.EventAttrs{
			League:       league,
			HomeTeamName: ref.HomeTeam,
			AwayTeamName: ref.AwayTeam,
			StartTime:    ref.CommenceTime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve listed event %s: %w", ref.ProviderEventID, err)
		}
		if res.NeedsReview {
			e.o.logger.Warn("Event mapping needs review",
				"provider", e.source.Name(), "provider_event_id", ref.ProviderEventID,
				"canonical_id", res.CanonicalID, "confidence", res.Confidence)
		}
		byCanonical[res.CanonicalID] = ref
	}
	return byCanonical, nil
}

// failUnit records the failure and decides its blast radius: auth failures
// drain the provider, everything else costs just this unit.
func (e *providerExec) failUnit(ctx context.Context, unit PlanUnit, err error, logger *slog.Logger) {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return
	}
	class := provider.ClassOf(err)
	e.mu.Lock()
	e.failed++
	e.mu.Unlock()

	e.run.recordFailure(UnitFailure{
		UnitKey:  unit.Key(),
		Provider: e.source.Name(),
		Class:    class,
		Error:    err.Error(),
	})
	logger.Warn("Unit failed", "state", stateFailed, "class", class, "error", err)

	if class == provider.FailureAuth {
		logger.Error("Auth failure, draining provider", "provider", e.source.Name())
		e.cancel()
	}
}

// markDone durably records the unit in the checkpoint. Rows were already
// appended, so a save failure only risks a harmless duplicate re-submit.
func (e *providerExec) markDone(unit PlanUnit, rows int) {
	e.mu.Lock()
	e.done++
	e.cp.MarkDone(unit.Key(), CompletedUnit{
		SnapshotAt:  unit.SnapshotAt,
		CompletedAt: e.o.now().UTC(),
		RunID:       e.run.runID,
		Rows:        rows,
	})
	err := e.o.checkpoints.Save(e.cp)
	e.mu.Unlock()
	if err != nil {
		e.setFatal(fmt.Errorf("failed to save checkpoint: %w", err))
	}
	logger := e.o.logger.With("provider", e.source.Name(), "unit", unit.Key())
	logger.Debug("Unit checkpointed", "state", stateCheckpointed)
}

// finishRun closes the summary and writes the bronze manifest.
func (o *Orchestrator) finishRun(run *runContext, logger *slog.Logger) {
	run.mu.Lock()
	run.summary.FinishedAt = o.now().UTC()
	run.summary.Partial = run.summary.UnitsFailed > 0 || run.summary.UnitsAborted > 0
	manifest := models.RunManifest{
		RunID:      run.runID,
		League:     run.league,
		StartedAt:  run.summary.StartedAt,
		FinishedAt: run.summary.FinishedAt,
		Calls:      run.manifest,
		Failures:   run.problems,
	}
	summary := *run.summary
	run.mu.Unlock()

	if _, err := o.raw.WriteManifest(manifest); err != nil {
		logger.Error("Failed to write run manifest", "error", err)
	}
	logger.Info("Ingestion run finished",
		"planned", summary.UnitsPlanned, "skipped", summary.UnitsSkipped,
		"completed", summary.UnitsCompleted, "failed", summary.UnitsFailed,
		"aborted", summary.UnitsAborted,
		"rows_written", summary.RowsWritten, "rows_duplicate", summary.RowsDuplicate,
		"partial", summary.Partial)
}
