// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package syncer runs catalog sync: fetch from each source, merge into
// the store, resolve duplicates, enrich authors, post-process. One run
// per owner at a time; progress is polled by run ID.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pdiddy/pubsync/internal/catalog"
	"github.com/pdiddy/pubsync/internal/dedupe"
	"github.com/pdiddy/pubsync/internal/enrich"
	"github.com/pdiddy/pubsync/internal/merge"
	"github.com/pdiddy/pubsync/internal/normalize"
	"github.com/pdiddy/pubsync/internal/sources"
	"github.com/pdiddy/pubsync/pkg/types"
)

// ErrSyncActive is returned when a sync is already running for the
// owner. Callers may retry after the active run finishes.
var ErrSyncActive = errors.New("a sync is already running for this owner")

// Phase names a stage of a sync run.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseSyncing        Phase = "syncing"
	PhaseDeduplicating  Phase = "deduplicating"
	PhaseEnriching      Phase = "enriching"
	PhasePostProcessing Phase = "post_processing"
	PhaseCompleted      Phase = "completed"
	PhaseFailed         Phase = "failed"
)

// Terminal reports whether the phase is a final state.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Progress is a point-in-time snapshot of a run. Percent never
// decreases across snapshots of the same run.
type Progress struct {
	RunID   string           `json:"run_id" yaml:"run_id"`
	Owner   int64            `json:"owner" yaml:"owner"`
	Phase   Phase            `json:"phase" yaml:"phase"`
	Source  types.SourceType `json:"source,omitempty" yaml:"source,omitempty"`
	Percent int              `json:"percent" yaml:"percent"`

	// Processed counts records upserted; Failed counts records that
	// errored and were skipped.
	Processed int `json:"processed" yaml:"processed"`
	Failed    int `json:"failed" yaml:"failed"`

	// FailedSources counts sources whose fetch failed outright.
	FailedSources int `json:"failed_sources" yaml:"failed_sources"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Authority supplies the authoritative author list for a publication
// during the enriching phase. A nil Authority skips the phase.
type Authority interface {
	AuthorsFor(ctx context.Context, pub *types.Publication) ([]types.Author, error)
}

// Service owns sync runs and their progress entries.
type Service struct {
	store     *catalog.Store
	cfg       types.SyncConfig
	authority Authority
	out       io.Writer

	// newSource builds an adapter for a source name. Tests substitute
	// fakes here.
	newSource func(types.SourceType, types.SourcesConfig) (sources.Source, error)

	mu     sync.Mutex
	runs   map[string]*Progress
	active map[int64]string
	seq    int64
}

// NewService wires a sync service over the store. authority may be nil.
// Progress lines go to w (io.Discard when nil).
func NewService(store *catalog.Store, cfg types.SyncConfig, authority Authority, w io.Writer) *Service {
	if w == nil {
		w = io.Discard
	}
	if cfg.ProgressRetention <= 0 {
		cfg.ProgressRetention = 10 * time.Minute
	}
	return &Service{
		store:     store,
		cfg:       cfg,
		authority: authority,
		out:       w,
		newSource: sources.New,
		runs:      make(map[string]*Progress),
		active:    make(map[int64]string),
	}
}

// Start launches a sync run for the owner over the named sources and
// returns its run ID. The run executes on its own goroutine; poll
// Progress for status. A second start for the same owner while a run
// is live returns ErrSyncActive.
func (s *Service) Start(ctx context.Context, owner int64, names []types.SourceType, query sources.Query) (string, error) {
	if len(names) == 0 {
		return "", fmt.Errorf("no sources requested")
	}
	for _, name := range names {
		if !name.Valid() {
			return "", fmt.Errorf("unknown source %q", name)
		}
	}

	s.mu.Lock()
	if runID, ok := s.active[owner]; ok {
		if p, live := s.runs[runID]; live && !p.Phase.Terminal() {
			s.mu.Unlock()
			return "", ErrSyncActive
		}
	}
	s.seq++
	runID := fmt.Sprintf("run-%d-%d", owner, s.seq)
	s.runs[runID] = &Progress{
		RunID:     runID,
		Owner:     owner,
		Phase:     PhaseIdle,
		StartedAt: time.Now().UTC(),
	}
	s.active[owner] = runID
	s.mu.Unlock()

	go s.run(ctx, runID, owner, names, query)
	return runID, nil
}

// Progress returns a snapshot of the run. ok is false when the run ID
// is unknown or has been retired; callers treat that as finished.
func (s *Service) Progress(runID string) (Progress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.retireLocked()
	p, ok := s.runs[runID]
	if !ok {
		return Progress{}, false
	}
	return *p, true
}

// retireLocked drops terminal entries older than the retention window.
// Callers hold s.mu.
func (s *Service) retireLocked() {
	cutoff := time.Now().UTC().Add(-s.cfg.ProgressRetention)
	for id, p := range s.runs {
		if p.Phase.Terminal() && p.FinishedAt.Before(cutoff) {
			delete(s.runs, id)
			if s.active[p.Owner] == id {
				delete(s.active, p.Owner)
			}
		}
	}
}

func (s *Service) run(ctx context.Context, runID string, owner int64, names []types.SourceType, query sources.Query) {
	engine := merge.NewEngine(s.store)

	// Phase percent bands; syncing splits its band across sources.
	const (
		syncEnd   = 60
		dedupeEnd = 75
		enrichEnd = 90
		postEnd   = 100
	)

	failedSources := 0
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			s.finish(runID, err)
			return
		}
		s.update(runID, func(p *Progress) {
			p.Phase = PhaseSyncing
			p.Source = name
		})

		if err := s.syncSource(ctx, engine, runID, owner, name, query); err != nil {
			if ctx.Err() != nil {
				s.finish(runID, ctx.Err())
				return
			}
			fmt.Fprintf(s.out, "source %s failed: %v\n", name, err)
			failedSources++
			s.update(runID, func(p *Progress) { p.FailedSources = failedSources })
		}

		s.setPercent(runID, syncEnd*(i+1)/len(names))
	}

	if failedSources == len(names) {
		s.finish(runID, fmt.Errorf("all %d sources failed", len(names)))
		return
	}

	s.update(runID, func(p *Progress) {
		p.Phase = PhaseDeduplicating
		p.Source = ""
	})
	resolver := dedupe.NewResolver(s.store, s.cfg.Dedup)
	if _, err := resolver.Run(ctx, owner, s.out); err != nil {
		s.finish(runID, fmt.Errorf("deduplication: %w", err))
		return
	}
	s.setPercent(runID, dedupeEnd)

	s.update(runID, func(p *Progress) { p.Phase = PhaseEnriching })
	if err := s.enrichAuthors(ctx, owner); err != nil {
		s.finish(runID, fmt.Errorf("enrichment: %w", err))
		return
	}
	s.setPercent(runID, enrichEnd)

	s.update(runID, func(p *Progress) { p.Phase = PhasePostProcessing })
	if err := s.postProcess(ctx, owner); err != nil {
		s.finish(runID, fmt.Errorf("post-processing: %w", err))
		return
	}
	s.setPercent(runID, postEnd)

	s.finish(runID, nil)
}

// syncSource fetches one source and upserts every record. Individual
// record failures are counted and skipped; only fetch-level errors and
// cancellation propagate.
func (s *Service) syncSource(ctx context.Context, engine *merge.Engine, runID string, owner int64, name types.SourceType, query sources.Query) error {
	src, err := s.newSource(name, s.cfg.Sources)
	if err != nil {
		return err
	}

	records, err := src.Fetch(ctx, query)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s: fetched %d records\n", name, len(records))

	for _, raw := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		cand, err := normalize.Normalize(raw, name)
		if err != nil {
			if !errors.Is(err, normalize.ErrRecordRejected) {
				fmt.Fprintf(s.out, "%s: skipping record: %v\n", name, err)
			}
			s.update(runID, func(p *Progress) { p.Failed++ })
			continue
		}

		if _, _, err := engine.Upsert(ctx, owner, cand); err != nil {
			fmt.Fprintf(s.out, "%s: upsert failed for %q: %v\n", name, cand.DOI, err)
			s.update(runID, func(p *Progress) { p.Failed++ })
			continue
		}
		s.update(runID, func(p *Progress) { p.Processed++ })
	}
	return nil
}

// enrichRetryInterval is how long a failed or empty authority lookup
// suppresses re-lookups for the same record.
const enrichRetryInterval = 24 * time.Hour

// enrichAuthors runs the author identity pass over records whose
// authors are not all linked yet. Lookup failures stamp the attempt,
// and stamped records are skipped until the retry interval passes.
func (s *Service) enrichAuthors(ctx context.Context, owner int64) error {
	if s.authority == nil {
		return nil
	}

	pubs, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return err
	}

	for _, pub := range pubs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pub.IsIgnored || pub.AuthorsFullyLinked() {
			continue
		}
		if !pub.EnrichmentAttemptedAt.IsZero() && time.Since(pub.EnrichmentAttemptedAt) < enrichRetryInterval {
			continue
		}

		authoritative, err := s.authority.AuthorsFor(ctx, pub)
		if err != nil {
			fmt.Fprintf(s.out, "author lookup failed for %q: %v\n", pub.DOI, err)
			pub.EnrichmentAttemptedAt = time.Now().UTC()
			if err := s.store.Update(ctx, pub); err != nil {
				return err
			}
			continue
		}

		res := enrich.Enrich(pub, authoritative, false, s.out)
		if res.Status == enrich.StatusSkipped {
			continue
		}
		if err := s.store.Update(ctx, pub); err != nil {
			return err
		}
	}
	return nil
}

// postProcess re-derives preprint classification from each record's
// DOI and stamps the sync time.
func (s *Service) postProcess(ctx context.Context, owner int64) error {
	pubs, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, pub := range pubs {
		if err := ctx.Err(); err != nil {
			return err
		}

		server, isPreprint := normalize.PreprintServer(pub.DOI)
		changed := pub.IsPreprint != isPreprint || pub.PreprintServer != server
		pub.IsPreprint = isPreprint
		pub.PreprintServer = server
		pub.LastAPISync = now
		if changed {
			fmt.Fprintf(s.out, "reclassified %q (preprint=%v)\n", pub.DOI, isPreprint)
		}
		if err := s.store.Update(ctx, pub); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) update(runID string, fn func(*Progress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.runs[runID]; ok {
		fn(p)
	}
}

// setPercent advances the percent, never backwards.
func (s *Service) setPercent(runID string, pct int) {
	s.update(runID, func(p *Progress) {
		if pct > p.Percent {
			p.Percent = pct
		}
	})
}

func (s *Service) finish(runID string, err error) {
	s.update(runID, func(p *Progress) {
		p.FinishedAt = time.Now().UTC()
		if err != nil {
			p.Phase = PhaseFailed
			p.Error = err.Error()
			return
		}
		p.Phase = PhaseCompleted
		p.Percent = 100
	})

	s.mu.Lock()
	if p, ok := s.runs[runID]; ok {
		fmt.Fprintf(s.out, "sync %s: %s (%d processed, %d failed)\n", runID, p.Phase, p.Processed, p.Failed)
	}
	s.mu.Unlock()
}
