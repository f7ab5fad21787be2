// Package importer bulk-loads link records into a list through the
// remote commit path, a bounded number at a time. Enrichment (metadata
// lookup for missing titles) is best effort; the commit itself is not.
package importer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/arnobt78/linkboard/pkg/linklist"
)

const (
	// DefaultConcurrency is the import window size. Small on purpose:
	// the backend rate-limits bursts and the point is steady progress,
	// not throughput.
	DefaultConcurrency = 2

	// DefaultEnrichTimeout bounds the metadata lookup for one record.
	DefaultEnrichTimeout = 10 * time.Second

	// DefaultCommitTimeout is the hard deadline for one commit call.
	DefaultCommitTimeout = 3 * time.Second

	// DefaultStallThreshold evicts a record that has produced no
	// outcome for this long. Its slot is released and the straggler
	// abandoned.
	DefaultStallThreshold = 60 * time.Second

	// DefaultFinalWait bounds how long Run lingers for in-flight
	// records after the queue drains or the master context dies.
	DefaultFinalWait = 10 * time.Second

	// DefaultYieldDelay is the pause after each completion, keeping
	// the session responsive while an import grinds on.
	DefaultYieldDelay = 500 * time.Millisecond
)

// CommitFunc persists one enriched record. The mutator's CommitRecord
// satisfies this.
type CommitFunc func(ctx context.Context, record linklist.ImportRecord) error

// MetadataClient fetches page metadata for enrichment. The remote
// package's HTTPMetadata satisfies this.
type MetadataClient interface {
	Fetch(ctx context.Context, url string) (*linklist.Metadata, error)
}

// Progress is invoked after each record reaches an outcome. done
// counts records with any outcome so far.
type Progress func(record linklist.ImportRecord, outcome Outcome, done, total int)

// Outcome classifies how one record ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Result aggregates an import run. Every input record lands in exactly
// one bucket.
type Result struct {
	Success int
	Failed  int
	Skipped int

	// EnrichmentFailures lists URLs whose metadata lookup failed but
	// which were committed anyway.
	EnrichmentFailures []string
}

// Options tunes an importer. Zero values take defaults. A negative
// YieldDelay disables the pause between completions.
type Options struct {
	Concurrency    int
	EnrichTimeout  time.Duration
	CommitTimeout  time.Duration
	StallThreshold time.Duration
	FinalWait      time.Duration
	YieldDelay     time.Duration
	Progress       Progress
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.EnrichTimeout <= 0 {
		o.EnrichTimeout = DefaultEnrichTimeout
	}
	if o.CommitTimeout <= 0 {
		o.CommitTimeout = DefaultCommitTimeout
	}
	if o.StallThreshold <= 0 {
		o.StallThreshold = DefaultStallThreshold
	}
	if o.FinalWait <= 0 {
		o.FinalWait = DefaultFinalWait
	}
	if o.YieldDelay < 0 {
		o.YieldDelay = 0
	} else if o.YieldDelay == 0 {
		o.YieldDelay = DefaultYieldDelay
	}
	return o
}

// Importer runs bulk imports with a bounded concurrency window.
type Importer struct {
	commit   CommitFunc
	metadata MetadataClient
	opts     Options
}

// New creates an importer. metadata may be nil to skip enrichment.
func New(commit CommitFunc, metadata MetadataClient, opts Options) *Importer {
	return &Importer{commit: commit, metadata: metadata, opts: opts.withDefaults()}
}

type tally struct {
	mu     sync.Mutex
	result Result
	done   int
}

func (t *tally) record(rec linklist.ImportRecord, out Outcome, enrichFailed bool, progress Progress, total int) {
	t.mu.Lock()
	switch out {
	case OutcomeSuccess:
		t.result.Success++
	case OutcomeFailed:
		t.result.Failed++
	case OutcomeSkipped:
		t.result.Skipped++
	}
	if enrichFailed {
		t.result.EnrichmentFailures = append(t.result.EnrichmentFailures, rec.URL)
	}
	t.done++
	done := t.done
	t.mu.Unlock()

	if progress != nil {
		progress(rec, out, done, total)
	}
}

// Run imports records until the queue drains or ctx is cancelled.
// Cancellation marks queued and in-flight records skipped; Run still
// waits out FinalWait for stragglers before returning. The returned
// error is non-nil only when the run was cut short.
func (i *Importer) Run(ctx context.Context, records []linklist.ImportRecord) (*Result, error) {
	t := &tally{}
	total := len(records)

	// Weed out records that could never commit before spending a slot
	// on them.
	var queue []linklist.ImportRecord
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			log.Printf("[Importer] Skipping invalid record %q: %v", rec.URL, err)
			t.record(rec, OutcomeSkipped, false, i.opts.Progress, total)
			continue
		}
		queue = append(queue, rec)
	}

	sem := semaphore.NewWeighted(int64(i.opts.Concurrency))
	var wg sync.WaitGroup

	for _, rec := range queue {
		if ctx.Err() != nil {
			t.record(rec, OutcomeSkipped, false, i.opts.Progress, total)
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			t.record(rec, OutcomeSkipped, false, i.opts.Progress, total)
			continue
		}

		wg.Add(1)
		go func(rec linklist.ImportRecord) {
			defer wg.Done()
			i.runOne(ctx, rec, sem, t, total)
		}(rec)
	}

	// An uncancelled run waits its workers out in full: every worker is
	// already bounded by the stall watchdog. Only cancellation races
	// the stragglers against FinalWait.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		select {
		case <-done:
		case <-time.After(i.opts.FinalWait):
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	result := t.result
	if ctx.Err() != nil {
		// Anything without an outcome by now was abandoned in flight.
		result.Skipped += total - t.done
		return &result, linklist.NewError(linklist.KindAborted, "import", ctx.Err())
	}
	return &result, nil
}

// runOne pushes a single record through enrichment and commit, with
// the stall watchdog racing it. Exactly one outcome is recorded.
func (i *Importer) runOne(ctx context.Context, rec linklist.ImportRecord, sem *semaphore.Weighted, t *tally, total int) {
	itemCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		out          Outcome
		enrichFailed bool
	}
	outCh := make(chan outcome, 1)

	go func() {
		enriched, enrichFailed := i.enrich(itemCtx, rec)
		if itemCtx.Err() != nil {
			outCh <- outcome{OutcomeSkipped, enrichFailed}
			return
		}

		commitCtx, commitCancel := context.WithTimeout(itemCtx, i.opts.CommitTimeout)
		defer commitCancel()
		if err := i.commit(commitCtx, enriched); err != nil {
			if ctx.Err() != nil {
				outCh <- outcome{OutcomeSkipped, enrichFailed}
				return
			}
			log.Printf("[Importer] Commit failed for %q: %v", rec.URL, err)
			outCh <- outcome{OutcomeFailed, enrichFailed}
			return
		}
		outCh <- outcome{OutcomeSuccess, enrichFailed}
	}()

	stall := time.NewTimer(i.opts.StallThreshold)
	defer stall.Stop()

	select {
	case o := <-outCh:
		t.record(rec, o.out, o.enrichFailed, i.opts.Progress, total)
	case <-stall.C:
		// Evict the straggler: cancel it, free the slot, move on.
		log.Printf("[Importer] Record %q stalled beyond %v, evicting", rec.URL, i.opts.StallThreshold)
		cancel()
		t.record(rec, OutcomeFailed, false, i.opts.Progress, total)
	case <-ctx.Done():
		cancel()
		t.record(rec, OutcomeSkipped, false, i.opts.Progress, total)
	}

	if i.opts.YieldDelay > 0 && ctx.Err() == nil {
		time.Sleep(i.opts.YieldDelay)
	}
	sem.Release(1)
}

// enrich fills in a missing title from page metadata. Failure is
// tolerated; the record imports with whatever it had.
func (i *Importer) enrich(ctx context.Context, rec linklist.ImportRecord) (linklist.ImportRecord, bool) {
	if i.metadata == nil || rec.Title != "" {
		return rec, false
	}

	enrichCtx, cancel := context.WithTimeout(ctx, i.opts.EnrichTimeout)
	defer cancel()

	meta, err := i.metadata.Fetch(enrichCtx, rec.URL)
	if err != nil {
		log.Printf("[Importer] Metadata lookup failed for %q: %v", rec.URL, err)
		return rec, true
	}
	if meta.Title != "" {
		rec.Title = meta.Title
	}
	if rec.Description == "" && meta.Description != "" {
		rec.Description = meta.Description
	}
	return rec, false
}

// Summary renders a one-line human summary of a result.
func (r *Result) Summary() string {
	return fmt.Sprintf("%d imported, %d failed, %d skipped", r.Success, r.Failed, r.Skipped)
}
