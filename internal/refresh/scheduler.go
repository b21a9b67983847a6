// Package refresh resolves icons for batches of bookmark entries: first from
// the local cache, then by fetching what is missing or stale through a
// bounded worker pool.
package refresh

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nikbrunner/favmark/internal/favicon"
	"github.com/nikbrunner/favmark/internal/iconstore"
	"github.com/nikbrunner/favmark/internal/model"
)

const (
	// DefaultConcurrency is the number of fetches allowed in flight.
	DefaultConcurrency = 6
	// DefaultMaxAge is how long a fetched icon stays fresh.
	DefaultMaxAge = 30 * 24 * time.Hour
)

// Fetcher retrieves the icon for one origin.
type Fetcher interface {
	Fetch(ctx context.Context, origin string) favicon.Result
}

// Icons is the cache the scheduler reads and fills.
type Icons interface {
	Lookup(siteKey string) (iconstore.Record, bool)
	Put(siteKey string, payload []byte, format string, outcome model.FetchOutcome) (iconstore.Record, error)
	IsStale(rec iconstore.Record, maxAge time.Duration) bool
	Pin(keys ...string)
	Unpin(keys ...string)
	Evict(capacityBytes int64) ([]string, error)
}

// Binder attaches icon references to entries. Ids that no longer exist are
// ignored.
type Binder interface {
	BindIcon(ids []string, ref model.IconRef) int
}

// ProgressFunc is called after each entry or group of entries is resolved.
// resolved never decreases within a batch.
type ProgressFunc func(resolved, total int)

// Options configures a Scheduler.
type Options struct {
	Concurrency   int
	MaxAge        time.Duration
	Force         bool  // refetch even when the cached icon is fresh
	EvictCapacity int64 // run an eviction pass after each batch when > 0
	OnProgress    ProgressFunc
	Logger        *slog.Logger
}

// Scheduler runs refresh batches. A Scheduler may run several batches
// concurrently; each one has its own worker pool.
type Scheduler struct {
	fetcher Fetcher
	icons   Icons
	binder  Binder
	opts    Options
	logger  *slog.Logger
}

// New creates a Scheduler.
func New(fetcher Fetcher, icons Icons, binder Binder, opts Options) *Scheduler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		fetcher: fetcher,
		icons:   icons,
		binder:  binder,
		opts:    opts,
		logger:  opts.Logger,
	}
}

// pending is a site key that needs a fetch, with every entry waiting on it.
type pending struct {
	key    string
	origin string
	ids    []string
}

type cacheHit struct {
	rec   iconstore.Record
	fresh bool
	ok    bool
}

type completion struct {
	index int
	res   favicon.Result
}

// Refresh resolves icons for entries. Cache hits are bound before Refresh
// returns; misses are fetched in the background and the returned Batch
// reports their progress. Cancelling ctx has the same effect as
// Batch.Cancel.
func (s *Scheduler) Refresh(ctx context.Context, entries []model.Entry) *Batch {
	b := newBatch(len(entries))
	var report Report

	queue, keys := s.resolveLocal(b, entries, &report)
	b.setState(LocalResolved)

	s.icons.Pin(keys...)
	s.logger.Debug("icon refresh local pass done",
		"entries", len(entries), "cached", report.Cached, "misses", len(queue))

	go func() {
		defer s.icons.Unpin(keys...)
		s.resolveNetwork(ctx, b, queue, &report)

		if s.opts.EvictCapacity > 0 {
			evicted, err := s.icons.Evict(s.opts.EvictCapacity)
			if err != nil {
				s.logger.Warn("icon cache eviction failed", "error", err)
			}
			report.Evicted = evicted
		}

		b.finish(report)
		s.logger.Info("icon refresh finished",
			"state", report.State,
			"entries", len(entries),
			"fetched", len(report.Fetched),
			"failed", len(report.Failed),
			"notFound", len(report.NotFound),
			"undispatched", len(report.Undispatched))
	}()

	return b
}

// resolveLocal binds fresh cache hits and groups the rest by site key in
// first-seen order. It returns the work queue and every key the batch touches.
func (s *Scheduler) resolveLocal(b *Batch, entries []model.Entry, report *Report) ([]*pending, []string) {
	var queue []*pending
	var keys []string
	byKey := map[string]*pending{}
	seen := map[string]bool{}
	cooling := map[string]bool{}
	hits := map[string]cacheHit{}

	for _, e := range entries {
		key, err := iconstore.SiteKey(e.URL)
		if err != nil {
			report.Skipped = append(report.Skipped, e.ID)
			s.progress(b, 1)
			continue
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}

		if p, ok := byKey[key]; ok {
			p.ids = append(p.ids, e.ID)
			continue
		}

		rec, fresh, looked := hits[key].rec, hits[key].fresh, hits[key].ok
		if !looked {
			var found bool
			rec, found = s.icons.Lookup(key)
			fresh = found && !s.opts.Force && !s.icons.IsStale(rec, s.opts.MaxAge)
			hits[key] = cacheHit{rec: rec, fresh: fresh, ok: true}
		}
		if fresh {
			if rec.Outcome == model.OutcomeNetworkError && !cooling[key] {
				cooling[key] = true
				report.CoolingDown = append(report.CoolingDown, key)
			}
			if rec.Size > 0 {
				s.binder.BindIcon([]string{e.ID}, model.IconRef{SiteKey: key, FetchedAt: rec.FetchedAt})
				report.Cached++
			}
			s.progress(b, 1)
			continue
		}

		origin, err := iconstore.Origin(e.URL)
		if err != nil {
			report.Skipped = append(report.Skipped, e.ID)
			s.progress(b, 1)
			continue
		}
		p := &pending{key: key, origin: origin, ids: []string{e.ID}}
		byKey[key] = p
		queue = append(queue, p)
	}

	return queue, keys
}

// resolveNetwork fetches queued keys with bounded concurrency. Results are
// applied by a single collector so cache writes and bindings never race.
func (s *Scheduler) resolveNetwork(ctx context.Context, b *Batch, queue []*pending, report *Report) {
	if len(queue) == 0 {
		report.State = Completed
		return
	}
	b.setState(NetworkDispatched)

	stopped := func() bool {
		select {
		case <-b.cancel:
			return true
		case <-ctx.Done():
			return true
		default:
			return false
		}
	}

	// running fetches outlive cancellation; each attempt has its own timeout
	fetchCtx := context.WithoutCancel(ctx)
	results := make(chan completion, len(queue))
	undispatched := make([]bool, len(queue))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)

	collected := make(chan struct{})
	outcomes := make([]model.FetchOutcome, len(queue))
	go func() {
		defer close(collected)
		for c := range results {
			outcomes[c.index] = s.apply(b, queue[c.index], c.res)
		}
	}()

	for i, p := range queue {
		if stopped() {
			for j := i; j < len(queue); j++ {
				undispatched[j] = true
			}
			break
		}
		g.Go(func() error {
			// a slot may free up only after cancellation
			if stopped() {
				undispatched[i] = true
				return nil
			}
			results <- completion{index: i, res: s.fetcher.Fetch(fetchCtx, p.origin)}
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	<-collected

	report.State = Completed
	for i, p := range queue {
		if undispatched[i] {
			report.State = Cancelled
			report.Undispatched = append(report.Undispatched, p.key)
			continue
		}
		switch outcomes[i] {
		case model.OutcomeOK:
			report.Fetched = append(report.Fetched, p.key)
		case model.OutcomeNotFound:
			report.NotFound = append(report.NotFound, p.key)
		default:
			report.Failed = append(report.Failed, p.key)
		}
	}
}

// apply stores one fetch result and binds every waiting entry.
func (s *Scheduler) apply(b *Batch, p *pending, res favicon.Result) model.FetchOutcome {
	defer s.progress(b, len(p.ids))

	if res.Outcome != model.OutcomeOK {
		s.logger.Debug("icon fetch failed", "siteKey", p.key, "outcome", res.Outcome, "error", res.Err)
	}

	rec, err := s.icons.Put(p.key, res.Payload, res.Format, res.Outcome)
	if err != nil {
		s.logger.Warn("store icon", "siteKey", p.key, "error", err)
		return model.OutcomeNetworkError
	}
	if len(rec.Payload) > 0 {
		s.binder.BindIcon(slices.Clone(p.ids), model.IconRef{SiteKey: p.key, FetchedAt: rec.FetchedAt})
	}
	return res.Outcome
}

func (s *Scheduler) progress(b *Batch, n int) {
	resolved := b.advance(n)
	if s.opts.OnProgress != nil {
		s.opts.OnProgress(resolved, b.total)
	}
}
