package refresh

import (
	"sync"
)

// State is the lifecycle position of a Batch.
type State int

const (
	Idle              State = iota // created, nothing resolved yet
	LocalResolved                  // cache lookups done, no fetch dispatched
	NetworkDispatched              // fetching misses through the worker pool
	Completed                      // all dispatched fetches settled
	Cancelled                      // cancelled before every miss was dispatched
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case LocalResolved:
		return "local-resolved"
	case NetworkDispatched:
		return "network-dispatched"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Final reports whether the batch has finished.
func (s State) Final() bool {
	return s == Completed || s == Cancelled
}

// Report summarizes a finished batch. Site key lists are in the order the
// keys were first encountered.
type Report struct {
	State    State
	Total    int // entries requested
	Resolved int // entries settled, with or without an icon
	Cached   int // entries bound from the cache without a fetch

	Fetched      []string // fetched successfully
	Failed       []string // network_error in this batch, retried after the cooldown
	NotFound     []string // fetched, no usable icon
	CoolingDown  []string // recent network_error, fetch skipped
	Undispatched []string // never fetched because of cancellation
	Evicted      []string // reclaimed by the post-batch eviction pass

	Skipped []string // entry ids whose URL has no site key
}

// Batch is one in-progress refresh.
type Batch struct {
	mu       sync.Mutex
	state    State
	resolved int
	total    int
	report   Report

	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
}

func newBatch(total int) *Batch {
	return &Batch{
		state:  Idle,
		total:  total,
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (b *Batch) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Progress returns how many entries have been resolved so far.
func (b *Batch) Progress() (resolved, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolved, b.total
}

// Cancel stops further dispatch. Fetches already running finish and their
// results are kept. Safe to call more than once.
func (b *Batch) Cancel() {
	b.cancelOnce.Do(func() { close(b.cancel) })
}

// Done is closed when the batch reaches a final state.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch finishes and returns its report.
func (b *Batch) Wait() Report {
	<-b.done
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.report
}

func (b *Batch) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// advance adds n resolved entries and returns the new count.
func (b *Batch) advance(n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolved += n
	return b.resolved
}

func (b *Batch) finish(r Report) {
	b.mu.Lock()
	r.Resolved = b.resolved
	r.Total = b.total
	b.state = r.State
	b.report = r
	b.mu.Unlock()
	close(b.done)
}
