package view

import "sync"

// Phase is the render state a screen derives everything from.
type Phase string

const (
	// PhaseIdle means no fetch has been requested yet.
	PhaseIdle Phase = "idle"
	// PhaseLoading means an initial fetch is in flight; no stale data is shown.
	PhaseLoading Phase = "loading"
	// PhaseLoadingMore means a background page fetch is in flight while the
	// current data stays visible.
	PhaseLoadingMore Phase = "loading_more"
	// PhaseReady means data is present.
	PhaseReady Phase = "ready"
	// PhaseEmpty means the fetch succeeded with nothing to show.
	PhaseEmpty Phase = "empty"
	// PhaseFailed means the fetch failed with a retryable error.
	PhaseFailed Phase = "failed"
)

// Loading reports whether any fetch is in flight.
func (p Phase) Loading() bool {
	return p == PhaseLoading || p == PhaseLoadingMore
}

// Snapshot is an immutable view of a model handed to renderers.
type Snapshot[T any] struct {
	Phase Phase
	Data  T
	Err   error
}

// Model owns the render state for one slot. It maps sync-core outcomes to
// phases and holds no business logic: callers decide what the data is, the
// model decides only how it renders. The one rule it enforces is that an
// initial fetch never shows a loading indicator next to stale data, while a
// background page fetch keeps data visible under PhaseLoadingMore.
type Model[T any] struct {
	mu      sync.Mutex
	phase   Phase
	data    T
	err     error
	hasData bool
}

// NewModel starts a model in PhaseIdle.
func NewModel[T any]() *Model[T] {
	return &Model[T]{phase: PhaseIdle}
}

// BeginInitial enters PhaseLoading and drops any stale data.
func (m *Model[T]) BeginInitial() {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	m.phase = PhaseLoading
	m.data = zero
	m.err = nil
	m.hasData = false
}

// BeginMore enters PhaseLoadingMore, keeping current data visible. It reports
// false when there is no data to extend; callers should run an initial fetch
// instead.
func (m *Model[T]) BeginMore() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasData {
		return false
	}
	m.phase = PhaseLoadingMore
	m.err = nil
	return true
}

// Commit stores fetched data, entering PhaseEmpty when empty is true and
// PhaseReady otherwise.
func (m *Model[T]) Commit(data T, empty bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.err = nil
	m.hasData = !empty
	if empty {
		m.phase = PhaseEmpty
	} else {
		m.phase = PhaseReady
	}
}

// Fail enters PhaseFailed with err. Data already committed stays available to
// the renderer for a load-more failure, but the phase reports the error.
func (m *Model[T]) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = PhaseFailed
	m.err = err
}

// Snapshot returns the current render state.
func (m *Model[T]) Snapshot() Snapshot[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot[T]{Phase: m.phase, Data: m.data, Err: m.err}
}
