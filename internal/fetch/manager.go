package fetch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"datafetch/internal/logging"
)

// Task binds a manifest asset to its ledger row for persistence updates.
type Task struct {
	Asset Asset
	DBID  int64
}

type job struct {
	id    string
	asset Asset
}

// Manager drains a manifest through a worker pool with a bounded queue.
// It is single-shot: Run may be called once per Manager.
type Manager struct {
	fetcher  *Fetcher
	workers  int
	queueCap int
	hooks    Hooks

	registry *Registry
	closing  atomic.Bool
}

// ManagerOptions configures fetch behavior.
type ManagerOptions struct {
	Workers  int
	QueueCap int
	Hooks    Hooks
}

// NewManager creates a fetch manager. Workers defaults to 1, which preserves
// the manifest's sequential order; more workers fetch independent assets in
// parallel while keeping per-file skip semantics.
func NewManager(fetcher *Fetcher, opts ManagerOptions) *Manager {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	queueCap := opts.QueueCap
	if queueCap <= 0 {
		queueCap = 16
	}
	return &Manager{
		fetcher:  fetcher,
		workers:  workers,
		queueCap: queueCap,
		hooks:    opts.Hooks,
		registry: NewRegistry(queueCap),
	}
}

// Snapshot returns a copy of the current fetch items. If id is non-empty,
// returns at most that item.
func (m *Manager) Snapshot(id string) []*Item {
	return m.registry.Snapshot(id)
}

// Stats reports per-state counts for the run summary.
func (m *Manager) Stats() (fetched, skipped, failed int) {
	return m.registry.CountByState(StateCompleted),
		m.registry.CountByState(StateSkipped),
		m.registry.CountByState(StateFailed)
}

// Run fetches every task and blocks until the pool drains. The first
// confirmed failure aborts the run: queued tasks are left unattempted and
// the failure is returned. Cancellation of ctx aborts the same way.
func (m *Manager) Run(ctx context.Context, tasks []Task) error {
	if m.closing.Swap(true) {
		return ErrShuttingDown
	}
	if len(tasks) > m.queueCap {
		return ErrQueueFull
	}

	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	jobs := make(chan job, m.queueCap)
	for _, t := range tasks {
		id := uuid.NewString()
		if _, err := m.registry.Create(id, t.Asset); err != nil {
			return err
		}
		if t.DBID > 0 {
			_ = m.registry.Attach(id, t.DBID)
		}
		jobs <- job{id: id, asset: t.Asset}
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.worker(runCtx, jobs, abort)
		}()
	}
	wg.Wait()

	if err := context.Cause(runCtx); err != nil {
		return err
	}
	return nil
}

func (m *Manager) worker(ctx context.Context, jobs <-chan job, abort context.CancelCauseFunc) {
	for j := range jobs {
		// A prior failure or cancellation leaves the rest of the queue
		// unattempted; their items stay in the queued state.
		if ctx.Err() != nil {
			continue
		}

		m.updateState(j.id, StateFetching, "")
		res, err := m.fetcher.Fetch(ctx, j.id, j.asset)
		if err != nil {
			m.updateFailure(j.id, err)
			abort(err)
			continue
		}

		m.updateResult(j.id, res)
		if res.Skipped {
			m.updateState(j.id, StateSkipped, "")
		} else {
			m.updateState(j.id, StateCompleted, "")
		}
	}
}

func (m *Manager) updateState(id string, st State, errMsg string) {
	_ = m.registry.SetState(id, st, errMsg)
	if it := m.registry.Get(id); it != nil && it.DBID > 0 && m.hooks != nil {
		m.hooks.OnStateChange(it.DBID, st, errMsg)
	}
}

func (m *Manager) updateResult(id string, res Result) {
	_ = m.registry.SetResult(id, res.SizeBytes, res.SHA256, res.Members)
	it := m.registry.Get(id)
	if it == nil || it.DBID <= 0 || m.hooks == nil {
		return
	}
	if res.RemoteSize > 0 || res.ETag != "" {
		m.hooks.OnRemoteInfo(it.DBID, res.RemoteSize, res.ETag)
	}
	// A skip measured nothing; reporting it would erase the digest the run
	// that actually downloaded the file recorded.
	if res.Skipped {
		return
	}
	m.hooks.OnResult(it.DBID, res.SizeBytes, res.SHA256)
}

func (m *Manager) updateFailure(id string, err error) {
	msg := err.Error()
	// reduce noise from long transport errors
	if len(msg) > 512 {
		msg = msg[:512]
	}
	assetName := ""
	if it := m.registry.Get(id); it != nil {
		assetName = it.Asset.Name
	}
	logging.LogFetchError(id, assetName, "fetch failed", err)
	m.updateState(id, StateFailed, msg)
}
