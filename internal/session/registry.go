package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/corvidlabs/interviewsim/internal/eventbus"
	"github.com/corvidlabs/interviewsim/internal/store"
	"github.com/corvidlabs/interviewsim/pkg/types"
)

// ErrSessionNotFound is returned by GetSessionManager when no record exists
// for the requested session id, neither in memory nor in the store.
var ErrSessionNotFound = errors.New("session: not found")

// NewOrchestratorFunc builds a fresh Orchestrator for a session, wiring in
// whatever LLM-backed Interviewer/Coach agents the caller's factory closures
// produce. The Registry calls it once per cold GetSessionManager and
// restores persisted state into the result via Orchestrator.Restore.
type NewOrchestratorFunc func(sessionID, ownerUserID string, cfg types.SessionConfig) *Orchestrator

// entry is the Registry's per-session bookkeeping: a dedicated mutex that
// serializes every operation against one session (lazy load, ProcessMessage,
// EndInterview, save, release), plus the idle-sweeper's last-access clock.
// Both live behind the same lock so a sweeper read of lastAccess can never
// race a concurrent GetSessionManager load.
type entry struct {
	mu          sync.Mutex
	manager     *Orchestrator
	ownerUserID string
	lastAccess  time.Time
}

// Registry is the Session Registry (C7): it lends out at most one in-memory
// Orchestrator per session id, rehydrating from the Store Gateway on a cold
// first access, and evicts idle sessions on a periodic sweep.
//
// The registry-wide mutex is only ever held long enough to look up or insert
// a per-session entry; all the heavy lifting (store I/O, agent construction)
// happens after it has been released, under the entry's own mutex.
type Registry struct {
	storeGW  store.Gateway
	bus      *eventbus.Bus
	logger   *slog.Logger
	newOrch  NewOrchestratorFunc
	idleMins float64

	regMu    sync.Mutex
	sessions map[string]*entry

	stopOnce sync.Once
	stopCh   chan struct{}
	sweepWG  sync.WaitGroup
}

// New constructs a Registry. newOrch is called exactly once per session id
// on a cold load; it must not itself call back into the Registry.
func New(storeGW store.Gateway, bus *eventbus.Bus, logger *slog.Logger, newOrch NewOrchestratorFunc) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		storeGW:  storeGW,
		bus:      bus,
		logger:   logger,
		newOrch:  newOrch,
		sessions: make(map[string]*entry),
	}
}

// CreateSession writes a brand-new Session Record through the Store Gateway
// and returns its id. The in-memory manager is not constructed here: it is
// built lazily on the first GetSessionManager call, per spec.
func (r *Registry) CreateSession(ctx context.Context, ownerUserID string, cfg types.SessionConfig) (string, error) {
	cfg.Normalize()
	sessionID := uuid.NewString()
	now := time.Now()
	rec := &types.SessionRecord{
		SessionID:   sessionID,
		OwnerUserID: ownerUserID,
		Config:      cfg,
		Status:      types.SessionActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.storeGW.CreateSession(ctx, rec); err != nil {
		return "", fmt.Errorf("session: create: %w", err)
	}
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: eventbus.EventSessionStart, SessionID: sessionID})
	}
	return sessionID, nil
}

// getOrCreateEntry ensures a per-session entry exists and returns it. The
// registry mutex is held only for the map lookup/insert.
func (r *Registry) getOrCreateEntry(sessionID string) *entry {
	r.regMu.Lock()
	defer r.regMu.Unlock()
	e, ok := r.sessions[sessionID]
	if !ok {
		e = &entry{}
		r.sessions[sessionID] = e
	}
	return e
}

// Handle is a leased, locked reference to a session's Orchestrator. Callers
// must call Release exactly once when done; until then, every other caller
// attempting to acquire the same session id blocks.
type Handle struct {
	reg   *Registry
	id    string
	e     *entry
	orch  *Orchestrator
}

// Orchestrator returns the leased session's Orchestrator.
func (h *Handle) Orchestrator() *Orchestrator { return h.orch }

// Release stamps the session's last-access time and unlocks the per-session
// mutex; it does not persist anything. It must be called exactly once per
// Handle.
func (h *Handle) Release() {
	h.e.lastAccess = time.Now()
	h.e.mu.Unlock()
}

// GetSessionManager returns a locked Handle on the session's Orchestrator,
// constructing it from the Store Gateway on a cold first access. A second
// concurrent caller for the same id blocks on the per-session mutex until
// the first releases its Handle, including across a cold Store load,
// satisfying "concurrent get_session_manager calls on the same id always
// return the same instance."
func (r *Registry) GetSessionManager(ctx context.Context, sessionID string) (*Handle, error) {
	e := r.getOrCreateEntry(sessionID)
	e.mu.Lock()

	if e.manager == nil {
		rec, err := r.storeGW.LoadSession(ctx, sessionID)
		if err != nil {
			e.mu.Unlock()
			if errors.Is(err, store.ErrNotFound) {
				r.forgetIfEmpty(sessionID, e)
				return nil, ErrSessionNotFound
			}
			return nil, fmt.Errorf("session: load %q: %w", sessionID, err)
		}
		orch := r.newOrch(rec.SessionID, rec.OwnerUserID, rec.Config)
		orch.Restore(rec)
		e.manager = orch
		e.ownerUserID = rec.OwnerUserID
		r.logger.Debug("session: rehydrated manager", "session_id", sessionID)
	}

	e.lastAccess = time.Now()
	return &Handle{reg: r, id: sessionID, e: e, orch: e.manager}, nil
}

// forgetIfEmpty removes a just-created entry that turned out to have no
// backing record, so a later create for the same id isn't shadowed by a
// stale empty entry.
func (r *Registry) forgetIfEmpty(sessionID string, e *entry) {
	r.regMu.Lock()
	defer r.regMu.Unlock()
	if cur, ok := r.sessions[sessionID]; ok && cur == e {
		e.mu.Lock()
		empty := e.manager == nil
		e.mu.Unlock()
		if empty {
			delete(r.sessions, sessionID)
		}
	}
}

// SaveSession snapshots the in-memory manager's state (if loaded) and
// writes it through the Store Gateway, clearing NeedsSave on success.
func (r *Registry) SaveSession(ctx context.Context, sessionID string) error {
	e := r.getOrCreateEntry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return r.saveLocked(ctx, sessionID, e)
}

// saveLocked performs the actual snapshot-and-write; the caller must hold
// e.mu.
func (r *Registry) saveLocked(ctx context.Context, sessionID string, e *entry) error {
	if e.manager == nil {
		return nil
	}
	rec := e.manager.Snapshot(e.ownerUserID)
	if err := r.storeGW.SaveSession(ctx, &rec); err != nil {
		return fmt.Errorf("session: save %q: %w", sessionID, err)
	}
	e.manager.ClearNeedsSave()
	return nil
}

// ReleaseSession saves (best-effort within the call) and discards the
// in-memory manager for sessionID, freeing its registry slot. Releasing an
// id with no active manager is a no-op.
func (r *Registry) ReleaseSession(ctx context.Context, sessionID string) error {
	e := r.getOrCreateEntry(sessionID)
	e.mu.Lock()

	var saveErr error
	if e.manager != nil {
		saveErr = r.saveLocked(ctx, sessionID, e)
	}
	e.mu.Unlock()

	// A save failure leaves the session in memory so the next sweep retries
	// it, rather than evicting and losing unsaved state.
	if saveErr != nil {
		return saveErr
	}

	r.regMu.Lock()
	delete(r.sessions, sessionID)
	r.regMu.Unlock()

	return nil
}

// CleanupSessionImmediately is ReleaseSession with errors swallowed, for
// callers (e.g. an explicit client-triggered cleanup endpoint) that treat
// eviction as best-effort.
func (r *Registry) CleanupSessionImmediately(ctx context.Context, sessionID string) {
	if err := r.ReleaseSession(ctx, sessionID); err != nil {
		r.logger.Warn("session: cleanup_immediately save failed", "session_id", sessionID, "error", err)
	}
}

// PingSession refreshes a session's last-access clock without touching its
// manager. Pinging an id the Registry has not seen yet is a silent no-op
// (nothing to refresh).
func (r *Registry) PingSession(sessionID string) {
	r.regMu.Lock()
	e, ok := r.sessions[sessionID]
	r.regMu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.lastAccess = time.Now()
	e.mu.Unlock()
}

// GetTimeRemaining reports how many minutes remain before the idle sweeper
// would evict sessionID, clamped to zero, or nil if the session is not
// currently tracked in memory.
func (r *Registry) GetTimeRemaining(sessionID string, maxIdleMinutes float64) *float64 {
	r.regMu.Lock()
	e, ok := r.sessions[sessionID]
	r.regMu.Unlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	last := e.lastAccess
	e.mu.Unlock()
	if last.IsZero() {
		return nil
	}
	remaining := maxIdleMinutes - time.Since(last).Minutes()
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// CleanupInactiveSessions snapshots the set of sessions whose last access is
// older than maxIdleMinutes under the registry mutex, then releases each
// outside any lock (fanned out with an errgroup, per the idle sweeper's
// collect-under-lock/release-outside-lock discipline). A save failure for a
// session leaves it in memory to be retried on the next sweep. Returns the
// number of sessions actually evicted.
func (r *Registry) CleanupInactiveSessions(ctx context.Context, maxIdleMinutes float64) int {
	cutoff := time.Now().Add(-time.Duration(maxIdleMinutes * float64(time.Minute)))

	r.regMu.Lock()
	candidates := make([]string, 0, len(r.sessions))
	for id, e := range r.sessions {
		e.mu.Lock()
		idle := !e.lastAccess.IsZero() && e.lastAccess.Before(cutoff)
		e.mu.Unlock()
		if idle {
			candidates = append(candidates, id)
		}
	}
	r.regMu.Unlock()

	sort.Strings(candidates) // deterministic ordering for tests/logs

	var evicted atomicCounter
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range candidates {
		id := id
		g.Go(func() error {
			if err := r.ReleaseSession(gctx, id); err != nil {
				r.logger.Warn("session: sweeper save failed, retaining session", "session_id", id, "error", err)
				return nil
			}
			evicted.add(1)
			return nil
		})
	}
	_ = g.Wait()
	return evicted.value()
}

// atomicCounter is a tiny lock-guarded counter used to total successful
// evictions across the sweeper's errgroup fan-out.
type atomicCounter struct {
	mu sync.Mutex
	n  int
}

func (c *atomicCounter) add(d int) {
	c.mu.Lock()
	c.n += d
	c.mu.Unlock()
}

func (c *atomicCounter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// StartCleanupTask launches the idle sweeper: every interval it runs
// CleanupInactiveSessions(maxIdleMinutes). Call StopCleanupTask to stop it.
func (r *Registry) StartCleanupTask(interval, maxIdleMinutes float64) {
	r.stopCh = make(chan struct{})
	r.sweepWG.Add(1)
	go func() {
		defer r.sweepWG.Done()
		ticker := time.NewTicker(time.Duration(interval * float64(time.Minute)))
		defer ticker.Stop()
		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
				n := r.CleanupInactiveSessions(context.Background(), maxIdleMinutes)
				if n > 0 {
					r.logger.Info("session: idle sweep evicted sessions", "count", n)
				}
			}
		}
	}()
}

// StopCleanupTask stops the idle sweeper started by StartCleanupTask. Safe
// to call multiple times or when no sweeper was started.
func (r *Registry) StopCleanupTask() {
	r.stopOnce.Do(func() {
		if r.stopCh != nil {
			close(r.stopCh)
		}
	})
	r.sweepWG.Wait()
}

// Shutdown flushes every active in-memory session through the Store Gateway
// and stops the idle sweeper. Intended for a graceful-shutdown hook; errors
// are logged, not returned, since shutdown must proceed regardless.
func (r *Registry) Shutdown(ctx context.Context) {
	r.StopCleanupTask()

	r.regMu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.regMu.Unlock()

	for _, id := range ids {
		if err := r.SaveSession(ctx, id); err != nil {
			r.logger.Warn("session: shutdown flush failed", "session_id", id, "error", err)
		}
	}
}

// MemoryStats is a point-in-time snapshot of the Registry's in-memory
// footprint, used by the /metrics endpoint.
type MemoryStats struct {
	ActiveSessions    int     `json:"active_sessions"`
	TrackedLocks      int     `json:"tracked_locks"`
	TrackedAccessTime int     `json:"tracked_access_times"`
	AvgAgeMinutes     float64 `json:"avg_age_minutes"`
	MaxAgeMinutes     float64 `json:"max_age_minutes"`
}

// Stats reports the Registry's current in-memory footprint.
func (r *Registry) Stats() MemoryStats {
	r.regMu.Lock()
	entries := make([]*entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, e)
	}
	r.regMu.Unlock()

	stats := MemoryStats{ActiveSessions: len(entries), TrackedLocks: len(entries), TrackedAccessTime: len(entries)}
	if len(entries) == 0 {
		return stats
	}

	now := time.Now()
	var total float64
	for _, e := range entries {
		e.mu.Lock()
		last := e.lastAccess
		e.mu.Unlock()
		if last.IsZero() {
			continue
		}
		age := now.Sub(last).Minutes()
		total += age
		if age > stats.MaxAgeMinutes {
			stats.MaxAgeMinutes = age
		}
	}
	stats.AvgAgeMinutes = total / float64(len(entries))
	return stats
}
