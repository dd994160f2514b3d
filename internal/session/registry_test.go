package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/corvidlabs/interviewsim/internal/eventbus"
	"github.com/corvidlabs/interviewsim/internal/store"
	"github.com/corvidlabs/interviewsim/pkg/types"
)

type registryFakeInterviewer struct{}

func (registryFakeInterviewer) Process(context.Context, types.AgentContext) types.AgentResponse {
	return types.AgentResponse{Content: "reply", Agent: "interviewer"}
}
func (registryFakeInterviewer) Reset() {}

type registryFakeCoach struct{}

func (registryFakeCoach) Evaluate(context.Context, string, string, string, []types.Message) string {
	return ""
}
func (registryFakeCoach) FinalSummary(context.Context, []types.Message) types.Summary {
	return types.Summary{}
}

func testNewOrch(bus *eventbus.Bus) NewOrchestratorFunc {
	return func(sessionID, ownerUserID string, cfg types.SessionConfig) *Orchestrator {
		return NewOrchestrator(sessionID, ownerUserID, cfg, bus, nil,
			func() InterviewerAgent { return registryFakeInterviewer{} },
			func() CoachAgent { return registryFakeCoach{} },
		)
	}
}

func TestRegistry_CreateThenGet(t *testing.T) {
	gw := store.NewMemoryGateway()
	bus := eventbus.New()
	reg := New(gw, bus, nil, testNewOrch(bus))

	id, err := reg.CreateSession(context.Background(), "user-1", types.SessionConfig{JobRole: "Engineer"})
	if err != nil {
		t.Fatalf("CreateSession() unexpected error: %v", err)
	}

	h, err := reg.GetSessionManager(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSessionManager() unexpected error: %v", err)
	}
	defer h.Release()

	if h.Orchestrator().Status() != types.SessionActive {
		t.Errorf("Status() = %q, want active", h.Orchestrator().Status())
	}
}

func TestRegistry_GetSessionManager_NotFound(t *testing.T) {
	gw := store.NewMemoryGateway()
	bus := eventbus.New()
	reg := New(gw, bus, nil, testNewOrch(bus))

	_, err := reg.GetSessionManager(context.Background(), "missing")
	if err != ErrSessionNotFound {
		t.Fatalf("GetSessionManager() error = %v, want ErrSessionNotFound", err)
	}
}

func TestRegistry_GetSessionManager_ReturnsSameInstance(t *testing.T) {
	gw := store.NewMemoryGateway()
	bus := eventbus.New()
	reg := New(gw, bus, nil, testNewOrch(bus))

	id, _ := reg.CreateSession(context.Background(), "user-1", types.SessionConfig{})

	h1, err := reg.GetSessionManager(context.Background(), id)
	if err != nil {
		t.Fatalf("first GetSessionManager() error: %v", err)
	}
	first := h1.Orchestrator()
	h1.Release()

	h2, err := reg.GetSessionManager(context.Background(), id)
	if err != nil {
		t.Fatalf("second GetSessionManager() error: %v", err)
	}
	defer h2.Release()

	if h2.Orchestrator() != first {
		t.Errorf("GetSessionManager() returned a different instance on second call")
	}
}

// TestRegistry_ConcurrentAccessSerialized asserts that two concurrent
// GetSessionManager calls for the same id never overlap: one blocks until
// the other's Handle is released, even across a cold Store load.
func TestRegistry_ConcurrentAccessSerialized(t *testing.T) {
	gw := store.NewMemoryGateway()
	bus := eventbus.New()
	reg := New(gw, bus, nil, testNewOrch(bus))

	id, _ := reg.CreateSession(context.Background(), "user-1", types.SessionConfig{})

	var mu sync.Mutex
	var active int
	var maxActive int
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := reg.GetSessionManager(context.Background(), id)
			if err != nil {
				t.Errorf("GetSessionManager() unexpected error: %v", err)
				return
			}
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			h.Release()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent holders = %d, want 1 (per-session mutex should serialize access)", maxActive)
	}
}

func TestRegistry_SaveSessionPersistsThroughStore(t *testing.T) {
	gw := store.NewMemoryGateway()
	bus := eventbus.New()
	reg := New(gw, bus, nil, testNewOrch(bus))

	id, _ := reg.CreateSession(context.Background(), "user-1", types.SessionConfig{})
	h, err := reg.GetSessionManager(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSessionManager() error: %v", err)
	}
	h.Orchestrator().ProcessMessage(context.Background(), "hello")
	h.Release()

	if err := reg.SaveSession(context.Background(), id); err != nil {
		t.Fatalf("SaveSession() unexpected error: %v", err)
	}

	rec, err := gw.LoadSession(context.Background(), id)
	if err != nil {
		t.Fatalf("LoadSession() unexpected error: %v", err)
	}
	if len(rec.History) == 0 {
		t.Errorf("persisted record has no history after ProcessMessage+SaveSession")
	}
	if rec.OwnerUserID != "user-1" {
		t.Errorf("OwnerUserID = %q, want 'user-1'", rec.OwnerUserID)
	}
}

func TestRegistry_ReleaseSessionEvictsFromMemory(t *testing.T) {
	gw := store.NewMemoryGateway()
	bus := eventbus.New()
	reg := New(gw, bus, nil, testNewOrch(bus))

	id, _ := reg.CreateSession(context.Background(), "user-1", types.SessionConfig{})
	h, _ := reg.GetSessionManager(context.Background(), id)
	h.Release()

	if err := reg.ReleaseSession(context.Background(), id); err != nil {
		t.Fatalf("ReleaseSession() unexpected error: %v", err)
	}

	stats := reg.Stats()
	if stats.ActiveSessions != 0 {
		t.Errorf("ActiveSessions = %d, want 0 after ReleaseSession", stats.ActiveSessions)
	}

	// A subsequent GetSessionManager should cold-load from the store again.
	h2, err := reg.GetSessionManager(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSessionManager() after release unexpected error: %v", err)
	}
	h2.Release()
}

func TestRegistry_PingAndTimeRemaining(t *testing.T) {
	gw := store.NewMemoryGateway()
	bus := eventbus.New()
	reg := New(gw, bus, nil, testNewOrch(bus))

	id, _ := reg.CreateSession(context.Background(), "user-1", types.SessionConfig{})
	if remaining := reg.GetTimeRemaining(id, 30); remaining != nil {
		t.Errorf("GetTimeRemaining() for untracked session = %v, want nil", remaining)
	}

	h, _ := reg.GetSessionManager(context.Background(), id)
	h.Release()

	reg.PingSession(id)
	remaining := reg.GetTimeRemaining(id, 30)
	if remaining == nil {
		t.Fatalf("GetTimeRemaining() = nil, want a value for a tracked session")
	}
	if *remaining <= 29 || *remaining > 30 {
		t.Errorf("GetTimeRemaining() = %v, want close to 30", *remaining)
	}
}

func TestRegistry_CleanupInactiveSessionsEvictsOnlyIdle(t *testing.T) {
	gw := store.NewMemoryGateway()
	bus := eventbus.New()
	reg := New(gw, bus, nil, testNewOrch(bus))

	idleID, _ := reg.CreateSession(context.Background(), "user-1", types.SessionConfig{})
	freshID, _ := reg.CreateSession(context.Background(), "user-2", types.SessionConfig{})

	hIdle, _ := reg.GetSessionManager(context.Background(), idleID)
	hIdle.Release()
	hFresh, _ := reg.GetSessionManager(context.Background(), freshID)
	hFresh.Release()

	// Force the idle session's lastAccess far into the past.
	reg.regMu.Lock()
	reg.sessions[idleID].lastAccess = time.Now().Add(-time.Hour)
	reg.regMu.Unlock()

	reg.PingSession(freshID)

	evicted := reg.CleanupInactiveSessions(context.Background(), 30)
	if evicted != 1 {
		t.Fatalf("CleanupInactiveSessions() evicted = %d, want 1", evicted)
	}

	stats := reg.Stats()
	if stats.ActiveSessions != 1 {
		t.Errorf("ActiveSessions after sweep = %d, want 1 (only idle session evicted)", stats.ActiveSessions)
	}
}

func TestRegistry_StartAndStopCleanupTask(t *testing.T) {
	gw := store.NewMemoryGateway()
	bus := eventbus.New()
	reg := New(gw, bus, nil, testNewOrch(bus))

	reg.StartCleanupTask(0.001, 0.001) // fire almost immediately
	time.Sleep(20 * time.Millisecond)
	reg.StopCleanupTask()
}

func TestRegistry_Shutdown_FlushesActiveSessions(t *testing.T) {
	gw := store.NewMemoryGateway()
	bus := eventbus.New()
	reg := New(gw, bus, nil, testNewOrch(bus))

	id, _ := reg.CreateSession(context.Background(), "user-1", types.SessionConfig{})
	h, _ := reg.GetSessionManager(context.Background(), id)
	h.Orchestrator().ProcessMessage(context.Background(), "hi")
	h.Release()

	reg.Shutdown(context.Background())

	rec, err := gw.LoadSession(context.Background(), id)
	if err != nil {
		t.Fatalf("LoadSession() after shutdown unexpected error: %v", err)
	}
	if len(rec.History) == 0 {
		t.Errorf("shutdown did not flush pending session history to the store")
	}
}
