package store

import (
	"context"
	"sync"
	"time"

	"github.com/corvidlabs/interviewsim/pkg/types"
)

// MemoryGateway is an in-memory Gateway implementation, selected by
// Store.Backend: "memory" in configuration. State does not survive a
// process restart; intended for local development and tests.
type MemoryGateway struct {
	mu      sync.Mutex
	session map[string]types.SessionRecord
	speech  map[string]types.SpeechTaskRecord
}

var _ Gateway = (*MemoryGateway)(nil)

// NewMemoryGateway constructs an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		session: make(map[string]types.SessionRecord),
		speech:  make(map[string]types.SpeechTaskRecord),
	}
}

func (g *MemoryGateway) CreateSession(_ context.Context, rec *types.SessionRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session[rec.SessionID] = cloneSessionRecord(rec)
	return nil
}

func (g *MemoryGateway) LoadSession(_ context.Context, sessionID string) (*types.SessionRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.session[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneSessionRecord(&rec)
	return &out, nil
}

func (g *MemoryGateway) SaveSession(_ context.Context, rec *types.SessionRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session[rec.SessionID] = cloneSessionRecord(rec)
	return nil
}

func (g *MemoryGateway) DeleteSession(_ context.Context, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.session, sessionID)
	return nil
}

func (g *MemoryGateway) CreateSpeechTask(_ context.Context, rec *types.SpeechTaskRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.speech[rec.TaskID] = *rec
	return nil
}

func (g *MemoryGateway) SaveSpeechTask(_ context.Context, rec *types.SpeechTaskRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.speech[rec.TaskID] = *rec
	return nil
}

func (g *MemoryGateway) LoadSpeechTask(_ context.Context, taskID string) (*types.SpeechTaskRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.speech[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	out := rec
	return &out, nil
}

func (g *MemoryGateway) CleanupSpeechTasks(_ context.Context, olderThan time.Duration) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for id, rec := range g.speech {
		if rec.UpdatedAt.Before(cutoff) {
			delete(g.speech, id)
			removed++
		}
	}
	return removed, nil
}

func (g *MemoryGateway) Ping(context.Context) error {
	return nil
}

// cloneSessionRecord copies a session record with fresh History, FeedbackLog
// and summary resource slices, so appending to or replacing elements of a
// caller's record does not change stored state. The Metadata maps inside
// messages and resources are not copied and stay shared with the caller.
func cloneSessionRecord(rec *types.SessionRecord) types.SessionRecord {
	out := *rec

	if rec.History != nil {
		out.History = make([]types.Message, len(rec.History))
		copy(out.History, rec.History)
	}
	if rec.FeedbackLog != nil {
		out.FeedbackLog = make([]types.FeedbackEntry, len(rec.FeedbackLog))
		copy(out.FeedbackLog, rec.FeedbackLog)
	}
	if rec.FinalSummary != nil {
		summary := *rec.FinalSummary
		if rec.FinalSummary.RecommendedResources != nil {
			summary.RecommendedResources = make([]types.Resource, len(rec.FinalSummary.RecommendedResources))
			copy(summary.RecommendedResources, rec.FinalSummary.RecommendedResources)
		}
		out.FinalSummary = &summary
	}
	return out
}
