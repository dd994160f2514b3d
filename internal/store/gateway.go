// Package store defines the Store Gateway: the single persistence seam
// between the session registry / speech task tracker and whatever backend
// holds durable state. storepg and storemem are the two implementations;
// callers depend only on the Gateway interface.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/corvidlabs/interviewsim/pkg/types"
)

// ErrNotFound is returned when a lookup by ID finds nothing.
var ErrNotFound = errors.New("store: not found")

// Gateway is the persistence contract shared by storepg and storemem.
// Implementations must be safe for concurrent use.
type Gateway interface {
	// CreateSession persists a brand-new session record.
	CreateSession(ctx context.Context, rec *types.SessionRecord) error

	// LoadSession retrieves a session record by ID. Returns ErrNotFound if
	// no record with that ID exists.
	LoadSession(ctx context.Context, sessionID string) (*types.SessionRecord, error)

	// SaveSession persists the full current state of an existing session
	// record. Callers should set NeedsSave=false on the in-memory copy only
	// after this returns nil.
	SaveSession(ctx context.Context, rec *types.SessionRecord) error

	// DeleteSession removes a session record. Deleting a non-existent
	// session is not an error.
	DeleteSession(ctx context.Context, sessionID string) error

	// CreateSpeechTask persists a newly created speech task record.
	CreateSpeechTask(ctx context.Context, rec *types.SpeechTaskRecord) error

	// SaveSpeechTask persists updates to an existing speech task record.
	SaveSpeechTask(ctx context.Context, rec *types.SpeechTaskRecord) error

	// LoadSpeechTask retrieves a speech task record by ID. Returns
	// ErrNotFound if no record with that ID exists.
	LoadSpeechTask(ctx context.Context, taskID string) (*types.SpeechTaskRecord, error)

	// CleanupSpeechTasks removes speech task records whose UpdatedAt is
	// older than olderThan and returns the number removed.
	CleanupSpeechTasks(ctx context.Context, olderThan time.Duration) (int, error)

	// Ping verifies the backend is reachable, for readiness checks.
	Ping(ctx context.Context) error
}
