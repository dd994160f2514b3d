// Package httpapi is the HTTP/WebSocket routing glue: it translates
// requests into calls against the Session Registry,
// Session Orchestrator, and Speech Task Tracker, and back into the JSON/
// binary wire shapes clients expect. It holds no business logic of its own.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/corvidlabs/interviewsim/internal/observe"
	"github.com/corvidlabs/interviewsim/internal/ratelimit"
	"github.com/corvidlabs/interviewsim/internal/session"
	"github.com/corvidlabs/interviewsim/internal/speech"
	"github.com/corvidlabs/interviewsim/internal/store"
)

// AuthFunc resolves an owner user id from an inbound request; a real
// deployment wires in a JWT or session-cookie decoder here. A nil AuthFunc
// (or one returning ok=false) means the request is anonymous, which is
// fully supported.
type AuthFunc func(r *http.Request) (ownerUserID string, ok bool)

// Deps bundles every core collaborator the HTTP layer calls into. It holds
// no logic itself; see the package doc.
type Deps struct {
	Registry         *session.Registry
	Speech           *speech.Tracker
	Governor         *ratelimit.Governor
	Store            store.Gateway
	Metrics          *observe.Metrics
	Logger           *slog.Logger
	Auth             AuthFunc
	DefaultVoiceID   string
	MaxIdleMinutes   float64
	DefaultQuestions int
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// ownerUserID resolves the caller's identity via Deps.Auth, falling back to
// an empty owner id for an anonymous caller and logging the anonymous path.
func (d *Deps) ownerUserID(r *http.Request) string {
	if d.Auth != nil {
		if id, ok := d.Auth(r); ok && id != "" {
			return id
		}
	}
	d.logger().Debug("httpapi: anonymous request", "path", r.URL.Path)
	return ""
}

// NewRouter builds the complete HTTP surface, wrapped in the
// observability middleware (correlation ids, request metrics, structured
// logs) and a panic-recovery handler that converts unhandled panics into a
// 500 with a correlation id.
func NewRouter(d *Deps) http.Handler {
	mux := http.NewServeMux()

	registerSessionRoutes(mux, d)
	registerSpeechRoutes(mux, d)
	registerOpsRoutes(mux, d)

	var handler http.Handler = mux
	if d.Metrics != nil {
		handler = observe.Middleware(d.Metrics)(handler)
	}
	return recoverMiddleware(d, handler)
}

// recoverMiddleware converts a panic anywhere downstream into a 500 response
// carrying a correlation id, and logs the original panic with structured
// context.
func recoverMiddleware(d *Deps, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				cid := observe.CorrelationID(r.Context())
				d.logger().Error("httpapi: panic recovered", "error", rec, "path", r.URL.Path, "correlation_id", cid)
				writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred", cid)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// sessionErrorStatus maps a Session Registry error to the HTTP status code
// clients expect for it.
func sessionErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
