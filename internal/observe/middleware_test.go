package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMiddleware_BindsCorrelationID(t *testing.T) {
	m, _ := newTestMeter(t)

	var seenInHandler string
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenInHandler = CorrelationID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "https://fd-gally.netlify.app/hf/interview/history", nil))

	require.NotEmpty(t, seenInHandler)
	require.Equal(t, seenInHandler, rec.Header().Get("X-Correlation-ID"))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMiddleware_DistinctRequestsGetDistinctIDs(t *testing.T) {
	m, _ := newTestMeter(t)

	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, httptest.NewRequest(http.MethodGet, "/a", nil))
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/b", nil))

	id1 := rec1.Header().Get("X-Correlation-ID")
	id2 := rec2.Header().Get("X-Correlation-ID")
	require.NotEmpty(t, id1)
	require.NotEmpty(t, id2)
	require.NotEqual(t, id1, id2)
}

func TestMiddleware_RecordsRequestDuration(t *testing.T) {
	m, reader := newTestMeter(t)

	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/interview/stats", nil))

	names := metricNames(collect(t, reader))
	require.True(t, names["interviewsim.http.request.duration"])
}

func TestCorrelationID_EmptyWithoutMiddleware(t *testing.T) {
	require.Empty(t, CorrelationID(context.Background()))
}

func TestSetup_InstallsProvidersAndShutsDown(t *testing.T) {
	shutdown, err := Setup(context.Background(), "interviewsim-test")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
}
