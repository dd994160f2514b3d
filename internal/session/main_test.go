package session

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain guards against goroutine leaks from the Registry's idle sweeper
// and the Orchestrator's background-summary goroutine, mirroring the pack's
// own goleak.VerifyTestMain convention for packages with heavy goroutine use.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
