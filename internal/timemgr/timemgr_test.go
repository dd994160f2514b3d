package timemgr

import (
	"testing"
	"time"

	"github.com/corvidlabs/interviewsim/pkg/types"
)

func TestTimeContext_RestState(t *testing.T) {
	m := New(30 * time.Minute)
	ctx := m.TimeContext()
	if ctx.Phase != types.TimeOpening {
		t.Errorf("rest phase = %v, want opening", ctx.Phase)
	}
	if ctx.Pressure != types.PressureLow {
		t.Errorf("rest pressure = %v, want low", ctx.Pressure)
	}
	if len(ctx.SuggestedActions) != 1 || ctx.SuggestedActions[0] != "Start the interview" {
		t.Errorf("rest suggestions = %v, want [Start the interview]", ctx.SuggestedActions)
	}
}

func TestTimeContext_PhaseBoundaries(t *testing.T) {
	tests := []struct {
		progress float64
		want     types.TimeUIPhase
	}{
		{0.0, types.TimeOpening},
		{0.1, types.TimeOpening},
		{0.2, types.TimeExploration},
		{0.5, types.TimeExploration},
		{0.6, types.TimeDeepening},
		{0.75, types.TimeDeepening},
		{0.8, types.TimeClosing},
		{0.99, types.TimeClosing},
	}
	for _, tt := range tests {
		got := currentPhase(tt.progress)
		if got != tt.want {
			t.Errorf("currentPhase(%v) = %v, want %v", tt.progress, got, tt.want)
		}
	}
}

func TestTimeContext_Pressure(t *testing.T) {
	tests := []struct {
		progress float64
		want     types.TimePressure
	}{
		{0.1, types.PressureLow},
		{0.49, types.PressureLow},
		{0.5, types.PressureMedium},
		{0.79, types.PressureMedium},
		{0.8, types.PressureHigh},
		{1.0, types.PressureHigh},
	}
	for _, tt := range tests {
		got := timePressure(tt.progress)
		if got != tt.want {
			t.Errorf("timePressure(%v) = %v, want %v", tt.progress, got, tt.want)
		}
	}
}

func TestManager_StartAndElapse(t *testing.T) {
	m := New(100 * time.Millisecond)
	m.Start()
	time.Sleep(20 * time.Millisecond)

	ctx := m.TimeContext()
	if ctx.ElapsedMinutes <= 0 {
		t.Error("elapsed minutes should be positive after starting")
	}
	if ctx.RemainingMinutes >= ctx.TotalMinutes {
		t.Error("remaining minutes should decrease below total after elapsing")
	}
}

func TestManager_RemainingNeverNegative(t *testing.T) {
	m := New(10 * time.Millisecond)
	m.Start()
	time.Sleep(40 * time.Millisecond)

	ctx := m.TimeContext()
	if ctx.RemainingMinutes != 0 {
		t.Errorf("remaining minutes = %v, want 0 once duration is exceeded", ctx.RemainingMinutes)
	}
	if ctx.Phase != types.TimeClosing {
		t.Errorf("phase = %v, want closing once duration is exceeded", ctx.Phase)
	}
}

func TestManager_Stop_FreezesFinalContext(t *testing.T) {
	m := New(50 * time.Millisecond)
	m.Start()
	time.Sleep(10 * time.Millisecond)

	final := m.Stop()
	if final.ElapsedMinutes <= 0 {
		t.Error("stop should return a populated final context")
	}

	// Calling TimeContext again after Stop should return the rest-state,
	// since the manager is no longer active.
	after := m.TimeContext()
	if after.Phase != types.TimeOpening {
		t.Errorf("post-stop phase = %v, want opening (inactive) default", after.Phase)
	}
}

func TestManager_MilestonesFireAtMostOnce(t *testing.T) {
	m := New(20 * time.Millisecond)

	var phaseChanges, halfway, finalWarn, timeWarn int
	m.OnEvent(EventPhaseChange, func(types.TimeContext) { phaseChanges++ })
	m.OnEvent(EventHalfwayPoint, func(types.TimeContext) { halfway++ })
	m.OnEvent(EventFinalWarning, func(types.TimeContext) { finalWarn++ })
	m.OnEvent(EventTimeWarning, func(types.TimeContext) { timeWarn++ })

	m.Start()
	for i := 0; i < 10; i++ {
		time.Sleep(5 * time.Millisecond)
		m.TimeContext()
	}

	if halfway != 1 {
		t.Errorf("halfway fired %d times, want 1", halfway)
	}
	if finalWarn != 1 {
		t.Errorf("final warning fired %d times, want 1", finalWarn)
	}
	if timeWarn != 1 {
		t.Errorf("time warning fired %d times, want 1", timeWarn)
	}
	if phaseChanges == 0 {
		t.Error("expected at least one phase change to fire")
	}
}

func TestManager_CallbackPanicIsRecovered(t *testing.T) {
	m := New(20 * time.Millisecond)
	m.OnEvent(EventPhaseChange, func(types.TimeContext) {
		panic("boom")
	})
	m.Start()

	// Must not panic the test.
	_ = m.TimeContext()
}
