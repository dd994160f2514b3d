// Package timemgr provides time-budget awareness for time-based interviews.
//
// A [Manager] is owned exclusively by one Interviewer state machine: it turns
// wall-clock elapsed time into a coarse phase (opening/exploration/deepening/
// closing), a pressure bucket, and a list of phrasing suggestions for the
// Interviewer's next-action prompt. The halfway point, final warning and
// time warning callbacks fire at most once per Start; the phase change
// callback fires each time the phase differs from the last one observed.
package timemgr

import (
	"log/slog"
	"sync"
	"time"

	"github.com/corvidlabs/interviewsim/pkg/types"
)

// phaseBoundary is the [start, end) progress range for a [types.TimeUIPhase].
type phaseBoundary struct {
	start, end float64
}

var phaseBoundaries = map[types.TimeUIPhase]phaseBoundary{
	types.TimeOpening:     {0.0, 0.2},
	types.TimeExploration: {0.2, 0.6},
	types.TimeDeepening:   {0.6, 0.8},
	types.TimeClosing:     {0.8, 1.0},
}

// phaseOrder is iterated to find the matching phase deterministically (map
// iteration order is not; boundaries never overlap so order doesn't change
// the result, but keeps output stable for tests).
var phaseOrder = []types.TimeUIPhase{
	types.TimeOpening, types.TimeExploration, types.TimeDeepening, types.TimeClosing,
}

// CallbackEvent names a milestone a [Manager] can notify callbacks about.
type CallbackEvent string

const (
	EventPhaseChange  CallbackEvent = "phase_change"
	EventHalfwayPoint CallbackEvent = "halfway_point"
	EventFinalWarning CallbackEvent = "final_warning"
	EventTimeWarning  CallbackEvent = "time_warning"
)

// Callback is notified with the current time context when a milestone fires.
type Callback func(types.TimeContext)

// Manager tracks elapsed time against a fixed duration for one interview
// session. Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	duration time.Duration
	start    time.Time
	active   bool

	callbacks map[CallbackEvent][]Callback

	lastPhase  types.TimeUIPhase
	milestones map[CallbackEvent]bool
}

// New creates a Manager for an interview of the given duration. The timer is
// not started until [Manager.Start] is called.
func New(duration time.Duration) *Manager {
	return &Manager{
		duration:  duration,
		callbacks: make(map[CallbackEvent][]Callback),
	}
}

// OnEvent registers a callback for the given milestone. Callbacks run
// synchronously inside [Manager.TimeContext]; a panicking callback is
// recovered and logged so it never aborts the caller's decision pipeline.
func (m *Manager) OnEvent(event CallbackEvent, cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[event] = append(m.callbacks[event], cb)
}

// Start captures the interview's start time and activates the timer.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.start = time.Now()
	m.active = true
	m.lastPhase = ""
	m.milestones = make(map[CallbackEvent]bool)
}

// Stop deactivates the timer and returns the final [types.TimeContext].
// Later TimeContext calls return the rest-state defaults until the next
// Start.
func (m *Manager) Stop() types.TimeContext {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return m.inactiveContext()
	}
	m.mu.Unlock()

	ctx := m.TimeContext()

	m.mu.Lock()
	m.active = false
	m.mu.Unlock()

	return ctx
}

// TimeContext computes the current [types.TimeContext] and fires any
// milestone callbacks whose threshold was just crossed. Calling it while the
// timer has not been started returns the "opening" rest-state defaults.
func (m *Manager) TimeContext() types.TimeContext {
	m.mu.Lock()
	if !m.active || m.start.IsZero() {
		ctx := m.inactiveContext()
		m.mu.Unlock()
		return ctx
	}
	start := m.start
	totalMin := m.duration.Minutes()
	m.mu.Unlock()

	elapsed := time.Since(start).Minutes()
	remaining := totalMin - elapsed
	if remaining < 0 {
		remaining = 0
	}
	progress := elapsed / totalMin
	if progress > 1.0 {
		progress = 1.0
	}
	if progress < 0 {
		progress = 0
	}

	phase := currentPhase(progress)
	bound := phaseBoundaries[phase]
	phaseSpan := bound.end - bound.start
	var phaseProgress float64
	if phaseSpan > 0 {
		phaseProgress = (progress - bound.start) / phaseSpan
		if phaseProgress > 1.0 {
			phaseProgress = 1.0
		}
		if phaseProgress < 0 {
			phaseProgress = 0
		}
	}

	pressure := timePressure(progress)
	suggestions := suggestedActions(phase, progress, remaining)

	ctx := types.TimeContext{
		TotalMinutes:     totalMin,
		ElapsedMinutes:   elapsed,
		RemainingMinutes: remaining,
		ProgressPercent:  progress * 100,
		Phase:            phase,
		PhaseProgress:    phaseProgress,
		Pressure:         pressure,
		SuggestedActions: suggestions,
	}

	m.checkMilestones(ctx, progress)

	return ctx
}

func (m *Manager) inactiveContext() types.TimeContext {
	return types.TimeContext{
		TotalMinutes:     m.duration.Minutes(),
		ElapsedMinutes:   0,
		RemainingMinutes: m.duration.Minutes(),
		ProgressPercent:  0,
		Phase:            types.TimeOpening,
		PhaseProgress:    0,
		Pressure:         types.PressureLow,
		SuggestedActions: []string{"Start the interview"},
	}
}

func currentPhase(progress float64) types.TimeUIPhase {
	for _, phase := range phaseOrder {
		b := phaseBoundaries[phase]
		if progress >= b.start && progress < b.end {
			return phase
		}
	}
	return types.TimeClosing
}

func timePressure(progress float64) types.TimePressure {
	switch {
	case progress < 0.5:
		return types.PressureLow
	case progress < 0.8:
		return types.PressureMedium
	default:
		return types.PressureHigh
	}
}

func suggestedActions(phase types.TimeUIPhase, progress, remaining float64) []string {
	var suggestions []string
	switch phase {
	case types.TimeOpening:
		suggestions = append(suggestions,
			"Focus on building rapport and understanding the candidate",
			"Ask broad questions to gauge overall experience",
			"Establish interview tone and candidate comfort level",
		)
	case types.TimeExploration:
		suggestions = append(suggestions,
			"Dive deeper into specific experiences and skills",
			"Explore technical competencies relevant to the role",
			"Ask behavioral questions using the STAR method",
		)
	case types.TimeDeepening:
		suggestions = append(suggestions,
			"Focus on the most critical competencies for the role",
			"Ask challenging scenario-based questions",
			"Evaluate problem-solving approaches in detail",
		)
	case types.TimeClosing:
		suggestions = append(suggestions,
			"Wrap up with final key questions",
			"Allow time for candidate questions",
			"Prepare for interview conclusion",
		)
	}

	switch {
	case progress > 0.9:
		suggestions = append(suggestions, "Consider concluding the interview soon")
	case progress > 0.8:
		suggestions = append(suggestions, "Begin transition to closing phase")
	case remaining < 5:
		suggestions = append(suggestions, "Focus on essential questions only")
	}

	return suggestions
}

// checkMilestones fires callbacks for thresholds crossed since the last call.
// Must be called without holding m.mu.
func (m *Manager) checkMilestones(ctx types.TimeContext, progress float64) {
	m.mu.Lock()
	var toFire []CallbackEvent

	if m.lastPhase != ctx.Phase {
		m.lastPhase = ctx.Phase
		toFire = append(toFire, EventPhaseChange)
	}
	if progress >= 0.5 && !m.milestones[EventHalfwayPoint] {
		m.milestones[EventHalfwayPoint] = true
		toFire = append(toFire, EventHalfwayPoint)
	}
	if progress >= 0.8 && !m.milestones[EventFinalWarning] {
		m.milestones[EventFinalWarning] = true
		toFire = append(toFire, EventFinalWarning)
	}
	if progress >= 0.9 && !m.milestones[EventTimeWarning] {
		m.milestones[EventTimeWarning] = true
		toFire = append(toFire, EventTimeWarning)
	}

	// Snapshot handlers under the lock; invoke outside it, mirroring the
	// Event Bus's reentrancy discipline.
	var handlers []Callback
	for _, event := range toFire {
		handlers = append(handlers, m.callbacks[event]...)
	}
	m.mu.Unlock()

	for _, cb := range handlers {
		m.safeInvoke(cb, ctx)
	}
}

func (m *Manager) safeInvoke(cb Callback, ctx types.TimeContext) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("timemgr: callback panic", "recovered", r)
		}
	}()
	cb(ctx)
}
