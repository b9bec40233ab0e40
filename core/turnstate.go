package orchestration

import "sync"

type turnPhase int

const (
	phaseIdle turnPhase = iota
	phaseCapturing
	phaseTranscribing
	phaseDispatching
	phaseSynthesizing
)

func (p turnPhase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseCapturing:
		return "capturing"
	case phaseTranscribing:
		return "transcribing"
	case phaseDispatching:
		return "dispatching"
	case phaseSynthesizing:
		return "synthesizing"
	}
	return "unknown"
}

// turnState tracks the phase of the current conversation turn and the
// capture-side frame counter. Phases advance idle -> capturing ->
// transcribing -> dispatching -> synthesizing -> idle; reset and error
// force idle from anywhere.
type turnState struct {
	mu sync.Mutex

	phase       turnPhase
	lastFrame   int
	turnNumber  uint64
	frameWindow bool
}

func newTurnState() *turnState {
	return &turnState{phase: phaseIdle, lastFrame: -1}
}

// advance moves from the expected phase to next. It returns false when
// the turn is not in the expected phase, which callers treat as a stale
// or duplicate transition.
func (t *turnState) advance(from, to turnPhase) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase != from {
		return false
	}
	t.phase = to
	switch {
	case to == phaseCapturing:
		t.turnNumber++
		t.lastFrame = -1
		t.frameWindow = true
	case to == phaseIdle:
		t.frameWindow = false
	}
	return true
}

// forceIdle returns the turn to idle from any phase.
func (t *turnState) forceIdle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phaseIdle
	t.frameWindow = false
}

func (t *turnState) current() turnPhase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// acceptFrame admits a capture frame only while the turn is capturing
// and only when its per-turn counter strictly increases. Duplicates and
// reordered frames are dropped.
func (t *turnState) acceptFrame(seq int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.frameWindow {
		return false
	}
	if seq <= t.lastFrame {
		return false
	}
	t.lastFrame = seq
	return true
}

func (t *turnState) turn() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.turnNumber
}
