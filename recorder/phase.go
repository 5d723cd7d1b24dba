package recorder

// Phase is the state of one track's recording session
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseIsolated
	PhasePreRoll
	PhasePlaying
	PhaseTailCapture
	PhasePersisted
	PhaseDone
)

var phaseNames = [...]string{
	PhaseIdle:        "idle",
	PhaseIsolated:    "isolated",
	PhasePreRoll:     "pre-roll",
	PhasePlaying:     "playing",
	PhaseTailCapture: "tail",
	PhasePersisted:   "persisted",
	PhaseDone:        "done",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Capturing reports whether the phase reads from the capture line
func (p Phase) Capturing() bool {
	return p == PhasePreRoll || p == PhasePlaying || p == PhaseTailCapture
}
