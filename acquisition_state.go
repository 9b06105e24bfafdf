package bcibridge

import "fmt"

// StateKind is the active/inactive/transition kind of an AcquisitionState.
type StateKind int

// Names for the possible values of StateKind
const (
	Idle       StateKind = iota // Board is not sending data
	Streaming                   // Board is sending measured data
	TestSignal                  // Board is sending an internal test pattern
	Stopping                    // Board is in transition to Idle
)

// AcquisitionState is the controller's view of the board. Pattern is meaningful only
// when Kind is TestSignal.
type AcquisitionState struct {
	Kind    StateKind
	Pattern int
}

// IsIdle reports whether no acquisition is running or being stopped.
func (s AcquisitionState) IsIdle() bool {
	return s.Kind == Idle
}

// IsActive reports whether data is flowing from the board.
func (s AcquisitionState) IsActive() bool {
	return s.Kind == Streaming || s.Kind == TestSignal
}

func (s AcquisitionState) String() string {
	switch s.Kind {
	case Idle:
		return "Idle"
	case Streaming:
		return "Streaming"
	case TestSignal:
		return fmt.Sprintf("TestSignal(%d)", s.Pattern)
	case Stopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// nextState is the one place that decides whether a structured command is legal in state
// from, and what state it leads to. Raw device input is handled as the verb "" and exit is
// always legal. It does not perform any action.
func nextState(from AcquisitionState, cmd Command) (AcquisitionState, error) {
	if cmd.Verb == VerbExit {
		return from, nil
	}
	if from.IsActive() || from.Kind == Stopping {
		switch cmd.Verb {
		case VerbStop:
			if from.Kind == Stopping {
				return from, nil
			}
			return AcquisitionState{Kind: Idle}, nil
		case VerbStart, VerbTest:
			return from, fmt.Errorf("%w: %w", ErrAlreadyRunning, ErrStreamingConflict)
		default:
			return from, ErrStreamingConflict
		}
	}

	switch cmd.Verb {
	case VerbStart:
		return AcquisitionState{Kind: Streaming}, nil
	case VerbTest:
		pattern, err := cmd.TestPattern()
		if err != nil {
			return from, err
		}
		return AcquisitionState{Kind: TestSignal, Pattern: pattern}, nil
	case VerbStop:
		return from, ErrNotStreaming
	default:
		return from, nil
	}
}
