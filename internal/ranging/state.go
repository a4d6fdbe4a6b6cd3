package ranging

import (
	"fmt"
	"rtb-engine/internal/models"
)

type State uint8

const (
	StateIdle State = iota
	StateRequested
	StateAwaitingRemote
	StateMeasuring
	StateReducing
	StateCompleted
	StateFailed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRequested:
		return "REQUESTED"
	case StateAwaitingRemote:
		return "AWAITING_REMOTE"
	case StateMeasuring:
		return "MEASURING"
	case StateReducing:
		return "REDUCING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	case StateTimedOut:
		return "TIMED_OUT"
	}
	return fmt.Sprintf("STATE_%d", uint8(s))
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

type edge struct {
	from, to State
}

var initiatorEdges = map[edge]bool{
	{StateIdle, StateRequested}:           true,
	{StateRequested, StateAwaitingRemote}: true,
	{StateAwaitingRemote, StateMeasuring}: true,
	{StateMeasuring, StateReducing}:       true,
	{StateReducing, StateCompleted}:       true,
	{StateReducing, StateFailed}:          true,
}

var reflectorEdges = map[edge]bool{
	{StateIdle, StateRequested}:      true,
	{StateRequested, StateMeasuring}: true,
	{StateMeasuring, StateCompleted}: true,
}

var coordinatorEdges = map[edge]bool{
	{StateIdle, StateRequested}:           true,
	{StateRequested, StateAwaitingRemote}: true,
	{StateAwaitingRemote, StateCompleted}: true,
}

// canTransition reports whether role may move from one state to another.
// Failed and TimedOut are reachable from every non-terminal state.
func canTransition(role models.Role, from, to State) bool {
	if from.Terminal() {
		return false
	}
	if (to == StateFailed || to == StateTimedOut) && from != StateIdle {
		return true
	}

	switch role {
	case models.RoleInitiator:
		return initiatorEdges[edge{from, to}]
	case models.RoleReflector:
		return reflectorEdges[edge{from, to}]
	case models.RoleCoordinator:
		return coordinatorEdges[edge{from, to}]
	}
	return false
}
