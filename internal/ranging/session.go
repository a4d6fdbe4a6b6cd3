package ranging

import (
	"fmt"
	"rtb-engine/internal/frames"
	"rtb-engine/internal/models"
	"rtb-engine/internal/pib"
	"time"
)

type coordinatorRef struct {
	address models.PeerAddress
	txID    uint8
}

// Session is one ranging exchange with a peer. Apart from state and
// generation, which are guarded by the dispatcher mutex, its fields are only
// touched from the peer's lane.
type Session struct {
	peer      models.PeerAddress
	role      models.Role
	requestID string
	txID      uint8
	values    pib.Values
	caps      frames.Caps
	peerCaps  frames.Caps
	startedAt time.Time

	// reflector is the ranged node of a coordinator session.
	reflector models.PeerAddress
	// coordinator is set when this node ranges on behalf of another node.
	coordinator *coordinatorRef

	state      State
	generation uint64
	timer      Timer
	aggregator *Aggregator
}

func (s *Session) transition(to State) error {
	if !canTransition(s.role, s.state, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrIllegalTransition, s.role, s.state, to)
	}
	s.state = to
	return nil
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// resultKey returns the peer and origin a completed session stores its result
// under.
func (s *Session) resultKey() (models.PeerAddress, models.Origin) {
	if s.role == models.RoleCoordinator {
		return s.reflector, models.OriginRemote
	}
	return s.peer, models.OriginLocal
}

type SessionInfo struct {
	Peer      models.PeerAddress `json:"peer"`
	Role      models.Role        `json:"role"`
	State     string             `json:"state"`
	TxID      uint8              `json:"txid"`
	RequestID string             `json:"request_id,omitempty"`
	StartedAt time.Time          `json:"started_at"`
}
