package ranging

import (
	"rtb-engine/internal/frames"
	"rtb-engine/internal/models"
	"rtb-engine/internal/pib"
	"time"
)

type Primitive string

const (
	PrimitiveRange Primitive = "RANGE"
	PrimitiveSet   Primitive = "SET"
	PrimitiveGet   Primitive = "GET"
	PrimitiveReset Primitive = "RESET"
)

type RangeRequest struct {
	RequestID string             `json:"request_id"`
	Peer      models.PeerAddress `json:"peer"`
	// Initiator, when set to another node, asks that node to range Peer and
	// report back (remote ranging).
	Initiator models.PeerAddress `json:"initiator,omitempty"`
	Method    models.Method      `json:"method,omitempty"`
	Config    *frames.PmuConfig  `json:"config,omitempty"`
}

type SetRequest struct {
	RequestID string              `json:"request_id"`
	Peer      *models.PeerAddress `json:"peer,omitempty"`
	Attribute pib.Attribute       `json:"attribute"`
	Value     uint32              `json:"value"`
}

type GetRequest struct {
	RequestID string              `json:"request_id"`
	Peer      *models.PeerAddress `json:"peer,omitempty"`
	Attribute pib.Attribute       `json:"attribute"`
}

type ResetRequest struct {
	RequestID string              `json:"request_id"`
	Peer      *models.PeerAddress `json:"peer,omitempty"`
	// RestoreDefaults also resets the PIB (globally, or the peer override).
	RestoreDefaults bool `json:"restore_defaults"`
}

type Confirm struct {
	Primitive Primitive             `json:"primitive"`
	RequestID string                `json:"request_id"`
	Status    models.Status         `json:"status"`
	Peer      *models.PeerAddress   `json:"peer,omitempty"`
	Origin    models.Origin         `json:"origin,omitempty"`
	Result    *models.RangingResult `json:"result,omitempty"`
	Attribute string                `json:"attribute,omitempty"`
	Value     *uint32               `json:"value,omitempty"`
	Cleared   []models.PeerAddress  `json:"cleared,omitempty"`
	Reason    string                `json:"reason,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// ConfirmHandler receives every confirmation. It is called from dispatcher
// goroutines and must not block for long.
type ConfirmHandler func(Confirm)

func peerRef(peer models.PeerAddress) *models.PeerAddress {
	return &peer
}
