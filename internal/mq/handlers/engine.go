package handlers

import (
	"rtb-engine/internal/frames"
	"rtb-engine/internal/models"
	"rtb-engine/internal/ranging"
)

// Engine is the part of the ranging dispatcher driven by MQTT input.
type Engine interface {
	RangeRequest(req ranging.RangeRequest) string
	SetRequest(req ranging.SetRequest) string
	GetRequest(req ranging.GetRequest) string
	ResetRequest(req ranging.ResetRequest) string
	HandleFrame(frame frames.Frame)
	HandlePmuSample(peer models.PeerAddress, sample models.PmuSample)
	HandlePmuComplete(peer models.PeerAddress, txID uint8)
}

var _ Engine = (*ranging.Dispatcher)(nil)
