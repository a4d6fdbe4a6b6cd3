package models

import (
	"gorm.io/gorm"
	"time"
)

const RangingResultTable = "ranging_results"

// RangingResultRecord is the persisted form of the last result per
// (peer, origin).
type RangingResultRecord struct {
	gorm.Model
	Peer        string            `gorm:"uniqueIndex:idx_peer_origin;size:16;not null" json:"peer"`
	Origin      Origin            `gorm:"uniqueIndex:idx_peer_origin;type:varchar(10);not null" json:"origin"`
	Distance    float64           `gorm:"not null" json:"distance"`
	Quality     uint8             `gorm:"not null" json:"quality"`
	Method      uint8             `gorm:"not null" json:"method"`
	Strategy    string            `gorm:"type:varchar(16)" json:"strategy"`
	SampleCount int               `json:"sample_count"`
	Antennas    []AntennaEstimate `gorm:"serializer:json" json:"antennas,omitempty"`
	MeasuredAt  time.Time         `gorm:"not null" json:"measured_at"`
}

func (RangingResultRecord) TableName() string {
	return RangingResultTable
}

func NewRangingResultRecord(peer PeerAddress, origin Origin, result RangingResult) *RangingResultRecord {
	return &RangingResultRecord{
		Peer:        peer.String(),
		Origin:      origin,
		Distance:    result.Distance,
		Quality:     result.Quality,
		Method:      uint8(result.Method),
		Strategy:    result.Strategy,
		SampleCount: result.SampleCount,
		Antennas:    result.Antennas,
		MeasuredAt:  result.MeasuredAt,
	}
}

func (r *RangingResultRecord) ToModel() (PeerAddress, RangingResult, error) {
	peer, err := ParsePeerAddress(r.Peer)
	if err != nil {
		return 0, RangingResult{}, err
	}

	return peer, RangingResult{
		Distance:    r.Distance,
		Quality:     r.Quality,
		Antennas:    r.Antennas,
		Method:      Method(r.Method),
		Strategy:    r.Strategy,
		SampleCount: r.SampleCount,
		MeasuredAt:  r.MeasuredAt,
	}, nil
}
