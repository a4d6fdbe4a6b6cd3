package models

import (
	"fmt"
	"strings"
	"time"
)

type Method uint8

const (
	MethodPMU233R Method = 0x01
	MethodPMURFR2 Method = 0x02
)

func (m Method) String() string {
	switch m {
	case MethodPMU233R:
		return "pmu-233r"
	case MethodPMURFR2:
		return "pmu-rfr2"
	default:
		return fmt.Sprintf("method-%d", uint8(m))
	}
}

func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pmu-233r", "233r", "1":
		return MethodPMU233R, nil
	case "pmu-rfr2", "rfr2", "2":
		return MethodPMURFR2, nil
	}
	return 0, fmt.Errorf("unknown ranging method %q", s)
}

type Origin string

const (
	OriginLocal  Origin = "LOCAL"
	OriginRemote Origin = "REMOTE"
)

func (o Origin) Valid() bool {
	return o == OriginLocal || o == OriginRemote
}

type Role string

const (
	RoleInitiator   Role = "INITIATOR"
	RoleReflector   Role = "REFLECTOR"
	RoleCoordinator Role = "COORDINATOR"
)

// PmuSample is one raw phase measurement taken at a single frequency step.
type PmuSample struct {
	Sequence  uint16    `json:"sequence"`
	Antenna   uint8     `json:"antenna"`
	Frequency float64   `json:"frequency_mhz"`
	Phase     float64   `json:"phase"`
	Amplitude float64   `json:"amplitude"`
	Timestamp time.Time `json:"timestamp"`
}

type AntennaEstimate struct {
	Antenna  uint8   `json:"antenna"`
	Distance float64 `json:"distance"`
	Quality  uint8   `json:"quality"`
}

type RangingResult struct {
	Distance    float64           `json:"distance"`
	Quality     uint8             `json:"quality"`
	Antennas    []AntennaEstimate `json:"antennas,omitempty"`
	Method      Method            `json:"method"`
	Strategy    string            `json:"strategy"`
	SampleCount int               `json:"sample_count"`
	MeasuredAt  time.Time         `json:"measured_at"`
}

// DistanceCentimetres returns the distance as carried on the wire.
func (r RangingResult) DistanceCentimetres() uint32 {
	if r.Distance < 0 {
		return InvalidDistance
	}
	cm := r.Distance*100 + 0.5
	if cm >= float64(InvalidDistance) {
		return InvalidDistance
	}
	return uint32(cm)
}

const InvalidDistance uint32 = 0xFFFFFFFF

func (r *RangingResult) ToInfluxTags(peer PeerAddress, origin Origin) map[string]string {
	return map[string]string{
		"peer":     peer.String(),
		"origin":   string(origin),
		"method":   r.Method.String(),
		"strategy": r.Strategy,
	}
}

func (r *RangingResult) ToInfluxFields() map[string]interface{} {
	fields := map[string]interface{}{
		"distance":     r.Distance,
		"quality":      int(r.Quality),
		"sample_count": r.SampleCount,
	}

	for _, antenna := range r.Antennas {
		fields[fmt.Sprintf("antenna_%d_distance", antenna.Antenna)] = antenna.Distance
		fields[fmt.Sprintf("antenna_%d_quality", antenna.Antenna)] = int(antenna.Quality)
	}

	return fields
}
