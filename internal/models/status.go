package models

import (
	"encoding/json"
	"fmt"
)

// Status is carried by every confirmation primitive.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusBusy
	StatusInvalidParameter
	StatusTimedOut
	StatusInsufficientSamples
	StatusInconsistentAntennaData
	StatusFailed
	StatusUnsupportedRanging
	StatusUnsupportedAttribute
	StatusReadOnly
)

var statusNames = map[Status]string{
	StatusSuccess:                 "SUCCESS",
	StatusBusy:                    "BUSY",
	StatusInvalidParameter:        "INVALID_PARAMETER",
	StatusTimedOut:                "TIMED_OUT",
	StatusInsufficientSamples:     "INSUFFICIENT_SAMPLES",
	StatusInconsistentAntennaData: "INCONSISTENT_ANTENNA_DATA",
	StatusFailed:                  "FAILED",
	StatusUnsupportedRanging:      "UNSUPPORTED_RANGING",
	StatusUnsupportedAttribute:    "UNSUPPORTED_ATTRIBUTE",
	StatusReadOnly:                "READ_ONLY",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS_%d", uint8(s))
}

func ParseStatus(name string) (Status, error) {
	for status, candidate := range statusNames {
		if candidate == name {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
