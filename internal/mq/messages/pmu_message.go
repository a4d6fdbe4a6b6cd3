package messages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"rtb-engine/internal/models"
)

// DecodeSamples accepts either a single sample object or an array of them.
func DecodeSamples(payload []byte) ([]models.PmuSample, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty sample payload")
	}

	if trimmed[0] == '[' {
		var samples []models.PmuSample
		if err := json.Unmarshal(trimmed, &samples); err != nil {
			return nil, fmt.Errorf("could not parse sample array: %w", err)
		}
		return samples, nil
	}

	var sample models.PmuSample
	if err := json.Unmarshal(trimmed, &sample); err != nil {
		return nil, fmt.Errorf("could not parse sample: %w", err)
	}
	return []models.PmuSample{sample}, nil
}

type CompleteMessage struct {
	TxID uint8 `json:"txid"`
}
