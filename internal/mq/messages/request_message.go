package messages

import (
	"encoding/json"
	"fmt"
	"rtb-engine/internal/frames"
	"rtb-engine/internal/models"
	"rtb-engine/internal/pib"
	"rtb-engine/internal/ranging"
)

// RequestMessage is the envelope of every API request published to
// <base>/v1/requests/<kind>.
type RequestMessage struct {
	Data   json.RawMessage `json:"data"`
	Source string          `json:"source"`
}

type RangeRequestDto struct {
	RequestID string  `json:"request_id"`
	Peer      string  `json:"peer"`
	Initiator string  `json:"initiator,omitempty"`
	Method    string  `json:"method,omitempty"`
	FreqStart *uint16 `json:"freq_start,omitempty"`
	FreqStep  *uint8  `json:"freq_step,omitempty"`
	FreqStop  *uint16 `json:"freq_stop,omitempty"`
}

func (r *RangeRequestDto) ToModel() (ranging.RangeRequest, error) {
	peer, err := models.ParsePeerAddress(r.Peer)
	if err != nil {
		return ranging.RangeRequest{}, invalid("peer", err)
	}

	req := ranging.RangeRequest{
		RequestID: r.RequestID,
		Peer:      peer,
	}

	if r.Initiator != "" {
		req.Initiator, err = models.ParsePeerAddress(r.Initiator)
		if err != nil {
			return ranging.RangeRequest{}, invalid("initiator", err)
		}
	}

	if r.Method != "" {
		req.Method, err = models.ParseMethod(r.Method)
		if err != nil {
			return ranging.RangeRequest{}, invalid("method", err)
		}
	}

	// a sweep override needs all three bounds
	if r.FreqStart != nil || r.FreqStep != nil || r.FreqStop != nil {
		if r.FreqStart == nil || r.FreqStep == nil || r.FreqStop == nil {
			return ranging.RangeRequest{}, fmt.Errorf("%w: freq_start, freq_step and freq_stop must be given together", ranging.ErrInvalidParameter)
		}
		req.Config = &frames.PmuConfig{
			FreqStart: *r.FreqStart,
			FreqStep:  *r.FreqStep,
			FreqStop:  *r.FreqStop,
		}
	}

	return req, nil
}

type AttributeRequestDto struct {
	RequestID string  `json:"request_id"`
	Peer      string  `json:"peer,omitempty"`
	Attribute string  `json:"attribute"`
	Value     *uint32 `json:"value,omitempty"`
}

func (a *AttributeRequestDto) peer() (*models.PeerAddress, error) {
	if a.Peer == "" {
		return nil, nil
	}
	peer, err := models.ParsePeerAddress(a.Peer)
	if err != nil {
		return nil, invalid("peer", err)
	}
	return &peer, nil
}

func (a *AttributeRequestDto) ToSetRequest() (ranging.SetRequest, error) {
	peer, err := a.peer()
	if err != nil {
		return ranging.SetRequest{}, err
	}

	attr, err := pib.ParseAttribute(a.Attribute)
	if err != nil {
		return ranging.SetRequest{}, err
	}

	if a.Value == nil {
		return ranging.SetRequest{}, fmt.Errorf("%w: set of %s requires a value", ranging.ErrInvalidParameter, attr)
	}

	return ranging.SetRequest{
		RequestID: a.RequestID,
		Peer:      peer,
		Attribute: attr,
		Value:     *a.Value,
	}, nil
}

func (a *AttributeRequestDto) ToGetRequest() (ranging.GetRequest, error) {
	peer, err := a.peer()
	if err != nil {
		return ranging.GetRequest{}, err
	}

	attr, err := pib.ParseAttribute(a.Attribute)
	if err != nil {
		return ranging.GetRequest{}, err
	}

	return ranging.GetRequest{
		RequestID: a.RequestID,
		Peer:      peer,
		Attribute: attr,
	}, nil
}

type ResetRequestDto struct {
	RequestID       string `json:"request_id"`
	Peer            string `json:"peer,omitempty"`
	RestoreDefaults bool   `json:"restore_defaults"`
}

func (r *ResetRequestDto) ToModel() (ranging.ResetRequest, error) {
	req := ranging.ResetRequest{
		RequestID:       r.RequestID,
		RestoreDefaults: r.RestoreDefaults,
	}

	if r.Peer != "" {
		peer, err := models.ParsePeerAddress(r.Peer)
		if err != nil {
			return ranging.ResetRequest{}, invalid("peer", err)
		}
		req.Peer = &peer
	}

	return req, nil
}

func invalid(field string, err error) error {
	return fmt.Errorf("%w: %s: %v", ranging.ErrInvalidParameter, field, err)
}
