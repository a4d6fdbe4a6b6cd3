package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PeerAddress identifies a ranging counterpart. Short (16-bit) addresses
// occupy the low bits.
type PeerAddress uint64

const BroadcastAddress PeerAddress = 0xFFFF

func ParsePeerAddress(s string) (PeerAddress, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, fmt.Errorf("empty peer address")
	}
	if len(s) > 16 {
		return 0, fmt.Errorf("peer address %q longer than 64 bits", s)
	}

	value, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid peer address %q: %w", s, err)
	}
	return PeerAddress(value), nil
}

func (p PeerAddress) String() string {
	return fmt.Sprintf("%016x", uint64(p))
}

func (p PeerAddress) IsShort() bool {
	return uint64(p) <= 0xFFFF
}

func (p PeerAddress) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *PeerAddress) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("peer address must be a hex string: %w", err)
	}

	parsed, err := ParsePeerAddress(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
