package frames

import (
	"errors"
	"fmt"
	"rtb-engine/internal/models"
)

var (
	ErrShortFrame     = errors.New("frame too short")
	ErrBadMagic       = errors.New("not an RTB frame")
	ErrUnknownCommand = errors.New("unknown frame command")
	ErrMalformed      = errors.New("malformed frame")
)

var magic = [3]byte{'R', 'T', 'B'}

const (
	ProtocolVersion uint8 = 0x01

	headerLen = len(magic) + 1 + 1 + 8 + 8

	ieTransmitPower uint8 = 0x01
)

type Command uint8

const (
	CmdRangeRequest  Command = 0x01
	CmdRangeAnswer   Command = 0x02
	CmdRemoteRequest Command = 0x31
	CmdRemoteConfirm Command = 0x32
)

func (c Command) String() string {
	switch c {
	case CmdRangeRequest:
		return "range-request"
	case CmdRangeAnswer:
		return "range-answer"
	case CmdRemoteRequest:
		return "remote-request"
	case CmdRemoteConfirm:
		return "remote-confirm"
	}
	return fmt.Sprintf("cmd-0x%02x", uint8(c))
}

// Caps advertises antenna diversity on either side of the exchange.
type Caps uint8

const (
	CapInitiatorAntennaDiv Caps = 1 << 0
	CapReflectorAntennaDiv Caps = 1 << 1
)

func (c Caps) Has(flag Caps) bool {
	return c&flag != 0
}

type RejectReason uint8

const (
	RejectNone RejectReason = iota
	RejectRangingDisabled
	RejectUnsupportedMethod
	RejectInvalidConfig
	RejectBusy
	RejectUnsupportedVersion
)

func (r RejectReason) String() string {
	switch r {
	case RejectNone:
		return "none"
	case RejectRangingDisabled:
		return "ranging-disabled"
	case RejectUnsupportedMethod:
		return "unsupported-method"
	case RejectInvalidConfig:
		return "invalid-config"
	case RejectBusy:
		return "busy"
	case RejectUnsupportedVersion:
		return "unsupported-version"
	}
	return fmt.Sprintf("reason-%d", uint8(r))
}

type Header struct {
	TxID uint8
	Src  models.PeerAddress
	Dst  models.PeerAddress
}

type PmuConfig struct {
	FreqStart uint16
	FreqStep  uint8
	FreqStop  uint16
}

// Frame is implemented by every decoded RTB frame.
type Frame interface {
	Command() Command
	FrameHeader() Header
}

type RangeRequest struct {
	Header
	Version uint8
	Method  models.Method
	Config  PmuConfig
	Caps    Caps
	// TransmitPower is only present when the initiator provides it.
	TransmitPower *uint8
}

type RangeAnswer struct {
	Header
	Accepted bool
	Reason   RejectReason
	Method   models.Method
	Caps     Caps
	Config   PmuConfig
}

type RemoteRequest struct {
	Header
	Reflector models.PeerAddress
	Method    models.Method
	Caps      Caps
	Config    PmuConfig
}

type AntennaResult struct {
	Antenna  uint8
	Distance uint32
	Quality  uint8
}

type RemoteConfirm struct {
	Header
	Status    models.Status
	Reflector models.PeerAddress
	Distance  uint32
	Quality   uint8
	Antennas  []AntennaResult
}

func (RangeRequest) Command() Command  { return CmdRangeRequest }
func (RangeAnswer) Command() Command   { return CmdRangeAnswer }
func (RemoteRequest) Command() Command { return CmdRemoteRequest }
func (RemoteConfirm) Command() Command { return CmdRemoteConfirm }

func (h Header) FrameHeader() Header { return h }
