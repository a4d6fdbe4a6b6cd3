package frames

import (
	"encoding/binary"
	"fmt"
	"rtb-engine/internal/models"
)

func Encode(frame Frame) ([]byte, error) {
	header := frame.FrameHeader()

	buf := make([]byte, 0, headerLen+32)
	buf = append(buf, magic[:]...)
	buf = append(buf, byte(frame.Command()), header.TxID)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(header.Src))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(header.Dst))

	switch f := frame.(type) {
	case *RangeRequest:
		return encodeRangeRequest(buf, f), nil
	case RangeRequest:
		return encodeRangeRequest(buf, &f), nil
	case *RangeAnswer:
		return encodeRangeAnswer(buf, f), nil
	case RangeAnswer:
		return encodeRangeAnswer(buf, &f), nil
	case *RemoteRequest:
		return encodeRemoteRequest(buf, f), nil
	case RemoteRequest:
		return encodeRemoteRequest(buf, &f), nil
	case *RemoteConfirm:
		return encodeRemoteConfirm(buf, f)
	case RemoteConfirm:
		return encodeRemoteConfirm(buf, &f)
	}

	return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, frame)
}

func encodeRangeRequest(buf []byte, f *RangeRequest) []byte {
	version := f.Version
	if version == 0 {
		version = ProtocolVersion
	}
	buf = append(buf, version, byte(f.Method))
	buf = appendConfig(buf, f.Config)
	buf = append(buf, byte(f.Caps))
	if f.TransmitPower != nil {
		buf = append(buf, ieTransmitPower, *f.TransmitPower)
	}
	return buf
}

func encodeRangeAnswer(buf []byte, f *RangeAnswer) []byte {
	status := byte(1)
	if f.Accepted {
		status = 0
	}
	buf = append(buf, status, byte(f.Reason), byte(f.Method), byte(f.Caps))
	return appendConfig(buf, f.Config)
}

func encodeRemoteRequest(buf []byte, f *RemoteRequest) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(f.Reflector))
	buf = append(buf, byte(f.Method), byte(f.Caps))
	return appendConfig(buf, f.Config)
}

func encodeRemoteConfirm(buf []byte, f *RemoteConfirm) ([]byte, error) {
	if len(f.Antennas) > 4 {
		return nil, fmt.Errorf("%w: %d antenna results, at most 4", ErrMalformed, len(f.Antennas))
	}
	buf = append(buf, byte(f.Status))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(f.Reflector))
	buf = binary.LittleEndian.AppendUint32(buf, f.Distance)
	buf = append(buf, f.Quality, byte(len(f.Antennas)))
	for _, antenna := range f.Antennas {
		buf = append(buf, antenna.Antenna)
		buf = binary.LittleEndian.AppendUint32(buf, antenna.Distance)
		buf = append(buf, antenna.Quality)
	}
	return buf, nil
}

func appendConfig(buf []byte, cfg PmuConfig) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, cfg.FreqStart)
	buf = append(buf, cfg.FreqStep)
	return binary.LittleEndian.AppendUint16(buf, cfg.FreqStop)
}

// Decode parses a raw frame. The returned Frame is always a pointer type.
func Decode(data []byte) (Frame, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}
	if data[0] != magic[0] || data[1] != magic[1] || data[2] != magic[2] {
		return nil, ErrBadMagic
	}

	r := &reader{data: data, pos: len(magic)}
	cmd := Command(r.byte())
	header := Header{
		TxID: r.byte(),
		Src:  models.PeerAddress(r.uint64()),
		Dst:  models.PeerAddress(r.uint64()),
	}

	var frame Frame
	switch cmd {
	case CmdRangeRequest:
		f := &RangeRequest{Header: header}
		f.Version = r.byte()
		f.Method = models.Method(r.byte())
		f.Config = r.config()
		f.Caps = Caps(r.byte())
		for r.err == nil && r.remaining() > 0 {
			id := r.byte()
			switch id {
			case ieTransmitPower:
				power := r.byte()
				f.TransmitPower = &power
			default:
				return nil, fmt.Errorf("%w: unknown information element 0x%02x", ErrMalformed, id)
			}
		}
		frame = f

	case CmdRangeAnswer:
		f := &RangeAnswer{Header: header}
		f.Accepted = r.byte() == 0
		f.Reason = RejectReason(r.byte())
		f.Method = models.Method(r.byte())
		f.Caps = Caps(r.byte())
		f.Config = r.config()
		frame = f

	case CmdRemoteRequest:
		f := &RemoteRequest{Header: header}
		f.Reflector = models.PeerAddress(r.uint64())
		f.Method = models.Method(r.byte())
		f.Caps = Caps(r.byte())
		f.Config = r.config()
		frame = f

	case CmdRemoteConfirm:
		f := &RemoteConfirm{Header: header}
		f.Status = models.Status(r.byte())
		f.Reflector = models.PeerAddress(r.uint64())
		f.Distance = r.uint32()
		f.Quality = r.byte()
		count := int(r.byte())
		if count > 4 {
			return nil, fmt.Errorf("%w: %d antenna results", ErrMalformed, count)
		}
		for i := 0; i < count && r.err == nil; i++ {
			f.Antennas = append(f.Antennas, AntennaResult{
				Antenna:  r.byte(),
				Distance: r.uint32(),
				Quality:  r.byte(),
			})
		}
		frame = f

	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownCommand, uint8(cmd))
	}

	if r.err != nil {
		return nil, fmt.Errorf("decoding %s: %w", cmd, r.err)
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %s", ErrMalformed, r.remaining(), cmd)
	}

	return frame, nil
}

type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.remaining() < n {
		r.err = ErrShortFrame
		return false
	}
	return true
}

func (r *reader) byte() byte {
	if !r.need(1) {
		return 0
	}
	b := r.data[r.pos]
	r.pos++
	return b
}

func (r *reader) uint16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) uint32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) uint64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v
}

func (r *reader) config() PmuConfig {
	return PmuConfig{
		FreqStart: r.uint16(),
		FreqStep:  r.byte(),
		FreqStop:  r.uint16(),
	}
}
