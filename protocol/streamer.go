package protocol

import (
	"errors"

	"sensorstream/core"
)

// Port is the byte link the streamer runs over. Buffered and ReadByte
// let the foreground drain input without blocking.
type Port interface {
	Write(p []byte) (int, error)
	Buffered() int
	ReadByte() (byte, error)
}

// StreamerStats counts link activity on the device side.
type StreamerStats struct {
	FramesSent  uint32
	BytesSent   uint32
	WriteErrors uint32
	Oversize    uint32
	Commands    uint32
	Panics      uint32
}

var (
	ErrNoPort       = errors.New("streamer has no port")
	errCommandPanic = errors.New("command handler panicked")
)

// inputLimit bounds the bytes drained from the port per foreground pass.
const inputLimit = 256

// Streamer frames sensor data onto a Port and answers host commands. It
// is the core's sink.
type Streamer struct {
	port     Port
	commands *CommandRegistry
	decoder  *Decoder
	in       *FifoBuffer
	out      []byte
	seq      uint8
	stats    StreamerStats
	onWrite  func(n int, err error)
}

var _ core.Sink = (*Streamer)(nil)

// NewStreamer creates a streamer. The output buffer is sized for the
// largest frame so Send never allocates.
func NewStreamer(port Port, commands *CommandRegistry) *Streamer {
	return &Streamer{
		port:     port,
		commands: commands,
		decoder:  NewDecoder(),
		in:       NewFifoBuffer(2 * inputLimit),
		out:      make([]byte, 0, FrameLengthMax),
		seq:      FrameDest,
	}
}

// SetWriteCallback installs a hook called after each port write. Targets
// use it to track link health.
func (s *Streamer) SetWriteCallback(fn func(n int, err error)) {
	s.onWrite = fn
}

// Init resets sequence numbering and input state.
func (s *Streamer) Init() error {
	if s.port == nil {
		return ErrNoPort
	}
	s.seq = FrameDest
	s.in.Reset()
	s.decoder.Reset()
	s.stats = StreamerStats{}
	return nil
}

// Send frames one sensor frame and writes it to the port. Failures are
// counted, never retried.
func (s *Streamer) Send(id core.ChannelID, frame []byte) {
	s.write(uint8(id), frame)
}

// Reply sends text on the control channel.
func (s *Streamer) Reply(text string) {
	if len(text) > MaxPayload {
		text = text[:MaxPayload]
	}
	s.write(ControlChannel, []byte(text))
}

func (s *Streamer) write(channel uint8, payload []byte) {
	out, err := AppendFrame(s.out[:0], s.seq, channel, payload)
	if err != nil {
		s.stats.Oversize++
		return
	}
	s.seq = NextSeq(s.seq)

	n, err := s.port.Write(out)
	if s.onWrite != nil {
		s.onWrite(n, err)
	}
	if err != nil || n != len(out) {
		s.stats.WriteErrors++
		return
	}
	s.stats.FramesSent++
	s.stats.BytesSent += uint32(n)
}

// ServiceIncoming drains whatever the host has sent, without blocking,
// and runs any complete command frames.
func (s *Streamer) ServiceIncoming() {
	for i := 0; i < inputLimit && s.port.Buffered() > 0; i++ {
		b, err := s.port.ReadByte()
		if err != nil {
			break
		}
		if !s.in.PushByte(b) {
			break
		}
	}
	if s.in.IsEmpty() {
		return
	}
	s.decoder.Decode(s.in, s.handleFrame)

	// A frame larger than the input buffer can never complete.
	if s.in.Free() == 0 {
		s.in.Reset()
		s.decoder.desync()
	}
}

func (s *Streamer) handleFrame(f Frame) {
	if f.Channel != ControlChannel {
		return
	}
	s.stats.Commands++
	core.RecordTiming(core.EvtCommand, ControlChannel, 0, uint32(len(f.Payload)), 0)
	if core.IsDebugEnabled() {
		core.DebugAsync("[CMD] " + string(f.Payload))
	}

	resp, err := s.dispatch(string(f.Payload))
	if err != nil {
		s.Reply("error: " + err.Error())
		return
	}
	s.Reply(resp)
}

// dispatch runs one command line. A panicking handler is reported to the
// host instead of taking the acquisition loop down.
func (s *Streamer) dispatch(line string) (resp string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.stats.Panics++
			resp, err = "", errCommandPanic
		}
	}()
	return s.commands.Dispatch(line)
}

// Stats returns link counters.
func (s *Streamer) Stats() StreamerStats {
	return s.stats
}

// DecoderStats returns the input decoder's error counters.
func (s *Streamer) DecoderStats() DecoderStats {
	return s.decoder.Stats()
}
