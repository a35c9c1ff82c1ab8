package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"

	"sensorstream/protocol"
)

// Record is one frame as received by the host.
type Record struct {
	Time    time.Time
	Seq     uint8
	Channel uint8
	Payload []byte
}

// FrameWriter consumes received frames.
type FrameWriter interface {
	WriteFrame(rec Record) error
}

// FrameWriterFunc adapts a function to FrameWriter.
type FrameWriterFunc func(rec Record) error

func (f FrameWriterFunc) WriteFrame(rec Record) error { return f(rec) }

// ReplyHandler receives control-channel text from the device.
type ReplyHandler func(text string)

// Session reads frames from the device link and fans them out.
type Session struct {
	cfg     *Config
	decoder *protocol.Decoder
	fifo    *protocol.FifoBuffer
	stats   *Stats
	writers []FrameWriter
	replies ReplyHandler
	now     func() time.Time
	seq     uint8
}

// NewSession creates a session for cfg.
func NewSession(cfg *Config, writers ...FrameWriter) *Session {
	return &Session{
		cfg:     cfg,
		decoder: protocol.NewDecoder(),
		fifo:    protocol.NewFifoBuffer(4 * protocol.FrameLengthMax),
		stats:   NewStats(time.Now()),
		writers: writers,
		now:     time.Now,
		seq:     protocol.FrameDest,
	}
}

// OnReply installs the control-channel handler.
func (s *Session) OnReply(fn ReplyHandler) {
	s.replies = fn
}

// Stats returns the session counters.
func (s *Session) Stats() *Stats {
	return s.stats
}

// LinkStats returns the decoder's error counters.
func (s *Session) LinkStats() protocol.DecoderStats {
	return s.decoder.Stats()
}

// SendCommand frames a command line for the device.
func (s *Session) SendCommand(w io.Writer, line string) error {
	out, err := protocol.AppendFrame(nil, s.seq, protocol.ControlChannel, []byte(line))
	if err != nil {
		return err
	}
	s.seq = protocol.NextSeq(s.seq)
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("writing command: %w", err)
	}
	return nil
}

// Run reads from r until ctx is done or r reports EOF. Writer errors are
// logged and do not stop the capture.
func (s *Session) Run(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			s.feed(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading link: %w", err)
		}
	}
}

func (s *Session) feed(data []byte) {
	for len(data) > 0 {
		written := s.fifo.Write(data)
		data = data[written:]
		s.decoder.Decode(s.fifo, s.handle)
		if written == 0 && s.fifo.Free() == 0 {
			// Nothing decodable in a full buffer.
			s.fifo.Reset()
			s.decoder.Reset()
		}
	}
}

func (s *Session) handle(f protocol.Frame) {
	now := s.now()
	if f.Channel == protocol.ControlChannel {
		s.stats.Observe(now, f.Seq, f.Channel, len(f.Payload), true)
		if s.replies != nil {
			s.replies(string(f.Payload))
		}
		return
	}

	valid := true
	if ch, ok := s.cfg.Channel(f.Channel); ok {
		if layout, err := ch.Layout(); err == nil && layout.Size() != len(f.Payload) {
			valid = false
		}
	}
	s.stats.Observe(now, f.Seq, f.Channel, len(f.Payload), valid)
	if !valid {
		glog.V(1).Infof("%s frame of %d bytes does not match layout", s.cfg.ChannelName(f.Channel), len(f.Payload))
		return
	}

	rec := Record{
		Time:    now,
		Seq:     f.Seq,
		Channel: f.Channel,
		Payload: append([]byte(nil), f.Payload...),
	}
	for _, w := range s.writers {
		if err := w.WriteFrame(rec); err != nil {
			glog.Warningf("writing %s frame: %v", s.cfg.ChannelName(f.Channel), err)
		}
	}
}

// Report summarises the session so far.
func (s *Session) Report() string {
	return s.stats.Report(s.now(), s.cfg, s.decoder.Stats())
}
