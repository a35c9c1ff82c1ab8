package capture

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"sensorstream/protocol"
)

// ChannelStats counts traffic on one channel.
type ChannelStats struct {
	Frames    uint64
	Bytes     uint64
	BadFrames uint64 // wrong size for the configured layout
	First     time.Time
	Last      time.Time
}

// Stats tracks a capture session. Link sequence gaps count frames the
// device sent that never arrived intact.
type Stats struct {
	mu       sync.Mutex
	channels map[uint8]*ChannelStats
	lastSeq  uint8
	haveSeq  bool
	lost     uint64
	started  time.Time
}

// NewStats starts a stats window at now.
func NewStats(now time.Time) *Stats {
	return &Stats{
		channels: make(map[uint8]*ChannelStats),
		started:  now,
	}
}

// Observe records one received frame.
func (s *Stats) Observe(now time.Time, seq, channel uint8, size int, valid bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.haveSeq {
		expected := protocol.NextSeq(s.lastSeq)
		s.lost += uint64((seq - expected) & protocol.FrameSeqMask)
	}
	s.lastSeq, s.haveSeq = seq, true

	cs := s.channels[channel]
	if cs == nil {
		cs = &ChannelStats{First: now}
		s.channels[channel] = cs
	}
	cs.Frames++
	cs.Bytes += uint64(size)
	cs.Last = now
	if !valid {
		cs.BadFrames++
	}
}

// Channel returns a copy of the counters for channel.
func (s *Stats) Channel(channel uint8) ChannelStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cs := s.channels[channel]; cs != nil {
		return *cs
	}
	return ChannelStats{}
}

// Lost returns the number of frames inferred missing from sequence gaps.
// Gaps of 16 or more frames alias and are undercounted.
func (s *Stats) Lost() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lost
}

// Report formats a per-channel summary.
func (s *Stats) Report(now time.Time, cfg *Config, link protocol.DecoderStats) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	elapsed := now.Sub(s.started).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "capture: %s\n", now.Sub(s.started).Round(time.Millisecond))
	for _, id := range ids {
		cs := s.channels[uint8(id)]
		fmt.Fprintf(&b, "  %-13s %10s frames %10s %12s/s %8s",
			cfg.ChannelName(uint8(id)),
			humanize.Comma(int64(cs.Frames)),
			humanize.Bytes(cs.Bytes),
			humanize.Bytes(uint64(float64(cs.Bytes)/elapsed)),
			humanize.SI(float64(cs.Frames)/elapsed, "Hz"))
		if cs.BadFrames > 0 {
			fmt.Fprintf(&b, " (%s bad)", humanize.Comma(int64(cs.BadFrames)))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "  link: %s lost, %d resyncs, %d crc errors, %s discarded\n",
		humanize.Comma(int64(s.lost)), link.Resyncs, link.CRCErrors,
		humanize.Bytes(uint64(link.Discarded)))
	return b.String()
}
