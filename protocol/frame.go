package protocol

import "errors"

var ErrFrameTooLarge = errors.New("frame payload too large")

// Frame is one decoded frame. Payload aliases the decoder's input and is
// only valid during the callback it is passed to.
type Frame struct {
	Seq     uint8
	Channel uint8
	Payload []byte
}

// AppendFrame encodes a frame onto dst and returns the extended slice.
func AppendFrame(dst []byte, seq, channel uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return dst, ErrFrameTooLarge
	}
	n := len(payload) + FrameLengthMin
	start := len(dst)
	dst = append(dst, uint8(n>>8), uint8(n), seq, channel)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, uint8(crc>>8), uint8(crc), FrameValueSync), nil
}

// DecoderStats counts link errors seen by a Decoder.
type DecoderStats struct {
	Frames    uint32
	Resyncs   uint32
	CRCErrors uint32
	Discarded uint32 // bytes skipped while hunting for sync
}

// Decoder splits a byte stream into frames. After a length, sequence,
// sync or CRC error it drops input up to the next sync byte.
type Decoder struct {
	synchronized bool
	stats        DecoderStats
}

// NewDecoder creates a decoder that assumes the stream starts on a frame
// boundary.
func NewDecoder() *Decoder {
	return &Decoder{synchronized: true}
}

// Stats returns the error counters.
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}

// Reset returns the decoder to the synchronized state.
func (d *Decoder) Reset() {
	d.synchronized = true
}

// Decode consumes complete frames from input, calling fn for each, and
// leaves any trailing partial frame in place. It returns the number of
// frames decoded.
func (d *Decoder) Decode(input InputBuffer, fn func(Frame)) int {
	data := input.Data()
	count := 0

	for len(data) > 0 {
		if !d.synchronized {
			// Look for sync byte to resynchronize
			syncPos := -1
			for i, b := range data {
				if b == FrameValueSync {
					syncPos = i
					break
				}
			}

			if syncPos >= 0 {
				d.stats.Discarded += uint32(syncPos)
				data = data[syncPos+1:]
				d.synchronized = true
			} else {
				d.stats.Discarded += uint32(len(data))
				data = nil
			}
			continue
		}

		// Skip leading sync bytes
		if data[0] == FrameValueSync {
			data = data[1:]
			continue
		}

		if len(data) < FrameHeaderSize {
			break
		}

		n := int(data[FramePositionLen])<<8 | int(data[FramePositionLen+1])
		if n < FrameLengthMin || n > FrameLengthMax {
			d.desync()
			continue
		}

		seq := data[FramePositionSeq]
		if seq&^FrameSeqMask != FrameDest {
			d.desync()
			continue
		}

		// Wait for full frame
		if len(data) < n {
			break
		}

		if data[n-FrameTrailerSync] != FrameValueSync {
			d.desync()
			continue
		}

		frameCRC := uint16(data[n-FrameTrailerCRC])<<8 | uint16(data[n-FrameTrailerCRC+1])
		if frameCRC != CRC16(data[:n-FrameTrailerSize]) {
			d.stats.CRCErrors++
			d.desync()
			continue
		}

		f := Frame{
			Seq:     seq,
			Channel: data[FramePositionChannel],
			Payload: data[FrameHeaderSize : n-FrameTrailerSize],
		}
		data = data[n:]
		d.stats.Frames++
		count++
		if fn != nil {
			fn(f)
		}
	}

	// Remove consumed bytes from input
	consumed := input.Available() - len(data)
	if consumed > 0 {
		input.Pop(consumed)
	}
	return count
}

func (d *Decoder) desync() {
	d.synchronized = false
	d.stats.Resyncs++
}
