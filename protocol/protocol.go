// Package protocol implements the sensorstream link: CRC-protected frames
// tagged with a channel, carried over USB CDC or a UART.
package protocol

// Version is reported by the "version" command
const Version = "0.3.0"

// Frame layout:
//
//	len(2, big endian) seq(1) channel(1) payload(n) crc(2, big endian) sync(1)
//
// len counts the whole frame. The CRC covers everything before it.
const (
	FrameHeaderSize      = 4
	FrameTrailerSize     = 3
	FrameLengthMin       = FrameHeaderSize + FrameTrailerSize
	MaxPayload           = 8192
	FrameLengthMax       = MaxPayload + FrameLengthMin
	FramePositionLen     = 0
	FramePositionSeq     = 2
	FramePositionChannel = 3
	FrameTrailerCRC      = 3
	FrameTrailerSync     = 1
	FrameValueSync       = 0x7E

	// Sequence bytes carry 0x10 in the high nibble and a rolling
	// counter in the low nibble.
	FrameDest    = 0x10
	FrameSeqMask = 0x0F
)

// ControlChannel carries host commands and their responses. Data
// channels use the sensor channel ids.
const ControlChannel = 0x7F

// NextSeq returns the sequence byte following seq.
func NextSeq(seq uint8) uint8 {
	return ((seq + 1) & FrameSeqMask) | FrameDest
}
