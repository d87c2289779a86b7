// Package wire decodes the fixed-layout binary payloads carried inside
// mcc172 frames, the same way the teacher's internal package decodes
// TelemetryRowA out of a Lepton frame's payload.
package wire

import (
	"encoding/binary"
	"fmt"
)

// ScanStatus is the payload of an AINSCANSTATUS reply.
type ScanStatus struct {
	Flags            uint8
	AvailableSamples uint16
	MaxReadNow       uint16
}

// Status flag bits within ScanStatus.Flags.
const (
	ScanStatusRunning   uint8 = 1 << 0
	ScanStatusHWOverrun uint8 = 1 << 1
	ScanStatusTriggered uint8 = 1 << 2
)

// DecodeScanStatus parses an AINSCANSTATUS reply payload.
func DecodeScanStatus(b []byte) (ScanStatus, error) {
	var s ScanStatus
	if len(b) < 5 {
		return s, fmt.Errorf("wire: scan status payload too short: %d bytes", len(b))
	}
	s.Flags = b[0]
	s.AvailableSamples = binary.LittleEndian.Uint16(b[1:3])
	s.MaxReadNow = binary.LittleEndian.Uint16(b[3:5])
	return s, nil
}

// EncodeScanStatus is the inverse of DecodeScanStatus, used by the fake
// transport in mcc172test to synthesize device replies.
func EncodeScanStatus(s ScanStatus) []byte {
	b := make([]byte, 5)
	b[0] = s.Flags
	binary.LittleEndian.PutUint16(b[1:3], s.AvailableSamples)
	binary.LittleEndian.PutUint16(b[3:5], s.MaxReadNow)
	return b
}

// EncodeScanStart builds the AINSCANSTART payload: scan_count (4 bytes LE,
// 0 means continuous, so all four bytes are zero in that case) followed by
// the channel mask byte.
func EncodeScanStart(scanCount uint32, channelMask byte) []byte {
	b := make([]byte, 5)
	binary.LittleEndian.PutUint32(b[0:4], scanCount)
	b[4] = channelMask
	return b
}

// EncodeClockConfig builds the AINCLOCKWRITE payload: source byte followed
// by the divisor (1 byte, 1..256 encoded as 0..255 would lose the value 256,
// so it is sent as a little-endian uint16 to keep headroom).
func EncodeClockConfig(source uint8, divisor uint16) []byte {
	b := make([]byte, 3)
	b[0] = source
	binary.LittleEndian.PutUint16(b[1:3], divisor)
	return b
}

// DecodeClockConfig is the inverse of EncodeClockConfig, plus the synced
// flag the board appends when reporting its current configuration.
func DecodeClockConfig(b []byte) (source uint8, divisor uint16, synced bool, err error) {
	if len(b) < 4 {
		return 0, 0, false, fmt.Errorf("wire: clock config payload too short: %d bytes", len(b))
	}
	source = b[0]
	divisor = binary.LittleEndian.Uint16(b[1:3])
	synced = b[3] != 0
	return source, divisor, synced, nil
}

// DecodeSamples splits a raw AINSCANDATA payload into 24-bit big-endian
// two's-complement codes, sign-extended into int32.
func DecodeSamples(b []byte) ([]int32, error) {
	if len(b)%3 != 0 {
		return nil, fmt.Errorf("wire: sample payload length %d not a multiple of 3", len(b))
	}
	n := len(b) / 3
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		o := i * 3
		raw := uint32(b[o])<<16 | uint32(b[o+1])<<8 | uint32(b[o+2])
		if raw&0x800000 != 0 {
			raw |= 0xFF000000
		}
		out[i] = int32(raw)
	}
	return out, nil
}

// EncodeSamples is the inverse of DecodeSamples.
func EncodeSamples(codes []int32) []byte {
	b := make([]byte, len(codes)*3)
	for i, c := range codes {
		u := uint32(c)
		o := i * 3
		b[o] = byte(u >> 16)
		b[o+1] = byte(u >> 8)
		b[o+2] = byte(u)
	}
	return b
}
