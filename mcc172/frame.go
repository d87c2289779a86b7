package mcc172

import "fmt"

// frameStart is the sync byte that opens every frame, outbound or inbound.
// A fresh 0xDB resynchronises the scanner in every state except while it is
// collecting payload bytes, per spec.md §4.A.
const frameStart = 0xDB

// maxPayload is the largest payload a single frame can carry.
const maxPayload = 256

// outHeaderSize is the outbound header: start, command, count_lo, count_hi.
const outHeaderSize = 4

// inHeaderSize is the inbound header: start, command, status, count_lo, count_hi.
const inHeaderSize = 5

// encode builds an outbound frame: [0xDB, command, count_lo, count_hi, payload...].
func encode(cmd Command, payload []byte) ([]byte, error) {
	if len(payload) > maxPayload {
		return nil, newErr("encode", BadParameter, fmt.Errorf("payload %d bytes exceeds %d", len(payload), maxPayload))
	}
	buf := make([]byte, outHeaderSize+len(payload))
	buf[0] = frameStart
	buf[1] = byte(cmd)
	buf[2] = byte(len(payload))
	buf[3] = byte(len(payload) >> 8)
	copy(buf[outHeaderSize:], payload)
	return buf, nil
}

// encodeReply builds an inbound-shaped frame: [0xDB, command, status,
// count_lo, count_hi, payload...]. It is what the board actually sends back
// and what scan() parses; it is also used by tests and by the fake
// transport in mcc172test to synthesize replies.
func encodeReply(cmd Command, status byte, payload []byte) ([]byte, error) {
	if len(payload) > maxPayload {
		return nil, newErr("encodeReply", BadParameter, fmt.Errorf("payload %d bytes exceeds %d", len(payload), maxPayload))
	}
	buf := make([]byte, inHeaderSize+len(payload))
	buf[0] = frameStart
	buf[1] = byte(cmd)
	buf[2] = status
	buf[3] = byte(len(payload))
	buf[4] = byte(len(payload) >> 8)
	copy(buf[inHeaderSize:], payload)
	return buf, nil
}

// scanState is the byte-at-a-time state of the inbound frame scanner, per
// spec.md §4.A: SEARCH_START -> COMMAND -> STATUS -> COUNT_LO -> COUNT_HI
// -> DATA -> DONE.
type scanState int

const (
	scanSearchStart scanState = iota
	scanCommand
	scanStatus
	scanCountLo
	scanCountHi
	scanData
	scanDone
)

// frameScanner is a restartable scanner for inbound frames. It is fed
// successive chunks of a byte stream and never blocks or panics; an
// incomplete chunk just leaves state for the next call to pick up.
type frameScanner struct {
	state   scanState
	cmd     byte
	status  byte
	countLo byte
	count   int
	have    int
	payload []byte
}

func newFrameScanner() *frameScanner {
	return &frameScanner{state: scanSearchStart}
}

func (s *frameScanner) reset() {
	*s = frameScanner{state: scanSearchStart}
}

// feed advances the scanner by one byte, returning true once a full frame
// has been recognized (scanResult then reports it). A start byte
// resynchronises the scanner anywhere in the header, even mid-frame; inside
// the payload it is kept as an ordinary data byte.
func (s *frameScanner) feed(b byte) bool {
	if b == frameStart && s.state != scanSearchStart && s.state != scanData {
		s.reset()
		s.state = scanCommand
		return false
	}
	switch s.state {
	case scanSearchStart:
		if b == frameStart {
			s.state = scanCommand
		}
	case scanCommand:
		s.cmd = b
		s.state = scanStatus
	case scanStatus:
		s.status = b
		s.state = scanCountLo
	case scanCountLo:
		s.countLo = b
		s.state = scanCountHi
	case scanCountHi:
		s.count = int(s.countLo) | int(b)<<8
		s.payload = make([]byte, 0, s.count)
		if s.count == 0 {
			s.state = scanDone
			return true
		}
		s.state = scanData
	case scanData:
		s.payload = append(s.payload, b)
		s.have++
		if s.have == s.count {
			s.state = scanDone
			return true
		}
	}
	return false
}

// remaining reports how many more bytes are needed before the current
// in-progress frame completes.
func (s *frameScanner) remaining() int {
	switch s.state {
	case scanSearchStart:
		return inHeaderSize
	case scanCommand:
		return inHeaderSize - 1
	case scanStatus:
		return inHeaderSize - 2
	case scanCountLo:
		return inHeaderSize - 3
	case scanCountHi:
		return inHeaderSize - 4
	case scanData:
		return s.count - s.have
	default:
		return 0
	}
}

// scanResult is valid only immediately after feed returned true.
func (s *frameScanner) scanResult() (cmd byte, status byte, payload []byte) {
	return s.cmd, s.status, s.payload
}

// scan runs the byte-at-a-time state machine over stream looking for one
// complete frame. It returns found=true and the frame's command/status/
// payload once one is recognized; otherwise found=false and bytesNeeded
// reports how many more bytes the caller should supply before retrying.
// scan never panics: malformed input just keeps scanning for the next
// 0xDB, per spec.md §4.A.
func scan(stream []byte) (found bool, cmd byte, status byte, payload []byte, bytesNeeded int) {
	s := newFrameScanner()
	for _, b := range stream {
		if s.feed(b) {
			cmd, status, payload = s.scanResult()
			return true, cmd, status, payload, 0
		}
	}
	return false, 0, 0, nil, s.remaining()
}
