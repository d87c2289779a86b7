// Package mcc172test provides a fake SPI transport, lock, address selector
// and HAT EEPROM reader standing in for real MCC 172 hardware, the same
// role leptontest.New plays for the teacher's thermal camera: a process
// can exercise the full mcc172.Registry surface without touching a real
// bus, and tests can drive deterministic scenarios (stuck ready-poll,
// command mismatch, a late external trigger) that real hardware won't
// reproduce on demand. The fake board never reports a hardware overrun.
package mcc172test

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/mccdaq/mcc172/mcc172"
	"periph.io/x/periph/conn/gpio"
)

const frameStart = 0xDB

// Board is a synthetic MCC 172 implementing just enough of the command
// set to drive a Registry through open, configuration, and a scan. Each
// active channel streams a distinct sine wave so a consumer can visually
// distinguish channel 0 from channel 1, the same way leptontest's noise
// generator renders a recognizable pattern instead of pure garbage.
type Board struct {
	mu sync.Mutex

	firmwareVersion uint16
	clockSource     uint8
	clockDivisor    uint16
	synced          bool
	trigSource      byte
	trigMode        byte
	iepe            [mcc172.NumChannels]bool
	testSig         byte

	scanRunning  bool
	triggered    bool
	hwOverrun    bool
	channelMask  byte
	scanCount    uint32 // 0 = continuous
	emitted      uint32
	acquired     uint32 // samples converted since scan start
	sampleCursor uint64

	// StuckBusy, when true, makes the ready-poll phase never return a
	// non-zero byte, for exercising the Timeout path (scenario S3).
	StuckBusy bool
	// ForceReplyCommand, when non-zero, overrides the command byte echoed
	// back in every reply, for exercising the command-mismatch path
	// (scenario S4).
	ForceReplyCommand mcc172.Command
}

// NewBoard returns a Board already past its ID handshake and clock-synced,
// ready for a Registry to Open against it.
func NewBoard() *Board {
	return &Board{
		firmwareVersion: 0x0102,
		clockDivisor:    1,
		synced:          true,
	}
}

// FireTrigger flips the device-side triggered bit to true, the way a real
// board would once its external trigger input is satisfied. Until this is
// called on a scan started with OptsExtTrigger, AINSCANSTATUS reports bit
// 2 clear and no samples are available, per spec.md scenario S6.
func (b *Board) FireTrigger() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.triggered = true
}

// handle implements the board's command set, returning the firmware
// status byte and reply payload for a decoded command frame.
func (b *Board) handle(cmd mcc172.Command, payload []byte) (status byte, rx []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch cmd {
	case mcc172.CmdId:
		return 0x00, []byte{0x75, 0x01, byte(b.firmwareVersion)}
	case mcc172.CmdBlink, mcc172.CmdReset:
		return 0x00, nil
	case mcc172.CmdIepeRead:
		ch := int(payload[0])
		var v byte
		if b.iepe[ch] {
			v = 1
		}
		return 0x00, []byte{v}
	case mcc172.CmdIepeWrite:
		b.iepe[int(payload[0])] = payload[1] != 0
		return 0x00, nil
	case mcc172.CmdAinClockRead:
		rx = make([]byte, 4)
		rx[0] = b.clockSource
		rx[1] = byte(b.clockDivisor)
		rx[2] = byte(b.clockDivisor >> 8)
		if b.synced {
			rx[3] = 1
		}
		return 0x00, rx
	case mcc172.CmdAinClockWrite:
		b.clockSource = payload[0]
		b.clockDivisor = uint16(payload[1]) | uint16(payload[2])<<8
		return 0x00, nil
	case mcc172.CmdTriggerRead:
		return 0x00, []byte{b.trigSource, b.trigMode}
	case mcc172.CmdTriggerWrite:
		b.trigSource, b.trigMode = payload[0], payload[1]
		return 0x00, nil
	case mcc172.CmdTestSigRead:
		return 0x00, []byte{b.testSig}
	case mcc172.CmdTestSigWrite:
		b.testSig = payload[0]
		return 0x00, nil
	case mcc172.CmdAinScanStart:
		b.scanCount = uint32(payload[0]) | uint32(payload[1])<<8 | uint32(payload[2])<<16 | uint32(payload[3])<<24
		b.channelMask = payload[4] &^ 0x80
		extTrig := payload[4]&0x80 != 0
		b.emitted = 0
		b.acquired = 0
		b.scanRunning = true
		b.hwOverrun = false
		b.triggered = !extTrig
		return 0x00, nil
	case mcc172.CmdAinScanStop:
		b.scanRunning = false
		return 0x00, nil
	case mcc172.CmdAinScanStatus:
		return 0x00, b.statusPayloadLocked()
	case mcc172.CmdAinScanData:
		n := int(payload[0]) | int(payload[1])<<8
		return 0x00, b.samplesPayloadLocked(n)
	default:
		return 0x02, nil
	}
}

func (b *Board) statusPayloadLocked() []byte {
	var flags byte
	if b.scanRunning {
		flags |= 1
	}
	if b.hwOverrun {
		flags |= 2
	}
	if b.triggered {
		flags |= 4
	}
	available := b.available()
	maxReadNow := available
	if maxReadNow > 1000 {
		maxReadNow = 1000
	}
	rx := make([]byte, 5)
	rx[0] = flags
	rx[1] = byte(available)
	rx[2] = byte(available >> 8)
	rx[3] = byte(maxReadNow)
	rx[4] = byte(maxReadNow >> 8)
	return rx
}

// available reports how many samples (all channels together) are waiting,
// always growing while the scan runs — a real board's conversion clock
// free-runs independent of how often the host polls it. A finite scan
// stops running once its last sample has been converted.
func (b *Board) available() int {
	if !b.triggered {
		return 0
	}
	channels := popcount(b.channelMask)
	if b.scanRunning {
		b.acquired += uint32(64 * channels) // pretend roughly 64 groups accumulate between polls
		if total := b.scanCount * uint32(channels); b.scanCount != 0 && b.acquired >= total {
			b.acquired = total
			b.scanRunning = false
		}
	}
	return int(b.acquired - b.emitted)
}

func (b *Board) samplesPayloadLocked(n int) []byte {
	channels := popcount(b.channelMask)
	codes := make([]int32, n)
	for i := range codes {
		ch := int(b.sampleCursor) % channels
		codes[i] = b.synth(ch)
		b.sampleCursor++
	}
	b.emitted += uint32(n)
	if b.scanCount != 0 && int(b.emitted) >= int(b.scanCount)*channels {
		b.scanRunning = false
	}
	out := make([]byte, n*3)
	for i, c := range codes {
		u := uint32(c)
		out[i*3] = byte(u >> 16)
		out[i*3+1] = byte(u >> 8)
		out[i*3+2] = byte(u)
	}
	return out
}

// synth produces a recognizably distinct waveform per channel: a slow
// sine on channel 0, a faster one on every odd channel, scaled into the
// board's 24-bit code range.
func (b *Board) synth(channel int) int32 {
	t := float64(b.sampleCursor) / mcc172.Info().MaxScanRate
	freq := 10.0 * float64(channel+1)
	v := math.Sin(2 * math.Pi * freq * t)
	return int32(v * 4000000)
}

func popcount(b byte) int {
	n := 0
	for b != 0 {
		n += int(b & 1)
		b >>= 1
	}
	if n == 0 {
		return 1
	}
	return n
}

// Transport adapts a Board to mcc172.Transport, replaying the same
// ready-poll-then-body-read shape a real spidev transfer exhibits: the
// device clocks out zero bytes until it has formed a reply, then the
// reply frame itself starting with the 0xDB sync byte.
type Transport struct {
	board *Board

	mu      sync.Mutex
	mode    byte
	pending []byte
	pos     int
}

func NewTransport(b *Board) *Transport {
	return &Transport{board: b}
}

func (t *Transport) EnsureMode(mode byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mode = mode
	return nil
}

func (t *Transport) Close() error { return nil }

func (t *Transport) Transfer(tx []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(tx) > 1 && t.pending == nil {
		// outbound command frame: [0xDB, cmd, countLo, countHi, payload...]
		cmd := mcc172.Command(tx[1])
		plen := int(tx[2]) | int(tx[3])<<8
		payload := tx[4 : 4+plen]
		status, rx := t.board.handle(cmd, payload)
		replyCmd := cmd
		if t.board.ForceReplyCommand != 0 {
			replyCmd = t.board.ForceReplyCommand
		}
		t.pending = encodeReply(replyCmd, status, rx)
		t.pos = 0
		return make([]byte, len(tx)), nil
	}

	if len(tx) == 1 {
		// ready-poll: a zero byte means "not ready yet".
		if t.board.StuckBusy || t.pending == nil {
			return []byte{0}, nil
		}
		b := t.pending[0]
		t.pos = 1
		return []byte{b}, nil
	}

	// body read: whatever is left of the pending reply frame.
	out := make([]byte, len(tx))
	if t.pending != nil {
		n := copy(out, t.pending[t.pos:])
		t.pos += n
		if t.pos >= len(t.pending) {
			t.pending = nil
		}
	}
	return out, nil
}

func encodeReply(cmd mcc172.Command, status byte, payload []byte) []byte {
	buf := make([]byte, 5+len(payload))
	buf[0] = frameStart
	buf[1] = byte(cmd)
	buf[2] = status
	buf[3] = byte(len(payload))
	buf[4] = byte(len(payload) >> 8)
	copy(buf[5:], payload)
	return buf
}

// Locker is an in-process stand-in for the cross-process SPI lock,
// sufficient to exercise scenario S5 (lock contention between concurrent
// callers) without needing two real processes.
type Locker struct {
	mu sync.Mutex
}

func (l *Locker) Lock(ctx context.Context) error {
	l.mu.Lock()
	return nil
}

func (l *Locker) Unlock() error {
	l.mu.Unlock()
	return nil
}

// AddressSelector is a no-op chip-select mux: the fake Board only ever
// represents one address, so SetAddress just records the address it was
// given, without a range check.
type AddressSelector struct {
	selected atomic.Int32
}

func (a *AddressSelector) SetAddress(addr int) error {
	a.selected.Store(int32(addr))
	return nil
}

// HatInfo is a fake board-discovery/EEPROM reader returning a fixed,
// well-formed calibration blob for every address.
type HatInfo struct {
	Blob []byte
}

func NewHatInfo() *HatInfo {
	return &HatInfo{Blob: []byte(`{"serial":"01234567","calibration":{"date":"2024-01-01","slopes":[1.0,1.0],"offsets":[0.0,0.0]}}`)}
}

func (h *HatInfo) Read(addr int) (uint16, []byte, error) {
	return 0x0175, h.Blob, nil
}

// ResetPin and IRQPin are minimal fakes for the two GPIO lines
// mcc172.ResetIRQ wraps, sufficient to drive EnterBootloader's pulse loop
// without a real periph.io host backend.
type ResetPin struct {
	level atomic.Bool // true == high
}

func (p *ResetPin) Out(l gpio.Level) error {
	p.level.Store(l == gpio.High)
	return nil
}

type IRQPin struct {
	high atomic.Bool
}

func (p *IRQPin) In(pull gpio.Pull, edge gpio.Edge) error { return nil }

func (p *IRQPin) Read() gpio.Level {
	if p.high.Load() {
		return gpio.High
	}
	return gpio.Low
}

// SetHigh lets a test simulate the device dropping IRQ low once it has
// processed a reset pulse, e.g. after N calls to ResetPin.Out.
func (p *IRQPin) SetHigh(high bool) {
	p.high.Store(high)
}
