package mcc172

import "sync/atomic"

// ScanSession is the single-producer/single-consumer ring buffer and
// control-flag block described in spec.md §3/§5/§9. The producer (one
// goroutine per session) is the sole writer of writeIndex, bufferDepth
// (increment only), samplesTransferred, hwOverrun, bufferOverrun,
// triggered, scanRunning and threadRunning; the consumer is the sole
// writer of readIndex and the sole decrementer of bufferDepth. No mutex
// guards the buffer itself — safety rests entirely on that discipline plus
// the atomics below, mirroring the teacher's producer/consumer split in
// lepton.stream() but generalized from a single in-flight frame to a
// reusable ring.
type ScanSession struct {
	buf        []float64
	bufferSize int // in samples, inclusive of all channels

	writeIndex atomic.Uint64 // producer-owned
	readIndex  atomic.Uint64 // consumer-owned
	depth      atomic.Int64  // producer increments, consumer decrements

	samplesTransferred atomic.Uint64
	channelIndex       atomic.Uint32 // round-robin position, producer-owned

	hwOverrun     atomic.Bool
	bufferOverrun atomic.Bool
	threadRunning atomic.Bool
	stopThread    atomic.Bool
	triggered     atomic.Bool
	scanRunning   atomic.Bool

	options      Options
	readThreshold int
	channelCount  int
	channels      []int // ascending active channel indices
	slopes        [NumChannels]float64
	offsets       [NumChannels]float64

	done chan struct{} // closed when the producer goroutine returns
}

func newScanSession(bufferSize, channelCount, readThreshold int, channels []int, slopes, offsets [NumChannels]float64, opts Options) *ScanSession {
	s := &ScanSession{
		buf:           make([]float64, bufferSize),
		bufferSize:    bufferSize,
		channelCount:  channelCount,
		channels:      channels,
		slopes:        slopes,
		offsets:       offsets,
		readThreshold: readThreshold,
		options:       opts,
		done:          make(chan struct{}),
	}
	s.scanRunning.Store(true)
	s.threadRunning.Store(true)
	return s
}

// write appends len(samples) values starting at the current write index.
// Callers (the producer) must have already clamped len(samples) to the
// space remaining before the ring wraps, per spec.md §4.F step 5. Returns
// false if this write would push depth past bufferSize, in which case the
// session has transitioned to buffer_overrun and must stop.
func (s *ScanSession) write(samples []float64) bool {
	n := len(samples)
	if n == 0 {
		return true
	}
	start := s.writeIndex.Load()
	for i, v := range samples {
		s.buf[(start+uint64(i))%uint64(s.bufferSize)] = v
	}
	s.writeIndex.Store((start + uint64(n)) % uint64(s.bufferSize))
	newDepth := s.depth.Add(int64(n))
	if newDepth > int64(s.bufferSize) {
		s.bufferOverrun.Store(true)
		s.scanRunning.Store(false)
		return false
	}
	s.samplesTransferred.Add(uint64(n))
	return true
}

// read drains up to len(out) values, already rounded by the caller to a
// multiple of channelCount, handling wrap-around with up to two copies.
// Returns the number of values actually copied.
func (s *ScanSession) read(out []float64) int {
	depth := s.depth.Load()
	n := len(out)
	if int64(n) > depth {
		n = int(depth)
	}
	if n <= 0 {
		return 0
	}
	start := s.readIndex.Load()
	for i := 0; i < n; i++ {
		out[i] = s.buf[(start+uint64(i))%uint64(s.bufferSize)]
	}
	s.readIndex.Store((start + uint64(n)) % uint64(s.bufferSize))
	s.depth.Add(-int64(n))
	return n
}

func (s *ScanSession) available() int {
	return int(s.depth.Load())
}

// statusBits assembles the Status bitset spec.md §6/§7 returns from
// scan_status and scan_read.
func (s *ScanSession) statusBits() Status {
	var st Status
	if s.scanRunning.Load() {
		st |= StatusRunning
	}
	if s.triggered.Load() {
		st |= StatusTriggered
	}
	if s.hwOverrun.Load() {
		st |= StatusHWOverrun
	}
	if s.bufferOverrun.Load() {
		st |= StatusBufferOverrun
	}
	return st
}
