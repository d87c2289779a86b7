package mcc172

import (
	"fmt"
	"log"
	"time"

	"github.com/mccdaq/mcc172/internal/wire"
)

// producer is the background acquisition loop of spec.md §4.F, one per
// active ScanSession. It is the only goroutine started by this package,
// the same way the teacher's lepton.stream() is the only background
// goroutine lepton.New spawns.
type producer struct {
	dev     *Device
	sess    *ScanSession
	logger  *log.Logger
	statusCount int
	sleepUS     int
}

func startProducer(dev *Device, sess *ScanSession, logger *log.Logger) {
	p := &producer{dev: dev, sess: sess, logger: logger, sleepUS: minSleepUS}
	go p.run()
}

func (p *producer) run() {
	defer func() {
		if p.sess.scanRunning.Load() {
			// The loop exited on a stop request without the device itself
			// reporting done; tell it to stop before we disappear.
			p.dev.bus.transfer(p.dev.addr, CmdAinScanStop, nil, 0, statusPollTimeout, statusPollRetry)
			p.sess.scanRunning.Store(false)
		}
		p.sess.threadRunning.Store(false)
		close(p.sess.done)
	}()

	for {
		if p.sess.stopThread.Load() {
			return
		}

		st, err := p.pollStatus()
		if err != nil {
			// A failed status poll is not itself fatal; try again next
			// iteration, same as a failed AINSCANDATA per spec.md §7.
			p.sleep()
			continue
		}

		if st.Flags&wire.ScanStatusHWOverrun != 0 {
			p.sess.hwOverrun.Store(true)
			p.sess.scanRunning.Store(false)
			return
		}

		triggered := st.Flags&wire.ScanStatusTriggered != 0
		if triggered {
			p.sess.triggered.Store(true)
		}
		if !triggered {
			time.Sleep(trigSleepUS * time.Microsecond)
			continue
		}

		running := st.Flags&wire.ScanStatusRunning != 0
		readCount := p.computeReadCount(running, int(st.AvailableSamples), int(st.MaxReadNow))
		// A reply frame carries at most maxPayload bytes (3 per sample), so
		// one AINSCANDATA burst is capped to whole channel groups below that.
		if maxBurst := maxPayload / 3 / p.sess.channelCount * p.sess.channelCount; readCount > maxBurst {
			readCount = maxBurst
		}

		if readCount > 0 {
			if err := p.readAndStore(readCount); err != nil {
				// buffer overrun already flipped scan_running/bufferOverrun.
				return
			}
		}

		if !running && int(st.AvailableSamples) == readCount {
			p.sess.scanRunning.Store(false)
			return
		}

		p.adjustSleep(readCount)
		p.sleep()
	}
}

func (p *producer) pollStatus() (wire.ScanStatus, error) {
	payload, err := p.dev.bus.transfer(p.dev.addr, CmdAinScanStatus, nil, 5, statusPollTimeout, statusPollRetry)
	if err != nil {
		return wire.ScanStatus{}, err
	}
	return wire.DecodeScanStatus(payload)
}

// computeReadCount implements spec.md §4.F step 4.
func (p *producer) computeReadCount(running bool, available, maxReadNow int) int {
	if !running || available >= p.sess.readThreshold || available > maxReadNow {
		n := available
		if maxReadNow < n {
			n = maxReadNow
		}
		if maxSamplesRead < n {
			n = maxSamplesRead
		}
		return n
	}
	return 0
}

// readAndStore issues AINSCANDATA for readCount samples (clamped to the
// space left before the ring wraps), decodes, calibrates, scales, and
// writes them into the session, per spec.md §4.F step 5.
func (p *producer) readAndStore(readCount int) error {
	spaceToEnd := p.sess.bufferSize - int(p.sess.writeIndex.Load())
	if readCount > spaceToEnd {
		readCount = spaceToEnd
	}
	if readCount <= 0 {
		return nil
	}

	payload, err := p.dev.bus.transfer(p.dev.addr, CmdAinScanData, encodeReadCount(readCount), readCount*3, dataPollTimeout, dataPollRetry)
	if err != nil {
		p.logger.Printf("mcc172: producer: AINSCANDATA failed, will retry: %v", err)
		return nil
	}
	codes, err := wire.DecodeSamples(payload)
	if err != nil {
		p.logger.Printf("mcc172: producer: malformed sample payload, will retry: %v", err)
		return nil
	}

	calibrate := p.sess.options&OptsNoCalibrData == 0
	scale := p.sess.options&OptsNoScaleData == 0
	samples := make([]float64, len(codes))
	for i, raw := range codes {
		ch := p.sess.channels[int(p.sess.channelIndex.Load())%len(p.sess.channels)]
		samples[i] = applyCalibration(raw, p.sess.slopes[ch], p.sess.offsets[ch], calibrate, scale)
		p.sess.channelIndex.Store((p.sess.channelIndex.Load() + 1) % uint32(len(p.sess.channels)))
	}

	if !p.sess.write(samples) {
		return errBufferOverrun
	}
	return nil
}

// adjustSleep implements the adaptive sleep of spec.md §4.F step 5/9: many
// consecutive idle polls (status_count>4) double the sleep; a productive
// read resets the counter and halves the sleep back towards the floor.
func (p *producer) adjustSleep(readCount int) {
	if readCount > 0 {
		p.statusCount = 0
		p.sleepUS /= 2
		if p.sleepUS < minSleepUS {
			p.sleepUS = minSleepUS
		}
		return
	}
	p.statusCount++
	if p.statusCount > 4 {
		p.sleepUS *= 2
	}
}

func (p *producer) sleep() {
	time.Sleep(time.Duration(p.sleepUS) * time.Microsecond)
}

func encodeReadCount(n int) []byte {
	return []byte{byte(n), byte(n >> 8)}
}

// errBufferOverrun only ever signals readAndStore's caller to stop the
// producer loop; the session's bufferOverrun flag (set by ScanSession.write)
// is what callers of the public API actually observe.
var errBufferOverrun = fmt.Errorf("mcc172: producer: buffer overrun")
