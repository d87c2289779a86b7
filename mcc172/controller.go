package mcc172

import (
	"time"

	"github.com/mccdaq/mcc172/internal/wire"
)

// ScanStart implements spec.md §4.E: validate, reject Busy if a session
// already exists, snapshot the active channels' calibration, wait for
// clock sync, size the ring buffer, and kick off the device and the
// producer goroutine.
func (r *Registry) ScanStart(addr int, channelMask byte, samplesPerChannel int, opts Options) error {
	d, err := r.get(addr)
	if err != nil {
		return err
	}
	if int(channelMask) <= 0 || int(channelMask) >= 1<<NumChannels {
		return newErr("scanStart", BadParameter, nil)
	}
	if samplesPerChannel <= 0 && opts&OptsContinuous == 0 {
		return newErr("scanStart", BadParameter, nil)
	}
	if d.hasSession() {
		return newErr("scanStart", Busy, nil)
	}

	channels := make([]int, 0, NumChannels)
	for ch := 0; ch < NumChannels; ch++ {
		if channelMask&(1<<uint(ch)) != 0 {
			channels = append(channels, ch)
		}
	}
	channelCount := len(channels)

	d.mu.Lock()
	cal := d.cal
	d.mu.Unlock()
	var slopes, offsets [NumChannels]float64
	copy(slopes[:], cal.Slopes[:])
	copy(offsets[:], cal.Offsets[:])

	rate, err := r.waitClockSync(d)
	if err != nil {
		return err
	}

	bufferSize, err := computeBufferSize(opts&OptsContinuous != 0, rate, samplesPerChannel, channelCount)
	if err != nil {
		return err
	}
	readThreshold := computeReadThreshold(rate, channelCount)

	sendMask := channelMask
	if opts&OptsExtTrigger != 0 {
		sendMask |= optsTrigEnable
	}
	scanCount := uint32(0)
	if opts&OptsContinuous == 0 {
		scanCount = uint32(samplesPerChannel)
	}
	if _, err := d.bus.transfer(addr, CmdAinScanStart, wire.EncodeScanStart(scanCount, sendMask), 0, statusPollTimeout, statusPollRetry); err != nil {
		return err
	}

	sess := newScanSession(bufferSize, channelCount, readThreshold, channels, slopes, offsets, opts)
	d.session.Store(sess)
	startProducer(d, sess, r.logger)
	return nil
}

// waitClockSync polls a_in_clock_config_read every 100ms until the device
// reports synced, per spec.md §4.E — there is deliberately no timeout,
// since two boards sharing a clock must rendezvous and there is no upper
// bound on how long that can take.
func (r *Registry) waitClockSync(d *Device) (float64, error) {
	for {
		payload, err := d.bus.transfer(d.addr, CmdAinClockRead, nil, 4, statusPollTimeout, statusPollRetry)
		if err != nil {
			return 0, err
		}
		_, divisor, synced, err := wire.DecodeClockConfig(payload)
		if err != nil {
			return 0, newErr("scanStart", Undefined, err)
		}
		if synced {
			if divisor == 0 {
				divisor = 1
			}
			return maxScanRate / float64(divisor), nil
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// computeBufferSize implements spec.md §4.E's bucket rules.
func computeBufferSize(continuous bool, rate float64, samplesPerChannel, channelCount int) (int, error) {
	var perChannel int
	if continuous {
		floor := continuousFloor(rate)
		perChannel = floor
		if samplesPerChannel > perChannel {
			perChannel = samplesPerChannel
		}
	} else {
		perChannel = samplesPerChannel
	}
	total := perChannel * channelCount
	if total > maxBufferSamples {
		return 0, newErr("scanStart", BadParameter, nil)
	}
	return total, nil
}

func continuousFloor(rate float64) int {
	switch {
	case rate <= 1024:
		return 1000
	case rate <= 10240:
		return 10000
	default:
		return 100000
	}
}

// computeReadThreshold implements spec.md §4.E: clamp(rate/10, channelCount,
// MAX_SAMPLES_READ) rounded down to a multiple of channelCount.
func computeReadThreshold(rate float64, channelCount int) int {
	th := int(rate / 10)
	if th < channelCount {
		th = channelCount
	}
	if th > maxSamplesRead {
		th = maxSamplesRead
	}
	th -= th % channelCount
	if th == 0 {
		th = channelCount
	}
	return th
}

// ScanStop sends AINSCANSTOP; it is non-blocking, the producer observes
// scan_running=false at its next status poll, per spec.md §4.E.
func (r *Registry) ScanStop(addr int) error {
	d, err := r.get(addr)
	if err != nil {
		return err
	}
	if !d.hasSession() {
		return newErr("scanStop", ResourceUnavail, nil)
	}
	_, err = d.bus.transfer(addr, CmdAinScanStop, nil, 0, statusPollTimeout, statusPollRetry)
	return err
}

// ScanCleanup implements spec.md §4.E cleanup(addr): hard-stop the
// producer, join it, and free the session.
func (r *Registry) ScanCleanup(addr int) error {
	d, err := r.get(addr)
	if err != nil {
		return err
	}
	scanCleanup(d)
	return nil
}

// scanCleanup is the shared hard-stop path used by both the public
// ScanCleanup operation and Close's implicit cleanup (spec.md §5).
func scanCleanup(d *Device) {
	sess := d.session.Load()
	if sess == nil {
		return
	}
	sess.stopThread.Store(true)
	<-sess.done
	d.session.Store(nil)
}
