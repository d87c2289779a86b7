package mcc172

import "time"

const readPollInterval = 100 * time.Microsecond

// ScanRead implements spec.md §4.G: drain the ring buffer with timeout,
// wrap-around, and partial/all-available semantics. samplesPerChannel ==
// -1 means "whatever is available right now, ignore timeout". Otherwise
// it reads exactly that many samples per channel, bounded by len(out)
// rounded down to a multiple of the channel count.
//
// timeoutS < 0 waits indefinitely; == 0 returns immediately with whatever
// is ready; > 0 is a wall-clock deadline in seconds. A timeout reached with
// the target unmet returns a Timeout error together with however many
// samples per channel were already copied into out.
func (r *Registry) ScanRead(addr int, samplesPerChannel int, timeoutS float64, out []float64) (Status, int, error) {
	d, err := r.get(addr)
	if err != nil {
		return 0, 0, err
	}
	sess := d.session.Load()
	if sess == nil {
		return 0, 0, newErr("scanRead", ResourceUnavail, nil)
	}
	cc := sess.channelCount
	capSamples := (len(out) / cc) * cc
	if capSamples == 0 {
		return sess.statusBits(), 0, nil
	}

	if samplesPerChannel == -1 {
		n := sess.read(out[:capSamples])
		return sess.statusBits(), n / cc, nil
	}

	target := samplesPerChannel * cc
	if target > capSamples {
		target = capSamples
	}

	var deadline time.Time
	hasDeadline := timeoutS > 0
	if hasDeadline {
		deadline = time.Now().Add(time.Duration(timeoutS * float64(time.Second)))
	}

	total := 0
	for total < target {
		if sess.available() >= cc {
			n := sess.read(out[total:target])
			total += n
			continue
		}

		st := sess.statusBits()
		if st&StatusHWOverrun != 0 || st&StatusBufferOverrun != 0 {
			return st, total / cc, nil
		}
		if !sess.scanRunning.Load() && sess.available() == 0 {
			return sess.statusBits(), total / cc, nil
		}
		if timeoutS == 0 {
			return sess.statusBits(), total / cc, nil
		}
		if hasDeadline && !time.Now().Before(deadline) {
			return sess.statusBits(), total / cc, newErr("scanRead", Timeout, nil)
		}
		time.Sleep(readPollInterval)
	}
	return sess.statusBits(), total / cc, nil
}

// ScanStatus returns the current status bits and unread depth without
// consuming any samples.
func (r *Registry) ScanStatus(addr int) (Status, int, error) {
	d, err := r.get(addr)
	if err != nil {
		return 0, 0, err
	}
	sess := d.session.Load()
	if sess == nil {
		return 0, 0, newErr("scanStatus", ResourceUnavail, nil)
	}
	return sess.statusBits(), sess.available() / sess.channelCount, nil
}

// ScanBufferSize is a read-only query of the ring buffer's total capacity.
func (r *Registry) ScanBufferSize(addr int) (int, error) {
	d, err := r.get(addr)
	if err != nil {
		return 0, err
	}
	sess := d.session.Load()
	if sess == nil {
		return 0, newErr("scanBufferSize", ResourceUnavail, nil)
	}
	return sess.bufferSize, nil
}

// ScanChannelCount is a read-only query of the active channel count.
func (r *Registry) ScanChannelCount(addr int) (int, error) {
	d, err := r.get(addr)
	if err != nil {
		return 0, err
	}
	sess := d.session.Load()
	if sess == nil {
		return 0, newErr("scanChannelCount", ResourceUnavail, nil)
	}
	return sess.channelCount, nil
}
