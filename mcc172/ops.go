package mcc172

import (
	"github.com/mccdaq/mcc172/internal/wire"
)

// BlinkLED flashes the board's status LED count times.
func (r *Registry) BlinkLED(addr int, count byte) error {
	d, err := r.get(addr)
	if err != nil {
		return err
	}
	_, err = d.bus.transfer(addr, CmdBlink, []byte{count}, 0, statusPollTimeout, statusPollRetry)
	return err
}

// FirmwareVersion returns the cached version read at open time.
func (r *Registry) FirmwareVersion(addr int) (uint16, error) {
	d, err := r.get(addr)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fwVersion, nil
}

// Reset issues a soft reset command to the board.
func (r *Registry) Reset(addr int) error {
	d, err := r.get(addr)
	if err != nil {
		return err
	}
	_, err = d.bus.transfer(addr, CmdReset, nil, 0, statusPollTimeout, statusPollRetry)
	return err
}

// Serial returns the cached factory serial number.
func (r *Registry) Serial(addr int) (string, error) {
	d, err := r.get(addr)
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cal.Serial, nil
}

// CalibrationDate returns the cached factory calibration date.
func (r *Registry) CalibrationDate(addr int) (string, error) {
	d, err := r.get(addr)
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cal.CalibrationDate, nil
}

// CalibrationCoefficientRead returns the cached slope/offset for channel.
func (r *Registry) CalibrationCoefficientRead(addr, channel int) (slope, offset float64, err error) {
	d, e := r.get(addr)
	if e != nil {
		return 0, 0, e
	}
	if channel < 0 || channel >= NumChannels {
		return 0, 0, newErr("calibrationCoefficientRead", BadParameter, nil)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cal.Slopes[channel], d.cal.Offsets[channel], nil
}

// CalibrationCoefficientWrite overwrites the cached slope/offset for
// channel. Rejected with Busy while a scan is active, per spec.md §4.D/§7.
func (r *Registry) CalibrationCoefficientWrite(addr, channel int, slope, offset float64) error {
	d, err := r.get(addr)
	if err != nil {
		return err
	}
	if channel < 0 || channel >= NumChannels {
		return newErr("calibrationCoefficientWrite", BadParameter, nil)
	}
	if d.hasSession() {
		return newErr("calibrationCoefficientWrite", Busy, nil)
	}
	d.mu.Lock()
	d.cal.Slopes[channel] = slope
	d.cal.Offsets[channel] = offset
	d.mu.Unlock()
	return nil
}

// IEPEConfigRead reports whether IEPE excitation is enabled on channel.
func (r *Registry) IEPEConfigRead(addr, channel int) (bool, error) {
	d, err := r.get(addr)
	if err != nil {
		return false, err
	}
	payload, err := d.bus.transfer(addr, CmdIepeRead, []byte{byte(channel)}, 1, statusPollTimeout, statusPollRetry)
	if err != nil {
		return false, err
	}
	return len(payload) > 0 && payload[0] != 0, nil
}

// IEPEConfigWrite enables or disables IEPE excitation on channel. Rejected
// with Busy while a scan is active.
func (r *Registry) IEPEConfigWrite(addr, channel int, enable bool) error {
	d, err := r.get(addr)
	if err != nil {
		return err
	}
	if d.hasSession() {
		return newErr("iepeConfigWrite", Busy, nil)
	}
	var v byte
	if enable {
		v = 1
	}
	_, err = d.bus.transfer(addr, CmdIepeWrite, []byte{byte(channel), v}, 0, statusPollTimeout, statusPollRetry)
	return err
}

// AinClockConfigRead reports the current clock source, rate, and sync
// status.
func (r *Registry) AinClockConfigRead(addr int) (source uint8, rate float64, synced bool, err error) {
	d, e := r.get(addr)
	if e != nil {
		return 0, 0, false, e
	}
	payload, e := d.bus.transfer(addr, CmdAinClockRead, nil, 4, statusPollTimeout, statusPollRetry)
	if e != nil {
		return 0, 0, false, e
	}
	src, divisor, sync, e := wire.DecodeClockConfig(payload)
	if e != nil {
		return 0, 0, false, newErr("ainClockConfigRead", Undefined, e)
	}
	if divisor == 0 {
		divisor = 1
	}
	return src, maxScanRate / float64(divisor), sync, nil
}

// AinClockConfigWrite sets the sample rate by computing the integer
// divisor the device contract expects — testable property 9.
func (r *Registry) AinClockConfigWrite(addr int, source uint8, rate float64) error {
	d, err := r.get(addr)
	if err != nil {
		return err
	}
	if d.hasSession() {
		return newErr("ainClockConfigWrite", Busy, nil)
	}
	if rate <= 0 {
		return newErr("ainClockConfigWrite", BadParameter, nil)
	}
	divisor := clampDivisor(roundDivisor(maxScanRate / rate))
	_, err = d.bus.transfer(addr, CmdAinClockWrite, wire.EncodeClockConfig(source, divisor), 0, statusPollTimeout, statusPollRetry)
	return err
}

func roundDivisor(d float64) uint16 {
	if d >= 65535 {
		return 65535
	}
	return uint16(d + 0.5)
}

func clampDivisor(d uint16) uint16 {
	if d < 1 {
		return 1
	}
	if d > 256 {
		return 256
	}
	return d
}

// TriggerConfig arms the trigger source/mode for the next scan_start.
// Rejected with Busy while a scan is active.
func (r *Registry) TriggerConfig(addr int, source TriggerSource, mode TriggerMode) error {
	d, err := r.get(addr)
	if err != nil {
		return err
	}
	if d.hasSession() {
		return newErr("triggerConfig", Busy, nil)
	}
	_, err = d.bus.transfer(addr, CmdTriggerWrite, []byte{byte(source), byte(mode)}, 0, statusPollTimeout, statusPollRetry)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.trigSource = source
	d.trigMode = mode
	d.mu.Unlock()
	return nil
}

// TestSignalsRead reports the board's internal clock/sync/trigger test
// bits, used to validate the shared-clock daisy chain across stacked
// boards without starting a real scan.
func (r *Registry) TestSignalsRead(addr int) (clock, sync, trigger bool, err error) {
	d, e := r.get(addr)
	if e != nil {
		return false, false, false, e
	}
	payload, e := d.bus.transfer(addr, CmdTestSigRead, nil, 1, statusPollTimeout, statusPollRetry)
	if e != nil {
		return false, false, false, e
	}
	if len(payload) == 0 {
		return false, false, false, newErr("testSignalsRead", Undefined, nil)
	}
	b := payload[0]
	return b&1 != 0, b&2 != 0, b&4 != 0, nil
}

// TestSignalsWrite forces the board's internal clock/sync/trigger test
// bits. Rejected with Busy while a scan is active.
func (r *Registry) TestSignalsWrite(addr int, clock, sync, trigger bool) error {
	d, err := r.get(addr)
	if err != nil {
		return err
	}
	if d.hasSession() {
		return newErr("testSignalsWrite", Busy, nil)
	}
	var b byte
	if clock {
		b |= 1
	}
	if sync {
		b |= 2
	}
	if trigger {
		b |= 4
	}
	_, err = d.bus.transfer(addr, CmdTestSigWrite, []byte{b}, 0, statusPollTimeout, statusPollRetry)
	return err
}
