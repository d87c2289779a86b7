package mcc172

import (
	"log"
	"sync"
	"sync/atomic"
)

// Device is the per-address record spec.md §3/§4.D describes: reference
// count, cached firmware identity, cached trigger config, calibration, and
// (while a scan is active) the owned ScanSession.
type Device struct {
	addr int
	bus  *bus

	mu       sync.Mutex // guards everything below except session
	refCount int
	fwVersion uint16
	trigSource TriggerSource
	trigMode   TriggerMode
	cal        FactoryData

	session atomic.Pointer[ScanSession]
}

// hasSession reports whether a scan is currently configured, which gates
// the Busy rejection spec.md §3/§4.D/§7 requires on every config mutator.
func (d *Device) hasSession() bool {
	return d.session.Load() != nil
}

// openDevice performs the first-open sequence of spec.md §4.D: GPIO init,
// EEPROM read, calibration parse, and (unless forUpdate is set) a verified
// ID handshake (up to two attempts). It does not touch the registry's
// refcount; callers do that.
//
// forUpdate is set by OpenForUpdate (spec.md §4.H): the EEPROM is a
// separate chip from the firmware being bootloaded, so its product id is
// still verified and its calibration still read the same way, but the
// main-firmware CmdId handshake is skipped entirely since the target may
// be unprogrammed.
func openDevice(addr int, b *bus, gpio ResetIRQ, info HatInfo, logger *log.Logger, forUpdate bool) (*Device, error) {
	if err := gpio.initGPIO(); err != nil {
		return nil, newErr("open", ResourceUnavail, err)
	}

	productID, blob, err := info.Read(addr)
	if err != nil {
		return nil, newErr("open", InvalidDevice, err)
	}
	if productID != productIDMCC172 {
		return nil, newErr("open", InvalidDevice, nil)
	}

	cal := parseFactoryData(logger, blob)

	if forUpdate {
		return &Device{addr: addr, bus: b, cal: cal}, nil
	}

	var fw uint16
	var idErr error
	for attempt := 0; attempt < 2; attempt++ {
		var payload []byte
		payload, idErr = b.transfer(addr, CmdId, nil, 3, statusPollTimeout, statusPollRetry)
		if idErr == nil && len(payload) >= 3 {
			gotID := uint16(payload[0]) | uint16(payload[1])<<8
			if gotID != productIDMCC172 {
				idErr = newErr("open", InvalidDevice, nil)
				continue
			}
			fw = uint16(payload[2])
			idErr = nil
			break
		}
	}
	if idErr != nil {
		return nil, idErr
	}

	return &Device{addr: addr, bus: b, fwVersion: fw, cal: cal}, nil
}
