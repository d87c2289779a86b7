package mcc172

import "time"

// EnterBootloader implements spec.md §4.H: acquire the SPI lock, then
// pulse RESET while IRQ reads high, up to 10 times; if IRQ is still high
// afterwards, fall back to polling it directly for up to 100ms before
// giving up with Timeout.
func (r *Registry) EnterBootloader(addr int) error {
	if err := obtainLock(r.bus.locker); err != nil {
		return err
	}
	defer r.bus.locker.Unlock()

	if err := r.bus.addr.SetAddress(addr); err != nil {
		return newErr("enterBootloader", Undefined, err)
	}

	for i := 0; i < 10 && r.gpio.irqHigh(); i++ {
		if err := r.gpio.pulseReset(); err != nil {
			return newErr("enterBootloader", Undefined, err)
		}
	}
	if !r.gpio.irqHigh() {
		return nil
	}

	deadline := time.Now().Add(100 * time.Millisecond)
	for r.gpio.irqHigh() {
		if time.Now().After(deadline) {
			return newErr("enterBootloader", Timeout, nil)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// BLReady reports whether IRQ is low, meaning the device is ready for the
// next firmware block.
func (r *Registry) BLReady() bool {
	return !r.gpio.irqHigh()
}

// BLTransfer performs an opaque full-duplex SPI transfer under the bus
// lock with no framing applied, per spec.md §4.H — used only by the
// firmware-update transport, never by the command/response protocol.
func (r *Registry) BLTransfer(addr int, tx []byte) ([]byte, error) {
	if err := obtainLock(r.bus.locker); err != nil {
		return nil, err
	}
	defer r.bus.locker.Unlock()

	if err := r.bus.addr.SetAddress(addr); err != nil {
		return nil, newErr("blTransfer", Undefined, err)
	}
	rx, err := r.bus.transport.Transfer(tx)
	if err != nil {
		return nil, newErr("blTransfer", Undefined, err)
	}
	return rx, nil
}
