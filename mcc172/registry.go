package mcc172

import (
	"log"
	"sync"
)

// Registry is the process-wide, address-indexed device table of spec.md
// §4.D/§9 ("Global registry of devices"). It is re-expressed here as a
// value type with explicit construction rather than a package-level
// global, so a process can run more than one independent stack (e.g. in
// tests) without interference — callers remain responsible for not calling
// Open/Close for the same address concurrently, per spec.md §5.
type Registry struct {
	mu      sync.Mutex
	devices [MaxHats]*Device

	bus     *bus
	hatInfo HatInfo
	gpio    ResetIRQ
	logger  *log.Logger
}

// NewRegistry builds an empty registry over the given shared collaborators.
// gpio is the single RESET/IRQ pair shared by every stacked board, per the
// daqhats hardware convention of one reset line per physical stack.
func NewRegistry(transport Transport, locker Locker, addrSel AddressSelector, hatInfo HatInfo, gpio ResetIRQ, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		bus:     &bus{transport: transport, locker: locker, addr: addrSel},
		hatInfo: hatInfo,
		gpio:    gpio,
		logger:  logger,
	}
}

// Open implements spec.md §4.D open(addr): allocate on first call, else
// just bump the reference count.
func (r *Registry) Open(addr int) error {
	if addr < 0 || addr >= MaxHats {
		return newErr("open", BadParameter, nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if d := r.devices[addr]; d != nil {
		d.mu.Lock()
		d.refCount++
		d.mu.Unlock()
		return nil
	}

	d, err := openDevice(addr, r.bus, r.gpio, r.hatInfo, r.logger, false)
	if err != nil {
		return err
	}
	d.refCount = 1
	r.devices[addr] = d
	return nil
}

// OpenForUpdate is identical to Open except it skips the main-firmware ID
// handshake — the target may be unprogrammed — while still fetching the
// EEPROM's product id and calibration the same way Open does, per
// spec.md §4.H.
func (r *Registry) OpenForUpdate(addr int) error {
	if addr < 0 || addr >= MaxHats {
		return newErr("openForUpdate", BadParameter, nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if d := r.devices[addr]; d != nil {
		d.mu.Lock()
		d.refCount++
		d.mu.Unlock()
		return nil
	}

	d, err := openDevice(addr, r.bus, r.gpio, r.hatInfo, r.logger, true)
	if err != nil {
		return err
	}
	d.refCount = 1
	r.devices[addr] = d
	return nil
}

// Close implements spec.md §4.D close(addr): decrement, and on reaching
// zero, run scan_cleanup before freeing the record. Calling Close on an
// address that is not open (refcount already zero, or never opened) is
// BadParameter, never a double free — testable property 8.
func (r *Registry) Close(addr int) error {
	if addr < 0 || addr >= MaxHats {
		return newErr("close", BadParameter, nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.devices[addr]
	if d == nil {
		return newErr("close", BadParameter, nil)
	}
	d.mu.Lock()
	d.refCount--
	remaining := d.refCount
	d.mu.Unlock()
	if remaining > 0 {
		return nil
	}

	scanCleanup(d)
	r.devices[addr] = nil
	return nil
}

// IsOpen reports whether addr currently has at least one open handle.
func (r *Registry) IsOpen(addr int) bool {
	if addr < 0 || addr >= MaxHats {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.devices[addr] != nil
}

// get fetches the Device for addr, or ResourceUnavail if no handle is open,
// per spec.md §7 ("no session exists for query" maps the same way for any
// query needing an open handle).
func (r *Registry) get(addr int) (*Device, error) {
	if addr < 0 || addr >= MaxHats {
		return nil, newErr("get", BadParameter, nil)
	}
	r.mu.Lock()
	d := r.devices[addr]
	r.mu.Unlock()
	if d == nil {
		return nil, newErr("get", ResourceUnavail, nil)
	}
	return d, nil
}
