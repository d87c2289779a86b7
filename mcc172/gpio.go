package mcc172

import (
	"time"

	"periph.io/x/periph/conn/gpio"
)

// resetPin and irqPin are narrowed down to just the methods this package
// calls. Any periph.io/x/periph/conn/gpio.PinOut/PinIn satisfies them
// structurally, so real hardware pins plug in unchanged; tests can supply
// a much smaller fake than the full gpio.PinIO method set would require.
type resetPin interface {
	Out(l gpio.Level) error
}

type irqPin interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
}

// ResetIRQ bundles the two GPIO lines the bootloader transport (§4.H) and
// open() (§4.D) need: RESET (driven) and IRQ (sensed). Both are external
// collaborators per spec.md §1/§6 — this package depends only on periph's
// gpio.Level/Pull/Edge vocabulary, the same interfaces the teacher's
// lepton.New takes a gpio.PinOut chip-select from, never on a concrete
// host backend.
type ResetIRQ struct {
	Reset resetPin
	IRQ   irqPin
}

// initGPIO drives RESET low as an output and configures IRQ as an input,
// per spec.md §4.D.
func (r ResetIRQ) initGPIO() error {
	if r.Reset == nil || r.IRQ == nil {
		return nil // optional: some deployments wire RESET/IRQ only for bootloader use.
	}
	if err := r.Reset.Out(gpio.Low); err != nil {
		return err
	}
	return r.IRQ.In(gpio.PullNoChange, gpio.NoEdge)
}

// irqHigh reports whether IRQ currently reads high (device busy/not ready).
func (r ResetIRQ) irqHigh() bool {
	return r.IRQ.Read() == gpio.High
}

// pulseReset asserts RESET high for 1ms, drops it low, then waits 10ms, the
// handshake spec.md §4.H describes.
func (r ResetIRQ) pulseReset() error {
	if err := r.Reset.Out(gpio.High); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)
	if err := r.Reset.Out(gpio.Low); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	return nil
}

// gpioAddressSelector is a default AddressSelector driving three GPIO
// output lines as a binary chip-select demultiplexer, enough to address
// MAX_HATS=8 stacked boards on one physical bus.
type gpioAddressSelector struct {
	lines [3]resetPin
}

// NewGPIOAddressSelector builds the default chip-select demultiplexer from
// three already-configured GPIO output lines.
func NewGPIOAddressSelector(a0, a1, a2 resetPin) *gpioAddressSelector {
	return &gpioAddressSelector{lines: [3]resetPin{a0, a1, a2}}
}

func (g *gpioAddressSelector) SetAddress(addr int) error {
	if addr < 0 || addr >= MaxHats {
		return newErr("setAddress", BadParameter, nil)
	}
	for i, line := range g.lines {
		level := gpio.Low
		if addr&(1<<uint(i)) != 0 {
			level = gpio.High
		}
		if err := line.Out(level); err != nil {
			return err
		}
	}
	return nil
}
