package mcc172

import (
	"time"
)

// Transport is the raw full-duplex SPI primitive the transaction layer is
// built on. spiPort (spi_linux.go) implements it against a real spidev
// node; mcc172test substitutes a fake for tests.
type Transport interface {
	// EnsureMode re-asserts the given SPI mode, since the bus may be shared.
	EnsureMode(mode byte) error
	// Transfer clocks out tx and returns an equal-length slice clocked in.
	Transfer(tx []byte) ([]byte, error)
	Close() error
}

func (s *spiPort) EnsureMode(mode byte) error { return s.ensureMode(mode) }
func (s *spiPort) Transfer(tx []byte) ([]byte, error) { return s.transfer(tx) }

// bus bundles the shared resources every transaction needs: the physical
// transport, the cross-process lock, and the chip-select address mux. One
// bus is shared by every board address on the stack, per spec.md §5.
type bus struct {
	transport Transport
	locker    Locker
	addr      AddressSelector
}

// transfer implements spec.md §4.B end to end: validate, lock, select,
// re-assert mode, send the command, ready-poll, read the reply body, parse
// it, and map the firmware status to an ErrorKind.
func (b *bus) transfer(addr int, cmd Command, txPayload []byte, rxPayloadLen int, replyTimeout, retryInterval time.Duration) ([]byte, error) {
	if addr < 0 || addr >= MaxHats {
		return nil, newErr("transfer", BadParameter, nil)
	}
	if len(txPayload) > maxPayload || rxPayloadLen < 0 || rxPayloadLen > maxPayload {
		return nil, newErr("transfer", BadParameter, nil)
	}

	frame, err := encode(cmd, txPayload)
	if err != nil {
		return nil, err
	}

	if err := obtainLock(b.locker); err != nil {
		return nil, err
	}
	defer b.locker.Unlock()

	if err := b.addr.SetAddress(addr); err != nil {
		return nil, newErr("transfer", Undefined, err)
	}

	if err := b.transport.EnsureMode(spiMode1); err != nil {
		return nil, newErr("transfer", Undefined, err)
	}

	if _, err := b.transport.Transfer(frame); err != nil {
		return nil, newErr("transfer", Undefined, err)
	}

	// Ready-poll phase: clock a dummy byte until a non-zero reply signals
	// the device is ready. start is captured immediately before the loop
	// per spec.md §9's resolution of the start_time open question.
	start := time.Now()
	var ready byte
	for {
		rx, err := b.transport.Transfer([]byte{0x00})
		if err != nil {
			return nil, newErr("transfer", Undefined, err)
		}
		if rx[0] != 0 {
			ready = rx[0]
			break
		}
		if time.Since(start) > replyTimeout {
			return nil, newErr("transfer", Timeout, nil)
		}
		time.Sleep(retryInterval)
	}

	// Body read phase: the full inbound frame is header_size +
	// rxPayloadLen bytes including the start byte already consumed by the
	// ready-poll above, so splice in exactly that many more.
	total := inHeaderSize + rxPayloadLen
	body := make([]byte, 0, total)
	body = append(body, ready)
	const bodyRetryBackoff = 300 * time.Microsecond
	for len(body) < total {
		need := total - len(body)
		rx, err := b.transport.Transfer(make([]byte, need))
		if err != nil {
			if time.Since(start) > replyTimeout {
				return nil, newErr("transfer", Timeout, err)
			}
			time.Sleep(bodyRetryBackoff)
			continue
		}
		body = append(body, rx...)
	}

	found, gotCmd, status, payload, _ := scan(body)
	if !found {
		return nil, newErr("transfer", Timeout, nil)
	}
	if Command(gotCmd) != cmd {
		return nil, newErr("transfer", BadParameter, nil)
	}
	kind := mapStatus(status)
	if kind != Success {
		return nil, newErr("transfer", kind, nil)
	}
	return payload, nil
}
