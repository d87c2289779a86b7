package mcc172

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// spiPort is a raw ioctl-based handle to a /dev/spidevX.Y node. It plays
// the role of the teacher's SPI type (lepton/low.go): open the device node
// once, then re-assert mode/bits/speed on demand since the bus may be
// shared with other boards' drivers (spec.md §4.B, §5).
//
// Unlike the teacher, ioctls go through golang.org/x/sys/unix instead of
// hand-rolled syscall.Syscall + magic numbers, matching how the rest of
// the retrieval pack talks to Linux ioctls.
type spiPort struct {
	closed int32
	path   string
	mu     sync.Mutex
	f      *os.File
	mode   byte // last mode asserted; re-checked on every transaction.
}

// spidev ioctl op codes, from linux/spi/spidev.h.
const (
	spiIOCWrMode        = 0x40016B01
	spiIOCRdMode        = 0x80016B01
	spiIOCWrBitsPerWord = 0x40016B03
	spiIOCWrMaxSpeedHz  = 0x40046B04
)

// spiIOCMessage(n) is SPI_IOC_MESSAGE(n), sized for a single spiIOCTransfer.
const spiIOCMessage1 = 0x40206B00 // size field (bits 16+) already holds 32, one transfer

const spiMsgSizeShift = 16

// spiIOCTransfer mirrors struct spi_ioc_transfer from linux/spi/spidev.h.
type spiIOCTransfer struct {
	txBuf       uint64
	rxBuf       uint64
	length      uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNBits     uint8
	rxNBits     uint8
	pad         uint16
}

// openSPIPort opens and configures a spidev node for 8-bit words at the
// fixed spiClockHz. The mode is left unset here; mode is re-asserted on
// every transaction by ensureMode, per spec.md §4.B.
func openSPIPort(path string) (*spiPort, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	s := &spiPort{path: path, f: f, mode: 0xFF} // invalid sentinel forces the first ensureMode to set it.
	if err := s.ioctlSetU32(spiIOCWrBitsPerWord, 8); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.ioctlSetU32(spiIOCWrMaxSpeedHz, spiClockHz); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// OpenSPI opens the spidev node at path and returns it as a Transport,
// ready to hand to NewRegistry. It is the production counterpart to
// mcc172test's fake Transport.
func OpenSPI(path string) (Transport, error) {
	return openSPIPort(path)
}

func (s *spiPort) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// ensureMode re-asserts the SPI mode if it doesn't already read back as
// mode, since another driver sharing the bus may have changed it since our
// last transaction (spec.md §4.B step 3, §5).
func (s *spiPort) ensureMode(mode byte) error {
	if atomic.LoadInt32(&s.closed) != 0 {
		return fmt.Errorf("spi: port closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.ioctlGetU8(spiIOCRdMode)
	if err != nil {
		return err
	}
	if current == mode {
		s.mode = mode
		return nil
	}
	if err := s.ioctlSetU8(spiIOCWrMode, mode); err != nil {
		return err
	}
	s.mode = mode
	return nil
}

// transfer performs a single full-duplex exchange: len(tx) bytes are
// clocked out while an equal number of bytes are clocked in.
func (s *spiPort) transfer(tx []byte) ([]byte, error) {
	if atomic.LoadInt32(&s.closed) != 0 {
		return nil, fmt.Errorf("spi: port closed")
	}
	rx := make([]byte, len(tx))
	if len(tx) == 0 {
		return rx, nil
	}
	xfer := spiIOCTransfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&tx[0]))),
		rxBuf:       uint64(uintptr(unsafe.Pointer(&rx[0]))),
		length:      uint32(len(tx)),
		speedHz:     spiClockHz,
		bitsPerWord: 8,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ioctlTransfer(&xfer); err != nil {
		return nil, err
	}
	return rx, nil
}

func (s *spiPort) ioctlSetU32(op uintptr, v uint32) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(), op, uintptr(unsafe.Pointer(&v)))
	if errno != 0 {
		return fmt.Errorf("spi ioctl 0x%x: %s", op, errno)
	}
	return nil
}

func (s *spiPort) ioctlSetU8(op uintptr, v byte) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(), op, uintptr(unsafe.Pointer(&v)))
	if errno != 0 {
		return fmt.Errorf("spi ioctl 0x%x: %s", op, errno)
	}
	return nil
}

func (s *spiPort) ioctlGetU8(op uintptr) (byte, error) {
	var v byte
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(), op, uintptr(unsafe.Pointer(&v)))
	if errno != 0 {
		return 0, fmt.Errorf("spi ioctl 0x%x: %s", op, errno)
	}
	return v, nil
}

func (s *spiPort) ioctlTransfer(xfer *spiIOCTransfer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(), spiIOCMessage1, uintptr(unsafe.Pointer(xfer)))
	if errno != 0 {
		return fmt.Errorf("spi transfer ioctl: %s", errno)
	}
	return nil
}

// spiClockHz is the fixed bus clock mandated by spec.md §4.B.
const spiClockHz = 20_000_000

// spiMode1 is CPOL=0, CPHA=1, per spec.md §4.B step 3.
const spiMode1 = 1
