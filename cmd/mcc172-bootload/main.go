// mcc172-bootload uploads a firmware image to a board through the
// bootloader transport, bypassing the framed command/response protocol
// entirely.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mccdaq/mcc172/mcc172"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

const blockSize = 256

func mainImpl() error {
	addr := flag.Int("addr", 0, "board address (0..7)")
	spiPath := flag.String("spi", "/dev/spidev0.0", "spidev node")
	lockPath := flag.String("lock", "/var/lock/mcc172.lock", "cross-process lock file")
	resetName := flag.String("reset-gpio", "GPIO26", "RESET line name")
	irqName := flag.String("irq-gpio", "GPIO21", "IRQ line name")
	flag.Parse()
	if flag.NArg() != 1 {
		return errors.New("supply path to firmware image")
	}

	if _, err := host.Init(); err != nil {
		return err
	}

	transport, err := mcc172.OpenSPI(*spiPath)
	if err != nil {
		return err
	}
	locker, err := mcc172.NewFlockLocker(*lockPath)
	if err != nil {
		return err
	}
	a0 := gpioreg.ByName("GPIO5")
	a1 := gpioreg.ByName("GPIO6")
	a2 := gpioreg.ByName("GPIO13")
	addrSel := mcc172.NewGPIOAddressSelector(a0, a1, a2)
	hatInfo := mcc172.NewSysfsHatInfo("")
	gpio := mcc172.ResetIRQ{Reset: gpioreg.ByName(*resetName), IRQ: gpioreg.ByName(*irqName)}

	reg := mcc172.NewRegistry(transport, locker, addrSel, hatInfo, gpio, log.New(os.Stderr, "mcc172: ", log.Lmicroseconds))

	if err := reg.OpenForUpdate(*addr); err != nil {
		return err
	}
	defer reg.Close(*addr)

	if err := reg.EnterBootloader(*addr); err != nil {
		return err
	}

	image, err := os.ReadFile(flag.Args()[0])
	if err != nil {
		return err
	}

	for offset := 0; offset < len(image); offset += blockSize {
		end := offset + blockSize
		if end > len(image) {
			end = len(image)
		}
		block := image[offset:end]
		for !reg.BLReady() {
			time.Sleep(time.Millisecond)
		}
		if _, err := reg.BLTransfer(*addr, block); err != nil {
			return err
		}
		fmt.Printf("\rwrote %d/%d bytes", end, len(image))
	}
	fmt.Println()
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nmcc172-bootload: %s.\n", err)
		os.Exit(1)
	}
}
