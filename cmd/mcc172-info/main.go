// mcc172-info prints the cached identity and clock configuration of one
// board without starting a scan.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mccdaq/mcc172/mcc172"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

func mainImpl() error {
	addr := flag.Int("addr", 0, "board address (0..7)")
	spiPath := flag.String("spi", "/dev/spidev0.0", "spidev node")
	lockPath := flag.String("lock", "/var/lock/mcc172.lock", "cross-process lock file")
	flag.Parse()

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

	reg := mcc172.NewRegistry(transport, locker, addrSel, hatInfo, mcc172.ResetIRQ{}, log.New(os.Stderr, "mcc172: ", log.Lmicroseconds))

	if err := reg.Open(*addr); err != nil {
		return err
	}
	defer reg.Close(*addr)

	fw, err := reg.FirmwareVersion(*addr)
	if err != nil {
		return err
	}
	serial, err := reg.Serial(*addr)
	if err != nil {
		return err
	}
	calDate, err := reg.CalibrationDate(*addr)
	if err != nil {
		return err
	}
	_, rate, synced, err := reg.AinClockConfigRead(*addr)
	if err != nil {
		return err
	}

	fmt.Printf("address:           %d\n", *addr)
	fmt.Printf("firmware version:  0x%04x\n", fw)
	fmt.Printf("serial:            %s\n", serial)
	fmt.Printf("calibration date:  %s\n", calDate)
	fmt.Printf("sample rate:       %.1f S/s (synced=%t)\n", rate, synced)
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nmcc172-info: %s.\n", err)
		os.Exit(1)
	}
}
