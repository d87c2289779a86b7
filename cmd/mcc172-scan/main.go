// mcc172-scan runs a finite or continuous acquisition and prints the
// samples it reads, one line per channel-interleaved group.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/mccdaq/mcc172/mcc172"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

func mainImpl() error {
	addr := flag.Int("addr", 0, "board address (0..7)")
	spiPath := flag.String("spi", "/dev/spidev0.0", "spidev node")
	lockPath := flag.String("lock", "/var/lock/mcc172.lock", "cross-process lock file")
	rate := flag.Float64("rate", 1000, "sample rate in S/s")
	mask := flag.Int("mask", 0x3, "channel mask")
	count := flag.Int("count", 1000, "samples per channel; 0 means continuous")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	var logOut io.Writer = io.Discard
	if *verbose {
		logOut = os.Stderr
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

	reg := mcc172.NewRegistry(transport, locker, addrSel, hatInfo, mcc172.ResetIRQ{}, log.New(logOut, "mcc172: ", log.Lmicroseconds))

	if err := reg.Open(*addr); err != nil {
		return err
	}
	defer reg.Close(*addr)

	if err := reg.AinClockConfigWrite(*addr, mcc172.ClockSourceLocal, *rate); err != nil {
		return err
	}

	opts := mcc172.OptsDefault
	if *count == 0 {
		opts |= mcc172.OptsContinuous
	}
	if err := reg.ScanStart(*addr, byte(*mask), *count, opts); err != nil {
		return err
	}
	defer reg.ScanCleanup(*addr)

	channels, err := reg.ScanChannelCount(*addr)
	if err != nil {
		return err
	}
	buf := make([]float64, channels*1000)
	for {
		status, n, err := reg.ScanRead(*addr, 1000, 1.0, buf)
		for i := 0; i < n; i++ {
			row := buf[i*channels : (i+1)*channels]
			fmt.Println(row)
		}
		if err != nil {
			if errors.Is(err, mcc172.Timeout) && status&mcc172.StatusRunning != 0 {
				continue
			}
			return err
		}
		if status&mcc172.StatusRunning == 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nmcc172-scan: %s.\n", err)
		os.Exit(1)
	}
}
