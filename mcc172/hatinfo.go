package mcc172

import (
	"fmt"
	"os"
	"path/filepath"
)

// HatInfo is the board-discovery/EEPROM contract from spec.md §1/§6
// (hat_info): given a board address, return the product id the EEPROM
// claims and the raw factory-calibration JSON blob. It is an external
// collaborator — the core only ever calls through this interface, the same
// way the teacher's lepton.New takes an i2c.Bus instead of opening
// /dev/i2c-1 itself.
type HatInfo interface {
	Read(addr int) (productID uint16, calibrationBlob []byte, err error)
}

// sysfsHatInfo is a default HatInfo reading the Raspberry Pi HAT EEPROM
// image exposed under the device tree, one calibration blob file per
// stacked board address.
type sysfsHatInfo struct {
	root string // e.g. "/proc/device-tree/hat", overridable for testing.
}

func newSysfsHatInfo(root string) *sysfsHatInfo {
	if root == "" {
		root = "/proc/device-tree/hat"
	}
	return &sysfsHatInfo{root: root}
}

// NewSysfsHatInfo is the exported constructor CLI binaries use to wire up
// the default board-discovery/EEPROM reader.
func NewSysfsHatInfo(root string) HatInfo {
	return newSysfsHatInfo(root)
}

func (h *sysfsHatInfo) Read(addr int) (uint16, []byte, error) {
	productPath := filepath.Join(h.root, fmt.Sprintf("board%d", addr), "product_id")
	blobPath := filepath.Join(h.root, fmt.Sprintf("board%d", addr), "custom.json")

	pidBytes, err := os.ReadFile(productPath)
	if err != nil {
		return 0, nil, err
	}
	var pid uint16
	if _, err := fmt.Sscanf(string(pidBytes), "0x%x", &pid); err != nil {
		if _, err := fmt.Sscanf(string(pidBytes), "%d", &pid); err != nil {
			return 0, nil, fmt.Errorf("hatinfo: unparseable product id %q", pidBytes)
		}
	}
	blob, err := os.ReadFile(blobPath)
	if err != nil {
		return pid, nil, err
	}
	return pid, blob, nil
}
