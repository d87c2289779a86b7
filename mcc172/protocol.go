package mcc172

import "time"

// Command is a framed SPI command byte, per the wire protocol in frame.go.
type Command byte

// All the commands the board understands. GET/SET style register access is
// not used by this board family; every operation is its own command.
const (
	CmdAinScanStart  Command = 0x11
	CmdAinScanStatus Command = 0x12
	CmdAinScanData   Command = 0x13
	CmdAinScanStop   Command = 0x14
	CmdAinClockRead  Command = 0x15
	CmdAinClockWrite Command = 0x16
	CmdTriggerRead   Command = 0x17
	CmdTriggerWrite  Command = 0x18

	CmdBlink        Command = 0x40
	CmdId           Command = 0x41
	CmdReset        Command = 0x42
	CmdIepeRead     Command = 0x43
	CmdIepeWrite    Command = 0x44
	CmdTestSigRead  Command = 0x45
	CmdTestSigWrite Command = 0x46

	cmdReadReply Command = 0x7F
)

// Firmware status codes, returned in the reply header's status byte.
const (
	statusSuccess      = 0x00
	statusBadParameter = 0x02
	statusBusy         = 0x03
	statusTimeout      = 0x05
	// Everything else, including values FLIR/MCC reserved but never
	// documented, maps to Undefined. No silent fallthrough.
)

// MCC_172 is the product id returned by the ID command (CmdId) and checked
// against the value read back from the board and from the HAT EEPROM.
const productIDMCC172 = 0x0175

// DeviceInfo describes constants common to every MCC 172 board.
type DeviceInfo struct {
	NumChannels  int
	MinCode      int32
	MaxCode      int32
	MinVoltage   float64
	MaxVoltage   float64
	LSBSize      float64
	MaxScanRate  float64
	MaxSampleCap int
}

// Info returns the process-wide constant device description.
func Info() DeviceInfo {
	return deviceInfo
}

const (
	// NumChannels is the number of analog input channels on the board.
	NumChannels = 2
	// MaxHats is the maximum number of stacked boards supported on one bus.
	MaxHats = 8
	// fullScaleVolts is the amplitude of the bipolar input range, in volts.
	fullScaleVolts = 5.0
	// lsbSize is 10V full range over 2^24 codes.
	lsbSize = 10.0 / 16777216.0
	// maxScanRate is the board's fixed sample clock.
	maxScanRate = 51200.0
	// maxBufferSamples bounds the ring buffer per spec (16 Mi samples).
	maxBufferSamples = 16 * 1024 * 1024
	// maxSamplesRead bounds the read threshold and the per-poll read count;
	// a single AINSCANDATA burst is further limited by maxPayload.
	maxSamplesRead = 1000
)

var deviceInfo = DeviceInfo{
	NumChannels:  NumChannels,
	MinCode:      -8388608,
	MaxCode:      8388607,
	MinVoltage:   -fullScaleVolts,
	MaxVoltage:   fullScaleVolts - lsbSize,
	LSBSize:      lsbSize,
	MaxScanRate:  maxScanRate,
	MaxSampleCap: maxBufferSamples,
}

// Options is a bitset accepted by ScanStart.
type Options uint32

const (
	OptsDefault      Options = 0
	OptsContinuous   Options = 1 << 0
	OptsExtTrigger   Options = 1 << 1
	OptsNoScaleData  Options = 1 << 2
	OptsNoCalibrData Options = 1 << 3
	// optsTrigEnable is OR'd into the channel mask sent to the device, never
	// exposed to callers directly.
	optsTrigEnable = 1 << 7
)

// Status is a bitset returned by ScanStatus and ScanRead.
type Status uint32

const (
	StatusRunning      Status = 1 << 0
	StatusTriggered    Status = 1 << 1
	StatusHWOverrun    Status = 1 << 2
	StatusBufferOverrun Status = 1 << 3
)

// TriggerSource selects which of the board's trigger inputs is armed.
type TriggerSource uint8

const (
	TriggerSourceExternal TriggerSource = 0
	TriggerSourceChannel0 TriggerSource = 1
	TriggerSourceChannel1 TriggerSource = 2
)

// TriggerMode selects the edge/level that arms a scan.
type TriggerMode uint8

const (
	TriggerRising  TriggerMode = 0
	TriggerFalling TriggerMode = 1
	TriggerHigh    TriggerMode = 2
	TriggerLow     TriggerMode = 3
)

// clockSource as reported/configured by AinClockRead/Write.
const (
	ClockSourceLocal  = 0
	ClockSourceSlaved = 1
)

// Producer sleep constants (plain integers, in microseconds, per spec.md
// §4.F) and the transaction and bus-lock timeouts (time.Duration values).
const (
	minSleepUS = 200
	trigSleepUS = 1000
	statusPollTimeout  = time.Millisecond
	statusPollRetry    = 20 * time.Microsecond
	dataPollTimeout    = 500 * time.Millisecond
	dataPollRetry      = 50 * time.Microsecond
	lockTimeout        = 5 * time.Second
)
