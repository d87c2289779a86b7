package mcc172_test

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/mccdaq/mcc172/mcc172"
	"github.com/mccdaq/mcc172/mcc172test"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() (*mcc172.Registry, *mcc172test.Board) {
	board := mcc172test.NewBoard()
	transport := mcc172test.NewTransport(board)
	locker := &mcc172test.Locker{}
	addrSel := &mcc172test.AddressSelector{}
	hatInfo := mcc172test.NewHatInfo()
	logger := log.New(io.Discard, "", 0)
	return mcc172.NewRegistry(transport, locker, addrSel, hatInfo, mcc172.ResetIRQ{}, logger), board
}

func TestOpenCloseIdempotence(t *testing.T) {
	reg, _ := newTestRegistry()
	require.NoError(t, reg.Open(0))
	require.True(t, reg.IsOpen(0))
	require.NoError(t, reg.Close(0))
	require.False(t, reg.IsOpen(0))

	// Testable property 8: closing an already-closed address is
	// BadParameter, never a double free.
	err := reg.Close(0)
	require.Error(t, err)
	require.True(t, errors.Is(err, mcc172.BadParameter))
}

func TestOpenRefCounting(t *testing.T) {
	reg, _ := newTestRegistry()
	require.NoError(t, reg.Open(0))
	require.NoError(t, reg.Open(0))
	require.NoError(t, reg.Close(0))
	require.True(t, reg.IsOpen(0), "one handle should remain open")
	require.NoError(t, reg.Close(0))
	require.False(t, reg.IsOpen(0))
}

// Testable property 7: config mutators are rejected with Busy while a scan
// is active.
func TestConfigLockoutDuringScan(t *testing.T) {
	reg, _ := newTestRegistry()
	require.NoError(t, reg.Open(0))
	defer reg.Close(0)

	require.NoError(t, reg.AinClockConfigWrite(0, mcc172.ClockSourceLocal, 1000))
	require.NoError(t, reg.ScanStart(0, 0b11, 10, mcc172.OptsDefault))
	defer reg.ScanCleanup(0)

	err := reg.AinClockConfigWrite(0, mcc172.ClockSourceLocal, 2000)
	require.Error(t, err)
	require.True(t, errors.Is(err, mcc172.Busy))

	err = reg.IEPEConfigWrite(0, 0, true)
	require.True(t, errors.Is(err, mcc172.Busy))

	err = reg.TriggerConfig(0, mcc172.TriggerSourceExternal, mcc172.TriggerRising)
	require.True(t, errors.Is(err, mcc172.Busy))

	err = reg.CalibrationCoefficientWrite(0, 0, 2.0, 0.1)
	require.True(t, errors.Is(err, mcc172.Busy))

	err = reg.ScanStart(0, 0b11, 10, mcc172.OptsDefault)
	require.True(t, errors.Is(err, mcc172.Busy))
}

// Scenario S1: a finite scan delivers exactly the requested number of
// samples per channel and then stops running.
func TestFiniteScanDeliversExactCount(t *testing.T) {
	reg, _ := newTestRegistry()
	require.NoError(t, reg.Open(0))
	defer reg.Close(0)

	require.NoError(t, reg.AinClockConfigWrite(0, mcc172.ClockSourceLocal, 1000))
	require.NoError(t, reg.ScanStart(0, 0b01, 500, mcc172.OptsDefault))
	defer reg.ScanCleanup(0)

	buf := make([]float64, 500)
	status, n, err := reg.ScanRead(0, 500, 5.0, buf)
	require.NoError(t, err)
	require.Equal(t, 500, n)
	require.NotZero(t, status&mcc172.StatusTriggered)
}

// Scenario S3: a stuck ready-poll byte returns Timeout.
func TestTransferTimesOutWhenNeverReady(t *testing.T) {
	reg, board := newTestRegistry()
	require.NoError(t, reg.Open(0))
	defer reg.Close(0)

	board.StuckBusy = true
	err := reg.BlinkLED(0, 1)
	require.Error(t, err)
	require.True(t, errors.Is(err, mcc172.Timeout))
}

// Scenario S4: a reply whose command byte mismatches the sent command
// returns BadParameter.
func TestTransferCommandMismatch(t *testing.T) {
	reg, board := newTestRegistry()
	require.NoError(t, reg.Open(0))
	defer reg.Close(0)
	board.ForceReplyCommand = mcc172.CmdReset

	err := reg.BlinkLED(0, 1)
	require.Error(t, err)
	require.True(t, errors.Is(err, mcc172.BadParameter))
}

// Testable property 5: with channel_mask selecting two channels, the
// samples returned by ScanRead alternate channel tags in ascending channel
// order, channel 0, channel 1, channel 0, channel 1, ... Distinct offsets
// per channel make each sample's origin identifiable after calibration.
func TestScanRoundRobinChannelTagging(t *testing.T) {
	reg, _ := newTestRegistry()
	require.NoError(t, reg.Open(0))
	defer reg.Close(0)

	require.NoError(t, reg.CalibrationCoefficientWrite(0, 0, 1.0, 0))
	require.NoError(t, reg.CalibrationCoefficientWrite(0, 1, 1.0, 1e8))
	require.NoError(t, reg.AinClockConfigWrite(0, mcc172.ClockSourceLocal, 1000))
	require.NoError(t, reg.ScanStart(0, 0b11, 200, mcc172.OptsDefault))
	defer reg.ScanCleanup(0)

	buf := make([]float64, 400)
	_, n, err := reg.ScanRead(0, 200, 5.0, buf)
	require.NoError(t, err)
	require.Equal(t, 200, n)

	for i, v := range buf {
		wantChannel1 := i%2 == 1
		gotChannel1 := v > 10 || v < -10
		require.Equal(t, wantChannel1, gotChannel1, "sample %d = %v", i, v)
	}
}

// Scenario S6: with an external trigger armed, no samples are delivered and
// StatusTriggered stays clear until the board's trigger input fires; once
// it does, samples flow as usual.
func TestExternalTriggerGatesSampleFlow(t *testing.T) {
	reg, board := newTestRegistry()
	require.NoError(t, reg.Open(0))
	defer reg.Close(0)

	require.NoError(t, reg.AinClockConfigWrite(0, mcc172.ClockSourceLocal, 1000))
	require.NoError(t, reg.ScanStart(0, 0b01, 100, mcc172.OptsExtTrigger))
	defer reg.ScanCleanup(0)

	time.Sleep(5 * time.Millisecond)
	buf := make([]float64, 100)
	status, n, err := reg.ScanRead(0, 100, 0, buf)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Zero(t, status&mcc172.StatusTriggered)

	board.FireTrigger()

	status, n, err = reg.ScanRead(0, 100, 5.0, buf)
	require.NoError(t, err)
	require.Equal(t, 100, n)
	require.NotZero(t, status&mcc172.StatusTriggered)
}

func TestScanReadTimeoutZeroReturnsImmediately(t *testing.T) {
	reg, _ := newTestRegistry()
	require.NoError(t, reg.Open(0))
	defer reg.Close(0)
	require.NoError(t, reg.AinClockConfigWrite(0, mcc172.ClockSourceLocal, 100))
	require.NoError(t, reg.ScanStart(0, 0b11, 0, mcc172.OptsContinuous))
	defer reg.ScanCleanup(0)

	time.Sleep(5 * time.Millisecond)
	buf := make([]float64, 10000)
	start := time.Now()
	_, _, err := reg.ScanRead(0, 5000, 0, buf)
	require.NoError(t, err)
	require.Less(t, time.Since(start), 50*time.Millisecond)
}
