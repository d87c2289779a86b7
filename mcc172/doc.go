// Package mcc172 drives a two-channel, 24-bit, 51.2kS/s IEPE-capable analog
// input HAT connected to a single-board computer over a shared SPI bus.
//
// It configures the ADC clock, trigger and IEPE excitation; starts a
// continuous or finite acquisition; and streams calibrated, scaled samples
// from a host-side ring buffer while a background goroutine pulls raw
// samples from the device at full rate.
//
// References
//
// The wire protocol (framed commands over SPI, ready-polling, status
// codes) is specific to this board family and is described next to the
// code that implements it: command and status constants in protocol.go,
// framing in frame.go, and the ready-poll transaction in transaction.go.
package mcc172
