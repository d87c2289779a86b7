package mcc172

import (
	"bytes"
	"testing"
)

// Testable property 1: framing round-trip.
func TestScanRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name    string
		cmd     Command
		payload []byte
	}{
		{"empty", CmdAinScanStop, nil},
		{"small", CmdId, []byte{1, 2, 3}},
		{"max", CmdAinScanData, bytes.Repeat([]byte{0x42}, maxPayload)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := encodeReply(tc.cmd, statusSuccess, tc.payload)
			if err != nil {
				t.Fatalf("encodeReply: %v", err)
			}
			stream := append(append([]byte{}, frame...), []byte{0x01, 0x02, 0x03}...)
			found, cmd, status, payload, _ := scan(stream)
			if !found {
				t.Fatalf("scan did not find a frame")
			}
			if Command(cmd) != tc.cmd {
				t.Errorf("cmd = 0x%x, want 0x%x", cmd, tc.cmd)
			}
			if status != statusSuccess {
				t.Errorf("status = 0x%x, want success", status)
			}
			if !bytes.Equal(payload, tc.payload) {
				t.Errorf("payload = %v, want %v", payload, tc.payload)
			}
		})
	}
}

// Testable property 2: framing resync after leading garbage.
func TestScanResync(t *testing.T) {
	frame, err := encodeReply(CmdBlink, statusSuccess, []byte{9, 9})
	if err != nil {
		t.Fatal(err)
	}
	garbage := []byte{0x00, 0xFF, 0xDB, 0x11, 0x99} // includes a decoy 0xDB mid-garbage
	stream := append(append([]byte{}, garbage...), frame...)

	found, cmd, _, payload, _ := scan(stream)
	if !found {
		t.Fatalf("scan did not resync past garbage")
	}
	if Command(cmd) != CmdBlink {
		t.Errorf("cmd = 0x%x, want CmdBlink", cmd)
	}
	if !bytes.Equal(payload, []byte{9, 9}) {
		t.Errorf("payload = %v, want [9 9]", payload)
	}
}

func TestScanIncompleteChunk(t *testing.T) {
	frame, err := encodeReply(CmdId, statusSuccess, []byte{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	s := newFrameScanner()
	var gotCmd, gotStatus byte
	var gotPayload []byte
	found := false
	for _, b := range frame {
		if s.feed(b) {
			found = true
			gotCmd, gotStatus, gotPayload = s.scanResult()
			break
		}
	}
	if !found {
		t.Fatalf("scanner never completed a full frame fed byte-at-a-time")
	}
	if Command(gotCmd) != CmdId || gotStatus != statusSuccess || !bytes.Equal(gotPayload, []byte{1, 2, 3}) {
		t.Errorf("got cmd=0x%x status=0x%x payload=%v", gotCmd, gotStatus, gotPayload)
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	if _, err := encode(CmdBlink, bytes.Repeat([]byte{0}, maxPayload+1)); err == nil {
		t.Fatal("expected an error for an oversized payload")
	}
}
