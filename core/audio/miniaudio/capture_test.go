package miniaudio

import (
	"bytes"
	"testing"
)

func TestDeliverCopiesFramesOut(t *testing.T) {
	d := &captureDevice{}
	var delivered []byte
	d.onAudio = func(audio []byte) { delivered = audio }

	input := []byte{1, 2, 3, 4, 5, 6}
	d.deliver(2)(nil, input, 3)

	if !bytes.Equal(delivered, []byte{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("expected the full period delivered, got %v", delivered)
	}
	input[0] = 99
	if delivered[0] != 1 {
		t.Fatalf("expected delivered frames independent of the device buffer")
	}
}

func TestDeliverSkipsWithoutHandler(t *testing.T) {
	d := &captureDevice{}
	// Must not panic while nothing is listening.
	d.deliver(2)(nil, []byte{1, 2}, 1)
}

func TestDeliverDropsShortPeriods(t *testing.T) {
	d := &captureDevice{}
	calls := 0
	d.onAudio = func([]byte) { calls++ }

	callback := d.deliver(2)
	callback(nil, []byte{1, 2}, 3) // buffer shorter than the frame count claims
	callback(nil, nil, 0)

	if calls != 0 {
		t.Fatalf("expected no deliveries for malformed periods, got %d", calls)
	}
}
