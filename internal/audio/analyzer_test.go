package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

// sineFrame builds a 16-bit PCM frame with a pure tone at the given bin
// frequency for a window of n samples.
func sineFrame(n, bin int) Frame {
	data := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := math.Sin(2 * math.Pi * float64(bin) * float64(i) / float64(n))
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(v*30000)))
	}
	return Frame{Data: data}
}

func TestSpectrumPeaksAtToneBin(t *testing.T) {
	const size = 256
	const bin = 16

	a := NewAnalyzer(size)
	a.Feed(sineFrame(size, bin))

	spectrum := a.Spectrum()
	if len(spectrum) != size/2+1 {
		t.Fatalf("spectrum length = %d, expected %d", len(spectrum), size/2+1)
	}

	peak := 0
	for i, v := range spectrum {
		if v > spectrum[peak] {
			peak = i
		}
	}
	if peak != bin {
		t.Errorf("spectrum peak at bin %d, expected %d", peak, bin)
	}
}

func TestSpectrumSnapshotIsACopy(t *testing.T) {
	a := NewAnalyzer(64)
	a.Feed(sineFrame(64, 4))

	first := a.Spectrum()
	first[0] = 12345

	second := a.Spectrum()
	if second[0] == 12345 {
		t.Error("Spectrum must return a copy, not the internal buffer")
	}
}

func TestFeedShiftsWindow(t *testing.T) {
	const size = 64
	a := NewAnalyzer(size)

	// Fill with one tone, then shift in half a window of silence. The
	// spectrum should change.
	a.Feed(sineFrame(size, 8))
	before := a.Spectrum()

	a.Feed(Frame{Data: make([]byte, size)}) // size/2 samples of silence
	after := a.Spectrum()

	same := true
	for i := range before {
		if before[i] != after[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("feeding new audio must change the spectrum")
	}
}

func TestFeedOversizedFrameKeepsTail(t *testing.T) {
	const size = 32
	a := NewAnalyzer(size)

	// A frame twice the window: only the tail should be analyzed.
	a.Feed(sineFrame(size*2, 4))
	spectrum := a.Spectrum()

	var total float64
	for _, v := range spectrum {
		total += v
	}
	if total == 0 {
		t.Error("oversized frame produced an empty window")
	}
}

func TestFeedEmptyFrameIsNoop(t *testing.T) {
	a := NewAnalyzer(32)
	before := a.Spectrum()
	a.Feed(Frame{})
	after := a.Spectrum()

	for i := range before {
		if before[i] != after[i] {
			t.Fatal("empty frame must not change the spectrum")
		}
	}
}
