package audio

import (
	"encoding/binary"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Analyzer maintains a live frequency-magnitude buffer over the most recent
// audio. Feed it frames as they arrive; visualizers poll Spectrum on their
// own schedule, independent of capture state.
type Analyzer struct {
	mu       sync.Mutex
	fft      *fourier.FFT
	window   []float64
	spectrum []float64
	fresh    bool
}

// NewAnalyzer creates an analyzer over a window of size samples. Size must
// be a power of two for sensible bin spacing; 2048 is a good default.
func NewAnalyzer(size int) *Analyzer {
	if size <= 0 {
		size = 2048
	}
	return &Analyzer{
		fft:      fourier.NewFFT(size),
		window:   make([]float64, size),
		spectrum: make([]float64, size/2+1),
	}
}

// Feed shifts the frame's samples into the analysis window. Data is
// little-endian 16-bit PCM, mono.
func (a *Analyzer) Feed(frame Frame) {
	samples := len(frame.Data) / 2
	if samples == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if samples >= len(a.window) {
		// Frame larger than the window; keep its tail.
		off := (samples - len(a.window)) * 2
		for i := range a.window {
			a.window[i] = sampleAt(frame.Data, off+i*2)
		}
	} else {
		copy(a.window, a.window[samples:])
		base := len(a.window) - samples
		for i := 0; i < samples; i++ {
			a.window[base+i] = sampleAt(frame.Data, i*2)
		}
	}
	a.fresh = true
}

// Spectrum returns a snapshot of the current frequency magnitudes,
// recomputing only when new audio arrived since the last call.
func (a *Analyzer) Spectrum() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.fresh {
		coeffs := a.fft.Coefficients(nil, a.window)
		for i, c := range coeffs {
			a.spectrum[i] = cmplx.Abs(c)
		}
		a.fresh = false
	}

	out := make([]float64, len(a.spectrum))
	copy(out, a.spectrum)
	return out
}

func sampleAt(data []byte, off int) float64 {
	if off+1 >= len(data) {
		return 0
	}
	s := int16(binary.LittleEndian.Uint16(data[off:]))
	return float64(s) / 32768.0
}
