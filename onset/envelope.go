// Package onset computes the onset-strength envelope used by the
// cross-correlation aligner (spec §4.B), grounded on the Hann-windowed
// STFT machinery in analysis/distance.go's spectralRMSEDBMulti.
package onset

import (
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"

	"github.com/dubsync/aligner/config"
)

// Envelope is the OnsetEnvelope data type of spec §3.
type Envelope struct {
	Frames       []float64
	HopSamples   int
	SampleRateHz int
}

// FramePeriodS returns hop_samples / sample_rate_hz.
func (e Envelope) FramePeriodS() float64 {
	if e.SampleRateHz == 0 {
		return 0
	}
	return float64(e.HopSamples) / float64(e.SampleRateHz)
}

// Degenerate reports whether the envelope carries no usable signal
// (empty or single-frame, or all-zero after normalization).
func (e Envelope) Degenerate() bool {
	if len(e.Frames) < 2 {
		return true
	}
	for _, v := range e.Frames {
		if v != 0 {
			return false
		}
	}
	return true
}

// Compute derives a spectral-flux onset-strength series from pcm at the
// given hop, normalized by its global max (spec §4.B). The STFT analysis
// window is 2*hop samples, rounded down to an even length for the real
// FFT.
func Compute(pcm []float32, hopSamples int, sampleRateHz int) Envelope {
	window := 2 * hopSamples
	window &^= 1
	if hopSamples <= 0 || window < 4 || len(pcm) < window {
		return Envelope{HopSamples: hopSamples, SampleRateHz: sampleRateHz}
	}

	nFrames := (len(pcm)-window)/hopSamples + 1
	if nFrames < 1 {
		return Envelope{HopSamples: hopSamples, SampleRateHz: sampleRateHz}
	}

	hann := hannWindow(window)
	bins := window/2 + 1

	plan, err := algofft.NewPlanReal64(window)
	frames := make([]float64, nFrames)

	prevMag := make([]float64, bins)
	curMag := make([]float64, bins)
	winBuf := make([]float64, window)
	spec := make([]complex128, bins)

	for i := 0; i < nFrames; i++ {
		start := i * hopSamples
		for j := 0; j < window; j++ {
			winBuf[j] = float64(pcm[start+j]) * hann[j]
		}

		if err == nil {
			plan.Forward(spec, winBuf)
			for k := range spec {
				curMag[k] = cmplx.Abs(spec[k])
			}
		} else {
			naiveMagnitudes(winBuf, curMag)
		}

		var flux float64
		for k := 0; k < bins; k++ {
			d := curMag[k] - prevMag[k]
			if d > 0 {
				flux += d
			}
		}
		frames[i] = flux
		prevMag, curMag = curMag, prevMag
	}

	normalize(frames)

	return Envelope{Frames: frames, HopSamples: hopSamples, SampleRateHz: sampleRateHz}
}

// ComputeDefault computes an envelope at the spec-mandated default hop.
func ComputeDefault(pcm []float32, sampleRateHz int) Envelope {
	return Compute(pcm, config.HopSamples, sampleRateHz)
}

func normalize(frames []float64) {
	max := 0.0
	for _, v := range frames {
		if v > max {
			max = v
		}
	}
	if max <= 0 {
		return
	}
	for i := range frames {
		frames[i] /= max
	}
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n < 2 {
		if n == 1 {
			w[0] = 1
		}
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// naiveMagnitudes is the direct-DFT fallback used only if the FFT plan
// could not be constructed, mirroring analysis.spectralRMSEDBNaiveWindowed's
// fallback idiom.
func naiveMagnitudes(x []float64, out []float64) {
	n := len(x)
	bins := len(out)
	for k := 0; k < bins; k++ {
		var re, im float64
		for i := 0; i < n; i++ {
			phi := -2.0 * math.Pi * float64(k*i) / float64(n)
			re += x[i] * math.Cos(phi)
			im += x[i] * math.Sin(phi)
		}
		out[k] = math.Hypot(re, im)
	}
}
