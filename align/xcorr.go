// Package align implements the cross-correlation aligner (spec §4.C)
// and the segment aligner (spec §4.D), grounded on the FFT-based lag
// search in analysis/distance.go's lagFFTPlan/estimateLagFFT.
package align

import (
	"errors"
	"math"
	"math/cmplx"
	"sync"

	algofft "github.com/cwbudde/algo-fft"

	"github.com/dubsync/aligner/config"
	"github.com/dubsync/aligner/onset"
)

// Result is the AlignmentResult data type of spec §3.
type Result struct {
	OffsetMs   float64 `json:"offset_ms"`
	Confidence float64 `json:"confidence"`
}

var planCache sync.Map // map[int]*fftPlan

type fftPlan struct {
	mu   sync.Mutex
	n    int
	fast *algofft.FastPlanReal64
	safe *algofft.PlanRealT[float64, complex128]
}

func getPlan(n int) (*fftPlan, error) {
	if v, ok := planCache.Load(n); ok {
		return v.(*fftPlan), nil
	}
	p := &fftPlan{n: n}

	fast, err := algofft.NewFastPlanReal64(n)
	if err == nil {
		p.fast = fast
	} else if !errors.Is(err, algofft.ErrNotImplemented) {
		// Ignore fast-plan setup errors and rely on the safe plan.
	}

	safe, err := algofft.NewPlanReal64(n)
	if err != nil {
		if p.fast == nil {
			return nil, err
		}
	} else {
		p.safe = safe
	}

	actual, _ := planCache.LoadOrStore(n, p)
	return actual.(*fftPlan), nil
}

func (p *fftPlan) forward(dst []complex128, src []float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fast != nil {
		p.fast.Forward(dst, src)
		return nil
	}
	if p.safe != nil {
		return p.safe.Forward(dst, src)
	}
	return errors.New("align: missing FFT forward plan")
}

func (p *fftPlan) inverse(dst []float64, src []complex128) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fast != nil {
		p.fast.Inverse(dst, src)
		return nil
	}
	if p.safe != nil {
		return p.safe.Inverse(dst, src)
	}
	return errors.New("align: missing FFT inverse plan")
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Align computes the full linear cross-correlation of two onset
// envelopes and returns the offset (ms) and confidence of the best lag
// (spec §4.C). Degenerate inputs (empty or all-zero) yield {0, 0}.
func Align(main, sec onset.Envelope) Result {
	N := len(main.Frames)
	M := len(sec.Frames)
	if N == 0 || M == 0 || main.Degenerate() || sec.Degenerate() {
		return Result{}
	}

	framePeriod := main.FramePeriodS()
	if framePeriod == 0 {
		framePeriod = sec.FramePeriodS()
	}

	corr, ok := correlate(main.Frames, sec.Frames)
	if !ok {
		corr = correlateNaive(main.Frames, sec.Frames)
	}

	bestK, bestVal := argmaxTieBreak(corr, M)
	lagFrames := bestK - (M - 1)
	offsetMs := float64(lagFrames) * framePeriod * 1000.0

	confidence := confidenceFromCorrelation(corr, bestVal)

	return Result{OffsetMs: offsetMs, Confidence: confidence}
}

// correlate computes c[k] = sum_n main[n]*sec[n-k] for k in
// [0, N+M-2] (k corresponds to lag = k-(M-1)) via zero-padded FFT,
// exactly as analysis.estimateLagFFT does for plain arrays.
func correlate(main, sec []float64) ([]float64, bool) {
	N, M := len(main), len(sec)
	total := N + M - 1
	nfft := nextPow2(total)
	if nfft < 2 {
		nfft = 2
	}

	plan, err := getPlan(nfft)
	if err != nil {
		return nil, false
	}

	inMain := make([]float64, nfft)
	inSec := make([]float64, nfft)
	copy(inMain, main)
	copy(inSec, sec)

	specMain := make([]complex128, nfft/2+1)
	specSec := make([]complex128, nfft/2+1)
	if err := plan.forward(specMain, inMain); err != nil {
		return nil, false
	}
	if err := plan.forward(specSec, inSec); err != nil {
		return nil, false
	}

	// c[k] = sum_n main[n]*sec[n-k] is the cross-correlation of main
	// with sec; in the frequency domain this is Main * conj(Sec), whose
	// inverse transform is circular but, after zero-padding to >= N+M-1,
	// matches the linear correlation on indices [0, N+M-2] (with
	// negative "lag" wrapping to the tail of the nfft-length result).
	prod := make([]complex128, len(specMain))
	for i := range prod {
		prod[i] = specMain[i] * cmplx.Conj(specSec[i])
	}

	full := make([]float64, nfft)
	if err := plan.inverse(full, prod); err != nil {
		return nil, false
	}

	// full[j] holds lag = j for j in [0, N-1], and lag = j-nfft for
	// j in [nfft-(M-1), nfft). We want c[k] indexed by k = lag+(M-1) for
	// lag in [-(M-1), N-1].
	out := make([]float64, total)
	for k := 0; k < total; k++ {
		lag := k - (M - 1)
		idx := lag
		if idx < 0 {
			idx += nfft
		}
		out[k] = full[idx]
	}
	return out, true
}

// correlateNaive is the direct O(N*M) fallback used only if no FFT plan
// could be constructed, mirroring analysis.estimateLagExhaustive's
// fallback idiom.
func correlateNaive(main, sec []float64) []float64 {
	N, M := len(main), len(sec)
	total := N + M - 1
	out := make([]float64, total)
	for k := 0; k < total; k++ {
		lag := k - (M - 1)
		var sum float64
		for n := 0; n < N; n++ {
			si := n - lag
			if si < 0 || si >= M {
				continue
			}
			sum += main[n] * sec[si]
		}
		out[k] = sum
	}
	return out
}

// argmaxTieBreak finds k* = argmax_k c[k], breaking ties by smallest
// |k*-(M-1)| (i.e. smallest |lag|) then smallest k* (spec §4.C).
func argmaxTieBreak(corr []float64, M int) (int, float64) {
	best := 0
	bestVal := math.Inf(-1)
	for k, v := range corr {
		if v > bestVal {
			bestVal = v
			best = k
			continue
		}
		if v == bestVal {
			lagK := absInt(k - (M - 1))
			lagBest := absInt(best - (M - 1))
			if lagK < lagBest || (lagK == lagBest && k < best) {
				best = k
			}
		}
	}
	return best, bestVal
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// confidenceFromCorrelation reproduces spec §4.C's calibration formula
// exactly: min(1, max(c)/mean(|c|)/10).
func confidenceFromCorrelation(corr []float64, maxVal float64) float64 {
	if len(corr) == 0 {
		return 0
	}
	var sumAbs float64
	for _, v := range corr {
		sumAbs += math.Abs(v)
	}
	mean := sumAbs / float64(len(corr))
	if mean <= 0 {
		return 0
	}
	c := maxVal / mean / config.ConfidenceCalibrationDivisor
	if c > 1.0 {
		return 1.0
	}
	if c < 0 {
		return 0
	}
	return c
}

// Curve returns the full (lag_ms, correlation) curve, a byproduct of
// Align's computation exposed for visualization callers (see
// original_source's compute_correlation_curve).
func Curve(main, sec onset.Envelope) (lagMs []float64, correlation []float64) {
	N := len(main.Frames)
	M := len(sec.Frames)
	if N == 0 || M == 0 {
		return nil, nil
	}
	framePeriod := main.FramePeriodS()
	if framePeriod == 0 {
		framePeriod = sec.FramePeriodS()
	}

	corr, ok := correlate(main.Frames, sec.Frames)
	if !ok {
		corr = correlateNaive(main.Frames, sec.Frames)
	}

	lagMs = make([]float64, len(corr))
	for k := range corr {
		lag := k - (M - 1)
		lagMs[k] = float64(lag) * framePeriod * 1000.0
	}
	return lagMs, corr
}
