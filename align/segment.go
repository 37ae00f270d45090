package align

import (
	"github.com/dubsync/aligner/config"
	"github.com/dubsync/aligner/errs"
	"github.com/dubsync/aligner/onset"
	"github.com/dubsync/aligner/pcm"
)

// Segment applies Align to a [startMs, endMs) sub-range of two files
// (spec §4.D). Short buffers (fewer than 2*hop samples after loading)
// short-circuit to {0, 0}; InputMissing propagates, every other
// internal failure collapses to {0, 0} so a resilient drift scan never
// aborts on one bad window.
func Segment(mainPath, secPath string, startMs, endMs float64) (Result, error) {
	opts := windowOptions(startMs, endMs)

	mainBuf, err := pcm.Load(mainPath, opts)
	if err != nil {
		if errs.Is(err, errs.KindInputMissing) {
			return Result{}, err
		}
		return Result{}, nil
	}

	secBuf, err := pcm.Load(secPath, opts)
	if err != nil {
		if errs.Is(err, errs.KindInputMissing) {
			return Result{}, err
		}
		return Result{}, nil
	}

	minSamples := 2 * config.HopSamples
	if len(mainBuf.Samples) < minSamples || len(secBuf.Samples) < minSamples {
		return Result{}, nil
	}

	mainEnv := onset.ComputeDefault(mainBuf.Samples, mainBuf.SampleRateHz)
	secEnv := onset.ComputeDefault(secBuf.Samples, secBuf.SampleRateHz)

	return Align(mainEnv, secEnv), nil
}

func windowOptions(startMs, endMs float64) pcm.Options {
	startS := startMs / 1000.0
	durS := (endMs - startMs) / 1000.0
	if durS < 0 {
		durS = 0
	}
	return pcm.Options{OffsetS: startS, DurationS: durS}
}
