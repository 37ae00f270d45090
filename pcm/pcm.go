// Package pcm implements the PCM Loader (spec §4.A): producing a mono
// f32 buffer at the fixed analysis rate from a WAV file, with optional
// [offset, duration] windowing.
package pcm

import (
	"fmt"
	"os"

	"github.com/dubsync/aligner/config"
	"github.com/dubsync/aligner/errs"
	"github.com/dubsync/aligner/internal/audioio"
)

// Buffer is the PcmBuffer data type of spec §3: an immutable mono f32
// buffer at a fixed analysis sample rate.
type Buffer struct {
	Samples      []float32
	SampleRateHz int
}

// DurationS returns the buffer's duration in seconds.
func (b Buffer) DurationS() float64 {
	if b.SampleRateHz == 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRateHz)
}

// Options controls an optional [offset, offset+duration) window on the
// source file, in seconds. A zero value loads the whole file.
type Options struct {
	OffsetS   float64
	DurationS float64 // 0 means "to EOF"
}

// Load decodes path to mono f32 at config.AnalysisSampleRateHz, applying
// an optional windowing. It never holds more than one window's worth of
// samples in memory at the source rate.
func Load(path string, opts Options) (Buffer, error) {
	const op = "pcm.Load"

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Buffer{}, errs.New(errs.KindInputMissing, op, path)
		}
		return Buffer{}, errs.Wrap(errs.KindDecodeFailed, op, path, err)
	}

	if opts.DurationS < 0 {
		return Buffer{}, errs.New(errs.KindRangeEmpty, op, path)
	}

	format, fullDur, err := audioio.Probe(path)
	if err != nil {
		return Buffer{}, errs.Wrap(errs.KindDecodeFailed, op, path, err)
	}
	if format.BitDepth != 16 {
		return Buffer{}, errs.Wrap(errs.KindUnsupportedFormat, op, path,
			fmt.Errorf("bit depth %d unsupported (want 16)", format.BitDepth))
	}
	if format.Channels != 1 {
		return Buffer{}, errs.Wrap(errs.KindUnsupportedFormat, op, path,
			fmt.Errorf("%d channels unsupported (want mono)", format.Channels))
	}

	srcRate := format.SampleRateHz
	if srcRate <= 0 {
		return Buffer{}, errs.Wrap(errs.KindUnsupportedFormat, op, path, fmt.Errorf("invalid sample rate"))
	}

	offsetFrames := int(opts.OffsetS * float64(srcRate))
	if offsetFrames < 0 {
		offsetFrames = 0
	}

	totalFrames := int(fullDur.Seconds() * float64(srcRate))
	if offsetFrames > 0 && offsetFrames >= totalFrames {
		return Buffer{}, errs.New(errs.KindRangeEmpty, op, path)
	}

	maxFrames := totalFrames - offsetFrames
	if opts.DurationS > 0 {
		wanted := int(opts.DurationS * float64(srcRate))
		if wanted < maxFrames || maxFrames < 0 {
			maxFrames = wanted
		}
		if wanted == 0 {
			return Buffer{}, errs.New(errs.KindRangeEmpty, op, path)
		}
	}
	if maxFrames < 0 {
		maxFrames = 0
	}

	samples32, actualRate, err := audioio.ReadMonoWindow(path, offsetFrames, maxFrames)
	if err != nil {
		return Buffer{}, errs.Wrap(errs.KindDecodeFailed, op, path, err)
	}

	if actualRate == config.AnalysisSampleRateHz {
		return Buffer{Samples: samples32, SampleRateHz: actualRate}, nil
	}

	resampled, err := audioio.ResampleIfNeeded(audioio.ToFloat64(samples32), actualRate, config.AnalysisSampleRateHz)
	if err != nil {
		return Buffer{}, errs.Wrap(errs.KindDecodeFailed, op, path, err)
	}
	return Buffer{Samples: audioio.ToFloat32(resampled), SampleRateHz: config.AnalysisSampleRateHz}, nil
}
