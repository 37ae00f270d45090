// Package audioio centralizes WAV decode/encode plumbing shared by the
// PCM loader and the edit-plan renderer, adapted from
// internal/fitcommon/wav.go in the teacher repo.
package audioio

import (
	"fmt"
	"io"
	"os"
	"time"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// chunkFrames bounds how many frames are decoded per PCMBuffer call, so
// the decode buffer stays a few hundred KB however long the window is
// (the returned samples still hold the whole window).
const chunkFrames = 8192

// Format describes the native format of a WAV file's data chunk.
type Format struct {
	SampleRateHz int
	Channels     int
	BitDepth     int
}

// Probe opens path and returns its format and duration without decoding
// sample data, for the drift detector's "probe the main file" step
// (spec §4.E step 1).
func Probe(path string) (Format, time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return Format{}, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Format{}, 0, fmt.Errorf("invalid wav file: %s", path)
	}
	dur, err := dec.Duration()
	if err != nil {
		return Format{}, 0, err
	}
	return Format{
		SampleRateHz: int(dec.SampleRate),
		Channels:     int(dec.NumChans),
		BitDepth:     int(dec.BitDepth),
	}, dur, nil
}

// isPCM reports whether the decoder's data chunk holds linear PCM
// (WavAudioFormat 1, or an unset 0), as opposed to IEEE float, A-law, mu-law, or a
// compressed codec — any of which is UnsupportedFormat territory.
func isPCM(dec *wav.Decoder) bool {
	return dec.WavAudioFormat == 0 || dec.WavAudioFormat == 1
}

// ReadMonoWindow decodes [offsetFrames, offsetFrames+maxFrames) of path,
// downmixing to mono, and returns the samples alongside the file's
// native sample rate. If the file is shorter than requested the result
// is silently truncated (spec §4.A). Frames are decoded at most
// chunkFrames at a time; the returned slice holds the whole window.
func ReadMonoWindow(path string, offsetFrames int, maxFrames int) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file: %s", path)
	}
	if !isPCM(dec) {
		return nil, 0, fmt.Errorf("unsupported wav codec (format tag %d): %s", dec.WavAudioFormat, path)
	}
	ch := int(dec.NumChans)
	if ch < 1 {
		return nil, 0, fmt.Errorf("invalid channel count in %s", path)
	}
	sr := int(dec.SampleRate)

	out := make([]float32, 0, min(maxFrames, chunkFrames))
	framesSkipped := 0
	framesRead := 0

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: ch, SampleRate: sr},
		Data:           make([]int, chunkFrames*ch),
		SourceBitDepth: int(dec.BitDepth),
	}

	for framesRead < maxFrames {
		n, err := dec.PCMBuffer(buf)
		if err != nil && err != io.EOF {
			return nil, 0, err
		}
		if n == 0 {
			break
		}
		frames := n / ch
		fb := buf.AsFloat32Buffer()

		for i := 0; i < frames; i++ {
			if framesSkipped < offsetFrames {
				framesSkipped++
				continue
			}
			if framesRead >= maxFrames {
				break
			}
			var sum float32
			for c := 0; c < ch; c++ {
				sum += fb.Data[i*ch+c]
			}
			out = append(out, sum/float32(ch))
			framesRead++
		}
		if n < len(buf.Data) {
			break // last chunk, EOF reached inside the decoder
		}
	}

	return out, sr, nil
}

// ResampleIfNeeded converts in (at fromRate) to toRate, reusing the
// teacher's algo-dsp/dsp/resample call exactly (internal/fitcommon/wav.go).
func ResampleIfNeeded(in []float64, fromRate int, toRate int) ([]float64, error) {
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	return r.Process(in), nil
}

// ToFloat64 widens a float32 slice to float64 for resampling/analysis.
func ToFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// ToFloat32 narrows a float64 slice back to float32 for storage in a
// PcmBuffer.
func ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

// Writer streams mono 16-bit PCM samples to a WAV file without holding
// the whole output in memory, mirroring the teacher's WriteMonoWAV but
// split into an Append that may be called repeatedly. The edit-plan
// renderer assembles its whole output first and calls Append once.
type Writer struct {
	f   *os.File
	enc *wav.Encoder
}

// CreateMono creates path exclusive-new (spec §5: "output PCM file is
// created exclusive-new") and returns a streaming mono 16-bit writer.
func CreateMono(path string, sampleRateHz int) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	enc := wav.NewEncoder(f, sampleRateHz, 16, 1, 1)
	return &Writer{f: f, enc: enc}, nil
}

// Append writes samples (in [-1, 1]) as 16-bit PCM.
func (w *Writer) Append(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  w.enc.SampleRate,
			NumChannels: 1,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	return w.enc.Write(buf)
}

// Close flushes the WAV header/trailer and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.enc.Close(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
