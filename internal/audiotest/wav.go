// Package audiotest provides small WAV fixture helpers shared by this
// module's package tests, grounded on the teacher's writeTempIRWav idiom
// in piano/test_helpers_test.go.
package audiotest

import (
	"math"
	"os"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// WriteMonoWAV writes samples as 16-bit mono PCM to path, overwriting
// any existing file (unlike the production Writer, which insists on
// exclusive-create).
func WriteMonoWAV(path string, samples []float32, sampleRateHz int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRateHz, 16, 1, 1)
	buf := &audio.Float32Buffer{
		Format:         &audio.Format{SampleRate: sampleRateHz, NumChannels: 1},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// SineWave synthesizes n samples of a sine wave at freqHz.
func SineWave(n int, freqHz float64, sampleRateHz int) []float32 {
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / float64(sampleRateHz)
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freqHz*t))
	}
	return out
}

// ClickTrain synthesizes n samples of periodic unit impulses every
// periodSamples, useful for exercising onset detection deterministically.
func ClickTrain(n int, periodSamples int) []float32 {
	out := make([]float32, n)
	for i := 0; i < n; i += periodSamples {
		out[i] = 1.0
	}
	return out
}
