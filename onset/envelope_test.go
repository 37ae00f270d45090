package onset

import (
	"math/rand"
	"testing"
)

func TestComputeNormalizesToUnitMax(t *testing.T) {
	pcm := randomSignal(4096, 1)
	env := Compute(pcm, 512, 22050)
	if env.Degenerate() {
		t.Fatalf("expected non-degenerate envelope for random signal")
	}
	max := 0.0
	for _, v := range env.Frames {
		if v > max {
			max = v
		}
	}
	if max < 0.999 || max > 1.001 {
		t.Fatalf("expected normalized envelope to peak at 1.0, got %f", max)
	}
}

func TestComputeTooShortIsDegenerate(t *testing.T) {
	pcm := make([]float32, 100)
	env := Compute(pcm, 512, 22050)
	if !env.Degenerate() {
		t.Fatalf("expected a too-short buffer to produce a degenerate envelope")
	}
}

func TestComputeSilenceIsDegenerate(t *testing.T) {
	pcm := make([]float32, 8192)
	env := Compute(pcm, 512, 22050)
	if !env.Degenerate() {
		t.Fatalf("expected silence to produce a degenerate envelope")
	}
}

func TestFramePeriodS(t *testing.T) {
	env := Envelope{HopSamples: 512, SampleRateHz: 22050}
	want := 512.0 / 22050.0
	if got := env.FramePeriodS(); got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("FramePeriodS() = %v, want %v", got, want)
	}
}

func randomSignal(n int, seed int64) []float32 {
	r := rand.New(rand.NewSource(seed))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(r.Float64()*2 - 1)
	}
	return out
}
