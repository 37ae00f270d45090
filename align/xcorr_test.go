package align

import (
	"math/rand"
	"testing"

	"pgregory.net/rapid"

	"github.com/dubsync/aligner/onset"
)

func TestAlignIdenticalEnvelopesZeroOffset(t *testing.T) {
	frames := randomFrames(400, 1)
	env := onset.Envelope{Frames: frames, HopSamples: 512, SampleRateHz: 22050}
	r := Align(env, env)
	if r.OffsetMs != 0 {
		t.Fatalf("expected zero offset for identical envelopes, got %f", r.OffsetMs)
	}
	if r.Confidence <= 0 {
		t.Fatalf("expected positive confidence for identical envelopes, got %f", r.Confidence)
	}
}

func TestAlignFindsKnownFrameShift(t *testing.T) {
	const (
		n     = 600
		shift = 17
	)
	main := randomFrames(n, 3)
	sec := make([]float64, n-shift)
	copy(sec, main[shift:])

	mainEnv := onset.Envelope{Frames: main, HopSamples: 512, SampleRateHz: 22050}
	secEnv := onset.Envelope{Frames: sec, HopSamples: 512, SampleRateHz: 22050}

	r := Align(mainEnv, secEnv)
	wantMs := float64(shift) * mainEnv.FramePeriodS() * 1000.0
	if diff := r.OffsetMs - wantMs; diff < -1e-6 || diff > 1e-6 {
		t.Fatalf("Align offset_ms = %v, want %v", r.OffsetMs, wantMs)
	}
}

func TestAlignDegenerateReturnsZero(t *testing.T) {
	empty := onset.Envelope{}
	r := Align(empty, empty)
	if r != (Result{}) {
		t.Fatalf("expected zero result for degenerate envelopes, got %+v", r)
	}
}

func TestConfidenceFromCorrelationClampedToUnitInterval(t *testing.T) {
	corr := []float64{100, 1, 1, 1, 1}
	c := confidenceFromCorrelation(corr, 100)
	if c < 0 || c > 1 {
		t.Fatalf("confidence out of [0,1]: %v", c)
	}
}

// TestAlignOffsetIsAntisymmetric exercises the invariant that swapping
// main and secondary negates the reported offset.
func TestAlignOffsetIsAntisymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(8, 256).Draw(t, "n")
		seed := rapid.Int64().Draw(t, "seed")
		frames := randomFrames(n, seed)

		other := rapid.SliceOfN(rapid.Float64Range(0, 1), 8, 256).Draw(t, "other")

		a := onset.Envelope{Frames: frames, HopSamples: 512, SampleRateHz: 22050}
		b := onset.Envelope{Frames: other, HopSamples: 512, SampleRateHz: 22050}

		ab := Align(a, b)
		ba := Align(b, a)

		if diff := ab.OffsetMs + ba.OffsetMs; diff < -1e-6 || diff > 1e-6 {
			t.Fatalf("Align(a,b).OffsetMs=%v, Align(b,a).OffsetMs=%v: not antisymmetric", ab.OffsetMs, ba.OffsetMs)
		}
	})
}

func randomFrames(n int, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = r.Float64()
	}
	return out
}
