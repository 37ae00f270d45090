package compensate

import (
	"math"

	"github.com/dubsync/aligner/config"
	"github.com/dubsync/aligner/errs"
	"github.com/dubsync/aligner/internal/audioio"
	"github.com/dubsync/aligner/pcm"
)

// Report summarizes a render pass, alongside the plan's own totals.
type Report struct {
	TotalSilenceMs float64
	TotalTrimmedMs float64
}

// rendered is an Op materialized to analysis-rate samples, plus its
// nominal source bounds so a neighboring crossfade can peek past them.
type rendered struct {
	kind           OpKind
	samples        []float32
	srcStartSample int // CopyRange only
	srcEndSample   int // CopyRange only
}

// Render executes plan against secPath's secondary audio and writes a
// re-synchronized mono 16-bit PCM stream to outPath (spec §4.G).
// crossfadeMs <= 0 disables crossfading and every boundary is a hard cut.
func Render(secPath, outPath string, plan Plan, crossfadeMs float64) (Report, error) {
	const op = "compensate.Render"

	secBuf, err := pcm.Load(secPath, pcm.Options{})
	if err != nil {
		return Report{}, err
	}
	sr := secBuf.SampleRateHz
	if sr == 0 {
		sr = config.AnalysisSampleRateHz
	}

	items := make([]rendered, len(plan.Ops))
	for i, o := range plan.Ops {
		switch o.Kind {
		case OpCopyRange:
			start := msToSample(o.SrcStartMs, sr)
			end := msToSample(o.SrcEndMs, sr)
			if start < 0 {
				start = 0
			}
			if end > len(secBuf.Samples) {
				end = len(secBuf.Samples)
			}
			if end < start {
				end = start
			}
			samples := make([]float32, end-start)
			copy(samples, secBuf.Samples[start:end])
			items[i] = rendered{kind: OpCopyRange, samples: samples, srcStartSample: start, srcEndSample: end}
		case OpSilence:
			n := msToSample(o.DurationMs, sr)
			if n < 0 {
				n = 0
			}
			items[i] = rendered{kind: OpSilence, samples: make([]float32, n)}
		}
	}

	half := 0
	if crossfadeMs > 0 {
		half = msToSample(crossfadeMs, sr) / 2
	}

	out := make([]float32, 0, estimateTotal(items))
	if len(items) > 0 {
		prev := items[0]
		for i := 1; i < len(items); i++ {
			cur := items[i]
			actualHalf := half
			actualHalf = minInt(actualHalf, len(prev.samples), len(cur.samples))
			actualHalf = minInt(actualHalf, peekAfter(prev, actualHalf, len(secBuf.Samples)))
			actualHalf = minInt(actualHalf, peekBefore(cur, actualHalf))

			if actualHalf <= 0 {
				out = append(out, prev.samples...)
				prev = cur
				continue
			}

			aWin := buildAWindow(prev, secBuf.Samples, actualHalf)
			bWin := buildBWindow(cur, secBuf.Samples, actualHalf)
			blended := blend(aWin, bWin)

			out = append(out, prev.samples[:len(prev.samples)-actualHalf]...)
			out = append(out, blended...)

			cur.samples = cur.samples[actualHalf:]
			prev = cur
		}
		out = append(out, prev.samples...)
	}

	w, err := audioio.CreateMono(outPath, sr)
	if err != nil {
		return Report{}, errs.Wrap(errs.KindIoFailed, op, outPath, err)
	}
	if err := w.Append(out); err != nil {
		w.Close()
		return Report{}, errs.Wrap(errs.KindIoFailed, op, outPath, err)
	}
	if err := w.Close(); err != nil {
		return Report{}, errs.Wrap(errs.KindIoFailed, op, outPath, err)
	}

	return Report{TotalSilenceMs: plan.TotalSilenceMs, TotalTrimmedMs: plan.TotalTrimmedMs}, nil
}

func msToSample(ms float64, sr int) int {
	return int(math.RoundToEven(ms / 1000.0 * float64(sr)))
}

func estimateTotal(items []rendered) int {
	n := 0
	for _, it := range items {
		n += len(it.samples)
	}
	return n
}

// peekAfter reports how many samples are available immediately past r's
// nominal end for use as a crossfade extension: unbounded (more silence)
// for a Silence op, or bounded by what remains in the secondary source
// for a CopyRange op.
func peekAfter(r rendered, want int, srcLen int) int {
	if r.kind == OpSilence {
		return want
	}
	avail := srcLen - r.srcEndSample
	if avail < 0 {
		avail = 0
	}
	return minInt(want, avail)
}

// peekBefore is peekAfter's mirror for the samples immediately before a
// CopyRange op's nominal start.
func peekBefore(r rendered, want int) int {
	if r.kind == OpSilence {
		return want
	}
	return minInt(want, r.srcStartSample)
}

// buildAWindow assembles the 2*half crossfade window trailing r: its own
// last half samples followed by half samples peeked beyond its nominal
// end (zeros for Silence, secondary-source continuation for CopyRange).
func buildAWindow(r rendered, src []float32, half int) []float32 {
	win := make([]float32, 2*half)
	copy(win[:half], r.samples[len(r.samples)-half:])
	if r.kind == OpCopyRange {
		copy(win[half:], src[r.srcEndSample:r.srcEndSample+half])
	}
	return win
}

// buildBWindow is buildAWindow's mirror: half samples peeked before r's
// nominal start, followed by r's own first half samples.
func buildBWindow(r rendered, src []float32, half int) []float32 {
	win := make([]float32, 2*half)
	if r.kind == OpCopyRange {
		copy(win[:half], src[r.srcStartSample-half:r.srcStartSample])
	}
	copy(win[half:], r.samples[:half])
	return win
}

// blend linearly crossfades aWin (fading out) against bWin (fading in)
// over their shared length (spec §4.G: "linear-in-amplitude").
func blend(aWin, bWin []float32) []float32 {
	n := len(aWin)
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		t := float32(i+1) / float32(n+1)
		out[i] = aWin[i]*(1-t) + bWin[i]*t
	}
	return out
}

func minInt(xs ...int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}
