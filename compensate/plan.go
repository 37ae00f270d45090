// Package compensate implements the Compensation Planner (spec §4.F)
// and the Edit Plan Renderer (spec §4.G): turning a segment schedule
// into an ordered edit plan over the secondary audio, then executing
// that plan to produce a re-synchronized mono PCM stream.
package compensate

import (
	"sort"

	"github.com/dubsync/aligner/drift"
	"github.com/dubsync/aligner/errs"
)

// OpKind distinguishes the two EditOp variants of spec §3.
type OpKind int

const (
	// OpCopyRange copies [SrcStartMs, SrcEndMs) from the secondary audio.
	OpCopyRange OpKind = iota
	// OpSilence inserts DurationMs of zero samples.
	OpSilence
)

// Op is the EditOp data type of spec §3.
type Op struct {
	Kind        OpKind
	SrcStartMs  float64 // CopyRange only
	SrcEndMs    float64 // CopyRange only
	DurationMs  float64 // derived for CopyRange, authoritative for Silence
}

// Plan is the EditPlan data type of spec §3, plus the totals §4.F
// requires the planner to report.
type Plan struct {
	Ops             []Op
	TotalSilenceMs  float64
	TotalTrimmedMs  float64
}

// Plan converts a segment list into an ordered edit plan over the
// secondary audio (spec §4.F). secondaryDurationMs is the full duration
// of the secondary source; it bounds the final CopyRange.
func Plan(segments []drift.Segment, secondaryDurationMs float64) (Plan, error) {
	const op = "compensate.Plan"

	if len(segments) == 0 {
		return Plan{}, nil
	}

	sorted := append([]drift.Segment(nil), segments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTimeMs < sorted[j].StartTimeMs })

	if len(sorted) < 2 {
		mainDuration := sorted[0].EndTimeMs
		return Plan{Ops: []Op{{Kind: OpCopyRange, SrcStartMs: 0, SrcEndMs: mainDuration, DurationMs: mainDuration}}}, nil
	}

	var ops []Op
	var totalSilence, totalTrimmed float64

	srcCursor := 0.0
	appliedAdjustment := 0.0

	for i := 1; i < len(sorted); i++ {
		prev, curr := sorted[i-1], sorted[i]
		adjust := prev.OffsetMs - curr.OffsetMs

		copyEnd := curr.StartTimeMs - appliedAdjustment
		if copyEnd <= srcCursor {
			return Plan{}, errs.New(errs.KindPlanInfeasible, op, boundaryLabel(curr.StartTimeMs))
		}
		ops = append(ops, Op{Kind: OpCopyRange, SrcStartMs: srcCursor, SrcEndMs: copyEnd, DurationMs: copyEnd - srcCursor})
		srcCursor = copyEnd

		switch {
		case adjust > 0:
			ops = append(ops, Op{Kind: OpSilence, DurationMs: adjust})
			totalSilence += adjust
			appliedAdjustment += adjust
		case adjust < 0:
			srcCursor += -adjust
			totalTrimmed += -adjust
			appliedAdjustment += adjust
		}
	}

	if secondaryDurationMs <= srcCursor {
		return Plan{}, errs.New(errs.KindPlanInfeasible, op, boundaryLabel(sorted[len(sorted)-1].StartTimeMs))
	}
	ops = append(ops, Op{Kind: OpCopyRange, SrcStartMs: srcCursor, SrcEndMs: secondaryDurationMs, DurationMs: secondaryDurationMs - srcCursor})

	return Plan{Ops: ops, TotalSilenceMs: totalSilence, TotalTrimmedMs: totalTrimmed}, nil
}

func boundaryLabel(ms float64) string {
	return "boundary@" + formatMs(ms)
}

func formatMs(ms float64) string {
	// Simple fixed-point formatting without pulling in fmt for a label
	// that's never parsed back, just surfaced in error messages.
	whole := int64(ms)
	frac := int64((ms - float64(whole)) * 1000)
	if frac < 0 {
		frac = -frac
	}
	return itoa(whole) + "." + pad3(frac) + "ms"
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func pad3(n int64) string {
	s := itoa(n)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}
