// Package drift implements the windowed drift detector (spec §4.E):
// sliding the cross-correlation aligner over the full duration,
// detecting offset jumps, and emitting a piecewise-constant segment
// schedule. Grounded on original_source's detect_drift_points and on
// the teacher's worker-pool idiom in cmd/piano-fit-fast/optimize.go.
package drift

import (
	"context"
	"os"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rs/zerolog"

	"github.com/dubsync/aligner/align"
	"github.com/dubsync/aligner/config"
	"github.com/dubsync/aligner/errs"
	"github.com/dubsync/aligner/internal/audioio"
)

// Measurement is one sliding-window alignment sample (spec §3).
type Measurement struct {
	WindowStartMs float64
	OffsetMs      float64
	Confidence    float64
}

// Point is the DriftPoint data type of spec §3.
type Point struct {
	TimestampMs    float64 `json:"timestamp_ms"`
	OffsetBeforeMs float64 `json:"offset_before_ms"`
	OffsetAfterMs  float64 `json:"offset_after_ms"`
	Confidence     float64 `json:"confidence"`
}

// Segment is the AudioSegment data type of spec §3.
type Segment struct {
	StartTimeMs float64 `json:"start_time_ms"`
	EndTimeMs   float64 `json:"end_time_ms"`
	OffsetMs    float64 `json:"offset_ms"`
	Confidence  float64 `json:"confidence"`
}

// Scan is the result of a full drift-detection pass (spec §4.E / §6).
type Scan struct {
	DriftPoints         []Point   `json:"drift_points"`
	Segments            []Segment `json:"segments"`
	ScanDurationSeconds float64   `json:"scan_duration_seconds"`
}

// Detect runs the windowed drift scan described in spec §4.E. ctx may be
// used by the caller to cancel an in-flight scan; on cancellation no
// partial segment list is returned. log receives per-window progress at
// debug level, matching the zerolog usage in the pack's media-processing
// services.
func Detect(ctx context.Context, mainPath, secPath string, scan config.DriftScan, log zerolog.Logger) (Scan, error) {
	const op = "drift.Detect"

	_, mainDur, err := audioio.Probe(mainPath)
	if err != nil {
		kind := errs.KindDecodeFailed
		if os.IsNotExist(err) {
			kind = errs.KindInputMissing
		}
		return Scan{}, errs.Wrap(kind, op, mainPath, err)
	}
	durationMs := mainDur.Seconds() * 1000.0

	starts := make([]float64, 0)
	for pos := 0.0; pos+scan.WindowMs <= durationMs; pos += scan.StepMs {
		starts = append(starts, pos)
	}

	if len(starts) == 0 {
		return Scan{DriftPoints: []Point{}, Segments: []Segment{}, ScanDurationSeconds: 0}, nil
	}

	begin := time.Now()
	measurements, err := scanWindows(ctx, mainPath, secPath, starts, scan, log)
	if err != nil {
		return Scan{}, err
	}
	elapsed := time.Since(begin).Seconds()

	if len(measurements) == 0 {
		return Scan{DriftPoints: []Point{}, Segments: []Segment{}, ScanDurationSeconds: elapsed}, nil
	}

	points := findDriftPoints(measurements, scan.WindowMs, scan.ThresholdMs)
	segments := synthesizeSegments(measurements, points, durationMs)

	return Scan{DriftPoints: points, Segments: segments, ScanDurationSeconds: elapsed}, nil
}

// scanWindows evaluates align.Segment once per window start, in
// parallel, writing results into a slice indexed by window order so the
// result is deterministic regardless of completion order (spec §5).
func scanWindows(ctx context.Context, mainPath, secPath string, starts []float64, scan config.DriftScan, log zerolog.Logger) ([]Measurement, error) {
	workers := scan.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(starts) {
		workers = len(starts)
	}

	results := make([]Measurement, len(starts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, start := range starts {
		i, start := i, start
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := align.Segment(mainPath, secPath, start, start+scan.WindowMs)
			if err != nil {
				return err
			}
			results[i] = Measurement{WindowStartMs: start, OffsetMs: r.OffsetMs, Confidence: r.Confidence}
			log.Debug().
				Float64("window_start_ms", start).
				Float64("offset_ms", r.OffsetMs).
				Float64("confidence", r.Confidence).
				Msg("drift window measured")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// findDriftPoints implements spec §4.E step 5: a drift point per
// adjacent pair whose offset changes by at least thresholdMs.
func findDriftPoints(m []Measurement, windowMs, thresholdMs float64) []Point {
	points := make([]Point, 0)
	for i := 1; i < len(m); i++ {
		prev, cur := m[i-1], m[i]
		if absF(cur.OffsetMs-prev.OffsetMs) >= thresholdMs {
			points = append(points, Point{
				TimestampMs:    (prev.WindowStartMs + cur.WindowStartMs + windowMs) / 2.0,
				OffsetBeforeMs: prev.OffsetMs,
				OffsetAfterMs:  cur.OffsetMs,
				Confidence:     minF(prev.Confidence, cur.Confidence),
			})
		}
	}
	return points
}

// synthesizeSegments implements spec §4.E step 6.
func synthesizeSegments(m []Measurement, points []Point, durationMs float64) []Segment {
	if len(points) == 0 {
		offsets := make([]float64, len(m))
		confs := make([]float64, len(m))
		for i, mm := range m {
			offsets[i] = mm.OffsetMs
			confs[i] = mm.Confidence
		}
		return []Segment{{
			StartTimeMs: 0,
			EndTimeMs:   durationMs,
			OffsetMs:    median(offsets),
			Confidence:  mean(confs),
		}}
	}

	segments := make([]Segment, 0, len(points)+1)
	segStart := 0.0

	for _, p := range points {
		offsets := make([]float64, 0)
		confs := make([]float64, 0)
		for _, mm := range m {
			if mm.WindowStartMs >= segStart && mm.WindowStartMs < p.TimestampMs {
				offsets = append(offsets, mm.OffsetMs)
				confs = append(confs, mm.Confidence)
			}
		}
		var offset, conf float64
		if len(offsets) > 0 {
			offset = median(offsets)
			conf = mean(confs)
		} else {
			offset = p.OffsetBeforeMs
			conf = p.Confidence
		}
		segments = append(segments, Segment{
			StartTimeMs: segStart,
			EndTimeMs:   p.TimestampMs,
			OffsetMs:    offset,
			Confidence:  conf,
		})
		segStart = p.TimestampMs
	}

	last := points[len(points)-1]
	offsets := make([]float64, 0)
	confs := make([]float64, 0)
	for _, mm := range m {
		if mm.WindowStartMs >= segStart {
			offsets = append(offsets, mm.OffsetMs)
			confs = append(confs, mm.Confidence)
		}
	}
	var offset, conf float64
	if len(offsets) > 0 {
		offset = median(offsets)
		conf = mean(confs)
	} else {
		offset = last.OffsetAfterMs
		conf = last.Confidence
	}
	segments = append(segments, Segment{
		StartTimeMs: segStart,
		EndTimeMs:   durationMs,
		OffsetMs:    offset,
		Confidence:  conf,
	})

	return segments
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2.0
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
