package drift

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dubsync/aligner/config"
	"github.com/dubsync/aligner/internal/audiotest"
)

func TestDetectNoDriftYieldsSingleSegment(t *testing.T) {
	dir := t.TempDir()
	clicks := audiotest.ClickTrain(22050*90, 2205)

	mainPath := filepath.Join(dir, "main.wav")
	secPath := filepath.Join(dir, "sec.wav")
	require.NoError(t, audiotest.WriteMonoWAV(mainPath, clicks, 22050))
	require.NoError(t, audiotest.WriteMonoWAV(secPath, clicks, 22050))

	scan := config.DriftScan{WindowMs: 10000, StepMs: 5000, ThresholdMs: 200, Workers: 2}
	result, err := Detect(context.Background(), mainPath, secPath, scan, zerolog.Nop())
	require.NoError(t, err)

	require.Empty(t, result.DriftPoints)
	require.Len(t, result.Segments, 1)
	require.InDelta(t, 0, result.Segments[0].OffsetMs, 5)
}

func TestDetectNoWindowsFitsReturnsEmptyScan(t *testing.T) {
	dir := t.TempDir()
	clicks := audiotest.ClickTrain(2205, 220)

	mainPath := filepath.Join(dir, "main.wav")
	secPath := filepath.Join(dir, "sec.wav")
	require.NoError(t, audiotest.WriteMonoWAV(mainPath, clicks, 22050))
	require.NoError(t, audiotest.WriteMonoWAV(secPath, clicks, 22050))

	scan := config.DefaultDriftScan()
	result, err := Detect(context.Background(), mainPath, secPath, scan, zerolog.Nop())
	require.NoError(t, err)
	require.Empty(t, result.DriftPoints)
	require.Empty(t, result.Segments)
}

func TestDetectCancellationDiscardsPartialResults(t *testing.T) {
	dir := t.TempDir()
	clicks := audiotest.ClickTrain(22050*90, 2205)

	mainPath := filepath.Join(dir, "main.wav")
	secPath := filepath.Join(dir, "missing-secondary.wav")
	require.NoError(t, audiotest.WriteMonoWAV(mainPath, clicks, 22050))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scan := config.DriftScan{WindowMs: 10000, StepMs: 5000, ThresholdMs: 200, Workers: 2}
	result, err := Detect(ctx, mainPath, secPath, scan, zerolog.Nop())
	require.Error(t, err)
	require.Empty(t, result.Segments)
}

func TestFindDriftPointsTimestampIsMidpointOfWindowSpan(t *testing.T) {
	m := []Measurement{
		{WindowStartMs: 0, OffsetMs: 0, Confidence: 0.9},
		{WindowStartMs: 15000, OffsetMs: 800, Confidence: 0.8},
	}
	points := findDriftPoints(m, 30000, 500)
	if len(points) != 1 {
		t.Fatalf("expected exactly one drift point, got %d", len(points))
	}
	want := (0.0 + 15000.0 + 30000.0) / 2.0
	if points[0].TimestampMs != want {
		t.Fatalf("TimestampMs = %v, want %v", points[0].TimestampMs, want)
	}
	if points[0].Confidence != 0.8 {
		t.Fatalf("Confidence = %v, want min(0.9,0.8)=0.8", points[0].Confidence)
	}
}

func TestFindDriftPointsBelowThresholdIsIgnored(t *testing.T) {
	m := []Measurement{
		{WindowStartMs: 0, OffsetMs: 0, Confidence: 0.9},
		{WindowStartMs: 15000, OffsetMs: 100, Confidence: 0.8},
	}
	points := findDriftPoints(m, 30000, 500)
	if len(points) != 0 {
		t.Fatalf("expected no drift points below threshold, got %d", len(points))
	}
}
