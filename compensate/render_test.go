package compensate

import (
	"path/filepath"
	"testing"

	"github.com/dubsync/aligner/drift"
	"github.com/dubsync/aligner/internal/audiotest"
	"github.com/dubsync/aligner/pcm"
)

func TestRenderNoOpPlanPreservesDuration(t *testing.T) {
	dir := t.TempDir()
	secPath := filepath.Join(dir, "sec.wav")
	outPath := filepath.Join(dir, "out.wav")

	samples := audiotest.SineWave(22050*3, 440, 22050)
	if err := audiotest.WriteMonoWAV(secPath, samples, 22050); err != nil {
		t.Fatalf("WriteMonoWAV: %v", err)
	}

	segs := []drift.Segment{{StartTimeMs: 0, EndTimeMs: 3000, OffsetMs: 0}}
	plan, err := Plan(segs, 3000)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if _, err := Render(secPath, outPath, plan, 0); err != nil {
		t.Fatalf("Render: %v", err)
	}

	out, err := pcm.Load(outPath, pcm.Options{})
	if err != nil {
		t.Fatalf("Load rendered output: %v", err)
	}
	if len(out.Samples) < 22050*3-50 || len(out.Samples) > 22050*3+50 {
		t.Fatalf("unexpected rendered sample count: %d", len(out.Samples))
	}
}

func TestRenderInsertsSilenceForPositiveAdjustment(t *testing.T) {
	dir := t.TempDir()
	secPath := filepath.Join(dir, "sec.wav")
	outPath := filepath.Join(dir, "out.wav")

	samples := audiotest.SineWave(22050*6, 440, 22050)
	if err := audiotest.WriteMonoWAV(secPath, samples, 22050); err != nil {
		t.Fatalf("WriteMonoWAV: %v", err)
	}

	segs := []drift.Segment{
		{StartTimeMs: 0, EndTimeMs: 3000, OffsetMs: 0},
		{StartTimeMs: 3000, EndTimeMs: 6000, OffsetMs: -500},
	}
	plan, err := Plan(segs, 6000)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	report, err := Render(secPath, outPath, plan, 0)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if report.TotalSilenceMs != 500 {
		t.Fatalf("TotalSilenceMs = %v, want 500", report.TotalSilenceMs)
	}

	out, err := pcm.Load(outPath, pcm.Options{})
	if err != nil {
		t.Fatalf("Load rendered output: %v", err)
	}
	wantSamples := 22050*6 + 22050/2
	if diff := len(out.Samples) - wantSamples; diff < -50 || diff > 50 {
		t.Fatalf("unexpected rendered sample count: %d, want ~%d", len(out.Samples), wantSamples)
	}
}

func TestRenderWithCrossfadePreservesTotalDuration(t *testing.T) {
	dir := t.TempDir()
	secPath := filepath.Join(dir, "sec.wav")
	outPath := filepath.Join(dir, "out.wav")

	samples := audiotest.SineWave(22050*6, 440, 22050)
	if err := audiotest.WriteMonoWAV(secPath, samples, 22050); err != nil {
		t.Fatalf("WriteMonoWAV: %v", err)
	}

	segs := []drift.Segment{
		{StartTimeMs: 0, EndTimeMs: 3000, OffsetMs: 0},
		{StartTimeMs: 3000, EndTimeMs: 6000, OffsetMs: -200},
	}
	plan, err := Plan(segs, 6000)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if _, err := Render(secPath, outPath, plan, 50); err != nil {
		t.Fatalf("Render: %v", err)
	}

	out, err := pcm.Load(outPath, pcm.Options{})
	if err != nil {
		t.Fatalf("Load rendered output: %v", err)
	}
	wantSamples := 22050*6 + 22050/5
	if diff := len(out.Samples) - wantSamples; diff < -50 || diff > 50 {
		t.Fatalf("unexpected rendered sample count with crossfade: %d, want ~%d", len(out.Samples), wantSamples)
	}
}
