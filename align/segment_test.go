package align

import (
	"path/filepath"
	"testing"

	"github.com/dubsync/aligner/errs"
	"github.com/dubsync/aligner/internal/audiotest"
)

func TestSegmentMissingMainPropagatesInputMissing(t *testing.T) {
	dir := t.TempDir()
	sec := filepath.Join(dir, "sec.wav")
	if err := audiotest.WriteMonoWAV(sec, audiotest.ClickTrain(22050, 2205), 22050); err != nil {
		t.Fatalf("WriteMonoWAV: %v", err)
	}

	_, err := Segment(filepath.Join(dir, "missing.wav"), sec, 0, 1000)
	if !errs.Is(err, errs.KindInputMissing) {
		t.Fatalf("expected KindInputMissing, got %v", err)
	}
}

func TestSegmentIdenticalFilesZeroOffset(t *testing.T) {
	dir := t.TempDir()
	clicks := audiotest.ClickTrain(22050*3, 2205)
	main := filepath.Join(dir, "main.wav")
	sec := filepath.Join(dir, "sec.wav")
	if err := audiotest.WriteMonoWAV(main, clicks, 22050); err != nil {
		t.Fatalf("WriteMonoWAV: %v", err)
	}
	if err := audiotest.WriteMonoWAV(sec, clicks, 22050); err != nil {
		t.Fatalf("WriteMonoWAV: %v", err)
	}

	r, err := Segment(main, sec, 0, 3000)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if r.OffsetMs != 0 {
		t.Fatalf("expected zero offset for identical files, got %f", r.OffsetMs)
	}
}

func TestSegmentTooShortWindowReturnsZero(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.wav")
	sec := filepath.Join(dir, "sec.wav")
	short := audiotest.ClickTrain(10, 5)
	if err := audiotest.WriteMonoWAV(main, short, 22050); err != nil {
		t.Fatalf("WriteMonoWAV: %v", err)
	}
	if err := audiotest.WriteMonoWAV(sec, short, 22050); err != nil {
		t.Fatalf("WriteMonoWAV: %v", err)
	}

	r, err := Segment(main, sec, 0, 1)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if r != (Result{}) {
		t.Fatalf("expected zero result for too-short window, got %+v", r)
	}
}
