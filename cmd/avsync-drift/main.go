// Command avsync-drift runs a full windowed drift scan between a main
// and secondary audio file and reports drift points and the resulting
// segment schedule, grounded on cmd/piano-fit-fast's worker-flag /
// context-cancellation shape in the teacher repo.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/dubsync/aligner/config"
	"github.com/dubsync/aligner/drift"
)

func main() {
	mainPath := flag.String("main", "", "Main (reference) WAV path")
	secPath := flag.String("secondary", "", "Secondary WAV path to scan against main")
	windowMs := flag.Float64("window-ms", config.DefaultDriftWindowMs, "Sliding window duration in ms")
	stepMs := flag.Float64("step-ms", config.DefaultDriftStepMs, "Sliding window step in ms")
	thresholdMs := flag.Float64("threshold-ms", config.DefaultDriftThresholdMs, "Offset-jump threshold in ms")
	workers := flag.Int("workers", 0, "Parallel window workers (0 = GOMAXPROCS)")
	jsonOut := flag.Bool("json", false, "Print the scan as JSON")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *mainPath == "" || *secPath == "" {
		die("both -main and -secondary are required")
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanCfg := config.DriftScan{WindowMs: *windowMs, StepMs: *stepMs, ThresholdMs: *thresholdMs, Workers: *workers}

	scan, err := drift.Detect(ctx, *mainPath, *secPath, scanCfg, log)
	if err != nil {
		die("drift scan failed: %v", err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(scan); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}

	fmt.Printf("scan duration: %.2fs\n", scan.ScanDurationSeconds)
	fmt.Printf("drift points:  %d\n", len(scan.DriftPoints))
	for _, p := range scan.DriftPoints {
		fmt.Printf("  t=%.0fms  %.1fms -> %.1fms  (confidence %.2f)\n", p.TimestampMs, p.OffsetBeforeMs, p.OffsetAfterMs, p.Confidence)
	}
	fmt.Printf("segments:      %d\n", len(scan.Segments))
	for _, s := range scan.Segments {
		fmt.Printf("  [%.0fms, %.0fms) offset=%.1fms confidence=%.2f\n", s.StartTimeMs, s.EndTimeMs, s.OffsetMs, s.Confidence)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
