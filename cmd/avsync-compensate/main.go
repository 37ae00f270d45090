// Command avsync-compensate runs a full drift scan, plans a compensating
// edit over the secondary audio, and renders the resynchronized stream
// to a new WAV file.
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

	"github.com/dubsync/aligner/compensate"
	"github.com/dubsync/aligner/config"
	"github.com/dubsync/aligner/drift"
	"github.com/dubsync/aligner/errs"
	"github.com/dubsync/aligner/internal/audioio"
)

func main() {
	mainPath := flag.String("main", "", "Main (reference) WAV path")
	secPath := flag.String("secondary", "", "Secondary WAV path to compensate")
	outPath := flag.String("out", "", "Output WAV path (must not already exist)")
	windowMs := flag.Float64("window-ms", config.DefaultDriftWindowMs, "Sliding window duration in ms")
	stepMs := flag.Float64("step-ms", config.DefaultDriftStepMs, "Sliding window step in ms")
	thresholdMs := flag.Float64("threshold-ms", config.DefaultDriftThresholdMs, "Offset-jump threshold in ms")
	crossfadeMs := flag.Float64("crossfade-ms", config.DefaultCrossfadeMs, "Crossfade duration at edit boundaries in ms (0 disables)")
	workers := flag.Int("workers", 0, "Parallel window workers (0 = GOMAXPROCS)")
	jsonOut := flag.Bool("json", false, "Print the plan report as JSON")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *mainPath == "" || *secPath == "" || *outPath == "" {
		die("-main, -secondary and -out are all required")
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
	log.Info().Int("segments", len(scan.Segments)).Msg("drift scan complete")

	_, secDur, err := audioio.Probe(*secPath)
	if err != nil {
		die("failed to probe secondary file: %v", err)
	}
	secDurationMs := secDur.Seconds() * 1000.0

	plan, err := compensate.Plan(scan.Segments, secDurationMs)
	if err != nil {
		if errs.Is(err, errs.KindPlanInfeasible) {
			die("compensation plan infeasible: %v", err)
		}
		die("planning failed: %v", err)
	}
	log.Info().Int("ops", len(plan.Ops)).Msg("compensation plan ready")

	report, err := compensate.Render(*secPath, *outPath, plan, *crossfadeMs)
	if err != nil {
		die("render failed: %v", err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		out := struct {
			CompensatedPath string          `json:"compensated_path"`
			Segments        []drift.Segment `json:"segments"`
			Ops             int             `json:"ops"`
			TotalSilenceMs  float64         `json:"total_silence_inserted_ms"`
			TotalTrimmedMs  float64         `json:"total_trimmed_ms"`
		}{*outPath, scan.Segments, len(plan.Ops), report.TotalSilenceMs, report.TotalTrimmedMs}
		if err := enc.Encode(out); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}

	fmt.Printf("wrote %s\n", *outPath)
	fmt.Printf("ops:               %d\n", len(plan.Ops))
	fmt.Printf("total_silence_ms:  %.1f\n", report.TotalSilenceMs)
	fmt.Printf("total_trimmed_ms:  %.1f\n", report.TotalTrimmedMs)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
