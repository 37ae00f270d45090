// Command avsync-align estimates the offset and confidence between a
// main and secondary audio file, either over their full duration or a
// [start, end) window, grounded on cmd/piano-distance's flag/report
// shape in the teacher repo.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/dubsync/aligner/align"
	"github.com/dubsync/aligner/onset"
	"github.com/dubsync/aligner/pcm"
)

func main() {
	mainPath := flag.String("main", "", "Main (reference) WAV path")
	secPath := flag.String("secondary", "", "Secondary WAV path to align against main")
	startMs := flag.Float64("start-ms", -1, "Window start in ms; omit to align full files")
	endMs := flag.Float64("end-ms", -1, "Window end in ms; required if -start-ms is set")
	jsonOut := flag.Bool("json", false, "Print the result as JSON")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	log := newLogger(*verbose)

	if *mainPath == "" || *secPath == "" {
		die("both -main and -secondary are required")
	}

	var result align.Result
	var err error

	if *startMs >= 0 {
		if *endMs <= *startMs {
			die("-end-ms must be greater than -start-ms")
		}
		result, err = align.Segment(*mainPath, *secPath, *startMs, *endMs)
	} else {
		result, err = alignFull(*mainPath, *secPath)
	}
	if err != nil {
		die("alignment failed: %v", err)
	}

	log.Debug().Float64("offset_ms", result.OffsetMs).Float64("confidence", result.Confidence).Msg("alignment complete")

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}

	fmt.Printf("offset_ms:  %.3f\n", result.OffsetMs)
	fmt.Printf("confidence: %.3f\n", result.Confidence)
}

func alignFull(mainPath, secPath string) (align.Result, error) {
	mainBuf, err := pcm.Load(mainPath, pcm.Options{})
	if err != nil {
		return align.Result{}, err
	}
	secBuf, err := pcm.Load(secPath, pcm.Options{})
	if err != nil {
		return align.Result{}, err
	}
	mainEnv := onset.ComputeDefault(mainBuf.Samples, mainBuf.SampleRateHz)
	secEnv := onset.ComputeDefault(secBuf.Samples, secBuf.SampleRateHz)
	return align.Align(mainEnv, secEnv), nil
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
