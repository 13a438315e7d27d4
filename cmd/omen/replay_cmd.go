package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/staticpayload/oracle.omen/pkg/replay"
)

// runReplayCmd implements `omen replay`: fold a recorded event log back
// into state, or, with --compare, detect the first points at which two
// logs' event hashes disagree.
func runReplayCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("replay", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		logPath     string
		comparePath string
		jsonOutput  bool
	)
	cmd.StringVar(&logPath, "log", "", "path to an event log JSON dump (REQUIRED)")
	cmd.StringVar(&comparePath, "compare", "", "path to a second event log to detect divergence against")
	cmd.BoolVar(&jsonOutput, "json", false, "output results as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if logPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --log is required")
		return 2
	}

	log, err := loadEventLog(logPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if comparePath != "" {
		other, err := loadEventLog(comparePath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		points, err := replay.DetectDivergence(log, other)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: comparing logs: %v\n", err)
			return 2
		}

		if jsonOutput {
			b, _ := json.MarshalIndent(points, "", "  ")
			_, _ = fmt.Fprintln(stdout, string(b))
		} else if len(points) == 0 {
			_, _ = fmt.Fprintln(stdout, "logs are identical")
		} else {
			_, _ = fmt.Fprintf(stdout, "%d divergence point(s):\n", len(points))
			for _, p := range points {
				_, _ = fmt.Fprintf(stdout, "  - position %d: %s\n", p.Position, p.Diff)
			}
		}
		if len(points) > 0 {
			return 1
		}
		return 0
	}

	engine := replay.New(log)
	final, err := engine.ReplayAll()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: replay failed: %v\n", err)
		return 2
	}

	result := map[string]interface{}{
		"events":     log.Len(),
		"diverged":   engine.Diverged(),
		"state_hash": final.Hash().String(),
	}
	if jsonOutput {
		b, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(b))
	} else if engine.Diverged() {
		_, _ = fmt.Fprintf(stdout, "replay diverged from recorded state hashes; final state hash %s\n", final.Hash())
	} else {
		_, _ = fmt.Fprintf(stdout, "replay consistent; final state hash %s\n", final.Hash())
	}

	if engine.Diverged() {
		return 1
	}
	return 0
}
