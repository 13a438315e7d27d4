package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/staticpayload/oracle.omen/pkg/eventlog"
)

// runPatchCmd implements `omen patch`, a small inspector over the patch
// lifecycle events a run recorded — it never drives the patch lifecycle
// itself, since that belongs to the agent and the controller's patch
// engine.
func runPatchCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "Usage: omen patch <list> [flags]")
		return 2
	}
	switch args[0] {
	case "list":
		return runPatchListCmd(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown patch subcommand: %s\n", args[0])
		return 2
	}
}

func runPatchListCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("patch list", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		logPath    string
		jsonOutput bool
	)
	cmd.StringVar(&logPath, "log", "", "path to an event log JSON dump (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "output matching events as JSON")

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

	var matches []eventlog.Event
	for _, ev := range log.Events(0, log.Len()) {
		if ev.Kind == eventlog.KindPatchProposed || ev.Kind == eventlog.KindPatchApplied {
			matches = append(matches, ev)
		}
	}

	if jsonOutput {
		b, _ := json.MarshalIndent(matches, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(b))
		return 0
	}

	if len(matches) == 0 {
		_, _ = fmt.Fprintln(stdout, "no patch events recorded")
		return 0
	}
	for _, ev := range matches {
		_, _ = fmt.Fprintf(stdout, "[%d] %s patch_id=%v reasoning=%v\n", ev.ID.Sequence, ev.Kind, ev.Payload.Raw["patch_id"], ev.Payload.Raw["reasoning"])
	}
	return 0
}
