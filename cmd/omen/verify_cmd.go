package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/staticpayload/oracle.omen/pkg/replay"
)

// runVerifyCmd implements `omen verify`: check that every event's
// recorded PayloadHash matches the hash of its own payload, without
// reconstructing state.
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		logPath    string
		jsonOutput bool
	)
	cmd.StringVar(&logPath, "log", "", "path to an event log JSON dump (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "output the verification report as JSON")

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

	report, err := replay.Verify(log)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: verification failed: %v\n", err)
		return 2
	}

	if jsonOutput {
		b, _ := json.MarshalIndent(report, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(b))
	} else if report.IsValid() {
		_, _ = fmt.Fprintf(stdout, "hash chain verified: %d/%d events\n", report.VerifiedEvents, report.TotalEvents)
	} else {
		_, _ = fmt.Fprintf(stdout, "hash chain verification failed: %d hash failure(s), %d state mismatch(es) across %d events\n",
			report.HashFailures, report.StateMismatches, report.TotalEvents)
	}

	if !report.IsValid() {
		return 1
	}
	return 0
}
