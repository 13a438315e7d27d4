// File-based loading and end-to-end replay of an event log, for the
// "omen replay" CLI subcommand: read a recorded log from disk, replay it
// structurally, and report whether it verifies clean.
package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/staticpayload/oracle.omen/pkg/eventlog"
)

// LoadEventLog reads a JSON array of eventlog.Event from r and appends them,
// in order, to a freshly built EventLog for runID. Append's own validation
// (dense sequencing, parent closure, payload hash) runs on every entry, so
// a malformed recorded log is rejected here rather than silently replayed.
func LoadEventLog(r io.Reader, runID uint64) (*eventlog.EventLog, error) {
	var events []eventlog.Event
	if err := json.NewDecoder(r).Decode(&events); err != nil {
		return nil, fmt.Errorf("replay: decoding event log: %w", err)
	}

	log := eventlog.New(runID)
	for _, e := range events {
		if err := log.Append(e); err != nil {
			return nil, fmt.Errorf("replay: loading event %d: %w", e.ID.Sequence, err)
		}
	}
	return log, nil
}

// LoadEventLogFromFile reads and validates an event log from path.
func LoadEventLogFromFile(path string, runID uint64) (*eventlog.EventLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: opening %s: %w", path, err)
	}
	defer f.Close()
	return LoadEventLog(f, runID)
}

// FileReport is the outcome of replaying a log loaded from disk.
type FileReport struct {
	Verification VerificationReport
	Diverged     bool
	StateHash    string
}

// ReplayFile loads the event log at path and replays it to completion,
// returning both the payload-hash verification report and whether
// structural divergence was observed during the fold.
func ReplayFile(path string, runID uint64) (FileReport, error) {
	log, err := LoadEventLogFromFile(path, runID)
	if err != nil {
		return FileReport{}, err
	}

	verification, err := Verify(log)
	if err != nil {
		return FileReport{}, err
	}

	engine := New(log)
	final, err := engine.ReplayAll()
	if err != nil {
		return FileReport{}, err
	}

	return FileReport{
		Verification: verification,
		Diverged:     engine.Diverged(),
		StateHash:    final.Hash().String(),
	}, nil
}
