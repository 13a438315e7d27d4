package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/staticpayload/oracle.omen/pkg/eventlog"
)

// loadEventLog reads a JSON array of eventlog.Event (as written by
// saveEventLog) and replays it into a fresh EventLog, so every validation
// Append performs — dense sequence, parent closure, payload hash — runs
// again on load rather than trusting the file blindly.
func loadEventLog(path string) (*eventlog.EventLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var events []eventlog.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%s: empty event log", path)
	}

	log := eventlog.New(events[0].ID.RunID)
	for i, ev := range events {
		if err := log.Append(ev); err != nil {
			return nil, fmt.Errorf("%s: event %d: %w", path, i, err)
		}
	}
	return log, nil
}

// saveEventLog writes every event in log, in order, as a JSON array. This
// is a CLI debug/interchange format, not a durability guarantee: the core
// never reads or writes it on its own.
func saveEventLog(path string, log *eventlog.EventLog) error {
	data, err := json.MarshalIndent(log.Events(0, log.Len()), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding event log: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
