package replay_test

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticpayload/oracle.omen/pkg/eventlog"
	"github.com/staticpayload/oracle.omen/pkg/replay"
)

func buildRecordedLog(t *testing.T) []eventlog.Event {
	t.Helper()
	log := eventlog.New(1)
	var events []eventlog.Event
	for i := uint64(0); i < 3; i++ {
		events = append(events, appendEvent(t, log, i, map[string]interface{}{"n": i}))
	}
	return events
}

func TestLoadEventLog_RoundTripsThroughJSON(t *testing.T) {
	events := buildRecordedLog(t)
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(events))

	log, err := replay.LoadEventLog(&buf, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), log.Len())
}

func TestLoadEventLog_RejectsNonDenseSequence(t *testing.T) {
	events := buildRecordedLog(t)
	events = events[1:]
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(events))

	_, err := replay.LoadEventLog(&buf, 1)
	assert.Error(t, err)
}

func TestReplayFile_ReportsCleanVerification(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/log.json"

	events := buildRecordedLog(t)
	data, err := json.Marshal(events)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	report, err := replay.ReplayFile(path, 1)
	require.NoError(t, err)
	assert.True(t, report.Verification.IsValid())
	assert.False(t, report.Diverged)
	assert.NotEmpty(t, report.StateHash)
}
