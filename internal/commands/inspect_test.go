package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datalogger-plots/internal/metrics"
)

func parseInspect(t *testing.T, args ...string) InspectOptions {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	cmd := SetupInspectCommand()
	require.NoError(t, cmd.Parse(args))
	return ParseInspectOptions(cmd)
}

func TestInspectCommandJSON(t *testing.T) {
	dir := t.TempDir()
	input := writeCSV(t, dir, "essai.csv", 5)
	out := filepath.Join(dir, "report.json")

	require.NoError(t, InspectCommand(parseInspect(t, "--input="+input, "--format=json", "--output="+out)))

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var summary metrics.Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, 50, summary.DataPoints)
	require.Len(t, summary.Channels, 4)

	volt, err := summary.Channel("Tension_A")
	require.NoError(t, err)
	assert.Equal(t, "voltage", volt.Category)
	assert.Equal(t, 230.0, volt.Min)
	assert.Equal(t, 239.0, volt.Max)
}

func TestInspectStreamingMatches(t *testing.T) {
	dir := t.TempDir()
	input := writeCSV(t, dir, "essai.csv", 5)

	for _, stream := range []string{"--stream=false", "--stream=true"} {
		out := filepath.Join(dir, "report"+stream+".csv")
		require.NoError(t, InspectCommand(parseInspect(t, "--input="+input, "--format=csv", stream, "--output="+out)))
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Contains(t, string(data), "DataPoints,50\n")
		assert.Contains(t, string(data), "Courant_A,current,0,50,")
	}
}

func TestGenerateReport(t *testing.T) {
	summary := metrics.Summary{
		DataPoints: 2,
		Channels: []metrics.ChannelStats{
			{Name: "Temp", Category: "temperature", Classified: true, Count: 2, Min: 1, Max: 3, Mean: 2},
			{Name: "Note"},
		},
	}

	report := generateReport(summary, "/data/essai.csv")
	assert.Contains(t, report, "Input File: essai.csv")
	assert.Contains(t, report, "Temp [temperature]")
	assert.Contains(t, report, "Average: 2.0000")

	ignored := report[strings.Index(report, "IGNORED CHANNELS"):]
	assert.Contains(t, ignored, "Note")

	out, err := generateOutput(summary, InspectOptions{Channel: "Temp"})
	require.NoError(t, err)
	assert.Contains(t, out, "===== TEMP =====")

	_, err = generateOutput(summary, InspectOptions{Channel: "Nope"})
	assert.Error(t, err)
}

func TestInspectCommandRequiresInput(t *testing.T) {
	assert.Error(t, InspectCommand(parseInspect(t)))
}
