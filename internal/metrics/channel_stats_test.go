package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datalogger-plots/internal/channels"
	"datalogger-plots/internal/parser"
)

const statsCSV = `Date;Heure;Temp;Tension;Note
18/10/2026;10:00:02;20;12;
18/10/2026;10:00:00;22;;1
18/10/2026;10:00:01;21;14;
`

func TestCalculateMetrics(t *testing.T) {
	ds, err := parser.NewCSVParser("stats.csv").ParseReader(strings.NewReader(statsCSV))
	require.NoError(t, err)

	summary := NewStatsCalculator(ds).CalculateMetrics()

	assert.Equal(t, 3, summary.DataPoints)
	assert.Equal(t, 2*time.Second, summary.TimeRange.Duration())

	temp, err := summary.Channel("Temp")
	require.NoError(t, err)
	assert.Equal(t, "temperature", temp.Category)
	assert.True(t, temp.Classified)
	assert.Equal(t, 3, temp.Count)
	assert.Equal(t, 20.0, temp.Min)
	assert.Equal(t, 22.0, temp.Max)
	assert.InDelta(t, 21.0, temp.Mean, 1e-12)

	volt, err := summary.Channel("Tension")
	require.NoError(t, err)
	assert.Equal(t, 2, volt.Count)
	assert.Equal(t, 1, volt.Missing)
	assert.InDelta(t, 13.0, volt.Mean, 1e-12)

	note, err := summary.Channel("Note")
	require.NoError(t, err)
	assert.False(t, note.Classified)
	assert.Empty(t, note.Category)

	_, err = summary.Channel("Nope")
	assert.Error(t, err)
}

func TestStreamCalculateMetricsMatchesInMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	require.NoError(t, os.WriteFile(path, []byte(statsCSV), 0o644))

	streamed, err := StreamCalculateMetrics(parser.NewCSVParser(path), channels.FirstMatch)
	require.NoError(t, err)

	ds, err := parser.NewCSVParser(path).Parse()
	require.NoError(t, err)
	inMemory := NewStatsCalculator(ds).CalculateMetrics()

	assert.Equal(t, inMemory.Channels, streamed.Channels)
	assert.Equal(t, inMemory.TimeRange, streamed.TimeRange)
	assert.Equal(t, 3, streamed.Load.RowsRead)
}
