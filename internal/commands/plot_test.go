package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datalogger-plots/internal/config"
)

func writeCSV(t *testing.T, dir, name string, seconds int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Date;Heure;Temp_1;Tension_A;Courant_A;Commentaire\n")
	start := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	for s := 0; s < seconds; s++ {
		ts := start.Add(time.Duration(s) * time.Second)
		for k := 0; k < 10; k++ {
			fmt.Fprintf(&b, "%s;%s;21,5;%d;;x\n", ts.Format("02/01/2006"), ts.Format("15:04:05"), 230+k)
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func parsePlot(t *testing.T, args ...string) PlotOptions {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	cmd := SetupPlotCommand()
	require.NoError(t, cmd.Parse(args))
	return ParsePlotOptions(cmd)
}

func TestParsePlotOptionsOverridesOnlySetFlags(t *testing.T) {
	opts := parsePlot(t, "--input=a.csv", "--smoothing=0", "--markers=false")

	cfg := config.Default()
	cfg.Pipeline.TickPolicy = "default"
	require.NoError(t, opts.apply(cfg))

	assert.Equal(t, 0, cfg.Pipeline.SmoothingWindow)
	assert.False(t, cfg.Pipeline.Markers)
	assert.Equal(t, "default", cfg.Pipeline.TickPolicy)
	assert.Equal(t, "pdf", cfg.Export.Format)

	opts = parsePlot(t, "--input=a.csv", "--format=svg")
	assert.Error(t, opts.apply(config.Default()))
}

func TestPlotCommandWritesPDF(t *testing.T) {
	dir := t.TempDir()
	input := writeCSV(t, dir, "essai.csv", 300)

	require.NoError(t, PlotCommand(parsePlot(t, "--input="+input)))

	data, err := os.ReadFile(filepath.Join(dir, "essai_plots.pdf"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}

func TestPlotCommandGlobAndPNG(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "a/run1.csv", 30)
	writeCSV(t, dir, "b/c/run2.csv", 30)
	out := filepath.Join(dir, "out")

	opts := parsePlot(t, "--input="+filepath.Join(dir, "**", "*.csv"), "--output-dir="+out, "--format=png")
	require.NoError(t, PlotCommand(opts))

	for _, name := range []string{"run1_Temp_1.png", "run1_Tension_A.png", "run2_Temp_1.png", "run2_Tension_A.png"} {
		assert.FileExists(t, filepath.Join(out, name))
	}
	// Courant_A has no values and gets no chart.
	assert.NoFileExists(t, filepath.Join(out, "run1_Courant_A.png"))
}

func TestPlotCommandErrors(t *testing.T) {
	dir := t.TempDir()

	assert.Error(t, PlotCommand(parsePlot(t)))
	assert.Error(t, PlotCommand(parsePlot(t, "--input="+filepath.Join(dir, "missing.csv"))))
	assert.Error(t, PlotCommand(parsePlot(t, "--input="+filepath.Join(dir, "*.csv"))))

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("Date;Heure;Temp\nx;y;1\n"), 0o644))
	err := PlotCommand(parsePlot(t, "--input="+bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no timestamped data")

	input := writeCSV(t, dir, "ok.csv", 10)
	assert.Error(t, PlotCommand(parsePlot(t, "--input="+input, "--start=later")))
}

func TestPlotCommandNothingInRange(t *testing.T) {
	dir := t.TempDir()
	input := writeCSV(t, dir, "essai.csv", 10)

	require.NoError(t, PlotCommand(parsePlot(t, "--input="+input, "--start=2026-10-19")))
	assert.NoFileExists(t, filepath.Join(dir, "essai_plots.pdf"))
}

func TestPlotCommandWindowWithoutStart(t *testing.T) {
	// Two minutes of data; Courant_A only reads during the first 20 seconds.
	var b strings.Builder
	b.WriteString("Date;Heure;Temp_1;Courant_A\n")
	start := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	for s := 0; s < 120; s++ {
		ts := start.Add(time.Duration(s) * time.Second)
		courant := ""
		if s < 20 {
			courant = "0,5"
		}
		fmt.Fprintf(&b, "%s;%s;21,5;%s\n", ts.Format("02/01/2006"), ts.Format("15:04:05"), courant)
	}

	tests := []struct {
		name        string
		args        []string
		wantCourant bool
	}{
		{"whole file", nil, true},
		{"last 30s of the recording", []string{"--window=30s"}, false},
		{"30s before end", []string{"--window=30s", "--end=2026-10-18T10:00:15"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			input := filepath.Join(dir, "run.csv")
			require.NoError(t, os.WriteFile(input, []byte(b.String()), 0o644))

			args := append([]string{"--input=" + input, "--format=png"}, tt.args...)
			require.NoError(t, PlotCommand(parsePlot(t, args...)))

			assert.FileExists(t, filepath.Join(dir, "run_Temp_1.png"))
			if tt.wantCourant {
				assert.FileExists(t, filepath.Join(dir, "run_Courant_A.png"))
			} else {
				assert.NoFileExists(t, filepath.Join(dir, "run_Courant_A.png"))
			}
		})
	}
}

func TestTimeBounds(t *testing.T) {
	start, end, span, err := timeBounds("2026-10-18T10:00:00", "", "10m")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 10, 18, 10, 10, 0, 0, time.UTC), end)
	assert.Equal(t, 10*time.Minute, span)

	start, end, _, err = timeBounds("", "", "")
	require.NoError(t, err)
	assert.True(t, start.IsZero())
	assert.True(t, end.IsZero())

	_, _, _, err = timeBounds("", "", "-5m")
	assert.Error(t, err)
	_, _, _, err = timeBounds("", "someday", "")
	assert.Error(t, err)
}
