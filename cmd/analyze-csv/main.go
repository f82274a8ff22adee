package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"datalogger-plots/internal/channels"
	"datalogger-plots/internal/parser"
	"datalogger-plots/internal/series"
)

func main() {
	inputFile := flag.String("input", "", "Path to the datalogger CSV file to analyze")
	sampleSize := flag.Int("samples", 10, "Number of sample rows to display")
	delimiter := flag.String("delimiter", ";", "Field delimiter")
	flag.Parse()

	if *inputFile == "" {
		fmt.Println("Error: Please specify an input file with --input")
		os.Exit(1)
	}
	if len([]rune(*delimiter)) != 1 {
		fmt.Println("Error: --delimiter must be a single character")
		os.Exit(1)
	}

	charset, err := sniffCharset(*inputFile)
	if err != nil {
		fmt.Printf("Error opening file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Analyzing file: %s\n", *inputFile)
	fmt.Printf("Detected charset: %s\n", charset)
	fmt.Printf("Showing %d sample rows:\n\n", *sampleSize)

	var (
		names   []string
		samples []parser.Record
	)
	csvParser := parser.NewCSVParser(*inputFile).WithFilterOptions(parser.FilterOptions{
		SampleRate:    1,
		MaxRecords:    *sampleSize,
		Delimiter:     []rune(*delimiter)[0],
		DetectCharset: true,
	})
	stats, err := csvParser.StreamRecords(func(header []string, rec parser.Record) error {
		names = header
		samples = append(samples, rec)
		return nil
	})
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("RAW DATA SAMPLES:")
	fmt.Println(strings.Repeat("-", 20+16*len(names)))
	fmt.Printf("%-20s", "TIMESTAMP")
	for _, n := range names {
		fmt.Printf(" %-15s", truncate(n, 15))
	}
	fmt.Println()
	fmt.Println(strings.Repeat("-", 20+16*len(names)))

	for _, rec := range samples {
		fmt.Printf("%-20s", rec.Timestamp.Format("02/01/2006 15:04:05"))
		for _, v := range rec.Values {
			if series.IsMissing(v) {
				fmt.Printf(" %-15s", "-")
				continue
			}
			fmt.Printf(" %-15g", v)
		}
		fmt.Println()
	}
	fmt.Printf("\n%d rows read, %d without timestamp, %d empty\n",
		stats.RowsRead, stats.DroppedTimestamp, stats.DroppedEmpty)

	fmt.Println("\nCHANNEL CLASSIFICATION:")
	fmt.Println("---------------------------------------------------------------")
	class := channels.Classify(names, channels.FirstMatch)
	for _, ch := range class.Ordered() {
		treatment := "plotted as is"
		if ch.Category.HighFrequency() {
			treatment = "per-second mean, then smoothed"
		}
		fmt.Printf("%-20s %-12s %s\n", ch.Name, ch.Category, treatment)
	}
	for _, n := range class.Excluded {
		fmt.Printf("%-20s %-12s %s\n", n, "-", "ignored")
	}

	fmt.Println("\nVALUE RANGES (sample rows):")
	fmt.Println("---------------------------------------------------------------")
	for i, n := range names {
		lo, hi, count := findMinMax(samples, i)
		if count == 0 {
			fmt.Printf("%-20s no values\n", n)
			continue
		}
		fmt.Printf("%-20s Min=%g, Max=%g (%d values)\n", n, lo, hi, count)
	}

	fmt.Println("\nSAMPLING:")
	fmt.Println("---------------------------------------------------------------")
	fmt.Println(describeRate(samples))
}

// sniffCharset reports the encoding guessed from the start of the file.
func sniffCharset(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 64*1024)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	return parser.DetectCharset(buf[:n]), nil
}

func findMinMax(records []parser.Record, col int) (float64, float64, int) {
	lo, hi := math.Inf(1), math.Inf(-1)
	count := 0
	for _, rec := range records {
		v := rec.Values[col]
		if series.IsMissing(v) {
			continue
		}
		count++
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, count
}

// describeRate estimates rows per second from consecutive sample rows.
func describeRate(records []parser.Record) string {
	if len(records) < 2 {
		return "Not enough rows to estimate the sampling rate"
	}
	span := records[len(records)-1].Timestamp.Sub(records[0].Timestamp)
	if span <= 0 {
		return fmt.Sprintf("All %d sample rows share one timestamp: high-frequency export, widen --samples", len(records))
	}
	perSecond := float64(len(records)-1) / span.Seconds()
	return fmt.Sprintf("About %.1f rows per second over %s", perSecond, span.Round(time.Second))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}
