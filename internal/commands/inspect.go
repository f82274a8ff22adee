package commands

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"datalogger-plots/internal/channels"
	"datalogger-plots/internal/metrics"
	"datalogger-plots/internal/parser"
)

// OutputFormat determines how the CLI results should be displayed
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatCSV  OutputFormat = "csv"
)

// InspectOptions holds the options of the inspect command.
type InspectOptions struct {
	// Input/output options
	InputFile  string
	OutputFile string
	Format     OutputFormat
	ConfigFile string

	// Processing options
	UseStreaming bool
	SampleRate   int
	MaxRecords   int
	AllMatches   bool

	// Time filtering options
	StartTime  string
	EndTime    string
	TimeWindow string

	// Single channel to report
	Channel string
}

// SetupInspectCommand configures the inspect command with all its flags
func SetupInspectCommand() *flag.FlagSet {
	inspectCmd := flag.NewFlagSet("inspect", flag.ExitOnError)

	// Input/output options
	inspectCmd.String("input", "", "Path to the datalogger CSV file")
	inspectCmd.String("output", "", "Path to save the report (optional)")
	inspectCmd.String("format", "text", "Output format: text, json, or csv")
	inspectCmd.String("config", "", "YAML configuration file")

	// Processing options
	inspectCmd.Bool("stream", false, "Use streaming mode for large files")
	inspectCmd.Int("sample", 1, "Process every Nth record (1 = all records)")
	inspectCmd.Int("max", 0, "Maximum records to process (0 = no limit)")
	inspectCmd.Bool("all-matches", false, "Classify a channel under every matching category")

	// Time filtering options
	inspectCmd.String("start", "", "Start time for filtering (format: YYYY-MM-DD[THH:MM:SS])")
	inspectCmd.String("end", "", "End time for filtering (format: YYYY-MM-DD[THH:MM:SS])")
	inspectCmd.String("window", "", "Time window after --start (e.g., 1h, 30m)")

	inspectCmd.String("channel", "", "Report a single channel")

	inspectCmd.Usage = func() {
		fmt.Println(AppName + " - Summarize a datalogger file")
		fmt.Println("\nUsage:")
		fmt.Println("  " + AppName + " inspect [options]")
		fmt.Println("\nExamples:")
		fmt.Println("  # Basic usage")
		fmt.Println("  " + AppName + " inspect --input=data/essai.csv")
		fmt.Println("\n  # One channel in JSON")
		fmt.Println("  " + AppName + " inspect --input=essai.csv --channel=Temp_1 --format=json")
		fmt.Println("\n  # Large file")
		fmt.Println("  " + AppName + " inspect --input=big.csv.gz --stream --sample=10")
		fmt.Println("\nOptions:")
		inspectCmd.PrintDefaults()
	}

	return inspectCmd
}

// ParseInspectOptions parses command line flags into a structured options object
func ParseInspectOptions(cmd *flag.FlagSet) InspectOptions {
	var outputFormat OutputFormat
	switch strings.ToLower(cmd.Lookup("format").Value.String()) {
	case "json":
		outputFormat = FormatJSON
	case "csv":
		outputFormat = FormatCSV
	default:
		outputFormat = FormatText
	}

	return InspectOptions{
		InputFile:    cmd.Lookup("input").Value.String(),
		OutputFile:   cmd.Lookup("output").Value.String(),
		Format:       outputFormat,
		ConfigFile:   cmd.Lookup("config").Value.String(),
		UseStreaming: cmd.Lookup("stream").Value.(flag.Getter).Get().(bool),
		SampleRate:   cmd.Lookup("sample").Value.(flag.Getter).Get().(int),
		MaxRecords:   cmd.Lookup("max").Value.(flag.Getter).Get().(int),
		AllMatches:   cmd.Lookup("all-matches").Value.(flag.Getter).Get().(bool),
		StartTime:    cmd.Lookup("start").Value.String(),
		EndTime:      cmd.Lookup("end").Value.String(),
		TimeWindow:   cmd.Lookup("window").Value.String(),
		Channel:      cmd.Lookup("channel").Value.String(),
	}
}

// InspectCommand prints the channel statistics of one file.
func InspectCommand(options InspectOptions) error {
	if options.InputFile == "" {
		return fmt.Errorf("input file is required")
	}
	if _, err := os.Stat(options.InputFile); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", options.InputFile)
	}

	cfg, err := loadConfig(options.ConfigFile)
	if err != nil {
		return err
	}

	filterOptions, err := buildFilterOptions(options)
	if err != nil {
		return fmt.Errorf("error configuring filters: %w", err)
	}
	filterOptions.Delimiter = cfg.DelimiterRune()
	filterOptions.DetectCharset = cfg.Loader.DetectCharset

	csvParser := parser.NewCSVParser(options.InputFile).WithFilterOptions(filterOptions)

	fileSize, err := csvParser.GetFileSize()
	if err != nil {
		return fmt.Errorf("error getting file size: %w", err)
	}
	if fileSize > 100*1024*1024 && !options.UseStreaming {
		fmt.Printf("Note: Processing a large file (%.2f MB). Consider using --stream for better performance.\n",
			float64(fileSize)/(1024*1024))
	}

	policy := channels.FirstMatch
	if options.AllMatches || cfg.Pipeline.AllMatches {
		policy = channels.AllMatches
	}

	var summary metrics.Summary
	if options.UseStreaming {
		summary, err = metrics.StreamCalculateMetrics(csvParser, policy)
		if err != nil {
			return fmt.Errorf("failed to process CSV data in streaming mode: %w", err)
		}
	} else {
		ds, err := csvParser.Parse()
		if err != nil {
			return fmt.Errorf("failed to parse CSV data: %w", err)
		}
		summary = metrics.NewStatsCalculator(ds).WithPolicy(policy).CalculateMetrics()
	}

	output, err := generateOutput(summary, options)
	if err != nil {
		return fmt.Errorf("failed to generate output: %w", err)
	}

	if options.OutputFile == "" {
		fmt.Println(output)
		return nil
	}
	if err := os.WriteFile(options.OutputFile, []byte(output), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Printf("Results saved to %s\n", options.OutputFile)
	return nil
}

// buildFilterOptions converts CLI options into parser filter options
func buildFilterOptions(options InspectOptions) (parser.FilterOptions, error) {
	filterOptions := parser.FilterOptions{
		SampleRate: options.SampleRate,
		MaxRecords: options.MaxRecords,
	}

	start, end, _, err := timeBounds(options.StartTime, options.EndTime, options.TimeWindow)
	if err != nil {
		return filterOptions, err
	}
	filterOptions.StartTime = ptr(start)
	filterOptions.EndTime = ptr(end)
	return filterOptions, nil
}

// generateOutput formats the summary, or a single channel of it.
func generateOutput(summary metrics.Summary, options InspectOptions) (string, error) {
	if options.Channel != "" {
		stats, err := summary.Channel(options.Channel)
		if err != nil {
			return "", err
		}
		switch options.Format {
		case FormatJSON:
			return marshalJSON(stats)
		case FormatCSV:
			return generateCSVReport(metrics.Summary{Channels: []metrics.ChannelStats{stats}}, false), nil
		default:
			var sb strings.Builder
			sb.WriteString(fmt.Sprintf("===== %s =====\n", strings.ToUpper(stats.Name)))
			writeChannelText(&sb, stats)
			return sb.String(), nil
		}
	}

	switch options.Format {
	case FormatJSON:
		return marshalJSON(summary)
	case FormatCSV:
		return generateCSVReport(summary, true), nil
	default:
		return generateReport(summary, options.InputFile), nil
	}
}

func marshalJSON(v any) (string, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(jsonData), nil
}

// generateCSVReport writes one row per channel, after the file level rows.
func generateCSVReport(summary metrics.Summary, withHeader bool) string {
	var sb strings.Builder

	if withHeader {
		sb.WriteString("Metric,Value\n")
		sb.WriteString(fmt.Sprintf("DataPoints,%d\n", summary.DataPoints))
		sb.WriteString(fmt.Sprintf("RowsRead,%d\n", summary.Load.RowsRead))
		sb.WriteString(fmt.Sprintf("DroppedTimestamp,%d\n", summary.Load.DroppedTimestamp))
		sb.WriteString(fmt.Sprintf("DroppedEmpty,%d\n", summary.Load.DroppedEmpty))
		sb.WriteString(fmt.Sprintf("StartTime,%s\n", summary.TimeRange.StartTime.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("EndTime,%s\n", summary.TimeRange.EndTime.Format(time.RFC3339)))
		sb.WriteString("\n")
	}

	sb.WriteString("Channel,Category,Count,Missing,Min,Max,Mean\n")
	for _, c := range summary.Channels {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%.6f,%.6f,%.6f\n",
			c.Name, c.Category, c.Count, c.Missing, c.Min, c.Max, c.Mean))
	}
	return sb.String()
}

// generateReport creates a human-readable report of a datalogger file
func generateReport(summary metrics.Summary, inputFile string) string {
	var sb strings.Builder

	sb.WriteString("========== DATALOGGER FILE REPORT ==========\n")
	sb.WriteString(fmt.Sprintf("Input File: %s\n", filepath.Base(inputFile)))
	sb.WriteString(fmt.Sprintf("Data Points: %d\n", summary.DataPoints))
	sb.WriteString(fmt.Sprintf("Rows Read: %d (%d without timestamp, %d empty)\n",
		summary.Load.RowsRead, summary.Load.DroppedTimestamp, summary.Load.DroppedEmpty))
	sb.WriteString(fmt.Sprintf("Time Range: %s to %s (%s)\n\n",
		summary.TimeRange.StartTime.Format("02/01/2006 15:04:05"),
		summary.TimeRange.EndTime.Format("02/01/2006 15:04:05"),
		summary.TimeRange.Duration()))

	var plotted, ignored []metrics.ChannelStats
	for _, c := range summary.Channels {
		if c.Classified {
			plotted = append(plotted, c)
		} else {
			ignored = append(ignored, c)
		}
	}

	sb.WriteString("PLOTTED CHANNELS\n")
	sb.WriteString("----------------\n")
	if len(plotted) == 0 {
		sb.WriteString("None\n")
	}
	for _, c := range plotted {
		sb.WriteString(fmt.Sprintf("%s [%s]\n", c.Name, c.Category))
		writeChannelText(&sb, c)
	}

	sb.WriteString("\nIGNORED CHANNELS\n")
	sb.WriteString("----------------\n")
	if len(ignored) == 0 {
		sb.WriteString("None\n")
	}
	for _, c := range ignored {
		sb.WriteString(fmt.Sprintf("%s\n", c.Name))
	}

	return sb.String()
}

func writeChannelText(sb *strings.Builder, c metrics.ChannelStats) {
	if c.Count == 0 {
		sb.WriteString(fmt.Sprintf("  No data (%d missing)\n", c.Missing))
		return
	}
	sb.WriteString(fmt.Sprintf("  Samples: %d (%d missing)\n", c.Count, c.Missing))
	sb.WriteString(fmt.Sprintf("  Minimum: %.4f\n", c.Min))
	sb.WriteString(fmt.Sprintf("  Maximum: %.4f\n", c.Max))
	sb.WriteString(fmt.Sprintf("  Average: %.4f\n", c.Mean))
}
