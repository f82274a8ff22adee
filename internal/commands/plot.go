package commands

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"datalogger-plots/internal/config"
	"datalogger-plots/internal/export"
	"datalogger-plots/internal/logging"
	"datalogger-plots/internal/parser"
	"datalogger-plots/internal/pipeline"
)

// PlotOptions holds the options of the plot command.
type PlotOptions struct {
	// Input/output options
	Input      string
	OutputDir  string
	Format     string
	ConfigFile string

	// Time filtering options
	StartTime  string
	EndTime    string
	TimeWindow string

	// Chart options
	Smoothing  int
	Ticks      string
	Markers    bool
	DateLabel  bool
	AllMatches bool

	// flags given on the command line, which win over the configuration
	set map[string]bool
}

// SetupPlotCommand configures the plot command with all its flags
func SetupPlotCommand() *flag.FlagSet {
	plotCmd := flag.NewFlagSet("plot", flag.ExitOnError)

	// Input/output options
	plotCmd.String("input", "", "Datalogger CSV file or glob pattern (e.g. 'runs/**/*.csv')")
	plotCmd.String("output-dir", "", "Directory for the generated files (default: next to each input)")
	plotCmd.String("format", "pdf", "Output format: pdf (one page per channel) or png (one file per channel)")
	plotCmd.String("config", "", "YAML configuration file")

	// Time filtering options
	plotCmd.String("start", "", "Start time for filtering (format: YYYY-MM-DD[THH:MM:SS])")
	plotCmd.String("end", "", "End time for filtering (format: YYYY-MM-DD[THH:MM:SS])")
	plotCmd.String("window", "", "Time window to plot (e.g., 10m, 1h); from --start or up to the last sample")

	// Chart options
	plotCmd.Int("smoothing", 5, "Moving average window in seconds for Tension/Courant channels (0 = off)")
	plotCmd.String("ticks", "adaptive", "Time axis ticks: adaptive or default")
	plotCmd.Bool("markers", true, "Draw a marker on every point (--markers=false for a bare line)")
	plotCmd.Bool("date-label", false, "Stamp the date of the first sample on each chart")
	plotCmd.Bool("all-matches", false, "Plot a channel once per matching category")

	plotCmd.Usage = func() {
		fmt.Println(AppName + " - Plot datalogger channels to PDF or PNG")
		fmt.Println("\nUsage:")
		fmt.Println("  " + AppName + " plot [options]")
		fmt.Println("\nExamples:")
		fmt.Println("  # One PDF page per Temp/Tension/Courant channel")
		fmt.Println("  " + AppName + " plot --input=data/essai.csv")
		fmt.Println("\n  # Every export of a campaign, written to one directory")
		fmt.Println("  " + AppName + " plot --input='campagne/**/*.csv' --output-dir=out")
		fmt.Println("\n  # Ten minutes from 14:00, lighter smoothing")
		fmt.Println("  " + AppName + " plot --input=essai.csv --start=2026-10-18T14:00:00 --window=10m --smoothing=3")
		fmt.Println("\n  # PNG files with library ticks and markers")
		fmt.Println("  " + AppName + " plot --input=essai.csv --format=png --ticks=default --markers")
		fmt.Println("\nOptions:")
		plotCmd.PrintDefaults()
	}

	return plotCmd
}

// ParsePlotOptions parses command line flags into a structured options object
func ParsePlotOptions(cmd *flag.FlagSet) PlotOptions {
	set := make(map[string]bool)
	cmd.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	return PlotOptions{
		Input:      cmd.Lookup("input").Value.String(),
		OutputDir:  cmd.Lookup("output-dir").Value.String(),
		Format:     strings.ToLower(cmd.Lookup("format").Value.String()),
		ConfigFile: cmd.Lookup("config").Value.String(),
		StartTime:  cmd.Lookup("start").Value.String(),
		EndTime:    cmd.Lookup("end").Value.String(),
		TimeWindow: cmd.Lookup("window").Value.String(),
		Smoothing:  cmd.Lookup("smoothing").Value.(flag.Getter).Get().(int),
		Ticks:      cmd.Lookup("ticks").Value.String(),
		Markers:    cmd.Lookup("markers").Value.(flag.Getter).Get().(bool),
		DateLabel:  cmd.Lookup("date-label").Value.(flag.Getter).Get().(bool),
		AllMatches: cmd.Lookup("all-matches").Value.(flag.Getter).Get().(bool),
		set:        set,
	}
}

// apply lays explicitly set flags over the configuration.
func (o PlotOptions) apply(cfg *config.Config) error {
	if o.set["output-dir"] {
		cfg.Export.OutputDir = o.OutputDir
	}
	if o.set["format"] {
		cfg.Export.Format = o.Format
	}
	if o.set["smoothing"] {
		cfg.Pipeline.SmoothingWindow = o.Smoothing
	}
	if o.set["ticks"] {
		cfg.Pipeline.TickPolicy = o.Ticks
	}
	if o.set["markers"] {
		cfg.Pipeline.Markers = o.Markers
	}
	if o.set["date-label"] {
		cfg.Pipeline.DateAnnotation = o.DateLabel
	}
	if o.set["all-matches"] {
		cfg.Pipeline.AllMatches = o.AllMatches
	}
	return cfg.Validate()
}

// PlotCommand renders every matched input file.
func PlotCommand(options PlotOptions) error {
	if options.Input == "" {
		return fmt.Errorf("input file is required")
	}

	cfg, err := loadConfig(options.ConfigFile)
	if err != nil {
		return err
	}
	if err := options.apply(cfg); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("error creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	files, err := resolveInputs(options.Input)
	if err != nil {
		return err
	}

	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	opts.Start, opts.End, _, err = timeBounds(options.StartTime, options.EndTime, options.TimeWindow)
	if err != nil {
		return err
	}

	p := &plotter{
		cfg:      cfg,
		options:  options,
		base:     opts,
		logger:   logger,
		pipeline: pipeline.New(logger, nil),
	}

	for _, file := range files {
		if err := p.plotFile(file); err != nil {
			return err
		}
	}
	return nil
}

// resolveInputs expands a glob pattern, or checks a plain path exists.
func resolveInputs(input string) ([]string, error) {
	if !strings.ContainsAny(input, "*?[{") {
		if _, err := os.Stat(input); os.IsNotExist(err) {
			return nil, fmt.Errorf("input file does not exist: %s", input)
		}
		return []string{input}, nil
	}

	matches, err := doublestar.FilepathGlob(input, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid input pattern %q: %w", input, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no input file matches %s", input)
	}
	return matches, nil
}

type plotter struct {
	cfg      *config.Config
	options  PlotOptions
	base     pipeline.Options
	logger   *logging.Logger
	pipeline *pipeline.Pipeline
}

func (p *plotter) plotFile(file string) error {
	csvParser := parser.NewCSVParser(file).
		WithFilterOptions(parser.FilterOptions{
			SampleRate:    1,
			Delimiter:     p.cfg.DelimiterRune(),
			DetectCharset: p.cfg.Loader.DetectCharset,
		}).
		WithLogger(p.logger)

	if recordCount, err := csvParser.GetRecordCount(); err != nil {
		p.logger.Warn("couldn't estimate record count", zap.String("file", file), zap.Error(err))
	} else {
		fmt.Printf("Estimated records in %s: %d\n", file, recordCount)
	}

	fmt.Printf("Processing data from %s...\n", file)
	ds, err := csvParser.Parse()
	if err != nil {
		if errors.Is(err, parser.ErrNoTimestamps) {
			return fmt.Errorf("no timestamped data found in %s", file)
		}
		return fmt.Errorf("failed to parse CSV data: %w", err)
	}
	fmt.Printf("Successfully parsed %d records (%d dropped without timestamp)\n",
		len(ds.Records), ds.Stats.DroppedTimestamp)

	opts := p.base
	if opts.Start.IsZero() && p.options.TimeWindow != "" {
		// Window without a start: the last part of the recording.
		_, _, span, _ := timeBounds("", "", p.options.TimeWindow)
		_, last := ds.Span()
		if !opts.End.IsZero() {
			last = opts.End
		}
		opts.Start = last.Add(-span)
	}

	res, err := p.pipeline.Run(ds, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	if len(res.Charts) == 0 {
		fmt.Printf("No Temp, Tension or Courant data to plot in %s\n", file)
		return nil
	}

	dir := p.cfg.Export.OutputDir
	if dir == "" {
		dir = filepath.Dir(file)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	size := export.PageSize{Width: p.cfg.Export.WidthInches, Height: p.cfg.Export.HeightInches}

	switch strings.ToLower(p.cfg.Export.Format) {
	case "png":
		paths, err := export.SavePNGs(dir, export.Stem(file), res.Charts, opts.Style, size, p.logger)
		if err != nil {
			return err
		}
		fmt.Printf("Saved %d charts to %s\n", len(paths), dir)
	default:
		path := export.DocumentPath(file, dir)
		pages, err := export.SavePDF(path, res.Charts, opts.Style, size, p.logger)
		if err != nil {
			return err
		}
		fmt.Printf("Saved %d pages to %s\n", pages, path)
	}

	if len(res.Skipped) > 0 {
		fmt.Printf("Channels without data: %s\n", strings.Join(res.Skipped, ", "))
	}
	return nil
}
