// Package pipeline runs the whole chart preparation on a parsed dataset:
// time-range filter, classification, resampling and chart building. It keeps
// no state between runs.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"datalogger-plots/internal/channels"
	"datalogger-plots/internal/config"
	"datalogger-plots/internal/logging"
	"datalogger-plots/internal/monitoring"
	"datalogger-plots/internal/parser"
	"datalogger-plots/internal/render"
	"datalogger-plots/internal/resample"
)

// ErrUnknownChannel is returned when the requested channel is not classified.
var ErrUnknownChannel = errors.New("unknown channel")

// Mode selects the terminal export of a run.
type Mode int

const (
	// Batch renders every classified channel for a multi-page document.
	Batch Mode = iota
	// Interactive renders a single selected channel.
	Interactive
)

func (m Mode) String() string {
	if m == Interactive {
		return "interactive"
	}
	return "batch"
}

// Options is everything that varies between runs.
type Options struct {
	Mode            Mode
	SmoothingWindow int
	Start           time.Time // zero means open
	End             time.Time // zero means open
	Channel         string    // required in Interactive mode
	Policy          channels.Policy
	Style           render.Style
}

// OptionsFromConfig maps the pipeline section of the configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	ticks, err := render.ParseTickPolicy(cfg.Pipeline.TickPolicy)
	if err != nil {
		return Options{}, err
	}

	policy := channels.FirstMatch
	if cfg.Pipeline.AllMatches {
		policy = channels.AllMatches
	}

	return Options{
		Mode:            Batch,
		SmoothingWindow: cfg.Pipeline.SmoothingWindow,
		Policy:          policy,
		Style: render.Style{
			Ticks:          ticks,
			Markers:        cfg.Pipeline.Markers,
			DateAnnotation: cfg.Pipeline.DateAnnotation,
		},
	}, nil
}

// Result is the outcome of one run.
type Result struct {
	Charts         []render.Chart
	Classification channels.Classification
	Skipped        []string
	Records        int
}

// Titles lists chart titles in render order.
func (r *Result) Titles() []string {
	out := make([]string, len(r.Charts))
	for i, c := range r.Charts {
		out[i] = c.Title()
	}
	return out
}

// Pipeline carries the collaborators shared by runs.
type Pipeline struct {
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// New creates a pipeline. Both arguments may be nil.
func New(logger *logging.Logger, metrics *monitoring.Metrics) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		logger:  logger.Named("pipeline"),
		metrics: metrics,
	}
}

// Run prepares the charts for ds according to opts.
func (p *Pipeline) Run(ds *parser.Dataset, opts Options) (*Result, error) {
	res, err := p.run(ds, opts)
	if p.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		p.metrics.PipelineRuns.WithLabelValues(opts.Mode.String(), status).Inc()
	}
	return res, err
}

func (p *Pipeline) run(ds *parser.Dataset, opts Options) (*Result, error) {
	if ds == nil {
		return nil, parser.ErrNoTimestamps
	}
	if opts.SmoothingWindow < 0 {
		return nil, fmt.Errorf("%w: %d", resample.ErrInvalidWindow, opts.SmoothingWindow)
	}
	if opts.Mode == Interactive {
		if strings.TrimSpace(opts.Channel) == "" {
			return nil, fmt.Errorf("%w: interactive mode needs a channel", ErrUnknownChannel)
		}
		if !ds.HasChannel(opts.Channel) {
			return nil, fmt.Errorf("%w: %s not in %s", ErrUnknownChannel, opts.Channel, ds.Source)
		}
	}

	if !opts.Start.IsZero() || !opts.End.IsZero() {
		ds = ds.Between(opts.Start, opts.End)
	}

	res := &Result{
		Classification: channels.Classify(ds.Channels, opts.Policy),
		Records:        len(ds.Records),
	}

	selected := res.Classification.Ordered()
	if opts.Mode == Interactive {
		selected = pick(selected, opts.Channel)
		if len(selected) == 0 {
			return nil, fmt.Errorf("%w: %s is not plottable", ErrUnknownChannel, opts.Channel)
		}
	}

	for _, ch := range selected {
		raw := ds.Series(ch.Name)
		smoothed := false

		if ch.Category.HighFrequency() {
			var err error
			raw, err = resample.Resample(raw, opts.SmoothingWindow)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", ch.Name, err)
			}
			smoothed = opts.SmoothingWindow > 1
		}

		chart, ok := render.NewChart(ch, raw, smoothed)
		if !ok {
			p.logger.Debug("skipping channel without data",
				zap.String("channel", ch.Name),
				zap.Stringer("category", ch.Category))
			res.Skipped = append(res.Skipped, ch.Name)
			if p.metrics != nil {
				p.metrics.ChannelsSkipped.Inc()
			}
			continue
		}

		res.Charts = append(res.Charts, chart)
		if p.metrics != nil {
			p.metrics.ChartsRendered.WithLabelValues(ch.Category.String()).Inc()
		}
	}

	p.logger.Debug("pipeline run complete",
		zap.Stringer("mode", opts.Mode),
		zap.Int("records", res.Records),
		zap.Int("charts", len(res.Charts)),
		zap.Int("skipped", len(res.Skipped)))

	return res, nil
}

// pick keeps the first classification of a channel.
func pick(all []channels.Channel, name string) []channels.Channel {
	for _, ch := range all {
		if ch.Name == name {
			return []channels.Channel{ch}
		}
	}
	return nil
}
