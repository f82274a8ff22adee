package metrics

import (
	"fmt"
	"math"
	"time"

	"datalogger-plots/internal/channels"
	"datalogger-plots/internal/parser"
	"datalogger-plots/internal/series"
)

// ChannelStats summarizes one column of a datalogger file.
type ChannelStats struct {
	Name       string
	Category   string
	Classified bool
	Count      int
	Missing    int
	Min        float64
	Max        float64
	Mean       float64
}

type TimeRange struct {
	StartTime time.Time
	EndTime   time.Time
}

// Duration returns the covered time span.
func (r TimeRange) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Summary is the report produced by the inspect command.
type Summary struct {
	Channels   []ChannelStats
	TimeRange  TimeRange
	DataPoints int
	Load       parser.LoadStats
}

// Channel returns the statistics for one column.
func (s Summary) Channel(name string) (ChannelStats, error) {
	for _, c := range s.Channels {
		if c.Name == name {
			return c, nil
		}
	}
	return ChannelStats{}, fmt.Errorf("unknown channel: %s", name)
}

type StatsCalculator struct {
	dataset *parser.Dataset
	policy  channels.Policy
}

func NewStatsCalculator(ds *parser.Dataset) *StatsCalculator {
	return &StatsCalculator{
		dataset: ds,
		policy:  channels.FirstMatch,
	}
}

func (c *StatsCalculator) WithPolicy(policy channels.Policy) *StatsCalculator {
	c.policy = policy
	return c
}

func (c *StatsCalculator) CalculateMetrics() Summary {
	tracker := newStatsTracker(c.dataset.Channels, c.policy)
	for _, rec := range c.dataset.Records {
		tracker.processRecord(rec)
	}

	summary := tracker.finalize()
	summary.Load = c.dataset.Stats
	return summary
}

// StreamCalculateMetrics folds a file into a Summary without loading it.
func StreamCalculateMetrics(p *parser.CSVParser, policy channels.Policy) (Summary, error) {
	var tracker *statsTracker

	stats, err := p.StreamRecords(func(names []string, rec parser.Record) error {
		if tracker == nil {
			tracker = newStatsTracker(names, policy)
		}
		tracker.processRecord(rec)
		return nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("streaming calculation error: %w", err)
	}
	if tracker == nil {
		return Summary{Load: stats}, nil
	}

	summary := tracker.finalize()
	summary.Load = stats
	return summary, nil
}

type channelTracker struct {
	sum     float64
	min     float64
	max     float64
	count   int
	missing int
}

type statsTracker struct {
	names          []string
	classification channels.Classification
	perChannel     []channelTracker

	startTime  time.Time
	endTime    time.Time
	dataPoints int
}

func newStatsTracker(names []string, policy channels.Policy) *statsTracker {
	t := &statsTracker{
		names:          names,
		classification: channels.Classify(names, policy),
		perChannel:     make([]channelTracker, len(names)),
	}
	for i := range t.perChannel {
		t.perChannel[i].min = math.MaxFloat64
		t.perChannel[i].max = -math.MaxFloat64
	}
	return t
}

func (t *statsTracker) processRecord(rec parser.Record) {
	// Streamed records are in file order, so track both bounds.
	if t.dataPoints == 0 || rec.Timestamp.Before(t.startTime) {
		t.startTime = rec.Timestamp
	}
	if t.dataPoints == 0 || rec.Timestamp.After(t.endTime) {
		t.endTime = rec.Timestamp
	}
	t.dataPoints++

	for i, v := range rec.Values {
		if i >= len(t.perChannel) {
			break
		}
		ct := &t.perChannel[i]
		if series.IsMissing(v) {
			ct.missing++
			continue
		}
		ct.count++
		ct.sum += v
		if v < ct.min {
			ct.min = v
		}
		if v > ct.max {
			ct.max = v
		}
	}
}

func (t *statsTracker) finalize() Summary {
	summary := Summary{
		DataPoints: t.dataPoints,
		TimeRange: TimeRange{
			StartTime: t.startTime,
			EndTime:   t.endTime,
		},
	}

	for i, name := range t.names {
		ct := t.perChannel[i]
		cs := ChannelStats{
			Name:    name,
			Count:   ct.count,
			Missing: ct.missing,
		}
		if cat, ok := t.classification.Lookup(name); ok {
			cs.Category = cat.String()
			cs.Classified = true
		}
		if ct.count > 0 {
			cs.Min = ct.min
			cs.Max = ct.max
			cs.Mean = ct.sum / float64(ct.count)
		}
		summary.Channels = append(summary.Channels, cs)
	}

	return summary
}
