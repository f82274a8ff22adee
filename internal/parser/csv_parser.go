package parser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"datalogger-plots/internal/logging"
	"datalogger-plots/internal/series"
)

const (
	// DateColumn and TimeColumn are combined into each record's timestamp.
	DateColumn = "Date"
	TimeColumn = "Heure"

	// DefaultDelimiter separates fields in datalogger exports.
	DefaultDelimiter = ';'
)

var (
	// ErrNoTimestamps is returned when no row carries a usable date and time.
	ErrNoTimestamps = errors.New("no timestamped data found in file")
	// ErrMissingColumn is returned when the header lacks Date or Heure.
	ErrMissingColumn = errors.New("missing required column")
)

// Record is one datalogger row: a timestamp and one value per channel,
// aligned with Dataset.Channels. Missing values are NaN.
type Record struct {
	Timestamp time.Time
	Values    []float64
}

// LoadStats counts what happened to the rows of a file.
type LoadStats struct {
	RowsRead         int
	DroppedTimestamp int
	DroppedEmpty     int
	FilteredOut      int
}

// Dataset is a parsed file, records in chronological order.
type Dataset struct {
	Source   string
	Channels []string
	Records  []Record
	Stats    LoadStats

	index map[string]int
}

// NewDataset builds a dataset from already parsed records. Records are sorted
// by timestamp; equal timestamps keep their input order.
func NewDataset(source string, channels []string, records []Record) *Dataset {
	d := &Dataset{
		Source:   source,
		Channels: channels,
		Records:  records,
		index:    make(map[string]int, len(channels)),
	}
	for i, name := range channels {
		if _, exists := d.index[name]; !exists {
			d.index[name] = i
		}
	}
	slices.SortStableFunc(d.Records, func(a, b Record) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return d
}

// HasChannel reports whether the dataset carries a column with that name.
func (d *Dataset) HasChannel(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Series returns the raw samples of one channel, missing values included.
func (d *Dataset) Series(name string) series.Series {
	col, ok := d.index[name]
	if !ok {
		return nil
	}
	out := make(series.Series, len(d.Records))
	for i, rec := range d.Records {
		out[i] = series.Point{Time: rec.Timestamp, Value: rec.Values[col]}
	}
	return out
}

// Span returns the first and last timestamps of the dataset.
func (d *Dataset) Span() (time.Time, time.Time) {
	if len(d.Records) == 0 {
		return time.Time{}, time.Time{}
	}
	return d.Records[0].Timestamp, d.Records[len(d.Records)-1].Timestamp
}

// Between returns a dataset restricted to records within [start, end].
// A zero bound is open.
func (d *Dataset) Between(start, end time.Time) *Dataset {
	kept := make([]Record, 0, len(d.Records))
	for _, rec := range d.Records {
		if inRange(rec.Timestamp, start, end) {
			kept = append(kept, rec)
		}
	}
	out := NewDataset(d.Source, d.Channels, kept)
	out.Stats = d.Stats
	out.Stats.FilteredOut += len(d.Records) - len(kept)
	return out
}

// FilterOptions narrows what the parser keeps.
type FilterOptions struct {
	StartTime     *time.Time
	EndTime       *time.Time
	SampleRate    int
	MaxRecords    int
	Delimiter     rune
	DetectCharset bool
}

// CSVParser reads semicolon separated datalogger exports.
type CSVParser struct {
	filePath string
	options  FilterOptions
	logger   *logging.Logger
}

func NewCSVParser(filePath string) *CSVParser {
	return &CSVParser{
		filePath: filePath,
		options: FilterOptions{
			SampleRate:    1,
			Delimiter:     DefaultDelimiter,
			DetectCharset: true,
		},
		logger: logging.NewNop(),
	}
}

func (p *CSVParser) WithFilterOptions(options FilterOptions) *CSVParser {
	if options.Delimiter == 0 {
		options.Delimiter = DefaultDelimiter
	}
	p.options = options
	return p
}

func (p *CSVParser) WithLogger(logger *logging.Logger) *CSVParser {
	if logger != nil {
		p.logger = logger.Named("parser")
	}
	return p
}

// Parse reads the whole file into a chronologically sorted dataset.
func (p *CSVParser) Parse() (ds *Dataset, err error) {
	in, err := openInput(p.filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("error closing file: %w", closeErr)
		}
	}()

	ds, err = p.ParseReader(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.filePath, err)
	}
	ds.Source = p.filePath
	return ds, nil
}

// ParseReader parses CSV content from r.
func (p *CSVParser) ParseReader(r io.Reader) (*Dataset, error) {
	var (
		channels []string
		records  []Record
	)

	stats, err := p.scan(r, func(_ []string, rec Record) error {
		records = append(records, rec)
		return nil
	}, func(header []string) {
		channels = header
	})
	if err != nil {
		return nil, err
	}

	// Rows removed by the time filter still count as timestamped data.
	if len(records) == 0 && stats.FilteredOut == 0 {
		return nil, ErrNoTimestamps
	}

	ds := NewDataset(p.filePath, channels, records)
	ds.Stats = stats

	first, last := ds.Span()
	p.logger.Debug("parsed datalogger file",
		zap.Int("rows", stats.RowsRead),
		zap.Int("records", len(records)),
		zap.Int("dropped_timestamp", stats.DroppedTimestamp),
		zap.Int("dropped_empty", stats.DroppedEmpty),
		zap.Time("first", first),
		zap.Time("last", last))

	return ds, nil
}

// StreamRecords hands each kept record to callback in file order, without
// sorting and without holding the file in memory.
func (p *CSVParser) StreamRecords(callback func(channels []string, record Record) error) (stats LoadStats, err error) {
	in, err := openInput(p.filePath)
	if err != nil {
		return LoadStats{}, err
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("error closing file: %w", closeErr)
		}
	}()

	stats, err = p.scan(in, callback, nil)
	if err != nil {
		return stats, err
	}
	if stats.RowsRead-stats.DroppedTimestamp-stats.DroppedEmpty <= 0 {
		return stats, ErrNoTimestamps
	}
	return stats, nil
}

func (p *CSVParser) scan(r io.Reader, emit func([]string, Record) error, onHeader func([]string)) (LoadStats, error) {
	var stats LoadStats

	decoded, err := decodeInput(r, p.options.DetectCharset)
	if err != nil {
		return stats, err
	}

	reader := csv.NewReader(decoded)
	reader.Comma = p.options.Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return stats, ErrNoTimestamps
	}
	if err != nil {
		return stats, fmt.Errorf("error reading CSV header: %w", err)
	}

	layout, err := newHeaderLayout(header)
	if err != nil {
		return stats, err
	}
	if onHeader != nil {
		onHeader(layout.channels)
	}

	sampleRate := p.options.SampleRate
	if sampleRate < 1 {
		sampleRate = 1
	}

	kept := 0
	sampleCounter := 0

	for p.options.MaxRecords <= 0 || kept < p.options.MaxRecords {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("error reading CSV row %d: %w", stats.RowsRead+2, err)
		}
		stats.RowsRead++

		ts, ok := ParseTimestamp(field(row, layout.dateCol), field(row, layout.timeCol))
		if !ok {
			stats.DroppedTimestamp++
			continue
		}

		// A text cell keeps the row even though it parses as missing.
		values := make([]float64, len(layout.channelCols))
		empty := true
		for i, col := range layout.channelCols {
			raw := field(row, col)
			values[i] = ParseValue(raw)
			if strings.TrimSpace(raw) != "" {
				empty = false
			}
		}
		if empty {
			stats.DroppedEmpty++
			continue
		}

		if !inRange(ts, deref(p.options.StartTime), deref(p.options.EndTime)) {
			stats.FilteredOut++
			continue
		}

		sampleCounter++
		if sampleCounter < sampleRate {
			continue
		}
		sampleCounter = 0

		if err := emit(layout.channels, Record{Timestamp: ts, Values: values}); err != nil {
			return stats, fmt.Errorf("callback error: %w", err)
		}
		kept++
	}

	return stats, nil
}

// headerLayout maps trimmed header names onto column positions.
type headerLayout struct {
	dateCol     int
	timeCol     int
	channels    []string
	channelCols []int
}

// Repeated channel names get a ".1", ".2", ... suffix so every column stays
// reachable by name.
func newHeaderLayout(header []string) (headerLayout, error) {
	layout := headerLayout{dateCol: -1, timeCol: -1}
	seen := make(map[string]bool, len(header))

	for i, raw := range header {
		name := strings.TrimSpace(raw)
		switch {
		case name == DateColumn && layout.dateCol < 0:
			layout.dateCol = i
		case name == TimeColumn && layout.timeCol < 0:
			layout.timeCol = i
		case name == "":
			// trailing delimiter
		default:
			name = uniqueName(name, seen)
			seen[name] = true
			layout.channels = append(layout.channels, name)
			layout.channelCols = append(layout.channelCols, i)
		}
	}

	if layout.dateCol < 0 {
		return layout, fmt.Errorf("%w: %s", ErrMissingColumn, DateColumn)
	}
	if layout.timeCol < 0 {
		return layout, fmt.Errorf("%w: %s", ErrMissingColumn, TimeColumn)
	}
	return layout, nil
}

func uniqueName(name string, seen map[string]bool) string {
	if !seen[name] {
		return name
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s.%d", name, n)
		if !seen[candidate] {
			return candidate
		}
	}
}

func field(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func inRange(ts, start, end time.Time) bool {
	if !start.IsZero() && ts.Before(start) {
		return false
	}
	if !end.IsZero() && ts.After(end) {
		return false
	}
	return true
}

func (p *CSVParser) GetFileSize() (int64, error) {
	fileInfo, err := os.Stat(p.filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to get file info: %w", err)
	}
	return fileInfo.Size(), nil
}

// GetRecordCount estimates the number of data rows from the average length of
// the first lines. Compressed inputs are counted exactly.
func (p *CSVParser) GetRecordCount() (count int, err error) {
	in, err := openInput(p.filePath)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	if isCompressed(p.filePath) {
		lines := 0
		for scanner.Scan() {
			lines++
		}
		if err := scanner.Err(); err != nil {
			return 0, fmt.Errorf("error reading CSV: %w", err)
		}
		return max(lines-1, 0), nil
	}

	fileSize, err := p.GetFileSize()
	if err != nil {
		return 0, err
	}

	lineCount := 0
	bytesRead := int64(0)
	for lineCount < 100 && scanner.Scan() {
		bytesRead += int64(len(scanner.Bytes()) + 1)
		lineCount++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("error reading CSV: %w", err)
	}

	if lineCount == 0 {
		return 0, nil
	}

	avgLineSize := bytesRead / int64(lineCount)
	if avgLineSize == 0 {
		return 0, nil
	}
	return max(int(fileSize/avgLineSize)-1, 0), nil
}
