package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

const sniffSize = 64 * 1024

var (
	nan     = math.NaN()
	utf8BOM = []byte{0xEF, 0xBB, 0xBF}
)

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func isCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// openInput opens a datalogger file, transparently inflating .gz exports.
func openInput(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	if !isCompressed(path) {
		return file, nil
	}

	zr, err := gzip.NewReader(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	return &multiCloser{Reader: zr, closers: []io.Closer{zr, file}}, nil
}

// decodeInput strips a UTF-8 BOM and, when detect is set, converts non UTF-8
// content to UTF-8 using the charset guessed from the first bytes.
func decodeInput(r io.Reader, detect bool) (io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffSize)
	sample, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("error reading input: %w", err)
	}

	if bytes.HasPrefix(sample, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
		return br, nil
	}

	if !detect || validUTF8Prefix(sample) {
		return br, nil
	}

	name := DetectCharset(sample)
	decoded, err := charset.NewReaderLabel(name, br)
	if err != nil {
		// Unknown label: hand the bytes through untouched.
		return br, nil
	}
	return decoded, nil
}

// DetectCharset guesses the encoding of a text sample.
func DetectCharset(sample []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(sample)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// validUTF8Prefix checks a sample that may end in the middle of a rune.
func validUTF8Prefix(b []byte) bool {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				b = b[:i]
			}
			break
		}
	}
	return utf8.Valid(b)
}
