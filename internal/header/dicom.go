package header

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicom-index/internal/filesystem"
)

const (
	preambleLength = 128
	magicWord      = "DICM"

	// Sequences and other composite values are flattened and cut to this
	// many bytes, on a rune boundary.
	maxFlattenedLength = 255
)

// DICOMParser reads DICOM Part-10 headers, stopping before pixel data.
type DICOMParser struct {
	retry  filesystem.RetryConfig
	wanted map[tag.Tag]string
}

// NewDICOMParser creates a parser extracting the given keywords. Keywords
// unknown to the data dictionary are logged and ignored.
func NewDICOMParser(keywords []string, retry filesystem.RetryConfig, log zerolog.Logger) *DICOMParser {
	wanted := make(map[tag.Tag]string, len(keywords))
	for _, keyword := range keywords {
		info, err := tag.FindByName(keyword)
		if err != nil {
			log.Warn().Str("keyword", keyword).Msg("keyword not in DICOM dictionary, ignoring")
			continue
		}
		wanted[info.Tag] = keyword
	}

	return &DICOMParser{retry: retry, wanted: wanted}
}

// Parse opens path and reads its header. It returns ErrNotRecognized when
// the file lacks the Part-10 preamble and magic, ErrMalformed when parsing
// fails after the magic, and the underlying error for I/O failures.
func (p *DICOMParser) Parse(path string) (h *Header, err error) {
	f, err := filesystem.OpenWithRetry(path, p.retry)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRecognized)
	}

	prefix := make([]byte, preambleLength+len(magicWord))
	if _, err := io.ReadFull(f, prefix); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%s: %w", path, ErrNotRecognized)
		}
		return nil, err
	}
	if !bytes.Equal(prefix[preambleLength:], []byte(magicWord)) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRecognized)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	// The decoder panics on some truncated inputs.
	defer func() {
		if r := recover(); r != nil {
			h = nil
			err = fmt.Errorf("%s: %w: %v", path, ErrMalformed, r)
		}
	}()

	ds, err := dicom.Parse(bufio.NewReader(f), info.Size(), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrMalformed, err)
	}

	h = &Header{Path: path, Elements: make(map[string]string, len(p.wanted))}
	for _, elem := range ds.Elements {
		if elem == nil || elem.Value == nil {
			continue
		}
		keyword, ok := p.wanted[elem.Tag]
		if !ok {
			continue
		}
		if v, ok := flatten(elem.Value); ok {
			h.Elements[keyword] = v
		}
	}

	return h, nil
}

// flatten renders a value as a single string. Raw bytes are not catalogued.
func flatten(v dicom.Value) (string, bool) {
	switch raw := v.GetValue().(type) {
	case []string:
		parts := make([]string, len(raw))
		for i, s := range raw {
			parts[i] = strings.TrimRight(s, " \x00")
		}
		return strings.Join(parts, `\`), true
	case []int:
		parts := make([]string, len(raw))
		for i, n := range raw {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, `\`), true
	case []float64:
		parts := make([]string, len(raw))
		for i, n := range raw {
			parts[i] = strconv.FormatFloat(n, 'g', -1, 64)
		}
		return strings.Join(parts, `\`), true
	case []byte:
		return "", false
	default:
		return truncate(v.String(), maxFlattenedLength), true
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
