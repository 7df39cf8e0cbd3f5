package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/decadal/internal/model"
	"golang.org/x/net/html/charset"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrMissingColumn is returned when the header lacks a required column
var ErrMissingColumn = errors.New("missing required column")

// ErrNoHeader is returned for an input with no header row
var ErrNoHeader = errors.New("no header row")

// ErrInvalidUTF8 is returned when input read as UTF-8 holds invalid bytes
var ErrInvalidUTF8 = errors.New("invalid UTF-8")

// Options controls how delimited input is decoded
type Options struct {
	Delimiter rune
	Encoding  string // Charset label understood by x/net/html/charset
	Trim      bool   // Trim surrounding whitespace from header names and values
	Required  []string
}

// DefaultOptions returns comma-separated UTF-8 input requiring date_inscribed
func DefaultOptions() Options {
	return Options{
		Delimiter: ',',
		Encoding:  "utf-8",
		Required:  []string{model.FieldDateInscribed},
	}
}

// LoadFile reads a delimited file into a Dataset
func LoadFile(path string, opts Options) (*model.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &model.ParseError{Source: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	return Load(f, path, opts)
}

// Load reads delimited rows from r. The first row is the header; every
// following row becomes one Record keyed by header name, in input order.
func Load(r io.Reader, source string, opts Options) (*model.Dataset, error) {
	decoded, transcoded, err := decode(r, opts.Encoding)
	if err != nil {
		return nil, &model.ParseError{Source: source, Err: err}
	}

	cr := csv.NewReader(decoded)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	// Every row must have as many fields as the header
	cr.FieldsPerRecord = 0
	// A quote inside an unquoted field is literal text
	cr.LazyQuotes = true

	// Bytes that pass through untranscoded must already be valid UTF-8
	checkUTF8 := func(row []string) error {
		if transcoded {
			return nil
		}
		for i, v := range row {
			if !utf8.ValidString(v) {
				line, col := cr.FieldPos(i)
				return &model.ParseError{
					Source: source,
					Line:   line,
					Err:    fmt.Errorf("%w in field %d (column %d); set --encoding (e.g. windows-1252)", ErrInvalidUTF8, i+1, col),
				}
			}
		}
		return nil
	}

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &model.ParseError{Source: source, Err: ErrNoHeader}
	}
	if err != nil {
		return nil, wrapCSVError(source, err)
	}
	if err := checkUTF8(header); err != nil {
		return nil, err
	}
	if opts.Trim {
		for i := range header {
			header[i] = strings.TrimSpace(header[i])
		}
	}

	ds := &model.Dataset{Source: source}
	seen := make(map[string]int, len(header))
	for _, name := range header {
		seen[name]++
		switch seen[name] {
		case 1:
			ds.Fields = append(ds.Fields, name)
		case 2:
			ds.DuplicateFields = append(ds.DuplicateFields, name)
		}
	}

	for _, req := range opts.Required {
		if seen[req] == 0 {
			return nil, &model.ParseError{
				Source: source,
				Line:   1,
				Err:    fmt.Errorf("%w %q (header: %s)", ErrMissingColumn, req, strings.Join(header, ",")),
			}
		}
	}

	ds.Records = make([]model.Record, 0, 64)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapCSVError(source, err)
		}
		if err := checkUTF8(row); err != nil {
			return nil, err
		}

		rec := make(model.Record, len(ds.Fields))
		for i, name := range header {
			v := row[i]
			if opts.Trim {
				v = strings.TrimSpace(v)
			}
			// Right-most duplicate column wins
			rec[name] = v
		}
		ds.Records = append(ds.Records, rec)
	}

	return ds, nil
}

// decode converts r to UTF-8 according to the charset label and strips a
// leading byte order mark. transcoded is false when r passes through as-is.
func decode(r io.Reader, label string) (_ io.Reader, transcoded bool, err error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		// Passed through untouched so values stay byte-for-byte verbatim
	default:
		cr, err := charset.NewReaderLabel(label, r)
		if err != nil {
			return nil, false, fmt.Errorf("encoding %q: %w", label, err)
		}
		r = cr
		transcoded = true
	}

	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br, transcoded, nil
}

func wrapCSVError(source string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &model.ParseError{Source: source, Line: pe.StartLine, Err: pe.Err}
	}
	return &model.ParseError{Source: source, Err: err}
}
