// Package loader reads delimited flat files into in-memory tables.
// It preserves source column names and row order and performs no
// transformation; cleanup belongs to the transform stages.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"salesmart/internal/table"
)

var (
	// ErrIO marks a source file that is missing or unreadable.
	ErrIO = errors.New("loader: io")

	// ErrParse marks input that cannot be parsed as tabular data.
	// A parse error aborts the whole source: partially ingested input
	// corrupts every downstream aggregate.
	ErrParse = errors.New("loader: parse")
)

// Options controls how a source file is read.
type Options struct {
	// Comma is the field delimiter. Zero means tab (the provider ships TSV).
	Comma rune

	// LazyQuotes relaxes quote handling for sloppy exports.
	LazyQuotes bool

	// FieldsPerRecord is forwarded to encoding/csv. Zero means "infer from
	// the header and enforce", matching the provider contract of a fixed
	// column schema per source.
	FieldsPerRecord int

	// Encoding names the source byte encoding. Empty means UTF-8.
	// Supported: "utf-8", "latin-1", "windows-1250", "windows-1252".
	Encoding string
}

func (o Options) comma() rune {
	if o.Comma == 0 {
		return '\t'
	}
	return o.Comma
}

// ReadFile loads one delimited file into a table.
//
// Errors:
//   - ErrIO when the file cannot be opened or read.
//   - ErrParse (with a 1-based line number) when a record is malformed or the
//     configured encoding cannot decode the bytes.
func ReadFile(path string, opt Options) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	defer f.Close()

	t, err := Read(f, opt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Read loads delimited data from r into a table. The first record is the
// header; its names are kept verbatim apart from stripping a UTF-8 BOM.
func Read(r io.Reader, opt Options) (*table.Table, error) {
	dec, err := decoderFor(opt.Encoding)
	if err != nil {
		return nil, err
	}
	if dec != nil {
		r = dec.Reader(r)
	}

	cr := csv.NewReader(r)
	cr.Comma = opt.comma()
	cr.LazyQuotes = opt.LazyQuotes
	if opt.FieldsPerRecord != 0 {
		cr.FieldsPerRecord = opt.FieldsPerRecord
	}

	line := 1
	hdr, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: line 1: empty input, missing header", ErrParse)
		}
		return nil, fmt.Errorf("%w: line 1: read header: %v", ErrParse, err)
	}

	cols := make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		cols[i] = h
	}

	t := table.New(cols...)
	for {
		line++
		rec, err := cr.Read()
		if err == io.EOF {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrParse, line, err)
		}

		row := make([]any, len(cols))
		for i := range cols {
			if i >= len(rec) || rec[i] == "" {
				row[i] = nil
				continue
			}
			row[i] = rec[i]
		}
		if err := t.AppendRow(row); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrParse, line, err)
		}
	}
}

func decoderFor(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin-1", "latin1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "windows-1250":
		return charmap.Windows1250.NewDecoder(), nil
	case "windows-1252":
		return charmap.Windows1252.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported encoding %q", ErrParse, name)
	}
}
