package mapping

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cuongbtq/coursehub/internal/domain"
)

// SplitStrategy selects how the header line is split into columns
type SplitStrategy string

const (
	// SplitNaive splits on every comma, ignoring quotes. This is what the
	// backend template expects today.
	SplitNaive SplitStrategy = "naive"

	// SplitCSV honors RFC 4180 quoting
	SplitCSV SplitStrategy = "csv"
)

// maxHeaderLine bounds the first line read from an upload
const maxHeaderLine = 1 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Header holds the parsed header row of a CSV file
type Header struct {
	Columns []string
	// Quoted is set when the naive split saw a double quote, meaning a
	// quoted column name may have been cut at an embedded comma.
	Quoted bool
}

// ParseHeader reads the first line of r and splits it into trimmed column names
func ParseHeader(r io.Reader, strategy SplitStrategy) (*Header, error) {
	line, err := readFirstLine(r)
	if err != nil {
		return nil, err
	}

	var fields []string
	quoted := false

	switch strategy {
	case SplitCSV:
		reader := csv.NewReader(strings.NewReader(line))
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true
		fields, err = reader.Read()
		if err != nil {
			return nil, domain.NewError(domain.ErrMalformedInput, "header row is not valid CSV", err)
		}
	case SplitNaive, "":
		fields = strings.Split(line, ",")
		quoted = strings.Contains(line, `"`)
	default:
		return nil, fmt.Errorf("unknown header split strategy %q", strategy)
	}

	columns := make([]string, len(fields))
	for i, f := range fields {
		col := strings.TrimSpace(f)
		if col == "" {
			return nil, domain.NewError(domain.ErrMalformedInput, fmt.Sprintf("column %d of the header row is empty", i+1), nil)
		}
		columns[i] = col
	}

	return &Header{Columns: columns, Quoted: quoted}, nil
}

// Parse reads the header of r and builds a mapping from it
func Parse(r io.Reader, strategy SplitStrategy) (*Mapping, *Header, error) {
	h, err := ParseHeader(r, strategy)
	if err != nil {
		return nil, nil, err
	}
	return New(h.Columns), h, nil
}

func readFirstLine(r io.Reader) (string, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	var buf bytes.Buffer
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("failed to read header row: %w", err)
		}
		buf.Write(chunk)
		if buf.Len() > maxHeaderLine {
			return "", domain.NewError(domain.ErrMalformedInput, "header row is too long", nil)
		}
		if !isPrefix {
			break
		}
	}

	line := bytes.TrimPrefix(buf.Bytes(), utf8BOM)
	if len(bytes.TrimSpace(line)) == 0 {
		return "", domain.NewError(domain.ErrMalformedInput, "file is empty or has no header row", nil)
	}

	return strings.TrimRight(string(line), "\r"), nil
}

// RecordCount returns the number of non-blank lines after the header
func RecordCount(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxHeaderLine)

	count := 0
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		if strings.TrimSpace(scanner.Text()) != "" {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}
