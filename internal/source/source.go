// Package source turns export files into raw rows for ingestion.
package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"orderstats/internal/datenorm"
	"orderstats/internal/model"
)

// Format is an input file format.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
	JSON Format = "json"
)

var (
	ErrEmpty             = errors.New("source: no header row")
	ErrUnknownFormat     = errors.New("source: unknown format")
	ErrDialectUndetected = errors.New("source: cannot detect dialect")
)

// ErrMalformed wraps every syntax error of the input file itself.
var ErrMalformed = errors.New("source: malformed input")

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")); f {
	case CSV, XLSX, JSON:
		return f, nil
	case "xls", "xlsm":
		return XLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

var zipMagic = []byte("PK\x03\x04")

// DetectFormat guesses the format from the file name, falling back to the
// first bytes of content.
func DetectFormat(name string, head []byte) Format {
	if f, err := ParseFormat(filepath.Ext(name)); err == nil && name != "" {
		return f
	}
	if bytes.HasPrefix(head, zipMagic) {
		return XLSX
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(head, []byte("\xef\xbb\xbf")), " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return JSON
	}
	return CSV
}

// Table is a parsed file: its header and one RawRow per data record.
type Table struct {
	Header []string
	Rows   []model.RawRow
	// Dialect is set when the file itself names one, as JSON batches may.
	Dialect model.Dialect
}

// Read parses r in format f.
func Read(r io.Reader, f Format) (*Table, error) {
	switch f {
	case CSV:
		return ReadCSV(r)
	case XLSX:
		return ReadXLSX(r)
	case JSON:
		return ReadJSON(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}

// Load detects the format of r from name and content, then parses it.
func Load(name string, r io.Reader) (*Table, Format, error) {
	br := bufio.NewReaderSize(r, 4096)
	head, _ := br.Peek(512)
	f := DetectFormat(name, head)
	t, err := Read(br, f)
	return t, f, err
}

// ReadCSV parses a delimited export. The delimiter is ';' or ',' whichever
// occurs more often in the header line; a UTF-8 BOM is dropped.
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil {
		return nil, fmt.Errorf("source: read csv: %w", err)
	}
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: csv: %w", ErrMalformed, err)
	}
	return fromRecords(records)
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(",")) > bytes.Count(line, []byte(";")) {
		return ','
	}
	return ';'
}

// ReadXLSX parses the first sheet of a workbook.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: xlsx: %w", ErrMalformed, err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("source: read sheet %q: %w", sheets[0], err)
	}
	return fromRecords(records)
}

type jsonBatch struct {
	Dialect string         `json:"dialect"`
	Rows    []model.RawRow `json:"rows"`
}

// ReadJSON accepts either an array of row objects or
// {"dialect": "fbo", "rows": [...]}.
func ReadJSON(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("source: read json: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	var b jsonBatch
	if t := bytes.TrimLeft(data, " \t\r\n"); len(t) > 0 && t[0] == '[' {
		err = json.Unmarshal(data, &b.Rows)
	} else {
		err = json.Unmarshal(data, &b)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: json: %w", ErrMalformed, err)
	}
	t := FromRows(b.Rows)
	if b.Dialect != "" {
		d, err := model.ParseDialect(b.Dialect)
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
		t.Dialect = d
	}
	return t, nil
}

// FromRows wraps already-keyed rows; the header is the sorted union of keys.
func FromRows(rows []model.RawRow) *Table {
	seen := make(map[string]struct{})
	for _, r := range rows {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(seen))
	for k := range seen {
		header = append(header, k)
	}
	sort.Strings(header)
	return &Table{Header: header, Rows: rows}
}

func fromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	t := &Table{Header: header, Rows: make([]model.RawRow, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make(model.RawRow, len(header))
		for i, name := range header {
			if name == "" || i >= len(rec) {
				continue
			}
			// First column of a repeated name wins unless it is empty.
			if prev, ok := row[name]; ok && strings.TrimSpace(prev) != "" {
				continue
			}
			row[name] = rec[i]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// sniffRows bounds how many rows DetectDialect inspects.
const sniffRows = 50

// DetectDialect decides between FBO and FBS. Acceptance timestamps are
// sniffed first since their layouts differ unambiguously; header markers
// decide when no timestamp parses.
func DetectDialect(t *Table) (model.Dialect, error) {
	if t.Dialect.Valid() {
		return t.Dialect, nil
	}
	tsCols := append(append([]string{}, model.ColumnsFor(model.FBO).AcceptedAt...), model.ColumnsFor(model.FBS).AcceptedAt...)
	for i, row := range t.Rows {
		if i >= sniffRows {
			break
		}
		for _, col := range tsCols {
			if d, ok := datenorm.Sniff(row[col]); ok {
				return d, nil
			}
		}
	}
	has := make(map[string]bool, len(t.Header))
	for _, h := range t.Header {
		has[strings.ToLower(h)] = true
	}
	switch {
	case has["№ заказа"], has["дата создания"], has["артикул продавца"]:
		return model.FBS, nil
	case has["номер заказа"], has["принят в обработку"]:
		return model.FBO, nil
	}
	return "", ErrDialectUndetected
}
