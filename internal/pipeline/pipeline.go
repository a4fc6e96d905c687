// Package pipeline reads and writes frames on stdin/stdout. JSONL, one flat
// object per row, is the canonical pipe format; CSV and TSV are accepted
// for import and export.
package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/derickschaefer/periodic/internal/model"
	"github.com/derickschaefer/periodic/internal/util"
)

// Input and output formats.
const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
)

// DefaultTimeColumn is the time column read when none is named and written
// when a frame has none.
const DefaultTimeColumn = "time"

// ReadOptions controls ReadFrame.
type ReadOptions struct {
	Format   string         // jsonl (default), csv or tsv
	TimeCol  string         // name of the time column; default "time"
	Location *time.Location // zone for timestamps without an offset; default UTC
	Name     string         // frame name
}

// ReadFrame reads a frame from r.
func ReadFrame(r io.Reader, opts ReadOptions) (*model.Frame, error) {
	var (
		f   *model.Frame
		err error
	)
	switch strings.ToLower(opts.Format) {
	case "", FormatJSONL, "json":
		f, err = readJSONL(r, opts)
	case FormatCSV:
		f, err = readDelimited(r, ',', opts)
	case FormatTSV:
		f, err = readDelimited(r, '\t', opts)
	default:
		return nil, fmt.Errorf("unsupported input format %q: must be jsonl, csv or tsv", opts.Format)
	}
	if err != nil {
		return nil, err
	}
	if f.Len() == 0 {
		return nil, fmt.Errorf("no rows read from input (is stdin empty?)")
	}
	f.Name = opts.Name
	return f, nil
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

func readJSONL(r io.Reader, opts ReadOptions) (*model.Frame, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	timeCol := opts.TimeCol
	if timeCol == "" {
		timeCol = DefaultTimeColumn
	}

	var (
		columns []string
		index   = map[string]int{}
		times   []time.Time
		records [][]float64
	)

	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		keys, vals, err := decodeObject([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}

		var (
			ts      time.Time
			hasTime bool
			rec     = make([]float64, len(columns))
		)
		for i := range rec {
			rec[i] = math.NaN()
		}
		for i, k := range keys {
			if k == timeCol {
				s, ok := vals[i].(string)
				if !ok {
					return nil, fmt.Errorf("line %d: %s must be a string, got %T", lineNum, timeCol, vals[i])
				}
				if ts, err = util.ParseTime(s, opts.Location); err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNum, err)
				}
				hasTime = true
				continue
			}
			v, err := jsonValue(vals[i])
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", lineNum, k, err)
			}
			j, ok := index[k]
			if !ok {
				j = len(columns)
				index[k] = j
				columns = append(columns, k)
				rec = append(rec, math.NaN())
			}
			rec[j] = v
		}
		if !hasTime {
			return nil, fmt.Errorf("line %d: missing %q field", lineNum, timeCol)
		}
		times = append(times, ts)
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	f := &model.Frame{TimeName: timeCol, Columns: columns, Rows: make([]model.Row, len(times))}
	for i, t := range times {
		vals := records[i]
		// Rows read before a column first appeared are short.
		for len(vals) < len(columns) {
			vals = append(vals, math.NaN())
		}
		f.Rows[i] = model.Row{Time: t, Values: vals}
	}
	return f, nil
}

// decodeObject decodes one JSON object keeping its key order.
func decodeObject(b []byte) ([]string, []any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}
	var (
		keys []string
		vals []any
	)
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		keys = append(keys, kt.(string))
		vals = append(vals, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, vals, nil
}

func jsonValue(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return math.NaN(), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return math.NaN(), fmt.Errorf("invalid number %q", x)
		}
		return f, nil
	case string:
		return util.ParseValue(x)
	}
	return math.NaN(), fmt.Errorf("unexpected value type %T", v)
}

// WriteJSONL writes f as JSONL, one flat object per row. Timestamps are
// rendered by format, or RFC 3339 when format is nil. Nulls are written as
// JSON null.
func WriteJSONL(w io.Writer, f *model.Frame, format func(time.Time) string) error {
	if format == nil {
		format = util.FormatTime
	}
	timeName := f.TimeName
	if timeName == "" {
		timeName = DefaultTimeColumn
	}
	keys := make([][]byte, len(f.Columns))
	for i, c := range f.Columns {
		k, err := json.Marshal(c)
		if err != nil {
			return err
		}
		keys[i] = k
	}
	tk, _ := json.Marshal(timeName)

	bw := bufio.NewWriter(w)
	var buf bytes.Buffer
	for _, r := range f.Rows {
		buf.Reset()
		buf.WriteByte('{')
		buf.Write(tk)
		buf.WriteByte(':')
		ts, _ := json.Marshal(format(r.Time))
		buf.Write(ts)
		for i, v := range r.Values {
			buf.WriteByte(',')
			buf.Write(keys[i])
			buf.WriteByte(':')
			if math.IsNaN(v) || math.IsInf(v, 0) {
				buf.WriteString("null")
			} else {
				vb, _ := json.Marshal(v)
				buf.Write(vb)
			}
		}
		buf.WriteString("}\n")
		if _, err := bw.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func readDelimited(r io.Reader, comma rune, opts ReadOptions) (*model.Frame, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return &model.Frame{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	tcol := 0
	if opts.TimeCol != "" {
		tcol = -1
		for i, h := range header {
			if strings.TrimSpace(h) == opts.TimeCol {
				tcol = i
			}
		}
		if tcol < 0 {
			return nil, fmt.Errorf("time column %q not in header %v", opts.TimeCol, header)
		}
	} else {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), DefaultTimeColumn) {
				tcol = i
				break
			}
		}
	}

	f := &model.Frame{TimeName: strings.TrimSpace(header[tcol])}
	for i, h := range header {
		if i != tcol {
			f.Columns = append(f.Columns, strings.TrimSpace(h))
		}
	}

	var errs util.MultiError
	for lineNum := 2; ; lineNum++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		t, err := util.ParseTime(rec[tcol], opts.Location)
		if err != nil {
			errs.Add(fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}
		row := model.Row{Time: t, Values: make([]float64, 0, len(f.Columns))}
		for i, cell := range rec {
			if i == tcol {
				continue
			}
			v, err := util.ParseValue(cell)
			if err != nil {
				errs.Add(fmt.Errorf("line %d: column %s: %w", lineNum, header[i], err))
			}
			row.Values = append(row.Values, v)
		}
		f.Rows = append(f.Rows, row)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteCSV writes f with a header row. comma is ',' for CSV or '\t' for TSV.
func WriteCSV(w io.Writer, f *model.Frame, comma rune, format func(time.Time) string) error {
	if format == nil {
		format = util.FormatTime
	}
	timeName := f.TimeName
	if timeName == "" {
		timeName = DefaultTimeColumn
	}
	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(append([]string{timeName}, f.Columns...)); err != nil {
		return err
	}
	rec := make([]string, len(f.Columns)+1)
	for _, r := range f.Rows {
		rec[0] = format(r.Time)
		for i, v := range r.Values {
			rec[i+1] = ""
			if !math.IsNaN(v) {
				rec[i+1] = util.FormatValue(v)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// IsTTY returns true if stdout is a terminal (not a pipe).
func IsTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
