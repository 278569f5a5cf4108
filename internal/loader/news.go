package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"trident-trader/internal/domain"
)

// ErrUnsupportedFormat is returned for a news file that is neither CSV nor Parquet.
var ErrUnsupportedFormat = errors.New("unsupported news file extension")

// NewsOptions names the news file columns.
type NewsOptions struct {
	Source          string // default "gdelt"
	ColumnTs        string // default "ts"
	ColumnIntensity string // default "count"
}

func (o NewsOptions) withDefaults() NewsOptions {
	if o.Source == "" {
		o.Source = domain.NewsSourceGDELT
	}
	if o.ColumnTs == "" {
		o.ColumnTs = "ts"
	}
	if o.ColumnIntensity == "" {
		o.ColumnIntensity = "count"
	}
	return o
}

// NewsRecord is the on-disk news intensity row.
type NewsRecord struct {
	Ts    time.Time `parquet:"ts"`
	Count float64   `parquet:"count"`
}

// ReadNews reads news intensity observations from a .csv or .parquet file.
func ReadNews(path string, opts NewsOptions) ([]domain.NewsEvent, error) {
	opts = opts.withDefaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open news: %w", err)
		}
		defer f.Close()
		return DecodeNewsCSV(f, path, opts)
	case ".parquet":
		return readNewsParquet(path, opts)
	}
	return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
}

// DecodeNewsCSV reads news rows from CSV. name labels errors.
func DecodeNewsCSV(r io.Reader, name string, opts NewsOptions) ([]domain.NewsEvent, error) {
	opts = opts.withDefaults()
	cr := csv.NewReader(stripBOM(r))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}
	cols := indexColumns(header)
	tsCol, ok := cols[opts.ColumnTs]
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", name, opts.ColumnTs, ErrMissingColumn)
	}
	valCol, ok := cols[opts.ColumnIntensity]
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", name, opts.ColumnIntensity, ErrMissingColumn)
	}

	var out []domain.NewsEvent
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		if tsCol >= len(record) || valCol >= len(record) {
			return nil, fmt.Errorf("%s:%d: short row", name, line)
		}
		ts, err := ParseTimestamp(record[tsCol])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[valCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: column %s: %w", name, line, opts.ColumnIntensity, err)
		}
		out = append(out, domain.NewsEvent{Ts: ts, Source: opts.Source, Intensity: v})
	}
}

func readNewsParquet(path string, opts NewsOptions) ([]domain.NewsEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open news: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat news: %w", err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: open parquet: %w", path, err)
	}

	tsLeaf, ok := pf.Schema().Lookup(opts.ColumnTs)
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", path, opts.ColumnTs, ErrMissingColumn)
	}
	valLeaf, ok := pf.Schema().Lookup(opts.ColumnIntensity)
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", path, opts.ColumnIntensity, ErrMissingColumn)
	}

	var out []domain.NewsEvent
	buf := make([]parquet.Row, 256)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				ev, perr := newsFromRow(row, tsLeaf, valLeaf, opts.Source)
				if perr != nil {
					rows.Close()
					return nil, fmt.Errorf("%s: row %d: %w", path, len(out)+1, perr)
				}
				out = append(out, ev)
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("%s: read rows: %w", path, err)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("%s: close rows: %w", path, err)
		}
	}
	return out, nil
}

func newsFromRow(row parquet.Row, tsLeaf, valLeaf parquet.LeafColumn, source string) (domain.NewsEvent, error) {
	var tsVal, numVal parquet.Value
	for _, v := range row {
		switch v.Column() {
		case tsLeaf.ColumnIndex:
			tsVal = v
		case valLeaf.ColumnIndex:
			numVal = v
		}
	}
	if tsVal.IsNull() || numVal.IsNull() {
		return domain.NewsEvent{}, errors.New("null value")
	}
	ts, err := parquetTime(tsVal, tsLeaf.Node)
	if err != nil {
		return domain.NewsEvent{}, err
	}
	intensity, err := parquetFloat(numVal)
	if err != nil {
		return domain.NewsEvent{}, err
	}
	return domain.NewsEvent{Ts: ts, Source: source, Intensity: intensity}, nil
}

func parquetTime(v parquet.Value, node parquet.Node) (time.Time, error) {
	switch v.Kind() {
	case parquet.ByteArray:
		return ParseTimestamp(string(v.ByteArray()))
	case parquet.Int64:
		n := v.Int64()
		if lt := node.Type().LogicalType(); lt != nil && lt.Timestamp != nil {
			switch {
			case lt.Timestamp.Unit.Millis != nil:
				return time.UnixMilli(n).UTC(), nil
			case lt.Timestamp.Unit.Micros != nil:
				return time.UnixMicro(n).UTC(), nil
			}
		}
		return time.Unix(0, n).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp kind %v", v.Kind())
}

func parquetFloat(v parquet.Value) (float64, error) {
	switch v.Kind() {
	case parquet.Double:
		return v.Double(), nil
	case parquet.Float:
		return float64(v.Float()), nil
	case parquet.Int64:
		return float64(v.Int64()), nil
	case parquet.Int32:
		return float64(v.Int32()), nil
	case parquet.ByteArray:
		return strconv.ParseFloat(string(v.ByteArray()), 64)
	}
	return 0, fmt.Errorf("unsupported intensity kind %v", v.Kind())
}

// WriteNewsParquet writes news observations as ts,count rows.
func WriteNewsParquet(path string, news []domain.NewsEvent) error {
	rows := make([]NewsRecord, len(news))
	for i, n := range news {
		rows[i] = NewsRecord{Ts: n.Ts.UTC(), Count: n.Intensity}
	}
	return parquet.WriteFile(path, rows)
}

// WriteNewsCSV writes news observations as ts,count rows.
func WriteNewsCSV(w io.Writer, news []domain.NewsEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ts", "count"}); err != nil {
		return err
	}
	for _, n := range news {
		if err := cw.Write([]string{
			n.Ts.UTC().Format(time.RFC3339),
			strconv.FormatFloat(n.Intensity, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
