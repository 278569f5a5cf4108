package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"
	"time"

	"trident-trader/internal/domain"
	"trident-trader/internal/replay"
)

// ErrMissingColumn is returned when a required CSV column is absent.
var ErrMissingColumn = errors.New("missing required column")

var requiredBarColumns = []string{"ts", "open", "high", "low", "close"}

// ReadCSVBars reads every bar from a CSV file with columns
// ts,open,high,low,close[,volume,bid,ask]. ts is the bar end time.
// Empty volume is 0; empty bid or ask is no quote.
func ReadCSVBars(path, symbol string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars: %w", err)
	}
	defer f.Close()
	return DecodeCSVBars(f, path, symbol)
}

// DecodeCSVBars reads bars from r. name labels errors.
func DecodeCSVBars(r io.Reader, name, symbol string) ([]domain.Bar, error) {
	var bars []domain.Bar
	for bar, err := range decodeBars(r, name, symbol) {
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// CSVBarSeq streams bar events from a CSV file. The first read or parse
// error stops the sequence and is stored in *errp.
func CSVBarSeq(path, symbol string, errp *error) iter.Seq[replay.Event] {
	return func(yield func(replay.Event) bool) {
		f, err := os.Open(path)
		if err != nil {
			*errp = fmt.Errorf("open bars: %w", err)
			return
		}
		defer f.Close()
		for bar, err := range decodeBars(f, path, symbol) {
			if err != nil {
				*errp = err
				return
			}
			if !yield(replay.BarEvent(bar)) {
				return
			}
		}
	}
}

func decodeBars(r io.Reader, name, symbol string) iter.Seq2[domain.Bar, error] {
	return func(yield func(domain.Bar, error) bool) {
		cr := csv.NewReader(stripBOM(r))
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true

		header, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(domain.Bar{}, fmt.Errorf("%s: read header: %w", name, err))
			return
		}
		cols := indexColumns(header)
		for _, c := range requiredBarColumns {
			if _, ok := cols[c]; !ok {
				yield(domain.Bar{}, fmt.Errorf("%s: %q: %w", name, c, ErrMissingColumn))
				return
			}
		}

		line := 1
		for {
			record, err := cr.Read()
			line++
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(domain.Bar{}, fmt.Errorf("%s:%d: %w", name, line, err))
				return
			}
			bar, err := parseBar(record, cols, symbol)
			if err != nil {
				yield(domain.Bar{}, fmt.Errorf("%s:%d: %w", name, line, err))
				return
			}
			if !yield(bar, nil) {
				return
			}
		}
	}
}

func parseBar(record []string, cols map[string]int, symbol string) (domain.Bar, error) {
	get := func(name string) string {
		if i, ok := cols[name]; ok && i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}
	num := func(name string) (float64, error) {
		v, err := strconv.ParseFloat(get(name), 64)
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", name, err)
		}
		return v, nil
	}
	opt := func(name string) (*float64, error) {
		if get(name) == "" {
			return nil, nil
		}
		v, err := num(name)
		if err != nil {
			return nil, err
		}
		return &v, nil
	}

	ts, err := ParseTimestamp(get("ts"))
	if err != nil {
		return domain.Bar{}, err
	}
	bar := domain.Bar{TsEnd: ts, Symbol: symbol}
	if bar.Open, err = num("open"); err != nil {
		return domain.Bar{}, err
	}
	if bar.High, err = num("high"); err != nil {
		return domain.Bar{}, err
	}
	if bar.Low, err = num("low"); err != nil {
		return domain.Bar{}, err
	}
	if bar.Close, err = num("close"); err != nil {
		return domain.Bar{}, err
	}
	if get("volume") != "" {
		if bar.Volume, err = num("volume"); err != nil {
			return domain.Bar{}, err
		}
	}
	if bar.Bid, err = opt("bid"); err != nil {
		return domain.Bar{}, err
	}
	if bar.Ask, err = opt("ask"); err != nil {
		return domain.Bar{}, err
	}
	return bar, nil
}

// WriteCSVBars writes bars in the ReadCSVBars column layout. Missing
// quotes are written as empty cells.
func WriteCSVBars(w io.Writer, bars []domain.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ts", "open", "high", "low", "close", "volume", "bid", "ask"}); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	opt := func(v *float64) string {
		if v == nil {
			return ""
		}
		return f(*v)
	}
	for _, b := range bars {
		if err := cw.Write([]string{
			b.TsEnd.UTC().Format(time.RFC3339),
			f(b.Open), f(b.High), f(b.Low), f(b.Close), f(b.Volume),
			opt(b.Bid), opt(b.Ask),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadUniverse reads each symbol's bar file and merges them with news into
// one ordered event slice. Symbols are merged in the given order.
func LoadUniverse(symbols []string, files map[string]string, news []domain.NewsEvent) ([]replay.Event, error) {
	streams := make([][]domain.Bar, 0, len(symbols))
	for _, symbol := range symbols {
		path, ok := files[symbol]
		if !ok {
			return nil, fmt.Errorf("no data file for %s", symbol)
		}
		bars, err := ReadCSVBars(path, symbol)
		if err != nil {
			return nil, err
		}
		streams = append(streams, bars)
	}
	return replay.MergeEvents(streams, news), nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	return cols
}

// stripBOM drops a leading UTF-8 byte order mark.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, _ := io.ReadFull(r, buf)
	if n == 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
