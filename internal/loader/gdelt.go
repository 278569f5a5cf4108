package loader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"trident-trader/internal/domain"
)

// Intensity weights for GDELT event rows.
const (
	mentionsWeight = 0.6
	articlesWeight = 0.4
)

// GDELTEvent is one row of a GDELT events export.
type GDELTEvent struct {
	Ts          time.Time
	SourceURL   string
	AvgTone     float64
	NumMentions int
	NumArticles int
}

// Intensity is the weighted mention and article count, floored at zero.
func (e GDELTEvent) Intensity() float64 {
	return max(0, float64(e.NumMentions)*mentionsWeight+float64(e.NumArticles)*articlesWeight)
}

// ReadGDELT reads a GDELT CSV or TSV export. Rows without a date or with
// unparseable fields are skipped.
func ReadGDELT(path string) ([]GDELTEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gdelt: %w", err)
	}
	defer f.Close()
	return DecodeGDELT(f)
}

// DecodeGDELT reads GDELT rows from r, sniffing the delimiter from the first 4KiB.
func DecodeGDELT(r io.Reader) ([]GDELTEvent, error) {
	br := bufio.NewReaderSize(stripBOM(r), 4096)
	sample, _ := br.Peek(4096)

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(sample)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read gdelt header: %w", err)
	}
	cols := indexColumns(header)
	field := func(record []string, names ...string) string {
		for _, n := range names {
			if i, ok := cols[n]; ok && i < len(record) && record[i] != "" {
				return record[i]
			}
		}
		return ""
	}

	var out []GDELTEvent
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return nil, fmt.Errorf("read gdelt: %w", err)
		}
		dateRaw := field(record, "DATE", "SQLDATE", "datetime")
		if dateRaw == "" {
			continue
		}
		ts, err := parseGDELTDate(dateRaw)
		if err != nil {
			continue
		}
		tone, err := parseOr(field(record, "AvgTone", "avg_tone"))
		if err != nil {
			continue
		}
		mentions, err := parseOr(field(record, "NumMentions", "num_mentions"))
		if err != nil {
			continue
		}
		articles, err := parseOr(field(record, "NumArticles", "num_articles"))
		if err != nil {
			continue
		}
		out = append(out, GDELTEvent{
			Ts:          ts.UTC(),
			SourceURL:   field(record, "SOURCEURL", "source_url"),
			AvgTone:     tone,
			NumMentions: int(mentions),
			NumArticles: int(articles),
		})
	}
}

func parseOr(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

// sniffDelimiter picks the most frequent of comma, tab and semicolon in the
// first line of sample. Tab wins when none appear.
func sniffDelimiter(sample []byte) rune {
	line := sample
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		line = sample[:i]
	}
	best, bestCount := '\t', 0
	for _, d := range []rune{',', '\t', ';'} {
		if c := bytes.Count(line, []byte(string(d))); c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}

// AggregateIntensity is the mean weighted intensity of events, 0 when empty.
func AggregateIntensity(events []GDELTEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	var sum float64
	for _, e := range events {
		sum += e.Intensity()
	}
	return sum / float64(len(events))
}

// GDELTToNews buckets events by bucket (floor of the event time) and emits
// one news observation per bucket with the summed weighted intensity.
// A non-positive bucket emits one observation per event.
func GDELTToNews(events []GDELTEvent, bucket time.Duration) []domain.NewsEvent {
	if bucket <= 0 {
		out := make([]domain.NewsEvent, len(events))
		for i, e := range events {
			out[i] = domain.NewsEvent{Ts: e.Ts.UTC(), Source: domain.NewsSourceGDELT, Intensity: e.Intensity()}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Ts.Before(out[j].Ts) })
		return out
	}

	sums := make(map[time.Time]float64)
	for _, e := range events {
		sums[e.Ts.UTC().Truncate(bucket)] += e.Intensity()
	}
	out := make([]domain.NewsEvent, 0, len(sums))
	for ts, v := range sums {
		out = append(out, domain.NewsEvent{Ts: ts, Source: domain.NewsSourceGDELT, Intensity: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ts.Before(out[j].Ts) })
	return out
}
