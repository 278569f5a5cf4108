package loader

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"trident-trader/internal/domain"
	"trident-trader/internal/replay"
)

const barsCSV = "\ufeffts,open,high,low,close,volume,bid,ask\n" +
	"2025-01-06T00:01:00,100,101,99,100.5,1200,100.49,100.51\n" +
	"2025-01-06T01:02:00+01:00,100.5,101,100,100.8,,,\n" +
	"2025-01-06 00:03:00,100.8,101.2,100.6,101,900,101.0,\n"

func TestDecodeCSVBars(t *testing.T) {
	bars, err := DecodeCSVBars(strings.NewReader(barsCSV), "bars.csv", "EURUSD")
	if err != nil {
		t.Fatalf("DecodeCSVBars failed: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("Expected 3 bars, got %d", len(bars))
	}

	first := bars[0]
	if !first.TsEnd.Equal(time.Date(2025, 1, 6, 0, 1, 0, 0, time.UTC)) || first.TsEnd.Location() != time.UTC {
		t.Errorf("Naive timestamp should be UTC, got %v", first.TsEnd)
	}
	if first.Symbol != "EURUSD" || first.Close != 100.5 || first.Volume != 1200 {
		t.Errorf("Unexpected first bar: %+v", first)
	}
	if !first.HasQuotes() || *first.Bid != 100.49 || *first.Ask != 100.51 {
		t.Errorf("Expected quotes on first bar")
	}

	second := bars[1]
	if !second.TsEnd.Equal(time.Date(2025, 1, 6, 0, 2, 0, 0, time.UTC)) {
		t.Errorf("Offset timestamp should convert to UTC, got %v", second.TsEnd)
	}
	if second.Volume != 0 || second.Bid != nil || second.Ask != nil {
		t.Errorf("Empty volume and quotes should be zero and nil: %+v", second)
	}

	third := bars[2]
	if third.Bid == nil || third.Ask != nil || third.HasQuotes() {
		t.Errorf("Expected bid only on third bar: %+v", third)
	}
}

func TestDecodeCSVBars_Errors(t *testing.T) {
	_, err := DecodeCSVBars(strings.NewReader("ts,open,high,low\n"), "bad.csv", "A")
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("Expected ErrMissingColumn, got %v", err)
	}

	_, err = DecodeCSVBars(strings.NewReader("ts,open,high,low,close\n2025-01-06T00:01:00,1,1,1,1\n2025-01-06T00:02:00,1,x,1,1\n"), "bad.csv", "A")
	if err == nil || !strings.Contains(err.Error(), "bad.csv:3") {
		t.Errorf("Expected error with line 3, got %v", err)
	}

	_, err = DecodeCSVBars(strings.NewReader("ts,open,high,low,close\nyesterday,1,1,1,1\n"), "bad.csv", "A")
	if !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("Expected ErrInvalidTimestamp, got %v", err)
	}

	bars, err := DecodeCSVBars(strings.NewReader(""), "empty.csv", "A")
	if err != nil || len(bars) != 0 {
		t.Errorf("Empty file should yield no bars, got %d, %v", len(bars), err)
	}
}

func TestCSVBarSeq(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.csv")
	if err := os.WriteFile(path, []byte(barsCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	var err error
	events := slices.Collect(CSVBarSeq(path, "A", &err))
	if err != nil {
		t.Fatalf("CSVBarSeq failed: %v", err)
	}
	if len(events) != 3 || events[0].Bar == nil || events[0].Bar.Symbol != "A" {
		t.Fatalf("Unexpected events: %+v", events)
	}

	var missing error
	if n := len(slices.Collect(CSVBarSeq(filepath.Join(t.TempDir(), "none.csv"), "A", &missing))); n != 0 || missing == nil {
		t.Errorf("Missing file should yield nothing and set the error, got %d events, %v", n, missing)
	}
}

func TestLoadUniverse(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	if err := os.WriteFile(a, []byte(barsCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte(barsCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	news := []domain.NewsEvent{{Ts: time.Date(2025, 1, 6, 0, 1, 30, 0, time.UTC), Intensity: 3}}

	events, err := LoadUniverse([]string{"A", "B"}, map[string]string{"A": a, "B": b}, news)
	if err != nil {
		t.Fatalf("LoadUniverse failed: %v", err)
	}
	if len(events) != 7 {
		t.Fatalf("Expected 7 events, got %d", len(events))
	}
	if err := replay.ValidateOrder(events); err != nil {
		t.Errorf("Events out of order: %v", err)
	}

	if _, err := LoadUniverse([]string{"C"}, map[string]string{}, nil); err == nil {
		t.Error("Expected error for symbol without a file")
	}
}

func TestDecodeNewsCSV(t *testing.T) {
	data := "ts,count\n2025-01-06T00:00:00Z,10\n2025-01-06T01:00:00,12.5\n"
	news, err := DecodeNewsCSV(strings.NewReader(data), "news.csv", NewsOptions{})
	if err != nil {
		t.Fatalf("DecodeNewsCSV failed: %v", err)
	}
	if len(news) != 2 || news[1].Intensity != 12.5 || news[0].Source != domain.NewsSourceGDELT {
		t.Errorf("Unexpected news: %+v", news)
	}

	custom := "when,n\n2025-01-06T00:00:00Z,1\n"
	news, err = DecodeNewsCSV(strings.NewReader(custom), "news.csv", NewsOptions{Source: "wire", ColumnTs: "when", ColumnIntensity: "n"})
	if err != nil || len(news) != 1 || news[0].Source != "wire" {
		t.Errorf("Custom columns failed: %+v, %v", news, err)
	}

	_, err = DecodeNewsCSV(strings.NewReader(custom), "news.csv", NewsOptions{})
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("Expected ErrMissingColumn, got %v", err)
	}
}

func TestReadNews_Parquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "news.parquet")
	in := []domain.NewsEvent{
		{Ts: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), Source: domain.NewsSourceGDELT, Intensity: 4},
		{Ts: time.Date(2025, 1, 6, 1, 0, 0, 0, time.UTC), Source: domain.NewsSourceGDELT, Intensity: 9.5},
	}
	if err := WriteNewsParquet(path, in); err != nil {
		t.Fatalf("WriteNewsParquet failed: %v", err)
	}
	out, err := ReadNews(path, NewsOptions{})
	if err != nil {
		t.Fatalf("ReadNews failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("Expected %d rows, got %d", len(in), len(out))
	}
	for i := range in {
		if !out[i].Ts.Equal(in[i].Ts) || out[i].Intensity != in[i].Intensity || out[i].Source != in[i].Source {
			t.Errorf("Row %d = %+v, want %+v", i, out[i], in[i])
		}
	}

	if _, err := ReadNews(path, NewsOptions{ColumnIntensity: "volume"}); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("Expected ErrMissingColumn, got %v", err)
	}
}

func TestReadNews_UnsupportedExtension(t *testing.T) {
	if _, err := ReadNews("news.json", NewsOptions{}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestWriteNewsCSV(t *testing.T) {
	var sb strings.Builder
	news := []domain.NewsEvent{{Ts: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), Intensity: 2.5}}
	if err := WriteNewsCSV(&sb, news); err != nil {
		t.Fatalf("WriteNewsCSV failed: %v", err)
	}
	if want := "ts,count\n2025-01-06T00:00:00Z,2.5\n"; sb.String() != want {
		t.Errorf("WriteNewsCSV = %q, want %q", sb.String(), want)
	}
}

func TestDecodeGDELT(t *testing.T) {
	tsv := "SQLDATE\tNumMentions\tNumArticles\tAvgTone\tSOURCEURL\n" +
		"20250106\t10\t5\t-1.5\thttp://a\n" +
		"20250106120000\t4\t1\t0.3\thttp://b\n" +
		"\t3\t3\t0\thttp://nodate\n" +
		"20250107\tmany\t1\t0\thttp://bad\n" +
		"2025-01-07T06:00:00\t\t\t\t\n"
	events, err := DecodeGDELT(strings.NewReader(tsv))
	if err != nil {
		t.Fatalf("DecodeGDELT failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 valid rows, got %d: %+v", len(events), events)
	}
	if events[0].NumMentions != 10 || events[0].NumArticles != 5 || events[0].AvgTone != -1.5 || events[0].SourceURL != "http://a" {
		t.Errorf("Unexpected first row: %+v", events[0])
	}
	if !events[1].Ts.Equal(time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected 14 digit date: %v", events[1].Ts)
	}
	if events[2].Intensity() != 0 {
		t.Errorf("Empty counts should give zero intensity, got %v", events[2].Intensity())
	}
}

func TestDecodeGDELT_CommaDelimited(t *testing.T) {
	csvData := "DATE,num_mentions,num_articles\n20250106,2,3\n"
	events, err := DecodeGDELT(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("DecodeGDELT failed: %v", err)
	}
	if len(events) != 1 || events[0].NumMentions != 2 || events[0].NumArticles != 3 {
		t.Errorf("Unexpected events: %+v", events)
	}
}

func TestAggregateIntensity(t *testing.T) {
	if AggregateIntensity(nil) != 0 {
		t.Error("Empty aggregate should be 0")
	}
	events := []GDELTEvent{{NumMentions: 10, NumArticles: 5}, {NumMentions: 0, NumArticles: 0}}
	// (10*0.6 + 5*0.4 + 0) / 2 = 4
	if got := AggregateIntensity(events); got != 4 {
		t.Errorf("AggregateIntensity = %v, want 4", got)
	}
}

func TestGDELTToNews(t *testing.T) {
	day := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	events := []GDELTEvent{
		{Ts: day.Add(90 * time.Minute), NumMentions: 10},
		{Ts: day.Add(10 * time.Minute), NumArticles: 10},
		{Ts: day.Add(20 * time.Minute), NumMentions: 5},
	}
	news := GDELTToNews(events, time.Hour)
	if len(news) != 2 {
		t.Fatalf("Expected 2 hourly buckets, got %d", len(news))
	}
	if !news[0].Ts.Equal(day) || news[0].Intensity != 7 {
		t.Errorf("First bucket = %+v, want 7 at %v", news[0], day)
	}
	if !news[1].Ts.Equal(day.Add(time.Hour)) || news[1].Intensity != 6 {
		t.Errorf("Second bucket = %+v, want 6", news[1])
	}

	raw := GDELTToNews(events, 0)
	if len(raw) != 3 || !raw[0].Ts.Equal(day.Add(10*time.Minute)) {
		t.Errorf("Unbucketed news should be sorted per event: %+v", raw)
	}
}

func TestGenerateBars(t *testing.T) {
	symbols := []string{"A", "B"}
	a := GenerateBars(symbols, time.Minute, 50, DefaultSmokeSeed)
	b := GenerateBars(symbols, time.Minute, 50, DefaultSmokeSeed)
	if !reflect.DeepEqual(a, b) {
		t.Error("GenerateBars is not deterministic")
	}
	if len(a) != 2 || len(a[0]) != 50 {
		t.Fatalf("Unexpected shape: %d streams", len(a))
	}
	if a[0][0].Open != 100 || a[1][0].Open != 120 {
		t.Errorf("Unexpected base prices: %v, %v", a[0][0].Open, a[1][0].Open)
	}
	for s, stream := range a {
		for i, bar := range stream {
			if !bar.TsEnd.Equal(SmokeStart.Add(time.Duration(i+1) * time.Minute)) {
				t.Fatalf("Stream %d bar %d at %v", s, i, bar.TsEnd)
			}
			if bar.Low > min(bar.Open, bar.Close) || bar.High < max(bar.Open, bar.Close) {
				t.Errorf("Bar %d out of range: %+v", i, bar)
			}
			if !bar.HasQuotes() || *bar.Bid >= *bar.Ask {
				t.Errorf("Bar %d has bad quotes", i)
			}
			if bar.Volume < 200 || bar.Volume > 2000 {
				t.Errorf("Bar %d volume %v out of range", i, bar.Volume)
			}
			if i > 0 && bar.Open != stream[i-1].Close {
				t.Errorf("Bar %d open should equal previous close", i)
			}
		}
	}

	c := GenerateBars(symbols, time.Minute, 50, 8)
	if reflect.DeepEqual(a, c) {
		t.Error("Different seeds should differ")
	}
}

func TestWriteCSVBars_ReadBack(t *testing.T) {
	bars := GenerateBars([]string{"A"}, time.Minute, 5, DefaultSmokeSeed)[0]
	bars[2].Bid, bars[2].Ask = nil, nil

	var sb strings.Builder
	if err := WriteCSVBars(&sb, bars); err != nil {
		t.Fatalf("WriteCSVBars failed: %v", err)
	}
	if !strings.HasPrefix(sb.String(), "ts,open,high,low,close,volume,bid,ask\n") {
		t.Errorf("Unexpected header: %q", sb.String()[:40])
	}

	got, err := DecodeCSVBars(strings.NewReader(sb.String()), "bars.csv", "A")
	if err != nil {
		t.Fatalf("DecodeCSVBars failed: %v", err)
	}
	if len(got) != len(bars) {
		t.Fatalf("Expected %d bars, got %d", len(bars), len(got))
	}
	for i := range bars {
		w, g := bars[i], got[i]
		if !g.TsEnd.Equal(w.TsEnd) || g.Open != w.Open || g.High != w.High || g.Low != w.Low || g.Close != w.Close || g.Volume != w.Volume {
			t.Errorf("Bar %d mismatch: got %+v want %+v", i, g, w)
		}
		if w.HasQuotes() != g.HasQuotes() {
			t.Errorf("Bar %d quote presence mismatch", i)
		}
		if w.HasQuotes() && (*g.Bid != *w.Bid || *g.Ask != *w.Ask) {
			t.Errorf("Bar %d quotes mismatch", i)
		}
	}
}
