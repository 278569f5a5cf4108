package reporting

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trident-trader/internal/domain"
)

func TestWriteDecisionsCSV(t *testing.T) {
	_, _, decisions := fixtureRun()
	var buf bytes.Buffer
	if err := WriteDecisionsCSV(&buf, decisions); err != nil {
		t.Fatalf("WriteDecisionsCSV failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Output is not valid CSV: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("Expected header + 4 rows, got %d", len(records))
	}
	if strings.Join(records[0][:4], ",") != "run_id,fold_index,ts,armed" {
		t.Errorf("Unexpected header: %v", records[0])
	}
	row := records[1]
	if len(row) != len(decisionHeader) {
		t.Fatalf("Row has %d columns, header %d", len(row), len(decisionHeader))
	}
	if row[0] != "run-1" || row[1] != "0" || row[2] != "2025-01-07T01:00:00Z" || row[3] != "true" {
		t.Errorf("Unexpected identity columns: %v", row[:4])
	}
	if row[4] != "0.800000" || row[6] != "breakout" || row[11] != "A|B" {
		t.Errorf("Unexpected value columns: %v", row)
	}
}

func TestWriteDecisionsCSV_ControlColumns(t *testing.T) {
	_, _, decisions := fixtureRun()
	d := decisions[0]
	d.Regime, d.Zone, d.ControlMode, d.PolicyHint = "volatile", "light", "explore", "breakout"
	d.Load, d.StructuralMismatch, d.RiskMultiplier, d.ExplorePressure = 0.3, -0.12, 0.25, 0.7
	d.Type2Trigger, d.MIFalling = true, true

	var buf bytes.Buffer
	if err := WriteDecisionsCSV(&buf, []domain.DecisionRecord{d}); err != nil {
		t.Fatalf("WriteDecisionsCSV failed: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Output is not valid CSV: %v", err)
	}
	col := make(map[string]string, len(records[0]))
	for i, name := range records[0] {
		col[name] = records[1][i]
	}
	want := map[string]string{
		"regime":              "volatile",
		"zone":                "light",
		"load":                "0.300000",
		"structural_mismatch": "-0.120000",
		"risk_multiplier":     "0.250000",
		"type2_trigger":       "true",
		"mi_falling":          "true",
		"control_mode":        "explore",
		"explore_pressure":    "0.700000",
		"policy_hint":         "breakout",
	}
	for name, v := range want {
		if got, ok := col[name]; !ok || got != v {
			t.Errorf("Column %s = %q (present=%v), want %q", name, got, ok, v)
		}
	}
}

func TestCSVDecisionSink(t *testing.T) {
	_, _, decisions := fixtureRun()

	var streamed bytes.Buffer
	sink := NewCSVDecisionSink(&streamed)
	for _, d := range decisions {
		if err := sink.Record(d); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	var batch bytes.Buffer
	if err := WriteDecisionsCSV(&batch, decisions); err != nil {
		t.Fatalf("WriteDecisionsCSV failed: %v", err)
	}
	if streamed.String() != batch.String() {
		t.Errorf("Streamed output differs from batch output")
	}

	var empty bytes.Buffer
	if err := NewCSVDecisionSink(&empty).Flush(); err != nil || empty.Len() != 0 {
		t.Errorf("Empty sink wrote %q (err=%v)", empty.String(), err)
	}
}

func TestRenderFoldSummaryCSV(t *testing.T) {
	_, folds, _ := fixtureRun()
	out := RenderFoldSummaryCSV(folds)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "fold_index,train_start,train_end,test_start,test_end,") {
		t.Errorf("Unexpected header: %s", lines[0])
	}
	want := "0,2025-01-06T00:00:00Z,2025-01-07T00:00:00Z,2025-01-07T00:00:00Z,2025-01-08T00:00:00Z," +
		"100,50,2,0.500000,0.010000,0.020000,1000.000000,0.000000,0.000000,4"
	if lines[1] != want {
		t.Errorf("Row mismatch:\n got %s\nwant %s", lines[1], want)
	}
	if !strings.HasPrefix(lines[2], "1,") || !strings.Contains(lines[2], ",-0.020000,") {
		t.Errorf("Unexpected second row: %s", lines[2])
	}
}

func TestWriteRunArtifacts(t *testing.T) {
	md, folds, decisions := fixtureRun()
	dir := filepath.Join(t.TempDir(), "out")
	a := Artifacts{
		Config:    FrozenConfig{Fingerprint: "abc123", Config: map[string]any{"seed": 7}},
		Metadata:  md,
		Folds:     folds,
		Decisions: decisions,
		Report:    Build(md, folds, decisions, fixtureStart),
	}
	if err := WriteRunArtifacts(dir, a); err != nil {
		t.Fatalf("WriteRunArtifacts failed: %v", err)
	}

	for _, name := range []string{FileFrozenConfig, FileRunMetadata, FileDecisions, FileFoldSummary, FileReport} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Missing %s: %v", name, err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(dir, FileRunMetadata))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var meta RunMetadataJSON
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("Invalid metadata JSON: %v", err)
	}
	if meta.RunID != "run-1" || meta.DurationSeconds != 90 || meta.FoldsCompleted != 2 {
		t.Errorf("Unexpected metadata: %+v", meta)
	}

	raw, err = os.ReadFile(filepath.Join(dir, FileFrozenConfig))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(raw), `"fingerprint": "abc123"`) || !strings.HasSuffix(string(raw), "}\n") {
		t.Errorf("Unexpected frozen config: %s", raw)
	}
}

func TestWriteRunArtifacts_NoReport(t *testing.T) {
	md, _, _ := fixtureRun()
	dir := t.TempDir()
	if err := WriteRunArtifacts(dir, Artifacts{Metadata: md}); err != nil {
		t.Fatalf("WriteRunArtifacts failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, FileReport)); !os.IsNotExist(err) {
		t.Errorf("Report should not be written, stat err = %v", err)
	}
}
