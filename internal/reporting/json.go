package reporting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trident-trader/internal/domain"
)

// Artifact file names written by WriteRunArtifacts.
const (
	FileFrozenConfig = "config_frozen.json"
	FileRunMetadata  = "run_metadata.json"
	FileDecisions    = "decisions.csv"
	FileFoldSummary  = "fold_summary.csv"
	FileReport       = "report.md"
)

// FrozenConfig is the resolved configuration of a run with its fingerprint.
type FrozenConfig struct {
	Fingerprint string `json:"fingerprint"`
	Config      any    `json:"config"`
}

// RunMetadataJSON is the on-disk form of domain.RunMetadata.
type RunMetadataJSON struct {
	RunID           string    `json:"run_id"`
	Kind            string    `json:"kind"`
	Fingerprint     string    `json:"fingerprint"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	FoldsTotal      int       `json:"folds_total"`
	FoldsCompleted  int       `json:"folds_completed"`
	DecisionsLogged int       `json:"decisions_logged"`
}

// MetadataJSON converts md to its JSON form.
func MetadataJSON(md domain.RunMetadata) RunMetadataJSON {
	return RunMetadataJSON{
		RunID:           md.RunID,
		Kind:            md.Kind,
		Fingerprint:     md.Fingerprint,
		StartedAt:       md.StartedAt.UTC(),
		FinishedAt:      md.FinishedAt.UTC(),
		DurationSeconds: md.FinishedAt.Sub(md.StartedAt).Seconds(),
		FoldsTotal:      md.FoldsTotal,
		FoldsCompleted:  md.FoldsCompleted,
		DecisionsLogged: md.DecisionsLogged,
	}
}

// MarshalJSON encodes v with two-space indentation and a trailing newline.
func MarshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON writes v to path as indented JSON.
func WriteJSON(path string, v any) error {
	b, err := MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, b, 0o644)
}

// Artifacts is everything WriteRunArtifacts persists for one run.
type Artifacts struct {
	Config    FrozenConfig
	Metadata  domain.RunMetadata
	Folds     []domain.FoldResult
	Decisions []domain.DecisionRecord
	Report    *Report
}

// WriteRunArtifacts writes the frozen config, run metadata, decision log,
// fold summary and markdown report into dir, creating it if needed.
func WriteRunArtifacts(dir string, a Artifacts) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := WriteJSON(filepath.Join(dir, FileFrozenConfig), a.Config); err != nil {
		return err
	}
	if err := WriteJSON(filepath.Join(dir, FileRunMetadata), MetadataJSON(a.Metadata)); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, FileDecisions), func(f *os.File) error {
		return WriteDecisionsCSV(f, a.Decisions)
	}); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, FileFoldSummary), []byte(RenderFoldSummaryCSV(a.Folds)), 0o644); err != nil {
		return fmt.Errorf("write fold summary: %w", err)
	}
	if a.Report != nil {
		if err := os.WriteFile(filepath.Join(dir, FileReport), []byte(RenderMarkdown(a.Report)), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return nil
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
