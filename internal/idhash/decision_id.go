package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeDecisionID computes a deterministic decision_id using SHA256.
// Formula: SHA256(run_id|fold_index|ts_unix_nano)
// Returns hex-encoded hash (64 characters).
func ComputeDecisionID(runID string, foldIndex int, ts time.Time) string {
	data := fmt.Sprintf("%s|%d|%d",
		runID,
		foldIndex,
		ts.UTC().UnixNano(),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
