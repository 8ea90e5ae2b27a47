// Package store persists per-tenant engine state (baselines, adaptive
// weights, deployment events, granger history) on a key-value backend.
// Every operation is best-effort: a failing backend degrades to zero
// values, never into the analysis path.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// slug hashes free-form names into fixed-length key segments. Cache keys
// do not need to be reversible.
func slug(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:32]
}

func baselineKey(tenantID, metricName string) string {
	return fmt.Sprintf("bc:%s:baseline:%s", tenantID, slug(metricName))
}

func weightsKey(tenantID string) string {
	return fmt.Sprintf("bc:%s:weights", tenantID)
}

func grangerKey(tenantID, service string) string {
	return fmt.Sprintf("bc:%s:granger:%s", tenantID, slug(service))
}

func eventsKey(tenantID string) string {
	return fmt.Sprintf("bc:%s:events", tenantID)
}
