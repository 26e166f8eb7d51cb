// Package objectkey derives object-store keys for uploaded recordings.
package objectkey

import (
	"fmt"
	"time"
)

// Derive builds the storage key for a recording. The key is deterministic
// for a given input triple and embeds a date-partitioned path so lifecycle
// tooling can range-scan by day without a secondary index. Nanosecond
// timestamp resolution keeps keys unique for repeated uploads of the same
// identifier by the same tenant.
func Derive(tenantID, identifier string, ts time.Time) string {
	ts = ts.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s-%d",
		tenantID, ts.Year(), int(ts.Month()), ts.Day(), identifier, ts.UnixNano())
}
