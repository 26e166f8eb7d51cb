package objectkey

import (
	"strings"
	"testing"
	"time"
)

func TestDerive(t *testing.T) {
	ts := time.Date(2026, time.March, 7, 14, 30, 0, 123456789, time.UTC)

	var tests = []struct {
		tenant     string
		identifier string
		ts         time.Time
		want       string
	}{
		{"acme", "cam-12", ts, "acme/2026/03/07/cam-12-1772893800123456789"},
		{"acme", "cam-12", ts.In(time.FixedZone("UTC+8", 8*3600)), "acme/2026/03/07/cam-12-1772893800123456789"},
		{"globex", "cam-12", ts, "globex/2026/03/07/cam-12-1772893800123456789"},
	}
	for _, tt := range tests {
		if got := Derive(tt.tenant, tt.identifier, tt.ts); got != tt.want {
			t.Errorf("Derive(%q, %q) = %q, want %q", tt.tenant, tt.identifier, got, tt.want)
		}
	}
}

func TestDeriveDeterministic(t *testing.T) {
	ts := time.Now()
	a := Derive("acme", "cam-1", ts)
	b := Derive("acme", "cam-1", ts)
	if a != b {
		t.Errorf("Derive is not deterministic: %q != %q", a, b)
	}
}

func TestDeriveDistinct(t *testing.T) {
	seen := make(map[string]bool)
	base := time.Now()
	for i := 0; i < 1000; i++ {
		key := Derive("acme", "cam-1", base.Add(time.Duration(i)*time.Nanosecond))
		if seen[key] {
			t.Fatalf("duplicate key %q", key)
		}
		seen[key] = true
	}
}

func TestDeriveDatePartition(t *testing.T) {
	key := Derive("acme", "cam-1", time.Date(2026, time.December, 31, 23, 59, 59, 0, time.UTC))
	if !strings.HasPrefix(key, "acme/2026/12/31/") {
		t.Errorf("key %q does not carry the date partition prefix", key)
	}
}
