package httprange

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	var tests = []struct {
		s    string
		size int64
		r    *StreamRange
	}{
		{"", 1000, nil},
		{"foo", 1000, nil},
		{"bytes=", 1000, nil},
		{"bytes=7", 1000, nil},
		{"bytes=A-", 1000, nil},
		{"bytes=A-Z", 1000, nil},
		{"bytes=5-4", 1000, nil},
		{"bytes=-0", 1000, nil},
		{"bytes=-A", 1000, nil},
		{"bytes=--5", 1000, nil},
		{"bytes=0x01-0x02", 1000, nil},
		{"bytes=0-0,-1", 1000, nil},
		{"bytes=1-2,5-", 1000, nil},
		{"bytes=0-9", 10, &StreamRange{0, 9, 10}},
		{"bytes=0-", 10, &StreamRange{0, 9, 10}},
		{"bytes=5-", 10, &StreamRange{5, 9, 10}},
		{"bytes=0-20", 10, &StreamRange{0, 9, 10}},
		{"bytes=-5", 10, &StreamRange{5, 9, 10}},
		{"bytes=-15", 10, &StreamRange{0, 9, 10}},
		{"bytes=100-199", 1000, &StreamRange{100, 199, 1000}},
		{"bytes=0-499", 10000, &StreamRange{0, 499, 10000}},
		{"bytes=500-999", 10000, &StreamRange{500, 999, 10000}},
		{"bytes=-500", 10000, &StreamRange{9500, 9999, 10000}},
		{"bytes=9500-", 10000, &StreamRange{9500, 9999, 10000}},
		{"bytes= 0-99", 1000, &StreamRange{0, 99, 1000}},
	}

	for _, tt := range tests {
		r, err := Parse(tt.s, tt.size)
		if tt.r == nil && tt.s != "" {
			if err == nil {
				t.Errorf("Parse(%q) = %+v, want error", tt.s, r)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q) returned error %q", tt.s, err)
			continue
		}
		if tt.r == nil {
			if r != nil {
				t.Errorf("Parse(%q) = %+v, want nil", tt.s, r)
			}
			continue
		}
		if *r != *tt.r {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.s, *r, *tt.r)
		}
	}
}

func TestParseUnsatisfiable(t *testing.T) {
	var tests = []struct {
		s    string
		size int64
	}{
		{"bytes=2000-", 1000},
		{"bytes=1000-", 1000},
		{"bytes=2000-3000", 1000},
		{"bytes=0-", 0},
		{"bytes=-5", 0},
		{"bytes=-1", 0},
	}
	for _, tt := range tests {
		if _, err := Parse(tt.s, tt.size); !errors.Is(err, ErrUnsatisfiable) {
			t.Errorf("Parse(%q, %d) error = %v, want ErrUnsatisfiable", tt.s, tt.size, err)
		}
	}
}

func TestContentRange(t *testing.T) {
	r := &StreamRange{Start: 100, End: 199, Size: 1000}
	if got := r.ContentRange(); got != "bytes 100-199/1000" {
		t.Errorf("ContentRange() = %q, want %q", got, "bytes 100-199/1000")
	}
	if got := r.Length(); got != 100 {
		t.Errorf("Length() = %d, want 100", got)
	}
}
