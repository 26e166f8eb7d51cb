// Package httprange parses HTTP Range request headers against a known
// object size. Only single-range requests are supported: a multi-range
// request is rejected outright rather than collapsed, so a caller never
// receives bytes it did not ask for.
package httprange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsatisfiable reports a syntactically valid range that lies entirely
// beyond the object, which maps to 416 Range Not Satisfiable.
var ErrUnsatisfiable = errors.New("range not satisfiable")

// StreamRange is a resolved byte range with 0 <= Start <= End < Size.
// Start and End are inclusive, matching Content-Range notation.
type StreamRange struct {
	Start, End, Size int64
}

// Length returns the number of bytes covered by the range.
func (r *StreamRange) Length() int64 { return r.End - r.Start + 1 }

// ContentRange renders the Content-Range header value for a 206 response.
func (r *StreamRange) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Size)
}

// Parse resolves a Range header value against the object size. An empty
// header yields (nil, nil), meaning the whole object. Supported forms are
// "bytes=a-b", "bytes=a-" and the suffix form "bytes=-n". Malformed input
// is an error, a start offset at or past the object size is
// ErrUnsatisfiable, and anything containing more than one range is
// rejected.
func Parse(s string, size int64) (*StreamRange, error) {
	if s == "" {
		return nil, nil
	}
	const prefix = "bytes="
	if !strings.HasPrefix(s, prefix) {
		return nil, fmt.Errorf("invalid range header %q", s)
	}
	spec := strings.TrimSpace(s[len(prefix):])
	if spec == "" {
		return nil, fmt.Errorf("invalid range header %q", s)
	}
	if strings.Contains(spec, ",") {
		return nil, fmt.Errorf("multi-range request %q is not supported", s)
	}
	i := strings.Index(spec, "-")
	if i < 0 {
		return nil, fmt.Errorf("invalid range header %q", s)
	}
	start, end := strings.TrimSpace(spec[:i]), strings.TrimSpace(spec[i+1:])
	r := &StreamRange{Size: size}
	if start == "" {
		// Suffix form: the final n bytes of the object.
		n, err := strconv.ParseInt(end, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid range header %q", s)
		}
		if size == 0 {
			// No suffix of an empty object exists.
			return nil, ErrUnsatisfiable
		}
		if n > size {
			n = size
		}
		r.Start = size - n
		r.End = size - 1
		return r, nil
	}
	off, err := strconv.ParseInt(start, 10, 64)
	if err != nil || off < 0 {
		return nil, fmt.Errorf("invalid range header %q", s)
	}
	if off >= size {
		return nil, ErrUnsatisfiable
	}
	r.Start = off
	if end == "" {
		r.End = size - 1
		return r, nil
	}
	last, err := strconv.ParseInt(end, 10, 64)
	if err != nil || last < r.Start {
		return nil, fmt.Errorf("invalid range header %q", s)
	}
	if last >= size {
		last = size - 1
	}
	r.End = last
	return r, nil
}
