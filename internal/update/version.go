package update

import (
	"strconv"
	"strings"
)

// Ordering is the result of comparing two versions.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

// String returns the string representation of an Ordering.
func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Greater:
		return "greater"
	default:
		return "equal"
	}
}

// Version is a dotted version string parsed into its numeric segments.
type Version []int

// ParseVersion splits s on "." and parses every segment as a non-negative
// integer. If any segment is malformed the whole string parses as (0), the
// oldest possible version, so that any well-formed version compares newer.
// This covers local dev builds ("dev") and garbled remote manifests alike.
func ParseVersion(s string) Version {
	parts := strings.Split(strings.TrimSpace(s), ".")
	v := make(Version, 0, len(parts))
	for _, p := range parts {
		n, ok := parseSegment(p)
		if !ok {
			return Version{0}
		}
		v = append(v, n)
	}
	return v
}

// parseSegment accepts ASCII digits only: no sign, no spaces, no prefix.
func parseSegment(p string) (int, bool) {
	if p == "" {
		return 0, false
	}
	for i := 0; i < len(p); i++ {
		if p[i] < '0' || p[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return 0, false
	}
	return n, true
}

// String renders the parsed segments joined by dots.
func (v Version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Compare orders v against other segment by segment. Missing trailing
// segments count as 0, so 1.2 == 1.2.0 and 1.2 < 1.2.1.
func (v Version) Compare(other Version) Ordering {
	n := max(len(v), len(other))
	for i := 0; i < n; i++ {
		a, b := segment(v, i), segment(other, i)
		if a < b {
			return Less
		}
		if a > b {
			return Greater
		}
	}
	return Equal
}

// LessThan returns true if v < other.
func (v Version) LessThan(other Version) bool {
	return v.Compare(other) == Less
}

// GreaterThan returns true if v > other.
func (v Version) GreaterThan(other Version) bool {
	return v.Compare(other) == Greater
}

func segment(v Version, i int) int {
	if i < len(v) {
		return v[i]
	}
	return 0
}

// Compare parses both strings and orders a against b.
func Compare(a, b string) Ordering {
	return ParseVersion(a).Compare(ParseVersion(b))
}

// IsNewer reports whether remote is strictly newer than current.
func IsNewer(remote, current string) bool {
	return Compare(remote, current) == Greater
}
