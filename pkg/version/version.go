// Package version parses and compares RubyGems-style versions and evaluates
// version constraints against them.
//
// # Versions
//
// A version is a dot-separated list of segments. Numeric segments compare
// numerically, alphabetic segments lexically, and any alphabetic segment
// makes the version a prerelease ("2.0.0.rc1", "1.0.a"). A prerelease sorts
// before the release sharing its numeric prefix. Trailing zero segments are
// insignificant: "1.0" and "1.0.0" are equal.
//
// # Constraints
//
// A constraint is an operator followed by a version:
//
//	=  !=  >  >=  <  <=  ~>
//
// A bare version means "=". "~> 1.2" is the pessimistic operator, equivalent
// to ">= 1.2, < 2.0"; "~> 1.2.3" is ">= 1.2.3, < 1.3". A [Requirement] is the
// conjunction of any number of constraints.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/matzehuels/stackbuild/pkg/errors"
)

// Version represents a parsed version.
type Version struct {
	segments []segment
	original string
}

type segment struct {
	num   int
	str   string
	isNum bool
}

var versionRegex = regexp.MustCompile(`^[0-9]+(?:[.-]?[0-9A-Za-z]+)*$`)

// Parse parses a version string. Hyphens are treated as ".pre." as RubyGems
// does, so "1.0-beta" is a prerelease of "1.0".
func Parse(s string) (*Version, error) {
	s = strings.TrimSpace(s)
	if !versionRegex.MatchString(s) {
		return nil, errors.New(errors.ErrCodeInvalidVersion, "invalid version %q", s)
	}

	norm := strings.ReplaceAll(s, "-", ".pre.")
	v := &Version{original: s}
	for _, part := range strings.Split(norm, ".") {
		v.segments = append(v.segments, splitSegment(part)...)
	}
	return v, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level tables.
func MustParse(s string) *Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// splitSegment splits mixed segments such as "0rc1" into "0", "rc", "1".
func splitSegment(part string) []segment {
	var out []segment
	start := 0
	for i := 1; i <= len(part); i++ {
		if i < len(part) && isDigit(part[i]) == isDigit(part[start]) {
			continue
		}
		chunk := part[start:i]
		if isDigit(chunk[0]) {
			n, err := strconv.Atoi(chunk)
			if err != nil {
				// Oversized numeric segment: compare it lexically.
				out = append(out, segment{str: chunk})
			} else {
				out = append(out, segment{num: n, isNum: true})
			}
		} else {
			out = append(out, segment{str: chunk})
		}
		start = i
	}
	return out
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// String returns the version as originally written.
func (v *Version) String() string { return v.original }

// Prerelease reports whether the version contains an alphabetic segment.
func (v *Version) Prerelease() bool {
	for _, s := range v.segments {
		if !s.isNum {
			return true
		}
	}
	return false
}

// Release returns the version with all segments from the first alphabetic
// one stripped ("1.2.rc1" -> "1.2").
func (v *Version) Release() *Version {
	var segs []segment
	var parts []string
	for _, s := range v.segments {
		if !s.isNum {
			break
		}
		segs = append(segs, s)
		parts = append(parts, strconv.Itoa(s.num))
	}
	if len(segs) == 0 {
		segs = []segment{{isNum: true}}
		parts = []string{"0"}
	}
	return &Version{segments: segs, original: strings.Join(parts, ".")}
}

// Bump returns the next release boundary used by the pessimistic operator:
// the last numeric segment is dropped (unless only one remains) and the new
// last one incremented. "1.2.3" -> "1.3", "1.2" -> "2", "1" -> "2".
func (v *Version) Bump() *Version {
	rel := v.Release().segments
	if len(rel) > 1 {
		rel = rel[:len(rel)-1]
	}
	segs := make([]segment, len(rel))
	copy(segs, rel)
	segs[len(segs)-1].num++

	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = strconv.Itoa(s.num)
	}
	return &Version{segments: segs, original: strings.Join(parts, ".")}
}

// Compare compares two versions.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
func (v *Version) Compare(other *Version) int {
	n := max(len(v.segments), len(other.segments))
	for i := range n {
		a, b := v.at(i), other.at(i)
		if c := compareSegment(a, b); c != 0 {
			return c
		}
	}
	return 0
}

// at returns segment i, padding with numeric zero.
func (v *Version) at(i int) segment {
	if i < len(v.segments) {
		return v.segments[i]
	}
	return segment{isNum: true}
}

func compareSegment(a, b segment) int {
	switch {
	case a.isNum && b.isNum:
		return cmpInt(a.num, b.num)
	case a.isNum:
		// Numbers sort after strings: "1.0" > "1.0.rc1"
		return 1
	case b.isNum:
		return -1
	default:
		return strings.Compare(a.str, b.str)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Equal reports whether two versions compare equal.
func (v *Version) Equal(other *Version) bool { return v.Compare(other) == 0 }

// GoString aids debugging in test failure messages.
func (v *Version) GoString() string { return fmt.Sprintf("version.MustParse(%q)", v.original) }
