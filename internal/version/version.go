// Package version parses and compares runtime version identifiers such as
// "0.6", "0.8.2" or "1".
//
// Only the major and minor components take part in comparisons. The patch
// component is kept for callers that need it but never influences
// compatibility gating.
package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/Masterminds/semver/v3"
)

// ErrUnsupportedVersion is returned by CheckFloor for versions below Floor.
var ErrUnsupportedVersion = errors.New("unsupported version")

// Floor is the minimum accepted target version.
var Floor = Version{Major: 0, Minor: 6}

var versionPattern = regexp.MustCompile(`^(\d+)(?:\.(\d+)(?:\.(\d+))?)?$`)

// Version is a parsed runtime version. A missing minor component is zero and
// a missing patch component is a wildcard (HasPatch is false).
type Version struct {
	Major    int
	Minor    int
	Patch    int
	HasPatch bool
}

// Parse parses input, falling back to fallback when input is empty. It
// accepts "X", "X.Y" and "X.Y.Z" with non-negative decimal components and
// reports false for anything else.
func Parse(input, fallback string) (Version, bool) {
	if input == "" {
		input = fallback
	}

	m := versionPattern.FindStringSubmatch(input)
	if m == nil {
		return Version{}, false
	}

	var v Version
	var err error
	if v.Major, err = strconv.Atoi(m[1]); err != nil {
		return Version{}, false
	}
	if m[2] != "" {
		if v.Minor, err = strconv.Atoi(m[2]); err != nil {
			return Version{}, false
		}
	}
	if m[3] != "" {
		if v.Patch, err = strconv.Atoi(m[3]); err != nil {
			return Version{}, false
		}
		v.HasPatch = true
	}

	return v, true
}

// LessThan reports whether v is older than major.minor. Patch is ignored.
func LessThan(v Version, major, minor int) bool {
	if v.Major != major {
		return v.Major < major
	}
	return v.Minor < minor
}

// CheckFloor returns ErrUnsupportedVersion when v is below Floor.
func CheckFloor(v Version) error {
	if LessThan(v, Floor.Major, Floor.Minor) {
		return fmt.Errorf("%w: minimum target version is `%s` or greater, got: %s", ErrUnsupportedVersion, Floor, v)
	}
	return nil
}

// String returns "major.minor", the form used to key install directories.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Release returns the release tag of the .0 release of v's minor line,
// e.g. "v0.8.0".
func (v Version) Release() string {
	return fmt.Sprintf("v%d.%d.0", v.Major, v.Minor)
}

// semver returns v as a semver value with patch forced to zero.
func (v Version) semver() *semver.Version {
	return semver.New(uint64(v.Major), uint64(v.Minor), 0, "", "")
}

// Constraint is a version range such as "< 0.8" or ">= 0.6, < 0.7".
type Constraint struct {
	raw string
	c   *semver.Constraints
}

// NewConstraint compiles a range expression.
func NewConstraint(expr string) (Constraint, error) {
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return Constraint{}, fmt.Errorf("parse constraint %q: %w", expr, err)
	}
	return Constraint{raw: expr, c: c}, nil
}

// MustConstraint is like NewConstraint but panics on a malformed expression.
// It is meant for package-level tables.
func MustConstraint(expr string) Constraint {
	c, err := NewConstraint(expr)
	if err != nil {
		panic(err)
	}
	return c
}

// Check reports whether v falls inside the range. The patch component of v
// is ignored.
func (c Constraint) Check(v Version) bool {
	if c.c == nil {
		return false
	}
	return c.c.Check(v.semver())
}

func (c Constraint) String() string {
	return c.raw
}
