package semver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a three-component version number ordered numerically by
// (major, minor, patch). "9.10.0" sorts after "9.9.0".
type Version struct {
	Major int
	Minor int
	Patch int
}

var versionRe = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)

func Parse(s string) (Version, error) {
	m := versionRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return Version{Major: major, Minor: minor, Patch: patch}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 as v orders before, equal to or after o.
func (v Version) Compare(o Version) int {
	if c := cmpInt(v.Major, o.Major); c != 0 {
		return c
	}
	if c := cmpInt(v.Minor, o.Minor); c != 0 {
		return c
	}
	return cmpInt(v.Patch, o.Patch)
}

// MajorLabel returns the PostgreSQL major version label: "9.4" for 9.4.x,
// "15" for 15.x and later (the one-component scheme starts at 10).
func (v Version) MajorLabel() string {
	if v.Major >= 10 {
		return strconv.Itoa(v.Major)
	}
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
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
