package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Spec is a semantic version. Suffix holds the pre-release/build part without
// the leading dash.
type Spec struct {
	Major  int
	Minor  int
	Patch  int
	Suffix string
}

var explicitRe = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z][0-9A-Za-z.+-]*))?$`)

// Parse parses "1.2.3", "v1.2.3" or "1.2.3-rc.1".
func Parse(s string) (Spec, error) {
	m := explicitRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Spec{}, fmt.Errorf("%w: %q", ErrInvalidExplicitVersion, s)
	}
	v, err := fromParts(m[1], m[2], m[3])
	if err != nil {
		return Spec{}, fmt.Errorf("%w: %q: %v", ErrInvalidExplicitVersion, s, err)
	}
	v.Suffix = m[4]
	return v, nil
}

func fromParts(major, minor, patch string) (Spec, error) {
	var nums [3]int
	for i, p := range []string{major, minor, patch} {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Spec{}, err
		}
		if n < 0 {
			return Spec{}, fmt.Errorf("negative component %d", n)
		}
		nums[i] = n
	}
	return Spec{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func (v Spec) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Suffix != "" {
		s += "-" + v.Suffix
	}
	return s
}

// Increment is the kind of bump applied to a version.
type Increment string

const (
	IncrementMajor Increment = "major"
	IncrementMinor Increment = "minor"
	IncrementPatch Increment = "patch"
)

// Bump returns the next version. The suffix is always dropped.
func (v Spec) Bump(inc Increment) (Spec, error) {
	switch inc {
	case IncrementMajor:
		return Spec{Major: v.Major + 1}, nil
	case IncrementMinor:
		return Spec{Major: v.Major, Minor: v.Minor + 1}, nil
	case IncrementPatch:
		return Spec{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}, nil
	default:
		return Spec{}, fmt.Errorf("unknown increment %q (want major, minor or patch)", inc)
	}
}

// Policy decides the next version: either an increment or an explicit value.
type Policy struct {
	Increment Increment
	Explicit  *Spec
}

// ParsePolicy builds a policy from CLI-style input. An explicit version wins
// over the increment.
func ParsePolicy(increment, explicit string) (Policy, error) {
	if explicit != "" {
		v, err := Parse(explicit)
		if err != nil {
			return Policy{}, err
		}
		return Policy{Explicit: &v}, nil
	}
	if increment == "" {
		increment = string(IncrementPatch)
	}
	inc := Increment(strings.ToLower(increment))
	switch inc {
	case IncrementMajor, IncrementMinor, IncrementPatch:
		return Policy{Increment: inc}, nil
	}
	return Policy{}, fmt.Errorf("unknown increment %q (want major, minor or patch)", increment)
}

// Next applies the policy to the current version.
func (p Policy) Next(current Spec) (Spec, error) {
	if p.Explicit != nil {
		return *p.Explicit, nil
	}
	return current.Bump(p.Increment)
}
