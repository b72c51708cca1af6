package version

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
)

// DefaultPattern matches a semantic-version literal with an optional
// pre-release suffix. The version must not be part of a longer dotted number
// such as an IP address or a four-part version.
const DefaultPattern = `(?:^|[^\d.])(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z][0-9A-Za-z.-]*))?(?:$|[^\d.]|\.(?:$|[^\d]))`

// Span is the location of a version inside a file's content. Start and End are
// byte offsets of the version text itself, not of the whole pattern match.
type Span struct {
	Start   int
	End     int
	Line    int
	Text    string
	Version Spec

	// byte offsets of major, minor, patch and suffix; suffix is {-1, -1}
	// when absent
	groups [4][2]int
}

// Matcher finds the first version literal in a piece of content. Custom
// patterns must capture major, minor and patch as groups 1-3; an optional
// group 4 is taken as the suffix.
type Matcher struct {
	re *regexp.Regexp
}

func DefaultMatcher() *Matcher {
	return &Matcher{re: regexp.MustCompile(DefaultPattern)}
}

// NewMatcher compiles a custom pattern. An empty pattern yields the default.
func NewMatcher(pattern string) (*Matcher, error) {
	if pattern == "" {
		return DefaultMatcher(), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return &Matcher{re: re}, nil
}

func (m *Matcher) Pattern() string {
	return m.re.String()
}

// Find returns the first match in file order. ok is false when the content
// holds no match at all; ErrPatternMismatch is returned when the pattern
// matched but did not capture three numeric groups.
func (m *Matcher) Find(content []byte) (span Span, ok bool, err error) {
	loc := m.re.FindSubmatchIndex(content)
	if loc == nil {
		return Span{}, false, nil
	}
	if m.re.NumSubexp() < 3 {
		return Span{}, true, fmt.Errorf("%w: pattern has %d capture group(s)", ErrPatternMismatch, m.re.NumSubexp())
	}

	group := func(i int) (int, int) { return loc[2*i], loc[2*i+1] }
	var parts [3]string
	for i := 1; i <= 3; i++ {
		s, e := group(i)
		if s < 0 {
			return Span{}, true, fmt.Errorf("%w: group %d did not participate", ErrPatternMismatch, i)
		}
		parts[i-1] = string(content[s:e])
	}
	v, err := fromParts(parts[0], parts[1], parts[2])
	if err != nil {
		return Span{}, true, fmt.Errorf("%w: %v", ErrPatternMismatch, err)
	}

	var groups [4][2]int
	for i := 1; i <= 3; i++ {
		groups[i-1][0], groups[i-1][1] = group(i)
	}
	groups[3] = [2]int{-1, -1}

	start, _ := group(1)
	_, end := group(3)
	if m.re.NumSubexp() >= 4 {
		if s, e := group(4); s >= 0 {
			v.Suffix = string(content[s:e])
			groups[3] = [2]int{s, e}
			end = e
		}
	}

	return Span{
		Start:   start,
		End:     end,
		Line:    bytes.Count(content[:start], []byte("\n")) + 1,
		Text:    string(content[start:end]),
		Version: v,
		groups:  groups,
	}, true, nil
}

// Apply writes v into the captured groups of span. Separators between the
// groups and all bytes outside the span are copied unchanged. A suffix is
// replaced in place, removed together with the text between patch and
// suffix, or appended after patch with a "-" when the span had none.
func Apply(content []byte, span Span, v Spec) []byte {
	type edit struct {
		start, end int
		text       string
	}
	edits := []edit{
		{span.groups[0][0], span.groups[0][1], strconv.Itoa(v.Major)},
		{span.groups[1][0], span.groups[1][1], strconv.Itoa(v.Minor)},
		{span.groups[2][0], span.groups[2][1], strconv.Itoa(v.Patch)},
	}
	patchEnd := span.groups[2][1]
	switch suffix := span.groups[3]; {
	case suffix[0] >= 0 && v.Suffix != "":
		edits = append(edits, edit{suffix[0], suffix[1], v.Suffix})
	case suffix[0] >= 0:
		edits = append(edits, edit{patchEnd, suffix[1], ""})
	case v.Suffix != "":
		edits = append(edits, edit{patchEnd, patchEnd, "-" + v.Suffix})
	}

	out := make([]byte, 0, len(content)+len(v.Suffix)+8)
	pos := 0
	for _, e := range edits {
		out = append(out, content[pos:e.start]...)
		out = append(out, e.text...)
		pos = e.end
	}
	return append(out, content[pos:]...)
}
