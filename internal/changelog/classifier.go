package changelog

import "regexp"

// Category is a release-note bucket.
type Category string

const (
	Feature       Category = "feature"
	Fix           Category = "fix"
	Documentation Category = "documentation"
	Other         Category = "other"
)

// Categories lists every bucket in rendering order.
var Categories = []Category{Feature, Fix, Documentation, Other}

// Title is the heading used when rendering the category.
func (c Category) Title() string {
	switch c {
	case Feature:
		return "Features"
	case Fix:
		return "Bug Fixes"
	case Documentation:
		return "Documentation"
	default:
		return "Other Changes"
	}
}

type rule struct {
	category Category
	pattern  *regexp.Regexp
}

// rules are evaluated in order against the subject; the first match wins.
var rules = []rule{
	{Feature, regexp.MustCompile(`(?i)^feat(ure)?(\(|!|:|\s)|\badd\s|\bnew feature\b`)},
	{Fix, regexp.MustCompile(`(?i)\b(fix(es|ed)?|hotfix|bug(fix)?s?|patch(es|ed)?)\b`)},
	{Documentation, regexp.MustCompile(`(?i)\b(docs?|documentation)\b`)},
}

// CategoryOf returns the category for a commit subject.
func CategoryOf(subject string) Category {
	if subject == "" {
		return Other
	}
	for _, r := range rules {
		if r.pattern.MatchString(subject) {
			return r.category
		}
	}
	return Other
}

// Classify partitions oldest-first commits by category, keeping their
// relative order. Empty categories are absent from the map.
func Classify(commits []Commit) map[Category][]Commit {
	out := make(map[Category][]Commit)
	for _, c := range commits {
		cat := CategoryOf(c.Subject)
		out[cat] = append(out[cat], c)
	}
	return out
}
