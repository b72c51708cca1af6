package changelog

import (
	"fmt"
	"strings"
	"time"
)

// Notes is the categorized content of a release. It is built once and not
// modified afterwards.
type Notes struct {
	Tag         string
	PreviousTag string
	Categories  map[Category][]Commit
	GeneratedAt time.Time
}

// Build classifies oldest-first commits into release notes.
func Build(tag, previousTag string, commits []Commit, generatedAt time.Time) *Notes {
	return &Notes{
		Tag:         tag,
		PreviousTag: previousTag,
		Categories:  Classify(commits),
		GeneratedAt: generatedAt,
	}
}

// Len returns the number of commits across all categories.
func (n *Notes) Len() int {
	total := 0
	for _, commits := range n.Categories {
		total += len(commits)
	}
	return total
}

// Commits returns the commits of one category in oldest-first order.
func (n *Notes) Commits(c Category) []Commit {
	return n.Categories[c]
}

// Render returns the Markdown document.
func (n *Notes) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Release %s (%s)\n\n", n.Tag, n.GeneratedAt.UTC().Format("2006-01-02"))
	if n.PreviousTag != "" {
		fmt.Fprintf(&b, "Changes since %s.\n\n", n.PreviousTag)
	}

	if n.Len() == 0 {
		b.WriteString("No changes since previous release.\n")
		return b.String()
	}

	for _, cat := range Categories {
		commits := n.Categories[cat]
		if len(commits) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", cat.Title())
		for _, c := range commits {
			if c.Subject == "" {
				fmt.Fprintf(&b, "- %s\n", c.ShortHash())
				continue
			}
			fmt.Fprintf(&b, "- %s %s\n", c.ShortHash(), c.Subject)
		}
		b.WriteString("\n")
	}

	return b.String()
}
