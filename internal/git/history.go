package git

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bonjohen/hubqueue/internal/changelog"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/hashicorp/go-version"
)

// CommitsBetween lists commits reachable from to but not from from, newest
// first. An empty from means the whole history; an empty to means HEAD.
func (r *Repository) CommitsBetween(from, to string) ([]changelog.Commit, error) {
	head, err := r.resolve(to)
	if err != nil {
		return nil, err
	}

	seen := map[plumbing.Hash]bool{}
	if from != "" {
		base, err := r.resolve(from)
		if err != nil {
			return nil, err
		}
		err = object.NewCommitPreorderIter(base, nil, nil).ForEach(func(c *object.Commit) error {
			seen[c.Hash] = true
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk history of %s: %w", from, err)
		}
	}

	iter, err := r.repo.Log(&gogit.LogOptions{From: head.Hash, Order: gogit.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	var commits []changelog.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if seen[c.Hash] {
			return nil
		}
		subject, body := splitMessage(c.Message)
		commits = append(commits, changelog.Commit{
			Hash:      c.Hash.String(),
			Subject:   subject,
			Body:      body,
			Author:    c.Author.Name,
			Timestamp: c.Author.When,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk log: %w", err)
	}

	r.logger.Debug("collected commits", "from", from, "to", to, "count", len(commits))
	return commits, nil
}

func splitMessage(msg string) (string, string) {
	msg = strings.TrimSpace(msg)
	subject, body, _ := strings.Cut(msg, "\n")
	return strings.TrimSpace(subject), strings.TrimSpace(body)
}

// Tags returns the tag names in the repository.
func (r *Repository) Tags() ([]string, error) {
	refs, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	var names []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// PreviousTag returns the highest version tag sorting below current. Tags
// that are not versions are ignored. When current is not a version the
// highest version tag other than current is returned. An empty result means
// there is no earlier release.
func (r *Repository) PreviousTag(current string) (string, error) {
	names, err := r.Tags()
	if err != nil {
		return "", err
	}
	return previousTag(names, current), nil
}

func previousTag(names []string, current string) string {
	cur, curErr := version.NewVersion(current)

	var best *version.Version
	bestName := ""
	for _, name := range names {
		if name == current {
			continue
		}
		v, err := version.NewVersion(name)
		if err != nil {
			continue
		}
		if curErr == nil && !v.LessThan(cur) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestName = v, name
		}
	}
	return bestName
}
