package changelog

import "time"

// Commit is a single commit as read from history.
type Commit struct {
	Hash      string
	Subject   string
	Body      string
	Author    string
	Timestamp time.Time
}

// ShortHash returns the abbreviated hash used in rendered notes.
func (c Commit) ShortHash() string {
	if len(c.Hash) > shortHashLen {
		return c.Hash[:shortHashLen]
	}
	return c.Hash
}

const shortHashLen = 7

// Order describes how a commit sequence is sorted.
type Order int

const (
	OldestFirst Order = iota
	NewestFirst
)

// Normalize returns a copy of commits sorted oldest-first.
func Normalize(commits []Commit, order Order) []Commit {
	out := make([]Commit, len(commits))
	copy(out, commits)
	if order == NewestFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}
