// Package git reads release history from a local repository and creates
// release tags.
package git

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var (
	ErrRevisionNotFound = errors.New("revision not found")
	ErrTagExists        = errors.New("tag already exists")
)

const (
	defaultName  = "hubqueue"
	defaultEmail = "hubqueue@users.noreply.github.com"
)

type Repository struct {
	logger *slog.Logger
	repo   *gogit.Repository
	root   string
}

// Open opens the repository containing path.
func Open(path string, logger *slog.Logger) (*Repository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	path = abs
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", path, err)
	}
	root := path
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}
	return &Repository{logger: logger, repo: repo, root: root}, nil
}

// Root is the worktree root.
func (r *Repository) Root() string {
	return r.root
}

func (r *Repository) resolve(rev string) (*object.Commit, error) {
	if rev == "" {
		rev = "HEAD"
	}
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRevisionNotFound, rev, err)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", rev, err)
	}
	return commit, nil
}

// Head returns the hash HEAD points at.
func (r *Repository) Head() (string, error) {
	c, err := r.resolve("HEAD")
	if err != nil {
		return "", err
	}
	return c.Hash.String(), nil
}

// signature builds the tagger from the repository
// config, falling back to a fixed identity.
func (r *Repository) signature() *object.Signature {
	sig := &object.Signature{Name: defaultName, Email: defaultEmail, When: time.Now()}
	cfg, err := r.repo.Config()
	if err != nil {
		return sig
	}
	if cfg.User.Name != "" {
		sig.Name = cfg.User.Name
	}
	if cfg.User.Email != "" {
		sig.Email = cfg.User.Email
	}
	return sig
}

// CreateTag creates an annotated tag on HEAD.
func (r *Repository) CreateTag(name, message string) error {
	if _, err := r.repo.Tag(name); err == nil {
		return fmt.Errorf("%w: %s", ErrTagExists, name)
	}
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if strings.TrimSpace(message) == "" {
		message = "Release " + name
	}
	_, err = r.repo.CreateTag(name, head.Hash(), &gogit.CreateTagOptions{
		Tagger:  r.signature(),
		Message: message,
	})
	if err != nil {
		if errors.Is(err, gogit.ErrTagExists) {
			return fmt.Errorf("%w: %s", ErrTagExists, name)
		}
		return fmt.Errorf("failed to create tag %s: %w", name, err)
	}
	r.logger.Info("created tag", "tag", name, "commit", head.Hash().String())
	return nil
}
