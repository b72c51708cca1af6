package version

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DefaultManifests are the file names probed when no files are given.
var DefaultManifests = []string{
	"__init__.py",
	"*/__init__.py",
	"setup.py",
	"setup.cfg",
	"pyproject.toml",
	"package.json",
	"Chart.yaml",
	"VERSION",
	"version.txt",
}

// Match is one rewritten location.
type Match struct {
	Path    string
	Line    int
	Text    string
	Pattern string
	Found   Spec
}

// Outcome summarises a batch.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomePartial  Outcome = "partial"
	OutcomeFailed   Outcome = "failed"
)

// Result of a rewrite pass. Updated and Failures are both populated on
// partial success.
type Result struct {
	Updated    []Match
	Skipped    []string
	Failures   []FileError
	OldVersion Spec
	NewVersion Spec
}

func (r *Result) Outcome() Outcome {
	switch {
	case len(r.Failures) == 0:
		return OutcomeComplete
	case len(r.Updated) > 0:
		return OutcomePartial
	default:
		return OutcomeFailed
	}
}

// Divergent returns the matches whose current version differed from OldVersion.
func (r *Result) Divergent() []Match {
	var out []Match
	for _, m := range r.Updated {
		if m.Found != r.OldVersion {
			out = append(out, m)
		}
	}
	return out
}

type Rewriter struct {
	fs      afero.Fs
	matcher *Matcher
	logger  *slog.Logger
}

func NewRewriter(fsys afero.Fs, matcher *Matcher, logger *slog.Logger) *Rewriter {
	if matcher == nil {
		matcher = DefaultMatcher()
	}
	return &Rewriter{
		fs:      fsys,
		matcher: matcher,
		logger:  logger,
	}
}

// Discover returns the default manifest files present in the file system.
func (r *Rewriter) Discover() ([]string, error) {
	var found []string
	for _, name := range DefaultManifests {
		if strings.ContainsAny(name, "*?[") {
			matches, err := afero.Glob(r.fs, name)
			if err != nil {
				return nil, fmt.Errorf("glob %s: %w", name, err)
			}
			found = append(found, matches...)
			continue
		}
		if ok, _ := afero.Exists(r.fs, name); ok {
			found = append(found, name)
		}
	}
	found = dedupe(found)
	if len(found) == 0 {
		return nil, ErrNoFilesFound
	}
	return found, nil
}

type scanned struct {
	path    string
	content []byte
	span    Span
}

// Rewrite updates the version in every file. The returned error is nil on full
// success, a *PartialError when some files failed, and a plain error when
// nothing could be done at all. The Result is non-nil whenever at least the
// old version was determined.
func (r *Rewriter) Rewrite(ctx context.Context, files []string, policy Policy) (*Result, error) {
	if len(files) == 0 {
		discovered, err := r.Discover()
		if err != nil {
			return nil, err
		}
		r.logger.Info("discovered version files", "files", discovered)
		files = discovered
	}
	files = dedupe(files)

	result := &Result{}
	var targets []scanned
	for _, path := range files {
		content, err := afero.ReadFile(r.fs, path)
		if err != nil {
			result.Failures = append(result.Failures, FileError{Path: path, Err: classify(err)})
			r.logger.Warn("cannot read version file", "file", path, "error", err)
			continue
		}
		span, ok, err := r.matcher.Find(content)
		if err != nil {
			result.Failures = append(result.Failures, FileError{Path: path, Err: err})
			r.logger.Warn("skipping file", "file", path, "error", err)
			continue
		}
		if !ok {
			result.Skipped = append(result.Skipped, path)
			r.logger.Debug("no version in file", "file", path)
			continue
		}
		targets = append(targets, scanned{path: path, content: content, span: span})
	}

	if len(targets) == 0 {
		if len(result.Failures) > 0 {
			return result, &PartialError{Failures: result.Failures}
		}
		return result, fmt.Errorf("%w (pattern %s)", ErrNoVersionFound, r.matcher.Pattern())
	}

	result.OldVersion = targets[0].span.Version
	next, err := policy.Next(result.OldVersion)
	if err != nil {
		return result, err
	}
	result.NewVersion = next
	r.logger.Info("updating version", "from", result.OldVersion.String(), "to", next.String())

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if t.span.Version != result.OldVersion {
			r.logger.Warn("file disagrees on current version", "file", t.path, "found", t.span.Version.String(), "using", result.OldVersion.String())
		}
		if err := r.writeAtomic(t.path, Apply(t.content, t.span, next)); err != nil {
			result.Failures = append(result.Failures, FileError{Path: t.path, Err: classify(err)})
			r.logger.Error("failed to rewrite file", "file", t.path, "error", err)
			continue
		}
		result.Updated = append(result.Updated, Match{
			Path:    t.path,
			Line:    t.span.Line,
			Text:    t.span.Text,
			Pattern: r.matcher.Pattern(),
			Found:   t.span.Version,
		})
		r.logger.Debug("updated version", "file", t.path, "line", t.span.Line)
	}

	if len(result.Failures) > 0 {
		return result, &PartialError{Failures: result.Failures, Updated: len(result.Updated)}
	}
	return result, nil
}

// writeAtomic writes to a sibling temp file and renames it over the target so
// the file is either fully rewritten or untouched.
func (r *Rewriter) writeAtomic(path string, data []byte) error {
	info, err := r.fs.Stat(path)
	if err != nil {
		return err
	}
	tmp, err := afero.TempFile(r.fs, filepath.Dir(path), "."+filepath.Base(path)+".hubqueue-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = r.fs.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = r.fs.Remove(name)
		return err
	}
	if err := r.fs.Chmod(name, info.Mode().Perm()); err != nil {
		_ = r.fs.Remove(name)
		return err
	}
	if err := r.fs.Rename(name, path); err != nil {
		_ = r.fs.Remove(name)
		return err
	}
	return nil
}

func classify(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		clean := filepath.Clean(p)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	return out
}
