package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bonjohen/hubqueue/internal/changelog"
	"github.com/bonjohen/hubqueue/internal/ci"
	"github.com/bonjohen/hubqueue/internal/version"
	"github.com/spf13/afero"
)

// History reads commits and tags.
type History interface {
	CommitsBetween(from, to string) ([]changelog.Commit, error)
	PreviousTag(current string) (string, error)
}

// Recorder tags the local repository.
type Recorder interface {
	Head() (string, error)
	CreateTag(name, message string) error
}

// Publisher creates hosted releases.
type Publisher interface {
	PublishRelease(ctx context.Context, req ci.ReleaseRequest) (*ci.Published, error)
}

var (
	ErrNoRecorder  = errors.New("release needs a git repository to tag or publish")
	ErrNoPublisher = errors.New("release needs a GitHub client to publish")
	ErrBumpFailed  = errors.New("version bump did not complete")
)

// Report describes what a release run did. Fields for steps that did not run
// are left empty.
type Report struct {
	Bump        *version.Result
	Tag         string
	PreviousTag string
	Target      string
	Tagged      bool
	Notes       *changelog.Notes
	NotesPath   string
	Published   *ci.Published
	DryRun      bool
}

type Releaser struct {
	logger    *slog.Logger
	fs        afero.Fs
	history   History
	recorder  Recorder
	publisher Publisher
	now       func() time.Time
	dryRun    bool
}

type Option func(*Releaser)

func WithRecorder(r Recorder) Option {
	return func(rl *Releaser) { rl.recorder = r }
}

func WithPublisher(p Publisher) Option {
	return func(rl *Releaser) { rl.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(rl *Releaser) { rl.now = now }
}

// WithDryRun keeps every file write in memory and skips tag and publish.
func WithDryRun(dryRun bool) Option {
	return func(rl *Releaser) { rl.dryRun = dryRun }
}

func New(fsys afero.Fs, history History, logger *slog.Logger, opts ...Option) *Releaser {
	r := &Releaser{
		logger:  logger,
		fs:      fsys,
		history: history,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dryRun {
		r.fs = afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(fsys), afero.NewMemMapFs())
	}
	return r
}

// Notes builds release notes for the commits after previous up to to. An
// empty previous is resolved to the highest version tag below tag.
func (r *Releaser) Notes(tag, previous, to string) (*changelog.Notes, error) {
	if previous == "" {
		prev, err := r.history.PreviousTag(tag)
		if err != nil {
			return nil, fmt.Errorf("failed to find previous tag: %w", err)
		}
		previous = prev
	}
	if to == "" {
		to = tag
	}

	commits, err := r.history.CommitsBetween(previous, to)
	if err != nil {
		return nil, fmt.Errorf("failed to read history %s..%s: %w", previous, to, err)
	}

	notes := changelog.Build(tag, previous, changelog.Normalize(commits, changelog.NewestFirst), r.now())
	r.logger.Info("built release notes", "tag", tag, "previous_tag", previous, "commits", notes.Len())
	return notes, nil
}

// Run executes the plan. Steps run in order and the first failing step stops
// the release; the report always covers the steps that completed.
func (r *Releaser) Run(ctx context.Context, plan *Plan) (*Report, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	spec := plan.Spec
	if !r.dryRun {
		if (spec.Tag || spec.Publish) && r.recorder == nil {
			return nil, ErrNoRecorder
		}
		if spec.Publish && r.publisher == nil {
			return nil, ErrNoPublisher
		}
	}

	report := &Report{DryRun: r.dryRun}

	policy, err := spec.Policy()
	if err != nil {
		return nil, err
	}
	matcher, err := version.NewMatcher(spec.Pattern)
	if err != nil {
		return nil, err
	}

	bump, err := version.NewRewriter(r.fs, matcher, r.logger).Rewrite(ctx, spec.Files, policy)
	report.Bump = bump
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrBumpFailed, err)
	}
	report.Tag = spec.TagFor(bump.NewVersion)
	message := "Release " + report.Tag
	r.logger.Info("bumped version", "from", bump.OldVersion.String(), "to", bump.NewVersion.String(), "files", len(bump.Updated))

	if r.dryRun {
		r.logger.Info("dry run, skipping tag and publish", "tag", report.Tag)
	} else if spec.Tag {
		if err := r.recorder.CreateTag(report.Tag, message); err != nil {
			return report, fmt.Errorf("failed to tag release: %w", err)
		}
		report.Tagged = true
	}

	// untagged releases take history up to HEAD
	to := "HEAD"
	if report.Tagged {
		to = report.Tag
	}
	notes, err := r.Notes(report.Tag, spec.PreviousTag, to)
	if err != nil {
		return report, err
	}
	report.Notes = notes
	report.PreviousTag = notes.PreviousTag
	body := notes.Render()

	if spec.NotesFile != "" {
		if err := r.fs.MkdirAll(filepath.Dir(spec.NotesFile), 0o755); err != nil {
			return report, fmt.Errorf("failed to create notes directory: %w", err)
		}
		if err := afero.WriteFile(r.fs, spec.NotesFile, []byte(body), 0o644); err != nil {
			return report, fmt.Errorf("failed to write release notes: %w", err)
		}
		report.NotesPath = spec.NotesFile
		r.logger.Info("wrote release notes", "file", spec.NotesFile)
	}

	if r.dryRun {
		return report, nil
	}

	if spec.Publish {
		// GitHub creates the tag at the target when it is not on the remote
		target, err := r.recorder.Head()
		if err != nil {
			return report, fmt.Errorf("failed to resolve release target: %w", err)
		}
		report.Target = target
		pub, err := r.publisher.PublishRelease(ctx, ci.ReleaseRequest{
			Tag:             report.Tag,
			Name:            report.Tag,
			Body:            body,
			TargetCommitish: target,
			Draft:           spec.Draft,
			Prerelease:      spec.Prerelease,
			Assets:          spec.Assets,
		})
		report.Published = pub
		if err != nil {
			return report, fmt.Errorf("failed to publish release %s: %w", report.Tag, err)
		}
	}

	return report, nil
}
