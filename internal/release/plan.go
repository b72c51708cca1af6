// Package release runs a release: version bump, tag, notes and publication.
package release

import (
	"fmt"

	"github.com/bonjohen/hubqueue/internal/ci"
	"github.com/bonjohen/hubqueue/internal/version"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	Kind             = "Release"
	DefaultTagPrefix = "v"
)

type Plan struct {
	Kind       string   `yaml:"kind"`
	APIVersion string   `yaml:"apiVersion"`
	Spec       PlanSpec `yaml:"spec"`
}

type PlanSpec struct {
	Repo        string   `yaml:"repo,omitempty"`  // owner/name, required to publish
	Files       []string `yaml:"files,omitempty"` // discovered when empty
	Pattern     string   `yaml:"pattern,omitempty"`
	Increment   string   `yaml:"increment,omitempty"`
	Version     string   `yaml:"version,omitempty"`
	TagPrefix   *string  `yaml:"tagPrefix,omitempty"`
	Tag         bool     `yaml:"tag"`
	PreviousTag string   `yaml:"previousTag,omitempty"`
	NotesFile   string   `yaml:"notesFile,omitempty"`
	Publish     bool     `yaml:"publish"`
	Draft       bool     `yaml:"draft"`
	Prerelease  bool     `yaml:"prerelease"`
	Assets      []string `yaml:"assets,omitempty"`
}

// Prefix returns the tag prefix, "v" unless set explicitly.
func (s PlanSpec) Prefix() string {
	if s.TagPrefix == nil {
		return DefaultTagPrefix
	}
	return *s.TagPrefix
}

// TagFor renders the tag name for a version.
func (s PlanSpec) TagFor(v version.Spec) string {
	return s.Prefix() + v.String()
}

// Policy builds the version policy of the plan.
func (s PlanSpec) Policy() (version.Policy, error) {
	return version.ParsePolicy(s.Increment, s.Version)
}

func LoadFromFile(fsys afero.Fs, path string) (*Plan, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read release plan: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse release plan: %w", err)
	}

	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid release plan: %w", err)
	}

	return &plan, nil
}

// Validate checks a plan, including one whose fields were overridden from
// flags after loading.
func (p *Plan) Validate() error {
	if p.Kind != Kind {
		return fmt.Errorf("kind must be '%s', got '%s'", Kind, p.Kind)
	}

	if _, err := p.Spec.Policy(); err != nil {
		return fmt.Errorf("spec.increment/spec.version: %w", err)
	}

	if _, err := version.NewMatcher(p.Spec.Pattern); err != nil {
		return fmt.Errorf("spec.pattern: %w", err)
	}

	if p.Spec.Publish {
		if _, _, err := ci.ParseRepo(p.Spec.Repo); err != nil {
			return fmt.Errorf("spec.repo: %w", err)
		}
	}

	if len(p.Spec.Assets) > 0 && !p.Spec.Publish {
		return fmt.Errorf("spec.assets requires spec.publish")
	}

	return nil
}
