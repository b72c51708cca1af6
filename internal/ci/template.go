package ci

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const releaseWorkflowYAML = `name: hubqueue release

on:
  workflow_dispatch:
    inputs:
      increment:
        description: 'Version increment (major, minor or patch)'
        required: false
        default: 'patch'
        type: string
      version:
        description: 'Explicit version, overrides increment'
        required: false
        type: string
      plan:
        description: 'Path to the release plan'
        required: false
        default: '.hubqueue/release.yaml'
        type: string

permissions:
  contents: write

jobs:
  release:
    runs-on: ubuntu-latest
    steps:
    - name: Checkout repository
      uses: actions/checkout@v4
      with:
        fetch-depth: 0
        token: ${{ secrets.GITHUB_TOKEN }}

    - name: Install hubqueue
      run: |
        curl -L https://github.com/bonjohen/hubqueue/releases/latest/download/hubqueue-linux-amd64 -o /usr/local/bin/hubqueue
        chmod +x /usr/local/bin/hubqueue

    - name: Create release
      env:
        GITHUB_TOKEN: ${{ secrets.GITHUB_TOKEN }}
      run: |
        hubqueue release create "${{ inputs.plan }}" \
          --increment "${{ inputs.increment }}" \
          --set "${{ inputs.version }}"
`

// ErrWorkflowExists is returned when the target file exists and force is off.
var ErrWorkflowExists = errors.New("workflow file already exists")

// WriteReleaseWorkflow writes a GitHub Actions workflow that runs a release
// through workflow_dispatch.
func WriteReleaseWorkflow(fsys afero.Fs, path string, force bool) error {
	if !force {
		exists, err := afero.Exists(fsys, path)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", path, err)
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrWorkflowExists, path)
		}
	}

	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	if err := afero.WriteFile(fsys, path, []byte(releaseWorkflowYAML), os.FileMode(0o644)); err != nil {
		return fmt.Errorf("failed to write workflow file: %w", err)
	}

	return nil
}
