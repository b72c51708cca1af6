package version

import (
	"errors"
	"fmt"
)

var (
	ErrNoFilesFound           = errors.New("no version files found")
	ErrNoVersionFound         = errors.New("no version found in any file")
	ErrPatternMismatch        = errors.New("pattern did not yield major, minor and patch")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrInvalidExplicitVersion = errors.New("invalid explicit version")
	ErrInvalidPattern         = errors.New("invalid version pattern")
)

// FileError records why a single file was not rewritten.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// PartialError is returned alongside a Result when some files failed.
type PartialError struct {
	Failures []FileError
	Updated  int
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%d file(s) failed, %d updated: %v", len(e.Failures), e.Updated, errors.Join(e.failureErrs()...))
}

func (e *PartialError) failureErrs() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

// Unwrap exposes each per-file error to errors.Is.
func (e *PartialError) Unwrap() []error {
	return e.failureErrs()
}
