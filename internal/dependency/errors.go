package dependency

import (
	"errors"
	"fmt"
)

var (
	// ErrDependency is the generic kind for git failures while installing a dependency.
	ErrDependency              = errors.New("dependency error")
	ErrUnableToClone           = errors.New("unable to clone dependency")
	ErrInvalidDependencyConfig = errors.New("invalid dependency config")
	ErrDependencyNotInstalled  = errors.New("dependency not installed")
	ErrCyclicDependency        = errors.New("cyclic dependency")
	ErrFailedToSetGitConfig    = errors.New("failed to set git config")
)

// DependencyError identifies the remote repository an install step failed for.
// Kind is one of the package sentinels and matches with errors.Is.
type DependencyError struct {
	RepoName string
	RepoLink string
	Branch   string
	Kind     error
	Err      error
}

func (e *DependencyError) Error() string {
	msg := fmt.Sprintf("%s: %s (%s) on branch %s", e.Kind, e.RepoName, e.RepoLink, e.Branch)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DependencyError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
