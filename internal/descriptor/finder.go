package descriptor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"devctl/pkg/logging"
)

// For mocking in tests
var osGetwd = os.Getwd

// Finder discovers services in the repositories directly under Coderoot.
type Finder struct {
	Coderoot string
}

// NewFinder returns a Finder rooted at coderoot.
func NewFinder(coderoot string) *Finder {
	return &Finder{Coderoot: coderoot}
}

// LocalServices returns every repository under the coderoot with a descriptor.
// Repositories without one are skipped; an invalid descriptor fails the whole scan.
func (f *Finder) LocalServices(ctx context.Context) ([]Service, error) {
	entries, err := os.ReadDir(f.Coderoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Warn("Descriptor", "Coderoot %s does not exist", f.Coderoot)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read coderoot %s: %w", f.Coderoot, err)
	}

	var services []Service
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		repoPath := filepath.Join(f.Coderoot, e.Name())
		cfg, err := LoadServiceConfig(ctx, repoPath)
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				continue
			}
			logging.Warn("Descriptor", "%s was found with an invalid config", e.Name())
			return nil, err
		}
		services = append(services, Service{Name: cfg.ServiceName, RepoPath: repoPath, Config: cfg})
	}
	return services, nil
}

// Find returns the service called name (case-insensitive). An empty name
// selects the repository in the current working directory.
func (f *Finder) Find(ctx context.Context, name string) (Service, error) {
	if name == "" {
		repoPath, err := osGetwd()
		if err != nil {
			return Service{}, fmt.Errorf("failed to determine current directory: %w", err)
		}
		return LoadService(ctx, repoPath)
	}

	services, err := f.LocalServices(ctx)
	if err != nil {
		return Service{}, err
	}
	for _, s := range services {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}

	seen := make(map[string]struct{})
	var names []string
	for _, s := range services {
		if _, ok := seen[s.Name]; ok {
			continue
		}
		seen[s.Name] = struct{}{}
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return Service{}, &ServiceNotFoundError{Name: name, Available: names}
}

// LoadService loads the service declared by the repository at repoPath.
func LoadService(ctx context.Context, repoPath string) (Service, error) {
	cfg, err := LoadServiceConfig(ctx, repoPath)
	if err != nil {
		return Service{}, err
	}
	return Service{Name: cfg.ServiceName, RepoPath: repoPath, Config: cfg}, nil
}
