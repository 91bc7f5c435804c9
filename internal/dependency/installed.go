package dependency

import "sort"

// InstalledRemoteDependency is a fetched remote dependency. ServiceName is the
// name declared inside the fetched descriptor, not the key used to reference it.
type InstalledRemoteDependency struct {
	ServiceName string
	RepoPath    string
	Mode        string
}

// InstalledSet is a deduplicated set of installed dependencies.
type InstalledSet map[InstalledRemoteDependency]struct{}

// NewInstalledSet returns a set holding deps.
func NewInstalledSet(deps ...InstalledRemoteDependency) InstalledSet {
	s := make(InstalledSet, len(deps))
	for _, d := range deps {
		s.Add(d)
	}
	return s
}

func (s InstalledSet) Add(d InstalledRemoteDependency) {
	s[d] = struct{}{}
}

// Union adds every element of other to s.
func (s InstalledSet) Union(other InstalledSet) {
	for d := range other {
		s[d] = struct{}{}
	}
}

func (s InstalledSet) Contains(d InstalledRemoteDependency) bool {
	_, ok := s[d]
	return ok
}

// Difference returns the elements of s not in other.
func (s InstalledSet) Difference(other InstalledSet) InstalledSet {
	out := make(InstalledSet)
	for d := range s {
		if !other.Contains(d) {
			out.Add(d)
		}
	}
	return out
}

// Slice returns the elements sorted by service name, then mode.
func (s InstalledSet) Slice() []InstalledRemoteDependency {
	out := make([]InstalledRemoteDependency, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ServiceName != out[j].ServiceName {
			return out[i].ServiceName < out[j].ServiceName
		}
		if out[i].Mode != out[j].Mode {
			return out[i].Mode < out[j].Mode
		}
		return out[i].RepoPath < out[j].RepoPath
	})
	return out
}

// ServiceNames returns the distinct service names in s, sorted.
func (s InstalledSet) ServiceNames() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range s.Slice() {
		if _, ok := seen[d.ServiceName]; ok {
			continue
		}
		seen[d.ServiceName] = struct{}{}
		out = append(out, d.ServiceName)
	}
	return out
}
