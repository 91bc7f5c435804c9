package descriptor

import "sort"

const (
	// DevservicesDirName is the subdirectory holding a repository's descriptor.
	// It is also the only directory materialized in remote dependency checkouts.
	DevservicesDirName = "devservices"
	ConfigFileName     = "config.yml"
	ProgramsFileName   = "programs.toml"

	// ServiceConfigKey is the compose extension key holding the descriptor block.
	ServiceConfigKey = "x-service-config"

	// DefaultMode must be present in every descriptor.
	DefaultMode = "default"
)

// DependencyType tags the closed set of dependency variants.
type DependencyType string

const (
	TypeCompose    DependencyType = "compose"
	TypeSupervisor DependencyType = "supervisor"
	TypeService    DependencyType = "service"
)

// RemoteConfig locates another service's repository.
type RemoteConfig struct {
	RepoName string `yaml:"repo_name"`
	RepoLink string `yaml:"repo_link"`
	Branch   string `yaml:"branch"`
	// Mode is the mode of the remote service to bring up; "default" when omitted.
	Mode string `yaml:"mode"`
}

// Dependency is one of ComposeDependency, SupervisorDependency or ServiceDependency.
type Dependency interface {
	Description() string
	Type() DependencyType
	isDependency()
}

// ComposeDependency is satisfied by a compose service of the declaring repository.
type ComposeDependency struct {
	Desc string
}

func (d ComposeDependency) Description() string  { return d.Desc }
func (d ComposeDependency) Type() DependencyType { return TypeCompose }
func (ComposeDependency) isDependency()          {}

// SupervisorDependency is satisfied by a locally run program.
type SupervisorDependency struct {
	Desc string
}

func (d SupervisorDependency) Description() string  { return d.Desc }
func (d SupervisorDependency) Type() DependencyType { return TypeSupervisor }
func (SupervisorDependency) isDependency()          {}

// ServiceDependency is another service fetched from its own repository.
type ServiceDependency struct {
	Desc   string
	Remote RemoteConfig
}

func (d ServiceDependency) Description() string  { return d.Desc }
func (d ServiceDependency) Type() DependencyType { return TypeService }
func (ServiceDependency) isDependency()          {}

// RemoteOf returns the remote block of d, if d is a ServiceDependency.
func RemoteOf(d Dependency) (RemoteConfig, bool) {
	sd, ok := d.(ServiceDependency)
	if !ok {
		return RemoteConfig{}, false
	}
	return sd.Remote, true
}

// Program describes a supervisor-managed local program.
type Program struct {
	Command     string `toml:"command"`
	Directory   string `toml:"directory"`
	Autostart   bool   `toml:"autostart"`
	Autorestart bool   `toml:"autorestart"`
}

// ServiceConfig is the parsed x-service-config block plus what it references.
type ServiceConfig struct {
	Version      string
	ServiceName  string
	Dependencies map[string]Dependency
	// DependencyOrder lists dependency names in declaration order.
	DependencyOrder []string
	Modes           map[string][]string
	// ModeOrder lists mode names in declaration order.
	ModeOrder []string
	// ComposeServices are the service names of the compose file, sorted.
	ComposeServices []string
	Programs        map[string]Program
}

// AvailableModes returns mode names in declaration order.
func (c *ServiceConfig) AvailableModes() []string {
	return append([]string(nil), c.ModeOrder...)
}

// HasMode reports whether mode is declared.
func (c *ServiceConfig) HasMode(mode string) bool {
	_, ok := c.Modes[mode]
	return ok
}

// ModeDependencies returns the union of the dependency names of modes,
// preserving first-seen order.
func (c *ServiceConfig) ModeDependencies(modes []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, mode := range modes {
		deps, ok := c.Modes[mode]
		if !ok {
			return nil, &ModeDoesNotExistError{
				Service:   c.ServiceName,
				Mode:      mode,
				Available: c.AvailableModes(),
			}
		}
		for _, d := range deps {
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	return out, nil
}

// SelectDependencies returns the dependencies selected by modes in first-seen order.
func (c *ServiceConfig) SelectDependencies(modes []string) ([]Dependency, error) {
	names, err := c.ModeDependencies(modes)
	if err != nil {
		return nil, err
	}
	out := make([]Dependency, 0, len(names))
	for _, n := range names {
		out = append(out, c.Dependencies[n])
	}
	return out, nil
}

// RemoteDependencies returns the ServiceDependency entries among names, sorted by name.
func (c *ServiceConfig) RemoteDependencies(names []string) []ServiceDependency {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	var out []ServiceDependency
	for _, n := range sorted {
		if sd, ok := c.Dependencies[n].(ServiceDependency); ok {
			out = append(out, sd)
		}
	}
	return out
}

// IsComposeService reports whether name is a service of the compose file.
func (c *ServiceConfig) IsComposeService(name string) bool {
	i := sort.SearchStrings(c.ComposeServices, name)
	return i < len(c.ComposeServices) && c.ComposeServices[i] == name
}

// Service is a repository with a loaded descriptor.
type Service struct {
	Name     string
	RepoPath string
	Config   *ServiceConfig
}
