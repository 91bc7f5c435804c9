package descriptor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/compose-spec/compose-go/v2/loader"
	composetypes "github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

var validVersions = []*semver.Version{semver.MustParse("0.1")}

type rawDependency struct {
	Description string        `yaml:"description"`
	Remote      *RemoteConfig `yaml:"remote"`
}

// ConfigPath returns the descriptor path of the repository at repoPath.
func ConfigPath(repoPath string) string {
	return filepath.Join(repoPath, DevservicesDirName, ConfigFileName)
}

// LoadServiceConfig reads and validates the descriptor of the repository at repoPath.
func LoadServiceConfig(ctx context.Context, repoPath string) (*ServiceConfig, error) {
	path := ConfigPath(repoPath)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: config file not found in directory: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: error parsing config file %s: %w", ErrConfigParse, path, err)
	}
	root := documentRoot(&doc)
	if root == nil || root.Kind != yaml.MappingNode {
		return nil, parseError("config file %s is not a mapping", path)
	}

	block := mappingValue(root, ServiceConfigKey)
	if block == nil {
		return nil, parseError("config file %s does not contain '%s' key", path, ServiceConfigKey)
	}
	if block.Kind != yaml.MappingNode {
		return nil, parseError("'%s' in %s must be a mapping", ServiceConfigKey, path)
	}

	cfg := &ServiceConfig{
		Dependencies: make(map[string]Dependency),
		Modes:        make(map[string][]string),
	}
	if n := mappingValue(block, "version"); n != nil {
		cfg.Version = n.Value
	}
	if n := mappingValue(block, "service_name"); n != nil {
		cfg.ServiceName = n.Value
	}

	rawDeps, depOrder, err := decodeDependencies(mappingValue(block, "dependencies"))
	if err != nil {
		return nil, fmt.Errorf("%w: error parsing service dependencies in %s: %w", ErrConfigParse, path, err)
	}
	cfg.DependencyOrder = depOrder

	if err := decodeModes(mappingValue(block, "modes"), cfg); err != nil {
		return nil, fmt.Errorf("%w: error parsing modes in %s: %w", ErrConfigParse, path, err)
	}

	if mappingValue(root, "services") != nil {
		cfg.ComposeServices, err = composeServiceNames(ctx, path, cfg.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("%w: error loading compose services from %s: %w", ErrConfigParse, path, err)
		}
	}

	cfg.Programs, err = LoadPrograms(repoPath)
	if err != nil {
		return nil, err
	}

	if err := classify(cfg, rawDeps); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0]
	}
	return nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func decodeDependencies(n *yaml.Node) (map[string]rawDependency, []string, error) {
	deps := make(map[string]rawDependency)
	if n == nil {
		return deps, nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, nil, errors.New("dependencies must be a mapping")
	}
	var order []string
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		var raw rawDependency
		if err := n.Content[i+1].Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("dependency '%s': %w", name, err)
		}
		if _, dup := deps[name]; !dup {
			order = append(order, name)
		}
		deps[name] = raw
	}
	return deps, order, nil
}

func decodeModes(n *yaml.Node, cfg *ServiceConfig) error {
	if n == nil {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return errors.New("modes must be a mapping")
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		mode := n.Content[i].Value
		v := n.Content[i+1]
		if v.Kind != yaml.SequenceNode {
			return validationError("services in mode '%s' must be a list", mode)
		}
		var deps []string
		if err := v.Decode(&deps); err != nil {
			return fmt.Errorf("mode '%s': %w", mode, err)
		}
		if _, dup := cfg.Modes[mode]; !dup {
			cfg.ModeOrder = append(cfg.ModeOrder, mode)
		}
		cfg.Modes[mode] = deps
	}
	return nil
}

// composeServiceNames loads the compose half of the descriptor. Includes are
// skipped since they may point into dependency checkouts that are not yet fetched.
func composeServiceNames(ctx context.Context, path, projectName string) ([]string, error) {
	if projectName == "" {
		projectName = filepath.Base(filepath.Dir(filepath.Dir(path)))
	}
	details := composetypes.ConfigDetails{
		WorkingDir:  filepath.Dir(path),
		ConfigFiles: []composetypes.ConfigFile{{Filename: path}},
		Environment: composetypes.NewMapping(os.Environ()),
	}
	project, err := loader.LoadWithContext(ctx, details, func(o *loader.Options) {
		o.SetProjectName(loader.NormalizeProjectName(projectName), true)
		o.SkipInclude = true
		o.SkipValidation = true
		o.SkipConsistencyCheck = true
		o.Profiles = []string{"*"}
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(project.Services)+len(project.DisabledServices))
	for name := range project.Services {
		names = append(names, name)
	}
	for name := range project.DisabledServices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func classify(cfg *ServiceConfig, raw map[string]rawDependency) error {
	for _, name := range cfg.DependencyOrder {
		r := raw[name]
		switch {
		case r.Remote != nil:
			remote := *r.Remote
			if remote.RepoName == "" || remote.RepoLink == "" || remote.Branch == "" {
				return validationError("remote dependency '%s' requires repo_name, repo_link and branch", name)
			}
			if remote.Mode == "" {
				remote.Mode = DefaultMode
			}
			cfg.Dependencies[name] = ServiceDependency{Desc: r.Description, Remote: remote}
		case cfg.IsComposeService(name):
			cfg.Dependencies[name] = ComposeDependency{Desc: r.Description}
		default:
			if _, ok := cfg.Programs[name]; ok {
				cfg.Dependencies[name] = SupervisorDependency{Desc: r.Description}
				continue
			}
			return validationError("dependency '%s' is not remote but is not defined in docker compose services or programs", name)
		}
	}
	return nil
}

func validate(cfg *ServiceConfig) error {
	if cfg.Version == "" {
		return validationError("version is required in service config")
	}
	v, err := semver.NewVersion(cfg.Version)
	if err != nil || !versionAllowed(v) {
		return validationError("invalid version '%s' in service config", cfg.Version)
	}
	if cfg.ServiceName == "" {
		return validationError("service name is required in service config")
	}
	if !cfg.HasMode(DefaultMode) {
		return validationError("default mode is required in service config")
	}
	for _, mode := range cfg.ModeOrder {
		for _, dep := range cfg.Modes[mode] {
			if _, ok := cfg.Dependencies[dep]; !ok {
				return validationError("dependency '%s' in mode '%s' is not defined in dependencies", dep, mode)
			}
		}
	}
	return nil
}

func versionAllowed(v *semver.Version) bool {
	for _, allowed := range validVersions {
		if v.Equal(allowed) {
			return true
		}
	}
	return false
}
