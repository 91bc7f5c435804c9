package dependency

import (
	"context"
	"fmt"
	"strings"

	"devctl/internal/descriptor"
)

// ConfigResolver loads the descriptor of an installed remote dependency.
type ConfigResolver interface {
	RemoteConfig(ctx context.Context, remote descriptor.RemoteConfig) (*descriptor.ServiceConfig, error)
}

// BuildGraph builds the graph of everything cfg requires when running modes.
// SERVICE dependencies are expanded with their remote mode; compose and
// supervisor dependencies are leaves.
func BuildGraph(ctx context.Context, cfg *descriptor.ServiceConfig, modes []string, resolver ConfigResolver) (*Graph, error) {
	g := New()
	g.AddNode(Node{ID: NodeID(cfg.ServiceName), FriendlyName: cfg.ServiceName, Kind: descriptor.TypeService})

	expanded := make(map[string]struct{})
	var walk func(cfg *descriptor.ServiceConfig, modes []string, path []string) error
	walk = func(cfg *descriptor.ServiceConfig, modes []string, path []string) error {
		names, err := cfg.ModeDependencies(modes)
		if err != nil {
			return err
		}
		path = append(path, cfg.ServiceName)
		from := NodeID(cfg.ServiceName)

		for _, name := range names {
			dep := cfg.Dependencies[name]
			remote, ok := descriptor.RemoteOf(dep)
			if !ok {
				g.AddNode(Node{ID: NodeID(name), FriendlyName: dep.Description(), Kind: dep.Type()})
				g.AddEdge(from, NodeID(name))
				continue
			}

			remoteCfg, err := resolver.RemoteConfig(ctx, remote)
			if err != nil {
				return err
			}
			id := NodeID(remoteCfg.ServiceName)
			if id == from {
				continue
			}
			for _, p := range path {
				if p == remoteCfg.ServiceName {
					return fmt.Errorf("%w: %s -> %s", ErrCyclicDependency, strings.Join(path, " -> "), remoteCfg.ServiceName)
				}
			}
			r := remote
			g.AddNode(Node{ID: id, FriendlyName: dep.Description(), Kind: descriptor.TypeService, Remote: &r})
			g.AddEdge(from, id)

			key := remoteCfg.ServiceName + "\x00" + remote.Mode
			if _, done := expanded[key]; done {
				continue
			}
			expanded[key] = struct{}{}
			if err := walk(remoteCfg, []string{remote.Mode}, path); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(cfg, modes, nil); err != nil {
		return nil, err
	}
	return g, nil
}
