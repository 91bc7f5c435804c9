// Package config provides configuration management for devctl.
//
// Configuration is layered: built-in defaults first, then an optional YAML
// file, then DEVCTL_* environment variables. Later layers override earlier ones.
//
// # Configuration File
//
// The file is read from ~/.config/devctl/config.yaml unless a path is given
// explicitly (the --config flag):
//
//	coderoot: ~/code
//	cache_dir: ~/.cache/devctl
//	local_dir: ~/.local/share/devctl
//	network_name: devservices
//	concurrency: 8
//	healthcheck_timeout: 45s
//	healthcheck_interval: 5s
//	log_level: warn
//
// # Environment Overrides
//
// Every key can be overridden with an upper-cased, DEVCTL_ prefixed variable,
// e.g. DEVCTL_CODEROOT or DEVCTL_HEALTHCHECK_TIMEOUT=90s.
//
// # Derived Paths
//
// The dependency cache, the state database and the supervisor working directory
// are derived from cache_dir and local_dir; see Config.DependenciesCacheDir,
// Config.StateDBPath and Config.SupervisorDir.
package config
