// Package descriptor loads service descriptors.
//
// A service repository declares itself in devservices/config.yml. The file is a
// regular docker compose file carrying an extra top-level block:
//
//	x-service-config:
//	  version: 0.1
//	  service_name: example-service
//	  dependencies:
//	    redis:
//	      description: Redis cache
//	    snuba:
//	      description: Event storage
//	      remote:
//	        repo_name: snuba
//	        repo_link: https://github.com/example/snuba.git
//	        branch: main
//	        mode: default
//	  modes:
//	    default: [redis, snuba]
//
// Dependencies without a remote block must name a compose service of the same
// file or a program in devservices/programs.toml. Loaded configs are immutable
// values; callers never mutate them.
package descriptor
