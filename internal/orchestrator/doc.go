// Package orchestrator brings services and their dependencies up and down.
//
// Every operation is a single pass driven by one CLI invocation: it resolves
// the service's descriptor, makes sure remote dependencies are available in
// the dependency cache, and then drives docker compose, docker and the
// program supervisor. Durable progress lives in the state store:
//
//   - a (service, mode) pair is recorded as starting before any container is
//     touched, so an interrupted bring-up still names the modes to clean up
//   - it is promoted to started only after every container reports healthy
//   - down removes both records
//
// # Shared dependencies
//
// A remote dependency may be needed by several active services at once. Down
// only stops remote dependencies no other active service requires, and
// refuses outright when the target itself appears in another active
// service's dependency graph.
//
// # Runtimes
//
// A service is containerized by default. Toggling it to local makes
// dependents leave it out of their compose invocations; up then starts it
// from its own checkout instead. Toggling back restarts the dependents so
// they bring the containerized copy up again.
package orchestrator
