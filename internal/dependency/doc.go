// Package dependency resolves what a service needs before it can run.
//
// It builds the dependency graph of a service for a set of modes, computes a
// start order from it, and fetches remote dependencies into the local cache as
// partial, sparse git clones that only materialize each repository's
// devservices directory.
//
// Cache layout:
//
//	<cache>/dependencies/<repo>.lock       advisory lock, one per repository
//	<cache>/dependencies/v1/<repo>/...     the clone itself
package dependency
