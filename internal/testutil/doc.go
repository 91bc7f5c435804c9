// Package testutil holds fixtures shared by package tests: descriptor
// repositories on disk, a recording CommandRunner and local git remotes.
package testutil
