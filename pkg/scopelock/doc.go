// Package scopelock serializes writers of a wildcard scope against each other
// and against readers taking a snapshot.
//
// Locks are reference counted per scope and garbage collected when unused.
// Writers may additionally take a distributed lock so that several processes
// sharing one data directory never refactor the same scope at once.
package scopelock
