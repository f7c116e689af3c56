// Package rbac implements scoped role-based access control for the
// portfolio/program/project hierarchy.
//
// Users hold role assignments. An assignment is either global (no
// scope columns set) or pinned to exactly one portfolio, program or
// project. A permission check supplies a Scope; global assignments are
// relevant under every scope, scoped assignments only under a matching
// one. System administrators bypass evaluation entirely.
//
// Answers can be served from a per-user permission snapshot: slug sets
// bucketed by context key ("global", "project_5", ...) with a 15 minute
// lifetime. A context that was never computed is a miss, not a denial,
// and misses fall through to full evaluation. Snapshots are only built
// by an explicit rebuild and are invalidated synchronously on every
// assignment write.
//
// The Manager ties the store, evaluator and cache together and is the
// intended entry point for applications; the lower-level pieces are
// exported for callers that need finer control.
package rbac
