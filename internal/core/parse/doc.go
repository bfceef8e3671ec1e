// Package parse turns raw strings reported by the container runtime, tunnel
// logs and configuration artifacts into typed facts.
//
// Every function here is pure and total: malformed input produces the
// documented fallback (domain.Unknown, 0, domain.NoPort) instead of an error,
// so callers can fill a record without branching on failures.
package parse
