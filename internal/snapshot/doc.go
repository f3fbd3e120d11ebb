// Package snapshot defines the core types shared by the capture pipeline:
// URL entries, capture jobs, the tagged capture result, the run context, and
// the small interfaces each subsystem depends on.
package snapshot
