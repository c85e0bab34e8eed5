// Package preflight validates the environment before GrantScout ingests
// a corpus or starts serving queries.
//
// The package checks:
//   - Disk space for the index directory (minimum 100MB)
//   - Memory availability (minimum 1GB)
//   - Write permissions in the index directory
//   - Embedding provider configuration and service reachability
//   - Grant index state (record counts, embedding model compatibility)
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, dataDir)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
