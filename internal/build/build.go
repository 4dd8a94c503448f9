// Package build provides build information that is linked into the application. Other
// packages within this project can use this information in logs etc..
package build

var (
	// Version is the build version of the binary (e.g. v0.1.0 or v0.1.0-rc1).
	Version = "dev"

	// Commit is the git commit sha that the binary was built from.
	Commit = "none"

	// Date is the date the binary was built.
	Date = "unknown"

	// ProjectName is the name used for the service in traces and logs.
	ProjectName = "query-subgraph"

	// MetricsNamespace prefixes every exported metric.
	MetricsNamespace = "query_subgraph"
)
