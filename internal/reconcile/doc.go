// Package reconcile wires the reconcile command: it resolves options from flags and configuration,
// constructs the scanning-service and repository-host clients, and runs the catalog, collection, join,
// validation, and duplicate phases before rendering and optionally publishing the report.
package reconcile
