// Package targets collects scanning-service targets and their projects across the selected organizations,
// keying each target by canonical repository key.
package targets
