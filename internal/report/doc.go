// Package report assembles join, validation, and duplicate results into one Bundle and renders it as a
// text summary, a CSV table of duplicate decisions, or a YAML/JSON document, optionally publishing the
// rendered artifacts to an S3-compatible bucket.
package report
