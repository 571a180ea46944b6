// Package validation cross-checks the manifests a scanner target tracks against the files of its
// repository and discovers supported manifests the target does not track.
//
// Existence checks distinguish three outcomes: the file is present, the file is confirmed missing, and
// the host could not be asked (network failure, denied access). Only the second is drift.
package validation
