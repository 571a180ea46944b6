// Package pagination provides a restartable lazy sequence of pages for paginated remote listings.
package pagination
