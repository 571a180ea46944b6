// Package catalog builds the in-memory catalog of host repositories keyed by canonical repository key.
package catalog
