// Package join performs the full outer join between the host repository catalog and the collected
// scanner targets on canonical repository key.
package join
