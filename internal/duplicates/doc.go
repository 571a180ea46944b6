// Package duplicates groups the projects of one scanner target by unique identifier and decides which
// record of each duplicate group to keep.
//
// The newest project of a group is kept; older ones are marked for removal. Maven groups are annotated
// with the artifact identities declared by the pom.xml files found under the project root so an operator
// can judge whether a removal is safe.
package duplicates
