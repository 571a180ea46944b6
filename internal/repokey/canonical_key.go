package repokey

import (
	"fmt"
	"strings"
)

const (
	// LocalHostSentinel is the host component of keys derived from filesystem paths.
	LocalHostSentinel = "local"

	httpsSchemePrefixConstant     = "https://"
	fileSchemePrefixConstant      = "file://"
	keySeparatorConstant          = "/"
	localKeySeparatorConstant     = ":"
	parseFailureTemplateConstant  = "%s: %s"
	emptyInputReasonConstant      = "empty repository url"
	noPatternReasonConstant       = "no known repository url pattern matched"
	missingSegmentsReasonConstant = "repository url must contain an owner and a repository segment"
	invalidSegmentReasonConstant  = "repository url contains a relative path segment"
	missingHostReasonConstant     = "repository url host is empty"
	relativeLocalReasonConstant   = "local repository path must be absolute"
)

// CanonicalKey identifies one repository independently of the URL form used to reach it.
type CanonicalKey struct {
	Host       string
	OwnerPath  string
	Repository string
}

// IsLocal reports whether the key was derived from a filesystem path.
func (key CanonicalKey) IsLocal() bool {
	return key.Host == LocalHostSentinel
}

// IsZero reports whether the key carries no components.
func (key CanonicalKey) IsZero() bool {
	return len(key.Host) == 0 && len(key.OwnerPath) == 0 && len(key.Repository) == 0
}

// String renders the key as host/owner/repository, or local:/path for local keys.
func (key CanonicalKey) String() string {
	if key.IsLocal() {
		return key.Host + localKeySeparatorConstant + key.Repository
	}
	return strings.Join([]string{key.Host, key.OwnerPath, key.Repository}, keySeparatorConstant)
}

// FullPath returns owner/repository, the path a repository host addresses the project by.
func (key CanonicalKey) FullPath() string {
	if key.IsLocal() {
		return key.Repository
	}
	return key.OwnerPath + keySeparatorConstant + key.Repository
}

// URL renders a URL that normalizes back to the same key.
func (key CanonicalKey) URL() string {
	if key.IsLocal() {
		return fileSchemePrefixConstant + key.Repository
	}
	return httpsSchemePrefixConstant + key.String()
}

// ParseFailure reports a repository URL that no pattern could turn into a key.
// Callers treat it as "cannot be joined", never as a fatal condition.
type ParseFailure struct {
	Input  string
	Reason string
}

// Error describes the parse failure.
func (failure ParseFailure) Error() string {
	return fmt.Sprintf(parseFailureTemplateConstant, failure.Input, failure.Reason)
}
