package repokey

import (
	"errors"
	"net/url"
	"path"
	"regexp"
	"strings"
)

const (
	gitSuffixConstant           = ".git"
	wwwPrefixConstant           = "www."
	localhostConstant           = "localhost"
	httpSchemePrefixConstant    = "http://"
	querySeparatorConstant      = "?"
	fragmentSeparatorConstant   = "#"
	backslashConstant           = `\`
	currentDirectoryConstant    = "."
	parentDirectoryConstant     = ".."
	matcherGitLabBrowseConstant = "gitlab_browse"
	matcherHostBrowseConstant   = "host_browse"
	matcherKnownBrowseConstant  = "known_host_browse"
	matcherSchemeURLConstant    = "scheme_url"
	matcherSCPConstant          = "scp_ssh"
	matcherFileURLConstant      = "file_url"
	matcherAbsolutePathConstant = "absolute_path"
	matcherKnownHostConstant    = "known_host_path"
)

var errRelativeSegment = errors.New(invalidSegmentReasonConstant)

var (
	// GitLab browse routes all live under the "/-/" separator, so the project path is everything before it.
	gitLabBrowsePattern     = regexp.MustCompile(`^(?i:https?|ssh|git)://(?:[^@/]+@)?([^/]+)/(.+?)/-/(?:tree|blob|raw|blame|commits)(?:/.*)?$`)
	// GitHub and Bitbucket browse routes follow exactly owner/repository. A ref must follow the
	// route keyword, otherwise "tree" or "src" is a repository name.
	hostBrowsePattern       = regexp.MustCompile(`^(?i:https?)://(?:[^@/]+@)?([^/]+)/([^/]+/[^/]+)/(?:tree|blob|src|commits)/[^/?#]+(?:[/?#].*)?$`)
	// Browse routes without the "/-/" separator on a known host. The project path may be nested but
	// always keeps at least owner/repository ahead of the route keyword.
	knownBrowsePathPattern  = regexp.MustCompile(`^([^/]+/.+?)/(?:tree|blob|src|commits)/[^/?#]+(?:[/?#].*)?$`)
	gitLabBrowsePathPattern = regexp.MustCompile(`^(.+?)/-/(?:tree|blob|raw|blame|commits)(?:/.*)?$`)
	schemeURLPattern        = regexp.MustCompile(`^(?i:https?|ssh|git)://(?:[^@/]+@)?([^/]+)/(.+)$`)
	scpPattern              = regexp.MustCompile(`^[^@/\s]+@([^:/\s]+):/?(.+)$`)
	fileURLPattern          = regexp.MustCompile(`^(?i:file)://(.*)$`)
	windowsAbsolutePath     = regexp.MustCompile(`^[A-Za-z]:[\\/]`)
	knownHostPathPattern    = regexp.MustCompile(`^([^/:@\s]+)/(.+)$`)
	portSuffixPattern       = regexp.MustCompile(`:\d*$`)
)

// location is the intermediate result of a matcher: a host plus the raw path that follows it.
type location struct {
	host  string
	path  string
	local bool
}

// patternMatcher pairs a name with an extractor returning a location when the input fits its form.
type patternMatcher struct {
	name    string
	extract func(input string) (location, bool)
}

// NormalizerOption customizes a Normalizer.
type NormalizerOption func(*Normalizer)

// WithCaseInsensitiveHosts folds owner and repository segments to lower case for the named hosts.
func WithCaseInsensitiveHosts(hosts ...string) NormalizerOption {
	return func(normalizer *Normalizer) {
		for _, host := range hosts {
			normalizedHost := normalizeHost(host)
			if len(normalizedHost) == 0 {
				continue
			}
			normalizer.caseInsensitiveHosts[normalizedHost] = struct{}{}
		}
	}
}

// Normalizer converts repository URLs into CanonicalKey values.
type Normalizer struct {
	knownHosts           map[string]struct{}
	caseInsensitiveHosts map[string]struct{}
	matchers             []patternMatcher
}

// NewNormalizer builds a Normalizer. Known hosts enable scheme-less "host/owner/repo" inputs.
func NewNormalizer(knownHosts []string, options ...NormalizerOption) *Normalizer {
	normalizer := &Normalizer{
		knownHosts:           make(map[string]struct{}, len(knownHosts)),
		caseInsensitiveHosts: make(map[string]struct{}),
	}
	for _, host := range knownHosts {
		normalizedHost := normalizeHost(host)
		if len(normalizedHost) == 0 {
			continue
		}
		normalizer.knownHosts[normalizedHost] = struct{}{}
	}
	for _, option := range options {
		if option != nil {
			option(normalizer)
		}
	}

	normalizer.matchers = []patternMatcher{
		{name: matcherGitLabBrowseConstant, extract: hostAndPathExtractor(gitLabBrowsePattern)},
		{name: matcherKnownBrowseConstant, extract: normalizer.extractKnownHostBrowse},
		{name: matcherHostBrowseConstant, extract: hostAndPathExtractor(hostBrowsePattern)},
		{name: matcherSchemeURLConstant, extract: hostAndPathExtractor(schemeURLPattern)},
		{name: matcherSCPConstant, extract: hostAndPathExtractor(scpPattern)},
		{name: matcherFileURLConstant, extract: extractFileURL},
		{name: matcherAbsolutePathConstant, extract: extractAbsolutePath},
		{name: matcherKnownHostConstant, extract: normalizer.extractKnownHostPath},
	}

	return normalizer
}

// Normalize converts rawURL into a CanonicalKey. The returned error is always a ParseFailure.
func (normalizer *Normalizer) Normalize(rawURL string) (CanonicalKey, error) {
	trimmedInput := strings.TrimSpace(rawURL)
	if len(trimmedInput) == 0 {
		return CanonicalKey{}, ParseFailure{Input: rawURL, Reason: emptyInputReasonConstant}
	}

	for _, matcher := range normalizer.matchers {
		matchedLocation, matched := matcher.extract(trimmedInput)
		if !matched {
			continue
		}
		if matchedLocation.local {
			return buildLocalKey(rawURL, matchedLocation.path)
		}
		return normalizer.buildRemoteKey(rawURL, matchedLocation)
	}

	return CanonicalKey{}, ParseFailure{Input: rawURL, Reason: noPatternReasonConstant}
}

// MatcherName reports which pattern accepts rawURL, or an empty string when none does.
func (normalizer *Normalizer) MatcherName(rawURL string) string {
	trimmedInput := strings.TrimSpace(rawURL)
	for _, matcher := range normalizer.matchers {
		if _, matched := matcher.extract(trimmedInput); matched {
			return matcher.name
		}
	}
	return ""
}

func (normalizer *Normalizer) buildRemoteKey(rawURL string, matchedLocation location) (CanonicalKey, error) {
	host := normalizeHost(matchedLocation.host)
	if len(host) == 0 {
		return CanonicalKey{}, ParseFailure{Input: rawURL, Reason: missingHostReasonConstant}
	}

	segments, segmentError := splitPathSegments(stripQueryAndFragment(matchedLocation.path))
	if segmentError != nil {
		return CanonicalKey{}, ParseFailure{Input: rawURL, Reason: segmentError.Error()}
	}
	if len(segments) < 2 {
		return CanonicalKey{}, ParseFailure{Input: rawURL, Reason: missingSegmentsReasonConstant}
	}

	ownerPath := strings.Join(segments[:len(segments)-1], keySeparatorConstant)
	repository := trimGitSuffix(segments[len(segments)-1])
	if len(repository) == 0 {
		return CanonicalKey{}, ParseFailure{Input: rawURL, Reason: missingSegmentsReasonConstant}
	}

	if _, foldCase := normalizer.caseInsensitiveHosts[host]; foldCase {
		ownerPath = strings.ToLower(ownerPath)
		repository = strings.ToLower(repository)
	}

	return CanonicalKey{Host: host, OwnerPath: ownerPath, Repository: repository}, nil
}

func buildLocalKey(rawURL string, localPath string) (CanonicalKey, error) {
	slashedPath := strings.ReplaceAll(localPath, backslashConstant, keySeparatorConstant)
	if windowsAbsolutePath.MatchString(localPath) {
		slashedPath = keySeparatorConstant + slashedPath
	}
	if !strings.HasPrefix(slashedPath, keySeparatorConstant) {
		return CanonicalKey{}, ParseFailure{Input: rawURL, Reason: relativeLocalReasonConstant}
	}

	cleanedPath := path.Clean(trimGitSuffix(path.Clean(unescapePath(slashedPath))))
	if cleanedPath == keySeparatorConstant || len(cleanedPath) == 0 {
		return CanonicalKey{}, ParseFailure{Input: rawURL, Reason: missingSegmentsReasonConstant}
	}

	return CanonicalKey{Host: LocalHostSentinel, Repository: cleanedPath}, nil
}

func hostAndPathExtractor(pattern *regexp.Regexp) func(string) (location, bool) {
	return func(input string) (location, bool) {
		submatches := pattern.FindStringSubmatch(input)
		if len(submatches) != 3 {
			return location{}, false
		}
		return location{host: submatches[1], path: submatches[2]}, true
	}
}

func extractFileURL(input string) (location, bool) {
	submatches := fileURLPattern.FindStringSubmatch(input)
	if len(submatches) != 2 {
		return location{}, false
	}
	filePath := strings.TrimPrefix(submatches[1], localhostConstant)
	return location{path: stripQueryAndFragment(filePath), local: true}, true
}

func extractAbsolutePath(input string) (location, bool) {
	if strings.HasPrefix(input, keySeparatorConstant) || windowsAbsolutePath.MatchString(input) {
		return location{path: input, local: true}, true
	}
	return location{}, false
}

func (normalizer *Normalizer) extractKnownHostPath(input string) (location, bool) {
	submatches := knownHostPathPattern.FindStringSubmatch(input)
	if len(submatches) != 3 {
		return location{}, false
	}
	if _, known := normalizer.knownHosts[normalizeHost(submatches[1])]; !known {
		return location{}, false
	}
	return location{host: submatches[1], path: trimBrowseRoute(submatches[2])}, true
}

// extractKnownHostBrowse accepts "<project path>/tree/<ref>" style routes on known hosts.
// The project path is the shortest prefix followed by a route keyword and a ref.
func (normalizer *Normalizer) extractKnownHostBrowse(input string) (location, bool) {
	submatches := schemeURLPattern.FindStringSubmatch(input)
	if len(submatches) != 3 {
		return location{}, false
	}
	if _, known := normalizer.knownHosts[normalizeHost(submatches[1])]; !known {
		return location{}, false
	}
	browseMatches := knownBrowsePathPattern.FindStringSubmatch(submatches[2])
	if len(browseMatches) != 2 {
		return location{}, false
	}
	return location{host: submatches[1], path: browseMatches[1]}, true
}

func trimBrowseRoute(rawPath string) string {
	if browseMatches := gitLabBrowsePathPattern.FindStringSubmatch(rawPath); len(browseMatches) == 2 {
		return browseMatches[1]
	}
	if browseMatches := knownBrowsePathPattern.FindStringSubmatch(rawPath); len(browseMatches) == 2 {
		return browseMatches[1]
	}
	return rawPath
}

func splitPathSegments(rawPath string) ([]string, error) {
	rawSegments := strings.Split(strings.Trim(rawPath, keySeparatorConstant), keySeparatorConstant)
	segments := make([]string, 0, len(rawSegments))
	for _, rawSegment := range rawSegments {
		segment := strings.TrimSpace(unescapePath(rawSegment))
		if len(segment) == 0 {
			continue
		}
		if segment == currentDirectoryConstant || segment == parentDirectoryConstant {
			return nil, errRelativeSegment
		}
		segments = append(segments, segment)
	}
	return segments, nil
}

func normalizeHost(rawHost string) string {
	host := strings.ToLower(strings.TrimSpace(rawHost))
	host = strings.TrimPrefix(host, httpsSchemePrefixConstant)
	host = strings.TrimPrefix(host, httpSchemePrefixConstant)
	host = strings.TrimSuffix(host, keySeparatorConstant)
	if separatorIndex := strings.Index(host, keySeparatorConstant); separatorIndex >= 0 {
		host = host[:separatorIndex]
	}
	host = portSuffixPattern.ReplaceAllString(host, "")
	return strings.TrimPrefix(host, wwwPrefixConstant)
}

func stripQueryAndFragment(rawPath string) string {
	if separatorIndex := strings.IndexAny(rawPath, querySeparatorConstant+fragmentSeparatorConstant); separatorIndex >= 0 {
		return rawPath[:separatorIndex]
	}
	return rawPath
}

func trimGitSuffix(name string) string {
	trimmed := name
	for strings.HasSuffix(strings.ToLower(trimmed), gitSuffixConstant) {
		trimmed = trimmed[:len(trimmed)-len(gitSuffixConstant)]
	}
	return trimmed
}

func unescapePath(rawPath string) string {
	unescaped, unescapeError := url.PathUnescape(rawPath)
	if unescapeError != nil {
		return rawPath
	}
	return unescaped
}
