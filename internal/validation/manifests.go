package validation

import (
	"path"
	"regexp"
	"strings"
)

var supportedManifestPatterns = []string{
	`(^|/)package\.json$`,
	`(^|/)package-lock\.json$`,
	`(^|/)yarn\.lock$`,
	`(^|/)requirements\.txt$`,
	`(^|/)Pipfile$`,
	`(^|/)Pipfile\.lock$`,
	`(^|/)poetry\.lock$`,
	`(^|/)pyproject\.toml$`,
	`(^|/)pom\.xml$`,
	`(^|/)build\.gradle$`,
	`(^|/)build\.gradle\.kts$`,
	`(^|/)composer\.json$`,
	`(^|/)composer\.lock$`,
	`(^|/)Gemfile$`,
	`(^|/)Gemfile\.lock$`,
	`(^|/)go\.mod$`,
	`(^|/)go\.sum$`,
	`(^|/)Cargo\.toml$`,
	`(^|/)Cargo\.lock$`,
	`(^|/)nuget\.config$`,
	`(^|/)packages\.config$`,
	`\.csproj$`,
	`\.vbproj$`,
	`\.fsproj$`,
	`(^|/)Dockerfile$`,
	`(^|/)\.dockerignore$`,
	`(^|/)docker-compose\.ya?ml$`,
	`(^|/)\.nvmrc$`,
	`(^|/)\.node-version$`,
	`(^|/)\.python-version$`,
	`(^|/)\.ruby-version$`,
	`(^|/)\.java-version$`,
	`\.sbt$`,
	`(^|/)project/build\.properties$`,
}

// ManifestMatcher recognizes file paths of manifests the scanning service can track.
type ManifestMatcher struct {
	patterns []*regexp.Regexp
}

// NewManifestMatcher compiles the supported manifest set. Matching ignores case.
func NewManifestMatcher() *ManifestMatcher {
	matcher := &ManifestMatcher{patterns: make([]*regexp.Regexp, 0, len(supportedManifestPatterns))}
	for _, pattern := range supportedManifestPatterns {
		matcher.patterns = append(matcher.patterns, regexp.MustCompile(`(?i)`+pattern))
	}
	return matcher
}

// IsSupported reports whether filePath names a supported manifest.
func (matcher *ManifestMatcher) IsSupported(filePath string) bool {
	for _, pattern := range matcher.patterns {
		if pattern.MatchString(filePath) {
			return true
		}
	}
	return false
}

// FullPath joins a project root directory with its tracked file into a repository-relative path
// without leading or trailing separators.
func FullPath(rootDirectory string, trackedFile string) string {
	slashedRoot := strings.ReplaceAll(strings.TrimSpace(rootDirectory), `\`, "/")
	slashedFile := strings.ReplaceAll(strings.TrimSpace(trackedFile), `\`, "/")
	if len(slashedFile) == 0 {
		return ""
	}
	joined := path.Join(slashedRoot, slashedFile)
	if joined == "." {
		return ""
	}
	return strings.Trim(joined, "/")
}
