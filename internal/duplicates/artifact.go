package duplicates

import (
	"bytes"
	"encoding/xml"
	"errors"
	"path"
	"strings"
)

const (
	mavenProjectTypeConstant            = "maven"
	mavenManifestNameConstant           = "pom.xml"
	missingArtifactIDMessageConstant    = "manifest declares no artifactId"
	artifactStatusMatchValueConstant    = "MATCH"
	artifactStatusMismatchValueConstant = "MISMATCH"
	artifactStatusNotFoundValueConstant = "NOT_FOUND"
	artifactStatusErrorValueConstant    = "ERROR"
	artifactStatusUnknownValueConstant  = "UNKNOWN"
	rootDirectoryConstant               = "."
)

var errMissingArtifactID = errors.New(missingArtifactIDMessageConstant)

// ArtifactStatus summarizes the comparison between expected and declared artifact identities.
type ArtifactStatus string

// Artifact comparison outcomes.
const (
	ArtifactStatusMatch    ArtifactStatus = ArtifactStatus(artifactStatusMatchValueConstant)
	ArtifactStatusMismatch ArtifactStatus = ArtifactStatus(artifactStatusMismatchValueConstant)
	ArtifactStatusNotFound ArtifactStatus = ArtifactStatus(artifactStatusNotFoundValueConstant)
	ArtifactStatusError    ArtifactStatus = ArtifactStatus(artifactStatusErrorValueConstant)
	ArtifactStatusUnknown  ArtifactStatus = ArtifactStatus(artifactStatusUnknownValueConstant)
)

// ManifestCandidate is one pom.xml discovered under the project root.
type ManifestCandidate struct {
	Path               string
	DeclaredArtifactID string
	DeclaredGroupID    string
	Status             ArtifactStatus
	Err                error
}

// ArtifactCheck is the evidence attached to a Maven duplicate decision.
type ArtifactCheck struct {
	ExpectedArtifactID string
	SearchRoot         string
	Status             ArtifactStatus
	Candidates         []ManifestCandidate
	Err                error
}

// IsMavenProject reports whether the project tracks a Maven manifest.
func IsMavenProject(projectType string) bool {
	return strings.EqualFold(strings.TrimSpace(projectType), mavenProjectTypeConstant)
}

// ExpectedArtifactID derives the artifact identity from a unique identifier such as
// "com.example:lib-a" or "lib-a". Identifiers naming a manifest path carry no identity.
func ExpectedArtifactID(uniqueIdentifier string) string {
	segments := strings.Split(uniqueIdentifier, identifierDelimiterConstant)
	expected := strings.TrimSpace(segments[len(segments)-1])
	if strings.EqualFold(path.Base(expected), mavenManifestNameConstant) {
		return ""
	}
	return expected
}

type pomDocument struct {
	XMLName    xml.Name `xml:"project"`
	GroupID    string   `xml:"groupId"`
	ArtifactID string   `xml:"artifactId"`
	Parent     struct {
		GroupID string `xml:"groupId"`
	} `xml:"parent"`
}

// ParseDeclaredIdentity reads the project-level groupId and artifactId from pom.xml content.
// A groupId inherited from the parent is reported when the project omits its own.
func ParseDeclaredIdentity(content []byte) (groupID string, artifactID string, parseError error) {
	var document pomDocument
	decoder := xml.NewDecoder(bytes.NewReader(content))
	decoder.Strict = false
	if decodeError := decoder.Decode(&document); decodeError != nil {
		return "", "", decodeError
	}
	artifactID = strings.TrimSpace(document.ArtifactID)
	if len(artifactID) == 0 {
		return "", "", errMissingArtifactID
	}
	groupID = strings.TrimSpace(document.GroupID)
	if len(groupID) == 0 {
		groupID = strings.TrimSpace(document.Parent.GroupID)
	}
	return groupID, artifactID, nil
}

// manifestSearchRoot is the directory searched for pom.xml files: the project root, or the directory of
// the tracked manifest when the scanner recorded no root.
func manifestSearchRoot(rootDirectory string, trackedFile string) string {
	root := strings.Trim(strings.ReplaceAll(strings.TrimSpace(rootDirectory), `\`, "/"), "/")
	if len(root) > 0 {
		return path.Clean(root)
	}
	trackedDirectory := path.Dir(strings.Trim(strings.ReplaceAll(strings.TrimSpace(trackedFile), `\`, "/"), "/"))
	return path.Clean(trackedDirectory)
}

// manifestsUnder selects pom.xml paths located at or below searchRoot.
func manifestsUnder(treePaths []string, searchRoot string) []string {
	var manifests []string
	for _, treePath := range treePaths {
		if !strings.EqualFold(path.Base(treePath), mavenManifestNameConstant) {
			continue
		}
		if searchRoot != rootDirectoryConstant && treePath != searchRoot && !strings.HasPrefix(treePath, searchRoot+"/") {
			continue
		}
		manifests = append(manifests, treePath)
	}
	return manifests
}
