package duplicates_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/scadrift/internal/catalog"
	"github.com/temirov/scadrift/internal/duplicates"
	"github.com/temirov/scadrift/internal/hostclient"
	"github.com/temirov/scadrift/internal/scanclient"
	"github.com/temirov/scadrift/internal/targets"
)

const (
	testDuplicatesSubtestTemplateConstant = "%d_%s"
	testMavenTypeConstant                 = "maven"
	testPomTemplateConstant               = `<?xml version="1.0"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <parent><groupId>com.example.parent</groupId><artifactId>parent</artifactId></parent>
  <artifactId>%s</artifactId>
</project>`
)

func testDay(day int) time.Time {
	return time.Date(2024, time.January, day, 9, 0, 0, 0, time.UTC)
}

type stubRepositoryContent struct {
	tree      []string
	treeError error
	contents  map[string]string
	requested []string
}

func (content *stubRepositoryContent) ListTree(context.Context, int64, string) ([]string, error) {
	return content.tree, content.treeError
}

func (content *stubRepositoryContent) GetFileContent(_ context.Context, _ int64, _ string, filePath string) ([]byte, error) {
	content.requested = append(content.requested, filePath)
	fileContent, exists := content.contents[filePath]
	if !exists {
		return nil, errors.New("file unavailable")
	}
	return []byte(fileContent), nil
}

func testRepository() *catalog.RepositoryRecord {
	return &catalog.RepositoryRecord{DefaultBranch: "main", Metadata: hostclient.Repository{ID: 9}}
}

func TestUniqueIdentifier(testInstance *testing.T) {
	testCases := []struct {
		name               string
		projectName        string
		expectedIdentifier string
		expectedIdentified bool
	}{
		{name: "path_and_artifact", projectName: "app/pom.xml:lib-a", expectedIdentifier: "lib-a", expectedIdentified: true},
		{name: "repository_prefix", projectName: "platform/payments(main):services/api/package.json", expectedIdentifier: "services/api/package.json", expectedIdentified: true},
		{name: "relative_segments", projectName: "repo:./services/../api/package.json", expectedIdentifier: "api/package.json", expectedIdentified: true},
		{name: "maven_coordinates", projectName: "repo:com.example:lib-a", expectedIdentifier: "com.example:lib-a", expectedIdentified: true},
		{name: "no_delimiter", projectName: "platform/payments", expectedIdentified: false},
		{name: "empty_suffix", projectName: "platform/payments: ", expectedIdentified: false},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testDuplicatesSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			identifier, identified := duplicates.UniqueIdentifier(testCase.projectName)
			require.Equal(testInstance, testCase.expectedIdentified, identified)
			require.Equal(testInstance, testCase.expectedIdentifier, identifier)
		})
	}
}

func TestResolveKeepsNewestAndRemovesStaleDuplicates(testInstance *testing.T) {
	target := targets.TargetRecord{
		TargetID: "target-1",
		OrgID:    "org-1",
		Projects: []scanclient.Project{
			{ID: "old", Name: "app/pom.xml:lib-a", Type: "npm", Created: testDay(1)},
			{ID: "single", Name: "app/package.json:web", Type: "npm", Created: testDay(2)},
			{ID: "new", Name: "app/pom.xml:lib-a", Type: "npm", Created: testDay(3)},
		},
	}

	decisions := duplicates.NewResolver(nil, nil).Resolve(context.Background(), target, nil)

	require.Len(testInstance, decisions, 1)
	decision := decisions[0]
	require.Equal(testInstance, "lib-a", decision.UniqueIdentifier)
	require.Equal(testInstance, "new", decision.Keep.ID)
	require.Len(testInstance, decision.Remove, 1)
	require.Equal(testInstance, "old", decision.Remove[0].ID)
	require.Equal(testInstance, duplicates.ReasonStaleDuplicate, decision.Reason)
	require.Equal(testInstance, []string{"old", "new"}, []string{decision.Group[0].ID, decision.Group[1].ID})
	require.Nil(testInstance, decision.ArtifactCheck)
}

func TestResolveKeepsFirstSeenOnEqualTimestamps(testInstance *testing.T) {
	target := targets.TargetRecord{
		TargetID: "target-1",
		Projects: []scanclient.Project{
			{ID: "first", Name: "repo:requirements.txt", Created: testDay(5)},
			{ID: "second", Name: "repo:requirements.txt", Created: testDay(5)},
			{ID: "third", Name: "repo:requirements.txt", Created: testDay(5)},
		},
	}

	decisions := duplicates.NewResolver(nil, nil).Resolve(context.Background(), target, nil)

	require.Len(testInstance, decisions, 1)
	require.Equal(testInstance, "first", decisions[0].Keep.ID)
	require.Equal(testInstance, "second", decisions[0].Remove[0].ID)
	require.Equal(testInstance, "third", decisions[0].Remove[1].ID)
}

func TestResolveAnnotatesMavenArtifactIdentity(testInstance *testing.T) {
	testCases := []struct {
		name               string
		content            *stubRepositoryContent
		expectedStatus     duplicates.ArtifactStatus
		expectedCandidates []duplicates.ManifestCandidate
	}{
		{
			name: "mismatch",
			content: &stubRepositoryContent{
				tree:     []string{"app/pom.xml", "other/pom.xml", "app/src/Main.java"},
				contents: map[string]string{"app/pom.xml": fmt.Sprintf(testPomTemplateConstant, "lib-b")},
			},
			expectedStatus: duplicates.ArtifactStatusMismatch,
			expectedCandidates: []duplicates.ManifestCandidate{
				{Path: "app/pom.xml", DeclaredArtifactID: "lib-b", DeclaredGroupID: "com.example.parent", Status: duplicates.ArtifactStatusMismatch},
			},
		},
		{
			name: "match_among_nested_manifests",
			content: &stubRepositoryContent{
				tree: []string{"app/pom.xml", "app/module/pom.xml"},
				contents: map[string]string{
					"app/pom.xml":        fmt.Sprintf(testPomTemplateConstant, "lib-parent"),
					"app/module/pom.xml": fmt.Sprintf(testPomTemplateConstant, "lib-a"),
				},
			},
			expectedStatus: duplicates.ArtifactStatusMatch,
			expectedCandidates: []duplicates.ManifestCandidate{
				{Path: "app/pom.xml", DeclaredArtifactID: "lib-parent", DeclaredGroupID: "com.example.parent", Status: duplicates.ArtifactStatusMismatch},
				{Path: "app/module/pom.xml", DeclaredArtifactID: "lib-a", DeclaredGroupID: "com.example.parent", Status: duplicates.ArtifactStatusMatch},
			},
		},
		{
			name:           "no_manifest",
			content:        &stubRepositoryContent{tree: []string{"README.md"}},
			expectedStatus: duplicates.ArtifactStatusNotFound,
		},
		{
			name:           "tree_failure",
			content:        &stubRepositoryContent{treeError: errors.New("tree unavailable")},
			expectedStatus: duplicates.ArtifactStatusError,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testDuplicatesSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			target := targets.TargetRecord{
				TargetID: "target-1",
				Projects: []scanclient.Project{
					{ID: "old", Name: "app/pom.xml:lib-a", Type: testMavenTypeConstant, Root: "app", TargetFile: "pom.xml", Created: testDay(1)},
					{ID: "new", Name: "app/pom.xml:lib-a", Type: testMavenTypeConstant, Root: "app", TargetFile: "pom.xml", Created: testDay(3)},
				},
			}

			decisions := duplicates.NewResolver(testCase.content, nil).Resolve(context.Background(), target, testRepository())

			require.Len(testInstance, decisions, 1)
			artifactCheck := decisions[0].ArtifactCheck
			require.NotNil(testInstance, artifactCheck)
			require.Equal(testInstance, "lib-a", artifactCheck.ExpectedArtifactID)
			require.Equal(testInstance, "app", artifactCheck.SearchRoot)
			require.Equal(testInstance, testCase.expectedStatus, artifactCheck.Status)
			require.Equal(testInstance, testCase.expectedCandidates, artifactCheck.Candidates)
		})
	}
}

func TestResolveSkipsArtifactCheckWithoutRepository(testInstance *testing.T) {
	content := &stubRepositoryContent{tree: []string{"pom.xml"}}
	target := targets.TargetRecord{
		TargetID: "stale-target",
		Projects: []scanclient.Project{
			{ID: "a", Name: "repo:lib-a", Type: testMavenTypeConstant, Created: testDay(1)},
			{ID: "b", Name: "repo:lib-a", Type: testMavenTypeConstant, Created: testDay(2)},
		},
	}

	decisions := duplicates.NewResolver(content, nil).Resolve(context.Background(), target, nil)

	require.Len(testInstance, decisions, 1)
	require.Nil(testInstance, decisions[0].ArtifactCheck)
	require.Empty(testInstance, content.requested)
}

func TestParseDeclaredIdentity(testInstance *testing.T) {
	groupID, artifactID, parseError := duplicates.ParseDeclaredIdentity([]byte(`<project><groupId>com.example</groupId><artifactId>lib-a</artifactId></project>`))
	require.NoError(testInstance, parseError)
	require.Equal(testInstance, "com.example", groupID)
	require.Equal(testInstance, "lib-a", artifactID)

	_, _, missingError := duplicates.ParseDeclaredIdentity([]byte(`<project><groupId>com.example</groupId></project>`))
	require.Error(testInstance, missingError)

	require.Equal(testInstance, "lib-a", duplicates.ExpectedArtifactID("com.example:lib-a"))
	require.Empty(testInstance, duplicates.ExpectedArtifactID("services/api/pom.xml"))
}
