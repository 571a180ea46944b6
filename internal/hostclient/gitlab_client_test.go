package hostclient_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/scadrift/internal/apiclient"
	"github.com/temirov/scadrift/internal/hostclient"
)

const (
	testProjectsPathConstant             = "/api/v4/projects"
	testProjectPathConstant              = "/api/v4/projects/7"
	testTreePathConstant                 = "/api/v4/projects/7/repository/tree"
	testExistingFileEscapedConstant      = "/api/v4/projects/7/repository/files/src%2Frequirements.txt"
	testMissingFileEscapedConstant       = "/api/v4/projects/7/repository/files/src%2Fgone.txt"
	testBrokenFileEscapedConstant        = "/api/v4/projects/7/repository/files/broken.txt"
	testRawFileEscapedConstant           = "/api/v4/projects/7/repository/files/pom.xml/raw"
	testTokenConstant                    = "glpat-token"
	testHostClientSubtestPatternConstant = "%d_%s"
	testBranchConstant                   = "main"
)

func newGitLabTestServer(testInstance *testing.T) *httptest.Server {
	testInstance.Helper()
	return httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		if request.Header.Get(hostclient.TokenHeaderName) != testTokenConstant {
			responseWriter.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch request.URL.EscapedPath() {
		case testProjectsPathConstant:
			query := request.URL.Query()
			if query.Get("membership") != "true" || query.Get("archived") != "false" || query.Get("per_page") != "100" {
				responseWriter.WriteHeader(http.StatusBadRequest)
				return
			}
			switch query.Get("page") {
			case "":
				responseWriter.Header().Set("X-Next-Page", "2")
				_, _ = responseWriter.Write([]byte(`[{"id":7,"path_with_namespace":"platform/payments","default_branch":"main","web_url":"https://gitlab.example.com/platform/payments"}]`))
			case "2":
				responseWriter.Header().Set("X-Next-Page", "")
				_, _ = responseWriter.Write([]byte(`[{"id":8,"path_with_namespace":"platform/ledger","default_branch":"trunk","web_url":"https://gitlab.example.com/platform/ledger"}]`))
			default:
				_, _ = responseWriter.Write([]byte(`[]`))
			}
		case testProjectPathConstant:
			_, _ = responseWriter.Write([]byte(`{"id":7,"default_branch":"main"}`))
		case testTreePathConstant:
			query := request.URL.Query()
			if query.Get("recursive") != "true" || query.Get("ref") != testBranchConstant {
				responseWriter.WriteHeader(http.StatusBadRequest)
				return
			}
			if query.Get("page") == "2" {
				_, _ = responseWriter.Write([]byte(`[{"path":"services/api/pom.xml","type":"blob"}]`))
				return
			}
			responseWriter.Header().Set("X-Next-Page", "2")
			_, _ = responseWriter.Write([]byte(`[{"path":"src","type":"tree"},{"path":"src/requirements.txt","type":"blob"}]`))
		case testExistingFileEscapedConstant:
			_, _ = responseWriter.Write([]byte(`{"file_path":"src/requirements.txt"}`))
		case testMissingFileEscapedConstant:
			responseWriter.WriteHeader(http.StatusNotFound)
		case testBrokenFileEscapedConstant:
			responseWriter.WriteHeader(http.StatusBadRequest)
		case testRawFileEscapedConstant:
			_, _ = responseWriter.Write([]byte(`<project/>`))
		default:
			responseWriter.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newGitLabTestClient(testInstance *testing.T, serverURL string) *hostclient.GitLabClient {
	testInstance.Helper()
	api, apiError := apiclient.NewClient(apiclient.Options{
		BaseURL:              serverURL + hostclient.APIPathSuffix,
		Headers:              map[string]string{hostclient.TokenHeaderName: testTokenConstant},
		RetryAttempts:        1,
		RetryInitialInterval: time.Millisecond,
	})
	require.NoError(testInstance, apiError)
	return hostclient.NewGitLabClient(api)
}

func TestListRepositoriesFollowsNextPageHeader(testInstance *testing.T) {
	server := newGitLabTestServer(testInstance)
	defer server.Close()

	repositories, listError := newGitLabTestClient(testInstance, server.URL).ListRepositories(context.Background())
	require.NoError(testInstance, listError)
	require.Len(testInstance, repositories, 2)
	require.Equal(testInstance, "platform/payments", repositories[0].PathWithNamespace)
	require.Equal(testInstance, "trunk", repositories[1].DefaultBranch)
	require.Equal(testInstance, int64(8), repositories[1].ID)
}

func TestFileExistsDistinguishesMissingFromErrors(testInstance *testing.T) {
	server := newGitLabTestServer(testInstance)
	defer server.Close()
	client := newGitLabTestClient(testInstance, server.URL)

	testCases := []struct {
		name          string
		filePath      string
		expectExists  bool
		expectFailure bool
	}{
		{name: "present", filePath: "src/requirements.txt", expectExists: true},
		{name: "missing", filePath: "src/gone.txt", expectExists: false},
		{name: "error", filePath: "broken.txt", expectFailure: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testHostClientSubtestPatternConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			exists, existsError := client.FileExists(context.Background(), 7, testBranchConstant, testCase.filePath)
			if testCase.expectFailure {
				require.Error(testInstance, existsError)
				return
			}
			require.NoError(testInstance, existsError)
			require.Equal(testInstance, testCase.expectExists, exists)
		})
	}
}

func TestListTreeReturnsNestedBlobsAcrossPages(testInstance *testing.T) {
	server := newGitLabTestServer(testInstance)
	defer server.Close()

	filePaths, treeError := newGitLabTestClient(testInstance, server.URL).ListTree(context.Background(), 7, testBranchConstant)
	require.NoError(testInstance, treeError)
	require.Equal(testInstance, []string{"src/requirements.txt", "services/api/pom.xml"}, filePaths)
}

func TestGetDefaultBranchAndContent(testInstance *testing.T) {
	server := newGitLabTestServer(testInstance)
	defer server.Close()
	client := newGitLabTestClient(testInstance, server.URL)

	branch, branchError := client.GetDefaultBranch(context.Background(), 7)
	require.NoError(testInstance, branchError)
	require.Equal(testInstance, testBranchConstant, branch)

	content, contentError := client.GetFileContent(context.Background(), 7, testBranchConstant, "pom.xml")
	require.NoError(testInstance, contentError)
	require.True(testInstance, strings.HasPrefix(string(content), "<project"))
}

func TestMissingTokenIsAuthorizationError(testInstance *testing.T) {
	server := newGitLabTestServer(testInstance)
	defer server.Close()

	api, apiError := apiclient.NewClient(apiclient.Options{BaseURL: server.URL + hostclient.APIPathSuffix, RetryAttempts: 1})
	require.NoError(testInstance, apiError)

	_, listError := hostclient.NewGitLabClient(api).ListRepositories(context.Background())
	var authorizationError apiclient.AuthorizationError
	require.ErrorAs(testInstance, listError, &authorizationError)
}

type countingTreeLister struct {
	calls    int32
	failures int32
	paths    []string
}

func (lister *countingTreeLister) ListTree(context.Context, int64, string) ([]string, error) {
	call := atomic.AddInt32(&lister.calls, 1)
	if call <= lister.failures {
		return nil, errors.New("tree unavailable")
	}
	return lister.paths, nil
}

func TestCachingTreeListerMemoizesSuccessOnly(testInstance *testing.T) {
	delegate := &countingTreeLister{failures: 1, paths: []string{"pom.xml"}}
	lister, listerError := hostclient.NewCachingTreeLister(delegate, 4)
	require.NoError(testInstance, listerError)

	_, firstError := lister.ListTree(context.Background(), 1, testBranchConstant)
	require.Error(testInstance, firstError)

	for attempt := 0; attempt < 3; attempt++ {
		filePaths, listError := lister.ListTree(context.Background(), 1, testBranchConstant)
		require.NoError(testInstance, listError)
		require.Equal(testInstance, []string{"pom.xml"}, filePaths)
	}
	require.Equal(testInstance, int32(2), atomic.LoadInt32(&delegate.calls))

	_, otherRefError := lister.ListTree(context.Background(), 1, "develop")
	require.NoError(testInstance, otherRefError)
	require.Equal(testInstance, int32(3), atomic.LoadInt32(&delegate.calls))
}
