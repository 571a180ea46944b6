package scanclient_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/scadrift/internal/apiclient"
	"github.com/temirov/scadrift/internal/pagination"
	"github.com/temirov/scadrift/internal/scanclient"
)

const (
	testScannerTokenConstant             = "scanner-token"
	testScannerSubtestTemplateConstant   = "%d_%s"
	testOrganizationIDConstant           = "org-1"
	testGroupIDConstant                  = "group-9"
	testTargetIDConstant                 = "target-1"
	testAPIVersionQueryConstant          = "2024-10-15"
	testOrganizationsPathPatternConstant = "/rest/orgs"
)

func newScannerTestServer(testInstance *testing.T) *httptest.Server {
	testInstance.Helper()
	return httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		if request.Header.Get(scanclient.TokenHeaderName) != scanclient.TokenHeaderValue(testScannerTokenConstant) {
			responseWriter.WriteHeader(http.StatusUnauthorized)
			return
		}
		query := request.URL.Query()
		if query.Get("version") != testAPIVersionQueryConstant {
			responseWriter.WriteHeader(http.StatusBadRequest)
			return
		}
		switch request.URL.Path {
		case testOrganizationsPathPatternConstant:
			if query.Get("starting_after") == "" {
				_, _ = responseWriter.Write([]byte(`{"data":[{"id":"org-1","attributes":{"name":"Platform Team","slug":"platform-team"}}],"links":{"next":"/orgs?version=2024-10-15&starting_after=abc"}}`))
				return
			}
			_, _ = responseWriter.Write([]byte(`{"data":[{"id":"org-2","attributes":{"name":"Data_Team"}}],"links":{}}`))
		case "/rest/groups/group-9/orgs":
			_, _ = responseWriter.Write([]byte(`{"data":[{"id":"org-3","attributes":{"name":"Group Org"}}]}`))
		case "/rest/orgs/org-1":
			_, _ = responseWriter.Write([]byte(`{"data":{"id":"org-1","attributes":{"name":"Platform Team","slug":"platform-team"}}}`))
		case "/rest/orgs/org-denied":
			responseWriter.WriteHeader(http.StatusForbidden)
		case "/rest/orgs/org-1/targets":
			if query.Get("source_types") != "gitlab,cli" {
				responseWriter.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = responseWriter.Write([]byte(`{"data":[
				{"id":"target-1","attributes":{"display_name":"platform/payments","url":"https://gitlab.example.com/platform/payments"},"relationships":{"integration":{"data":{"attributes":{"integration_type":"gitlab"}}}}},
				{"id":"target-2","attributes":{"display_name":"","url":"","type":"cli"}}
			]}`))
		case "/rest/orgs/org-1/projects":
			if query.Get("target_id") != testTargetIDConstant {
				responseWriter.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = responseWriter.Write([]byte(`{"data":[
				{"id":"project-1","attributes":{"name":"platform/payments:app/pom.xml","type":"maven","target_file":"app/pom.xml","created":"2024-03-01T10:00:00.000Z"},"relationships":{"target":{"data":{"id":"target-1"}}}},
				{"id":"project-2","attributes":{"name":"other:package.json","type":"npm","target_file":"package.json","created":"2024-03-02T10:00:00Z"},"relationships":{"target":{"data":{"id":"target-7"}}}}
			]}`))
		default:
			responseWriter.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newScannerTestClient(testInstance *testing.T, serverURL string) *scanclient.SnykClient {
	testInstance.Helper()
	api, apiError := apiclient.NewClient(apiclient.Options{
		BaseURL:              serverURL + "/rest",
		Headers:              map[string]string{scanclient.TokenHeaderName: scanclient.TokenHeaderValue(testScannerTokenConstant)},
		RetryAttempts:        1,
		RetryInitialInterval: time.Millisecond,
	})
	require.NoError(testInstance, apiError)
	return scanclient.NewSnykClient(api, "")
}

func TestOrganizationPagesFollowCursor(testInstance *testing.T) {
	server := newScannerTestServer(testInstance)
	defer server.Close()
	client := newScannerTestClient(testInstance, server.URL)

	organizations, listError := pagination.Collect(context.Background(), client.OrganizationPage)
	require.NoError(testInstance, listError)
	require.Len(testInstance, organizations, 2)
	require.Equal(testInstance, "platform-team", organizations[0].WebSlug())
	require.Equal(testInstance, "data-team", organizations[1].WebSlug())

	groupOrganizations, groupError := pagination.Collect(context.Background(), client.GroupOrganizationPages(testGroupIDConstant))
	require.NoError(testInstance, groupError)
	require.Equal(testInstance, []scanclient.Organization{{ID: "org-3", Name: "Group Org"}}, groupOrganizations)
}

func TestGetOrganizationReportsDenial(testInstance *testing.T) {
	server := newScannerTestServer(testInstance)
	defer server.Close()
	client := newScannerTestClient(testInstance, server.URL)

	organization, getError := client.GetOrganization(context.Background(), testOrganizationIDConstant)
	require.NoError(testInstance, getError)
	require.Equal(testInstance, "https://app.snyk.io/org/platform-team/project/p-1", organization.ProjectURL("p-1"))

	_, deniedError := client.GetOrganization(context.Background(), "org-denied")
	require.True(testInstance, apiclient.IsAccessDenied(deniedError))
}

func TestTargetPagesFilterBySourceType(testInstance *testing.T) {
	server := newScannerTestServer(testInstance)
	defer server.Close()
	client := newScannerTestClient(testInstance, server.URL)

	targets, listError := pagination.Collect(context.Background(), client.TargetPages(testOrganizationIDConstant, []string{"gitlab", "cli"}))
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []scanclient.Target{
		{ID: "target-1", OrgID: testOrganizationIDConstant, DisplayName: "platform/payments", URL: "https://gitlab.example.com/platform/payments", SourceType: "gitlab"},
		{ID: "target-2", OrgID: testOrganizationIDConstant, DisplayName: "target-2", SourceType: "cli"},
	}, targets)
}

func TestListProjectsKeepsTargetScope(testInstance *testing.T) {
	server := newScannerTestServer(testInstance)
	defer server.Close()
	client := newScannerTestClient(testInstance, server.URL)

	projects, listError := client.ListProjects(context.Background(), testOrganizationIDConstant, testTargetIDConstant)
	require.NoError(testInstance, listError)
	require.Len(testInstance, projects, 1)
	require.Equal(testInstance, "project-1", projects[0].ID)
	require.Equal(testInstance, "app/pom.xml", projects[0].TargetFile)
	require.Equal(testInstance, testOrganizationIDConstant, projects[0].OrgID)
	require.Equal(testInstance, time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC), projects[0].Created.UTC())
}

func TestListProjectsReadsFilePathFallbacks(testInstance *testing.T) {
	testCases := []struct {
		name                string
		attributes          string
		expectedTargetFile  string
		expectedTrackedFile []string
	}{
		{
			name:                "target_file_path",
			attributes:          `{"name":"p:a","target_file_path":"services/api/pom.xml"}`,
			expectedTargetFile:  "services/api/pom.xml",
			expectedTrackedFile: []string{"services/api/pom.xml"},
		},
		{
			name:                "file_path",
			attributes:          `{"name":"p:b","file_path":"requirements.txt"}`,
			expectedTargetFile:  "requirements.txt",
			expectedTrackedFile: []string{"requirements.txt"},
		},
		{
			name:                "path",
			attributes:          `{"name":"p:c","path":"web/package.json"}`,
			expectedTargetFile:  "web/package.json",
			expectedTrackedFile: []string{"web/package.json"},
		},
		{
			name:                "target_files_list",
			attributes:          `{"name":"p:d","target_files":["go.mod","tools/go.mod"]}`,
			expectedTargetFile:  "go.mod",
			expectedTrackedFile: []string{"go.mod", "tools/go.mod"},
		},
		{
			name:                "precedence_and_deduplication",
			attributes:          `{"name":"p:e","target_file":"build.gradle","path":"build.gradle","file_path":" settings.gradle ","target_files":["build.gradle","app/build.gradle"]}`,
			expectedTargetFile:  "build.gradle",
			expectedTrackedFile: []string{"build.gradle", "settings.gradle", "app/build.gradle"},
		},
		{
			name:                "no_file_attributes",
			attributes:          `{"name":"p:f","target_file":"","target_files":[]}`,
			expectedTargetFile:  "",
			expectedTrackedFile: nil,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testScannerSubtestTemplateConstant, testCaseIndex, testCase.name), func(subTestInstance *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
				_, _ = responseWriter.Write([]byte(`{"data":[{"id":"project-9","attributes":` + testCase.attributes + `}]}`))
			}))
			defer server.Close()
			client := newScannerTestClient(subTestInstance, server.URL)

			projects, listError := client.ListProjects(context.Background(), testOrganizationIDConstant, testTargetIDConstant)
			require.NoError(subTestInstance, listError)
			require.Len(subTestInstance, projects, 1)
			require.Equal(subTestInstance, testCase.expectedTargetFile, projects[0].TargetFile)
			require.Equal(subTestInstance, testCase.expectedTrackedFile, projects[0].TrackedFiles())
		})
	}
}

func TestResolveBaseURL(testInstance *testing.T) {
	testCases := []struct {
		name          string
		region        string
		override      string
		expectedURL   string
		expectFailure bool
	}{
		{name: "default_region", expectedURL: "https://api.snyk.io/rest"},
		{name: "eu_region_lower_case", region: "snyk-eu-01", expectedURL: "https://api.eu.snyk.io/rest"},
		{name: "override_wins", region: "SNYK-AU-01", override: "https://scanner.internal/rest", expectedURL: "https://scanner.internal/rest"},
		{name: "unknown_region", region: "SNYK-MARS-01", expectFailure: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testScannerSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			baseURL, resolveError := scanclient.ResolveBaseURL(testCase.region, testCase.override)
			if testCase.expectFailure {
				require.Error(testInstance, resolveError)
				return
			}
			require.NoError(testInstance, resolveError)
			require.Equal(testInstance, testCase.expectedURL, baseURL)
		})
	}
}
