package hostclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/temirov/scadrift/internal/apiclient"
	"github.com/temirov/scadrift/internal/pagination"
)

const (
	// APIPathSuffix is appended to the host URL to reach the REST v4 API.
	APIPathSuffix   = "/api/v4"
	// TokenHeaderName carries the personal access token.
	TokenHeaderName = "PRIVATE-TOKEN"

	nextPageHeaderConstant               = "X-Next-Page"
	pageSizeConstant                     = "100"
	treeEntryBlobTypeConstant            = "blob"
	projectsPathConstant                 = "projects"
	projectPathTemplateConstant          = "projects/%d"
	fileMetadataPathTemplateConstant     = "projects/%d/repository/files/%s"
	fileRawPathTemplateConstant          = "projects/%d/repository/files/%s/raw"
	treePathTemplateConstant             = "projects/%d/repository/tree"
	listRepositoriesOperationConstant    = "list host repositories"
	getProjectOperationTemplateConstant  = "get host project %d"
	fileExistsOperationTemplateConstant  = "check %s in host project %d at %s"
	fileContentOperationTemplateConstant = "read %s in host project %d at %s"
	listTreeOperationTemplateConstant    = "list tree of host project %d at %s"
	decodeErrorTemplateConstant          = "%s: unable to decode response: %w"
	queryMembershipConstant              = "membership"
	querySimpleConstant                  = "simple"
	queryArchivedConstant                = "archived"
	queryPerPageConstant                 = "per_page"
	queryOrderByConstant                 = "order_by"
	queryPageConstant                    = "page"
	queryRefConstant                     = "ref"
	queryRecursiveConstant               = "recursive"
	queryTrueConstant                    = "true"
	queryFalseConstant                   = "false"
	queryOrderByPathConstant             = "path"
)

// Repository is one project listed by the host.
type Repository struct {
	ID                int64  `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
	DefaultBranch     string `json:"default_branch"`
	WebURL            string `json:"web_url"`
	HTTPURLToRepo     string `json:"http_url_to_repo"`
	SSHURLToRepo      string `json:"ssh_url_to_repo"`
	Visibility        string `json:"visibility"`
	LastActivityAt    string `json:"last_activity_at"`
}

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// GitLabClient talks to one GitLab instance through a shared apiclient session.
type GitLabClient struct {
	api *apiclient.Client
}

// NewGitLabClient wraps an apiclient.Client whose base URL ends in APIPathSuffix.
func NewGitLabClient(api *apiclient.Client) *GitLabClient {
	return &GitLabClient{api: api}
}

// RepositoryPage fetches one page of repositories the token is a member of.
// The cursor is the page number announced by the previous page's X-Next-Page header.
func (client *GitLabClient) RepositoryPage(executionContext context.Context, cursor string) (pagination.Page[Repository], error) {
	query := url.Values{}
	query.Set(queryMembershipConstant, queryTrueConstant)
	query.Set(querySimpleConstant, queryTrueConstant)
	query.Set(queryArchivedConstant, queryFalseConstant)
	query.Set(queryPerPageConstant, pageSizeConstant)
	query.Set(queryOrderByConstant, queryOrderByPathConstant)
	if len(cursor) > 0 {
		query.Set(queryPageConstant, cursor)
	}

	response, getError := client.api.Get(executionContext, listRepositoriesOperationConstant, projectsPathConstant, query)
	if getError != nil {
		return pagination.Page[Repository]{}, getError
	}

	var repositories []Repository
	if decodeError := json.Unmarshal(response.Body, &repositories); decodeError != nil {
		return pagination.Page[Repository]{}, fmt.Errorf(decodeErrorTemplateConstant, listRepositoriesOperationConstant, decodeError)
	}

	return pagination.Page[Repository]{Items: repositories, NextCursor: strings.TrimSpace(response.Header.Get(nextPageHeaderConstant))}, nil
}

// ListRepositories drains every repository page.
func (client *GitLabClient) ListRepositories(executionContext context.Context) ([]Repository, error) {
	return pagination.Collect(executionContext, client.RepositoryPage)
}

// GetDefaultBranch returns the default branch of a project.
func (client *GitLabClient) GetDefaultBranch(executionContext context.Context, projectID int64) (string, error) {
	operation := fmt.Sprintf(getProjectOperationTemplateConstant, projectID)
	response, getError := client.api.Get(executionContext, operation, fmt.Sprintf(projectPathTemplateConstant, projectID), nil)
	if getError != nil {
		return "", getError
	}

	var repository Repository
	if decodeError := json.Unmarshal(response.Body, &repository); decodeError != nil {
		return "", fmt.Errorf(decodeErrorTemplateConstant, operation, decodeError)
	}
	return repository.DefaultBranch, nil
}

// FileExists reports whether filePath exists at ref. A 404 means missing; every other failure is returned.
func (client *GitLabClient) FileExists(executionContext context.Context, projectID int64, ref string, filePath string) (bool, error) {
	operation := fmt.Sprintf(fileExistsOperationTemplateConstant, filePath, projectID, ref)
	requestPath := fmt.Sprintf(fileMetadataPathTemplateConstant, projectID, url.PathEscape(filePath))
	_, getError := client.api.Get(executionContext, operation, requestPath, refQuery(ref))
	if getError == nil {
		return true, nil
	}
	if apiclient.IsNotFound(getError) {
		return false, nil
	}
	return false, getError
}

// GetFileContent returns the raw bytes of filePath at ref.
func (client *GitLabClient) GetFileContent(executionContext context.Context, projectID int64, ref string, filePath string) ([]byte, error) {
	operation := fmt.Sprintf(fileContentOperationTemplateConstant, filePath, projectID, ref)
	requestPath := fmt.Sprintf(fileRawPathTemplateConstant, projectID, url.PathEscape(filePath))
	response, getError := client.api.Get(executionContext, operation, requestPath, refQuery(ref))
	if getError != nil {
		return nil, getError
	}
	return response.Body, nil
}

// ListTree returns every file path of the project at ref, walking nested directories and all pages.
func (client *GitLabClient) ListTree(executionContext context.Context, projectID int64, ref string) ([]string, error) {
	operation := fmt.Sprintf(listTreeOperationTemplateConstant, projectID, ref)
	requestPath := fmt.Sprintf(treePathTemplateConstant, projectID)

	entries, collectError := pagination.Collect(executionContext, func(pageContext context.Context, cursor string) (pagination.Page[treeEntry], error) {
		query := refQuery(ref)
		query.Set(queryRecursiveConstant, queryTrueConstant)
		query.Set(queryPerPageConstant, pageSizeConstant)
		if len(cursor) > 0 {
			query.Set(queryPageConstant, cursor)
		}

		response, getError := client.api.Get(pageContext, operation, requestPath, query)
		if getError != nil {
			return pagination.Page[treeEntry]{}, getError
		}

		var pageEntries []treeEntry
		if decodeError := json.Unmarshal(response.Body, &pageEntries); decodeError != nil {
			return pagination.Page[treeEntry]{}, fmt.Errorf(decodeErrorTemplateConstant, operation, decodeError)
		}
		return pagination.Page[treeEntry]{Items: pageEntries, NextCursor: strings.TrimSpace(response.Header.Get(nextPageHeaderConstant))}, nil
	})
	if collectError != nil {
		return nil, collectError
	}

	filePaths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type == treeEntryBlobTypeConstant {
			filePaths = append(filePaths, entry.Path)
		}
	}
	return filePaths, nil
}

func refQuery(ref string) url.Values {
	query := url.Values{}
	if len(ref) > 0 {
		query.Set(queryRefConstant, ref)
	}
	return query
}
