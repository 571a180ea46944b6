package scanclient

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
	organizationsPathConstant                = "orgs"
	organizationPathTemplateConstant         = "orgs/%s"
	groupOrganizationsPathTemplateConstant   = "groups/%s/orgs"
	targetsPathTemplateConstant              = "orgs/%s/targets"
	projectsPathTemplateConstant             = "orgs/%s/projects"
	listOrganizationsOperationConstant       = "list scanner organizations"
	listGroupOrganizationsOperationConstant  = "list organizations of scanner group %s"
	getOrganizationOperationTemplateConstant = "get scanner organization %s"
	listTargetsOperationTemplateConstant     = "list targets of scanner organization %s"
	listProjectsOperationTemplateConstant    = "list projects of scanner target %s"
	decodeErrorTemplateConstant              = "%s: unable to decode response: %w"
	queryVersionConstant                     = "version"
	queryLimitConstant                       = "limit"
	queryStartingAfterConstant               = "starting_after"
	querySourceTypesConstant                 = "source_types"
	queryTargetIDConstant                    = "target_id"
	pageLimitConstant                        = "100"
	sourceTypeSeparatorConstant              = ","
)

// SnykClient talks to the scanning-service REST API through a shared apiclient session.
type SnykClient struct {
	api        *apiclient.Client
	apiVersion string
}

// NewSnykClient wraps api; apiVersion defaults to DefaultAPIVersion.
func NewSnykClient(api *apiclient.Client, apiVersion string) *SnykClient {
	if len(strings.TrimSpace(apiVersion)) == 0 {
		apiVersion = DefaultAPIVersion
	}
	return &SnykClient{api: api, apiVersion: apiVersion}
}

// OrganizationPage fetches one page of organizations visible to the token.
func (client *SnykClient) OrganizationPage(executionContext context.Context, cursor string) (pagination.Page[Organization], error) {
	return client.organizationPage(executionContext, listOrganizationsOperationConstant, organizationsPathConstant, cursor)
}

// GroupOrganizationPages returns a page source over the organizations of one group.
func (client *SnykClient) GroupOrganizationPages(groupID string) pagination.FetchFunc[Organization] {
	operation := fmt.Sprintf(listGroupOrganizationsOperationConstant, groupID)
	requestPath := fmt.Sprintf(groupOrganizationsPathTemplateConstant, url.PathEscape(groupID))
	return func(executionContext context.Context, cursor string) (pagination.Page[Organization], error) {
		return client.organizationPage(executionContext, operation, requestPath, cursor)
	}
}

func (client *SnykClient) organizationPage(executionContext context.Context, operation string, requestPath string, cursor string) (pagination.Page[Organization], error) {
	var document organizationListDocument
	if fetchError := client.getDocument(executionContext, operation, requestPath, client.pageQuery(cursor), &document); fetchError != nil {
		return pagination.Page[Organization]{}, fetchError
	}

	organizations := make([]Organization, 0, len(document.Data))
	for _, resource := range document.Data {
		organizations = append(organizations, resource.toOrganization())
	}
	return pagination.Page[Organization]{Items: organizations, NextCursor: nextCursor(document.Links)}, nil
}

// GetOrganization fetches one organization. It doubles as the access check for an organization id.
func (client *SnykClient) GetOrganization(executionContext context.Context, orgID string) (Organization, error) {
	operation := fmt.Sprintf(getOrganizationOperationTemplateConstant, orgID)
	var document organizationDocument
	if fetchError := client.getDocument(executionContext, operation, fmt.Sprintf(organizationPathTemplateConstant, url.PathEscape(orgID)), client.versionQuery(), &document); fetchError != nil {
		return Organization{}, fetchError
	}
	organization := document.Data.toOrganization()
	if len(organization.ID) == 0 {
		organization.ID = orgID
	}
	return organization, nil
}

// TargetPages returns a page source over the targets of orgID restricted server-side to sourceTypes.
func (client *SnykClient) TargetPages(orgID string, sourceTypes []string) pagination.FetchFunc[Target] {
	operation := fmt.Sprintf(listTargetsOperationTemplateConstant, orgID)
	requestPath := fmt.Sprintf(targetsPathTemplateConstant, url.PathEscape(orgID))
	return func(executionContext context.Context, cursor string) (pagination.Page[Target], error) {
		query := client.pageQuery(cursor)
		if len(sourceTypes) > 0 {
			query.Set(querySourceTypesConstant, strings.Join(sourceTypes, sourceTypeSeparatorConstant))
		}

		var document targetListDocument
		if fetchError := client.getDocument(executionContext, operation, requestPath, query, &document); fetchError != nil {
			return pagination.Page[Target]{}, fetchError
		}

		targets := make([]Target, 0, len(document.Data))
		for _, resource := range document.Data {
			targets = append(targets, resource.toTarget(orgID))
		}
		return pagination.Page[Target]{Items: targets, NextCursor: nextCursor(document.Links)}, nil
	}
}

// ListProjects returns every project scoped under targetID.
func (client *SnykClient) ListProjects(executionContext context.Context, orgID string, targetID string) ([]Project, error) {
	operation := fmt.Sprintf(listProjectsOperationTemplateConstant, targetID)
	requestPath := fmt.Sprintf(projectsPathTemplateConstant, url.PathEscape(orgID))

	projects, collectError := pagination.Collect(executionContext, func(pageContext context.Context, cursor string) (pagination.Page[Project], error) {
		query := client.pageQuery(cursor)
		query.Set(queryTargetIDConstant, targetID)

		var document projectListDocument
		if fetchError := client.getDocument(pageContext, operation, requestPath, query, &document); fetchError != nil {
			return pagination.Page[Project]{}, fetchError
		}

		pageProjects := make([]Project, 0, len(document.Data))
		for _, resource := range document.Data {
			pageProjects = append(pageProjects, resource.toProject(orgID))
		}
		return pagination.Page[Project]{Items: pageProjects, NextCursor: nextCursor(document.Links)}, nil
	})
	if collectError != nil {
		return nil, collectError
	}

	scopedProjects := make([]Project, 0, len(projects))
	for _, project := range projects {
		if len(project.TargetID) == 0 {
			project.TargetID = targetID
		}
		if project.TargetID == targetID {
			scopedProjects = append(scopedProjects, project)
		}
	}
	return scopedProjects, nil
}

func (client *SnykClient) getDocument(executionContext context.Context, operation string, requestPath string, query url.Values, target any) error {
	response, getError := client.api.Get(executionContext, operation, requestPath, query)
	if getError != nil {
		return getError
	}
	if decodeError := json.Unmarshal(response.Body, target); decodeError != nil {
		return fmt.Errorf(decodeErrorTemplateConstant, operation, decodeError)
	}
	return nil
}

func (client *SnykClient) versionQuery() url.Values {
	query := url.Values{}
	query.Set(queryVersionConstant, client.apiVersion)
	return query
}

func (client *SnykClient) pageQuery(cursor string) url.Values {
	query := client.versionQuery()
	query.Set(queryLimitConstant, pageLimitConstant)
	if len(cursor) > 0 {
		query.Set(queryStartingAfterConstant, cursor)
	}
	return query
}

// nextCursor extracts the starting_after cursor from a links.next URL; absent or cursor-less links end paging.
func nextCursor(links resourceLinks) string {
	if len(strings.TrimSpace(links.Next)) == 0 {
		return ""
	}
	parsedNext, parseError := url.Parse(links.Next)
	if parseError != nil {
		return ""
	}
	return parsedNext.Query().Get(queryStartingAfterConstant)
}
