package scanclient

import (
	"fmt"
	"strings"
	"time"
)

const (
	projectWebURLTemplateConstant = "https://app.snyk.io/org/%s/project/%s"
)

var organizationSlugReplacer = strings.NewReplacer(" ", "-", "_", "-")

// Organization is one scanning-service organization.
type Organization struct {
	ID   string
	Name string
	Slug string
}

// WebSlug returns the slug used in web links, deriving it from the name when the API omits it.
func (organization Organization) WebSlug() string {
	if len(organization.Slug) > 0 {
		return organization.Slug
	}
	if len(organization.Name) > 0 {
		return organizationSlugReplacer.Replace(strings.ToLower(organization.Name))
	}
	return organization.ID
}

// ProjectURL links a project in the scanning-service web interface.
func (organization Organization) ProjectURL(projectID string) string {
	return fmt.Sprintf(projectWebURLTemplateConstant, organization.WebSlug(), projectID)
}

// Target is one tracked repository record.
type Target struct {
	ID          string
	OrgID       string
	DisplayName string
	URL         string
	SourceType  string
}

// Project is one tracked manifest under a target.
// TargetFile is the first tracked path; TargetFiles holds every distinct path the project reports.
type Project struct {
	ID          string
	OrgID       string
	TargetID    string
	Name        string
	Type        string
	TargetFile  string
	TargetFiles []string
	Root        string
	Created     time.Time
}

// TrackedFiles returns every path the project tracks, relative to Root.
func (project Project) TrackedFiles() []string {
	if len(project.TargetFiles) > 0 {
		return project.TargetFiles
	}
	if len(project.TargetFile) > 0 {
		return []string{project.TargetFile}
	}
	return nil
}

type resourceLinks struct {
	Next string `json:"next"`
}

type relationshipReference struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			IntegrationType string `json:"integration_type"`
		} `json:"attributes"`
	} `json:"data"`
}

type organizationResource struct {
	ID         string `json:"id"`
	Attributes struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	} `json:"attributes"`
}

type organizationListDocument struct {
	Data  []organizationResource `json:"data"`
	Links resourceLinks          `json:"links"`
}

type organizationDocument struct {
	Data organizationResource `json:"data"`
}

type targetResource struct {
	ID         string `json:"id"`
	Attributes struct {
		DisplayName string `json:"display_name"`
		URL         string `json:"url"`
		Type        string `json:"type"`
	} `json:"attributes"`
	Relationships struct {
		Integration relationshipReference `json:"integration"`
	} `json:"relationships"`
}

type targetListDocument struct {
	Data  []targetResource `json:"data"`
	Links resourceLinks    `json:"links"`
}

type projectResource struct {
	ID         string `json:"id"`
	Attributes struct {
		Name           string   `json:"name"`
		Type           string   `json:"type"`
		TargetFile     string   `json:"target_file"`
		TargetFilePath string   `json:"target_file_path"`
		FilePath       string   `json:"file_path"`
		Path           string   `json:"path"`
		TargetFiles    []string `json:"target_files"`
		Root           string   `json:"root"`
		Created        string   `json:"created"`
		TargetID       string   `json:"target_id"`
	} `json:"attributes"`
	Relationships struct {
		Target       relationshipReference `json:"target"`
		Organization relationshipReference `json:"organization"`
	} `json:"relationships"`
}

type projectListDocument struct {
	Data  []projectResource `json:"data"`
	Links resourceLinks     `json:"links"`
}

func (resource organizationResource) toOrganization() Organization {
	return Organization{ID: resource.ID, Name: resource.Attributes.Name, Slug: resource.Attributes.Slug}
}

func (resource targetResource) toTarget(orgID string) Target {
	sourceType := resource.Relationships.Integration.Data.Attributes.IntegrationType
	if len(sourceType) == 0 {
		sourceType = resource.Attributes.Type
	}
	displayName := resource.Attributes.DisplayName
	if len(displayName) == 0 {
		displayName = resource.ID
	}
	return Target{
		ID:          resource.ID,
		OrgID:       orgID,
		DisplayName: displayName,
		URL:         resource.Attributes.URL,
		SourceType:  sourceType,
	}
}

func (resource projectResource) toProject(orgID string) Project {
	targetID := resource.Attributes.TargetID
	if len(targetID) == 0 {
		targetID = resource.Relationships.Target.Data.ID
	}
	projectOrgID := resource.Relationships.Organization.Data.ID
	if len(projectOrgID) == 0 {
		projectOrgID = orgID
	}
	created, parseError := time.Parse(time.RFC3339, resource.Attributes.Created)
	if parseError != nil {
		created = time.Time{}
	}
	project := Project{
		ID:          resource.ID,
		OrgID:       projectOrgID,
		TargetID:    targetID,
		Name:        resource.Attributes.Name,
		Type:        resource.Attributes.Type,
		TargetFiles: resource.filePaths(),
		Root:        resource.Attributes.Root,
		Created:     created,
	}
	if len(project.TargetFiles) > 0 {
		project.TargetFile = project.TargetFiles[0]
	}
	return project
}

// filePaths collects the tracked paths from every attribute the API has used for them, in precedence order.
func (resource projectResource) filePaths() []string {
	attributes := resource.Attributes
	candidates := []string{attributes.TargetFile, attributes.TargetFilePath, attributes.FilePath, attributes.Path}
	candidates = append(candidates, attributes.TargetFiles...)

	seen := make(map[string]struct{}, len(candidates))
	var filePaths []string
	for _, candidate := range candidates {
		trimmed := strings.TrimSpace(candidate)
		if len(trimmed) == 0 {
			continue
		}
		if _, duplicate := seen[trimmed]; duplicate {
			continue
		}
		seen[trimmed] = struct{}{}
		filePaths = append(filePaths, trimmed)
	}
	return filePaths
}
