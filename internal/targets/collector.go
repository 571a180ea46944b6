package targets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/scadrift/internal/pagination"
	"github.com/temirov/scadrift/internal/repokey"
	"github.com/temirov/scadrift/internal/scanclient"
)

const (
	listOrganizationsErrorTemplateConstant = "unable to list scanner organizations: %w"
	listGroupErrorTemplateConstant         = "unable to list organizations of group %s: %w"
	organizationSkippedMessageConstant     = "Scanner organization skipped"
	organizationCollectedMessageConstant   = "Scanner targets collected"
	projectsFailedMessageConstant          = "Scanner projects could not be listed"
	unmappableTargetMessageConstant        = "Scanner target URL could not be keyed"
	collectionDoneMessageConstant          = "Scanner collection finished"
	logFieldOrganizationConstant           = "organization"
	logFieldTargetConstant                 = "target"
	logFieldTargetsConstant                = "targets"
	logFieldProjectsConstant               = "projects"
	logFieldOrganizationsConstant          = "organizations"
	logFieldFailuresConstant               = "failures"
	logFieldURLConstant                    = "url"
)

// ScannerClient is the scanning-service capability the collector consumes.
type ScannerClient interface {
	OrganizationPage(executionContext context.Context, cursor string) (pagination.Page[scanclient.Organization], error)
	GroupOrganizationPages(groupID string) pagination.FetchFunc[scanclient.Organization]
	GetOrganization(executionContext context.Context, orgID string) (scanclient.Organization, error)
	TargetPages(orgID string, sourceTypes []string) pagination.FetchFunc[scanclient.Target]
	ListProjects(executionContext context.Context, orgID string, targetID string) ([]scanclient.Project, error)
}

// KeyNormalizer turns repository URLs into canonical keys.
type KeyNormalizer interface {
	Normalize(rawURL string) (repokey.CanonicalKey, error)
}

// Collector gathers targets and their projects.
type Collector struct {
	client     ScannerClient
	normalizer KeyNormalizer
	logger     *zap.Logger
}

// NewCollector constructs a Collector.
func NewCollector(client ScannerClient, normalizer KeyNormalizer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{client: client, normalizer: normalizer, logger: logger}
}

// Collect resolves the organization scope and gathers every target with its projects.
// Only a conflicting selection or a failed scope listing is returned as an error; per-organization and
// per-target failures are recorded in the Collection.
func (collector *Collector) Collect(executionContext context.Context, selection ScopeSelection) (Collection, error) {
	if validationError := selection.Validate(); validationError != nil {
		return Collection{}, validationError
	}

	collection := Collection{}
	organizations, resolveError := collector.resolveOrganizations(executionContext, selection, &collection)
	if resolveError != nil {
		return Collection{}, resolveError
	}
	collection.Organizations = organizations

	for _, organization := range organizations {
		collector.collectOrganization(executionContext, organization, selection.sourceTypes(), &collection)
	}

	collector.logger.Info(collectionDoneMessageConstant,
		zap.Int(logFieldOrganizationsConstant, len(collection.Organizations)),
		zap.Int(logFieldTargetsConstant, len(collection.Targets)),
		zap.Int(logFieldFailuresConstant, len(collection.OrganizationFailures)),
	)
	return collection, nil
}

func (collector *Collector) resolveOrganizations(executionContext context.Context, selection ScopeSelection, collection *Collection) ([]scanclient.Organization, error) {
	if groupID := strings.TrimSpace(selection.GroupID); len(groupID) > 0 {
		organizations, listError := pagination.Collect(executionContext, collector.client.GroupOrganizationPages(groupID))
		if listError != nil {
			return nil, fmt.Errorf(listGroupErrorTemplateConstant, groupID, listError)
		}
		return organizations, nil
	}

	organizationIDs := selection.normalizedOrganizationIDs()
	if len(organizationIDs) == 0 {
		organizations, listError := pagination.Collect(executionContext, collector.client.OrganizationPage)
		if listError != nil {
			return nil, fmt.Errorf(listOrganizationsErrorTemplateConstant, listError)
		}
		return organizations, nil
	}

	organizations := make([]scanclient.Organization, 0, len(organizationIDs))
	for _, organizationID := range organizationIDs {
		if selection.SkipOrganizationValidation {
			organizations = append(organizations, scanclient.Organization{ID: organizationID})
			continue
		}
		organization, accessError := collector.client.GetOrganization(executionContext, organizationID)
		if accessError != nil {
			collector.recordOrganizationFailure(collection, organizationID, accessError)
			continue
		}
		organizations = append(organizations, organization)
	}
	return organizations, nil
}

func (collector *Collector) collectOrganization(executionContext context.Context, organization scanclient.Organization, sourceTypes []string, collection *Collection) {
	scannerTargets, listError := pagination.Collect(executionContext, collector.client.TargetPages(organization.ID, sourceTypes))
	if listError != nil {
		collector.recordOrganizationFailure(collection, organization.ID, listError)
		return
	}

	projectCount := 0
	for _, scannerTarget := range scannerTargets {
		record := collector.buildRecord(executionContext, scannerTarget)
		projectCount += len(record.Projects)
		collection.Targets = append(collection.Targets, record)
	}

	collector.logger.Info(organizationCollectedMessageConstant,
		zap.String(logFieldOrganizationConstant, organization.ID),
		zap.Int(logFieldTargetsConstant, len(scannerTargets)),
		zap.Int(logFieldProjectsConstant, projectCount),
	)
}

func (collector *Collector) buildRecord(executionContext context.Context, scannerTarget scanclient.Target) TargetRecord {
	record := TargetRecord{
		TargetID:    scannerTarget.ID,
		OrgID:       scannerTarget.OrgID,
		DisplayName: scannerTarget.DisplayName,
		SourceType:  scannerTarget.SourceType,
		RawURL:      scannerTarget.URL,
	}

	key, normalizeError := collector.normalizer.Normalize(scannerTarget.URL)
	if normalizeError != nil {
		var parseFailure repokey.ParseFailure
		if !errors.As(normalizeError, &parseFailure) {
			parseFailure = repokey.ParseFailure{Input: scannerTarget.URL, Reason: normalizeError.Error()}
		}
		record.ParseFailure = &parseFailure
		collector.logger.Debug(unmappableTargetMessageConstant,
			zap.String(logFieldTargetConstant, scannerTarget.ID),
			zap.String(logFieldURLConstant, scannerTarget.URL),
			zap.Error(normalizeError),
		)
	} else {
		record.Key = &key
	}

	projects, projectsError := collector.client.ListProjects(executionContext, scannerTarget.OrgID, scannerTarget.ID)
	if projectsError != nil {
		record.ProjectsError = projectsError
		collector.logger.Warn(projectsFailedMessageConstant,
			zap.String(logFieldOrganizationConstant, scannerTarget.OrgID),
			zap.String(logFieldTargetConstant, scannerTarget.ID),
			zap.Error(projectsError),
		)
		return record
	}
	record.Projects = projects
	return record
}

func (collector *Collector) recordOrganizationFailure(collection *Collection, organizationID string, failure error) {
	collection.OrganizationFailures = append(collection.OrganizationFailures, OrganizationFailure{OrgID: organizationID, Err: failure})
	collector.logger.Warn(organizationSkippedMessageConstant,
		zap.String(logFieldOrganizationConstant, organizationID),
		zap.Error(failure),
	)
}
