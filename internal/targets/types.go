package targets

import (
	"errors"
	"strings"

	"github.com/temirov/scadrift/internal/repokey"
	"github.com/temirov/scadrift/internal/scanclient"
)

const (
	conflictingScopeMessageConstant = "organization ids and group id are mutually exclusive"
)

// ErrConflictingScope reports a selection naming both organizations and a group.
var ErrConflictingScope = errors.New(conflictingScopeMessageConstant)

// DefaultSourceTypes are the integration kinds whose targets are collected.
var DefaultSourceTypes = []string{"gitlab", "cli"}

// ScopeSelection names the organizations to collect from. With neither field set every accessible organization is used.
type ScopeSelection struct {
	OrganizationIDs            []string
	GroupID                    string
	SkipOrganizationValidation bool
	SourceTypes                []string
}

// Validate rejects selections that name both organizations and a group.
func (selection ScopeSelection) Validate() error {
	if len(selection.normalizedOrganizationIDs()) > 0 && len(strings.TrimSpace(selection.GroupID)) > 0 {
		return ErrConflictingScope
	}
	return nil
}

func (selection ScopeSelection) normalizedOrganizationIDs() []string {
	seen := make(map[string]struct{}, len(selection.OrganizationIDs))
	organizationIDs := make([]string, 0, len(selection.OrganizationIDs))
	for _, organizationID := range selection.OrganizationIDs {
		trimmedID := strings.TrimSpace(organizationID)
		if len(trimmedID) == 0 {
			continue
		}
		if _, duplicate := seen[trimmedID]; duplicate {
			continue
		}
		seen[trimmedID] = struct{}{}
		organizationIDs = append(organizationIDs, trimmedID)
	}
	return organizationIDs
}

func (selection ScopeSelection) sourceTypes() []string {
	if len(selection.SourceTypes) == 0 {
		return DefaultSourceTypes
	}
	return selection.SourceTypes
}

// TargetRecord is one collected target. Key is nil when the target URL could not be keyed.
type TargetRecord struct {
	TargetID      string
	OrgID         string
	DisplayName   string
	SourceType    string
	RawURL        string
	Key           *repokey.CanonicalKey
	ParseFailure  *repokey.ParseFailure
	Projects      []scanclient.Project
	ProjectsError error
}

// IsMappable reports whether the target carries a canonical key.
func (record TargetRecord) IsMappable() bool {
	return record.Key != nil
}

// OrganizationFailure records an organization skipped because it could not be read.
type OrganizationFailure struct {
	OrgID string
	Err   error
}

// Collection is the output of one collection pass.
type Collection struct {
	Organizations        []scanclient.Organization
	Targets              []TargetRecord
	OrganizationFailures []OrganizationFailure
}

// Organization returns the organization with orgID, falling back to a record carrying only the id.
func (collection Collection) Organization(orgID string) scanclient.Organization {
	for _, organization := range collection.Organizations {
		if organization.ID == orgID {
			return organization
		}
	}
	return scanclient.Organization{ID: orgID}
}
