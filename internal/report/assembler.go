package report

import (
	"fmt"
	"time"

	"github.com/temirov/scadrift/internal/apiclient"
	"github.com/temirov/scadrift/internal/catalog"
	"github.com/temirov/scadrift/internal/duplicates"
	"github.com/temirov/scadrift/internal/join"
	"github.com/temirov/scadrift/internal/repokey"
	"github.com/temirov/scadrift/internal/scanclient"
	"github.com/temirov/scadrift/internal/targets"
	"github.com/temirov/scadrift/internal/validation"
)

const (
	unparseableRepositoryTemplateConstant  = "repository url could not be keyed: %s"
	duplicateRepositoryKeyTemplateConstant = "repository key %s already claimed by %s; entry ignored"
	manifestErrorTemplateConstant          = "%s: %v"
)

// Input carries the immutable outputs of every reconciliation phase.
type Input struct {
	RunID       string
	GeneratedAt time.Time
	Catalog     *catalog.Catalog
	Collection  targets.Collection
	Join        join.Result
	Validations []validation.Result
	Duplicates  []duplicates.Decision
}

// Assemble builds the Bundle. Ordering follows the order of the phase outputs.
func Assemble(input Input) Bundle {
	assembler := bundleAssembler{collection: input.Collection}
	bundle := Bundle{RunID: input.RunID, GeneratedAt: input.GeneratedAt}

	for _, failure := range input.Collection.OrganizationFailures {
		bundle.Errors = append(bundle.Errors, newErrorEntry(ErrorScopeOrganization, failure.OrgID, failure.Err))
	}
	if input.Catalog != nil {
		for _, unparseable := range input.Catalog.Unparseable() {
			bundle.Errors = append(bundle.Errors, ErrorEntry{
				Scope:   ErrorScopeRepository,
				Subject: unparseable.Repository.PathWithNamespace,
				Message: fmt.Sprintf(unparseableRepositoryTemplateConstant, unparseable.Failure.Reason),
			})
		}
		for _, note := range input.Catalog.DuplicateKeys() {
			bundle.Errors = append(bundle.Errors, ErrorEntry{
				Scope:   ErrorScopeRepository,
				Subject: note.Discarded.PathWithNamespace,
				Message: fmt.Sprintf(duplicateRepositoryKeyTemplateConstant, note.Key.String(), note.Kept.PathWithNamespace),
			})
		}
	}
	for _, targetRecord := range input.Collection.Targets {
		if targetRecord.ProjectsError != nil {
			bundle.Errors = append(bundle.Errors, newErrorEntry(ErrorScopeTarget, targetRecord.TargetID, targetRecord.ProjectsError))
		}
	}

	for _, scannerOnly := range input.Join.ScannerOnly {
		bundle.ScannerOnly = append(bundle.ScannerOnly, assembler.targetEntry(scannerOnly.Target))
	}
	for _, hostOnly := range input.Join.HostOnly {
		bundle.HostOnly = append(bundle.HostOnly, repositoryEntry(hostOnly.Repository))
	}
	for _, unmappable := range input.Join.Unmappable {
		bundle.Unmappable = append(bundle.Unmappable, assembler.targetEntry(unmappable))
	}

	matchedIndex := make(map[repokey.CanonicalKey]int)
	for _, group := range input.Join.MatchedByRepository() {
		repository := MatchedRepository{Repository: repositoryEntry(group[0].Repository)}
		for _, matched := range group {
			repository.Targets = append(repository.Targets, assembler.targetEntry(matched.Target))
		}
		matchedIndex[group[0].Repository.Key] = len(bundle.Matched)
		bundle.Matched = append(bundle.Matched, repository)
	}

	for _, validationResult := range input.Validations {
		index, exists := matchedIndex[validationResult.Match.Repository.Key]
		if !exists {
			index = len(bundle.Matched)
			matchedIndex[validationResult.Match.Repository.Key] = index
			bundle.Matched = append(bundle.Matched, MatchedRepository{Repository: repositoryEntry(validationResult.Match.Repository)})
		}
		bundle.Errors = assembler.applyValidation(&bundle.Matched[index], validationResult, bundle.Errors)
		for _, entry := range validationResult.Entries {
			bundle.Validations = append(bundle.Validations, assembler.fileRecord(validationResult.Match, entry))
		}
	}

	for _, decision := range input.Duplicates {
		record := assembler.duplicateRecord(decision)
		bundle.Duplicates = append(bundle.Duplicates, record)
		if decision.ArtifactCheck == nil {
			continue
		}
		if decision.ArtifactCheck.Err != nil {
			bundle.Errors = append(bundle.Errors, newErrorEntry(ErrorScopeTree, decision.TargetID, decision.ArtifactCheck.Err))
		}
		for manifestIndex, candidate := range decision.ArtifactCheck.Candidates {
			if candidate.Err != nil {
				entry := newErrorEntry(ErrorScopeManifest, candidate.Path, candidate.Err)
				entry.Message = record.Artifact.Manifests[manifestIndex].Error
				bundle.Errors = append(bundle.Errors, entry)
			}
		}
	}

	bundle.Summary = summarize(bundle, input.Join)
	return bundle
}

func newErrorEntry(scope ErrorScope, subject string, err error) ErrorEntry {
	entry := ErrorEntry{Scope: scope, Kind: classifyError(err), Subject: subject}
	if err != nil {
		entry.Message = err.Error()
	}
	return entry
}

// classifyError maps apiclient failures onto an ErrorKind.
func classifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindUnexpected
	case apiclient.IsAccessDenied(err):
		return ErrorKindAccessDenied
	case apiclient.IsTransient(err):
		return ErrorKindTransient
	default:
		return ErrorKindUnexpected
	}
}

func summarize(bundle Bundle, joinResult join.Result) Summary {
	summary := Summary{
		MatchedRepositories: len(bundle.Matched),
		MatchedPairs:        len(joinResult.Matched),
		ScannerOnly:         len(bundle.ScannerOnly),
		HostOnly:            len(bundle.HostOnly),
		Unmappable:          len(bundle.Unmappable),
		DuplicateGroups:     len(bundle.Duplicates),
		Errors:              len(bundle.Errors),
	}
	for _, repository := range bundle.Matched {
		summary.TrackedPresent += len(repository.Tracked)
		summary.TrackedMissing += len(repository.Stale)
		summary.TrackedUnverified += len(repository.Unverified)
		summary.UntrackedSupported += len(repository.UntrackedSupported)
	}
	for _, duplicate := range bundle.Duplicates {
		summary.ProjectsToRemove += len(duplicate.Remove)
	}
	return summary
}

type bundleAssembler struct {
	collection targets.Collection
}

func (assembler bundleAssembler) organization(orgID string) scanclient.Organization {
	return assembler.collection.Organization(orgID)
}

func (assembler bundleAssembler) targetEntry(targetRecord targets.TargetRecord) TargetEntry {
	entry := TargetEntry{
		TargetID:     targetRecord.TargetID,
		OrgID:        targetRecord.OrgID,
		OrgName:      assembler.organization(targetRecord.OrgID).Name,
		DisplayName:  targetRecord.DisplayName,
		SourceType:   targetRecord.SourceType,
		URL:          targetRecord.RawURL,
		ProjectCount: len(targetRecord.Projects),
	}
	if targetRecord.Key != nil {
		entry.RepositoryKey = targetRecord.Key.String()
	}
	if targetRecord.ParseFailure != nil {
		entry.ParseFailure = targetRecord.ParseFailure.Reason
	}
	if targetRecord.ProjectsError != nil {
		entry.ProjectsError = targetRecord.ProjectsError.Error()
	}
	return entry
}

func (assembler bundleAssembler) applyValidation(repository *MatchedRepository, validationResult validation.Result, errorEntries []ErrorEntry) []ErrorEntry {
	for _, entry := range validationResult.Entries {
		record := assembler.fileRecord(validationResult.Match, entry)
		switch entry.Status {
		case validation.StatusPresent:
			repository.Tracked = append(repository.Tracked, record)
		case validation.StatusMissing:
			repository.Stale = append(repository.Stale, record)
		default:
			repository.Unverified = append(repository.Unverified, record)
			errorEntries = append(errorEntries, newErrorEntry(ErrorScopeFile, repository.Repository.Key+":"+record.FilePath, entry.Err))
		}
	}

	if validationResult.TreeError != nil {
		repository.TreeError = validationResult.TreeError.Error()
		return append(errorEntries, newErrorEntry(ErrorScopeTree, repository.Repository.Key, validationResult.TreeError))
	}

	if len(validationResult.SupportedFiles) > repository.SupportedFiles {
		repository.SupportedFiles = len(validationResult.SupportedFiles)
	}
	repository.UntrackedSupported = mergeUntracked(repository.UntrackedSupported, validationResult, repository)
	return errorEntries
}

// mergeUntracked keeps only paths no target of the repository tracks.
func mergeUntracked(existing []string, validationResult validation.Result, repository *MatchedRepository) []string {
	tracked := make(map[string]struct{})
	for _, records := range [][]FileRecord{repository.Tracked, repository.Stale, repository.Unverified} {
		for _, record := range records {
			tracked[record.FilePath] = struct{}{}
		}
	}
	seen := make(map[string]struct{})
	var merged []string
	for _, candidates := range [][]string{existing, validationResult.SupportedUntracked} {
		for _, candidate := range candidates {
			if _, isTracked := tracked[candidate]; isTracked {
				continue
			}
			if _, duplicate := seen[candidate]; duplicate {
				continue
			}
			seen[candidate] = struct{}{}
			merged = append(merged, candidate)
		}
	}
	return merged
}

func (assembler bundleAssembler) fileRecord(matched join.Matched, entry validation.Entry) FileRecord {
	organization := assembler.organization(entry.Project.OrgID)
	if len(entry.Project.OrgID) == 0 {
		organization = assembler.organization(matched.Target.OrgID)
	}
	record := FileRecord{
		RepositoryKey: matched.Repository.Key.String(),
		TargetID:      matched.Target.TargetID,
		OrgID:         organization.ID,
		OrgName:       organization.Name,
		ProjectID:     entry.Project.ID,
		ProjectName:   entry.Project.Name,
		ProjectURL:    organization.ProjectURL(entry.Project.ID),
		Root:          entry.Project.Root,
		FilePath:      entry.FullPath,
		Exists:        entry.Exists,
		Status:        string(entry.Status),
		CheckedAt:     entry.CheckedAt,
	}
	if entry.Err != nil {
		record.Error = entry.Err.Error()
	}
	return record
}

func (assembler bundleAssembler) projectReference(orgID string, project scanclient.Project) ProjectReference {
	if len(project.OrgID) > 0 {
		orgID = project.OrgID
	}
	return ProjectReference{
		ID:      project.ID,
		Name:    project.Name,
		Type:    project.Type,
		Created: project.Created,
		URL:     assembler.organization(orgID).ProjectURL(project.ID),
	}
}

func (assembler bundleAssembler) duplicateRecord(decision duplicates.Decision) DuplicateRecord {
	record := DuplicateRecord{
		OrgID:            decision.OrgID,
		OrgName:          assembler.organization(decision.OrgID).Name,
		TargetID:         decision.TargetID,
		TargetName:       decision.TargetName,
		UniqueIdentifier: decision.UniqueIdentifier,
		Keep:             assembler.projectReference(decision.OrgID, decision.Keep),
		Reason:           decision.Reason,
	}
	for _, removed := range decision.Remove {
		record.Remove = append(record.Remove, assembler.projectReference(decision.OrgID, removed))
	}
	if decision.ArtifactCheck != nil {
		record.Artifact = artifactRecord(*decision.ArtifactCheck)
	}
	return record
}

func artifactRecord(check duplicates.ArtifactCheck) *ArtifactRecord {
	record := &ArtifactRecord{
		Expected:   check.ExpectedArtifactID,
		SearchRoot: check.SearchRoot,
		Status:     string(check.Status),
	}
	if check.Err != nil {
		record.Error = check.Err.Error()
	}
	for _, candidate := range check.Candidates {
		manifest := ManifestRecord{
			Path:       candidate.Path,
			GroupID:    candidate.DeclaredGroupID,
			ArtifactID: candidate.DeclaredArtifactID,
			Status:     string(candidate.Status),
		}
		if candidate.Err != nil {
			manifest.Error = fmt.Sprintf(manifestErrorTemplateConstant, candidate.Path, candidate.Err)
		}
		record.Manifests = append(record.Manifests, manifest)
	}
	return record
}

func repositoryEntry(record catalog.RepositoryRecord) RepositoryEntry {
	return RepositoryEntry{
		Key:           record.Key.String(),
		Path:          record.Key.FullPath(),
		WebURL:        record.WebURL,
		DefaultBranch: record.DefaultBranch,
	}
}
