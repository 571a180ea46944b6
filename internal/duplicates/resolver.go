package duplicates

import (
	"context"

	"go.uber.org/zap"

	"github.com/temirov/scadrift/internal/catalog"
	"github.com/temirov/scadrift/internal/scanclient"
	"github.com/temirov/scadrift/internal/targets"
)

const (
	// ReasonStaleDuplicate marks a project superseded by a newer record of the same identifier.
	ReasonStaleDuplicate = "stale duplicate"

	duplicateGroupMessageConstant = "Duplicate projects detected"
	artifactCheckMessageConstant  = "Maven artifact identity checked"
	logFieldTargetConstant        = "target"
	logFieldIdentifierConstant    = "unique_identifier"
	logFieldKeptConstant          = "kept"
	logFieldRemovedConstant       = "removed"
	logFieldExpectedConstant      = "expected"
	logFieldStatusConstant        = "status"
	logFieldManifestsConstant     = "manifests"
)

// RepositoryContent is the repository-host capability the artifact check consumes.
type RepositoryContent interface {
	ListTree(executionContext context.Context, projectID int64, ref string) ([]string, error)
	GetFileContent(executionContext context.Context, projectID int64, ref string, filePath string) ([]byte, error)
}

// Decision resolves one duplicate group.
type Decision struct {
	TargetID         string
	OrgID            string
	TargetName       string
	UniqueIdentifier string
	Group            []scanclient.Project
	Keep             scanclient.Project
	Remove           []scanclient.Project
	Reason           string
	ArtifactCheck    *ArtifactCheck
}

// Resolver decides which project of each duplicate group survives.
type Resolver struct {
	content RepositoryContent
	logger  *zap.Logger
}

// NewResolver constructs a Resolver. A nil content source disables the Maven artifact check.
func NewResolver(content RepositoryContent, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{content: content, logger: logger}
}

// Resolve returns one decision per group of two or more projects under the target. The repository is
// nil for targets absent from the host catalog, which skips the artifact check.
func (resolver *Resolver) Resolve(executionContext context.Context, target targets.TargetRecord, repository *catalog.RepositoryRecord) []Decision {
	var decisions []Decision
	for _, group := range GroupProjects(target.Projects) {
		if len(group.Projects) < 2 {
			continue
		}

		ordered := newestFirst(group.Projects)
		decision := Decision{
			TargetID:         target.TargetID,
			OrgID:            target.OrgID,
			TargetName:       target.DisplayName,
			UniqueIdentifier: group.UniqueIdentifier,
			Group:            group.Projects,
			Keep:             ordered[0],
			Remove:           ordered[1:],
			Reason:           ReasonStaleDuplicate,
		}
		if repository != nil && resolver.content != nil && IsMavenProject(decision.Keep.Type) {
			artifactCheck := resolver.checkArtifact(executionContext, *repository, decision.Keep, group.UniqueIdentifier)
			decision.ArtifactCheck = &artifactCheck
		}

		resolver.logger.Info(duplicateGroupMessageConstant,
			zap.String(logFieldTargetConstant, target.TargetID),
			zap.String(logFieldIdentifierConstant, group.UniqueIdentifier),
			zap.String(logFieldKeptConstant, decision.Keep.ID),
			zap.Int(logFieldRemovedConstant, len(decision.Remove)),
		)
		decisions = append(decisions, decision)
	}
	return decisions
}

func (resolver *Resolver) checkArtifact(executionContext context.Context, repository catalog.RepositoryRecord, project scanclient.Project, uniqueIdentifier string) ArtifactCheck {
	check := ArtifactCheck{
		ExpectedArtifactID: ExpectedArtifactID(uniqueIdentifier),
		SearchRoot:         manifestSearchRoot(project.Root, project.TargetFile),
	}
	repositoryID := repository.Metadata.ID
	ref := repository.DefaultBranch

	treePaths, treeError := resolver.content.ListTree(executionContext, repositoryID, ref)
	if treeError != nil {
		check.Status = ArtifactStatusError
		check.Err = treeError
		return check
	}

	anyMatch := false
	anyParsed := false
	for _, manifestPath := range manifestsUnder(treePaths, check.SearchRoot) {
		candidate := ManifestCandidate{Path: manifestPath}
		content, contentError := resolver.content.GetFileContent(executionContext, repositoryID, ref, manifestPath)
		if contentError != nil {
			candidate.Status = ArtifactStatusError
			candidate.Err = contentError
			check.Candidates = append(check.Candidates, candidate)
			continue
		}
		groupID, artifactID, parseError := ParseDeclaredIdentity(content)
		if parseError != nil {
			candidate.Status = ArtifactStatusError
			candidate.Err = parseError
			check.Candidates = append(check.Candidates, candidate)
			continue
		}
		anyParsed = true
		candidate.DeclaredGroupID = groupID
		candidate.DeclaredArtifactID = artifactID
		switch {
		case len(check.ExpectedArtifactID) == 0:
			candidate.Status = ArtifactStatusUnknown
		case artifactID == check.ExpectedArtifactID:
			candidate.Status = ArtifactStatusMatch
			anyMatch = true
		default:
			candidate.Status = ArtifactStatusMismatch
		}
		check.Candidates = append(check.Candidates, candidate)
	}

	switch {
	case len(check.Candidates) == 0:
		check.Status = ArtifactStatusNotFound
	case anyMatch:
		check.Status = ArtifactStatusMatch
	case !anyParsed:
		check.Status = ArtifactStatusError
	case len(check.ExpectedArtifactID) == 0:
		check.Status = ArtifactStatusUnknown
	default:
		check.Status = ArtifactStatusMismatch
	}

	resolver.logger.Debug(artifactCheckMessageConstant,
		zap.String(logFieldExpectedConstant, check.ExpectedArtifactID),
		zap.String(logFieldStatusConstant, string(check.Status)),
		zap.Int(logFieldManifestsConstant, len(check.Candidates)),
	)
	return check
}
