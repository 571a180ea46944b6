package validation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/scadrift/internal/join"
	"github.com/temirov/scadrift/internal/scanclient"
)

const (
	validationDoneMessageConstant     = "Repository validated"
	fileCheckFailedMessageConstant    = "Tracked file could not be checked"
	treeFailedMessageConstant         = "Repository tree could not be listed"
	projectWithoutFileMessageConstant = "Scanner project tracks no file path"
	logFieldRepositoryConstant        = "repository"
	logFieldTargetConstant            = "target"
	logFieldProjectConstant           = "project"
	logFieldPathConstant              = "path"
	logFieldPresentConstant           = "present"
	logFieldMissingConstant           = "missing"
	logFieldErroredConstant           = "errored"
	logFieldUntrackedConstant         = "untracked_supported"
	statusPresentValueConstant        = "present"
	statusMissingValueConstant        = "missing"
	statusErrorValueConstant          = "error"
)

// Status is the outcome of one existence check.
type Status string

// Existence check outcomes.
const (
	StatusPresent Status = Status(statusPresentValueConstant)
	StatusMissing Status = Status(statusMissingValueConstant)
	StatusError   Status = Status(statusErrorValueConstant)
)

// Clock abstracts time-dependent functionality for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the standard library.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// RepositoryFiles is the repository-host capability the validator consumes.
type RepositoryFiles interface {
	FileExists(executionContext context.Context, projectID int64, ref string, filePath string) (bool, error)
	ListTree(executionContext context.Context, projectID int64, ref string) ([]string, error)
}

// Entry is the existence check of one tracked file.
type Entry struct {
	Project   scanclient.Project
	FullPath  string
	Exists    bool
	Status    Status
	Err       error
	CheckedAt time.Time
}

// Result is the validation of one matched repository and target pair.
type Result struct {
	Match              join.Matched
	Entries            []Entry
	SupportedFiles     []string
	SupportedUntracked []string
	TreeError          error
}

// Counts returns how many entries ended in each status.
func (result Result) Counts() (present int, missing int, errored int) {
	for _, entry := range result.Entries {
		switch entry.Status {
		case StatusPresent:
			present++
		case StatusMissing:
			missing++
		default:
			errored++
		}
	}
	return present, missing, errored
}

// Validator checks tracked files of matched pairs against the host.
type Validator struct {
	files   RepositoryFiles
	matcher *ManifestMatcher
	clock   Clock
	logger  *zap.Logger
}

// NewValidator constructs a Validator. A nil matcher uses the supported manifest set, a nil clock the system clock.
func NewValidator(files RepositoryFiles, matcher *ManifestMatcher, clock Clock, logger *zap.Logger) *Validator {
	if matcher == nil {
		matcher = NewManifestMatcher()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{files: files, matcher: matcher, clock: clock, logger: logger}
}

// Validate checks every tracked file of the target at the repository default branch, then lists the
// repository tree to find supported manifests the target does not track.
func (validator *Validator) Validate(executionContext context.Context, matched join.Matched) Result {
	repositoryID := matched.Repository.Metadata.ID
	ref := matched.Repository.DefaultBranch
	result := Result{Match: matched}

	trackedPaths := make(map[string]struct{})
	for _, project := range matched.Target.Projects {
		trackedFiles := project.TrackedFiles()
		if len(trackedFiles) == 0 {
			validator.logger.Debug(projectWithoutFileMessageConstant,
				zap.String(logFieldTargetConstant, matched.Target.TargetID),
				zap.String(logFieldProjectConstant, project.ID),
			)
			continue
		}
		for _, trackedFile := range trackedFiles {
			fullPath := FullPath(project.Root, trackedFile)
			if len(fullPath) == 0 {
				continue
			}
			trackedPaths[fullPath] = struct{}{}
			result.Entries = append(result.Entries, validator.checkFile(executionContext, repositoryID, ref, project, fullPath))
		}
	}

	treePaths, treeError := validator.files.ListTree(executionContext, repositoryID, ref)
	if treeError != nil {
		result.TreeError = treeError
		validator.logger.Warn(treeFailedMessageConstant,
			zap.String(logFieldRepositoryConstant, matched.Repository.Key.String()),
			zap.Error(treeError),
		)
	} else {
		for _, treePath := range treePaths {
			if !validator.matcher.IsSupported(treePath) {
				continue
			}
			result.SupportedFiles = append(result.SupportedFiles, treePath)
			if _, tracked := trackedPaths[treePath]; !tracked {
				result.SupportedUntracked = append(result.SupportedUntracked, treePath)
			}
		}
	}

	present, missing, errored := result.Counts()
	validator.logger.Info(validationDoneMessageConstant,
		zap.String(logFieldRepositoryConstant, matched.Repository.Key.String()),
		zap.String(logFieldTargetConstant, matched.Target.TargetID),
		zap.Int(logFieldPresentConstant, present),
		zap.Int(logFieldMissingConstant, missing),
		zap.Int(logFieldErroredConstant, errored),
		zap.Int(logFieldUntrackedConstant, len(result.SupportedUntracked)),
	)
	return result
}

func (validator *Validator) checkFile(executionContext context.Context, repositoryID int64, ref string, project scanclient.Project, fullPath string) Entry {
	entry := Entry{Project: project, FullPath: fullPath}
	exists, existsError := validator.files.FileExists(executionContext, repositoryID, ref, fullPath)
	entry.CheckedAt = validator.clock.Now()
	switch {
	case existsError != nil:
		entry.Status = StatusError
		entry.Err = existsError
		validator.logger.Warn(fileCheckFailedMessageConstant,
			zap.String(logFieldProjectConstant, project.ID),
			zap.String(logFieldPathConstant, fullPath),
			zap.Error(existsError),
		)
	case exists:
		entry.Exists = true
		entry.Status = StatusPresent
	default:
		entry.Status = StatusMissing
	}
	return entry
}
