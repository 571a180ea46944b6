package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/scadrift/internal/catalog"
	"github.com/temirov/scadrift/internal/duplicates"
	"github.com/temirov/scadrift/internal/join"
	"github.com/temirov/scadrift/internal/report"
	"github.com/temirov/scadrift/internal/repokey"
	"github.com/temirov/scadrift/internal/targets"
	"github.com/temirov/scadrift/internal/utils"
	"github.com/temirov/scadrift/internal/validation"
)

const (
	defaultTextArtifactNameConstant       = "report.txt"
	defaultDuplicatesArtifactNameConstant = "duplicates.csv"
	defaultBundleArtifactBaseConstant     = "bundle."
	textContentTypeConstant               = "text/plain; charset=utf-8"
	csvContentTypeConstant                = "text/csv"
	reportFilePermissionsConstant         = 0o644
	catalogErrorTemplateConstant          = "build repository catalog: %w"
	collectionErrorTemplateConstant       = "collect scanner targets: %w"
	renderErrorTemplateConstant           = "render %s: %w"
	writeErrorTemplateConstant            = "write %s: %w"
	publishErrorTemplateConstant          = "publish report artifacts: %w"
	runStartedMessageConstant             = "Reconciliation started"
	joinCompletedMessageConstant          = "Join completed"
	validationCompletedMessageConstant    = "File validation completed"
	duplicatesCompletedMessageConstant    = "Duplicate resolution completed"
	reportWrittenMessageConstant          = "Report written"
	reportPublishedMessageConstant        = "Report artifacts published"
	logFieldRunIDConstant                 = "run_id"
	logFieldMatchedConstant               = "matched"
	logFieldScannerOnlyConstant           = "scanner_only"
	logFieldHostOnlyConstant              = "host_only"
	logFieldUnmappableConstant            = "unmappable"
	logFieldPresentConstant               = "present"
	logFieldMissingConstant               = "missing"
	logFieldErroredConstant               = "errored"
	logFieldGroupsConstant                = "groups"
	logFieldPathConstant                  = "path"
	logFieldKeysConstant                  = "keys"
)

// KeyNormalizer converts repository URLs into canonical keys for both sides of the join.
type KeyNormalizer interface {
	Normalize(rawURL string) (repokey.CanonicalKey, error)
}

// ArtifactPublisher uploads rendered artifacts under a run prefix.
type ArtifactPublisher interface {
	Publish(executionContext context.Context, runID string, artifacts []report.Artifact) ([]string, error)
}

// FileWriter persists a rendered artifact.
type FileWriter func(path string, content []byte) error

// Dependencies are the collaborators a Service runs against.
type Dependencies struct {
	RepositorySource  catalog.RepositoryPageSource
	ScannerClient     targets.ScannerClient
	RepositoryFiles   validation.RepositoryFiles
	RepositoryContent duplicates.RepositoryContent
	Normalizer        KeyNormalizer
	Publisher         ArtifactPublisher
	Clock             validation.Clock
	RunIdentifiers    func() string
	FileWriter        FileWriter
	ReportOutput      io.Writer
}

// RunRequest selects the scope and the outputs of one run.
type RunRequest struct {
	Scope             targets.ScopeSelection
	TextReportPath    string
	DuplicatesCSVPath string
	BundlePath        string
}

// Outcome is the result of a completed run.
type Outcome struct {
	Bundle       report.Bundle
	UploadedKeys []string
}

// Service executes the reconciliation pipeline. Each phase consumes the previous phase's result.
type Service struct {
	dependencies    Dependencies
	logger          *zap.Logger
	contextAccessor utils.CommandContextAccessor
}

// NewService constructs a Service, filling unset collaborators with process defaults.
func NewService(dependencies Dependencies, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dependencies.Clock == nil {
		dependencies.Clock = validation.SystemClock{}
	}
	if dependencies.RunIdentifiers == nil {
		dependencies.RunIdentifiers = uuid.NewString
	}
	if dependencies.FileWriter == nil {
		dependencies.FileWriter = writeReportFile
	}
	if dependencies.ReportOutput == nil {
		dependencies.ReportOutput = os.Stdout
	}
	return &Service{dependencies: dependencies, logger: logger, contextAccessor: utils.NewCommandContextAccessor()}
}

// Run builds the catalog, collects targets, joins, validates, resolves duplicates, and writes the report.
// Only catalog or scope listing failures abort; every narrower failure is recorded in the bundle.
func (service *Service) Run(executionContext context.Context, request RunRequest) (Outcome, error) {
	runID, hasRunID := service.contextAccessor.RunIdentifier(executionContext)
	if !hasRunID {
		runID = service.dependencies.RunIdentifiers()
	}
	logger := service.logger.With(zap.String(logFieldRunIDConstant, runID))
	logger.Info(runStartedMessageConstant)

	repositoryCatalog, catalogError := catalog.NewBuilder(service.dependencies.RepositorySource, service.dependencies.Normalizer, logger).Build(executionContext)
	if catalogError != nil {
		return Outcome{}, fmt.Errorf(catalogErrorTemplateConstant, catalogError)
	}

	collection, collectionError := targets.NewCollector(service.dependencies.ScannerClient, service.dependencies.Normalizer, logger).Collect(executionContext, request.Scope)
	if collectionError != nil {
		return Outcome{}, fmt.Errorf(collectionErrorTemplateConstant, collectionError)
	}

	joinResult := join.Join(repositoryCatalog, collection.Targets)
	logger.Info(joinCompletedMessageConstant,
		zap.Int(logFieldMatchedConstant, len(joinResult.Matched)),
		zap.Int(logFieldScannerOnlyConstant, len(joinResult.ScannerOnly)),
		zap.Int(logFieldHostOnlyConstant, len(joinResult.HostOnly)),
		zap.Int(logFieldUnmappableConstant, len(joinResult.Unmappable)),
	)

	validations := service.validate(executionContext, joinResult, logger)
	decisions := service.resolveDuplicates(executionContext, repositoryCatalog, collection, logger)

	bundle := report.Assemble(report.Input{
		RunID:       runID,
		GeneratedAt: service.dependencies.Clock.Now(),
		Catalog:     repositoryCatalog,
		Collection:  collection,
		Join:        joinResult,
		Validations: validations,
		Duplicates:  decisions,
	})

	artifacts, renderError := renderArtifacts(bundle, request)
	if renderError != nil {
		return Outcome{Bundle: bundle}, renderError
	}
	if writeError := service.writeArtifacts(artifacts, request, logger); writeError != nil {
		return Outcome{Bundle: bundle}, writeError
	}

	outcome := Outcome{Bundle: bundle}
	if service.dependencies.Publisher == nil {
		return outcome, nil
	}
	uploadedKeys, publishError := service.dependencies.Publisher.Publish(executionContext, runID, artifacts.list())
	outcome.UploadedKeys = uploadedKeys
	if publishError != nil {
		return outcome, fmt.Errorf(publishErrorTemplateConstant, publishError)
	}
	logger.Info(reportPublishedMessageConstant, zap.Strings(logFieldKeysConstant, uploadedKeys))
	return outcome, nil
}

func (service *Service) validate(executionContext context.Context, joinResult join.Result, logger *zap.Logger) []validation.Result {
	validator := validation.NewValidator(service.dependencies.RepositoryFiles, validation.NewManifestMatcher(), service.dependencies.Clock, logger)
	validations := make([]validation.Result, 0, len(joinResult.Matched))
	present, missing, errored := 0, 0, 0
	for _, matched := range joinResult.Matched {
		result := validator.Validate(executionContext, matched)
		resultPresent, resultMissing, resultErrored := result.Counts()
		present += resultPresent
		missing += resultMissing
		errored += resultErrored
		validations = append(validations, result)
	}
	logger.Info(validationCompletedMessageConstant,
		zap.Int(logFieldPresentConstant, present),
		zap.Int(logFieldMissingConstant, missing),
		zap.Int(logFieldErroredConstant, errored),
	)
	return validations
}

func (service *Service) resolveDuplicates(executionContext context.Context, repositoryCatalog *catalog.Catalog, collection targets.Collection, logger *zap.Logger) []duplicates.Decision {
	resolver := duplicates.NewResolver(service.dependencies.RepositoryContent, logger)
	var decisions []duplicates.Decision
	for _, targetRecord := range collection.Targets {
		var repository *catalog.RepositoryRecord
		if targetRecord.IsMappable() {
			if record, cataloged := repositoryCatalog.Lookup(*targetRecord.Key); cataloged {
				repository = &record
			}
		}
		decisions = append(decisions, resolver.Resolve(executionContext, targetRecord, repository)...)
	}
	logger.Info(duplicatesCompletedMessageConstant, zap.Int(logFieldGroupsConstant, len(decisions)))
	return decisions
}

type renderedArtifacts struct {
	text       report.Artifact
	duplicates report.Artifact
	bundle     report.Artifact
}

func (artifacts renderedArtifacts) list() []report.Artifact {
	return []report.Artifact{artifacts.text, artifacts.duplicates, artifacts.bundle}
}

func renderArtifacts(bundle report.Bundle, request RunRequest) (renderedArtifacts, error) {
	var textBuffer bytes.Buffer
	if renderError := report.RenderText(&textBuffer, bundle); renderError != nil {
		return renderedArtifacts{}, fmt.Errorf(renderErrorTemplateConstant, defaultTextArtifactNameConstant, renderError)
	}

	var csvBuffer bytes.Buffer
	if renderError := report.WriteDuplicatesCSV(&csvBuffer, bundle); renderError != nil {
		return renderedArtifacts{}, fmt.Errorf(renderErrorTemplateConstant, defaultDuplicatesArtifactNameConstant, renderError)
	}

	bundleFormat := report.FormatForPath(request.BundlePath)
	var bundleBuffer bytes.Buffer
	if renderError := report.EncodeBundle(&bundleBuffer, bundle, bundleFormat); renderError != nil {
		return renderedArtifacts{}, fmt.Errorf(renderErrorTemplateConstant, defaultBundleArtifactBaseConstant+string(bundleFormat), renderError)
	}

	return renderedArtifacts{
		text:       report.Artifact{Name: artifactName(request.TextReportPath, defaultTextArtifactNameConstant), Content: textBuffer.Bytes(), ContentType: textContentTypeConstant},
		duplicates: report.Artifact{Name: artifactName(request.DuplicatesCSVPath, defaultDuplicatesArtifactNameConstant), Content: csvBuffer.Bytes(), ContentType: csvContentTypeConstant},
		bundle:     report.Artifact{Name: artifactName(request.BundlePath, defaultBundleArtifactBaseConstant+string(bundleFormat)), Content: bundleBuffer.Bytes(), ContentType: bundleFormat.ContentType()},
	}, nil
}

// writeArtifacts sends the text report to ReportOutput unless a path is set; CSV and bundle are written only when requested.
func (service *Service) writeArtifacts(artifacts renderedArtifacts, request RunRequest, logger *zap.Logger) error {
	if len(request.TextReportPath) == 0 {
		if _, writeError := service.dependencies.ReportOutput.Write(artifacts.text.Content); writeError != nil {
			return fmt.Errorf(writeErrorTemplateConstant, defaultTextArtifactNameConstant, writeError)
		}
	}

	outputs := []struct {
		path     string
		artifact report.Artifact
	}{
		{path: request.TextReportPath, artifact: artifacts.text},
		{path: request.DuplicatesCSVPath, artifact: artifacts.duplicates},
		{path: request.BundlePath, artifact: artifacts.bundle},
	}
	for _, output := range outputs {
		if len(output.path) == 0 {
			continue
		}
		if writeError := service.dependencies.FileWriter(output.path, output.artifact.Content); writeError != nil {
			return fmt.Errorf(writeErrorTemplateConstant, output.path, writeError)
		}
		logger.Info(reportWrittenMessageConstant, zap.String(logFieldPathConstant, output.path))
	}
	return nil
}

func artifactName(outputPath string, fallback string) string {
	if len(outputPath) == 0 {
		return fallback
	}
	return filepath.Base(outputPath)
}

func writeReportFile(path string, content []byte) error {
	if directory := filepath.Dir(path); len(directory) > 0 && directory != "." {
		if mkdirError := os.MkdirAll(directory, 0o755); mkdirError != nil {
			return mkdirError
		}
	}
	return os.WriteFile(path, content, reportFilePermissionsConstant)
}
