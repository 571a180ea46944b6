package reconcile

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/temirov/scadrift/internal/apiclient"
	"github.com/temirov/scadrift/internal/credentials"
	"github.com/temirov/scadrift/internal/hostclient"
	"github.com/temirov/scadrift/internal/report"
	"github.com/temirov/scadrift/internal/repokey"
	"github.com/temirov/scadrift/internal/scanclient"
)

const (
	fieldEnvironmentFileConstant     = "env_file"
	fieldHostTokenConstant           = "host.token_source"
	fieldScannerRegionConstant       = "scanner.region"
	fieldScannerBaseURLConstant      = "scanner.base_url"
	fieldUploadEndpointConstant      = "report.upload.endpoint"
	fieldUploadAccessKeyConstant     = "report.upload.access_key_source"
	fieldUploadSecretKeyConstant     = "report.upload.secret_key_source"
	credentialMissingMessageConstant = "no credential found"
	hostTokenAbsentMessageConstant   = "No repository-host token found; continuing unauthenticated"
	serviceConfiguredMessageConstant = "Reconciliation configured"
	logFieldScannerBaseURLConstant   = "scanner_base_url"
	logFieldHostURLConstant          = "host_url"
	logFieldUploadConstant           = "upload"
)

// ServiceRunner executes one reconciliation run.
type ServiceRunner interface {
	Run(executionContext context.Context, request RunRequest) (Outcome, error)
}

// ServiceFactory builds a ServiceRunner from resolved options.
type ServiceFactory interface {
	Create(executionContext context.Context, options Options, logger *zap.Logger) (ServiceRunner, error)
}

// DefaultServiceFactory connects the real scanning-service and repository-host clients.
type DefaultServiceFactory struct {
	EnvironmentLookup credentials.EnvironmentLookup
	FileReader        credentials.FileReader
	HTTPClient        *http.Client
	ReportOutput      io.Writer
}

// Create validates options, resolves credentials, and wires the clients. Every failure is a
// ConfigurationError and no network call has been made when it is returned.
func (factory DefaultServiceFactory) Create(executionContext context.Context, options Options, logger *zap.Logger) (ServiceRunner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validationError := options.Validate(); validationError != nil {
		return nil, validationError
	}

	environmentLookup := factory.EnvironmentLookup
	if environmentLookup == nil {
		fileLookup, lookupError := credentials.NewEnvironmentLookup(options.EnvironmentFile)
		if lookupError != nil {
			return nil, ConfigurationError{Field: fieldEnvironmentFileConstant, Message: lookupError.Error()}
		}
		environmentLookup = fileLookup
	}
	tokenResolver := credentials.NewResolver(environmentLookup, factory.FileReader)

	scannerToken, scannerTokenFound, scannerTokenError := tokenResolver.Resolve(executionContext, options.ScannerTokenSource, credentials.ScannerTokenPreference)
	if scannerTokenError != nil {
		return nil, ConfigurationError{Field: fieldScannerTokenConstant, Message: scannerTokenError.Error()}
	}
	if !scannerTokenFound {
		return nil, ConfigurationError{Field: fieldScannerTokenConstant, Message: scannerTokenMissingMessageConstant}
	}
	hostToken, hostTokenFound, hostTokenError := tokenResolver.Resolve(executionContext, options.HostTokenSource, credentials.HostTokenPreference)
	if hostTokenError != nil {
		return nil, ConfigurationError{Field: fieldHostTokenConstant, Message: hostTokenError.Error()}
	}
	if !hostTokenFound {
		logger.Warn(hostTokenAbsentMessageConstant)
	}

	scannerBaseURL, regionError := scanclient.ResolveBaseURL(options.ScannerRegion, options.ScannerBaseURL)
	if regionError != nil {
		return nil, ConfigurationError{Field: fieldScannerRegionConstant, Message: regionError.Error()}
	}
	scannerAPI, scannerAPIError := apiclient.NewClient(apiclient.Options{
		BaseURL:              scannerBaseURL,
		Headers:              map[string]string{scanclient.TokenHeaderName: scanclient.TokenHeaderValue(scannerToken)},
		Timeout:              options.Timeout,
		RetryAttempts:        options.RetryAttempts,
		RetryInitialInterval: options.RetryInitialInterval,
		HTTPClient:           factory.HTTPClient,
		Logger:               logger,
	})
	if scannerAPIError != nil {
		return nil, ConfigurationError{Field: fieldScannerBaseURLConstant, Message: scannerAPIError.Error()}
	}

	hostHeaders := map[string]string{}
	if hostTokenFound {
		hostHeaders[hostclient.TokenHeaderName] = hostToken
	}
	hostAPI, hostAPIError := apiclient.NewClient(apiclient.Options{
		BaseURL:              options.HostURL + hostclient.APIPathSuffix,
		Headers:              hostHeaders,
		Timeout:              options.Timeout,
		RetryAttempts:        options.RetryAttempts,
		RetryInitialInterval: options.RetryInitialInterval,
		InsecureSkipVerify:   options.InsecureSkipVerify,
		HTTPClient:           factory.HTTPClient,
		Logger:               logger,
	})
	if hostAPIError != nil {
		return nil, ConfigurationError{Field: fieldHostURLConstant, Message: hostAPIError.Error()}
	}

	hostClient := hostclient.NewGitLabClient(hostAPI)
	treeLister, treeCacheError := hostclient.NewCachingTreeLister(hostClient, hostclient.DefaultTreeCacheSize)
	if treeCacheError != nil {
		return nil, treeCacheError
	}
	repositoryFiles := hostRepositoryFiles{client: hostClient, trees: treeLister}

	hostName, hostNameError := options.HostName()
	if hostNameError != nil {
		return nil, hostNameError
	}
	var normalizerOptions []repokey.NormalizerOption
	if options.CaseInsensitivePaths {
		normalizerOptions = append(normalizerOptions, repokey.WithCaseInsensitiveHosts(hostName))
	}

	dependencies := Dependencies{
		RepositorySource:  hostClient,
		ScannerClient:     scanclient.NewSnykClient(scannerAPI, options.ScannerAPIVersion),
		RepositoryFiles:   repositoryFiles,
		RepositoryContent: repositoryFiles,
		Normalizer:        repokey.NewNormalizer([]string{hostName}, normalizerOptions...),
		ReportOutput:      factory.ReportOutput,
	}

	if options.UploadEnabled() {
		publisher, publisherError := factory.createPublisher(executionContext, tokenResolver, options.Upload, logger)
		if publisherError != nil {
			return nil, publisherError
		}
		dependencies.Publisher = publisher
	}

	logger.Info(serviceConfiguredMessageConstant,
		zap.String(logFieldScannerBaseURLConstant, scannerBaseURL),
		zap.String(logFieldHostURLConstant, options.HostURL),
		zap.Bool(logFieldUploadConstant, dependencies.Publisher != nil),
	)
	return NewService(dependencies, logger), nil
}

func (factory DefaultServiceFactory) createPublisher(executionContext context.Context, tokenResolver *credentials.Resolver, upload UploadConfiguration, logger *zap.Logger) (*report.Publisher, error) {
	accessKey, accessKeyError := resolveRequiredCredential(executionContext, tokenResolver, upload.AccessKeySource, fieldUploadAccessKeyConstant)
	if accessKeyError != nil {
		return nil, accessKeyError
	}
	secretKey, secretKeyError := resolveRequiredCredential(executionContext, tokenResolver, upload.SecretKeySource, fieldUploadSecretKeyConstant)
	if secretKeyError != nil {
		return nil, secretKeyError
	}
	publisher, publisherError := report.NewS3Publisher(report.UploadConfiguration{
		Endpoint:  upload.Endpoint,
		Bucket:    upload.Bucket,
		Region:    upload.Region,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    upload.UseSSL,
	}, logger)
	if publisherError != nil {
		return nil, ConfigurationError{Field: fieldUploadEndpointConstant, Message: publisherError.Error()}
	}
	return publisher, nil
}

func resolveRequiredCredential(executionContext context.Context, tokenResolver *credentials.Resolver, source string, field string) (string, error) {
	value, found, resolveError := tokenResolver.Resolve(executionContext, source, nil)
	if resolveError != nil {
		return "", ConfigurationError{Field: field, Message: resolveError.Error()}
	}
	if !found {
		return "", ConfigurationError{Field: field, Message: credentialMissingMessageConstant}
	}
	return value, nil
}

// hostRepositoryFiles serves existence checks and content reads from the host client and tree
// listings from the per-run cache.
type hostRepositoryFiles struct {
	client *hostclient.GitLabClient
	trees  hostclient.TreeLister
}

func (files hostRepositoryFiles) FileExists(executionContext context.Context, projectID int64, ref string, filePath string) (bool, error) {
	return files.client.FileExists(executionContext, projectID, ref, filePath)
}

func (files hostRepositoryFiles) ListTree(executionContext context.Context, projectID int64, ref string) ([]string, error) {
	return files.trees.ListTree(executionContext, projectID, ref)
}

func (files hostRepositoryFiles) GetFileContent(executionContext context.Context, projectID int64, ref string, filePath string) ([]byte, error) {
	return files.client.GetFileContent(executionContext, projectID, ref, filePath)
}
