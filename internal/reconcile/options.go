package reconcile

import (
	"net/url"
	"strings"
	"time"

	"github.com/temirov/scadrift/internal/targets"
)

const (
	fieldOrganizationScopeConstant      = "scanner.org_id/scanner.group_id"
	fieldHostURLConstant                = "host.url"
	fieldTimeoutConstant                = "http.timeout"
	fieldRetryAttemptsConstant          = "http.retry_attempts"
	fieldUploadBucketConstant           = "report.upload.bucket"
	fieldScannerTokenConstant           = "scanner.token_source"
	hostURLMissingMessageConstant       = "a repository host URL is required"
	hostURLInvalidMessageConstant       = "must be an absolute http(s) URL"
	timeoutInvalidMessageConstant       = "must be greater than zero"
	retryAttemptsInvalidMessageConstant = "must be at least one"
	uploadBucketMissingMessageConstant  = "is required when an upload endpoint is configured"
	scannerTokenMissingMessageConstant  = "no scanning-service token found"
	httpSchemeConstant                  = "http"
	httpsSchemeConstant                 = "https"
)

// Options is the fully resolved input of one reconciliation run.
type Options struct {
	Scope                targets.ScopeSelection
	ScannerTokenSource   string
	ScannerRegion        string
	ScannerBaseURL       string
	ScannerAPIVersion    string
	HostURL              string
	HostTokenSource      string
	InsecureSkipVerify   bool
	CaseInsensitivePaths bool
	Timeout              time.Duration
	RetryAttempts        int
	RetryInitialInterval time.Duration
	TextReportPath       string
	DuplicatesCSVPath    string
	BundlePath           string
	Upload               UploadConfiguration
	EnvironmentFile      string
	RunIdentifier        string
}

// Validate rejects option combinations that cannot start a run.
func (options Options) Validate() error {
	if scopeError := options.Scope.Validate(); scopeError != nil {
		return ConfigurationError{Field: fieldOrganizationScopeConstant, Message: scopeError.Error()}
	}
	if len(strings.TrimSpace(options.HostURL)) == 0 {
		return ConfigurationError{Field: fieldHostURLConstant, Message: hostURLMissingMessageConstant}
	}
	if _, hostError := options.HostName(); hostError != nil {
		return hostError
	}
	if options.Timeout <= 0 {
		return ConfigurationError{Field: fieldTimeoutConstant, Message: timeoutInvalidMessageConstant}
	}
	if options.RetryAttempts < 1 {
		return ConfigurationError{Field: fieldRetryAttemptsConstant, Message: retryAttemptsInvalidMessageConstant}
	}
	if len(options.Upload.Endpoint) > 0 && len(options.Upload.Bucket) == 0 {
		return ConfigurationError{Field: fieldUploadBucketConstant, Message: uploadBucketMissingMessageConstant}
	}
	return nil
}

// HostName returns the lower-cased host of HostURL.
func (options Options) HostName() (string, error) {
	parsedURL, parseError := url.Parse(strings.TrimSpace(options.HostURL))
	if parseError != nil || len(parsedURL.Host) == 0 {
		return "", ConfigurationError{Field: fieldHostURLConstant, Message: hostURLInvalidMessageConstant}
	}
	scheme := strings.ToLower(parsedURL.Scheme)
	if scheme != httpSchemeConstant && scheme != httpsSchemeConstant {
		return "", ConfigurationError{Field: fieldHostURLConstant, Message: hostURLInvalidMessageConstant}
	}
	return strings.ToLower(parsedURL.Hostname()), nil
}

// UploadEnabled reports whether rendered artifacts are published after the run.
func (options Options) UploadEnabled() bool {
	return len(options.Upload.Endpoint) > 0
}
