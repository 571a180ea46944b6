package reconcile

import (
	"strings"
	"time"

	"github.com/temirov/scadrift/internal/apiclient"
	"github.com/temirov/scadrift/internal/scanclient"
	"github.com/temirov/scadrift/internal/targets"
)

const (
	configurationKeySeparatorConstant         = "."
	scannerConfigurationKeyConstant           = "scanner"
	hostConfigurationKeyConstant              = "host"
	httpConfigurationKeyConstant              = "http"
	reportConfigurationKeyConstant            = "report"
	uploadConfigurationKeyConstant            = "upload"
	configurationTokenSourceKeyConstant       = "token_source"
	configurationRegionKeyConstant            = "region"
	configurationBaseURLKeyConstant           = "base_url"
	configurationAPIVersionKeyConstant        = "api_version"
	configurationOrgIDKeyConstant             = "org_id"
	configurationGroupIDKeyConstant           = "group_id"
	configurationSkipOrgValidationKeyConstant = "skip_org_validation"
	configurationSourceTypesKeyConstant       = "source_types"
	configurationURLKeyConstant               = "url"
	configurationInsecureKeyConstant          = "insecure_skip_verify"
	configurationCaseInsensitiveKeyConstant   = "case_insensitive_paths"
	configurationTimeoutKeyConstant           = "timeout"
	configurationRetryAttemptsKeyConstant     = "retry_attempts"
	configurationRetryIntervalKeyConstant     = "retry_initial_interval"
	configurationTextPathKeyConstant          = "text_path"
	configurationDuplicatesCSVPathKeyConstant = "duplicates_csv_path"
	configurationBundlePathKeyConstant        = "bundle_path"
	configurationEndpointKeyConstant          = "endpoint"
	configurationBucketKeyConstant            = "bucket"
	configurationAccessKeySourceKeyConstant   = "access_key_source"
	configurationSecretKeySourceKeyConstant   = "secret_key_source"
	configurationUseSSLKeyConstant            = "use_ssl"
	configurationEnvFileKeyConstant           = "env_file"
	defaultHostURLConstant                    = "https://gitlab.com"
	defaultUploadAccessKeySourceConstant      = "env:SCADRIFT_UPLOAD_ACCESS_KEY"
	defaultUploadSecretKeySourceConstant      = "env:SCADRIFT_UPLOAD_SECRET_KEY"
)

// Configuration captures the persisted settings of the reconcile command.
type Configuration struct {
	Scanner         ScannerConfiguration `mapstructure:"scanner"`
	Host            HostConfiguration    `mapstructure:"host"`
	HTTP            HTTPConfiguration    `mapstructure:"http"`
	Report          ReportConfiguration  `mapstructure:"report"`
	EnvironmentFile string               `mapstructure:"env_file"`
}

// ScannerConfiguration describes the scanning-service connection and scope.
type ScannerConfiguration struct {
	TokenSource                string   `mapstructure:"token_source"`
	Region                     string   `mapstructure:"region"`
	BaseURL                    string   `mapstructure:"base_url"`
	APIVersion                 string   `mapstructure:"api_version"`
	OrganizationIDs            []string `mapstructure:"org_id"`
	GroupID                    string   `mapstructure:"group_id"`
	SkipOrganizationValidation bool     `mapstructure:"skip_org_validation"`
	SourceTypes                []string `mapstructure:"source_types"`
}

// HostConfiguration describes the repository-host connection.
type HostConfiguration struct {
	URL                  string `mapstructure:"url"`
	TokenSource          string `mapstructure:"token_source"`
	InsecureSkipVerify   bool   `mapstructure:"insecure_skip_verify"`
	CaseInsensitivePaths bool   `mapstructure:"case_insensitive_paths"`
}

// HTTPConfiguration bounds every API call.
type HTTPConfiguration struct {
	Timeout              time.Duration `mapstructure:"timeout"`
	RetryAttempts        int           `mapstructure:"retry_attempts"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
}

// ReportConfiguration names the rendered outputs.
type ReportConfiguration struct {
	TextPath          string              `mapstructure:"text_path"`
	DuplicatesCSVPath string              `mapstructure:"duplicates_csv_path"`
	BundlePath        string              `mapstructure:"bundle_path"`
	Upload            UploadConfiguration `mapstructure:"upload"`
}

// UploadConfiguration describes the optional S3-compatible destination.
type UploadConfiguration struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	AccessKeySource string `mapstructure:"access_key_source"`
	SecretKeySource string `mapstructure:"secret_key_source"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// DefaultConfiguration returns baseline reconcile settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		Scanner: ScannerConfiguration{
			Region:      scanclient.DefaultRegion,
			APIVersion:  scanclient.DefaultAPIVersion,
			SourceTypes: append([]string{}, targets.DefaultSourceTypes...),
		},
		Host: HostConfiguration{
			URL: defaultHostURLConstant,
		},
		HTTP: HTTPConfiguration{
			Timeout:              apiclient.DefaultTimeout,
			RetryAttempts:        apiclient.DefaultRetryAttempts,
			RetryInitialInterval: apiclient.DefaultRetryInitialInterval,
		},
		Report: ReportConfiguration{
			Upload: UploadConfiguration{
				AccessKeySource: defaultUploadAccessKeySourceConstant,
				SecretKeySource: defaultUploadSecretKeySourceConstant,
				UseSSL:          true,
			},
		},
	}
}

// DefaultConfigurationValues produces Viper defaults rooted at rootKey.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultConfiguration()
	scannerKey := joinConfigurationKey(rootKey, scannerConfigurationKeyConstant)
	hostKey := joinConfigurationKey(rootKey, hostConfigurationKeyConstant)
	httpKey := joinConfigurationKey(rootKey, httpConfigurationKeyConstant)
	reportKey := joinConfigurationKey(rootKey, reportConfigurationKeyConstant)
	uploadKey := joinConfigurationKey(reportKey, uploadConfigurationKeyConstant)
	return map[string]any{
		joinConfigurationKey(scannerKey, configurationTokenSourceKeyConstant):       defaults.Scanner.TokenSource,
		joinConfigurationKey(scannerKey, configurationRegionKeyConstant):            defaults.Scanner.Region,
		joinConfigurationKey(scannerKey, configurationBaseURLKeyConstant):           defaults.Scanner.BaseURL,
		joinConfigurationKey(scannerKey, configurationAPIVersionKeyConstant):        defaults.Scanner.APIVersion,
		joinConfigurationKey(scannerKey, configurationOrgIDKeyConstant):             defaults.Scanner.OrganizationIDs,
		joinConfigurationKey(scannerKey, configurationGroupIDKeyConstant):           defaults.Scanner.GroupID,
		joinConfigurationKey(scannerKey, configurationSkipOrgValidationKeyConstant): defaults.Scanner.SkipOrganizationValidation,
		joinConfigurationKey(scannerKey, configurationSourceTypesKeyConstant):       defaults.Scanner.SourceTypes,
		joinConfigurationKey(hostKey, configurationURLKeyConstant):                  defaults.Host.URL,
		joinConfigurationKey(hostKey, configurationTokenSourceKeyConstant):          defaults.Host.TokenSource,
		joinConfigurationKey(hostKey, configurationInsecureKeyConstant):             defaults.Host.InsecureSkipVerify,
		joinConfigurationKey(hostKey, configurationCaseInsensitiveKeyConstant):      defaults.Host.CaseInsensitivePaths,
		joinConfigurationKey(httpKey, configurationTimeoutKeyConstant):              defaults.HTTP.Timeout,
		joinConfigurationKey(httpKey, configurationRetryAttemptsKeyConstant):        defaults.HTTP.RetryAttempts,
		joinConfigurationKey(httpKey, configurationRetryIntervalKeyConstant):        defaults.HTTP.RetryInitialInterval,
		joinConfigurationKey(reportKey, configurationTextPathKeyConstant):           defaults.Report.TextPath,
		joinConfigurationKey(reportKey, configurationDuplicatesCSVPathKeyConstant):  defaults.Report.DuplicatesCSVPath,
		joinConfigurationKey(reportKey, configurationBundlePathKeyConstant):         defaults.Report.BundlePath,
		joinConfigurationKey(uploadKey, configurationEndpointKeyConstant):           defaults.Report.Upload.Endpoint,
		joinConfigurationKey(uploadKey, configurationBucketKeyConstant):             defaults.Report.Upload.Bucket,
		joinConfigurationKey(uploadKey, configurationRegionKeyConstant):             defaults.Report.Upload.Region,
		joinConfigurationKey(uploadKey, configurationAccessKeySourceKeyConstant):    defaults.Report.Upload.AccessKeySource,
		joinConfigurationKey(uploadKey, configurationSecretKeySourceKeyConstant):    defaults.Report.Upload.SecretKeySource,
		joinConfigurationKey(uploadKey, configurationUseSSLKeyConstant):             defaults.Report.Upload.UseSSL,
		joinConfigurationKey(rootKey, configurationEnvFileKeyConstant):              defaults.EnvironmentFile,
	}
}

// Sanitize trims values and drops empty list entries.
func (configuration Configuration) Sanitize() Configuration {
	sanitized := configuration
	sanitized.Scanner.TokenSource = strings.TrimSpace(configuration.Scanner.TokenSource)
	sanitized.Scanner.Region = strings.TrimSpace(configuration.Scanner.Region)
	sanitized.Scanner.BaseURL = strings.TrimSpace(configuration.Scanner.BaseURL)
	sanitized.Scanner.APIVersion = strings.TrimSpace(configuration.Scanner.APIVersion)
	sanitized.Scanner.OrganizationIDs = trimValues(configuration.Scanner.OrganizationIDs)
	sanitized.Scanner.GroupID = strings.TrimSpace(configuration.Scanner.GroupID)
	sanitized.Scanner.SourceTypes = trimValues(configuration.Scanner.SourceTypes)
	sanitized.Host.URL = strings.TrimRight(strings.TrimSpace(configuration.Host.URL), "/")
	sanitized.Host.TokenSource = strings.TrimSpace(configuration.Host.TokenSource)
	sanitized.Report.TextPath = strings.TrimSpace(configuration.Report.TextPath)
	sanitized.Report.DuplicatesCSVPath = strings.TrimSpace(configuration.Report.DuplicatesCSVPath)
	sanitized.Report.BundlePath = strings.TrimSpace(configuration.Report.BundlePath)
	sanitized.Report.Upload.Endpoint = strings.TrimSpace(configuration.Report.Upload.Endpoint)
	sanitized.Report.Upload.Bucket = strings.TrimSpace(configuration.Report.Upload.Bucket)
	sanitized.Report.Upload.Region = strings.TrimSpace(configuration.Report.Upload.Region)
	sanitized.EnvironmentFile = strings.TrimSpace(configuration.EnvironmentFile)
	return sanitized
}

func joinConfigurationKey(parentKey string, childKey string) string {
	if len(parentKey) == 0 {
		return childKey
	}
	return parentKey + configurationKeySeparatorConstant + childKey
}

func trimValues(values []string) []string {
	trimmedValues := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			trimmedPart := strings.TrimSpace(part)
			if len(trimmedPart) == 0 {
				continue
			}
			trimmedValues = append(trimmedValues, trimmedPart)
		}
	}
	if len(trimmedValues) == 0 {
		return nil
	}
	return trimmedValues
}
