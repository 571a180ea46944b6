package reconcile_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/scadrift/internal/reconcile"
	"github.com/temirov/scadrift/internal/targets"
)

func mapLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, exists := values[key]
		return value, exists
	}
}

func validFactoryOptions() reconcile.Options {
	return reconcile.Options{
		Scope:                targets.ScopeSelection{OrganizationIDs: []string{"org-1"}},
		ScannerRegion:        "SNYK-EU-01",
		HostURL:              "https://gitlab.example.com",
		Timeout:              10 * time.Second,
		RetryAttempts:        3,
		RetryInitialInterval: time.Millisecond,
	}
}

func TestDefaultServiceFactoryConfigurationErrors(testInstance *testing.T) {
	testCases := []struct {
		name          string
		environment   map[string]string
		mutate        func(options *reconcile.Options)
		expectedField string
	}{
		{
			name:          "missing_scanner_token",
			environment:   map[string]string{},
			mutate:        func(options *reconcile.Options) {},
			expectedField: "scanner.token_source",
		},
		{
			name:        "unsupported_scanner_token_source",
			environment: map[string]string{"SNYK_TOKEN": "token"},
			mutate: func(options *reconcile.Options) {
				options.ScannerTokenSource = "vault:snyk"
			},
			expectedField: "scanner.token_source",
		},
		{
			name:        "unset_host_token_variable",
			environment: map[string]string{"SNYK_TOKEN": "token"},
			mutate: func(options *reconcile.Options) {
				options.HostTokenSource = "env:MISSING_HOST_TOKEN"
			},
			expectedField: "host.token_source",
		},
		{
			name:        "unknown_region",
			environment: map[string]string{"SNYK_TOKEN": "token"},
			mutate: func(options *reconcile.Options) {
				options.ScannerRegion = "SNYK-MARS-01"
			},
			expectedField: "scanner.region",
		},
		{
			name:        "missing_upload_access_key",
			environment: map[string]string{"SNYK_TOKEN": "token"},
			mutate: func(options *reconcile.Options) {
				options.Upload = reconcile.UploadConfiguration{Endpoint: "minio.local:9000", Bucket: "reports", AccessKeySource: "env:S3_ACCESS", SecretKeySource: "env:S3_SECRET"}
			},
			expectedField: "report.upload.access_key_source",
		},
		{
			name:        "conflicting_scope",
			environment: map[string]string{"SNYK_TOKEN": "token"},
			mutate: func(options *reconcile.Options) {
				options.Scope.GroupID = "group-1"
			},
			expectedField: "scanner.org_id/scanner.group_id",
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testCommandSubtestTemplateConstant, testCaseIndex, testCase.name), func(subTestInstance *testing.T) {
			options := validFactoryOptions()
			testCase.mutate(&options)
			factory := reconcile.DefaultServiceFactory{EnvironmentLookup: mapLookup(testCase.environment)}

			runner, createError := factory.Create(context.Background(), options, nil)

			require.Nil(subTestInstance, runner)
			var configurationError reconcile.ConfigurationError
			require.ErrorAs(subTestInstance, createError, &configurationError)
			require.Equal(subTestInstance, testCase.expectedField, configurationError.Field)
		})
	}
}

func TestDefaultServiceFactoryBuildsRunner(testInstance *testing.T) {
	options := validFactoryOptions()
	options.CaseInsensitivePaths = true
	options.Upload = reconcile.UploadConfiguration{
		Endpoint:        "minio.local:9000",
		Bucket:          "reports",
		AccessKeySource: "env:S3_ACCESS",
		SecretKeySource: "file:/run/secrets/s3",
	}
	factory := reconcile.DefaultServiceFactory{
		EnvironmentLookup: mapLookup(map[string]string{"SNYK_TOKEN": "scanner-token", "GITLAB_PRIVATE_TOKEN": "host-token", "S3_ACCESS": "access"}),
		FileReader: func(path string) ([]byte, error) {
			require.Equal(testInstance, "/run/secrets/s3", path)
			return []byte("secret\n"), nil
		},
		ReportOutput: &bytes.Buffer{},
	}

	runner, createError := factory.Create(context.Background(), options, nil)
	require.NoError(testInstance, createError)
	require.NotNil(testInstance, runner)
}
