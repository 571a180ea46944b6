package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/scadrift/internal/reconcile"
	"github.com/temirov/scadrift/internal/utils"
)

const (
	testCommandSubtestTemplateConstant = "%d_%s"
	testConfiguredHostConstant         = "https://gitlab.internal.example"
)

type stubRunner struct {
	requests       []reconcile.RunRequest
	runIdentifiers []string
	runError       error
}

func (runner *stubRunner) Run(executionContext context.Context, request reconcile.RunRequest) (reconcile.Outcome, error) {
	runner.requests = append(runner.requests, request)
	runIdentifier, _ := utils.NewCommandContextAccessor().RunIdentifier(executionContext)
	runner.runIdentifiers = append(runner.runIdentifiers, runIdentifier)
	return reconcile.Outcome{}, runner.runError
}

type recordingFactory struct {
	options     []reconcile.Options
	runner      *stubRunner
	createError error
}

func (factory *recordingFactory) Create(executionContext context.Context, options reconcile.Options, logger *zap.Logger) (reconcile.ServiceRunner, error) {
	factory.options = append(factory.options, options)
	if factory.createError != nil {
		return nil, factory.createError
	}
	return factory.runner, nil
}

func configuredReconcile() reconcile.Configuration {
	configuration := reconcile.DefaultConfiguration()
	configuration.Scanner.TokenSource = "env:CONFIG_SNYK"
	configuration.Scanner.OrganizationIDs = []string{"org-config"}
	configuration.Host.URL = testConfiguredHostConstant + "/"
	configuration.HTTP.Timeout = 45 * time.Second
	configuration.Report.BundlePath = "bundle.yaml"
	return configuration
}

func executeReconcile(testInstance *testing.T, configuration reconcile.Configuration, factory *recordingFactory, arguments ...string) error {
	builder := reconcile.CommandBuilder{
		LoggerProvider:        func() *zap.Logger { return zap.NewNop() },
		ConfigurationProvider: func() reconcile.Configuration { return configuration },
		ServiceFactory:        factory,
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	command.SetArgs(arguments)
	command.SetContext(context.Background())
	command.SilenceUsage = true
	command.SilenceErrors = true
	return command.Execute()
}

func TestReconcileCommandOptionPrecedence(testInstance *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		validate func(testInstance *testing.T, options reconcile.Options)
	}{
		{
			name: "configuration_values",
			args: nil,
			validate: func(testInstance *testing.T, options reconcile.Options) {
				require.Equal(testInstance, []string{"org-config"}, options.Scope.OrganizationIDs)
				require.Equal(testInstance, testConfiguredHostConstant, options.HostURL)
				require.Equal(testInstance, "env:CONFIG_SNYK", options.ScannerTokenSource)
				require.Equal(testInstance, 45*time.Second, options.Timeout)
				require.Equal(testInstance, 3, options.RetryAttempts)
				require.Equal(testInstance, "bundle.yaml", options.BundlePath)
				require.False(testInstance, options.Scope.SkipOrganizationValidation)
			},
		},
		{
			name: "flags_override_configuration",
			args: []string{
				"--org-id", "org-a,org-b",
				"--host-url", "https://git.example.org",
				"--scanner-token-source", "file:/run/secrets/snyk",
				"--timeout", "5s",
				"--retry-attempts", "5",
				"--skip-org-validation",
				"--insecure-skip-verify",
				"--output-report", "report.txt",
				"--duplicates-csv", "dupes.csv",
				"--bundle", "bundle.json",
				"--env-file", ".env",
				"--run-id", "nightly-42",
			},
			validate: func(testInstance *testing.T, options reconcile.Options) {
				require.Equal(testInstance, []string{"org-a", "org-b"}, options.Scope.OrganizationIDs)
				require.Equal(testInstance, "https://git.example.org", options.HostURL)
				require.Equal(testInstance, "file:/run/secrets/snyk", options.ScannerTokenSource)
				require.Equal(testInstance, 5*time.Second, options.Timeout)
				require.Equal(testInstance, 5, options.RetryAttempts)
				require.True(testInstance, options.Scope.SkipOrganizationValidation)
				require.True(testInstance, options.InsecureSkipVerify)
				require.Equal(testInstance, "report.txt", options.TextReportPath)
				require.Equal(testInstance, "dupes.csv", options.DuplicatesCSVPath)
				require.Equal(testInstance, "bundle.json", options.BundlePath)
				require.Equal(testInstance, ".env", options.EnvironmentFile)
				require.Equal(testInstance, "nightly-42", options.RunIdentifier)
			},
		},
		{
			name: "group_scope_from_flag",
			args: []string{"--org-id", "", "--group-id", "group-1"},
			validate: func(testInstance *testing.T, options reconcile.Options) {
				require.Empty(testInstance, options.Scope.OrganizationIDs)
				require.Equal(testInstance, "group-1", options.Scope.GroupID)
			},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testCommandSubtestTemplateConstant, testCaseIndex, testCase.name), func(subTestInstance *testing.T) {
			factory := &recordingFactory{runner: &stubRunner{}}
			require.NoError(subTestInstance, executeReconcile(subTestInstance, configuredReconcile(), factory, testCase.args...))
			require.Len(subTestInstance, factory.options, 1)
			testCase.validate(subTestInstance, factory.options[0])
			require.Len(subTestInstance, factory.runner.requests, 1)
			require.Equal(subTestInstance, factory.options[0].Scope, factory.runner.requests[0].Scope)
		})
	}
}

func TestReconcileCommandRejectsInvalidInput(testInstance *testing.T) {
	testCases := []struct {
		name          string
		configuration func() reconcile.Configuration
		args          []string
		expectedField string
	}{
		{
			name:          "conflicting_scope",
			configuration: configuredReconcile,
			args:          []string{"--group-id", "group-1"},
			expectedField: "scanner.org_id/scanner.group_id",
		},
		{
			name:          "invalid_host_url",
			configuration: configuredReconcile,
			args:          []string{"--host-url", "gitlab.example.com"},
			expectedField: "host.url",
		},
		{
			name: "upload_without_bucket",
			configuration: func() reconcile.Configuration {
				configuration := configuredReconcile()
				configuration.Report.Upload.Endpoint = "minio.local:9000"
				return configuration
			},
			expectedField: "report.upload.bucket",
		},
		{
			name:          "non_positive_retry_attempts",
			configuration: configuredReconcile,
			args:          []string{"--retry-attempts", "0"},
			expectedField: "http.retry_attempts",
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testCommandSubtestTemplateConstant, testCaseIndex, testCase.name), func(subTestInstance *testing.T) {
			factory := &recordingFactory{runner: &stubRunner{}}
			executionError := executeReconcile(subTestInstance, testCase.configuration(), factory, testCase.args...)

			var configurationError reconcile.ConfigurationError
			require.ErrorAs(subTestInstance, executionError, &configurationError)
			require.Equal(subTestInstance, testCase.expectedField, configurationError.Field)
			require.Empty(subTestInstance, factory.options)
		})
	}
}

func TestReconcileCommandRejectsPositionalArguments(testInstance *testing.T) {
	factory := &recordingFactory{runner: &stubRunner{}}
	require.Error(testInstance, executeReconcile(testInstance, configuredReconcile(), factory, "extra"))
	require.Empty(testInstance, factory.options)
}

func TestReconcileCommandPropagatesFailures(testInstance *testing.T) {
	factoryFailure := reconcile.ConfigurationError{Field: "scanner.token_source", Message: "no scanning-service token found"}
	failingFactory := &recordingFactory{runner: &stubRunner{}, createError: factoryFailure}
	require.ErrorIs(testInstance, executeReconcile(testInstance, configuredReconcile(), failingFactory), factoryFailure)
	require.Empty(testInstance, failingFactory.runner.requests)

	runFailure := errors.New("host unavailable")
	failingRunFactory := &recordingFactory{runner: &stubRunner{runError: runFailure}}
	require.ErrorIs(testInstance, executeReconcile(testInstance, configuredReconcile(), failingRunFactory), runFailure)
}

func TestReconcileCommandPassesRunIdentifierThroughContext(testInstance *testing.T) {
	testCases := []struct {
		name                  string
		args                  []string
		expectedRunIdentifier string
	}{
		{name: "explicit_run_id", args: []string{"--run-id", "nightly-42"}, expectedRunIdentifier: "nightly-42"},
		{name: "generated_by_service", args: nil, expectedRunIdentifier: ""},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testCommandSubtestTemplateConstant, testCaseIndex, testCase.name), func(subTestInstance *testing.T) {
			factory := &recordingFactory{runner: &stubRunner{}}
			require.NoError(subTestInstance, executeReconcile(subTestInstance, configuredReconcile(), factory, testCase.args...))
			require.Equal(subTestInstance, []string{testCase.expectedRunIdentifier}, factory.runner.runIdentifiers)
		})
	}
}
