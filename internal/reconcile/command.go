package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/scadrift/internal/targets"
	"github.com/temirov/scadrift/internal/utils"
)

const (
	commandUseConstant                       = "reconcile"
	commandShortDescriptionConstant          = "Reconcile scanner targets against host repositories"
	commandLongDescriptionConstant           = "reconcile joins scanning-service targets with repository-host projects, checks that tracked manifests still exist, flags duplicate projects, and writes a drift report."
	unexpectedArgumentsErrorMessageConstant  = "reconcile does not accept positional arguments"
	commandExecutionErrorTemplateConstant    = "reconcile failed: %w"
	orgIDFlagNameConstant                    = "org-id"
	orgIDFlagDescriptionConstant             = "Scanning-service organization id (repeatable or comma separated)"
	groupIDFlagNameConstant                  = "group-id"
	groupIDFlagDescriptionConstant           = "Scanning-service group id whose organizations are reconciled"
	scannerRegionFlagNameConstant            = "scanner-region"
	scannerRegionFlagDescriptionConstant     = "Scanning-service region (SNYK-US-01, SNYK-US-02, SNYK-EU-01, SNYK-AU-01)"
	scannerTokenFlagNameConstant             = "scanner-token-source"
	scannerTokenFlagDescriptionConstant      = "Scanning-service token source (env:NAME or file:/path)"
	hostURLFlagNameConstant                  = "host-url"
	hostURLFlagDescriptionConstant           = "Repository host base URL"
	hostTokenFlagNameConstant                = "host-token-source"
	hostTokenFlagDescriptionConstant         = "Repository host token source (env:NAME or file:/path)"
	insecureFlagNameConstant                 = "insecure-skip-verify"
	insecureFlagDescriptionConstant          = "Disable TLS verification for the repository host"
	skipOrgValidationFlagNameConstant        = "skip-org-validation"
	skipOrgValidationFlagDescriptionConstant = "Skip the organization access check before listing targets"
	timeoutFlagNameConstant                  = "timeout"
	timeoutFlagDescriptionConstant           = "Timeout for each API call"
	retryAttemptsFlagNameConstant            = "retry-attempts"
	retryAttemptsFlagDescriptionConstant     = "Attempt ceiling for each idempotent API call"
	outputReportFlagNameConstant             = "output-report"
	outputReportFlagDescriptionConstant      = "Write the text report to this path instead of standard output"
	duplicatesCSVFlagNameConstant            = "duplicates-csv"
	duplicatesCSVFlagDescriptionConstant     = "Write duplicate decisions as CSV to this path"
	bundleFlagNameConstant                   = "bundle"
	bundleFlagDescriptionConstant            = "Write the full result bundle to this path (.json for JSON, otherwise YAML)"
	envFileFlagNameConstant                  = "env-file"
	envFileFlagDescriptionConstant           = "Dotenv file consulted for credentials before the process environment"
	runIDFlagNameConstant                    = "run-id"
	runIDFlagDescriptionConstant             = "Identifier for this run and its upload prefix (generated when empty)"
	runCompletedMessageConstant              = "Reconciliation completed"
	logFieldErrorsConstant                   = "errors"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current reconcile configuration.
type ConfigurationProvider func() Configuration

// CommandBuilder assembles the reconcile command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	ServiceFactory        ServiceFactory
}

// Build constructs the reconcile command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	reconcileCommand := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	flags := reconcileCommand.Flags()
	flags.StringSlice(orgIDFlagNameConstant, nil, orgIDFlagDescriptionConstant)
	flags.String(groupIDFlagNameConstant, "", groupIDFlagDescriptionConstant)
	flags.String(scannerRegionFlagNameConstant, "", scannerRegionFlagDescriptionConstant)
	flags.String(scannerTokenFlagNameConstant, "", scannerTokenFlagDescriptionConstant)
	flags.String(hostURLFlagNameConstant, "", hostURLFlagDescriptionConstant)
	flags.String(hostTokenFlagNameConstant, "", hostTokenFlagDescriptionConstant)
	flags.Bool(insecureFlagNameConstant, false, insecureFlagDescriptionConstant)
	flags.Bool(skipOrgValidationFlagNameConstant, false, skipOrgValidationFlagDescriptionConstant)
	flags.Duration(timeoutFlagNameConstant, 0, timeoutFlagDescriptionConstant)
	flags.Int(retryAttemptsFlagNameConstant, 0, retryAttemptsFlagDescriptionConstant)
	flags.String(outputReportFlagNameConstant, "", outputReportFlagDescriptionConstant)
	flags.String(duplicatesCSVFlagNameConstant, "", duplicatesCSVFlagDescriptionConstant)
	flags.String(bundleFlagNameConstant, "", bundleFlagDescriptionConstant)
	flags.String(envFileFlagNameConstant, "", envFileFlagDescriptionConstant)
	flags.String(runIDFlagNameConstant, "", runIDFlagDescriptionConstant)

	return reconcileCommand, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsErrorMessageConstant)
	}

	options, optionsError := builder.parseOptions(command)
	if optionsError != nil {
		return optionsError
	}

	executionContext := command.Context()
	if len(options.RunIdentifier) > 0 {
		executionContext = utils.NewCommandContextAccessor().WithRunIdentifier(executionContext, options.RunIdentifier)
	}

	logger := builder.resolveLogger()
	runner, factoryError := builder.resolveServiceFactory().Create(executionContext, options, logger)
	if factoryError != nil {
		return factoryError
	}

	outcome, runError := runner.Run(executionContext, RunRequest{
		Scope:             options.Scope,
		TextReportPath:    options.TextReportPath,
		DuplicatesCSVPath: options.DuplicatesCSVPath,
		BundlePath:        options.BundlePath,
	})
	if runError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, runError)
	}

	logger.Info(runCompletedMessageConstant,
		zap.String(logFieldRunIDConstant, outcome.Bundle.RunID),
		zap.Int(logFieldMatchedConstant, outcome.Bundle.Summary.MatchedRepositories),
		zap.Int(logFieldScannerOnlyConstant, outcome.Bundle.Summary.ScannerOnly),
		zap.Int(logFieldHostOnlyConstant, outcome.Bundle.Summary.HostOnly),
		zap.Int(logFieldErrorsConstant, outcome.Bundle.Summary.Errors),
	)
	return nil
}

// parseOptions merges flags over configuration; a flag wins only when it was set explicitly.
func (builder *CommandBuilder) parseOptions(command *cobra.Command) (Options, error) {
	configuration := builder.resolveConfiguration()
	flags := command.Flags()

	organizationIDs := configuration.Scanner.OrganizationIDs
	if flags.Changed(orgIDFlagNameConstant) {
		flagOrganizationIDs, flagError := flags.GetStringSlice(orgIDFlagNameConstant)
		if flagError != nil {
			return Options{}, flagError
		}
		organizationIDs = trimValues(flagOrganizationIDs)
	}

	stringValues := map[string]*string{}
	options := Options{
		ScannerTokenSource:   configuration.Scanner.TokenSource,
		ScannerRegion:        configuration.Scanner.Region,
		ScannerBaseURL:       configuration.Scanner.BaseURL,
		ScannerAPIVersion:    configuration.Scanner.APIVersion,
		HostURL:              configuration.Host.URL,
		HostTokenSource:      configuration.Host.TokenSource,
		InsecureSkipVerify:   configuration.Host.InsecureSkipVerify,
		CaseInsensitivePaths: configuration.Host.CaseInsensitivePaths,
		Timeout:              configuration.HTTP.Timeout,
		RetryAttempts:        configuration.HTTP.RetryAttempts,
		RetryInitialInterval: configuration.HTTP.RetryInitialInterval,
		TextReportPath:       configuration.Report.TextPath,
		DuplicatesCSVPath:    configuration.Report.DuplicatesCSVPath,
		BundlePath:           configuration.Report.BundlePath,
		Upload:               configuration.Report.Upload,
		EnvironmentFile:      configuration.EnvironmentFile,
	}
	groupID := configuration.Scanner.GroupID
	stringValues[groupIDFlagNameConstant] = &groupID
	stringValues[scannerRegionFlagNameConstant] = &options.ScannerRegion
	stringValues[scannerTokenFlagNameConstant] = &options.ScannerTokenSource
	stringValues[hostURLFlagNameConstant] = &options.HostURL
	stringValues[hostTokenFlagNameConstant] = &options.HostTokenSource
	stringValues[outputReportFlagNameConstant] = &options.TextReportPath
	stringValues[duplicatesCSVFlagNameConstant] = &options.DuplicatesCSVPath
	stringValues[bundleFlagNameConstant] = &options.BundlePath
	stringValues[envFileFlagNameConstant] = &options.EnvironmentFile
	stringValues[runIDFlagNameConstant] = &options.RunIdentifier
	for flagName, target := range stringValues {
		flagValue, flagError := flags.GetString(flagName)
		if flagError != nil {
			return Options{}, flagError
		}
		*target = selectStringValue(flagValue, *target)
	}
	options.HostURL = strings.TrimRight(options.HostURL, "/")

	skipOrganizationValidation := configuration.Scanner.SkipOrganizationValidation
	boolValues := map[string]*bool{
		insecureFlagNameConstant:          &options.InsecureSkipVerify,
		skipOrgValidationFlagNameConstant: &skipOrganizationValidation,
	}
	for flagName, target := range boolValues {
		if flagError := selectBoolValue(flags, flagName, target); flagError != nil {
			return Options{}, flagError
		}
	}

	if flags.Changed(timeoutFlagNameConstant) {
		timeoutValue, flagError := flags.GetDuration(timeoutFlagNameConstant)
		if flagError != nil {
			return Options{}, flagError
		}
		options.Timeout = timeoutValue
	}
	if flags.Changed(retryAttemptsFlagNameConstant) {
		retryAttemptsValue, flagError := flags.GetInt(retryAttemptsFlagNameConstant)
		if flagError != nil {
			return Options{}, flagError
		}
		options.RetryAttempts = retryAttemptsValue
	}

	options.Scope = targets.ScopeSelection{
		OrganizationIDs:            organizationIDs,
		GroupID:                    groupID,
		SkipOrganizationValidation: skipOrganizationValidation,
		SourceTypes:                configuration.Scanner.SourceTypes,
	}
	return options, options.Validate()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	configuration := DefaultConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}
	configuration = configuration.Sanitize()

	defaults := DefaultConfiguration()
	if configuration.HTTP.Timeout <= 0 {
		configuration.HTTP.Timeout = defaults.HTTP.Timeout
	}
	if configuration.HTTP.RetryAttempts <= 0 {
		configuration.HTTP.RetryAttempts = defaults.HTTP.RetryAttempts
	}
	if configuration.HTTP.RetryInitialInterval <= 0 {
		configuration.HTTP.RetryInitialInterval = defaults.HTTP.RetryInitialInterval
	}
	if len(configuration.Host.URL) == 0 {
		configuration.Host.URL = defaults.Host.URL
	}
	return configuration
}

func (builder *CommandBuilder) resolveServiceFactory() ServiceFactory {
	if builder.ServiceFactory != nil {
		return builder.ServiceFactory
	}
	return DefaultServiceFactory{}
}

func selectStringValue(flagValue string, configurationValue string) string {
	trimmedFlagValue := strings.TrimSpace(flagValue)
	if len(trimmedFlagValue) > 0 {
		return trimmedFlagValue
	}

	return strings.TrimSpace(configurationValue)
}

func selectBoolValue(flags *pflag.FlagSet, flagName string, target *bool) error {
	if !flags.Changed(flagName) {
		return nil
	}
	flagValue, flagError := flags.GetBool(flagName)
	if flagError != nil {
		return flagError
	}
	*target = flagValue
	return nil
}
