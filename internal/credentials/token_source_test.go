package credentials_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/scadrift/internal/credentials"
)

const (
	testCredentialsSubtestTemplateConstant = "%d_%s"
	testTokenFilePathConstant              = "/secrets/snyk"
	testTokenValueConstant                 = "token-value"
)

func TestParseTokenSource(testInstance *testing.T) {
	testCases := []struct {
		name           string
		value          string
		expectedSource credentials.TokenSourceConfiguration
		expectError    bool
	}{
		{name: "bare_variable", value: "SNYK_TOKEN", expectedSource: credentials.TokenSourceConfiguration{Type: credentials.TokenSourceTypeEnvironment, Reference: "SNYK_TOKEN"}},
		{name: "env_prefix", value: "env: GITLAB_TOKEN", expectedSource: credentials.TokenSourceConfiguration{Type: credentials.TokenSourceTypeEnvironment, Reference: "GITLAB_TOKEN"}},
		{name: "file_prefix", value: "FILE:" + testTokenFilePathConstant, expectedSource: credentials.TokenSourceConfiguration{Type: credentials.TokenSourceTypeFile, Reference: testTokenFilePathConstant}},
		{name: "empty", value: "  ", expectError: true},
		{name: "empty_reference", value: "env:", expectError: true},
		{name: "unsupported_type", value: "vault:secret/snyk", expectError: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testCredentialsSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			source, parseError := credentials.ParseTokenSource(testCase.value)
			if testCase.expectError {
				require.Error(testInstance, parseError)
				return
			}
			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expectedSource, source)
		})
	}
}

func TestResolverResolve(testInstance *testing.T) {
	environment := map[string]string{
		"SNYK_TOKEN":           " " + testTokenValueConstant + " ",
		"GITLAB_PRIVATE_TOKEN": "glpat",
		"EMPTY":                "",
	}
	lookup := func(key string) (string, bool) {
		value, exists := environment[key]
		return value, exists
	}
	reader := func(path string) ([]byte, error) {
		if path == testTokenFilePathConstant {
			return []byte("from-file\n"), nil
		}
		return nil, errors.New("missing file")
	}
	resolver := credentials.NewResolver(lookup, reader)

	testCases := []struct {
		name          string
		declared      string
		preference    []string
		expectedToken string
		expectedFound bool
		expectError   bool
	}{
		{name: "declared_environment", declared: "env:SNYK_TOKEN", expectedToken: testTokenValueConstant, expectedFound: true},
		{name: "declared_file", declared: "file:" + testTokenFilePathConstant, expectedToken: "from-file", expectedFound: true},
		{name: "declared_missing_variable", declared: "env:EMPTY", expectError: true},
		{name: "declared_missing_file", declared: "file:/nowhere", expectError: true},
		{name: "preferred_fallback", preference: credentials.HostTokenPreference, expectedToken: "glpat", expectedFound: true},
		{name: "nothing_found", preference: []string{"UNSET"}, expectedFound: false},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testCredentialsSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			token, found, resolveError := resolver.Resolve(context.Background(), testCase.declared, testCase.preference)
			if testCase.expectError {
				require.Error(testInstance, resolveError)
				return
			}
			require.NoError(testInstance, resolveError)
			require.Equal(testInstance, testCase.expectedFound, found)
			require.Equal(testInstance, testCase.expectedToken, token)
		})
	}
}

func TestEnvironmentLookupPrefersDotenvFile(testInstance *testing.T) {
	environmentFilePath := filepath.Join(testInstance.TempDir(), ".env")
	require.NoError(testInstance, os.WriteFile(environmentFilePath, []byte("SCADRIFT_TEST_TOKEN=from-dotenv\n"), 0o600))
	testInstance.Setenv("SCADRIFT_TEST_TOKEN", "from-process")
	testInstance.Setenv("SCADRIFT_TEST_ONLY_PROCESS", "process-only")

	lookup, lookupError := credentials.NewEnvironmentLookup(environmentFilePath)
	require.NoError(testInstance, lookupError)

	value, found := lookup("SCADRIFT_TEST_TOKEN")
	require.True(testInstance, found)
	require.Equal(testInstance, "from-dotenv", value)

	value, found = lookup("SCADRIFT_TEST_ONLY_PROCESS")
	require.True(testInstance, found)
	require.Equal(testInstance, "process-only", value)

	_, missingFileError := credentials.NewEnvironmentLookup(filepath.Join(testInstance.TempDir(), "absent.env"))
	require.Error(testInstance, missingFileError)
}
