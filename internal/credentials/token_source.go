package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	tokenSourceSeparatorConstant               = ":"
	environmentTokenSourceTypeValueConstant    = "env"
	fileTokenSourceTypeValueConstant           = "file"
	tokenSourceMissingErrorMessageConstant     = "token source must be provided"
	environmentNameMissingErrorMessageConstant = "environment variable name must be provided"
	filePathMissingErrorMessageConstant        = "token file path must be provided"
	environmentTokenMissingTemplateConstant    = "environment variable %s is not set"
	fileReadErrorTemplateConstant              = "unable to read token file %s: %w"
	fileTokenEmptyErrorTemplateConstant        = "token file %s is empty"
	unsupportedTokenSourceTemplateConstant     = "unsupported token source type %q"
	environmentFileReadErrorTemplateConstant   = "unable to read environment file %s: %w"
)

// Environment variable names consulted when no token source is declared.
const (
	EnvScannerToken     = "SNYK_TOKEN"
	EnvHostToken        = "GITLAB_TOKEN"
	EnvHostPrivateToken = "GITLAB_PRIVATE_TOKEN"
)

// ScannerTokenPreference lists the variables checked for the scanning-service token.
var ScannerTokenPreference = []string{EnvScannerToken}

// HostTokenPreference lists the variables checked for the repository-host token.
var HostTokenPreference = []string{EnvHostToken, EnvHostPrivateToken}

// TokenSourceType enumerates the supported token retrieval mechanisms.
type TokenSourceType string

// Token source type enumerations.
const (
	TokenSourceTypeEnvironment TokenSourceType = TokenSourceType(environmentTokenSourceTypeValueConstant)
	TokenSourceTypeFile        TokenSourceType = TokenSourceType(fileTokenSourceTypeValueConstant)
)

// TokenSourceConfiguration specifies how to locate a credentials token.
type TokenSourceConfiguration struct {
	Type      TokenSourceType
	Reference string
}

// EnvironmentLookup obtains an environment variable value.
type EnvironmentLookup func(key string) (string, bool)

// FileReader reads the contents of a file path.
type FileReader func(path string) ([]byte, error)

// ParseTokenSource interprets textual token source declarations. A bare value names an environment variable.
func ParseTokenSource(sourceValue string) (TokenSourceConfiguration, error) {
	trimmedValue := strings.TrimSpace(sourceValue)
	if len(trimmedValue) == 0 {
		return TokenSourceConfiguration{}, errors.New(tokenSourceMissingErrorMessageConstant)
	}

	components := strings.SplitN(trimmedValue, tokenSourceSeparatorConstant, 2)
	if len(components) == 1 {
		return TokenSourceConfiguration{Type: TokenSourceTypeEnvironment, Reference: trimmedValue}, nil
	}

	sourceType := strings.ToLower(strings.TrimSpace(components[0]))
	reference := strings.TrimSpace(components[1])

	switch sourceType {
	case environmentTokenSourceTypeValueConstant:
		if len(reference) == 0 {
			return TokenSourceConfiguration{}, errors.New(environmentNameMissingErrorMessageConstant)
		}
		return TokenSourceConfiguration{Type: TokenSourceTypeEnvironment, Reference: reference}, nil
	case fileTokenSourceTypeValueConstant:
		if len(reference) == 0 {
			return TokenSourceConfiguration{}, errors.New(filePathMissingErrorMessageConstant)
		}
		return TokenSourceConfiguration{Type: TokenSourceTypeFile, Reference: reference}, nil
	default:
		return TokenSourceConfiguration{}, fmt.Errorf(unsupportedTokenSourceTemplateConstant, sourceType)
	}
}

// NewEnvironmentLookup returns a lookup that consults the dotenv file at environmentFilePath before the
// process environment. An empty path consults the process environment only.
func NewEnvironmentLookup(environmentFilePath string) (EnvironmentLookup, error) {
	trimmedPath := strings.TrimSpace(environmentFilePath)
	if len(trimmedPath) == 0 {
		return os.LookupEnv, nil
	}
	fileValues, readError := godotenv.Read(trimmedPath)
	if readError != nil {
		return nil, fmt.Errorf(environmentFileReadErrorTemplateConstant, trimmedPath, readError)
	}
	return func(key string) (string, bool) {
		if value, exists := fileValues[key]; exists && len(strings.TrimSpace(value)) > 0 {
			return value, true
		}
		return os.LookupEnv(key)
	}, nil
}

// Resolver retrieves tokens from configured sources.
type Resolver struct {
	environmentLookup EnvironmentLookup
	fileReader        FileReader
}

// NewResolver creates a resolver with optional dependency overrides.
func NewResolver(environmentLookup EnvironmentLookup, fileReader FileReader) *Resolver {
	if environmentLookup == nil {
		environmentLookup = os.LookupEnv
	}
	if fileReader == nil {
		fileReader = os.ReadFile
	}
	return &Resolver{environmentLookup: environmentLookup, fileReader: fileReader}
}

// ResolveToken reads the token named by source.
func (resolver *Resolver) ResolveToken(resolutionContext context.Context, source TokenSourceConfiguration) (string, error) {
	_ = resolutionContext
	switch source.Type {
	case TokenSourceTypeEnvironment:
		value, found := resolver.environmentLookup(source.Reference)
		trimmedValue := strings.TrimSpace(value)
		if !found || len(trimmedValue) == 0 {
			return "", fmt.Errorf(environmentTokenMissingTemplateConstant, source.Reference)
		}
		return trimmedValue, nil
	case TokenSourceTypeFile:
		contents, readError := resolver.fileReader(source.Reference)
		if readError != nil {
			return "", fmt.Errorf(fileReadErrorTemplateConstant, source.Reference, readError)
		}
		trimmedValue := strings.TrimSpace(string(contents))
		if len(trimmedValue) == 0 {
			return "", fmt.Errorf(fileTokenEmptyErrorTemplateConstant, source.Reference)
		}
		return trimmedValue, nil
	default:
		return "", fmt.Errorf(unsupportedTokenSourceTemplateConstant, source.Type)
	}
}

// ResolvePreferred returns the first non-empty value among the preferred environment variables.
func (resolver *Resolver) ResolvePreferred(preference []string) (string, bool) {
	for _, key := range preference {
		value, found := resolver.environmentLookup(key)
		if !found {
			continue
		}
		trimmedValue := strings.TrimSpace(value)
		if len(trimmedValue) > 0 {
			return trimmedValue, true
		}
	}
	return "", false
}

// Resolve reads the token from the declared source, or from the preferred variables when no source is declared.
// The boolean reports whether a token was found.
func (resolver *Resolver) Resolve(resolutionContext context.Context, declaredSource string, preference []string) (string, bool, error) {
	if len(strings.TrimSpace(declaredSource)) == 0 {
		token, found := resolver.ResolvePreferred(preference)
		return token, found, nil
	}
	source, parseError := ParseTokenSource(declaredSource)
	if parseError != nil {
		return "", false, parseError
	}
	token, resolveError := resolver.ResolveToken(resolutionContext, source)
	if resolveError != nil {
		return "", false, resolveError
	}
	return token, true, nil
}
