package scanclient

import (
	"fmt"
	"strings"
)

const (
	// DefaultRegion is used when no region is configured.
	DefaultRegion     = "SNYK-US-01"
	// DefaultAPIVersion is the REST API version sent with every request.
	DefaultAPIVersion = "2024-10-15"
	// TokenHeaderName carries the API token.
	TokenHeaderName   = "Authorization"

	tokenHeaderValuePrefixConstant = "token "
	unknownRegionTemplateConstant  = "unknown scanner region %q (supported: %s)"
	regionListSeparatorConstant    = ", "
)

var regionBaseURLs = map[string]string{
	"SNYK-US-01": "https://api.snyk.io/rest",
	"SNYK-US-02": "https://api.us.snyk.io/rest",
	"SNYK-EU-01": "https://api.eu.snyk.io/rest",
	"SNYK-AU-01": "https://api.au.snyk.io/rest",
}

var supportedRegions = []string{"SNYK-US-01", "SNYK-US-02", "SNYK-EU-01", "SNYK-AU-01"}

// ResolveBaseURL returns baseURLOverride when set, otherwise the REST endpoint of region.
func ResolveBaseURL(region string, baseURLOverride string) (string, error) {
	if trimmedOverride := strings.TrimSpace(baseURLOverride); len(trimmedOverride) > 0 {
		return trimmedOverride, nil
	}
	normalizedRegion := strings.ToUpper(strings.TrimSpace(region))
	if len(normalizedRegion) == 0 {
		normalizedRegion = DefaultRegion
	}
	baseURL, known := regionBaseURLs[normalizedRegion]
	if !known {
		return "", fmt.Errorf(unknownRegionTemplateConstant, region, strings.Join(supportedRegions, regionListSeparatorConstant))
	}
	return baseURL, nil
}

// TokenHeaderValue formats token for TokenHeaderName.
func TokenHeaderValue(token string) string {
	return tokenHeaderValuePrefixConstant + token
}
