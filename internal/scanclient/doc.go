// Package scanclient implements the scanning-service capability against the Snyk REST API:
// organizations (directly or through a group), targets filtered by source type, and projects per target.
package scanclient
