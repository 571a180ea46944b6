// Package hostclient implements the repository-host capability against the GitLab REST v4 API:
// paginated repository listing, default branch lookup, file existence and content, and recursive trees.
package hostclient
