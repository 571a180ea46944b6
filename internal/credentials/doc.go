// Package credentials resolves the API tokens of the scanning service and the repository host from
// declared token sources (env:NAME, file:/path), an optional dotenv file, and well-known variables.
package credentials
