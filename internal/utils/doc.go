// Package utils exposes reusable helpers consumed by the CLI and the
// reconciliation command.
//
// It houses ConfigurationLoader, which layers the embedded defaults, an
// optional configuration file, and SCADRIFT_ environment overrides through
// Viper, and LoggerFactory, which builds zap loggers for the requested level
// and encoding.
package utils
