package reconcile

import "fmt"

const (
	configurationErrorTemplateConstant = "invalid configuration %s: %s"
)

// ConfigurationError reports a setting that prevents the run from starting. It is returned before any
// network call is made.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error describes the invalid setting.
func (configurationError ConfigurationError) Error() string {
	return fmt.Sprintf(configurationErrorTemplateConstant, configurationError.Field, configurationError.Message)
}
