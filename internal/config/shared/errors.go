package shared

import "fmt"

// ConfigError reports an invalid setting of one configuration component.
type ConfigError struct {
	Component string
	Field     string
	Value     interface{}
	Message   string
}

func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s.%s: %s (got: %v)", e.Component, e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s.%s: %s", e.Component, e.Field, e.Message)
}

func NewConfigError(component, field string, value interface{}, message string) *ConfigError {
	return &ConfigError{
		Component: component,
		Field:     field,
		Value:     value,
		Message:   message,
	}
}
