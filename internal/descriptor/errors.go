package descriptor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfigNotFound   = errors.New("config not found")
	ErrConfigParse      = errors.New("config parse error")
	ErrConfigValidation = errors.New("config validation error")
	ErrServiceNotFound  = errors.New("service not found")
)

// ModeDoesNotExistError is returned when a requested mode is not declared.
type ModeDoesNotExistError struct {
	Service   string
	Mode      string
	Available []string
}

func (e *ModeDoesNotExistError) Error() string {
	return fmt.Sprintf("Mode '%s' does not exist for service '%s'.\nAvailable modes: %s",
		e.Mode, e.Service, strings.Join(e.Available, ", "))
}

// ServiceNotFoundError is returned when no repository under the coderoot declares the service.
type ServiceNotFoundError struct {
	Name      string
	Available []string
}

func (e *ServiceNotFoundError) Error() string {
	msg := fmt.Sprintf("Service '%s' not found.", e.Name)
	if len(e.Available) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	b.WriteString("\nSupported services:")
	for _, s := range e.Available {
		b.WriteString("\n- ")
		b.WriteString(s)
	}
	return b.String()
}

func (e *ServiceNotFoundError) Is(target error) bool {
	return target == ErrServiceNotFound
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfigValidation, fmt.Sprintf(format, args...))
}

func parseError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfigParse, fmt.Sprintf(format, args...))
}
