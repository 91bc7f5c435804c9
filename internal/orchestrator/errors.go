package orchestrator

import "fmt"

// ServiceDependedOnError is returned by Down when another active service still needs the target.
type ServiceDependedOnError struct {
	Service   string
	Dependent string
}

func (e *ServiceDependedOnError) Error() string {
	return fmt.Sprintf("Unable to bring down %s because %s depends on it. Bring down %s first.",
		e.Service, e.Dependent, e.Dependent)
}

// RestartDependentError is returned by Toggle when a dependent could not be restarted.
type RestartDependentError struct {
	Service   string
	Dependent string
	Mode      string
	Err       error
}

func (e *RestartDependentError) Error() string {
	return fmt.Sprintf("Failed to restart %s in mode %s after toggling %s: %v\nRestart it manually with `devctl up %s --mode %s`.",
		e.Dependent, e.Mode, e.Service, e.Err, e.Dependent, e.Mode)
}

func (e *RestartDependentError) Unwrap() error {
	return e.Err
}

// CannotToggleNonRemoteServiceError is returned when an active service uses the
// target as a compose service of its own rather than as a remote dependency.
type CannotToggleNonRemoteServiceError struct {
	Service string
}

func (e *CannotToggleNonRemoteServiceError) Error() string {
	return fmt.Sprintf("Cannot toggle %s because it is not a remote dependency of the services using it.", e.Service)
}

// ServiceActiveError is returned when an operation requires the service to be stopped.
type ServiceActiveError struct {
	Service string
}

func (e *ServiceActiveError) Error() string {
	return fmt.Sprintf("%s is running, please stop it first.", e.Service)
}
