package pool

import "fmt"

// ErrDatabaseUnavailable is raised by Acquire when name is in the failed
// set.
type ErrDatabaseUnavailable struct {
	Name   string
	Reason string
}

func (e *ErrDatabaseUnavailable) Error() string {
	return fmt.Sprintf("database %q unavailable: %s", e.Name, e.Reason)
}

// ErrDatabaseUnknown is raised by Acquire when name was never configured.
type ErrDatabaseUnknown struct {
	Name string
}

func (e *ErrDatabaseUnknown) Error() string {
	return fmt.Sprintf("database %q is not configured", e.Name)
}
