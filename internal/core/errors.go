package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the module system.
var (
	// ErrUnknownModule indicates an ID or extension name absent from the catalog.
	ErrUnknownModule = errors.New("core: unknown module")

	// ErrServiceExists indicates a second registration under the same service name.
	ErrServiceExists = errors.New("core: service already registered")
)

// PluginLoadError reports an extension that could not be instantiated.
// It is fatal: the process must not serve requests with a partial
// extension set.
type PluginLoadError struct {
	// Name is the extension's configuration name.
	Name string

	// Err is the underlying cause.
	Err error

	// Stack is the goroutine stack captured when loading panicked.
	// It is nil for plain error returns.
	Stack []byte
}

func (e *PluginLoadError) Error() string {
	return fmt.Sprintf("loading extension %s: %v", e.Name, e.Err)
}

func (e *PluginLoadError) Unwrap() error { return e.Err }
