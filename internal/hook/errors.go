package hook

import (
	"errors"
	"fmt"
)

// ErrCapabilityMismatch indicates an extension whose declared capabilities
// disagree with the interfaces it implements.
var ErrCapabilityMismatch = errors.New("hook: capability mismatch")

// ExtensionFault reports an extension that failed unexpectedly while
// running a hook. The request that triggered it fails; the process and
// other requests are unaffected.
type ExtensionFault struct {
	Extension string
	Kind      Kind
	Err       error

	// Stack is captured when the extension panicked.
	Stack []byte
}

func (e *ExtensionFault) Error() string {
	return fmt.Sprintf("extension %s failed in %s: %v", e.Extension, e.Kind, e.Err)
}

func (e *ExtensionFault) Unwrap() error { return e.Err }
