package observability

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// RecoverToError converts a panic into an error stored in *errp.
//
// Usage in defer statements:
//
//	func mutate() (err error) {
//	    defer observability.RecoverToError(logger, "artifact mutation", &err)
//	    // ... code that might panic
//	}
//
// The stack trace is logged at Error level. An error already stored in *errp
// is kept when no panic happened.
func RecoverToError(logger *logrus.Logger, context string, errp *error) {
	if r := recover(); r != nil {
		OrDefault(logger).WithFields(logrus.Fields{
			"panic":   r,
			"stack":   string(debug.Stack()),
			"context": context,
		}).Error("PANIC recovered")
		*errp = fmt.Errorf("panic in %s: %v", context, r)
	}
}
