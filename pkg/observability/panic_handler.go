package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic in a background goroutine and logs it.
// Call it via defer; the panic is not re-raised.
//
//	go func() {
//	    defer observability.RecoverPanic(logger, "health server")
//	    ...
//	}()
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logger.WithFields(map[string]interface{}{
			"panic":   fmt.Sprint(r),
			"stack":   string(debug.Stack()),
			"context": where,
		}).Error("PANIC recovered")
	}
}
