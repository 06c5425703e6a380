package logging

import (
	"fmt"
	"runtime/debug"
)

// PanicError is returned by WrapError when fn panicked.
type PanicError struct {
	Component string
	Value     interface{}
	Stack     string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Component, e.Value)
}

// WrapError runs fn and converts a panic into a *PanicError, logging the
// stack at error level.
func (l *Logger) WrapError(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pe := &PanicError{Component: l.component, Value: rec, Stack: string(debug.Stack())}
			l.Error("panic_recovered", map[string]interface{}{"stack": pe.Stack}, pe)
			err = pe
		}
	}()
	return fn()
}
