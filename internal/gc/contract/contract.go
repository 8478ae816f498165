// Package contract implements the fatal assertions used by the collector
// scope guards.
//
// A failed check means the collector's invariants are already broken, so
// checks panic with a *Violation instead of returning an error. Nothing in
// this module recovers a Violation; left alone it terminates the process
// after deferred guard releases have run.
package contract

import "fmt"

// Violation describes a broken programming contract.
type Violation struct {
	Message string
}

func (v *Violation) Error() string {
	return "contract violation: " + v.Message
}

// Check panics with a Violation when cond is false.
func Check(cond bool, msg string) {
	if !cond {
		panic(&Violation{Message: msg})
	}
}

// Checkf is Check with a formatted message. The message is only built on
// failure.
func Checkf(cond bool, format string, args ...any) {
	if !cond {
		panic(&Violation{Message: fmt.Sprintf(format, args...)})
	}
}

// DebugCheck behaves like Check in debug-checked builds and does nothing
// when the module is built with the gcscope_release tag.
func DebugCheck(cond bool, msg string) {
	if Debug && !cond {
		panic(&Violation{Message: msg})
	}
}
