//go:build !release

package assert

import "fmt"

// That panics with the formatted message if cond is false. Use it for invariants whose violation
// means the runtime itself is broken, never for caller errors.
func That(cond bool, format string, args ...any) { //nolint:goprintffuncname // it's ok
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
