//go:build pagekit_debug

package assert

// Enabled reports whether assertions are compiled in.
const Enabled = true

// That panics when cond is false. The message should name the violated
// contract, not the caller.
func That(cond bool, msg string) {
	if !cond {
		panic("assert: " + msg)
	}
}
