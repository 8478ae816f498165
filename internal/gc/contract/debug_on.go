//go:build !gcscope_release

package contract

// Debug reports whether debug-only contract checks are compiled in.
const Debug = true
