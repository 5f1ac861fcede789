// Package hooks implements the `deepwork hook <name>` entry point: a small
// registry of built-in hook programs an agent harness can invoke around its
// own lifecycle events.
package hooks

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Namespace is the fully qualified prefix for built-in hooks. Short names
// resolve under it, so "session_guard" and "deepwork.hooks.session_guard"
// name the same hook.
const Namespace = "deepwork.hooks."

// Func is a hook entry point. It reads the harness payload from stdin and
// returns its process exit code.
type Func func(stdin io.Reader, stdout, stderr io.Writer) int

var registry = map[string]Func{
	"session_guard": sessionGuard,
	"format_notice": formatNotice,
}

// Resolve finds a hook by short or fully qualified name.
func Resolve(name string) (Func, bool) {
	short := strings.TrimPrefix(name, Namespace)
	fn, ok := registry[short]
	return fn, ok
}

// Run resolves and executes a hook, returning its exit code. A missing
// hook is a clean error on stderr with exit code 1.
func Run(name string) int {
	fn, ok := Resolve(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: no hook named '%s' (known hooks: %s)\n", name, strings.Join(Names(), ", "))
		return 1
	}
	return fn(os.Stdin, os.Stdout, os.Stderr)
}

// Names lists the registered short hook names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
