// Package verbose provides the debug and trace output channel used by
// the resolver and the transaction driver. Output goes to stderr and is
// disabled unless the embedder enables it.
package verbose

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

var (
	mu      sync.RWMutex
	enabled bool
	debug   bool
	writer  io.Writer = os.Stderr
)

// Enable turns on verbose messages.
func Enable() {
	mu.Lock()
	defer mu.Unlock()
	enabled = true
}

// Disable turns off verbose and debug messages.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	enabled = false
	debug = false
}

// EnableDebug turns on debug traces (implies verbose).
func EnableDebug() {
	mu.Lock()
	defer mu.Unlock()
	enabled = true
	debug = true
}

// IsEnabled reports whether verbose messages are printed.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// IsDebug reports whether debug traces are printed.
func IsDebug() bool {
	mu.RLock()
	defer mu.RUnlock()
	return debug
}

// SetWriter redirects output; tests use this to capture messages.
// Returns the previous writer.
func SetWriter(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := writer
	writer = w
	return prev
}

// Printf prints a verbose message.
func Printf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if !enabled {
		return
	}
	fmt.Fprintf(writer, format, args...)
}

// Debugf prints a debug trace message.
func Debugf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if !debug {
		return
	}
	fmt.Fprintf(writer, "[debug] "+format, args...)
}

// Tracef prints a debug trace message indented by depth spaces. The
// resolver uses it so nested dependency chains read as a tree.
func Tracef(depth int, format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if !debug {
		return
	}
	fmt.Fprintf(writer, "[debug] %s"+format, append([]interface{}{strings.Repeat(" ", depth)}, args...)...)
}
