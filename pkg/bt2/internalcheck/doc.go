// Package internalcheck holds source-level policy tests for the bt2
// bindings.
//
// The tests load the wrapper packages with golang.org/x/tools/go/packages
// and walk their syntax trees. They check that reference counts are only
// touched through the internal own package and that native handle
// addresses never reach formatted output.
//
// # Internal Use Only
//
// This package has no API. It is not intended to be imported.
package internalcheck
