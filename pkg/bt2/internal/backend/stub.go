//go:build !cgo || !babeltrace2

package backend

// New returns the native implementation. Binaries built without cgo or
// without the babeltrace2 tag only get ErrNotBuilt.
func New() (API, error) {
	return nil, ErrNotBuilt
}

// Version returns the version string from the native library, or empty if not available.
func Version() string { return "" }
