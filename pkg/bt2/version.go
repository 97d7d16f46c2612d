package bt2

import "github.com/tracewire/bt2-go/pkg/bt2/internal/backend"

// Version is the wrapper's semantic version, set at build time via ldflags.
var Version = "v0.0.0-in-progress"

const (
	// UpstreamPinned is the libbabeltrace2 release vendored in
	// UpstreamSources. Open refuses a linked library from another minor
	// release.
	UpstreamPinned = backend.PinnedRelease

	// UpstreamSources is the vendored libbabeltrace2 tree, relative to the
	// module root, that the native bindings are compiled and linked from.
	UpstreamSources = backend.SourceTree
)

// ErrVersionMismatch reports a linked libbabeltrace2 from another minor
// release than UpstreamPinned.
var ErrVersionMismatch = backend.ErrVersionMismatch

// WrapperVersion returns the semantic version populated at build time via
// ldflags. In development it defaults to v0.0.0-in-progress.
func WrapperVersion() string {
	return Version
}

// UpstreamVersion returns the version reported by the linked libbabeltrace2
// if available; otherwise it falls back to the pinned upstream release.
func UpstreamVersion() string {
	if v := backend.Version(); v != "" {
		return v
	}
	return UpstreamPinned
}

// UpstreamLinked reports whether the native bindings were built into the
// binary.
func UpstreamLinked() bool {
	return backend.Version() != ""
}

// UpstreamBuild describes where the libbabeltrace2 in use comes from.
func UpstreamBuild() string {
	if !UpstreamLinked() {
		return "not linked, build " + UpstreamSources + " then use -tags babeltrace2"
	}
	return "linked from " + UpstreamSources + "/build"
}
