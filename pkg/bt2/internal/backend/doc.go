// Package backend hosts the thin cgo layer that links the Go API to
// libbabeltrace2. Every wrapped C function is one method of API; handles
// cross the boundary as opaque Ptr values and results come back as raw
// Status codes. The native implementation lives behind the babeltrace2 build
// tag so that the rest of the repository compiles without cgo or the library.
//
// The cgo directives point at the vendored tree named by SourceTree: headers
// from its include/, src/ and src/plugins/ctf directories, libraries from
// its build/lib directory. That tree must be built before compiling with
// the tag; see the bt2 package documentation.
package backend
