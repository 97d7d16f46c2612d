// Package bt2 exposes ownership-safe Go bindings for libbabeltrace2.
//
// Every libbabeltrace2 object is reached through a wrapper that records
// whether it owns a reference. Owned wrappers (graphs, plugins, values,
// message iterators, messages, classes created from Go) release their
// reference exactly once on Close, with a finalizer as a safety net. Borrowed
// wrappers (components, ports, events, fields, streams, traces) never release
// anything and keep their parent reachable; Acquire turns a borrowed wrapper
// into an owned one where the library allows it.
//
// Failures are returned as *Error values whose Kind is one of
// KindInvalidArgument, KindResourceExhausted, KindNotFound, KindUnsupported
// or KindFatal. Invalid arguments are rejected before the library is called.
//
// The native bindings need cgo, the babeltrace2 build tag and a built copy
// of the vendored sources in third_party/babeltrace (UpstreamSources):
//
//	cd third_party/babeltrace
//	./bootstrap && ./configure --prefix="$PWD/build" --enable-built-in-plugins
//	make && make install
//	cd ../.. && go build -tags babeltrace2 ./...
//
// The binding compiles against that tree's private headers and links its
// build/lib libraries; a system-wide libbabeltrace2 is not used. Only glib
// and gmodule come from pkg-config. Without the tag Open returns
// ErrNotBuilt, so the package compiles everywhere.
//
// TraceIterator and LiveStream assemble the usual source.ctf.fs (or
// source.ctf.lttng-live) -> filter.utils.muxer -> sink pipeline, with a sink
// implemented in Go that turns events into OwnedEvent values.
package bt2
