//go:build cgo && babeltrace2

package backend

/*
#cgo pkg-config: glib-2.0 gmodule-2.0
#cgo CFLAGS: -I${SRCDIR}/../../../../third_party/babeltrace/include
#cgo CFLAGS: -I${SRCDIR}/../../../../third_party/babeltrace/src
#cgo CFLAGS: -I${SRCDIR}/../../../../third_party/babeltrace/src/plugins/ctf
#cgo CFLAGS: -Wno-deprecated-declarations
#cgo LDFLAGS: -L${SRCDIR}/../../../../third_party/babeltrace/build/lib
#cgo LDFLAGS: -L${SRCDIR}/../../../../third_party/babeltrace/build/lib/babeltrace2/plugins
#cgo LDFLAGS: -lbabeltrace-plugin-ctf -lbabeltrace-plugin-utils -lbabeltrace2 -lbabeltrace2-ctf-writer
#cgo linux LDFLAGS: -Wl,--allow-multiple-definition

#include <errno.h>
#include <stdint.h>
#include <stdio.h>
#include <stdlib.h>
#include <string.h>
#include <glib.h>
#include <babeltrace2/babeltrace.h>
#include "lib/graph/component-class.h"
#include "lib/graph/component.h"
#include "common/metadata/decoder.h"
#include "common/msg-iter/msg-iter.h"

extern int btgoSinkInitialize(bt_self_component_sink *self, uintptr_t h);
extern int btgoSinkGraphIsConfigured(bt_self_component_sink *self, uintptr_t h);
extern int btgoSinkConsume(bt_self_component_sink *self, uintptr_t h);
extern void btgoSinkFinalize(bt_self_component_sink *self, uintptr_t h);
extern int btgoSourceInitialize(bt_self_component_source *self, uintptr_t h);
extern int btgoSourceNext(bt_self_message_iterator *it, uintptr_t h,
	bt_message **msgs, uint64_t capacity, uint64_t *count);
extern void btgoSourceFinalize(bt_self_component_source *self, uintptr_t h);

static uintptr_t btgo_sink_handle(bt_self_component_sink *self)
{
	return (uintptr_t) bt_self_component_get_data(
		bt_self_component_sink_as_self_component(self));
}

static bt_component_class_initialize_method_status btgo_sink_init(
		bt_self_component_sink *self,
		bt_self_component_sink_configuration *config,
		const bt_value *params, void *init_data)
{
	(void) config;
	(void) params;
	bt_self_component_set_data(
		bt_self_component_sink_as_self_component(self), init_data);
	return (bt_component_class_initialize_method_status)
		btgoSinkInitialize(self, (uintptr_t) init_data);
}

static bt_component_class_sink_graph_is_configured_method_status
btgo_sink_graph_is_configured(bt_self_component_sink *self)
{
	return (bt_component_class_sink_graph_is_configured_method_status)
		btgoSinkGraphIsConfigured(self, btgo_sink_handle(self));
}

static bt_component_class_sink_consume_method_status btgo_sink_consume(
		bt_self_component_sink *self)
{
	return (bt_component_class_sink_consume_method_status)
		btgoSinkConsume(self, btgo_sink_handle(self));
}

static void btgo_sink_finalize(bt_self_component_sink *self)
{
	btgoSinkFinalize(self, btgo_sink_handle(self));
}

static bt_component_class_sink *btgo_sink_class_create(const char *name)
{
	bt_component_class_sink *cls;

	cls = bt_component_class_sink_create(name, btgo_sink_consume);
	if (!cls) {
		return NULL;
	}
	if (bt_component_class_sink_set_initialize_method(cls, btgo_sink_init) ||
			bt_component_class_sink_set_graph_is_configured_method(
				cls, btgo_sink_graph_is_configured) ||
			bt_component_class_sink_set_finalize_method(cls,
				btgo_sink_finalize)) {
		bt_component_class_sink_put_ref(cls);
		return NULL;
	}
	return cls;
}

static int btgo_graph_add_sink(bt_graph *graph,
		const bt_component_class_sink *cls, const char *name,
		const bt_value *params, uintptr_t h, bt_logging_level lvl,
		const bt_component_sink **comp)
{
	if (h == 0) {
		return bt_graph_add_sink_component(graph, cls, name, params, lvl,
			comp);
	}
	return bt_graph_add_sink_component_with_initialize_method_data(graph,
		cls, name, params, (void *) h, lvl, comp);
}

static uintptr_t btgo_source_handle(bt_self_component_source *self)
{
	return (uintptr_t) bt_self_component_get_data(
		bt_self_component_source_as_self_component(self));
}

static bt_component_class_initialize_method_status btgo_source_init(
		bt_self_component_source *self,
		bt_self_component_source_configuration *config,
		const bt_value *params, void *init_data)
{
	(void) config;
	(void) params;
	bt_self_component_set_data(
		bt_self_component_source_as_self_component(self), init_data);
	return (bt_component_class_initialize_method_status)
		btgoSourceInitialize(self, (uintptr_t) init_data);
}

static void btgo_source_finalize(bt_self_component_source *self)
{
	btgoSourceFinalize(self, btgo_source_handle(self));
}

static bt_message_iterator_class_initialize_method_status
btgo_source_iter_init(bt_self_message_iterator *it,
		bt_self_message_iterator_configuration *config,
		bt_self_component_port_output *port)
{
	(void) config;
	(void) port;
	bt_self_message_iterator_set_data(it, bt_self_component_get_data(
		bt_self_message_iterator_borrow_component(it)));
	return BT_MESSAGE_ITERATOR_CLASS_INITIALIZE_METHOD_STATUS_OK;
}

static bt_message_iterator_class_next_method_status btgo_source_iter_next(
		bt_self_message_iterator *it, bt_message_array_const msgs,
		uint64_t capacity, uint64_t *count)
{
	return (bt_message_iterator_class_next_method_status) btgoSourceNext(it,
		(uintptr_t) bt_self_message_iterator_get_data(it),
		(bt_message **) msgs, capacity, count);
}

static bt_component_class_source *btgo_source_class_create(const char *name)
{
	bt_message_iterator_class *it_cls;
	bt_component_class_source *cls = NULL;

	it_cls = bt_message_iterator_class_create(btgo_source_iter_next);
	if (!it_cls) {
		return NULL;
	}
	if (bt_message_iterator_class_set_initialize_method(it_cls,
			btgo_source_iter_init)) {
		goto end;
	}
	cls = bt_component_class_source_create(name, it_cls);
	if (!cls) {
		goto end;
	}
	if (bt_component_class_source_set_initialize_method(cls,
				btgo_source_init) ||
			bt_component_class_source_set_finalize_method(cls,
				btgo_source_finalize)) {
		bt_component_class_source_put_ref(cls);
		cls = NULL;
	}
end:
	bt_message_iterator_class_put_ref(it_cls);
	return cls;
}

static int btgo_graph_add_source(bt_graph *graph,
		const bt_component_class_source *cls, const char *name,
		const bt_value *params, uintptr_t h, bt_logging_level lvl,
		const bt_component_source **comp)
{
	if (h == 0) {
		return bt_graph_add_source_component(graph, cls, name, params,
			lvl, comp);
	}
	return bt_graph_add_source_component_with_initialize_method_data(graph,
		cls, name, params, (void *) h, lvl, comp);
}

static bt_trace_class *btgo_trace_class_create(bt_self_component_source *self)
{
	return bt_trace_class_create(
		bt_self_component_source_as_self_component(self));
}

static bt_clock_class *btgo_clock_class_create(bt_self_component_source *self,
		uint64_t freq, int64_t off_s, uint64_t off_cycles,
		uint64_t precision, int unix_epoch, const char *name,
		const char *desc, const uint8_t *uuid)
{
	bt_clock_class *cc = bt_clock_class_create(
		bt_self_component_source_as_self_component(self));

	if (!cc) {
		return NULL;
	}
	bt_clock_class_set_frequency(cc, freq);
	bt_clock_class_set_offset(cc, off_s, off_cycles);
	bt_clock_class_set_precision(cc, precision);
	bt_clock_class_set_origin_is_unix_epoch(cc,
		unix_epoch ? BT_TRUE : BT_FALSE);
	if ((name && bt_clock_class_set_name(cc, name)) ||
			(desc && bt_clock_class_set_description(cc, desc))) {
		bt_clock_class_put_ref(cc);
		return NULL;
	}
	if (uuid) {
		bt_clock_class_set_uuid(cc, uuid);
	}
	return cc;
}

static bt_stream_class *btgo_stream_class_create(bt_trace_class *tc,
		bt_clock_class *cc)
{
	bt_stream_class *sc = bt_stream_class_create(tc);

	if (sc && cc && bt_stream_class_set_default_clock_class(sc, cc)) {
		bt_stream_class_put_ref(sc);
		return NULL;
	}
	return sc;
}

static bt_event_class *btgo_event_class_create(bt_stream_class *sc,
		const char *name, bt_field_class *payload)
{
	bt_event_class *ec = bt_event_class_create(sc);

	if (!ec) {
		return NULL;
	}
	if (bt_event_class_set_name(ec, name) || (payload &&
			bt_event_class_set_payload_field_class(ec, payload))) {
		bt_event_class_put_ref(ec);
		return NULL;
	}
	return ec;
}

static bt_field_class *btgo_field_class_create(bt_trace_class *tc,
		uint64_t type)
{
	switch (type) {
	case BT_FIELD_CLASS_TYPE_BOOL:
		return bt_field_class_bool_create(tc);
	case BT_FIELD_CLASS_TYPE_UNSIGNED_INTEGER:
		return bt_field_class_integer_unsigned_create(tc);
	case BT_FIELD_CLASS_TYPE_SIGNED_INTEGER:
		return bt_field_class_integer_signed_create(tc);
	case BT_FIELD_CLASS_TYPE_SINGLE_PRECISION_REAL:
		return bt_field_class_real_single_precision_create(tc);
	case BT_FIELD_CLASS_TYPE_DOUBLE_PRECISION_REAL:
		return bt_field_class_real_double_precision_create(tc);
	case BT_FIELD_CLASS_TYPE_STRING:
		return bt_field_class_string_create(tc);
	case BT_FIELD_CLASS_TYPE_STRUCTURE:
		return bt_field_class_structure_create(tc);
	default:
		return NULL;
	}
}

static bt_message *btgo_message_event_create(bt_self_message_iterator *it,
		const bt_event_class *ec, const bt_stream *stream,
		uint64_t cycles, int with_clock)
{
	if (with_clock) {
		return bt_message_event_create_with_default_clock_snapshot(it,
			ec, stream, cycles);
	}
	return bt_message_event_create(it, ec, stream);
}

static bt_field *btgo_message_event_payload(bt_message *msg)
{
	return bt_event_borrow_payload_field(bt_message_event_borrow_event(msg));
}

static bt_value_map_foreach_entry_const_func_status btgo_collect_key(
		const char *key, const bt_value *object, void *data)
{
	(void) object;
	g_ptr_array_add((GPtrArray *) data, g_strdup(key));
	return BT_VALUE_MAP_FOREACH_ENTRY_CONST_FUNC_STATUS_OK;
}

static GPtrArray *btgo_value_map_keys(const bt_value *map)
{
	GPtrArray *keys = g_ptr_array_new_with_free_func(g_free);

	if (bt_value_map_foreach_entry_const(map, btgo_collect_key, keys)) {
		g_ptr_array_free(keys, TRUE);
		return NULL;
	}
	return keys;
}

static const char *btgo_ptr_array_str(GPtrArray *a, guint i)
{
	return (const char *) g_ptr_array_index(a, i);
}

static const bt_clock_snapshot *btgo_event_clock_snapshot(const bt_message *msg)
{
	if (!bt_message_event_borrow_stream_class_default_clock_class_const(msg)) {
		return NULL;
	}
	return bt_message_event_borrow_default_clock_snapshot_const(msg);
}

static const bt_clock_class *btgo_stream_clock_class(const bt_stream *stream)
{
	return bt_stream_class_borrow_default_clock_class_const(
		bt_stream_borrow_class_const(stream));
}

static const char *btgo_structure_member_name(const bt_field *field, uint64_t i)
{
	const bt_field_class *fc = bt_field_borrow_class_const(field);

	return bt_field_class_structure_member_get_name(
		bt_field_class_structure_borrow_member_by_index_const(fc, i));
}

static uint64_t btgo_structure_member_count(const bt_field *field)
{
	return bt_field_class_structure_get_member_count(
		bt_field_borrow_class_const(field));
}

static bt_value *btgo_value_null(void)
{
	return bt_value_null;
}

struct btgo_forged {
	struct bt_component_class cls;
	struct bt_component *comp;
};

static void btgo_forged_destroy(struct btgo_forged *f)
{
	if (!f) {
		return;
	}
	if (f->comp) {
		bt_component_put_ref((const bt_component *) f->comp);
	}
	if (f->cls.name) {
		g_string_free(f->cls.name, TRUE);
	}
	if (f->cls.plugin_name) {
		g_string_free(f->cls.plugin_name, TRUE);
	}
	bt_current_thread_clear_error();
	g_free(f);
}

static int btgo_forge(const char *name, bt_logging_level lvl,
		struct btgo_forged **out)
{
	struct btgo_forged *f = g_new0(struct btgo_forged, 1);
	int ret;

	if (!f) {
		return BT_FUNC_STATUS_MEMORY_ERROR;
	}
	f->cls.name = g_string_new(name);
	f->cls.plugin_name = g_string_new(name);
	f->cls.type = BT_COMPONENT_CLASS_TYPE_SOURCE;
	f->cls.base.is_shared = true;
	f->cls.base.ref_count = 1;
	ret = bt_component_create(&f->cls, name, lvl, &f->comp);
	if (ret) {
		btgo_forged_destroy(f);
		return ret;
	}
	*out = f;
	return 0;
}

static bt_self_component *btgo_forged_self(struct btgo_forged *f)
{
	return (bt_self_component *) f->comp;
}

static struct ctf_metadata_decoder *btgo_decoder_create(bt_logging_level lvl,
		bt_self_component *self, int64_t off_s, int64_t off_ns,
		int force_epoch, int create_tc, int keep_text)
{
	struct ctf_metadata_decoder_config cfg;

	memset(&cfg, 0, sizeof(cfg));
	cfg.log_level = lvl;
	cfg.self_comp = self;
	cfg.clock_class_offset_s = off_s;
	cfg.clock_class_offset_ns = off_ns;
	cfg.force_clock_class_origin_unix_epoch = force_epoch;
	cfg.create_trace_class = create_tc;
	cfg.keep_plain_text = keep_text;
	return ctf_metadata_decoder_create(&cfg);
}

static int btgo_decoder_append_file(struct ctf_metadata_decoder *dec,
		const char *path, int *err)
{
	FILE *fp = fopen(path, "rb");
	int ret;

	if (!fp) {
		*err = errno;
		return CTF_METADATA_DECODER_STATUS_ERROR;
	}
	ret = ctf_metadata_decoder_append_content(dec, fp);
	fclose(fp);
	return ret;
}

struct btgo_medium {
	const uint8_t *buf;
	size_t len;
	size_t pos;
	int has_buf;
};

struct btgo_msg_iter {
	struct ctf_msg_iter *it;
	struct btgo_medium med;
};

static enum ctf_msg_iter_medium_status btgo_medium_request_bytes(
		size_t request_sz, uint8_t **buffer_addr, size_t *buffer_sz,
		void *data)
{
	struct btgo_medium *med = data;
	size_t n;

	*buffer_addr = NULL;
	*buffer_sz = 0;
	if (!med || !med->has_buf) {
		return CTF_MSG_ITER_MEDIUM_STATUS_ERROR;
	}
	if (med->len == 0) {
		return CTF_MSG_ITER_MEDIUM_STATUS_AGAIN;
	}
	if (med->pos >= med->len) {
		return CTF_MSG_ITER_MEDIUM_STATUS_EOF;
	}
	n = med->len - med->pos;
	if (n > request_sz) {
		n = request_sz;
	}
	*buffer_addr = (uint8_t *) med->buf + med->pos;
	*buffer_sz = n;
	med->pos += n;
	return CTF_MSG_ITER_MEDIUM_STATUS_OK;
}

static enum ctf_msg_iter_medium_status btgo_medium_switch_packet(void *data)
{
	return data ? CTF_MSG_ITER_MEDIUM_STATUS_OK :
		CTF_MSG_ITER_MEDIUM_STATUS_ERROR;
}

static bt_stream *btgo_medium_borrow_stream(bt_stream_class *sc,
		int64_t stream_id, void *data)
{
	(void) sc;
	(void) stream_id;
	(void) data;
	return NULL;
}

static struct btgo_msg_iter *btgo_msg_iter_create(struct ctf_trace_class *tc,
		size_t max_request_sz, bt_logging_level lvl, bt_self_component *self)
{
	struct btgo_msg_iter *w = g_new0(struct btgo_msg_iter, 1);
	struct ctf_msg_iter_medium_ops ops;

	if (!w) {
		return NULL;
	}
	memset(&ops, 0, sizeof(ops));
	ops.request_bytes = btgo_medium_request_bytes;
	ops.switch_packet = btgo_medium_switch_packet;
	ops.borrow_stream = btgo_medium_borrow_stream;
	w->it = ctf_msg_iter_create(tc, max_request_sz, ops, &w->med, lvl, self,
		NULL);
	if (!w->it) {
		g_free(w);
		return NULL;
	}
	return w;
}

static void btgo_msg_iter_destroy(struct btgo_msg_iter *w)
{
	if (!w) {
		return;
	}
	ctf_msg_iter_destroy(w->it);
	g_free(w);
}

static int btgo_msg_iter_packet_properties(struct btgo_msg_iter *w,
		const uint8_t *buf, size_t len,
		struct ctf_msg_iter_packet_properties *props)
{
	int ret;

	w->med.buf = buf;
	w->med.len = len;
	w->med.pos = 0;
	w->med.has_buf = 1;
	ret = ctf_msg_iter_get_packet_properties(w->it, props);
	memset(&w->med, 0, sizeof(w->med));
	return ret;
}
*/
import "C"

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

type native struct{}

// New returns the cgo implementation of API. It refuses a library from
// another minor release than the one in SourceTree.
func New() (API, error) {
	if v := Version(); !CompatibleRelease(v) {
		return nil, fmt.Errorf("%w: linked %s, %s holds %s", ErrVersionMismatch, v, SourceTree, PinnedRelease)
	}
	return native{}, nil
}

// Version returns the version string from the native library, or empty if not available.
func Version() string {
	return fmt.Sprintf("%d.%d.%d", C.bt_version_get_major(), C.bt_version_get_minor(), C.bt_version_get_patch())
}

func (native) Version() string { return Version() }

func cbool(b bool) C.bt_bool {
	if b {
		return C.BT_TRUE
	}
	return C.BT_FALSE
}

func goString(s *C.char) (string, bool) {
	if s == nil {
		return "", false
	}
	return C.GoString(s), true
}

func (native) GetRef(k Kind, p Ptr) {
	switch k {
	case KindGraph:
		C.bt_graph_get_ref((*C.bt_graph)(p))
	case KindPlugin:
		C.bt_plugin_get_ref((*C.bt_plugin)(p))
	case KindComponentClass:
		C.bt_component_class_get_ref((*C.bt_component_class)(p))
	case KindComponent:
		C.bt_component_get_ref((*C.bt_component)(p))
	case KindValue:
		C.bt_value_get_ref((*C.bt_value)(p))
	case KindMessageIterator:
		C.bt_message_iterator_get_ref((*C.bt_message_iterator)(p))
	case KindMessage:
		C.bt_message_get_ref((*C.bt_message)(p))
	case KindTrace:
		C.bt_trace_get_ref((*C.bt_trace)(p))
	case KindTraceClass:
		C.bt_trace_class_get_ref((*C.bt_trace_class)(p))
	case KindStream:
		C.bt_stream_get_ref((*C.bt_stream)(p))
	case KindClockClass:
		C.bt_clock_class_get_ref((*C.bt_clock_class)(p))
	case KindStreamClass:
		C.bt_stream_class_get_ref((*C.bt_stream_class)(p))
	case KindEventClass:
		C.bt_event_class_get_ref((*C.bt_event_class)(p))
	case KindFieldClass:
		C.bt_field_class_get_ref((*C.bt_field_class)(p))
	}
}

func (native) PutRef(k Kind, p Ptr) {
	switch k {
	case KindGraph:
		C.bt_graph_put_ref((*C.bt_graph)(p))
	case KindPlugin:
		C.bt_plugin_put_ref((*C.bt_plugin)(p))
	case KindComponentClass:
		C.bt_component_class_put_ref((*C.bt_component_class)(p))
	case KindComponent:
		C.bt_component_put_ref((*C.bt_component)(p))
	case KindValue:
		C.bt_value_put_ref((*C.bt_value)(p))
	case KindMessageIterator:
		C.bt_message_iterator_put_ref((*C.bt_message_iterator)(p))
	case KindMessage:
		C.bt_message_put_ref((*C.bt_message)(p))
	case KindTrace:
		C.bt_trace_put_ref((*C.bt_trace)(p))
	case KindTraceClass:
		C.bt_trace_class_put_ref((*C.bt_trace_class)(p))
	case KindStream:
		C.bt_stream_put_ref((*C.bt_stream)(p))
	case KindClockClass:
		C.bt_clock_class_put_ref((*C.bt_clock_class)(p))
	case KindStreamClass:
		C.bt_stream_class_put_ref((*C.bt_stream_class)(p))
	case KindEventClass:
		C.bt_event_class_put_ref((*C.bt_event_class)(p))
	case KindFieldClass:
		C.bt_field_class_put_ref((*C.bt_field_class)(p))
	case KindMetadataDecoder:
		C.ctf_metadata_decoder_destroy((*C.struct_ctf_metadata_decoder)(p))
	case KindCTFMessageIterator:
		C.btgo_msg_iter_destroy((*C.struct_btgo_msg_iter)(p))
	case KindForgedComponent:
		C.btgo_forged_destroy((*C.struct_btgo_forged)(p))
	}
}

func (native) CurrentThreadClearError() { C.bt_current_thread_clear_error() }

func (native) SetGlobalLoggingLevel(l LoggingLevel) {
	C.bt_logging_set_global_level(C.bt_logging_level(l))
}

func (native) GlobalLoggingLevel() LoggingLevel {
	return LoggingLevel(C.bt_logging_get_global_level())
}

func (native) GraphCreate(mipVersion uint64) Ptr {
	return Ptr(C.bt_graph_create(C.uint64_t(mipVersion)))
}

func (native) GraphAddSourceComponent(g, cls Ptr, name string, params Ptr, m SourceMethods, lvl LoggingLevel) (Ptr, Status) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var state *callbacks
	var h C.uintptr_t
	if m != nil {
		state = newCallbacks(nil, m)
		h = C.uintptr_t(state.handle)
	}

	var comp *C.bt_component_source
	st := C.btgo_graph_add_source((*C.bt_graph)(g), (*C.bt_component_class_source)(cls), cname,
		(*C.bt_value)(params), h, C.bt_logging_level(lvl), &comp)
	if Status(st) != StatusOK && state != nil {
		state.release()
	}
	return Ptr(comp), Status(st)
}

func (native) GraphAddFilterComponent(g, cls Ptr, name string, params Ptr, lvl LoggingLevel) (Ptr, Status) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var comp *C.bt_component_filter
	st := C.bt_graph_add_filter_component((*C.bt_graph)(g), (*C.bt_component_class_filter)(cls), cname,
		(*C.bt_value)(params), C.bt_logging_level(lvl), &comp)
	return Ptr(comp), Status(st)
}

func (native) GraphAddSinkComponent(g, cls Ptr, name string, params Ptr, m SinkMethods, lvl LoggingLevel) (Ptr, Status) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var state *callbacks
	var h C.uintptr_t
	if m != nil {
		state = newCallbacks(m, nil)
		h = C.uintptr_t(state.handle)
	}

	var comp *C.bt_component_sink
	st := C.btgo_graph_add_sink((*C.bt_graph)(g), (*C.bt_component_class_sink)(cls), cname,
		(*C.bt_value)(params), h, C.bt_logging_level(lvl), &comp)
	if Status(st) != StatusOK && state != nil {
		// Finalize does not run for a component whose initialization failed.
		state.release()
	}
	return Ptr(comp), Status(st)
}

func (native) GraphConnectPorts(g, out, in Ptr) Status {
	return Status(C.bt_graph_connect_ports((*C.bt_graph)(g), (*C.bt_port_output)(out), (*C.bt_port_input)(in), nil))
}

func (native) GraphRunOnce(g Ptr) Status {
	return Status(C.bt_graph_run_once((*C.bt_graph)(g)))
}

func (native) PluginFind(name string, opts PluginFindOptions) (Ptr, Status) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var p *C.bt_plugin
	st := C.bt_plugin_find(cname, cbool(opts.FindInStdEnvVar), cbool(opts.FindInUserDir),
		cbool(opts.FindInSysDir), cbool(opts.FindInStatic), cbool(opts.FailOnLoadError), &p)
	return Ptr(p), Status(st)
}

func (native) PluginName(p Ptr) string {
	s, _ := goString(C.bt_plugin_get_name((*C.bt_plugin)(p)))
	return s
}

func (native) PluginBorrowSourceComponentClassByName(p Ptr, name string) Ptr {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return Ptr(C.bt_plugin_borrow_source_component_class_by_name_const((*C.bt_plugin)(p), cname))
}

func (native) PluginBorrowFilterComponentClassByName(p Ptr, name string) Ptr {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return Ptr(C.bt_plugin_borrow_filter_component_class_by_name_const((*C.bt_plugin)(p), cname))
}

func (native) PluginBorrowSinkComponentClassByName(p Ptr, name string) Ptr {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return Ptr(C.bt_plugin_borrow_sink_component_class_by_name_const((*C.bt_plugin)(p), cname))
}

func (native) ComponentClassSinkCreate(name string) Ptr {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return Ptr(C.btgo_sink_class_create(cname))
}

func (native) ComponentClassSourceCreate(name string) Ptr {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return Ptr(C.btgo_source_class_create(cname))
}

func (native) ComponentClassName(c Ptr) string {
	s, _ := goString(C.bt_component_class_get_name((*C.bt_component_class)(c)))
	return s
}

func (native) ComponentClassType(c Ptr) ComponentClassType {
	return ComponentClassType(C.bt_component_class_get_type((*C.bt_component_class)(c)))
}

func (native) ComponentName(c Ptr) string {
	s, _ := goString(C.bt_component_get_name((*C.bt_component)(c)))
	return s
}

func (native) ComponentClassTypeOf(c Ptr) ComponentClassType {
	return ComponentClassType(C.bt_component_get_class_type((*C.bt_component)(c)))
}

func (n native) ComponentInputPortCount(c Ptr) uint64 {
	switch n.ComponentClassTypeOf(c) {
	case ComponentClassFilter:
		return uint64(C.bt_component_filter_get_input_port_count((*C.bt_component_filter)(c)))
	case ComponentClassSink:
		return uint64(C.bt_component_sink_get_input_port_count((*C.bt_component_sink)(c)))
	default:
		return 0
	}
}

func (n native) ComponentOutputPortCount(c Ptr) uint64 {
	switch n.ComponentClassTypeOf(c) {
	case ComponentClassSource:
		return uint64(C.bt_component_source_get_output_port_count((*C.bt_component_source)(c)))
	case ComponentClassFilter:
		return uint64(C.bt_component_filter_get_output_port_count((*C.bt_component_filter)(c)))
	default:
		return 0
	}
}

func (n native) ComponentBorrowInputPortByIndex(c Ptr, i uint64) Ptr {
	switch n.ComponentClassTypeOf(c) {
	case ComponentClassFilter:
		return Ptr(C.bt_component_filter_borrow_input_port_by_index_const((*C.bt_component_filter)(c), C.uint64_t(i)))
	case ComponentClassSink:
		return Ptr(C.bt_component_sink_borrow_input_port_by_index_const((*C.bt_component_sink)(c), C.uint64_t(i)))
	default:
		return nil
	}
}

func (n native) ComponentBorrowOutputPortByIndex(c Ptr, i uint64) Ptr {
	switch n.ComponentClassTypeOf(c) {
	case ComponentClassSource:
		return Ptr(C.bt_component_source_borrow_output_port_by_index_const((*C.bt_component_source)(c), C.uint64_t(i)))
	case ComponentClassFilter:
		return Ptr(C.bt_component_filter_borrow_output_port_by_index_const((*C.bt_component_filter)(c), C.uint64_t(i)))
	default:
		return nil
	}
}

func (native) PortName(p Ptr) string {
	s, _ := goString(C.bt_port_get_name((*C.bt_port)(p)))
	return s
}

func (native) PortIsConnected(p Ptr) bool {
	return C.bt_port_is_connected((*C.bt_port)(p)) != C.BT_FALSE
}

func (native) PortType(p Ptr) PortType {
	return PortType(C.bt_port_get_type((*C.bt_port)(p)))
}

func (native) SelfComponentSinkAddInputPort(self Ptr, name string) Status {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return Status(C.bt_self_component_sink_add_input_port((*C.bt_self_component_sink)(self), cname, nil, nil))
}

func (native) SelfComponentSinkBorrowInputPortByIndex(self Ptr, i uint64) Ptr {
	return Ptr(C.bt_self_component_sink_borrow_input_port_by_index((*C.bt_self_component_sink)(self), C.uint64_t(i)))
}

func (native) MessageIteratorCreateFromSinkComponent(self, port Ptr) (Ptr, Status) {
	var it *C.bt_message_iterator
	st := C.bt_message_iterator_create_from_sink_component((*C.bt_self_component_sink)(self),
		(*C.bt_self_component_port_input)(port), &it)
	return Ptr(it), Status(st)
}

func (native) MessageIteratorNext(it Ptr) ([]Ptr, Status) {
	var msgs C.bt_message_array_const
	var count C.uint64_t
	st := Status(C.bt_message_iterator_next((*C.bt_message_iterator)(it), &msgs, &count))
	if st != StatusOK || count == 0 {
		return nil, st
	}
	raw := unsafe.Slice((**C.bt_message)(unsafe.Pointer(msgs)), int(count))
	out := make([]Ptr, len(raw))
	for i, m := range raw {
		out[i] = Ptr(m)
	}
	return out, st
}

func (native) SelfComponentSourceAddOutputPort(self Ptr, name string) Status {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return Status(C.bt_self_component_source_add_output_port((*C.bt_self_component_source)(self), cname, nil, nil))
}

func (native) TraceClassCreate(self Ptr) Ptr {
	return Ptr(C.btgo_trace_class_create((*C.bt_self_component_source)(self)))
}

func optCString(s string, set bool) *C.char {
	if !set {
		return nil
	}
	return C.CString(s)
}

func (native) ClockClassCreate(self Ptr, props ClockClassProperties) Ptr {
	name := optCString(props.Name, props.HasName)
	defer C.free(unsafe.Pointer(name))
	desc := optCString(props.Description, props.HasDesc)
	defer C.free(unsafe.Pointer(desc))
	var uuid *C.uint8_t
	if len(props.UUID) == 16 {
		uuid = (*C.uint8_t)(C.CBytes(props.UUID))
		defer C.free(unsafe.Pointer(uuid))
	}
	return Ptr(C.btgo_clock_class_create((*C.bt_self_component_source)(self), C.uint64_t(props.Frequency),
		C.int64_t(props.OffsetSeconds), C.uint64_t(props.OffsetCycles), C.uint64_t(props.Precision),
		C.int(boolInt(props.UnixEpoch)), name, desc, uuid))
}

func (native) StreamClassCreate(tc, clock Ptr) Ptr {
	return Ptr(C.btgo_stream_class_create((*C.bt_trace_class)(tc), (*C.bt_clock_class)(clock)))
}

func (native) StreamClassBorrowTraceClass(sc Ptr) Ptr {
	return Ptr(C.bt_stream_class_borrow_trace_class((*C.bt_stream_class)(sc)))
}

func (native) EventClassCreate(sc Ptr, name string, payload Ptr) Ptr {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return Ptr(C.btgo_event_class_create((*C.bt_stream_class)(sc), cname, (*C.bt_field_class)(payload)))
}

func (native) FieldClassCreate(tc Ptr, t FieldClassType) Ptr {
	return Ptr(C.btgo_field_class_create((*C.bt_trace_class)(tc), C.uint64_t(t)))
}

func (native) FieldClassStructureAppendMember(st Ptr, name string, member Ptr) Status {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return Status(C.bt_field_class_structure_append_member((*C.bt_field_class)(st), cname, (*C.bt_field_class)(member)))
}

func (native) TraceSetName(t Ptr, name string) Status {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return Status(C.bt_trace_set_name((*C.bt_trace)(t), cname))
}

func (native) StreamCreate(sc, t Ptr) Ptr {
	return Ptr(C.bt_stream_create((*C.bt_stream_class)(sc), (*C.bt_trace)(t)))
}

func (native) StreamBorrowClass(s Ptr) Ptr {
	return Ptr(C.bt_stream_borrow_class_const((*C.bt_stream)(s)))
}

func (native) MessageStreamBeginningCreate(it, s Ptr) Ptr {
	return Ptr(C.bt_message_stream_beginning_create((*C.bt_self_message_iterator)(it), (*C.bt_stream)(s)))
}

func (native) MessageStreamEndCreate(it, s Ptr) Ptr {
	return Ptr(C.bt_message_stream_end_create((*C.bt_self_message_iterator)(it), (*C.bt_stream)(s)))
}

func (native) MessageEventCreate(it, ec, s Ptr, cycles uint64, withClock bool) Ptr {
	return Ptr(C.btgo_message_event_create((*C.bt_self_message_iterator)(it), (*C.bt_event_class)(ec),
		(*C.bt_stream)(s), C.uint64_t(cycles), C.int(boolInt(withClock))))
}

func (native) MessageEventBorrowPayload(m Ptr) Ptr {
	return Ptr(C.btgo_message_event_payload((*C.bt_message)(m)))
}

func (native) FieldBoolSet(f Ptr, v bool) {
	C.bt_field_bool_set_value((*C.bt_field)(f), cbool(v))
}

func (native) FieldUnsignedIntegerSet(f Ptr, v uint64) {
	C.bt_field_integer_unsigned_set_value((*C.bt_field)(f), C.uint64_t(v))
}

func (native) FieldSignedIntegerSet(f Ptr, v int64) {
	C.bt_field_integer_signed_set_value((*C.bt_field)(f), C.int64_t(v))
}

func (native) FieldRealSingleSet(f Ptr, v float32) {
	C.bt_field_real_single_precision_set_value((*C.bt_field)(f), C.float(v))
}

func (native) FieldRealDoubleSet(f Ptr, v float64) {
	C.bt_field_real_double_precision_set_value((*C.bt_field)(f), C.double(v))
}

func (native) FieldStringSet(f Ptr, v string) Status {
	cs := C.CString(v)
	defer C.free(unsafe.Pointer(cs))
	return Status(C.bt_field_string_set_value((*C.bt_field)(f), cs))
}

func (native) MessageType(m Ptr) MessageType {
	return MessageType(C.bt_message_get_type((*C.bt_message)(m)))
}

func (native) MessageStreamBeginningBorrowStream(m Ptr) Ptr {
	return Ptr(C.bt_message_stream_beginning_borrow_stream_const((*C.bt_message)(m)))
}

func (native) MessageStreamEndBorrowStream(m Ptr) Ptr {
	return Ptr(C.bt_message_stream_end_borrow_stream_const((*C.bt_message)(m)))
}

func (native) MessageEventBorrowEvent(m Ptr) Ptr {
	return Ptr(C.bt_message_event_borrow_event_const((*C.bt_message)(m)))
}

func (native) MessageEventBorrowDefaultClockSnapshot(m Ptr) Ptr {
	return Ptr(C.btgo_event_clock_snapshot((*C.bt_message)(m)))
}

func (native) MessageDiscardedEventsCount(m Ptr) (uint64, bool) {
	var n C.uint64_t
	avail := C.bt_message_discarded_events_get_count((*C.bt_message)(m), &n)
	return uint64(n), avail == C.BT_PROPERTY_AVAILABILITY_AVAILABLE
}

func (native) MessageDiscardedPacketsCount(m Ptr) (uint64, bool) {
	var n C.uint64_t
	avail := C.bt_message_discarded_packets_get_count((*C.bt_message)(m), &n)
	return uint64(n), avail == C.BT_PROPERTY_AVAILABILITY_AVAILABLE
}

func (native) EventBorrowClass(e Ptr) Ptr {
	return Ptr(C.bt_event_borrow_class_const((*C.bt_event)(e)))
}

func (native) EventBorrowStream(e Ptr) Ptr {
	return Ptr(C.bt_event_borrow_stream_const((*C.bt_event)(e)))
}

func (native) EventBorrowPayload(e Ptr) Ptr {
	return Ptr(C.bt_event_borrow_payload_field_const((*C.bt_event)(e)))
}

func (native) EventBorrowSpecificContext(e Ptr) Ptr {
	return Ptr(C.bt_event_borrow_specific_context_field_const((*C.bt_event)(e)))
}

func (native) EventBorrowCommonContext(e Ptr) Ptr {
	return Ptr(C.bt_event_borrow_common_context_field_const((*C.bt_event)(e)))
}

func (native) EventClassID(ec Ptr) uint64 {
	return uint64(C.bt_event_class_get_id((*C.bt_event_class)(ec)))
}

func (native) EventClassName(ec Ptr) (string, bool) {
	return goString(C.bt_event_class_get_name((*C.bt_event_class)(ec)))
}

func (native) EventClassLogLevel(ec Ptr) (EventClassLogLevel, bool) {
	var lvl C.bt_event_class_log_level
	avail := C.bt_event_class_get_log_level((*C.bt_event_class)(ec), &lvl)
	return EventClassLogLevel(lvl), avail == C.BT_PROPERTY_AVAILABILITY_AVAILABLE
}

func (native) StreamID(s Ptr) uint64 {
	return uint64(C.bt_stream_get_id((*C.bt_stream)(s)))
}

func (native) StreamName(s Ptr) (string, bool) {
	return goString(C.bt_stream_get_name((*C.bt_stream)(s)))
}

func (native) StreamBorrowTrace(s Ptr) Ptr {
	return Ptr(C.bt_stream_borrow_trace_const((*C.bt_stream)(s)))
}

func (native) StreamBorrowDefaultClockClass(s Ptr) Ptr {
	return Ptr(C.btgo_stream_clock_class((*C.bt_stream)(s)))
}

func (native) TraceName(t Ptr) (string, bool) {
	return goString(C.bt_trace_get_name((*C.bt_trace)(t)))
}

func uuidBytes(u C.bt_uuid) ([]byte, bool) {
	if u == nil {
		return nil, false
	}
	return C.GoBytes(unsafe.Pointer(u), 16), true
}

func (native) TraceUUID(t Ptr) ([]byte, bool) {
	return uuidBytes(C.bt_trace_get_uuid((*C.bt_trace)(t)))
}

func (native) TraceEnvironmentEntryCount(t Ptr) uint64 {
	return uint64(C.bt_trace_get_environment_entry_count((*C.bt_trace)(t)))
}

func (native) TraceEnvironmentEntryByIndex(t Ptr, i uint64) (string, Ptr) {
	var name *C.char
	var value *C.bt_value
	C.bt_trace_borrow_environment_entry_by_index_const((*C.bt_trace)(t), C.uint64_t(i), &name, &value)
	s, _ := goString(name)
	return s, Ptr(value)
}

func (native) ClockClassProperties(cc Ptr) ClockClassProperties {
	c := (*C.bt_clock_class)(cc)
	var sec C.int64_t
	var cycles C.uint64_t
	C.bt_clock_class_get_offset(c, &sec, &cycles)
	p := ClockClassProperties{
		Frequency:     uint64(C.bt_clock_class_get_frequency(c)),
		OffsetSeconds: int64(sec),
		OffsetCycles:  uint64(cycles),
		Precision:     uint64(C.bt_clock_class_get_precision(c)),
		UnixEpoch:     C.bt_clock_class_origin_is_unix_epoch(c) != C.BT_FALSE,
	}
	p.Name, p.HasName = goString(C.bt_clock_class_get_name(c))
	p.Description, p.HasDesc = goString(C.bt_clock_class_get_description(c))
	p.UUID, _ = uuidBytes(C.bt_clock_class_get_uuid(c))
	return p
}

func (native) ClockSnapshotValue(cs Ptr) uint64 {
	return uint64(C.bt_clock_snapshot_get_value((*C.bt_clock_snapshot)(cs)))
}

func (native) ClockSnapshotNsFromOrigin(cs Ptr) (int64, Status) {
	var ns C.int64_t
	st := C.bt_clock_snapshot_get_ns_from_origin((*C.bt_clock_snapshot)(cs), &ns)
	return int64(ns), Status(st)
}

func (native) FieldClassType(f Ptr) FieldClassType {
	return FieldClassType(C.bt_field_get_class_type((*C.bt_field)(f)))
}

func (native) FieldBoolValue(f Ptr) bool {
	return C.bt_field_bool_get_value((*C.bt_field)(f)) != C.BT_FALSE
}

func (native) FieldUnsignedIntegerValue(f Ptr) uint64 {
	return uint64(C.bt_field_integer_unsigned_get_value((*C.bt_field)(f)))
}

func (native) FieldSignedIntegerValue(f Ptr) int64 {
	return int64(C.bt_field_integer_signed_get_value((*C.bt_field)(f)))
}

func (native) FieldRealSingleValue(f Ptr) float32 {
	return float32(C.bt_field_real_single_precision_get_value((*C.bt_field)(f)))
}

func (native) FieldRealDoubleValue(f Ptr) float64 {
	return float64(C.bt_field_real_double_precision_get_value((*C.bt_field)(f)))
}

func (native) FieldStringValue(f Ptr) string {
	field := (*C.bt_field)(f)
	n := C.bt_field_string_get_length(field)
	if n == 0 {
		return ""
	}
	return C.GoStringN(C.bt_field_string_get_value(field), C.int(n))
}

func labelSlice(labels C.bt_field_class_enumeration_mapping_label_array, count C.uint64_t) []string {
	if count == 0 || labels == nil {
		return nil
	}
	raw := unsafe.Slice((**C.char)(unsafe.Pointer(labels)), int(count))
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if s, ok := goString(l); ok {
			out = append(out, s)
		}
	}
	return out
}

func (native) FieldUnsignedEnumerationLabels(f Ptr) ([]string, Status) {
	var labels C.bt_field_class_enumeration_mapping_label_array
	var count C.uint64_t
	st := C.bt_field_enumeration_unsigned_get_mapping_labels((*C.bt_field)(f), &labels, &count)
	return labelSlice(labels, count), Status(st)
}

func (native) FieldSignedEnumerationLabels(f Ptr) ([]string, Status) {
	var labels C.bt_field_class_enumeration_mapping_label_array
	var count C.uint64_t
	st := C.bt_field_enumeration_signed_get_mapping_labels((*C.bt_field)(f), &labels, &count)
	return labelSlice(labels, count), Status(st)
}

func (native) FieldStructureMemberCount(f Ptr) uint64 {
	return uint64(C.btgo_structure_member_count((*C.bt_field)(f)))
}

func (native) FieldStructureMemberName(f Ptr, i uint64) string {
	s, _ := goString(C.btgo_structure_member_name((*C.bt_field)(f), C.uint64_t(i)))
	return s
}

func (native) FieldStructureBorrowMemberByIndex(f Ptr, i uint64) Ptr {
	return Ptr(C.bt_field_structure_borrow_member_field_by_index_const((*C.bt_field)(f), C.uint64_t(i)))
}

func (native) FieldArrayLength(f Ptr) uint64 {
	return uint64(C.bt_field_array_get_length((*C.bt_field)(f)))
}

func (native) FieldArrayBorrowElementByIndex(f Ptr, i uint64) Ptr {
	return Ptr(C.bt_field_array_borrow_element_field_by_index_const((*C.bt_field)(f), C.uint64_t(i)))
}

func (native) ValueNullBorrow() Ptr { return Ptr(C.btgo_value_null()) }

func (native) ValueBoolCreate(v bool) Ptr {
	return Ptr(C.bt_value_bool_create_init(cbool(v)))
}

func (native) ValueIntegerUnsignedCreate(v uint64) Ptr {
	return Ptr(C.bt_value_integer_unsigned_create_init(C.uint64_t(v)))
}

func (native) ValueIntegerSignedCreate(v int64) Ptr {
	return Ptr(C.bt_value_integer_signed_create_init(C.int64_t(v)))
}

func (native) ValueRealCreate(v float64) Ptr {
	return Ptr(C.bt_value_real_create_init(C.double(v)))
}

func (native) ValueStringCreate(v string) Ptr {
	cs := C.CString(v)
	defer C.free(unsafe.Pointer(cs))
	return Ptr(C.bt_value_string_create_init(cs))
}

func (native) ValueArrayCreate() Ptr { return Ptr(C.bt_value_array_create()) }

func (native) ValueMapCreate() Ptr { return Ptr(C.bt_value_map_create()) }

func (native) ValueType(v Ptr) ValueType {
	return ValueType(C.bt_value_get_type((*C.bt_value)(v)))
}

func (native) ValueBoolGet(v Ptr) bool {
	return C.bt_value_bool_get((*C.bt_value)(v)) != C.BT_FALSE
}

func (native) ValueIntegerUnsignedGet(v Ptr) uint64 {
	return uint64(C.bt_value_integer_unsigned_get((*C.bt_value)(v)))
}

func (native) ValueIntegerSignedGet(v Ptr) int64 {
	return int64(C.bt_value_integer_signed_get((*C.bt_value)(v)))
}

func (native) ValueRealGet(v Ptr) float64 {
	return float64(C.bt_value_real_get((*C.bt_value)(v)))
}

func (native) ValueStringGet(v Ptr) string {
	s, _ := goString(C.bt_value_string_get((*C.bt_value)(v)))
	return s
}

func (native) ValueArrayLength(v Ptr) uint64 {
	return uint64(C.bt_value_array_get_length((*C.bt_value)(v)))
}

func (native) ValueArrayBorrowElementByIndex(v Ptr, i uint64) Ptr {
	return Ptr(C.bt_value_array_borrow_element_by_index((*C.bt_value)(v), C.uint64_t(i)))
}

func (native) ValueArrayAppendElement(v, elem Ptr) Status {
	return Status(C.bt_value_array_append_element((*C.bt_value)(v), (*C.bt_value)(elem)))
}

func (native) ValueMapSize(v Ptr) uint64 {
	return uint64(C.bt_value_map_get_size((*C.bt_value)(v)))
}

func (native) ValueMapBorrowEntry(v Ptr, key string) Ptr {
	ck := C.CString(key)
	defer C.free(unsafe.Pointer(ck))
	return Ptr(C.bt_value_map_borrow_entry_value((*C.bt_value)(v), ck))
}

func (native) ValueMapKeys(v Ptr) []string {
	keys := C.btgo_value_map_keys((*C.bt_value)(v))
	if keys == nil {
		return nil
	}
	defer C.g_ptr_array_free(keys, C.TRUE)
	out := make([]string, 0, int(keys.len))
	for i := C.guint(0); i < keys.len; i++ {
		out = append(out, C.GoString(C.btgo_ptr_array_str(keys, i)))
	}
	return out
}

func (native) ValueMapInsertEntry(v Ptr, key string, elem Ptr) Status {
	ck := C.CString(key)
	defer C.free(unsafe.Pointer(ck))
	return Status(C.bt_value_map_insert_entry((*C.bt_value)(v), ck, (*C.bt_value)(elem)))
}

func (native) ForgeSelfComponent(name string, lvl LoggingLevel) (Ptr, Status) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var f *C.struct_btgo_forged
	st := C.btgo_forge(cname, C.bt_logging_level(lvl), &f)
	return Ptr(f), Status(st)
}

func (native) MetadataDecoderCreate(cfg MetadataDecoderConfig, selfComp Ptr) Ptr {
	self := C.btgo_forged_self((*C.struct_btgo_forged)(selfComp))
	return Ptr(C.btgo_decoder_create(C.bt_logging_level(cfg.LogLevel), self,
		C.int64_t(cfg.ClockClassOffsetS), C.int64_t(cfg.ClockClassOffsetNS),
		C.int(boolInt(cfg.ForceClockClassOriginUnixEpoch)), C.int(boolInt(cfg.CreateTraceClass)),
		C.int(boolInt(cfg.KeepPlainText))))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (native) MetadataDecoderAppendContent(dec Ptr, path string) (DecoderStatus, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	var errno C.int
	st := DecoderStatus(C.btgo_decoder_append_file((*C.struct_ctf_metadata_decoder)(dec), cpath, &errno))
	if errno != 0 {
		return st, &os.PathError{Op: "open", Path: path, Err: syscall.Errno(errno)}
	}
	return st, nil
}

func (native) MetadataDecoderGetIRTraceClass(dec Ptr) Ptr {
	return Ptr(C.ctf_metadata_decoder_get_ir_trace_class((*C.struct_ctf_metadata_decoder)(dec)))
}

func (native) MetadataDecoderBorrowCTFTraceClass(dec Ptr) Ptr {
	return Ptr(C.ctf_metadata_decoder_borrow_ctf_trace_class((*C.struct_ctf_metadata_decoder)(dec)))
}

func (native) TraceCreate(tc Ptr) Ptr {
	return Ptr(C.bt_trace_create((*C.bt_trace_class)(tc)))
}

func (native) MsgIterCreate(ctfTC Ptr, maxRequestSize uint64, lvl LoggingLevel, selfComp Ptr) Ptr {
	self := C.btgo_forged_self((*C.struct_btgo_forged)(selfComp))
	return Ptr(C.btgo_msg_iter_create((*C.struct_ctf_trace_class)(ctfTC), C.size_t(maxRequestSize),
		C.bt_logging_level(lvl), self))
}

func (native) MsgIterSetDryRun(it Ptr, dryRun bool) {
	w := (*C.struct_btgo_msg_iter)(it)
	C.ctf_msg_iter_set_dry_run(w.it, C.bool(dryRun))
}

func (native) MsgIterReset(it Ptr) {
	w := (*C.struct_btgo_msg_iter)(it)
	C.ctf_msg_iter_reset(w.it)
}

func (native) MsgIterGetPacketProperties(it Ptr, packet []byte) (PacketProperties, MsgIterStatus) {
	var props C.struct_ctf_msg_iter_packet_properties
	var buf *C.uint8_t
	if len(packet) > 0 {
		buf = (*C.uint8_t)(unsafe.Pointer(&packet[0]))
	}
	st := MsgIterStatus(C.btgo_msg_iter_packet_properties((*C.struct_btgo_msg_iter)(it), buf,
		C.size_t(len(packet)), &props))
	return PacketProperties{
		ExpectedTotalSize:   int64(props.exp_packet_total_size),
		ExpectedContentSize: int64(props.exp_packet_content_size),
		StreamClassID:       uint64(props.stream_class_id),
		DataStreamID:        int64(props.data_stream_id),
		DiscardedEvents:     uint64(props.snapshots.discarded_events),
		PacketSeqNum:        uint64(props.snapshots.packets),
		BeginningClock:      uint64(props.snapshots.beginning_clock),
		EndClock:            uint64(props.snapshots.end_clock),
	}, st
}
