package bt2

import (
	"context"
	"errors"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
	"github.com/tracewire/bt2-go/pkg/bt2/logging"
)

// pipeline is the graph shared by TraceIterator and LiveStream:
// a ctf source, the utils muxer and the proxy sink.
type pipeline struct {
	log   logging.Logger
	graph *Graph
	proxy *proxySink

	// Released in reverse order by Close.
	refs []*own.Ref
}

func newPipeline(lib *Library, lvl LoggingLevel, src sourceParams) (*pipeline, error) {
	const op = "pipeline.create"
	if err := CheckLoggingLevel(op, lvl); err != nil {
		return nil, err
	}
	params, err := src.value(lib)
	if err != nil {
		return nil, err
	}
	if err := lib.SetGlobalLoggingLevel(lvl); err != nil {
		params.Close()
		return nil, err
	}

	p := &pipeline{log: lib.Logger().With("pipeline", src.nodeName())}
	var scope own.Scope
	defer scope.Release()
	track := func(r *own.Ref) {
		scope.Track(r)
		p.refs = append(p.refs, r)
	}
	track(params.handle())

	utils, err := lib.FindPlugin(UtilsPluginName, StaticOnly())
	if err != nil {
		return nil, err
	}
	track(utils.handle())
	ctf, err := lib.FindPlugin(CtfPluginName, StaticOnly())
	if err != nil {
		return nil, err
	}
	track(ctf.handle())

	srcClass, err := ctf.SourceComponentClass(src.className())
	if err != nil {
		return nil, err
	}
	muxClass, err := utils.FilterComponentClass(MuxerClassName)
	if err != nil {
		return nil, err
	}
	sinkClass, err := lib.NewSinkComponentClass(ProxySinkClassName)
	if err != nil {
		return nil, err
	}
	track(sinkClass.handle())

	if p.graph, err = lib.NewGraph(); err != nil {
		return nil, err
	}
	track(p.graph.handle())

	source, err := p.graph.AddSourceComponent(srcClass, src.nodeName(), params, nil, lvl)
	if err != nil {
		return nil, err
	}
	muxer, err := p.graph.AddFilterComponent(muxClass, MuxerNodeName, nil, lvl)
	if err != nil {
		return nil, err
	}
	p.proxy = &proxySink{log: p.log.With("component", ProxySinkNodeName)}
	sink, err := p.graph.AddSinkComponent(sinkClass, ProxySinkNodeName, nil, p.proxy, lvl)
	if err != nil {
		return nil, err
	}

	nOut, err := source.OutputPortCount()
	if err != nil {
		return nil, err
	}
	if nOut == 0 {
		p.log.Debug(context.Background(), "input does not appear to contain any stream data")
		return nil, ErrCtfSourceMissingOutputPorts
	}
	nIn, err := sink.InputPortCount()
	if err != nil {
		return nil, err
	}
	if nIn == 0 {
		return nil, ErrProxySinkMissingInputPort
	}

	p.log.Debug(context.Background(), "connecting source ports to muxer", "ports", nOut)
	for i := range nOut {
		in, err := muxer.InputPort(i)
		if err != nil {
			return nil, err
		}
		out, err := source.OutputPort(i)
		if err != nil {
			return nil, err
		}
		if err := p.graph.ConnectPorts(out, in); err != nil {
			return nil, err
		}
	}
	out, err := muxer.OutputPort(0)
	if err != nil {
		return nil, err
	}
	in, err := sink.InputPort(0)
	if err != nil {
		return nil, err
	}
	if err := p.graph.ConnectPorts(out, in); err != nil {
		return nil, err
	}

	scope.Keep()
	return p, nil
}

// run runs the graph once. A failure inside the proxy sink is attached to
// the library's error.
func (p *pipeline) run() (RunStatus, error) {
	st, err := p.graph.RunOnce()
	if err == nil {
		return st, nil
	}
	if cause := p.proxy.takeErr(); cause != nil {
		var e *Error
		if errors.As(err, &e) && e.Err == nil {
			e.Err = cause
		}
	}
	return st, err
}

// close releases the graph first so the proxy sink is finalized while the
// plugins are still loaded.
func (p *pipeline) close() {
	for i := len(p.refs) - 1; i >= 0; i-- {
		p.refs[i].Release()
	}
	p.refs = nil
}
