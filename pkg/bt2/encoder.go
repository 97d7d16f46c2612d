package bt2

import (
	"context"
	"time"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
	"github.com/tracewire/bt2-go/pkg/bt2/logging"
)

// EncoderRetryInterval is how long Run waits after the source asked to be
// called again.
var EncoderRetryInterval = time.Millisecond

// EncoderPipeline writes the messages of a Go source as a CTF trace: the
// source, the utils muxer and sink.ctf.fs.
type EncoderPipeline struct {
	log   logging.Logger
	graph *Graph
	done  bool

	// Released in reverse order by Close.
	refs []*own.Ref
}

// NewEncoderPipeline builds the pipeline around source, added to the graph
// as sourceName. Nothing is written before the first RunOnce or Run.
func (lib *Library) NewEncoderPipeline(lvl LoggingLevel, sourceName string, source Source, sink CtfFsSinkParams) (*EncoderPipeline, error) {
	const op = "encoder_pipeline.create"
	if err := CheckLoggingLevel(op, lvl); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, invalidArg(op, "nil source")
	}
	if err := CheckName(op, "source name", sourceName); err != nil {
		return nil, err
	}
	params, err := sink.value(lib)
	if err != nil {
		return nil, err
	}
	if err := lib.SetGlobalLoggingLevel(lvl); err != nil {
		params.Close()
		return nil, err
	}

	p := &EncoderPipeline{log: lib.Logger().With("pipeline", CtfFsSinkNodeName)}
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

	srcClass, err := lib.NewSourceComponentClass(sourceName)
	if err != nil {
		return nil, err
	}
	track(srcClass.handle())
	muxClass, err := utils.FilterComponentClass(MuxerClassName)
	if err != nil {
		return nil, err
	}
	sinkClass, err := ctf.SinkComponentClass(CtfFsClassName)
	if err != nil {
		return nil, err
	}

	if p.graph, err = lib.NewGraph(); err != nil {
		return nil, err
	}
	track(p.graph.handle())

	src, err := p.graph.AddSourceComponent(srcClass, sourceName, nil, source, lvl)
	if err != nil {
		return nil, err
	}
	muxer, err := p.graph.AddFilterComponent(muxClass, MuxerNodeName, nil, lvl)
	if err != nil {
		return nil, err
	}
	writer, err := p.graph.AddSinkComponent(sinkClass, CtfFsSinkNodeName, params, nil, lvl)
	if err != nil {
		return nil, err
	}

	nOut, err := src.OutputPortCount()
	if err != nil {
		return nil, err
	}
	p.log.Debug(context.Background(), "connecting source ports to muxer", "ports", nOut)
	for i := range nOut {
		in, err := muxer.InputPort(i)
		if err != nil {
			return nil, err
		}
		out, err := src.OutputPort(i)
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
	in, err := writer.InputPort(0)
	if err != nil {
		return nil, err
	}
	if err := p.graph.ConnectPorts(out, in); err != nil {
		return nil, err
	}

	scope.Keep()
	return p, nil
}

// RunOnce runs the graph once. RunEnd means the trace is completely
// written.
func (p *EncoderPipeline) RunOnce() (RunStatus, error) {
	const op = "encoder_pipeline.run"
	if p == nil || p.graph == nil {
		return RunEnd, closedErr(op)
	}
	if p.done {
		return RunEnd, nil
	}
	st, err := p.graph.RunOnce()
	if err != nil {
		return st, err
	}
	if st == RunEnd {
		p.done = true
		p.log.Debug(context.Background(), "trace written")
	}
	return st, nil
}

// Run runs the graph until the trace is written, the graph fails or ctx is
// done.
func (p *EncoderPipeline) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		st, err := p.RunOnce()
		if err != nil {
			return err
		}
		switch st {
		case RunEnd:
			return nil
		case RunTryAgain:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(EncoderRetryInterval):
			}
		}
	}
}

// Close releases the graph, which finalizes the source, then the plugins.
func (p *EncoderPipeline) Close() error {
	if p == nil {
		return nil
	}
	for i := len(p.refs) - 1; i >= 0; i-- {
		p.refs[i].Release()
	}
	p.refs = nil
	p.graph = nil
	return nil
}
