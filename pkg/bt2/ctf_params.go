package bt2

import (
	"fmt"
	"strings"
)

// Component class and graph node names used by the pipelines.
const (
	UtilsPluginName    = "utils"
	CtfPluginName      = "ctf"
	MuxerClassName     = "muxer"
	CtfFsClassName     = "fs"
	LttngLiveClassName = "lttng-live"

	ProxySinkClassName = "output"

	CtfFsNodeName     = "source.ctf.fs"
	LttngLiveNodeName = "source.ctf.lttng-live"
	MuxerNodeName     = "filter.utils.muxer"
	ProxySinkNodeName = "sink.proxy.output"
	CtfFsSinkNodeName = "sink.ctf.fs"
)

// sourceParams builds the initialization parameters of a ctf plugin source.
type sourceParams interface {
	className() string
	nodeName() string
	value(lib *Library) (*Value, error)
}

// CtfFsParams are the initialization parameters of source.ctf.fs. Inputs is
// required; nil optional fields are left out.
type CtfFsParams struct {
	Inputs                         []string
	TraceName                      *string
	ClockClassOffsetNs             *int64
	ClockClassOffsetS              *int64
	ForceClockClassOriginUnixEpoch *bool
}

func (CtfFsParams) className() string { return CtfFsClassName }
func (CtfFsParams) nodeName() string  { return CtfFsNodeName }

// Map returns the parameters as a map ready for Library.ValueFromGo.
func (p CtfFsParams) Map() (map[string]any, error) {
	if len(p.Inputs) == 0 {
		return nil, ErrCtfSourceRequiresInputs
	}
	for _, in := range p.Inputs {
		if err := CheckName("ctf.fs.params", "input path", in); err != nil {
			return nil, err
		}
	}
	m := map[string]any{"inputs": p.Inputs}
	if p.TraceName != nil {
		m["trace-name"] = *p.TraceName
	}
	if p.ClockClassOffsetNs != nil {
		m["clock-class-offset-ns"] = *p.ClockClassOffsetNs
	}
	if p.ClockClassOffsetS != nil {
		m["clock-class-offset-s"] = *p.ClockClassOffsetS
	}
	if p.ForceClockClassOriginUnixEpoch != nil {
		m["force-clock-class-origin-unix-epoch"] = *p.ForceClockClassOriginUnixEpoch
	}
	return m, nil
}

func (p CtfFsParams) value(lib *Library) (*Value, error) {
	m, err := p.Map()
	if err != nil {
		return nil, err
	}
	return lib.ValueFromGo(m)
}

// CtfFsSinkParams are the initialization parameters of sink.ctf.fs. Path
// is the output directory and is required; nil optional fields are left out.
type CtfFsSinkParams struct {
	Path                   string
	AssumeSingleTrace      *bool
	IgnoreDiscardedEvents  *bool
	IgnoreDiscardedPackets *bool
	Quiet                  *bool
}

// Map returns the parameters as a map ready for Library.ValueFromGo.
func (p CtfFsSinkParams) Map() (map[string]any, error) {
	if p.Path == "" {
		return nil, ErrCtfSinkRequiresPath
	}
	if err := CheckName("ctf.fs_sink.params", "output path", p.Path); err != nil {
		return nil, err
	}
	m := map[string]any{"path": p.Path}
	for key, v := range map[string]*bool{
		"assume-single-trace":      p.AssumeSingleTrace,
		"ignore-discarded-events":  p.IgnoreDiscardedEvents,
		"ignore-discarded-packets": p.IgnoreDiscardedPackets,
		"quiet":                    p.Quiet,
	} {
		if v != nil {
			m[key] = *v
		}
	}
	return m, nil
}

func (p CtfFsSinkParams) value(lib *Library) (*Value, error) {
	m, err := p.Map()
	if err != nil {
		return nil, err
	}
	return lib.ValueFromGo(m)
}

// SessionNotFoundAction tells source.ctf.lttng-live what to do when the
// requested session does not exist.
type SessionNotFoundAction int

const (
	SessionNotFoundContinue SessionNotFoundAction = iota
	SessionNotFoundFail
	SessionNotFoundEnd
)

func (a SessionNotFoundAction) String() string {
	switch a {
	case SessionNotFoundContinue:
		return "continue"
	case SessionNotFoundFail:
		return "fail"
	case SessionNotFoundEnd:
		return "end"
	default:
		return fmt.Sprintf("SessionNotFoundAction(%d)", int(a))
	}
}

// ParseSessionNotFoundAction parses "continue", "fail" or "end".
func ParseSessionNotFoundAction(s string) (SessionNotFoundAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "continue":
		return SessionNotFoundContinue, nil
	case "fail":
		return SessionNotFoundFail, nil
	case "end":
		return SessionNotFoundEnd, nil
	}
	return 0, invalidArg("lttng_live.params", fmt.Sprintf("unknown session-not-found action %q", s))
}

// LttngLiveParams are the initialization parameters of
// source.ctf.lttng-live. URL has the form
// net://host[:port]/host/target-host/session.
type LttngLiveParams struct {
	URL                   string
	SessionNotFoundAction *SessionNotFoundAction
}

func (LttngLiveParams) className() string { return LttngLiveClassName }
func (LttngLiveParams) nodeName() string  { return LttngLiveNodeName }

// Map returns the parameters as a map ready for Library.ValueFromGo.
func (p LttngLiveParams) Map() (map[string]any, error) {
	const op = "lttng_live.params"
	if err := CheckName(op, "URL", p.URL); err != nil {
		return nil, err
	}
	m := map[string]any{"inputs": []string{p.URL}}
	if a := p.SessionNotFoundAction; a != nil {
		if *a < SessionNotFoundContinue || *a > SessionNotFoundEnd {
			return nil, invalidArg(op, "unknown session-not-found action "+a.String())
		}
		m["session-not-found-action"] = a.String()
	}
	return m, nil
}

func (p LttngLiveParams) value(lib *Library) (*Value, error) {
	m, err := p.Map()
	if err != nil {
		return nil, err
	}
	return lib.ValueFromGo(m)
}
