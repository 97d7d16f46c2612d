package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/tracewire/bt2-go/pkg/bt2"
)

// CtfFsSchema describes the JSON accepted for source.ctf.fs parameters.
const CtfFsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "inputs": {"type": "array", "items": {"type": "string", "minLength": 1}, "minItems": 1},
    "trace-name": {"type": "string", "minLength": 1},
    "clock-class-offset-s": {"type": "integer"},
    "clock-class-offset-ns": {"type": "integer"},
    "force-clock-class-origin-unix-epoch": {"type": "boolean"}
  },
  "additionalProperties": false
}`

// LttngLiveSchema describes the JSON accepted for source.ctf.lttng-live
// parameters.
const LttngLiveSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "url": {"type": "string", "pattern": "^net[46]?://"},
    "session-not-found-action": {"enum": ["continue", "fail", "end"]}
  },
  "additionalProperties": false
}`

// validate checks doc against schema and reports every violation.
func validate(schema, doc string) error {
	if strings.TrimSpace(doc) == "" {
		doc = "{}"
	}
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewStringLoader(doc))
	if err != nil {
		return fmt.Errorf("parse params: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return errors.New("invalid params: " + strings.Join(msgs, "; "))
	}
	return nil
}

func decodeStrict(doc string, out any) error {
	if strings.TrimSpace(doc) == "" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(doc)))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

type ctfFsDoc struct {
	Inputs         []string `json:"inputs"`
	TraceName      *string  `json:"trace-name"`
	ClockOffsetS   *int64   `json:"clock-class-offset-s"`
	ClockOffsetNs  *int64   `json:"clock-class-offset-ns"`
	ForceUnixEpoch *bool    `json:"force-clock-class-origin-unix-epoch"`
}

// ParseCtfFsParams validates doc against CtfFsSchema and merges it over
// base. Inputs given in doc are appended to those of base.
func ParseCtfFsParams(doc string, base bt2.CtfFsParams) (bt2.CtfFsParams, error) {
	if err := validate(CtfFsSchema, doc); err != nil {
		return base, err
	}
	var d ctfFsDoc
	if err := decodeStrict(doc, &d); err != nil {
		return base, fmt.Errorf("decode params: %w", err)
	}
	out := base
	out.Inputs = append(append([]string(nil), base.Inputs...), d.Inputs...)
	if d.TraceName != nil {
		out.TraceName = d.TraceName
	}
	if d.ClockOffsetS != nil {
		out.ClockClassOffsetS = d.ClockOffsetS
	}
	if d.ClockOffsetNs != nil {
		out.ClockClassOffsetNs = d.ClockOffsetNs
	}
	if d.ForceUnixEpoch != nil {
		out.ForceClockClassOriginUnixEpoch = d.ForceUnixEpoch
	}
	return out, nil
}

type lttngLiveDoc struct {
	URL    string  `json:"url"`
	Action *string `json:"session-not-found-action"`
}

// ParseLttngLiveParams validates doc against LttngLiveSchema and merges it
// over base.
func ParseLttngLiveParams(doc string, base bt2.LttngLiveParams) (bt2.LttngLiveParams, error) {
	if err := validate(LttngLiveSchema, doc); err != nil {
		return base, err
	}
	var d lttngLiveDoc
	if err := decodeStrict(doc, &d); err != nil {
		return base, fmt.Errorf("decode params: %w", err)
	}
	out := base
	if d.URL != "" {
		out.URL = d.URL
	}
	if d.Action != nil {
		a, err := bt2.ParseSessionNotFoundAction(*d.Action)
		if err != nil {
			return base, err
		}
		out.SessionNotFoundAction = &a
	}
	return out, nil
}
