package decisions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"gadgetwars.ai/internal/sim/engine"
)

// Validator checks submissions against the wire schemas before anything
// touches game state. Schema failures are terse; the engine's per-decision
// warnings cover semantic problems (unknown tech ids, unaffordable projects).
type Validator struct {
	submit    *jsonschema.Schema
	decisions *jsonschema.Schema
}

func NewValidator(schemaDir string) (*Validator, error) {
	compile := func(name string) (*jsonschema.Schema, error) {
		s, err := jsonschema.Compile(filepath.Join(schemaDir, name))
		if err != nil {
			return nil, fmt.Errorf("decisions: compile %s: %w", name, err)
		}
		return s, nil
	}
	v := &Validator{}
	var err error
	if v.submit, err = compile("submit.schema.json"); err != nil {
		return nil, err
	}
	if v.decisions, err = compile("decisions.schema.json"); err != nil {
		return nil, err
	}
	return v, nil
}

// ValidateSubmit checks a raw SUBMIT message and returns the decoded
// envelope. The decisions payload is validated but not yet parsed; call
// Parse on msg.Decisions for the typed set.
func (v *Validator) ValidateSubmit(raw []byte) (*SubmitMsg, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &Error{Code: ErrProtoBadRequest, Detail: err.Error()}
	}
	if err := v.submit.Validate(doc); err != nil {
		return nil, &Error{Code: ErrSchema, Detail: err.Error()}
	}
	var msg SubmitMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, &Error{Code: ErrProtoBadRequest, Detail: err.Error()}
	}
	if msg.Type != TypeSubmit {
		return nil, &Error{Code: ErrProtoBadRequest, Detail: fmt.Sprintf("type %q", msg.Type)}
	}
	return &msg, nil
}

// Parse turns a validated decisions payload into the engine's typed set.
// Unknown fields are rejected so teams learn about typos instead of having
// whole modules silently ignored.
func (v *Validator) Parse(raw json.RawMessage) (engine.DecisionSet, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return engine.DecisionSet{}, &Error{Code: ErrBadRequest, Detail: err.Error()}
	}
	if err := v.decisions.Validate(doc); err != nil {
		return engine.DecisionSet{}, &Error{Code: ErrSchema, Detail: err.Error()}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var set engine.DecisionSet
	if err := dec.Decode(&set); err != nil {
		return engine.DecisionSet{}, &Error{Code: ErrBadRequest, Detail: err.Error()}
	}
	return set, nil
}

// Error is a coded rejection suitable for a REJECT message.
type Error struct {
	Code   string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Code
	}
	return e.Code + ": " + e.Detail
}
