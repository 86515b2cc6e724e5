// Package schema validates a decoded vhdeps.json config against an
// embedded CUE contract (ADD 4.2.2) before it is trusted, the same
// "crash early, crash loud" contract-guard pattern the teacher applies
// to its OPA input (internal/validator.New/Validate), repurposed here
// from lint-policy input to config-file input.
package schema

import (
	"embed"
	"encoding/json"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/go-vhdeps/vhdeps/internal/vherr"
)

//go:embed schema.cue
var schemaFS embed.FS

// Validator checks a decoded config's shape against the #Config contract.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// New compiles the embedded schema. An error here means the schema
// itself is broken, not user input; it is returned as a vherr.KindConfig
// error wrapping the underlying cause.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	raw, err := schemaFS.ReadFile("schema.cue")
	if err != nil {
		return nil, vherr.Wrap(vherr.KindConfig, err, "loading embedded config schema")
	}
	schema := ctx.CompileBytes(raw)
	if schema.Err() != nil {
		return nil, vherr.Wrap(vherr.KindConfig, schema.Err(), "compiling embedded config schema")
	}
	return &Validator{ctx: ctx, schema: schema}, nil
}

// Validate unifies data (anything JSON-marshalable) against #Config,
// returning a vherr.KindConfig error citing the offending field on
// mismatch.
func (v *Validator) Validate(data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return vherr.Wrap(vherr.KindConfig, err, "marshaling config for validation")
	}

	value := v.ctx.CompileBytes(raw)
	if value.Err() != nil {
		return vherr.Wrap(vherr.KindConfig, value.Err(), "compiling config as CUE")
	}

	def := v.schema.LookupPath(cue.ParsePath("#Config"))
	if def.Err() != nil {
		return vherr.Wrap(vherr.KindConfig, def.Err(), "looking up #Config schema definition")
	}

	unified := def.Unify(value)
	if err := unified.Validate(); err != nil {
		msgs := errors.Errors(err)
		if len(msgs) > 0 {
			return vherr.New(vherr.KindConfig, "vhdeps.json does not match its schema: %s", msgs[0].Error())
		}
		return vherr.Wrap(vherr.KindConfig, err, "vhdeps.json does not match its schema")
	}
	return nil
}
