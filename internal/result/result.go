// Package result holds the outcome of one schedule evaluation and its flat
// wire encoding.
package result

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEncoding is returned by Parse for strings Serialize cannot produce.
var ErrInvalidEncoding = errors.New("invalid result encoding")

// Result is the outcome of evaluating a schedule against a program.
type Result struct {
	Name     string
	Legality bool
	// IR is the textual loop nest of the transformed program.
	IR string
	// ExecTimes is the wrapper's raw stdout, opaque to this package.
	ExecTimes      string
	Success        bool
	AdditionalInfo string
}

// New returns the neutral result a pipeline run starts from.
func New(name string) *Result {
	return &Result{Name: name, Success: true}
}

// Serialize encodes r with a fixed field order and booleans as 0 or 1:
//
//	{"name": "...","legality": 1,"isl_ast": "...","exec_times": "...","success": 1,"additional_info": "..."}
func (r *Result) Serialize() string {
	var b strings.Builder
	b.WriteString(`{"name": `)
	b.WriteString(quote(r.Name))
	b.WriteString(`,"legality": `)
	b.WriteString(flag(r.Legality))
	b.WriteString(`,"isl_ast": `)
	b.WriteString(quote(r.IR))
	b.WriteString(`,"exec_times": `)
	b.WriteString(quote(r.ExecTimes))
	b.WriteString(`,"success": `)
	b.WriteString(flag(r.Success))
	b.WriteString(`,"additional_info": `)
	b.WriteString(quote(r.AdditionalInfo))
	b.WriteString("}")
	return b.String()
}

func (r *Result) String() string { return r.Serialize() }

func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// strings always encode
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

func flag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

type wire struct {
	Name           *string `json:"name"`
	Legality       *int    `json:"legality"`
	IR             *string `json:"isl_ast"`
	ExecTimes      *string `json:"exec_times"`
	Success        *int    `json:"success"`
	AdditionalInfo *string `json:"additional_info"`
}

// Parse decodes a string produced by Serialize.
func Parse(s string) (*Result, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.DisallowUnknownFields()

	var w wire
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidEncoding)
	}

	if w.Name == nil || w.Legality == nil || w.IR == nil || w.ExecTimes == nil || w.Success == nil || w.AdditionalInfo == nil {
		return nil, fmt.Errorf("%w: missing field", ErrInvalidEncoding)
	}

	legal, err := parseFlag("legality", *w.Legality)
	if err != nil {
		return nil, err
	}
	success, err := parseFlag("success", *w.Success)
	if err != nil {
		return nil, err
	}

	return &Result{
		Name:           *w.Name,
		Legality:       legal,
		IR:             *w.IR,
		ExecTimes:      *w.ExecTimes,
		Success:        success,
		AdditionalInfo: *w.AdditionalInfo,
	}, nil
}

func parseFlag(field string, v int) (bool, error) {
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: %s must be 0 or 1, got %d", ErrInvalidEncoding, field, v)
}
