// Package transfer reads and writes the JSON file format used to move
// matches, guarantees, and notes in and out of the match store.
package transfer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"unicode/utf8"

	"github.com/okian/tapp/internal/domain/model"
)

// Top-level keys of the file format.
const (
	KeyMatches    = "matches"
	KeyGuarantees = "guarantees"
	KeyNotes      = "notes"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Payload is the decoded file. Every section is optional.
type Payload struct {
	Matches    []model.RawMatch  `json:"matches"`
	Guarantees []model.Guarantee `json:"guarantees"`
	Notes      []model.Note      `json:"notes"`
}

// Empty reports whether the payload carries nothing to apply.
func (p Payload) Empty() bool {
	return len(p.Matches) == 0 && len(p.Guarantees) == 0 && len(p.Notes) == 0
}

// Decode reads at most limit bytes from r and parses them. A non-positive
// limit disables the check.
func Decode(r io.Reader, limit int64) (Payload, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Payload{}, parseErr("read", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return Payload{}, parseErr(fmt.Sprintf("exceeds %d bytes", limit), ErrTooLarge)
	}
	return Parse(data)
}

// Parse decodes data as a UTF-8 JSON object whose only keys are matches,
// guarantees, and notes. Any other shape is a *ParseError.
func Parse(data []byte) (Payload, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return Payload{}, parseErr("file is not valid UTF-8", nil)
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return Payload{}, parseErr("expected a JSON object", err)
	}
	if sections == nil {
		return Payload{}, parseErr("expected a JSON object", nil)
	}

	var p Payload
	for key, raw := range sections {
		var err error
		switch key {
		case KeyMatches:
			err = decodeSection(raw, &p.Matches)
		case KeyGuarantees:
			err = decodeSection(raw, &p.Guarantees)
		case KeyNotes:
			err = decodeSection(raw, &p.Notes)
		default:
			return Payload{}, parseErr(fmt.Sprintf("unexpected key %q", key), nil)
		}
		if err != nil {
			return Payload{}, parseErr(fmt.Sprintf("invalid %q section", key), err)
		}
	}
	return p, nil
}

func decodeSection[T any](raw json.RawMessage, out *[]T) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// Select keeps the matches whose key is in keys, plus the guarantees and
// notes of the applicants those matches name. An empty keys returns p
// unchanged.
func (p Payload) Select(keys []string) Payload {
	if len(keys) == 0 {
		return p
	}
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}

	var out Payload
	people := make(map[string]struct{})
	for _, m := range p.Matches {
		if _, ok := want[m.Key()]; ok {
			out.Matches = append(out.Matches, m)
			people[m.Utorid] = struct{}{}
		}
	}
	for _, g := range p.Guarantees {
		if _, ok := people[g.Utorid]; ok {
			out.Guarantees = append(out.Guarantees, g)
		}
	}
	for _, n := range p.Notes {
		if _, ok := people[n.Utorid]; ok {
			out.Notes = append(out.Notes, n)
		}
	}
	return out
}

// Marshal renders p as 2-space indented JSON. Missing sections are written
// as empty arrays so the output always parses back to the same shape.
func Marshal(p Payload) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes p to w as Marshal does.
func Encode(w io.Writer, p Payload) error {
	p.Matches = nonNil(p.Matches)
	p.Guarantees = nonNil(p.Guarantees)
	p.Notes = nonNil(p.Notes)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return slices.Clip(in)
}
