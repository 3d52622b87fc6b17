package listing

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Record is one listing row as published by the upstream feeds.
//
// The feeds are loosely typed JSON: ids may be strings or numbers, flags may
// be booleans or the strings "true"/"false", and season/terms may be a single
// string or a list. The custom field types below absorb those shapes at
// decode time so the rest of the code sees stable Go values.
//
// Records are immutable once decoded; nothing in this repo mutates them.
type Record struct {
	ID          ID         `json:"id"`
	CompanyName string     `json:"company_name"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Locations   []string   `json:"locations"`
	Sponsorship string     `json:"sponsorship"`
	Season      StringList `json:"season"`
	Terms       StringList `json:"terms"`
	Active      Loose      `json:"active,omitzero"`
	Visible     Loose      `json:"is_visible,omitzero"`
}

// IsActive applies the feed truthiness rules to the active flag.
// A missing flag counts as active (upstream rows omit it for live listings).
func (r Record) IsActive() bool { return r.Active.TruthyOr(true) }

// IsVisible applies the feed truthiness rules to the visibility flag.
// A missing flag counts as visible.
func (r Record) IsVisible() bool { return r.Visible.TruthyOr(true) }

// HasID reports whether the record carries a usable identifier.
// Records without one are ignored by the diff engine entirely.
func (r Record) HasID() bool { return r.ID != "" }

// ID is a feed identifier. Upstream emits strings, numbers, or null.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*id = ""
		return nil
	}
	if len(s) > 0 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*id = ID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// StringList accepts a JSON string, a list of strings, or null.
// A bare string decodes as a one-element list; null and "" decode as empty.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*l = nil
		return nil
	}
	if len(s) > 0 && s[0] == '[' {
		var v []string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*l = v
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == "" {
		*l = nil
		return nil
	}
	*l = []string{v}
	return nil
}

// Loose is a loosely typed boolean-ish feed value.
//
// Truthiness rules (deliberately narrow, do not reuse for general booleans):
//   - a string is truthy iff it equals "true" case-insensitively
//   - a bool is itself
//   - a number is truthy when non-zero
//   - an explicit null is falsy
//
// Loose distinguishes a field that was present in the document (any value,
// null included) from one that was absent: only absent fields fall back to
// the caller's default via TruthyOr.
type Loose struct {
	present bool
	raw     any
}

func (v *Loose) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v.present = true
	v.raw = raw
	return nil
}

func (v Loose) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

// IsZero reports an absent field. Paired with the omitzero tag it keeps
// absent flags absent when a snapshot is re-encoded.
func (v Loose) IsZero() bool { return !v.present }

func (v Loose) Truthy() bool {
	switch x := v.raw.(type) {
	case bool:
		return x
	case string:
		return strings.EqualFold(x, "true")
	case float64:
		return x != 0
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	case nil:
		return false
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return false
	}
}

// TruthyOr returns def when the field was absent from the document.
// A present null is falsy, not defaulted.
func (v Loose) TruthyOr(def bool) bool {
	if !v.present {
		return def
	}
	return v.Truthy()
}

// LooseOf builds a present Loose from a Go value. Test and fixture helper.
func LooseOf(v any) Loose { return Loose{present: true, raw: v} }

// String implements fmt.Stringer for log output.
func (v Loose) String() string {
	if !v.present {
		return "<absent>"
	}
	switch x := v.raw.(type) {
	case string:
		return strconv.Quote(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "<unprintable>"
		}
		return string(b)
	}
}
