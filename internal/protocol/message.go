package protocol

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Message is one decoded line: a method name and its params.
type Message struct {
	Method string
	Params Params
}

// Params is either an ordered list of values or a set of named values.
//
// Values follow the JSON value model: string, bool, nil, json.Number,
// []any and map[string]any. Builders also accept Go numbers, which come
// back as json.Number after a round trip.
type Params struct {
	positional []any
	named      map[string]any
}

// Positional builds list params. Positional() encodes as [].
func Positional(values ...any) Params {
	if values == nil {
		values = []any{}
	}
	return Params{positional: values}
}

// Named builds object params. Named(nil) encodes as {}.
func Named(values map[string]any) Params {
	if values == nil {
		values = map[string]any{}
	}
	return Params{named: values}
}

func (p Params) IsPositional() bool {
	return p.positional != nil
}

func (p Params) IsNamed() bool {
	return p.positional == nil
}

// Positional returns the list form, or nil for named params.
func (p Params) Positional() []any {
	return p.positional
}

// Named returns the object form, or nil for positional params.
func (p Params) Named() map[string]any {
	if p.positional != nil {
		return nil
	}
	return p.named
}

func (p Params) Len() int {
	if p.positional != nil {
		return len(p.positional)
	}
	return len(p.named)
}

// At returns the i-th positional value.
func (p Params) At(i int) (any, bool) {
	if i < 0 || i >= len(p.positional) {
		return nil, false
	}
	return p.positional[i], true
}

// Value returns the named value for key.
func (p Params) Value(key string) (any, bool) {
	if p.positional != nil {
		return nil, false
	}
	v, ok := p.named[key]
	return v, ok
}

func (p Params) String(key string) (string, bool) {
	v, ok := p.Value(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (p Params) Int(key string) (int, bool) {
	v, ok := p.Value(key)
	if !ok {
		return 0, false
	}
	return asInt(v)
}

// Object returns a nested object as named Params.
func (p Params) Object(key string) (Params, bool) {
	v, ok := p.Value(key)
	if !ok {
		return Params{}, false
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Params{}, false
	}
	return Named(m), true
}

// Decode converts params into a typed payload through their JSON form.
func (p Params) Decode(out any) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p Params) MarshalJSON() ([]byte, error) {
	if p.positional != nil {
		return json.Marshal(p.positional)
	}
	if p.named == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.named)
}

func (p *Params) UnmarshalJSON(data []byte) error {
	parsed, err := parseParams(data)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func parseParams(raw []byte) (Params, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Named(nil), nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	switch raw[0] {
	case '[':
		var list []any
		if err := dec.Decode(&list); err != nil {
			return Params{}, err
		}
		return Positional(list...), nil
	case '{':
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return Params{}, err
		}
		return Named(obj), nil
	default:
		return Params{}, ErrInvalidParams
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := strconv.ParseInt(n.String(), 10, 0)
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil || f != math.Trunc(f) {
				return 0, false
			}
			return int(f), true
		}
		return int(i), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
