package credentials

import "reflect"

// Kind tags the variant held by a Value
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindStructured
)

// String returns the lowercase kind name
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindStructured:
		return "structured"
	default:
		return "empty"
	}
}

// Value is a credential: nothing, an opaque text secret, or a set of named fields.
// The zero Value is Empty.
type Value struct {
	kind   Kind
	text   string
	fields map[string]any
}

// Empty returns the Value representing "no credential"
func Empty() Value {
	return Value{}
}

// Text returns a text credential
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Structured returns a credential made of named fields. The map is copied,
// including nested maps and slices. A nil map yields Empty.
func Structured(fields map[string]any) Value {
	if fields == nil {
		return Value{}
	}
	return Value{kind: KindStructured, fields: copyFields(fields)}
}

// Kind returns the variant tag
func (v Value) Kind() Kind {
	return v.kind
}

// IsEmpty reports whether v carries no credential.
// Empty text and empty field sets count as empty.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindText:
		return v.text == ""
	case KindStructured:
		return len(v.fields) == 0
	default:
		return true
	}
}

// Text returns the text and true if v is a text credential
func (v Value) Text() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

// Fields returns a deep copy of the fields and true if v is structured
func (v Value) Fields() (map[string]any, bool) {
	if v.kind != KindStructured {
		return nil, false
	}
	return copyFields(v.fields), true
}

// Field returns a copy of a single field of a structured credential
func (v Value) Field(name string) (any, bool) {
	if v.kind != KindStructured {
		return nil, false
	}
	f, ok := v.fields[name]
	if !ok {
		return nil, false
	}
	return copyAny(f), true
}

// Equal reports value equality: same kind and same contents
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == other.text
	case KindStructured:
		return reflect.DeepEqual(v.fields, other.fields)
	default:
		return true
	}
}

func copyFields(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[k] = copyAny(val)
	}
	return out
}

// copyAny copies the containers produced by JSON decoding; other values are shared
func copyAny(val any) any {
	switch t := val.(type) {
	case map[string]any:
		return copyFields(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyAny(e)
		}
		return out
	default:
		return val
	}
}
