// Package candid implements a runtime interpreter for the Candid structural
// type system: a parser for the textual value grammar, a parser for textual
// interface descriptions, and a type-directed binary encoder/decoder for the
// self-describing DIDL wire format.
//
// The package holds no global state. An interface description parses into an
// immutable TypeEnv; method resolution is a pure function over it; encoding
// and decoding walk declared types recursively against a byte stream.
package candid

import (
	"fmt"
	"strings"
)

// TypeKind discriminates the closed set of type shapes the codec interprets.
type TypeKind int

const (
	KindNull TypeKind = iota
	KindBool
	KindNat
	KindInt
	KindNat8
	KindNat16
	KindNat32
	KindNat64
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindText
	KindReserved
	KindEmpty
	KindPrincipal
	KindOpt
	KindVec
	KindRecord
	KindVariant
	KindFunc
	KindService
	KindVar
)

// Wire opcodes for the binary type table (signed LEB128 values).
const (
	opcodeNull      = -1
	opcodeBool      = -2
	opcodeNat       = -3
	opcodeInt       = -4
	opcodeNat8      = -5
	opcodeNat16     = -6
	opcodeNat32     = -7
	opcodeNat64     = -8
	opcodeInt8      = -9
	opcodeInt16     = -10
	opcodeInt32     = -11
	opcodeInt64     = -12
	opcodeFloat32   = -13
	opcodeFloat64   = -14
	opcodeText      = -15
	opcodeReserved  = -16
	opcodeEmpty     = -17
	opcodeOpt       = -18
	opcodeVec       = -19
	opcodeRecord    = -20
	opcodeVariant   = -21
	opcodeFunc      = -22
	opcodeService   = -23
	opcodePrincipal = -24
)

// Field is a named or numbered member of a record or variant type. Fields
// are kept sorted by ID, which is also the wire order.
type Field struct {
	ID    uint32
	Name  string // empty when the field is only known by its numeric id
	Named bool
	Type  *Type
}

// Type is a node in a structural type tree. Var nodes reference named
// definitions in a TypeEnv and make recursive types expressible.
type Type struct {
	Kind   TypeKind
	Elem   *Type   // Opt, Vec
	Fields []Field // Record, Variant
	Name   string  // Var

	// Func/Service shapes are parsed so descriptions round-trip, but their
	// values are not encodable by this codec.
	Args        []*Type
	Rets        []*Type
	Annotations []string
}

var primitiveTypes = map[string]TypeKind{
	"null":      KindNull,
	"bool":      KindBool,
	"nat":       KindNat,
	"int":       KindInt,
	"nat8":      KindNat8,
	"nat16":     KindNat16,
	"nat32":     KindNat32,
	"nat64":     KindNat64,
	"int8":      KindInt8,
	"int16":     KindInt16,
	"int32":     KindInt32,
	"int64":     KindInt64,
	"float32":   KindFloat32,
	"float64":   KindFloat64,
	"text":      KindText,
	"reserved":  KindReserved,
	"empty":     KindEmpty,
	"principal": KindPrincipal,
}

var kindNames = map[TypeKind]string{
	KindNull:      "null",
	KindBool:      "bool",
	KindNat:       "nat",
	KindInt:       "int",
	KindNat8:      "nat8",
	KindNat16:     "nat16",
	KindNat32:     "nat32",
	KindNat64:     "nat64",
	KindInt8:      "int8",
	KindInt16:     "int16",
	KindInt32:     "int32",
	KindInt64:     "int64",
	KindFloat32:   "float32",
	KindFloat64:   "float64",
	KindText:      "text",
	KindReserved:  "reserved",
	KindEmpty:     "empty",
	KindPrincipal: "principal",
	KindFunc:      "func",
	KindService:   "service",
}

// String renders the type in the textual grammar.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindOpt:
		return "opt " + t.Elem.String()
	case KindVec:
		if t.Elem != nil && t.Elem.Kind == KindNat8 {
			return "blob"
		}
		return "vec " + t.Elem.String()
	case KindRecord, KindVariant:
		kw := "record"
		if t.Kind == KindVariant {
			kw = "variant"
		}
		parts := make([]string, 0, len(t.Fields))
		for _, f := range t.Fields {
			label := f.Name
			if !f.Named {
				label = fmt.Sprintf("%d", f.ID)
			}
			if t.Kind == KindVariant && f.Type != nil && f.Type.Kind == KindNull {
				parts = append(parts, label)
			} else {
				parts = append(parts, label+" : "+f.Type.String())
			}
		}
		return kw + " { " + strings.Join(parts, "; ") + " }"
	case KindVar:
		return t.Name
	default:
		if name, ok := kindNames[t.Kind]; ok {
			return name
		}
		return fmt.Sprintf("type(%d)", t.Kind)
	}
}

// isPrimitive reports whether the kind encodes as a bare negative opcode
// rather than a type-table entry.
func (t *Type) isPrimitive() bool {
	switch t.Kind {
	case KindOpt, KindVec, KindRecord, KindVariant, KindFunc, KindService, KindVar:
		return false
	}
	return true
}

func (t *Type) opcode() int64 {
	switch t.Kind {
	case KindNull:
		return opcodeNull
	case KindBool:
		return opcodeBool
	case KindNat:
		return opcodeNat
	case KindInt:
		return opcodeInt
	case KindNat8:
		return opcodeNat8
	case KindNat16:
		return opcodeNat16
	case KindNat32:
		return opcodeNat32
	case KindNat64:
		return opcodeNat64
	case KindInt8:
		return opcodeInt8
	case KindInt16:
		return opcodeInt16
	case KindInt32:
		return opcodeInt32
	case KindInt64:
		return opcodeInt64
	case KindFloat32:
		return opcodeFloat32
	case KindFloat64:
		return opcodeFloat64
	case KindText:
		return opcodeText
	case KindReserved:
		return opcodeReserved
	case KindEmpty:
		return opcodeEmpty
	case KindPrincipal:
		return opcodePrincipal
	}
	return 0
}

// findField returns the member with the given wire id.
func (t *Type) findField(id uint32) (Field, bool) {
	for _, f := range t.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// Method is a named service entry with ordered argument and return types.
type Method struct {
	Name        string
	Args        []*Type
	Rets        []*Type
	Annotations []string
}

// TypeEnv is the immutable result of parsing an interface description:
// named type definitions plus an optional service signature.
type TypeEnv struct {
	defs    map[string]*Type
	service []Method
}

// Lookup resolves a named type definition.
func (env *TypeEnv) Lookup(name string) (*Type, bool) {
	if env == nil {
		return nil, false
	}
	t, ok := env.defs[name]
	return t, ok
}

// ResolveMethod returns the signature of a service method. It fails when the
// description has no service block or the method is absent.
func (env *TypeEnv) ResolveMethod(name string) (Method, error) {
	if env == nil || env.service == nil {
		return Method{}, newResolutionError("interface description has no service block")
	}
	for _, m := range env.service {
		if m.Name == name {
			return m, nil
		}
	}
	return Method{}, newResolutionError("method %q not found in service", name)
}

// Methods lists the service's method names in declaration order.
func (env *TypeEnv) Methods() []string {
	if env == nil {
		return nil
	}
	names := make([]string, 0, len(env.service))
	for _, m := range env.service {
		names = append(names, m.Name)
	}
	return names
}

// resolve follows Var references until a structural type is reached.
// Reference cycles that never reach a structural type are malformed.
func (env *TypeEnv) resolve(t *Type) (*Type, error) {
	seen := map[string]bool{}
	for t != nil && t.Kind == KindVar {
		if seen[t.Name] {
			return nil, newDecodeError("type alias cycle through %q", t.Name)
		}
		seen[t.Name] = true
		def, ok := env.Lookup(t.Name)
		if !ok {
			return nil, newDecodeError("unknown type %q", t.Name)
		}
		t = def
	}
	if t == nil {
		return nil, newDecodeError("nil type")
	}
	return t, nil
}
