package candid

import (
	"fmt"
	"math/big"
)

// ValueKind discriminates the value shapes of the textual grammar.
type ValueKind int

const (
	ValNull ValueKind = iota
	ValReserved
	ValBool
	ValNumber // integer literal without a type annotation
	ValNat
	ValInt
	ValNat8
	ValNat16
	ValNat32
	ValNat64
	ValInt8
	ValInt16
	ValInt32
	ValInt64
	ValFloat32
	ValFloat64
	ValText
	ValBlob
	ValPrincipal
	ValOpt
	ValVec
	ValRecord
	ValVariant
)

// Value is a dynamically-typed value tree. Exactly the fields relevant to
// Kind are populated.
type Value struct {
	Kind      ValueKind
	Bool      bool
	Num       *big.Int // all integer kinds, including untyped Number
	Float     float64  // Float32, Float64
	Str       string   // Text
	Bytes     []byte   // Blob
	Principal Principal
	Inner     *Value       // Opt payload
	Items     []Value      // Vec elements
	Fields    []FieldValue // Record members, Variant holds exactly one
}

// FieldValue is a labeled member of a record or variant value.
type FieldValue struct {
	ID    uint32
	Name  string
	Named bool
	Val   Value
}

// NullValue returns the null value.
func NullValue() Value { return Value{Kind: ValNull} }

// BoolValue returns a bool value.
func BoolValue(b bool) Value { return Value{Kind: ValBool, Bool: b} }

// TextValue returns a text value.
func TextValue(s string) Value { return Value{Kind: ValText, Str: s} }

// BlobValue returns a blob (vec nat8) value.
func BlobValue(b []byte) Value { return Value{Kind: ValBlob, Bytes: b} }

// NumberValue returns an untyped integer literal value.
func NumberValue(n int64) Value {
	return Value{Kind: ValNumber, Num: big.NewInt(n)}
}

// PrincipalValue returns a principal value.
func PrincipalValue(p Principal) Value {
	return Value{Kind: ValPrincipal, Principal: p}
}

// OptValue wraps a value in opt.
func OptValue(v Value) Value { return Value{Kind: ValOpt, Inner: &v} }

// VecValue returns a vector value.
func VecValue(items ...Value) Value { return Value{Kind: ValVec, Items: items} }

// RecordValue returns a record value; fields are sorted by wire id.
func RecordValue(fields ...FieldValue) Value {
	v := Value{Kind: ValRecord, Fields: fields}
	sortFields(v.Fields)
	return v
}

// VariantValue returns a variant value with the given tag.
func VariantValue(field FieldValue) Value {
	return Value{Kind: ValVariant, Fields: []FieldValue{field}}
}

// NamedField builds a labeled field value.
func NamedField(name string, v Value) FieldValue {
	return FieldValue{ID: hashFieldName(name), Name: name, Named: true, Val: v}
}

// NumberedField builds a field addressed by wire id only.
func NumberedField(id uint32, v Value) FieldValue {
	return FieldValue{ID: id, Val: v}
}

func sortFields(fields []FieldValue) {
	for i := 1; i < len(fields); i++ {
		for j := i; j > 0 && fields[j-1].ID > fields[j].ID; j-- {
			fields[j-1], fields[j] = fields[j], fields[j-1]
		}
	}
}

// Equal reports deep structural equality, used by tests. Untyped numbers
// compare equal to typed integers with the same magnitude.
func (v Value) Equal(o Value) bool {
	if isIntegerKind(v.Kind) && isIntegerKind(o.Kind) {
		if v.Kind != o.Kind && v.Kind != ValNumber && o.Kind != ValNumber {
			return false
		}
		return v.Num.Cmp(o.Num) == 0
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValNull, ValReserved:
		return true
	case ValBool:
		return v.Bool == o.Bool
	case ValFloat32, ValFloat64:
		return v.Float == o.Float
	case ValText:
		return v.Str == o.Str
	case ValBlob:
		return string(v.Bytes) == string(o.Bytes)
	case ValPrincipal:
		return v.Principal.Equal(o.Principal)
	case ValOpt:
		if v.Inner == nil || o.Inner == nil {
			return v.Inner == o.Inner
		}
		return v.Inner.Equal(*o.Inner)
	case ValVec:
		if len(v.Items) != len(o.Items) {
			return false
		}
		for i := range v.Items {
			if !v.Items[i].Equal(o.Items[i]) {
				return false
			}
		}
		return true
	case ValRecord, ValVariant:
		if len(v.Fields) != len(o.Fields) {
			return false
		}
		for i := range v.Fields {
			if v.Fields[i].ID != o.Fields[i].ID || !v.Fields[i].Val.Equal(o.Fields[i].Val) {
				return false
			}
		}
		return true
	}
	return false
}

func isIntegerKind(k ValueKind) bool {
	switch k {
	case ValNumber, ValNat, ValInt, ValNat8, ValNat16, ValNat32, ValNat64,
		ValInt8, ValInt16, ValInt32, ValInt64:
		return true
	}
	return false
}

var valueKindAnnotations = map[ValueKind]string{
	ValNat:     "nat",
	ValInt:     "int",
	ValNat8:    "nat8",
	ValNat16:   "nat16",
	ValNat32:   "nat32",
	ValNat64:   "nat64",
	ValInt8:    "int8",
	ValInt16:   "int16",
	ValInt32:   "int32",
	ValInt64:   "int64",
	ValFloat32: "float32",
	ValFloat64: "float64",
}

func (k ValueKind) String() string {
	if s, ok := valueKindAnnotations[k]; ok {
		return s
	}
	switch k {
	case ValNull:
		return "null"
	case ValReserved:
		return "reserved"
	case ValBool:
		return "bool"
	case ValNumber:
		return "number"
	case ValText:
		return "text"
	case ValBlob:
		return "blob"
	case ValPrincipal:
		return "principal"
	case ValOpt:
		return "opt"
	case ValVec:
		return "vec"
	case ValRecord:
		return "record"
	case ValVariant:
		return "variant"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}
