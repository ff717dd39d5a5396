package candid

import (
	"bytes"
	"encoding/binary"
	"math"
)

var didlMagic = []byte("DIDL")

// EncodeValues serializes an argument list to the binary wire form with
// inferred types.
func EncodeValues(values []Value) ([]byte, error) {
	types := make([]*Type, len(values))
	for i, v := range values {
		types[i] = inferType(v)
	}
	return EncodeValuesWithTypes(values, types, nil)
}

// EncodeValuesWithTypes serializes an argument list against declared types,
// coercing each value first. env resolves named type references and may be
// nil when the types contain none.
func EncodeValuesWithTypes(values []Value, types []*Type, env *TypeEnv) ([]byte, error) {
	if len(values) != len(types) {
		return nil, newEncodeError("%d values for %d declared types", len(values), len(types))
	}
	coerced := make([]Value, len(values))
	for i, v := range values {
		c, err := applyType(v, types[i], env)
		if err != nil {
			return nil, err
		}
		coerced[i] = c
	}

	builder := &typeTableBuilder{env: env, byName: map[string]int{}, byPtr: map[*Type]int{}}
	argIdx := make([]int64, len(types))
	for i, t := range types {
		idx, err := builder.index(t)
		if err != nil {
			return nil, err
		}
		argIdx[i] = idx
	}

	var buf bytes.Buffer
	buf.Write(didlMagic)
	if err := writeULEB128(&buf, uint64(len(builder.entries))); err != nil {
		return nil, err
	}
	for _, entry := range builder.entries {
		buf.Write(entry)
	}
	if err := writeULEB128(&buf, uint64(len(argIdx))); err != nil {
		return nil, err
	}
	for _, idx := range argIdx {
		if err := writeSLEB128(&buf, idx); err != nil {
			return nil, err
		}
	}
	for i, v := range coerced {
		resolved, err := resolveMaybe(builder.env, types[i])
		if err != nil {
			return nil, err
		}
		if err := writeValue(&buf, v, resolved, env); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// typeTableBuilder assigns type-table slots to composite types. Recursive
// types work because a slot index is reserved before the definition body is
// built.
type typeTableBuilder struct {
	env     *TypeEnv
	entries [][]byte
	byName  map[string]int
	byPtr   map[*Type]int
}

// index returns the signed type reference for t: a negative primitive
// opcode, or a non-negative table slot for composite types.
func (b *typeTableBuilder) index(t *Type) (int64, error) {
	if t == nil {
		return 0, newEncodeError("nil type")
	}
	if t.Kind == KindVar {
		if idx, ok := b.byName[t.Name]; ok {
			return int64(idx), nil
		}
		resolved, err := resolveMaybe(b.env, t)
		if err != nil {
			return 0, &CodecError{Kind: ErrorKindEncode, Reason: err.Error()}
		}
		if resolved.isPrimitive() {
			return resolved.opcode(), nil
		}
		slot := b.reserve()
		b.byName[t.Name] = slot
		return int64(slot), b.fill(slot, resolved)
	}
	if t.isPrimitive() {
		return t.opcode(), nil
	}
	if idx, ok := b.byPtr[t]; ok {
		return int64(idx), nil
	}
	slot := b.reserve()
	b.byPtr[t] = slot
	return int64(slot), b.fill(slot, t)
}

func (b *typeTableBuilder) reserve() int {
	b.entries = append(b.entries, nil)
	return len(b.entries) - 1
}

func (b *typeTableBuilder) fill(slot int, t *Type) error {
	var buf bytes.Buffer
	switch t.Kind {
	case KindOpt, KindVec:
		opcode := int64(opcodeOpt)
		if t.Kind == KindVec {
			opcode = opcodeVec
		}
		if err := writeSLEB128(&buf, opcode); err != nil {
			return err
		}
		idx, err := b.index(t.Elem)
		if err != nil {
			return err
		}
		if err := writeSLEB128(&buf, idx); err != nil {
			return err
		}
	case KindRecord, KindVariant:
		opcode := int64(opcodeRecord)
		if t.Kind == KindVariant {
			opcode = opcodeVariant
		}
		if err := writeSLEB128(&buf, opcode); err != nil {
			return err
		}
		if err := writeULEB128(&buf, uint64(len(t.Fields))); err != nil {
			return err
		}
		for _, f := range t.Fields {
			if err := writeULEB128(&buf, uint64(f.ID)); err != nil {
				return err
			}
			idx, err := b.index(f.Type)
			if err != nil {
				return err
			}
			if err := writeSLEB128(&buf, idx); err != nil {
				return err
			}
		}
	default:
		return newEncodeError("cannot serialize %s type in type table", t)
	}
	b.entries[slot] = buf.Bytes()
	return nil
}

func resolveMaybe(env *TypeEnv, t *Type) (*Type, error) {
	if t.Kind != KindVar {
		return t, nil
	}
	if env == nil {
		return nil, newEncodeError("unknown type %q", t.Name)
	}
	return env.resolve(t)
}

// writeValue serializes a coerced value against its resolved declared type.
func writeValue(buf *bytes.Buffer, v Value, t *Type, env *TypeEnv) error {
	switch t.Kind {
	case KindNull, KindReserved:
		return nil
	case KindBool:
		if v.Bool {
			return buf.WriteByte(1)
		}
		return buf.WriteByte(0)
	case KindNat:
		return writeBigULEB128(buf, v.Num)
	case KindInt:
		return writeBigSLEB128(buf, v.Num)
	case KindNat8, KindInt8:
		return buf.WriteByte(byte(truncUint64(v)))
	case KindNat16, KindInt16:
		var raw [2]byte
		binary.LittleEndian.PutUint16(raw[:], uint16(truncUint64(v)))
		_, err := buf.Write(raw[:])
		return err
	case KindNat32, KindInt32:
		var raw [4]byte
		binary.LittleEndian.PutUint32(raw[:], uint32(truncUint64(v)))
		_, err := buf.Write(raw[:])
		return err
	case KindNat64, KindInt64:
		var raw [8]byte
		binary.LittleEndian.PutUint64(raw[:], truncUint64(v))
		_, err := buf.Write(raw[:])
		return err
	case KindFloat32:
		var raw [4]byte
		binary.LittleEndian.PutUint32(raw[:], math.Float32bits(float32(v.Float)))
		_, err := buf.Write(raw[:])
		return err
	case KindFloat64:
		var raw [8]byte
		binary.LittleEndian.PutUint64(raw[:], math.Float64bits(v.Float))
		_, err := buf.Write(raw[:])
		return err
	case KindText:
		if err := writeULEB128(buf, uint64(len(v.Str))); err != nil {
			return err
		}
		_, err := buf.WriteString(v.Str)
		return err
	case KindPrincipal:
		if err := buf.WriteByte(1); err != nil {
			return err
		}
		raw := v.Principal.Bytes()
		if err := writeULEB128(buf, uint64(len(raw))); err != nil {
			return err
		}
		_, err := buf.Write(raw)
		return err
	case KindOpt:
		if v.Kind == ValNull || v.Inner == nil {
			return buf.WriteByte(0)
		}
		if err := buf.WriteByte(1); err != nil {
			return err
		}
		elem, err := resolveMaybe(env, t.Elem)
		if err != nil {
			return err
		}
		return writeValue(buf, *v.Inner, elem, env)
	case KindVec:
		elem, err := resolveMaybe(env, t.Elem)
		if err != nil {
			return err
		}
		if v.Kind == ValBlob {
			if err := writeULEB128(buf, uint64(len(v.Bytes))); err != nil {
				return err
			}
			_, err := buf.Write(v.Bytes)
			return err
		}
		if err := writeULEB128(buf, uint64(len(v.Items))); err != nil {
			return err
		}
		for _, item := range v.Items {
			if err := writeValue(buf, item, elem, env); err != nil {
				return err
			}
		}
		return nil
	case KindRecord:
		for i, f := range t.Fields {
			if i >= len(v.Fields) || v.Fields[i].ID != f.ID {
				return newEncodeError("record value does not match type %s", t)
			}
			ft, err := resolveMaybe(env, f.Type)
			if err != nil {
				return err
			}
			if err := writeValue(buf, v.Fields[i].Val, ft, env); err != nil {
				return err
			}
		}
		return nil
	case KindVariant:
		if v.Kind != ValVariant || len(v.Fields) != 1 {
			return newEncodeError("variant value does not match type %s", t)
		}
		for i, f := range t.Fields {
			if f.ID == v.Fields[0].ID {
				if err := writeULEB128(buf, uint64(i)); err != nil {
					return err
				}
				ft, err := resolveMaybe(env, f.Type)
				if err != nil {
					return err
				}
				return writeValue(buf, v.Fields[0].Val, ft, env)
			}
		}
		return newEncodeError("variant tag %d not in type %s", v.Fields[0].ID, t)
	}
	return newEncodeError("cannot serialize value of type %s", t)
}

// truncUint64 extracts the low 64 bits of an integer value in two's
// complement form; range checks already ran during coercion.
func truncUint64(v Value) uint64 {
	if v.Num.Sign() >= 0 {
		return v.Num.Uint64()
	}
	n := v.Num.Int64()
	return uint64(n)
}
