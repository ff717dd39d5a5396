package candid

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/big"
)

const maxDecodeDepth = 512

// DecodeValues decodes a binary message using only the type table embedded
// in the message itself (schemaless decode). Record and variant members come
// back labeled by numeric id.
func DecodeValues(raw []byte) ([]Value, error) {
	r, err := newWireReader(raw)
	if err != nil {
		return nil, err
	}
	return r.decodeArgs()
}

// DecodeValuesWithTypes decodes a binary message and reconciles it against
// an ordered list of expected types, restoring member names from the
// declared types. Surplus wire arguments are dropped; missing arguments are
// filled in only when the expected type is opt, null or reserved.
func DecodeValuesWithTypes(raw []byte, types []*Type, env *TypeEnv) ([]Value, error) {
	wire, err := DecodeValues(raw)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(types))
	for i, t := range types {
		if i < len(wire) {
			v, err := applyType(wire[i], t, env)
			if err != nil {
				if ce, ok := err.(*CodecError); ok && ce.Kind == ErrorKindEncode {
					// Reconciliation failures on the decode path are decode
					// errors from the caller's point of view.
					return nil, &CodecError{Kind: ErrorKindDecode, Reason: ce.Reason, Err: ce.Err}
				}
				return nil, err
			}
			out[i] = v
			continue
		}
		resolved, rerr := resolveForDecode(env, t)
		if rerr != nil {
			return nil, rerr
		}
		switch resolved.Kind {
		case KindOpt, KindNull:
			out[i] = NullValue()
		case KindReserved:
			out[i] = Value{Kind: ValReserved}
		default:
			return nil, newDecodeError("message has %d arguments, expected %d", len(wire), len(types))
		}
	}
	return out, nil
}

func resolveForDecode(env *TypeEnv, t *Type) (*Type, error) {
	if t.Kind != KindVar {
		return t, nil
	}
	if env == nil {
		return nil, newDecodeError("unknown type %q", t.Name)
	}
	return env.resolve(t)
}

type wireReader struct {
	r     *bytes.Reader
	table []*Type
}

func newWireReader(raw []byte) (*wireReader, error) {
	if len(raw) < len(didlMagic) || !bytes.Equal(raw[:len(didlMagic)], didlMagic) {
		return nil, newDecodeError("missing DIDL magic header")
	}
	w := &wireReader{r: bytes.NewReader(raw[len(didlMagic):])}
	if err := w.readTypeTable(); err != nil {
		return nil, err
	}
	return w, nil
}

// typeRef resolves a signed type reference: a non-negative table index or a
// negative primitive opcode.
func (w *wireReader) typeRef(idx int64) (*Type, error) {
	if idx >= 0 {
		if idx >= int64(len(w.table)) {
			return nil, newDecodeError("type index %d out of range", idx)
		}
		return w.table[idx], nil
	}
	kind, ok := opcodeKinds[idx]
	if !ok {
		return nil, newDecodeError("unknown type opcode %d", idx)
	}
	return &Type{Kind: kind}, nil
}

var opcodeKinds = map[int64]TypeKind{
	opcodeNull:      KindNull,
	opcodeBool:      KindBool,
	opcodeNat:       KindNat,
	opcodeInt:       KindInt,
	opcodeNat8:      KindNat8,
	opcodeNat16:     KindNat16,
	opcodeNat32:     KindNat32,
	opcodeNat64:     KindNat64,
	opcodeInt8:      KindInt8,
	opcodeInt16:     KindInt16,
	opcodeInt32:     KindInt32,
	opcodeInt64:     KindInt64,
	opcodeFloat32:   KindFloat32,
	opcodeFloat64:   KindFloat64,
	opcodeText:      KindText,
	opcodeReserved:  KindReserved,
	opcodeEmpty:     KindEmpty,
	opcodePrincipal: KindPrincipal,
}

func (w *wireReader) readTypeTable() error {
	count, err := readULEB128(w.r)
	if err != nil {
		return newDecodeError("reading type table size: %v", err)
	}
	if count > uint64(w.r.Len()) {
		return newDecodeError("type table size %d exceeds message", count)
	}
	w.table = make([]*Type, count)
	for i := range w.table {
		w.table[i] = &Type{}
	}
	for i := uint64(0); i < count; i++ {
		opcode, err := readSLEB128(w.r)
		if err != nil {
			return newDecodeError("reading type table entry %d: %v", i, err)
		}
		entry := w.table[i]
		switch opcode {
		case opcodeOpt, opcodeVec:
			entry.Kind = KindOpt
			if opcode == opcodeVec {
				entry.Kind = KindVec
			}
			ref, err := readSLEB128(w.r)
			if err != nil {
				return newDecodeError("reading element type: %v", err)
			}
			elem, err := w.typeRef(ref)
			if err != nil {
				return err
			}
			entry.Elem = elem
		case opcodeRecord, opcodeVariant:
			entry.Kind = KindRecord
			if opcode == opcodeVariant {
				entry.Kind = KindVariant
			}
			n, err := readULEB128(w.r)
			if err != nil {
				return newDecodeError("reading field count: %v", err)
			}
			if n > uint64(w.r.Len()) {
				return newDecodeError("field count %d exceeds message", n)
			}
			fields := make([]Field, 0, n)
			prev := int64(-1)
			for j := uint64(0); j < n; j++ {
				id, err := readULEB128(w.r)
				if err != nil {
					return newDecodeError("reading field id: %v", err)
				}
				if id > math.MaxUint32 {
					return newDecodeError("field id %d out of range", id)
				}
				if int64(id) <= prev {
					return newDecodeError("field ids not strictly increasing")
				}
				prev = int64(id)
				ref, err := readSLEB128(w.r)
				if err != nil {
					return newDecodeError("reading field type: %v", err)
				}
				ft, err := w.typeRef(ref)
				if err != nil {
					return err
				}
				fields = append(fields, Field{ID: uint32(id), Type: ft})
			}
			entry.Fields = fields
		case opcodeFunc:
			entry.Kind = KindFunc
			if err := w.skipFuncType(); err != nil {
				return err
			}
		case opcodeService:
			entry.Kind = KindService
			if err := w.skipServiceType(); err != nil {
				return err
			}
		default:
			return newDecodeError("composite type table entry has opcode %d", opcode)
		}
	}
	return nil
}

func (w *wireReader) skipFuncType() error {
	for part := 0; part < 2; part++ {
		n, err := readULEB128(w.r)
		if err != nil {
			return newDecodeError("reading func signature: %v", err)
		}
		for i := uint64(0); i < n; i++ {
			if _, err := readSLEB128(w.r); err != nil {
				return newDecodeError("reading func signature: %v", err)
			}
		}
	}
	n, err := readULEB128(w.r)
	if err != nil {
		return newDecodeError("reading func annotations: %v", err)
	}
	for i := uint64(0); i < n; i++ {
		if _, err := w.r.ReadByte(); err != nil {
			return newDecodeError("reading func annotations: %v", err)
		}
	}
	return nil
}

func (w *wireReader) skipServiceType() error {
	n, err := readULEB128(w.r)
	if err != nil {
		return newDecodeError("reading service type: %v", err)
	}
	for i := uint64(0); i < n; i++ {
		nameLen, err := readULEB128(w.r)
		if err != nil {
			return newDecodeError("reading service method name: %v", err)
		}
		if nameLen > uint64(w.r.Len()) {
			return newDecodeError("service method name exceeds message")
		}
		if _, err := w.r.Seek(int64(nameLen), 1); err != nil {
			return newDecodeError("reading service method name: %v", err)
		}
		if _, err := readSLEB128(w.r); err != nil {
			return newDecodeError("reading service method type: %v", err)
		}
	}
	return nil
}

func (w *wireReader) decodeArgs() ([]Value, error) {
	count, err := readULEB128(w.r)
	if err != nil {
		return nil, newDecodeError("reading argument count: %v", err)
	}
	if count > uint64(w.r.Len())+1 {
		return nil, newDecodeError("argument count %d exceeds message", count)
	}
	argTypes := make([]*Type, count)
	for i := range argTypes {
		ref, err := readSLEB128(w.r)
		if err != nil {
			return nil, newDecodeError("reading argument type: %v", err)
		}
		t, err := w.typeRef(ref)
		if err != nil {
			return nil, err
		}
		argTypes[i] = t
	}
	values := make([]Value, count)
	for i, t := range argTypes {
		v, err := w.decodeValue(t, 0)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func (w *wireReader) decodeValue(t *Type, depth int) (Value, error) {
	if depth > maxDecodeDepth {
		return Value{}, newDecodeError("value nesting exceeds %d levels", maxDecodeDepth)
	}
	switch t.Kind {
	case KindNull:
		return NullValue(), nil
	case KindReserved:
		return Value{Kind: ValReserved}, nil
	case KindEmpty:
		return Value{}, newDecodeError("message contains a value of type empty")
	case KindBool:
		b, err := w.r.ReadByte()
		if err != nil {
			return Value{}, truncated(err)
		}
		if b > 1 {
			return Value{}, newDecodeError("invalid bool byte %#x", b)
		}
		return BoolValue(b == 1), nil
	case KindNat:
		n, err := readBigULEB128(w.r)
		if err != nil {
			return Value{}, truncated(err)
		}
		return Value{Kind: ValNat, Num: n}, nil
	case KindInt:
		n, err := readBigSLEB128(w.r)
		if err != nil {
			return Value{}, truncated(err)
		}
		return Value{Kind: ValInt, Num: n}, nil
	case KindNat8, KindNat16, KindNat32, KindNat64:
		width := fixedWidth(t.Kind)
		raw := make([]byte, width)
		if _, err := readFull(w.r, raw); err != nil {
			return Value{}, err
		}
		n := new(big.Int).SetUint64(littleEndianUint(raw))
		return Value{Kind: fixedValueKind(t.Kind), Num: n}, nil
	case KindInt8, KindInt16, KindInt32, KindInt64:
		width := fixedWidth(t.Kind)
		raw := make([]byte, width)
		if _, err := readFull(w.r, raw); err != nil {
			return Value{}, err
		}
		u := littleEndianUint(raw)
		// Sign-extend from the value's width.
		shift := uint(64 - width*8)
		n := big.NewInt(int64(u<<shift) >> shift)
		return Value{Kind: fixedValueKind(t.Kind), Num: n}, nil
	case KindFloat32:
		raw := make([]byte, 4)
		if _, err := readFull(w.r, raw); err != nil {
			return Value{}, err
		}
		f := math.Float32frombits(binary.LittleEndian.Uint32(raw))
		return Value{Kind: ValFloat32, Float: float64(f)}, nil
	case KindFloat64:
		raw := make([]byte, 8)
		if _, err := readFull(w.r, raw); err != nil {
			return Value{}, err
		}
		return Value{Kind: ValFloat64, Float: math.Float64frombits(binary.LittleEndian.Uint64(raw))}, nil
	case KindText:
		n, err := readULEB128(w.r)
		if err != nil {
			return Value{}, truncated(err)
		}
		if n > uint64(w.r.Len()) {
			return Value{}, newDecodeError("text length %d exceeds message", n)
		}
		raw := make([]byte, n)
		if _, err := readFull(w.r, raw); err != nil {
			return Value{}, err
		}
		return TextValue(string(raw)), nil
	case KindPrincipal:
		tag, err := w.r.ReadByte()
		if err != nil {
			return Value{}, truncated(err)
		}
		if tag != 1 {
			return Value{}, newDecodeError("opaque principal references are not supported")
		}
		n, err := readULEB128(w.r)
		if err != nil {
			return Value{}, truncated(err)
		}
		if n > uint64(w.r.Len()) {
			return Value{}, newDecodeError("principal length %d exceeds message", n)
		}
		raw := make([]byte, n)
		if _, err := readFull(w.r, raw); err != nil {
			return Value{}, err
		}
		p, err := PrincipalFromBytes(raw)
		if err != nil {
			return Value{}, newDecodeError("invalid principal: %v", err)
		}
		return PrincipalValue(p), nil
	case KindOpt:
		flag, err := w.r.ReadByte()
		if err != nil {
			return Value{}, truncated(err)
		}
		switch flag {
		case 0:
			return NullValue(), nil
		case 1:
			inner, err := w.decodeValue(t.Elem, depth+1)
			if err != nil {
				return Value{}, err
			}
			return OptValue(inner), nil
		default:
			return Value{}, newDecodeError("invalid opt flag %#x", flag)
		}
	case KindVec:
		n, err := readULEB128(w.r)
		if err != nil {
			return Value{}, truncated(err)
		}
		if t.Elem.Kind == KindNat8 {
			if n > uint64(w.r.Len()) {
				return Value{}, newDecodeError("blob length %d exceeds message", n)
			}
			raw := make([]byte, n)
			if _, err := readFull(w.r, raw); err != nil {
				return Value{}, err
			}
			return BlobValue(raw), nil
		}
		if n > uint64(w.r.Len())+1 {
			return Value{}, newDecodeError("vector length %d exceeds message", n)
		}
		items := make([]Value, n)
		for i := range items {
			item, err := w.decodeValue(t.Elem, depth+1)
			if err != nil {
				return Value{}, err
			}
			items[i] = item
		}
		return VecValue(items...), nil
	case KindRecord:
		fields := make([]FieldValue, len(t.Fields))
		for i, f := range t.Fields {
			v, err := w.decodeValue(f.Type, depth+1)
			if err != nil {
				return Value{}, err
			}
			fields[i] = FieldValue{ID: f.ID, Val: v}
		}
		return Value{Kind: ValRecord, Fields: fields}, nil
	case KindVariant:
		idx, err := readULEB128(w.r)
		if err != nil {
			return Value{}, truncated(err)
		}
		if idx >= uint64(len(t.Fields)) {
			return Value{}, newDecodeError("variant index %d out of range", idx)
		}
		f := t.Fields[idx]
		v, err := w.decodeValue(f.Type, depth+1)
		if err != nil {
			return Value{}, err
		}
		return VariantValue(FieldValue{ID: f.ID, Val: v}), nil
	case KindFunc, KindService:
		return Value{}, newDecodeError("%s values are not supported", t)
	}
	return Value{}, newDecodeError("cannot decode value of kind %d", t.Kind)
}

func fixedWidth(k TypeKind) int {
	switch k {
	case KindNat8, KindInt8:
		return 1
	case KindNat16, KindInt16:
		return 2
	case KindNat32, KindInt32:
		return 4
	default:
		return 8
	}
}

func fixedValueKind(k TypeKind) ValueKind {
	switch k {
	case KindNat8:
		return ValNat8
	case KindNat16:
		return ValNat16
	case KindNat32:
		return ValNat32
	case KindNat64:
		return ValNat64
	case KindInt8:
		return ValInt8
	case KindInt16:
		return ValInt16
	case KindInt32:
		return ValInt32
	default:
		return ValInt64
	}
}

func littleEndianUint(raw []byte) uint64 {
	var u uint64
	for i := len(raw) - 1; i >= 0; i-- {
		u = u<<8 | uint64(raw[i])
	}
	return u
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	// A zero-length payload is valid even at the end of the message;
	// bytes.Reader reports io.EOF for empty reads at EOF.
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := r.Read(buf)
	if err != nil || n != len(buf) {
		return n, newDecodeError("message truncated")
	}
	return n, nil
}

func truncated(err error) error {
	return newDecodeError("message truncated: %v", err)
}
