package candid

import "math/big"

type intBounds struct {
	min *big.Int
	max *big.Int
}

func unsignedBounds(bits uint) intBounds {
	max := new(big.Int).Lsh(big.NewInt(1), bits)
	max.Sub(max, big.NewInt(1))
	return intBounds{min: big.NewInt(0), max: max}
}

func signedBounds(bits uint) intBounds {
	max := new(big.Int).Lsh(big.NewInt(1), bits-1)
	min := new(big.Int).Neg(max)
	max.Sub(max, big.NewInt(1))
	return intBounds{min: min, max: max}
}

var integerKindInfo = map[TypeKind]struct {
	val    ValueKind
	bounds *intBounds
}{
	KindNat:   {ValNat, &intBounds{min: big.NewInt(0)}},
	KindInt:   {ValInt, &intBounds{}},
	KindNat8:  {ValNat8, boundsPtr(unsignedBounds(8))},
	KindNat16: {ValNat16, boundsPtr(unsignedBounds(16))},
	KindNat32: {ValNat32, boundsPtr(unsignedBounds(32))},
	KindNat64: {ValNat64, boundsPtr(unsignedBounds(64))},
	KindInt8:  {ValInt8, boundsPtr(signedBounds(8))},
	KindInt16: {ValInt16, boundsPtr(signedBounds(16))},
	KindInt32: {ValInt32, boundsPtr(signedBounds(32))},
	KindInt64: {ValInt64, boundsPtr(signedBounds(64))},
}

func boundsPtr(b intBounds) *intBounds { return &b }

func (b *intBounds) check(n *big.Int) bool {
	if b.min != nil && n.Cmp(b.min) < 0 {
		return false
	}
	if b.max != nil && n.Cmp(b.max) > 0 {
		return false
	}
	return true
}

// applyType coerces a value to a declared type, renaming record and variant
// members from the type's labels and enforcing integer ranges. It implements
// the permissive subset of subtyping the engine needs: untyped numbers adopt
// the declared numeric type, non-opt values widen into opt, records may omit
// opt fields and carry extra fields (dropped).
func applyType(v Value, t *Type, env *TypeEnv) (Value, error) {
	resolved := t
	if env != nil {
		var err error
		resolved, err = env.resolve(t)
		if err != nil {
			return Value{}, err
		}
	} else if t.Kind == KindVar {
		return Value{}, newParseError("unknown type %q in annotation", t.Name)
	}

	if info, ok := integerKindInfo[resolved.Kind]; ok {
		if !isIntegerKind(v.Kind) || v.Num == nil {
			return Value{}, newEncodeError("value %s is not a %s", v.Kind, resolved)
		}
		if !info.bounds.check(v.Num) {
			return Value{}, newEncodeError("value %s out of range for %s", v.Num, resolved)
		}
		return Value{Kind: info.val, Num: new(big.Int).Set(v.Num)}, nil
	}

	switch resolved.Kind {
	case KindNull:
		if v.Kind != ValNull {
			return Value{}, newEncodeError("value %s is not null", v.Kind)
		}
		return NullValue(), nil

	case KindReserved:
		return Value{Kind: ValReserved}, nil

	case KindEmpty:
		return Value{}, newEncodeError("no value inhabits empty")

	case KindBool:
		if v.Kind != ValBool {
			return Value{}, newEncodeError("value %s is not a bool", v.Kind)
		}
		return v, nil

	case KindFloat32, KindFloat64:
		out := ValFloat64
		if resolved.Kind == KindFloat32 {
			out = ValFloat32
		}
		switch v.Kind {
		case ValFloat32, ValFloat64:
			return Value{Kind: out, Float: v.Float}, nil
		case ValNumber:
			f, _ := new(big.Float).SetInt(v.Num).Float64()
			return Value{Kind: out, Float: f}, nil
		}
		return Value{}, newEncodeError("value %s is not a %s", v.Kind, resolved)

	case KindText:
		if v.Kind != ValText {
			return Value{}, newEncodeError("value %s is not text", v.Kind)
		}
		return v, nil

	case KindPrincipal:
		if v.Kind != ValPrincipal {
			return Value{}, newEncodeError("value %s is not a principal", v.Kind)
		}
		return v, nil

	case KindOpt:
		switch v.Kind {
		case ValNull:
			return NullValue(), nil
		case ValOpt:
			if v.Inner == nil {
				return NullValue(), nil
			}
			inner, err := applyType(*v.Inner, resolved.Elem, env)
			if err != nil {
				return Value{}, err
			}
			return OptValue(inner), nil
		default:
			// t <: opt t
			inner, err := applyType(v, resolved.Elem, env)
			if err != nil {
				return Value{}, err
			}
			return OptValue(inner), nil
		}

	case KindVec:
		elem := resolved.Elem
		elemResolved := elem
		if env != nil {
			var err error
			elemResolved, err = env.resolve(elem)
			if err != nil {
				return Value{}, err
			}
		}
		if v.Kind == ValBlob {
			if elemResolved.Kind != KindNat8 {
				return Value{}, newEncodeError("blob is not a vec %s", elem)
			}
			return v, nil
		}
		if v.Kind != ValVec {
			return Value{}, newEncodeError("value %s is not a vec", v.Kind)
		}
		if elemResolved.Kind == KindNat8 {
			bytes := make([]byte, len(v.Items))
			for i, item := range v.Items {
				b, err := applyType(item, elemResolved, env)
				if err != nil {
					return Value{}, err
				}
				bytes[i] = byte(b.Num.Uint64())
			}
			return BlobValue(bytes), nil
		}
		items := make([]Value, len(v.Items))
		for i, item := range v.Items {
			coerced, err := applyType(item, elem, env)
			if err != nil {
				return Value{}, err
			}
			items[i] = coerced
		}
		return VecValue(items...), nil

	case KindRecord:
		if v.Kind != ValRecord {
			return Value{}, newEncodeError("value %s is not a record", v.Kind)
		}
		fields := make([]FieldValue, 0, len(resolved.Fields))
		for _, ft := range resolved.Fields {
			found := false
			for _, fv := range v.Fields {
				if fv.ID == ft.ID {
					coerced, err := applyType(fv.Val, ft.Type, env)
					if err != nil {
						return Value{}, err
					}
					fields = append(fields, FieldValue{ID: ft.ID, Name: ft.Name, Named: ft.Named, Val: coerced})
					found = true
					break
				}
			}
			if found {
				continue
			}
			def, err := missingFieldDefault(ft, env)
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, FieldValue{ID: ft.ID, Name: ft.Name, Named: ft.Named, Val: def})
		}
		return RecordValue(fields...), nil

	case KindVariant:
		if v.Kind != ValVariant || len(v.Fields) != 1 {
			return Value{}, newEncodeError("value %s is not a variant", v.Kind)
		}
		tag := v.Fields[0]
		ft, ok := resolved.findField(tag.ID)
		if !ok {
			return Value{}, newEncodeError("variant tag %s not in %s", fieldLabel(tag), resolved)
		}
		payload, err := applyType(tag.Val, ft.Type, env)
		if err != nil {
			return Value{}, err
		}
		return VariantValue(FieldValue{ID: ft.ID, Name: ft.Name, Named: ft.Named, Val: payload}), nil

	case KindFunc, KindService:
		return Value{}, newEncodeError("%s values are not supported", resolved)
	}
	return Value{}, newEncodeError("cannot apply type %s", resolved)
}

// missingFieldDefault yields the value for a record field absent from the
// input: null for opt and null fields, reserved for reserved fields.
func missingFieldDefault(ft Field, env *TypeEnv) (Value, error) {
	resolved := ft.Type
	if env != nil {
		var err error
		resolved, err = env.resolve(ft.Type)
		if err != nil {
			return Value{}, err
		}
	}
	switch resolved.Kind {
	case KindOpt, KindNull:
		return NullValue(), nil
	case KindReserved:
		return Value{Kind: ValReserved}, nil
	}
	return Value{}, newEncodeError("missing record field %s : %s", fieldLabel(FieldValue{ID: ft.ID, Name: ft.Name, Named: ft.Named}), ft.Type)
}
