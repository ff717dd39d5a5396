package candid

// inferType derives the wire type a bare value serializes under when no
// declared type is supplied. Untyped number literals serialize as int.
func inferType(v Value) *Type {
	switch v.Kind {
	case ValNull:
		return &Type{Kind: KindNull}
	case ValReserved:
		return &Type{Kind: KindReserved}
	case ValBool:
		return &Type{Kind: KindBool}
	case ValNumber, ValInt:
		return &Type{Kind: KindInt}
	case ValNat:
		return &Type{Kind: KindNat}
	case ValNat8:
		return &Type{Kind: KindNat8}
	case ValNat16:
		return &Type{Kind: KindNat16}
	case ValNat32:
		return &Type{Kind: KindNat32}
	case ValNat64:
		return &Type{Kind: KindNat64}
	case ValInt8:
		return &Type{Kind: KindInt8}
	case ValInt16:
		return &Type{Kind: KindInt16}
	case ValInt32:
		return &Type{Kind: KindInt32}
	case ValInt64:
		return &Type{Kind: KindInt64}
	case ValFloat32:
		return &Type{Kind: KindFloat32}
	case ValFloat64:
		return &Type{Kind: KindFloat64}
	case ValText:
		return &Type{Kind: KindText}
	case ValBlob:
		return &Type{Kind: KindVec, Elem: &Type{Kind: KindNat8}}
	case ValPrincipal:
		return &Type{Kind: KindPrincipal}
	case ValOpt:
		if v.Inner == nil {
			return &Type{Kind: KindOpt, Elem: &Type{Kind: KindNull}}
		}
		return &Type{Kind: KindOpt, Elem: inferType(*v.Inner)}
	case ValVec:
		if len(v.Items) == 0 {
			return &Type{Kind: KindVec, Elem: &Type{Kind: KindNull}}
		}
		return &Type{Kind: KindVec, Elem: inferType(v.Items[0])}
	case ValRecord:
		fields := make([]Field, len(v.Fields))
		for i, f := range v.Fields {
			fields[i] = Field{ID: f.ID, Name: f.Name, Named: f.Named, Type: inferType(f.Val)}
		}
		return &Type{Kind: KindRecord, Fields: fields}
	case ValVariant:
		fields := make([]Field, len(v.Fields))
		for i, f := range v.Fields {
			fields[i] = Field{ID: f.ID, Name: f.Name, Named: f.Named, Type: inferType(f.Val)}
		}
		return &Type{Kind: KindVariant, Fields: fields}
	}
	return &Type{Kind: KindEmpty}
}
