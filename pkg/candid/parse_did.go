package candid

import "strconv"

// ParseDescription parses a textual interface description into a TypeEnv:
// named type definitions plus the service's method signatures. Imports are
// not supported; an import declaration is a parse error.
func ParseDescription(text string) (*TypeEnv, error) {
	p := &didParser{sc: newScanner(text)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	env := &TypeEnv{defs: map[string]*Type{}}

	for p.tok.kind == tokIdent && p.tok.text == "type" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokIdent {
			return nil, newParseError("%d:%d: expected type name, found %s", p.tok.line, p.tok.col, p.tok.describe())
		}
		name := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, exists := env.defs[name]; exists {
			return nil, newParseError("duplicate type definition %q", name)
		}
		env.defs[name] = t
		if err := p.expectPunct(";"); err != nil {
			return nil, err
		}
	}

	if p.tok.kind == tokIdent && p.tok.text == "import" {
		return nil, newParseError("%d:%d: import declarations are not supported", p.tok.line, p.tok.col)
	}

	if p.tok.kind == tokIdent && p.tok.text == "service" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		// Optional service name.
		if p.tok.kind == tokIdent {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		// Optional constructor argument list: `service : (Args) -> { ... }`.
		if p.tok.kind == tokPunct && p.tok.text == "(" {
			if _, err := p.parseTupType(); err != nil {
				return nil, err
			}
			if err := p.expectPunct("->"); err != nil {
				return nil, err
			}
		}
		methods, err := p.parseActorType(env)
		if err != nil {
			return nil, err
		}
		env.service = methods
		// Optional trailing semicolon after the service block.
		if p.tok.kind == tokPunct && p.tok.text == ";" {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}

	if p.tok.kind != tokEOF {
		return nil, newParseError("%d:%d: unexpected %s at top level", p.tok.line, p.tok.col, p.tok.describe())
	}
	return env, nil
}

type didParser struct {
	sc  *scanner
	tok token
}

func (p *didParser) advance() error {
	tok, err := p.sc.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *didParser) expectPunct(text string) error {
	if p.tok.kind != tokPunct || p.tok.text != text {
		return newParseError("%d:%d: expected %q, found %s", p.tok.line, p.tok.col, text, p.tok.describe())
	}
	return p.advance()
}

func (p *didParser) parseActorType(env *TypeEnv) ([]Method, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var methods []Method
	for !(p.tok.kind == tokPunct && p.tok.text == "}") {
		var name string
		switch p.tok.kind {
		case tokIdent:
			name = p.tok.text
		case tokText:
			name = p.tok.str
		default:
			return nil, newParseError("%d:%d: expected method name, found %s", p.tok.line, p.tok.col, p.tok.describe())
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}

		var m Method
		m.Name = name
		if p.tok.kind == tokIdent {
			// Reference to a named func type.
			ref := p.tok.text
			if err := p.advance(); err != nil {
				return nil, err
			}
			def, ok := env.defs[ref]
			if !ok || def.Kind != KindFunc {
				return nil, newParseError("method %q references %q which is not a func type", name, ref)
			}
			m.Args, m.Rets, m.Annotations = def.Args, def.Rets, def.Annotations
		} else {
			ft, err := p.parseFuncType()
			if err != nil {
				return nil, err
			}
			m.Args, m.Rets, m.Annotations = ft.Args, ft.Rets, ft.Annotations
		}
		methods = append(methods, m)
		if p.tok.kind == tokPunct && p.tok.text == ";" {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	return methods, p.advance()
}

func (p *didParser) parseFuncType() (*Type, error) {
	args, err := p.parseTupType()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("->"); err != nil {
		return nil, err
	}
	rets, err := p.parseTupType()
	if err != nil {
		return nil, err
	}
	var annotations []string
	for p.tok.kind == tokIdent && (p.tok.text == "query" || p.tok.text == "oneway" || p.tok.text == "composite_query") {
		annotations = append(annotations, p.tok.text)
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return &Type{Kind: KindFunc, Args: args, Rets: rets, Annotations: annotations}, nil
}

func (p *didParser) parseTupType() ([]*Type, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var types []*Type
	for !(p.tok.kind == tokPunct && p.tok.text == ")") {
		// Optional argument name: `name : typ`.
		if p.tok.kind == tokIdent {
			save := *p.sc
			nameTok := p.tok
			if err := p.advance(); err != nil {
				return nil, err
			}
			if !(p.tok.kind == tokPunct && p.tok.text == ":") {
				*p.sc = save
				p.tok = nameTok
			} else if err := p.advance(); err != nil {
				return nil, err
			}
		}
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		types = append(types, t)
		if p.tok.kind == tokPunct && p.tok.text == "," {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	return types, p.advance()
}

func (p *didParser) parseType() (*Type, error) {
	tok := p.tok
	if tok.kind != tokIdent && !(tok.kind == tokPunct && tok.text == "(") {
		return nil, newParseError("%d:%d: expected type, found %s", tok.line, tok.col, tok.describe())
	}

	switch tok.text {
	case "opt":
		if err := p.advance(); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindOpt, Elem: elem}, nil
	case "vec":
		if err := p.advance(); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindVec, Elem: elem}, nil
	case "blob":
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Type{Kind: KindVec, Elem: &Type{Kind: KindNat8}}, nil
	case "record":
		if err := p.advance(); err != nil {
			return nil, err
		}
		fields, err := p.parseFieldTypes(false)
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindRecord, Fields: fields}, nil
	case "variant":
		if err := p.advance(); err != nil {
			return nil, err
		}
		fields, err := p.parseFieldTypes(true)
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindVariant, Fields: fields}, nil
	case "func":
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseFuncType()
	case "service":
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		// Method shapes of inline service types are parsed and discarded;
		// only the kind matters for encoding references.
		if _, err := p.parseActorType(&TypeEnv{defs: map[string]*Type{}}); err != nil {
			return nil, err
		}
		return &Type{Kind: KindService}, nil
	}

	if kind, ok := primitiveTypes[tok.text]; ok {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Type{Kind: kind}, nil
	}

	if tok.kind == tokIdent {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Type{Kind: KindVar, Name: tok.text}, nil
	}
	return nil, newParseError("%d:%d: expected type, found %s", tok.line, tok.col, tok.describe())
}

func (p *didParser) parseFieldTypes(variant bool) ([]Field, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var fields []Field
	nextTuple := uint32(0)
	for !(p.tok.kind == tokPunct && p.tok.text == "}") {
		f, err := p.parseFieldType(variant, &nextTuple)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		if p.tok.kind == tokPunct && p.tok.text == ";" {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	sortTypeFields(fields)
	for i := 1; i < len(fields); i++ {
		if fields[i].ID == fields[i-1].ID {
			return nil, newParseError("duplicate field id %d", fields[i].ID)
		}
	}
	return fields, nil
}

func (p *didParser) parseFieldType(variant bool, nextTuple *uint32) (Field, error) {
	// Labels: identifier, quoted string, or field number, followed by ':'.
	// A bare label inside a variant means a null payload. Anything else is
	// an unlabeled tuple slot.
	labelable := p.tok.kind == tokText || p.tok.kind == tokNumber ||
		(p.tok.kind == tokIdent)
	if labelable {
		save := *p.sc
		labelTok := p.tok
		if err := p.advance(); err != nil {
			return Field{}, err
		}
		if p.tok.kind == tokPunct && p.tok.text == ":" {
			if err := p.advance(); err != nil {
				return Field{}, err
			}
			t, err := p.parseType()
			if err != nil {
				return Field{}, err
			}
			return labelTokenToField(labelTok, t, nextTuple)
		}
		if variant && (p.tok.kind == tokPunct && (p.tok.text == ";" || p.tok.text == "}")) &&
			(labelTok.kind == tokText || labelTok.kind == tokNumber ||
				(labelTok.kind == tokIdent && !isTypeKeyword(labelTok.text))) {
			return labelTokenToField(labelTok, &Type{Kind: KindNull}, nextTuple)
		}
		*p.sc = save
		p.tok = labelTok
	}
	t, err := p.parseType()
	if err != nil {
		return Field{}, err
	}
	id := *nextTuple
	*nextTuple = id + 1
	return Field{ID: id, Type: t}, nil
}

func labelTokenToField(tok token, t *Type, nextTuple *uint32) (Field, error) {
	switch tok.kind {
	case tokNumber:
		if tok.isFloat {
			return Field{}, newParseError("%d:%d: float field label", tok.line, tok.col)
		}
		base := 10
		if tok.isHex {
			base = 16
		}
		id, err := strconv.ParseUint(tok.text, base, 32)
		if err != nil {
			return Field{}, newParseError("%d:%d: field id %q out of range", tok.line, tok.col, tok.text)
		}
		*nextTuple = uint32(id) + 1
		return Field{ID: uint32(id), Type: t}, nil
	case tokText:
		return Field{ID: hashFieldName(tok.str), Name: tok.str, Named: true, Type: t}, nil
	default:
		return Field{ID: hashFieldName(tok.text), Name: tok.text, Named: true, Type: t}, nil
	}
}

func isTypeKeyword(s string) bool {
	if _, ok := primitiveTypes[s]; ok {
		return true
	}
	switch s {
	case "opt", "vec", "record", "variant", "func", "service", "blob":
		return true
	}
	return false
}

func sortTypeFields(fields []Field) {
	for i := 1; i < len(fields); i++ {
		for j := i; j > 0 && fields[j-1].ID > fields[j].ID; j-- {
			fields[j-1], fields[j] = fields[j], fields[j-1]
		}
	}
}
