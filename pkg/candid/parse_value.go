package candid

import (
	"math/big"
	"strconv"
)

// ParseArgs parses a textual argument list. Both the parenthesized form
// `(v1, v2)` and a bare single value are accepted.
func ParseArgs(text string) ([]Value, error) {
	p := &valueParser{sc: newScanner(text)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var values []Value
	if p.tok.kind == tokPunct && p.tok.text == "(" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind == tokPunct && p.tok.text == ")" {
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else {
			for {
				v, err := p.parseAnnotatedValue()
				if err != nil {
					return nil, err
				}
				values = append(values, v)
				if p.tok.kind == tokPunct && p.tok.text == "," {
					if err := p.advance(); err != nil {
						return nil, err
					}
					// trailing comma before ')'
					if p.tok.kind == tokPunct && p.tok.text == ")" {
						break
					}
					continue
				}
				break
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
		}
	} else {
		v, err := p.parseAnnotatedValue()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if p.tok.kind != tokEOF {
		return nil, newParseError("%d:%d: unexpected %s after value", p.tok.line, p.tok.col, p.tok.describe())
	}
	return values, nil
}

type valueParser struct {
	sc  *scanner
	tok token
}

func (p *valueParser) advance() error {
	tok, err := p.sc.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *valueParser) expectPunct(text string) error {
	if p.tok.kind != tokPunct || p.tok.text != text {
		return newParseError("%d:%d: expected %q, found %s", p.tok.line, p.tok.col, text, p.tok.describe())
	}
	return p.advance()
}

func (p *valueParser) parseAnnotatedValue() (Value, error) {
	v, err := p.parseValue()
	if err != nil {
		return Value{}, err
	}
	if p.tok.kind == tokPunct && p.tok.text == ":" {
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		t, err := p.parseTypeExpr()
		if err != nil {
			return Value{}, err
		}
		annotated, err := applyType(v, t, nil)
		if err != nil {
			return Value{}, err
		}
		return annotated, nil
	}
	return v, nil
}

func (p *valueParser) parseValue() (Value, error) {
	tok := p.tok
	switch tok.kind {
	case tokNumber:
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		if tok.isFloat {
			f, err := strconv.ParseFloat(tok.text, 64)
			if err != nil {
				return Value{}, newParseError("%d:%d: malformed float %q", tok.line, tok.col, tok.text)
			}
			return Value{Kind: ValFloat64, Float: f}, nil
		}
		n := new(big.Int)
		base := 10
		if tok.isHex {
			base = 16
		}
		if _, ok := n.SetString(tok.text, base); !ok {
			return Value{}, newParseError("%d:%d: malformed number %q", tok.line, tok.col, tok.text)
		}
		return Value{Kind: ValNumber, Num: n}, nil

	case tokText:
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		return TextValue(tok.str), nil

	case tokIdent:
		switch tok.text {
		case "null":
			return NullValue(), p.advance()
		case "reserved":
			return Value{Kind: ValReserved}, p.advance()
		case "true":
			return BoolValue(true), p.advance()
		case "false":
			return BoolValue(false), p.advance()
		case "opt":
			if err := p.advance(); err != nil {
				return Value{}, err
			}
			// The inner value is unannotated; a trailing `: opt t`
			// annotation binds to the whole opt expression.
			inner, err := p.parseValue()
			if err != nil {
				return Value{}, err
			}
			return OptValue(inner), nil
		case "blob":
			if err := p.advance(); err != nil {
				return Value{}, err
			}
			if p.tok.kind != tokText {
				return Value{}, newParseError("%d:%d: expected string after blob, found %s", p.tok.line, p.tok.col, p.tok.describe())
			}
			b := BlobValue([]byte(p.tok.str))
			return b, p.advance()
		case "principal":
			if err := p.advance(); err != nil {
				return Value{}, err
			}
			if p.tok.kind != tokText {
				return Value{}, newParseError("%d:%d: expected string after principal, found %s", p.tok.line, p.tok.col, p.tok.describe())
			}
			principal, err := PrincipalFromText(p.tok.str)
			if err != nil {
				return Value{}, newParseError("%d:%d: %v", p.tok.line, p.tok.col, err)
			}
			return PrincipalValue(principal), p.advance()
		case "vec":
			if err := p.advance(); err != nil {
				return Value{}, err
			}
			return p.parseVec()
		case "record":
			if err := p.advance(); err != nil {
				return Value{}, err
			}
			return p.parseRecord()
		case "variant":
			if err := p.advance(); err != nil {
				return Value{}, err
			}
			return p.parseVariant()
		}
		return Value{}, newParseError("%d:%d: unexpected identifier %q", tok.line, tok.col, tok.text)
	}
	return Value{}, newParseError("%d:%d: unexpected %s", tok.line, tok.col, tok.describe())
}

func (p *valueParser) parseVec() (Value, error) {
	if err := p.expectPunct("{"); err != nil {
		return Value{}, err
	}
	var items []Value
	for !(p.tok.kind == tokPunct && p.tok.text == "}") {
		v, err := p.parseAnnotatedValue()
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
		if p.tok.kind == tokPunct && p.tok.text == ";" {
			if err := p.advance(); err != nil {
				return Value{}, err
			}
		}
	}
	if err := p.advance(); err != nil {
		return Value{}, err
	}
	// A vector of plain byte-sized numbers collapses to a blob only when
	// decoded; textual vec keeps its shape.
	return VecValue(items...), nil
}

func (p *valueParser) parseRecord() (Value, error) {
	if err := p.expectPunct("{"); err != nil {
		return Value{}, err
	}
	var fields []FieldValue
	nextTuple := uint32(0)
	for !(p.tok.kind == tokPunct && p.tok.text == "}") {
		f, consumed, err := p.parseField(false, nextTuple)
		if err != nil {
			return Value{}, err
		}
		if consumed {
			nextTuple = f.ID + 1
		}
		fields = append(fields, f)
		if p.tok.kind == tokPunct && p.tok.text == ";" {
			if err := p.advance(); err != nil {
				return Value{}, err
			}
		}
	}
	if err := p.advance(); err != nil {
		return Value{}, err
	}
	return RecordValue(fields...), nil
}

func (p *valueParser) parseVariant() (Value, error) {
	if err := p.expectPunct("{"); err != nil {
		return Value{}, err
	}
	f, _, err := p.parseField(true, 0)
	if err != nil {
		return Value{}, err
	}
	if p.tok.kind == tokPunct && p.tok.text == ";" {
		if err := p.advance(); err != nil {
			return Value{}, err
		}
	}
	if err := p.expectPunct("}"); err != nil {
		return Value{}, err
	}
	return VariantValue(f), nil
}

// parseField parses `label = value`, a bare variant `label` (null payload),
// or a bare value taking the next tuple slot. The second result reports
// whether the tuple counter should advance past the field's id: true for
// bare values and explicit numeric labels, false for named labels.
func (p *valueParser) parseField(variant bool, tupleSlot uint32) (FieldValue, bool, error) {
	// A leading identifier, quoted string or number may be a label; it is
	// one when followed by '='. Keywords that start values (record, vec,
	// ...) are only labels when '=' follows, so look ahead through the
	// scanner.
	if p.tok.kind == tokIdent || p.tok.kind == tokNumber || p.tok.kind == tokText {
		save := *p.sc
		labelTok := p.tok
		if err := p.advance(); err != nil {
			return FieldValue{}, false, err
		}
		if p.tok.kind == tokPunct && p.tok.text == "=" {
			if err := p.advance(); err != nil {
				return FieldValue{}, false, err
			}
			v, err := p.parseAnnotatedValue()
			if err != nil {
				return FieldValue{}, false, err
			}
			f, err := labelToField(labelTok, v)
			// An explicit numeric label moves the tuple counter past it,
			// matching the description grammar.
			return f, labelTok.kind == tokNumber, err
		}
		// Bare label (variant tag without payload) when the next token
		// closes the field.
		if variant &&
			((labelTok.kind == tokIdent && !isValueKeyword(labelTok.text)) || labelTok.kind == tokText) &&
			p.tok.kind == tokPunct && (p.tok.text == ";" || p.tok.text == "}") {
			f, err := labelToField(labelTok, NullValue())
			return f, false, err
		}
		// Not a label: rewind and parse as a value in the next tuple slot.
		*p.sc = save
		p.tok = labelTok
	}
	v, err := p.parseAnnotatedValue()
	if err != nil {
		return FieldValue{}, false, err
	}
	return NumberedField(tupleSlot, v), true, nil
}

func labelToField(tok token, v Value) (FieldValue, error) {
	if tok.kind == tokText {
		return NamedField(tok.str, v), nil
	}
	if tok.kind == tokNumber {
		if tok.isFloat {
			return FieldValue{}, newParseError("%d:%d: float field label", tok.line, tok.col)
		}
		base := 10
		if tok.isHex {
			base = 16
		}
		id, err := strconv.ParseUint(tok.text, base, 32)
		if err != nil {
			return FieldValue{}, newParseError("%d:%d: field id %q out of range", tok.line, tok.col, tok.text)
		}
		return NumberedField(uint32(id), v), nil
	}
	return NamedField(tok.text, v), nil
}

func isValueKeyword(s string) bool {
	switch s {
	case "null", "true", "false", "opt", "vec", "record", "variant", "blob", "principal", "reserved":
		return true
	}
	return false
}

// parseTypeExpr parses a type expression in value annotations. The full
// description grammar lives in parse_did.go; annotations reuse it.
func (p *valueParser) parseTypeExpr() (*Type, error) {
	dp := &didParser{sc: p.sc, tok: p.tok}
	t, err := dp.parseType()
	if err != nil {
		return nil, err
	}
	p.tok = dp.tok
	return t, nil
}
