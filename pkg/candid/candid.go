package candid

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// EncodeResult carries the three renderings of one encoded argument list.
type EncodeResult struct {
	// Raw is the binary message.
	Raw []byte
	// Hex is Raw in lowercase hex.
	Hex string
	// Blob is Raw as a textual blob literal.
	Blob string
}

// EncodeText parses a textual argument list and serializes it to the binary
// wire form. When env is non-nil and method names one of its service methods,
// the arguments are coerced against the method's declared parameter types.
// With an empty method the types are inferred from the values alone.
func EncodeText(args string, env *TypeEnv, method string) (*EncodeResult, error) {
	values, err := ParseArgs(args)
	if err != nil {
		return nil, err
	}
	var raw []byte
	if method != "" {
		if env == nil {
			return nil, newResolutionError("method %q given without an interface description", method)
		}
		m, err := env.ResolveMethod(method)
		if err != nil {
			return nil, err
		}
		raw, err = EncodeValuesWithTypes(values, m.Args, env)
		if err != nil {
			return nil, err
		}
	} else {
		raw, err = EncodeValues(values)
		if err != nil {
			return nil, err
		}
	}
	return &EncodeResult{
		Raw:  raw,
		Hex:  hex.EncodeToString(raw),
		Blob: renderBlob(raw),
	}, nil
}

// DecodeBytes decodes a binary message against the return types of the named
// method and renders the canonical textual form.
func DecodeBytes(raw []byte, env *TypeEnv, method string) (string, error) {
	m, err := env.ResolveMethod(method)
	if err != nil {
		return "", err
	}
	values, err := DecodeValuesWithTypes(raw, m.Rets, env)
	if err != nil {
		return "", err
	}
	return RenderArgs(values), nil
}

// DecodeSchemaless decodes a binary message using only its embedded type
// table and renders the result. Record and variant members appear under
// their numeric ids.
func DecodeSchemaless(raw []byte) (string, error) {
	values, err := DecodeValues(raw)
	if err != nil {
		return "", err
	}
	return RenderArgs(values), nil
}

// DecodeResult is the outcome of decoding a response with graceful
// degradation.
type DecodeResult struct {
	// Text is the rendered argument list.
	Text string
	// Schemaless reports that the interface-guided decode failed and Text
	// came from the schemaless fallback.
	Schemaless bool
	// DecodeError holds the interface-guided decode failure when Schemaless
	// is set.
	DecodeError string
}

// DecodeResponse decodes a response message. When an interface description
// and method are supplied it first decodes against the method's return
// types; if that fails it falls back to a schemaless decode and reports both
// the fallback text and the original failure. Without an interface it goes
// straight to the schemaless decode.
func DecodeResponse(raw []byte, env *TypeEnv, method string) (*DecodeResult, error) {
	if env != nil && method != "" {
		text, err := DecodeBytes(raw, env, method)
		if err == nil {
			return &DecodeResult{Text: text}, nil
		}
		fallback, ferr := DecodeSchemaless(raw)
		if ferr != nil {
			return nil, err
		}
		return &DecodeResult{Text: fallback, Schemaless: true, DecodeError: err.Error()}, nil
	}
	text, err := DecodeSchemaless(raw)
	if err != nil {
		return nil, err
	}
	return &DecodeResult{Text: text, Schemaless: true}, nil
}

// NormalizeResponse turns any of the accepted response renderings into the
// binary message: raw bytes with the DIDL header, hex text, or a textual
// blob literal.
func NormalizeResponse(input []byte) ([]byte, error) {
	if len(input) >= len(didlMagic) && string(input[:len(didlMagic)]) == string(didlMagic) {
		return input, nil
	}
	trimmed := strings.TrimSpace(string(input))
	if isHexString(trimmed) {
		raw, err := hex.DecodeString(trimmed)
		if err != nil {
			return nil, newParseError("invalid hex response: %v", err)
		}
		return raw, nil
	}
	values, err := ParseArgs(trimmed)
	if err != nil {
		return nil, newParseError("response is not raw bytes, hex or a blob literal: %v", err)
	}
	if len(values) != 1 || values[0].Kind != ValBlob {
		return nil, newParseError("response text must be a single blob literal")
	}
	return values[0].Bytes, nil
}

func isHexString(s string) bool {
	if s == "" || len(s)%2 != 0 {
		return false
	}
	for _, c := range s {
		if !isHexDigit(byte(c)) {
			return false
		}
	}
	return true
}

// String renders a value with its canonical type annotation where one
// applies.
func (v Value) String() string {
	return renderValue(v)
}

// MustParseType parses a standalone type expression, for callers that build
// declared types programmatically. It panics on malformed input.
func MustParseType(text string) *Type {
	t, err := ParseType(text)
	if err != nil {
		panic(fmt.Sprintf("candid: parse type %q: %v", text, err))
	}
	return t
}

// ParseType parses a standalone type expression such as "vec record { nat;
// text }".
func ParseType(text string) (*Type, error) {
	p := &didParser{sc: newScanner(text)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, newParseError("%d:%d: unexpected %s after type", p.tok.line, p.tok.col, p.tok.describe())
	}
	return t, nil
}
