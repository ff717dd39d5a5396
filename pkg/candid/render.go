package candid

import (
	"fmt"
	"strconv"
	"strings"
)

// RenderArgs renders an ordered argument list in the canonical textual form,
// e.g. `(record { owner = principal "aaaaa-aa"; amount = 5 : nat })`.
func RenderArgs(values []Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = renderValue(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func renderValue(v Value) string {
	switch v.Kind {
	case ValNull:
		return "null"
	case ValReserved:
		return "reserved"
	case ValBool:
		return strconv.FormatBool(v.Bool)
	case ValNumber:
		return groupDigits(v.Num.String())
	case ValNat, ValInt, ValNat8, ValNat16, ValNat32, ValNat64,
		ValInt8, ValInt16, ValInt32, ValInt64:
		return groupDigits(v.Num.String()) + " : " + valueKindAnnotations[v.Kind]
	case ValFloat32, ValFloat64:
		return formatFloat(v.Float) + " : " + valueKindAnnotations[v.Kind]
	case ValText:
		return quoteText(v.Str)
	case ValBlob:
		return renderBlob(v.Bytes)
	case ValPrincipal:
		return `principal "` + v.Principal.String() + `"`
	case ValOpt:
		if v.Inner == nil {
			return "null"
		}
		return "opt " + renderValue(*v.Inner)
	case ValVec:
		if len(v.Items) == 0 {
			return "vec {}"
		}
		parts := make([]string, len(v.Items))
		for i, item := range v.Items {
			parts[i] = renderValue(item)
		}
		return "vec { " + strings.Join(parts, "; ") + " }"
	case ValRecord:
		if len(v.Fields) == 0 {
			return "record {}"
		}
		if isTuple(v.Fields) {
			parts := make([]string, len(v.Fields))
			for i, f := range v.Fields {
				parts[i] = renderValue(f.Val)
			}
			return "record { " + strings.Join(parts, "; ") + " }"
		}
		parts := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			parts[i] = fieldLabel(f) + " = " + renderValue(f.Val)
		}
		return "record { " + strings.Join(parts, "; ") + " }"
	case ValVariant:
		if len(v.Fields) != 1 {
			return "variant {}"
		}
		f := v.Fields[0]
		if f.Val.Kind == ValNull {
			return "variant { " + fieldLabel(f) + " }"
		}
		return "variant { " + fieldLabel(f) + " = " + renderValue(f.Val) + " }"
	}
	return fmt.Sprintf("<%s>", v.Kind)
}

func fieldLabel(f FieldValue) string {
	if f.Named {
		return f.Name
	}
	return groupDigits(strconv.FormatUint(uint64(f.ID), 10))
}

// isTuple reports whether the fields are exactly the sequential unnamed
// slots 0..n-1, which render without labels.
func isTuple(fields []FieldValue) bool {
	for i, f := range fields {
		if f.Named || f.ID != uint32(i) {
			return false
		}
	}
	return true
}

// groupDigits inserts underscores every three digits for readability,
// matching the canonical pretty form. Numbers of four digits or fewer are
// left alone.
func groupDigits(s string) string {
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")
	if len(digits) <= 4 {
		return s
	}
	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead > 0 {
		sb.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if sb.Len() > btoi(neg) {
			sb.WriteByte('_')
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "Inf") && s != "NaN" {
		s += ".0"
	}
	return s
}

// quoteText renders a text literal with the grammar's escape forms.
func quoteText(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&sb, `\u{%x}`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// renderBlob renders every byte as a two-digit hex escape, the same shape
// the original tooling emits for blob literals.
func renderBlob(b []byte) string {
	var sb strings.Builder
	sb.WriteString(`blob "`)
	for _, c := range b {
		fmt.Fprintf(&sb, `\%02x`, c)
	}
	sb.WriteByte('"')
	return sb.String()
}
