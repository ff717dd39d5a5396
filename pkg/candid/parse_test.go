package candid

import (
	"bytes"
	"testing"
)

func TestParseArgs_BareValue(t *testing.T) {
	values, err := ParseArgs("42")
	if err != nil {
		t.Fatalf("Expected bare value to parse, got: %v", err)
	}
	if len(values) != 1 {
		t.Fatalf("Expected 1 value, got %d", len(values))
	}
	if values[0].Kind != ValNumber || values[0].Num.Int64() != 42 {
		t.Errorf("Expected untyped 42, got %s", values[0])
	}
}

func TestParseArgs_TrailingComma(t *testing.T) {
	values, err := ParseArgs("(1, 2,)")
	if err != nil {
		t.Fatalf("Expected trailing comma to parse, got: %v", err)
	}
	if len(values) != 2 {
		t.Errorf("Expected 2 values, got %d", len(values))
	}
}

func TestParseArgs_Comments(t *testing.T) {
	values, err := ParseArgs(`(
		// line comment
		1, /* block /* nested */ comment */ 2,
	)`)
	if err != nil {
		t.Fatalf("Expected comments to be skipped, got: %v", err)
	}
	if len(values) != 2 {
		t.Errorf("Expected 2 values, got %d", len(values))
	}
}

func TestParseArgs_NumberForms(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1_000_000", 1000000},
		{"0x2a", 42},
		{"-7", -7},
		{"+7", 7},
	}
	for _, tc := range cases {
		values, err := ParseArgs("(" + tc.in + ")")
		if err != nil {
			t.Fatalf("Expected %s to parse, got: %v", tc.in, err)
		}
		if got := values[0].Num.Int64(); got != tc.want {
			t.Errorf("Expected %s to equal %d, got %d", tc.in, tc.want, got)
		}
	}
}

func TestParseArgs_StringEscapes(t *testing.T) {
	values, err := ParseArgs(`("a\nb\t\"\u{1F60A}\42")`)
	if err != nil {
		t.Fatalf("Expected escapes to parse, got: %v", err)
	}
	want := "a\nb\t\"\U0001F60A\x42"
	if values[0].Str != want {
		t.Errorf("Expected %q, got %q", want, values[0].Str)
	}
}

func TestParseArgs_BlobLiteral(t *testing.T) {
	values, err := ParseArgs(`(blob "\00\ff")`)
	if err != nil {
		t.Fatalf("Expected blob to parse, got: %v", err)
	}
	if values[0].Kind != ValBlob || !bytes.Equal(values[0].Bytes, []byte{0x00, 0xff}) {
		t.Errorf("Expected blob 00ff, got %s", values[0])
	}
}

func TestParseArgs_RecordFieldForms(t *testing.T) {
	values, err := ParseArgs(`(record { a = 1; 5 = 2; "quoted label" = 3; 4 })`)
	if err != nil {
		t.Fatalf("Expected record to parse, got: %v", err)
	}
	rec := values[0]
	if rec.Kind != ValRecord || len(rec.Fields) != 4 {
		t.Fatalf("Expected 4 record fields, got %s", rec)
	}
	// The bare value after the explicit numeric label 5 takes slot 6.
	var found bool
	for _, f := range rec.Fields {
		if !f.Named && f.ID == 6 {
			found = true
			if f.Val.Num.Int64() != 4 {
				t.Errorf("Expected slot 6 to hold 4, got %s", f.Val)
			}
		}
	}
	if !found {
		t.Error("Expected a field in tuple slot 6")
	}
}

func TestParseArgs_FieldsSortedByID(t *testing.T) {
	values, err := ParseArgs(`(record { 2 = "b"; 0 = "a"; 1 = "c" })`)
	if err != nil {
		t.Fatalf("Expected record to parse, got: %v", err)
	}
	for i, f := range values[0].Fields {
		if f.ID != uint32(i) {
			t.Errorf("Expected field %d in position %d, got id %d", i, i, f.ID)
		}
	}
}

func TestParseArgs_Errors(t *testing.T) {
	cases := []string{
		"(1",
		"(unknownident)",
		"(1 2)",
		`("unterminated`,
		"(record { a = })",
	}
	for _, in := range cases {
		if _, err := ParseArgs(in); err == nil {
			t.Errorf("Expected parse error for %q, got nil", in)
		} else if !IsParseError(err) {
			t.Errorf("Expected parse error for %q, got: %v", in, err)
		}
	}
}

func TestParseDescription_ImportsRejected(t *testing.T) {
	_, err := ParseDescription(`import "other.did"; service : {}`)
	if err == nil {
		t.Fatal("Expected import to be rejected, got nil")
	}
	if !IsParseError(err) {
		t.Errorf("Expected parse error, got: %v", err)
	}
}

func TestParseDescription_DuplicateTypeName(t *testing.T) {
	_, err := ParseDescription(`type A = nat; type A = text;`)
	if err == nil {
		t.Fatal("Expected duplicate type error, got nil")
	}
}

func TestParseDescription_ServiceForms(t *testing.T) {
	env := mustEnv(t, `
		type Tokens = record { amount : nat64 };
		service Ledger : (opt Tokens) -> {
			balance : (text) -> (Tokens) query;
			"quoted name" : () -> ();
		};
	`)
	m, err := env.ResolveMethod("balance")
	if err != nil {
		t.Fatalf("Expected balance to resolve, got: %v", err)
	}
	if len(m.Args) != 1 || len(m.Rets) != 1 {
		t.Errorf("Expected 1 arg and 1 ret, got %d and %d", len(m.Args), len(m.Rets))
	}
	if len(m.Annotations) != 1 || m.Annotations[0] != "query" {
		t.Errorf("Expected query annotation, got %v", m.Annotations)
	}
	if _, err := env.ResolveMethod("quoted name"); err != nil {
		t.Errorf("Expected quoted method name to resolve, got: %v", err)
	}
}

func TestResolveMethod_Failures(t *testing.T) {
	env := mustEnv(t, `type A = nat;`)
	if _, err := env.ResolveMethod("any"); err == nil || !IsResolutionError(err) {
		t.Errorf("Expected resolution error without a service block, got: %v", err)
	}

	env = mustEnv(t, `service : { get : () -> (nat); }`)
	if _, err := env.ResolveMethod("missing"); err == nil || !IsResolutionError(err) {
		t.Errorf("Expected resolution error for unknown method, got: %v", err)
	}
}

func TestRenderValue_Canonical(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"(42 : nat8)", "(42 : nat8)"},
		{"(5)", "(5)"},
		{"(1000000 : nat)", "(1_000_000 : nat)"},
		{"(1234 : nat)", "(1234 : nat)"},
		{"(2.0 : float64)", "(2.0 : float64)"},
		{`("a\nb")`, `("a\nb")`},
		{"(vec {})", "(vec {})"},
		{"(record {})", "(record {})"},
		{"(opt opt null)", "(opt opt null)"},
		{"(variant { ok })", "(variant { ok })"},
	}
	for _, tc := range cases {
		values, err := ParseArgs(tc.in)
		if err != nil {
			t.Fatalf("Expected %s to parse, got: %v", tc.in, err)
		}
		if got := RenderArgs(values); got != tc.want {
			t.Errorf("Expected %s to render as %s, got %s", tc.in, tc.want, got)
		}
	}
}

func TestHashFieldName(t *testing.T) {
	cases := []struct {
		name string
		want uint32
	}{
		{"", 0},
		{"ok", 24860},
		{"a", 97},
	}
	for _, tc := range cases {
		if got := hashFieldName(tc.name); got != tc.want {
			t.Errorf("Expected hash(%q) = %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestPrincipal_TextRoundTrip(t *testing.T) {
	cases := []struct {
		text string
		raw  []byte
	}{
		{"aaaaa-aa", nil},
		{"2vxsx-fae", []byte{0x04}},
	}
	for _, tc := range cases {
		p, err := PrincipalFromText(tc.text)
		if err != nil {
			t.Fatalf("Expected %s to parse, got: %v", tc.text, err)
		}
		if !bytes.Equal(p.Bytes(), tc.raw) {
			t.Errorf("Expected raw %x for %s, got %x", tc.raw, tc.text, p.Bytes())
		}
		if got := p.String(); got != tc.text {
			t.Errorf("Expected text %s, got %s", tc.text, got)
		}
	}
}

func TestPrincipal_ChecksumRejected(t *testing.T) {
	if _, err := PrincipalFromText("2vxsx-faf"); err == nil {
		t.Error("Expected checksum mismatch to be rejected, got nil")
	}
}

func TestPrincipal_CaseInsensitive(t *testing.T) {
	p, err := PrincipalFromText("2VXSX-FAE")
	if err != nil {
		t.Fatalf("Expected uppercase text to parse, got: %v", err)
	}
	if p.String() != "2vxsx-fae" {
		t.Errorf("Expected canonical lowercase form, got %s", p.String())
	}
}
