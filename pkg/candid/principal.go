package candid

import (
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
)

// Principal is an opaque process identity: up to 29 bytes with a textual
// form of CRC32-prefixed base32, grouped in blocks of five characters.
type Principal struct {
	raw []byte
}

var principalEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// PrincipalFromBytes wraps raw identity bytes.
func PrincipalFromBytes(raw []byte) (Principal, error) {
	if len(raw) > 29 {
		return Principal{}, fmt.Errorf("principal too long: %d bytes", len(raw))
	}
	b := make([]byte, len(raw))
	copy(b, raw)
	return Principal{raw: b}, nil
}

// PrincipalFromText parses the dashed base32 textual form and verifies its
// CRC32 check sequence.
func PrincipalFromText(text string) (Principal, error) {
	compact := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(text)), "-", "")
	decoded, err := principalEncoding.DecodeString(compact)
	if err != nil {
		return Principal{}, fmt.Errorf("invalid principal %q: %w", text, err)
	}
	if len(decoded) < 4 {
		return Principal{}, fmt.Errorf("invalid principal %q: too short", text)
	}
	sum := binary.BigEndian.Uint32(decoded[:4])
	raw := decoded[4:]
	if crc32.ChecksumIEEE(raw) != sum {
		return Principal{}, fmt.Errorf("invalid principal %q: checksum mismatch", text)
	}
	return PrincipalFromBytes(raw)
}

// Bytes returns the raw identity bytes.
func (p Principal) Bytes() []byte {
	b := make([]byte, len(p.raw))
	copy(b, p.raw)
	return b
}

// IsZero reports whether the principal carries no identity bytes at all
// (the zero value, distinct from the valid empty principal after decode).
func (p Principal) IsZero() bool {
	return p.raw == nil
}

// Equal reports byte equality of two principals.
func (p Principal) Equal(o Principal) bool {
	return string(p.raw) == string(o.raw)
}

// String renders the canonical dashed base32 form.
func (p Principal) String() string {
	buf := make([]byte, 4+len(p.raw))
	binary.BigEndian.PutUint32(buf[:4], crc32.ChecksumIEEE(p.raw))
	copy(buf[4:], p.raw)
	s := strings.ToLower(principalEncoding.EncodeToString(buf))
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && i%5 == 0 {
			sb.WriteByte('-')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// MarshalText implements encoding.TextMarshaler so principals serialize as
// their canonical text form in YAML and JSON state files.
func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Principal) UnmarshalText(text []byte) error {
	parsed, err := PrincipalFromText(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
