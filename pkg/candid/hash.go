package candid

import "strconv"

// hashFieldName computes the wire id for a named record or variant field:
// hash(s) = ( sum s[i] * 223^(len-1-i) ) mod 2^32.
// Unnamed (tuple) fields use their ordinal directly.
func hashFieldName(name string) uint32 {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = h*223 + uint32(name[i])
	}
	return h
}

// fieldID returns the wire id for a field label. A label that is itself a
// decimal number is taken verbatim as an id, matching the textual grammar
// where `record { 0 = x; 1 = y }` addresses tuple slots.
func fieldID(label string) uint32 {
	if n, err := strconv.ParseUint(label, 10, 32); err == nil {
		return uint32(n)
	}
	return hashFieldName(label)
}
