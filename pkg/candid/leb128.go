package candid

import (
	"fmt"
	"io"
	"math/big"
)

// writeULEB128 writes an unsigned LEB128-encoded integer.
func writeULEB128(w io.ByteWriter, v uint64) error {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		if err := w.WriteByte(b); err != nil {
			return err
		}
		if v == 0 {
			return nil
		}
	}
}

// writeSLEB128 writes a signed LEB128-encoded integer.
func writeSLEB128(w io.ByteWriter, v int64) error {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		if err := w.WriteByte(b); err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// writeBigULEB128 writes an arbitrary-precision non-negative integer
// in unsigned LEB128 form.
func writeBigULEB128(w io.ByteWriter, v *big.Int) error {
	if v.Sign() < 0 {
		return fmt.Errorf("negative value %s for nat", v)
	}
	n := new(big.Int).Set(v)
	mask := big.NewInt(0x7f)
	tmp := new(big.Int)
	for {
		b := byte(tmp.And(n, mask).Int64())
		n.Rsh(n, 7)
		if n.Sign() != 0 {
			b |= 0x80
		}
		if err := w.WriteByte(b); err != nil {
			return err
		}
		if n.Sign() == 0 {
			return nil
		}
	}
}

// writeBigSLEB128 writes an arbitrary-precision integer in signed LEB128 form.
// big.Int.And and big.Int.Rsh use two's complement semantics for negative
// values, so the standard byte-at-a-time loop applies unchanged.
func writeBigSLEB128(w io.ByteWriter, v *big.Int) error {
	n := new(big.Int).Set(v)
	mask := big.NewInt(0x7f)
	tmp := new(big.Int)
	for {
		b := byte(tmp.And(n, mask).Int64())
		n.Rsh(n, 7)
		done := (n.Sign() == 0 && b&0x40 == 0) || (n.Cmp(minusOne) == 0 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		if err := w.WriteByte(b); err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

var minusOne = big.NewInt(-1)

// readULEB128 reads an unsigned LEB128-encoded integer, limited to 64 bits.
func readULEB128(r io.ByteReader) (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, unexpectedEOF(err)
		}
		if shift >= 64 {
			return 0, fmt.Errorf("leb128 value exceeds 64 bits")
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// readSLEB128 reads a signed LEB128-encoded integer, limited to 64 bits.
func readSLEB128(r io.ByteReader) (int64, error) {
	var result int64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, unexpectedEOF(err)
		}
		if shift >= 64 {
			return 0, fmt.Errorf("sleb128 value exceeds 64 bits")
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
	}
}

// readBigULEB128 reads an arbitrary-precision unsigned LEB128 integer.
func readBigULEB128(r io.ByteReader) (*big.Int, error) {
	result := new(big.Int)
	tmp := new(big.Int)
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		tmp.SetInt64(int64(b & 0x7f))
		tmp.Lsh(tmp, shift)
		result.Or(result, tmp)
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// readBigSLEB128 reads an arbitrary-precision signed LEB128 integer.
func readBigSLEB128(r io.ByteReader) (*big.Int, error) {
	result := new(big.Int)
	tmp := new(big.Int)
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		tmp.SetInt64(int64(b & 0x7f))
		tmp.Lsh(tmp, shift)
		result.Or(result, tmp)
		shift += 7
		if b&0x80 == 0 {
			if b&0x40 != 0 {
				// Sign-extend: subtract 2^shift.
				tmp.SetInt64(1)
				tmp.Lsh(tmp, shift)
				result.Sub(result, tmp)
			}
			return result, nil
		}
	}
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
