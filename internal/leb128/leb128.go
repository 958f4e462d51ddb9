// Package leb128 implements the unsigned little-endian base-128 varint used
// for RowBinary length and count prefixes.
package leb128

import (
	"errors"
	"io"
	"math/bits"

	"golang.org/x/exp/constraints"
)

// MaxLen is the longest encoding of a 64-bit value.
const MaxLen = 10

var ErrOverflow = errors.New("leb128: value overflows 64 bits")

func Append[T constraints.Unsigned](buf []byte, x T) []byte {
	v := uint64(x)
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func Length[T constraints.Unsigned](x T) int {
	xl := 64 - bits.LeadingZeros64(uint64(x))
	if xl == 0 {
		return 1
	}
	return (xl + 6) / 7
}

func Put[T constraints.Unsigned](buf []byte, x T) int {
	v := uint64(x)
	i := 0
	for v >= 0x80 {
		buf[i] = byte(v) | 0x80
		v >>= 7
		i++
	}
	buf[i] = byte(v)
	return i + 1
}

// Uvarint decodes a value from buf and returns it with the number of bytes read.
// n is 0 if buf is too short and negative on overflow.
func Uvarint(buf []byte) (uint64, int) {
	var x uint64
	var s uint
	for i, b := range buf {
		if i == MaxLen {
			return 0, -(i + 1)
		}
		if b < 0x80 {
			if i == MaxLen-1 && b > 1 {
				return 0, -(i + 1)
			}
			return x | uint64(b)<<s, i + 1
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, 0
}

func Read(r io.ByteReader) (uint64, error) {
	var x uint64
	var s uint
	for i := 0; i < MaxLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if i > 0 && err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return x, err
		}
		if b < 0x80 {
			if i == MaxLen-1 && b > 1 {
				return x, ErrOverflow
			}
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return x, ErrOverflow
}
