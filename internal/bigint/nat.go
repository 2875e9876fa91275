// Package bigint implements the arbitrary-precision non-negative integers used by
// the parser and the primality stages.
//
// A Nat is an immutable little-endian sequence of base-2^32 limbs. Every
// operation allocates its result; no method ever writes into its receiver or its
// arguments, so values can be shared freely between stages of one query.
// Products of two limbs are accumulated in uint64, which is the double-width
// intermediate the modular primitives rely on.
package bigint

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	ErrInvalidDigit      = errors.New("invalid digit")
	ErrNegative          = errors.New("negative result")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrFactorialTooLarge = errors.New("factorial argument too large")
)

const (
	limbBits = 32
	limbBase = uint64(1) << limbBits

	// decimalChunk is the largest power of ten that fits in a limb.
	decimalChunk       = 1_000_000_000
	decimalChunkDigits = 9
)

// Nat is an arbitrary-precision non-negative integer. The zero value is 0.
type Nat struct {
	// limbs holds no high zero limbs; zero is the empty slice.
	limbs []uint32
}

var pow10 = [...]uint32{
	1,
	10,
	100,
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
}

// norm trims high zero limbs.
func norm(z []uint32) []uint32 {
	i := len(z)
	for i > 0 && z[i-1] == 0 {
		i--
	}
	return z[:i]
}

func newNat(z []uint32) Nat {
	return Nat{limbs: norm(z)}
}

// FromUint64 returns x as a Nat.
func FromUint64(x uint64) Nat {
	return newNat([]uint32{uint32(x), uint32(x >> limbBits)})
}

// FromLimbs builds a Nat from little-endian limbs. The slice is copied.
func FromLimbs(limbs []uint32) Nat {
	z := make([]uint32, len(limbs))
	copy(z, limbs)
	return newNat(z)
}

// FromDecimal parses a non-empty string of ASCII digits.
func FromDecimal(s string) (Nat, error) {
	if s == "" {
		return Nat{}, fmt.Errorf("%w: empty string", ErrInvalidDigit)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return Nat{}, fmt.Errorf("%w %q at offset %d", ErrInvalidDigit, s[i], i)
		}
	}

	var z []uint32
	for i := 0; i < len(s); {
		n := min(decimalChunkDigits, len(s)-i)
		var chunk uint32
		for _, c := range []byte(s[i : i+n]) {
			chunk = chunk*10 + uint32(c-'0')
		}
		z = mulAddWord(z, pow10[n], chunk)
		i += n
	}
	return newNat(z), nil
}

// Limbs returns the canonical little-endian limb sequence. Zero is [0].
func (x Nat) Limbs() []uint32 {
	if len(x.limbs) == 0 {
		return []uint32{0}
	}
	z := make([]uint32, len(x.limbs))
	copy(z, x.limbs)
	return z
}

// Uint64 returns x and true when x fits in 64 bits.
func (x Nat) Uint64() (uint64, bool) {
	switch len(x.limbs) {
	case 0:
		return 0, true
	case 1:
		return uint64(x.limbs[0]), true
	case 2:
		return uint64(x.limbs[1])<<limbBits | uint64(x.limbs[0]), true
	default:
		return 0, false
	}
}

// Low32 returns the least significant limb.
func (x Nat) Low32() uint32 {
	if len(x.limbs) == 0 {
		return 0
	}
	return x.limbs[0]
}

func (x Nat) IsZero() bool { return len(x.limbs) == 0 }

func (x Nat) IsOne() bool { return len(x.limbs) == 1 && x.limbs[0] == 1 }

func (x Nat) IsEven() bool { return x.Low32()&1 == 0 }

func (x Nat) IsOdd() bool { return x.Low32()&1 == 1 }

// Cmp returns -1, 0 or +1 as x is less than, equal to or greater than y.
func (x Nat) Cmp(y Nat) int {
	return cmpLimbs(x.limbs, y.limbs)
}

// CmpWord compares x with a single limb value.
func (x Nat) CmpWord(w uint32) int {
	switch {
	case len(x.limbs) > 1:
		return 1
	case x.Low32() < w:
		return -1
	case x.Low32() > w:
		return 1
	default:
		return 0
	}
}

func (x Nat) Equal(y Nat) bool { return x.Cmp(y) == 0 }

// BitLen returns the number of significant bits; BitLen of 0 is 0.
func (x Nat) BitLen() int {
	if len(x.limbs) == 0 {
		return 0
	}
	top := len(x.limbs) - 1
	return top*limbBits + bits.Len32(x.limbs[top])
}

// Bit returns bit i of x.
func (x Nat) Bit(i int) uint {
	k := i / limbBits
	if i < 0 || k >= len(x.limbs) {
		return 0
	}
	return uint(x.limbs[k]>>(uint(i)%limbBits)) & 1
}

// TrailingZeroBits returns the number of consecutive zero low bits; 0 for x == 0.
func (x Nat) TrailingZeroBits() uint {
	for i, w := range x.limbs {
		if w != 0 {
			return uint(i)*limbBits + uint(bits.TrailingZeros32(w))
		}
	}
	return 0
}

// String formats x in decimal.
func (x Nat) String() string {
	if len(x.limbs) == 0 {
		return "0"
	}
	var chunks []uint32
	for q := x.limbs; len(q) > 0; {
		var r uint32
		q, r = divWord(q, decimalChunk)
		chunks = append(chunks, r)
	}

	var b strings.Builder
	b.Grow(len(chunks) * decimalChunkDigits)
	b.WriteString(strconv.FormatUint(uint64(chunks[len(chunks)-1]), 10))
	for i := len(chunks) - 2; i >= 0; i-- {
		s := strconv.FormatUint(uint64(chunks[i]), 10)
		b.WriteString(strings.Repeat("0", decimalChunkDigits-len(s)))
		b.WriteString(s)
	}
	return b.String()
}

// DecimalDigits returns the number of decimal digits of x (1 for zero).
func (x Nat) DecimalDigits() int {
	return len(x.String())
}

func cmpLimbs(x, y []uint32) int {
	if len(x) != len(y) {
		if len(x) < len(y) {
			return -1
		}
		return 1
	}
	for i := len(x) - 1; i >= 0; i-- {
		if x[i] != y[i] {
			if x[i] < y[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
