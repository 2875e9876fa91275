package bigint

import (
	"fmt"
	"math/rand/v2"
)

// MulMod returns a*b mod m. m must be non-zero.
func MulMod(a, b, m Nat) Nat {
	if m.IsZero() {
		panic("bigint: modulus is zero")
	}
	p := mulLimbs(a.limbs, b.limbs)
	if cmpLimbs(norm(p), m.limbs) < 0 {
		return newNat(p)
	}
	_, r := divmod(norm(p), m.limbs)
	return newNat(r)
}

// PowMod returns base^exp mod m using left-to-right square-and-multiply, i.e.
// at most 2*exp.BitLen() modular multiplications. Odd moduli go through
// Montgomery multiplication. m must be non-zero.
func PowMod(base, exp, m Nat) Nat {
	if m.IsZero() {
		panic("bigint: modulus is zero")
	}
	if m.IsOne() {
		return Nat{}
	}
	if m.IsOdd() && m.CmpWord(3) >= 0 {
		mg := NewMontgomery(m)
		return mg.From(mg.Exp(mg.To(base), exp))
	}
	b := base.Mod(m)
	result := FromUint64(1)
	for i := exp.BitLen() - 1; i >= 0; i-- {
		result = MulMod(result, result, m)
		if exp.Bit(i) == 1 {
			result = MulMod(result, b, m)
		}
	}
	return result
}

// Sqrt returns the integer square root floor(sqrt(x)).
func (x Nat) Sqrt() Nat {
	if x.CmpWord(2) < 0 {
		return x
	}
	// Start above the root and walk down with Newton steps.
	y := FromUint64(1).Shl(uint(x.BitLen()+1) / 2)
	for {
		q, _, _ := x.DivRem(y)
		z := y.Add(q).Shr(1)
		if z.Cmp(y) >= 0 {
			return y
		}
		y = z
	}
}

// IsSquare reports whether x is a perfect square.
func (x Nat) IsSquare() bool {
	// Squares are 0, 1, 4 or 9 mod 16.
	switch x.Low32() & 15 {
	case 0, 1, 4, 9:
	default:
		return false
	}
	r := x.Sqrt()
	return r.Mul(r).Equal(x)
}

// Rand returns a value in [0, bound) drawn from r. bound must be non-zero.
// One extra limb of randomness keeps the modulo bias below 2^-32.
func Rand(r *rand.Rand, bound Nat) Nat {
	if bound.IsZero() {
		panic("bigint: Rand bound is zero")
	}
	z := make([]uint32, len(bound.limbs)+1)
	for i := range z {
		z[i] = r.Uint32()
	}
	return newNat(z).Mod(bound)
}

// Factorial returns n! when n <= ceiling and ErrFactorialTooLarge otherwise.
func Factorial(n Nat, ceiling uint64) (Nat, error) {
	v, ok := n.Uint64()
	if !ok || v > ceiling {
		return Nat{}, fmt.Errorf("%w: %s! exceeds the limit of %d!", ErrFactorialTooLarge, n, ceiling)
	}
	if v < 2 {
		return FromUint64(1), nil
	}
	return newNat(productRange(2, v)), nil
}

// productRange multiplies lo..hi as a balanced tree so the operands of each
// multiplication stay about the same size.
func productRange(lo, hi uint64) []uint32 {
	if hi-lo < 16 {
		z := []uint32{1}
		for k := lo; k <= hi; k++ {
			if k <= 0xffffffff {
				z = mulAddWord(z, uint32(k), 0)
			} else {
				z = norm(mulLimbs(z, FromUint64(k).limbs))
			}
		}
		return z
	}
	mid := lo + (hi-lo)/2
	return norm(mulLimbs(productRange(lo, mid), productRange(mid+1, hi)))
}
