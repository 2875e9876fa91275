package primality

import (
	"context"

	"primecheck/internal/bigint"
)

// ExtraStrongLucas is the extra strong Lucas probable prime test with Q = 1.
// P is the first of 3, 4, 5, ... for which the Jacobi symbol of D = P^2 - 4
// over n is -1.
type ExtraStrongLucas struct{}

// Test writes n+1 = 2^s * t with t odd and passes n when U_t = 0 and V_t = ±2,
// or V_(2^r t) = 0 for some 0 <= r < s-1. Only V is computed; U_t = 0 is
// equivalent to P*V_t = 2*V_(t+1) mod n.
func (ExtraStrongLucas) Test(ctx context.Context, n bigint.Nat) (Verdict, error) {
	if v, ok := smallCases(n); ok {
		return v, nil
	}
	if n.IsSquare() {
		return Composite, nil
	}
	p, hasFactor := lucasParameter(n)
	if hasFactor {
		return Composite, nil
	}

	np1 := n.AddWord(1)
	s := np1.TrailingZeroBits()
	t := np1.Shr(s)

	// The ladder runs in Montgomery form; 0 maps to 0 and -2 to n - two.
	mg := bigint.NewMontgomery(n)
	two := mg.To(bigint.FromUint64(2))
	bigP := mg.To(bigint.FromUint64(p))
	minusTwo, _ := n.Sub(two)

	// (vk, vk1) = (V_k, V_(k+1)), walking k from 0 to t one bit at a time.
	vk, vk1 := two, bigP
	for i := t.BitLen() - 1; i >= 0; i-- {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Composite, err
			}
		}
		if t.Bit(i) == 1 {
			vk = subMod(mg.Mul(vk, vk1), bigP, n)
			vk1 = subMod(mg.Mul(vk1, vk1), two, n)
		} else {
			vk1 = subMod(mg.Mul(vk, vk1), bigP, n)
			vk = subMod(mg.Mul(vk, vk), two, n)
		}
	}

	if vk.Equal(two) || vk.Equal(minusTwo) {
		if mg.Mul(bigP, vk).Equal(mg.Mul(two, vk1)) {
			return ProbablePrime, nil
		}
	}

	for r := uint(0); r+1 < s; r++ {
		if r%checkEvery == checkEvery-1 {
			if err := ctx.Err(); err != nil {
				return Composite, err
			}
		}
		if vk.IsZero() {
			return ProbablePrime, nil
		}
		// V = 2 is a fixed point of V -> V^2 - 2, so zero can no longer appear.
		if vk.Equal(two) {
			return Composite, nil
		}
		vk = subMod(mg.Mul(vk, vk), two, n)
	}
	return Composite, nil
}

// lucasParameter returns the first P >= 3 with jacobi(P^2-4, n) = -1. hasFactor
// is true when the search instead hit a D sharing a proper factor with n. n must be
// odd, at least 5 and not a perfect square, otherwise the search may not end.
func lucasParameter(n bigint.Nat) (p uint64, hasFactor bool) {
	for p = 3; ; p++ {
		d := bigint.FromUint64(p*p - 4)
		switch jacobi(d, n) {
		case -1:
			return p, false
		case 0:
			if !d.Mod(n).IsZero() {
				return p, true
			}
		}
	}
}

// jacobi returns the Jacobi symbol (a/n) for odd n > 0.
func jacobi(a, n bigint.Nat) int {
	a = a.Mod(n)
	j := 1
	for !a.IsZero() {
		z := a.TrailingZeroBits()
		a = a.Shr(z)
		if r := n.Low32() & 7; z&1 == 1 && (r == 3 || r == 5) {
			j = -j
		}
		if a.Low32()&3 == 3 && n.Low32()&3 == 3 {
			j = -j
		}
		a, n = n.Mod(a), a
	}
	if n.IsOne() {
		return j
	}
	return 0
}

// subMod returns a-b mod m for a, b < m.
func subMod(a, b, m bigint.Nat) bigint.Nat {
	if a.Cmp(b) >= 0 {
		d, _ := a.Sub(b)
		return d
	}
	d, _ := a.Add(m).Sub(b)
	return d
}
