package bigint

import (
	"fmt"
	"math/bits"
)

// Add returns x + y.
func (x Nat) Add(y Nat) Nat {
	return newNat(addLimbs(x.limbs, y.limbs))
}

// AddWord returns x + w.
func (x Nat) AddWord(w uint32) Nat {
	return newNat(addLimbs(x.limbs, []uint32{w}))
}

// Sub returns x - y, or ErrNegative when y > x.
func (x Nat) Sub(y Nat) (Nat, error) {
	if x.Cmp(y) < 0 {
		return Nat{}, fmt.Errorf("%w: %s - %s", ErrNegative, x, y)
	}
	return newNat(subLimbs(x.limbs, y.limbs)), nil
}

// SubWord returns x - w, or ErrNegative when w > x.
func (x Nat) SubWord(w uint32) (Nat, error) {
	return x.Sub(newNat([]uint32{w}))
}

// Mul returns x * y.
func (x Nat) Mul(y Nat) Nat {
	return newNat(mulLimbs(x.limbs, y.limbs))
}

// MulWord returns x * w.
func (x Nat) MulWord(w uint32) Nat {
	return newNat(mulAddWord(x.limbs, w, 0))
}

// DivRem returns the truncated quotient and remainder of x / y.
func (x Nat) DivRem(y Nat) (q, r Nat, err error) {
	if y.IsZero() {
		return Nat{}, Nat{}, ErrDivisionByZero
	}
	ql, rl := divmod(x.limbs, y.limbs)
	return newNat(ql), newNat(rl), nil
}

// Mod returns x mod m. It panics if m is zero, like math/big; callers that take
// the modulus from user input go through DivRem instead.
func (x Nat) Mod(m Nat) Nat {
	if m.IsZero() {
		panic("bigint: modulus is zero")
	}
	if x.Cmp(m) < 0 {
		return x
	}
	_, r := divmod(x.limbs, m.limbs)
	return newNat(r)
}

// ModWord returns x mod w. It panics if w is zero.
func (x Nat) ModWord(w uint32) uint32 {
	if w == 0 {
		panic("bigint: modulus is zero")
	}
	var r uint64
	for i := len(x.limbs) - 1; i >= 0; i-- {
		r = (r<<limbBits | uint64(x.limbs[i])) % uint64(w)
	}
	return uint32(r)
}

// Shr returns x >> k.
func (x Nat) Shr(k uint) Nat {
	limbShift := int(k / limbBits)
	if limbShift >= len(x.limbs) {
		return Nat{}
	}
	s := k % limbBits
	src := x.limbs[limbShift:]
	z := make([]uint32, len(src))
	if s == 0 {
		copy(z, src)
		return newNat(z)
	}
	for i := range src {
		z[i] = src[i] >> s
		if i+1 < len(src) {
			z[i] |= src[i+1] << (limbBits - s)
		}
	}
	return newNat(z)
}

// Shl returns x << k.
func (x Nat) Shl(k uint) Nat {
	if len(x.limbs) == 0 {
		return Nat{}
	}
	limbShift := int(k / limbBits)
	s := k % limbBits
	z := make([]uint32, len(x.limbs)+limbShift+1)
	if s == 0 {
		copy(z[limbShift:], x.limbs)
		return newNat(z)
	}
	for i, w := range x.limbs {
		z[i+limbShift] |= w << s
		z[i+limbShift+1] = w >> (limbBits - s)
	}
	return newNat(z)
}

func addLimbs(x, y []uint32) []uint32 {
	if len(x) < len(y) {
		x, y = y, x
	}
	z := make([]uint32, len(x)+1)
	var c uint32
	for i := range x {
		var yi uint32
		if i < len(y) {
			yi = y[i]
		}
		z[i], c = bits.Add32(x[i], yi, c)
	}
	z[len(x)] = c
	return z
}

// subLimbs requires x >= y.
func subLimbs(x, y []uint32) []uint32 {
	z := make([]uint32, len(x))
	var b uint32
	for i := range x {
		var yi uint32
		if i < len(y) {
			yi = y[i]
		}
		z[i], b = bits.Sub32(x[i], yi, b)
	}
	return z
}

func mulLimbs(x, y []uint32) []uint32 {
	if len(x) == 0 || len(y) == 0 {
		return nil
	}
	z := make([]uint32, len(x)+len(y))
	for j, yj := range y {
		if yj == 0 {
			continue
		}
		var c uint64
		for i, xi := range x {
			// (2^32-1)^2 + 2*(2^32-1) == 2^64-1, so this never overflows.
			t := uint64(xi)*uint64(yj) + uint64(z[i+j]) + c
			z[i+j] = uint32(t)
			c = t >> limbBits
		}
		z[j+len(x)] = uint32(c)
	}
	return z
}

// mulAddWord returns x*y + r in a fresh slice.
func mulAddWord(x []uint32, y, r uint32) []uint32 {
	z := make([]uint32, len(x)+1)
	c := uint64(r)
	for i, xi := range x {
		t := uint64(xi)*uint64(y) + c
		z[i] = uint32(t)
		c = t >> limbBits
	}
	z[len(x)] = uint32(c)
	return norm(z)
}

// divWord returns x / y and x mod y for a single-limb divisor.
func divWord(x []uint32, y uint32) ([]uint32, uint32) {
	q := make([]uint32, len(x))
	var r uint64
	for i := len(x) - 1; i >= 0; i-- {
		t := r<<limbBits | uint64(x[i])
		q[i] = uint32(t / uint64(y))
		r = t % uint64(y)
	}
	return norm(q), uint32(r)
}

// divmod implements Knuth's algorithm D (TAOCP vol. 2, 4.3.1) over 32-bit limbs.
// v must be non-zero and normalized.
func divmod(u, v []uint32) (q, r []uint32) {
	if cmpLimbs(u, v) < 0 {
		r = make([]uint32, len(u))
		copy(r, u)
		return nil, r
	}
	if len(v) == 1 {
		qw, rw := divWord(u, v[0])
		return qw, []uint32{rw}
	}

	m, n := len(u), len(v)
	s := uint(bits.LeadingZeros32(v[n-1]))

	// Normalize so the divisor's top bit is set; un gets one extra limb.
	vn := make([]uint32, n)
	for i := n - 1; i > 0; i-- {
		vn[i] = v[i]<<s | uint32(uint64(v[i-1])>>(limbBits-s))
	}
	vn[0] = v[0] << s

	un := make([]uint32, m+1)
	un[m] = uint32(uint64(u[m-1]) >> (limbBits - s))
	for i := m - 1; i > 0; i-- {
		un[i] = u[i]<<s | uint32(uint64(u[i-1])>>(limbBits-s))
	}
	un[0] = u[0] << s

	q = make([]uint32, m-n+1)
	vTop, vNext := uint64(vn[n-1]), uint64(vn[n-2])
	for j := m - n; j >= 0; j-- {
		num := uint64(un[j+n])<<limbBits | uint64(un[j+n-1])
		qhat := num / vTop
		rhat := num - qhat*vTop
		// The qhat >= limbBase test short-circuits before the product could overflow.
		for qhat >= limbBase || qhat*vNext > (rhat<<limbBits|uint64(un[j+n-2])) {
			qhat--
			rhat += vTop
			if rhat >= limbBase {
				break
			}
		}

		// Multiply and subtract.
		var borrow int64
		for i := 0; i < n; i++ {
			p := qhat * uint64(vn[i])
			t := int64(un[i+j]) - borrow - int64(p&0xffffffff)
			un[i+j] = uint32(t)
			borrow = int64(p>>limbBits) - (t >> limbBits)
		}
		t := int64(un[j+n]) - borrow
		un[j+n] = uint32(t)

		q[j] = uint32(qhat)
		if t < 0 {
			// qhat was one too large: add the divisor back.
			q[j]--
			var c uint64
			for i := 0; i < n; i++ {
				c += uint64(un[i+j]) + uint64(vn[i])
				un[i+j] = uint32(c)
				c >>= limbBits
			}
			un[j+n] += uint32(c)
		}
	}

	r = make([]uint32, n)
	for i := 0; i < n; i++ {
		r[i] = un[i]>>s | uint32(uint64(un[i+1])<<(limbBits-s))
	}
	return norm(q), norm(r)
}
