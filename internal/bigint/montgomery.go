package bigint

// Montgomery multiplies modulo a fixed odd modulus m without long division.
// Values in Montgomery form stand for x*R mod m with R = 2^(32*k), where k is
// the limb count of m. Mul keeps results in [0, m).
type Montgomery struct {
	mod  Nat
	k    int
	minv uint32 // -m^-1 mod 2^32
	rr   Nat    // R^2 mod m
	one  Nat    // R mod m
}

// NewMontgomery prepares a context for m, which must be odd and at least 3.
func NewMontgomery(m Nat) *Montgomery {
	if !m.IsOdd() || m.CmpWord(3) < 0 {
		panic("bigint: Montgomery modulus must be odd and at least 3")
	}
	k := len(m.limbs)

	// Newton iteration doubles the correct low bits: 3, 6, 12, 24, 48.
	m0 := m.limbs[0]
	inv := m0
	for i := 0; i < 4; i++ {
		inv *= 2 - m0*inv
	}

	mg := &Montgomery{mod: m, k: k, minv: -inv}
	mg.rr = FromUint64(1).Shl(uint(2 * limbBits * k)).Mod(m)
	mg.one = FromUint64(1).Shl(uint(limbBits * k)).Mod(m)
	return mg
}

// Modulus returns m.
func (mg *Montgomery) Modulus() Nat { return mg.mod }

// One returns 1 in Montgomery form.
func (mg *Montgomery) One() Nat { return mg.one }

// To converts x into Montgomery form. x may be any size.
func (mg *Montgomery) To(x Nat) Nat {
	return mg.Mul(x.Mod(mg.mod), mg.rr)
}

// From converts a Montgomery form value back to an ordinary residue.
func (mg *Montgomery) From(x Nat) Nat {
	return mg.Mul(x, FromUint64(1))
}

// Mul returns a*b*R^-1 mod m for a, b < m.
func (mg *Montgomery) Mul(a, b Nat) Nat {
	k := mg.k
	m := mg.mod.limbs
	bl := make([]uint32, k)
	copy(bl, b.limbs)

	// Interleaved multiply and reduce (CIOS). t holds k+2 limbs.
	t := make([]uint32, k+2)
	for i := 0; i < k; i++ {
		var ai uint64
		if i < len(a.limbs) {
			ai = uint64(a.limbs[i])
		}

		var c uint64
		for j := 0; j < k; j++ {
			s := uint64(t[j]) + ai*uint64(bl[j]) + c
			t[j] = uint32(s)
			c = s >> limbBits
		}
		s := uint64(t[k]) + c
		t[k] = uint32(s)
		t[k+1] = uint32(s >> limbBits)

		u := uint64(t[0] * mg.minv)
		s = uint64(t[0]) + u*uint64(m[0])
		c = s >> limbBits
		for j := 1; j < k; j++ {
			s = uint64(t[j]) + u*uint64(m[j]) + c
			t[j-1] = uint32(s)
			c = s >> limbBits
		}
		s = uint64(t[k]) + c
		t[k-1] = uint32(s)
		t[k] = t[k+1] + uint32(s>>limbBits)
		t[k+1] = 0
	}

	z := norm(t[:k+1])
	if cmpLimbs(z, m) >= 0 {
		z = norm(subLimbs(z, m))
	}
	return newNat(z)
}

// Exp returns base^exp in Montgomery form, where base is already in
// Montgomery form.
func (mg *Montgomery) Exp(base, exp Nat) Nat {
	result := mg.one
	for i := exp.BitLen() - 1; i >= 0; i-- {
		result = mg.Mul(result, result)
		if exp.Bit(i) == 1 {
			result = mg.Mul(result, base)
		}
	}
	return result
}
