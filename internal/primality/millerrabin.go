package primality

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"

	"primecheck/internal/bigint"
)

// checkEvery is how many modular squarings run between context checks.
const checkEvery = 64

// MillerRabin searches for a compositeness witness. Base 2 is always tried
// first; Rounds further bases are drawn uniformly from [3, n-2].
//
// The extra bases come from a PCG generator created for each call and seeded
// from Seed and n, so a given input and seed always try the same bases. For an
// odd composite the chance of no witness is at most 4^-(Rounds+1).
type MillerRabin struct {
	Rounds int
	Seed   uint64
}

// Test returns Composite as soon as one base witnesses compositeness.
func (m MillerRabin) Test(ctx context.Context, n bigint.Nat) (Verdict, error) {
	if v, ok := smallCases(n); ok {
		return v, nil
	}

	nm1, _ := n.SubWord(1)
	s := nm1.TrailingZeroBits()
	d := nm1.Shr(s)

	mg := bigint.NewMontgomery(n)
	one, minusOne := mg.One(), mg.To(nm1)

	var rng *rand.Rand
	for round := 0; round <= m.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return Composite, err
		}

		a := bigint.FromUint64(2)
		if round > 0 {
			if rng == nil {
				rng = rand.New(rand.NewPCG(m.Seed, fingerprint(n)))
			}
			// n >= 5 here, so [3, n-2] holds n-4 >= 1 values.
			span, _ := n.SubWord(4)
			a = bigint.Rand(rng, span).AddWord(3)
		}

		composite, err := witness(ctx, mg, mg.To(a), d, s, one, minusOne)
		if err != nil {
			return Composite, err
		}
		if composite {
			return Composite, nil
		}
	}
	return ProbablePrime, nil
}

// witness reports whether a proves n composite, given n-1 = 2^s * d. a, one
// and minusOne are in Montgomery form for n.
func witness(ctx context.Context, mg *bigint.Montgomery, a, d bigint.Nat, s uint, one, minusOne bigint.Nat) (bool, error) {
	x, err := expMod(ctx, mg, a, d)
	if err != nil {
		return false, err
	}
	if x.Equal(one) || x.Equal(minusOne) {
		return false, nil
	}
	for r := uint(1); r < s; r++ {
		if r%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return false, err
			}
		}
		x = mg.Mul(x, x)
		if x.Equal(minusOne) {
			return false, nil
		}
		if x.Equal(one) {
			// 1 can only square to 1, so n-1 will never appear.
			return true, nil
		}
	}
	return true, nil
}

// expMod is Montgomery.Exp with a context check every checkEvery exponent
// bits, which keeps a multi-thousand-digit exponentiation cancellable. base
// and the result are in Montgomery form.
func expMod(ctx context.Context, mg *bigint.Montgomery, base, exp bigint.Nat) (bigint.Nat, error) {
	result := mg.One()
	for i := exp.BitLen() - 1; i >= 0; i-- {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return bigint.Nat{}, err
			}
		}
		result = mg.Mul(result, result)
		if exp.Bit(i) == 1 {
			result = mg.Mul(result, base)
		}
	}
	return result, nil
}

// fingerprint folds the limbs of n into a generator stream selector.
func fingerprint(n bigint.Nat) uint64 {
	h := fnv.New64a()
	var buf [4]byte
	for _, w := range n.Limbs() {
		binary.LittleEndian.PutUint32(buf[:], w)
		h.Write(buf[:])
	}
	return h.Sum64()
}
