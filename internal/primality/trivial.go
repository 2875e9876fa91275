// Package primality holds the three primality stages: a deterministic trivial
// filter, a Miller-Rabin witness search and an extra strong Lucas test. Run in
// that order they form the Baillie-PSW test.
//
// The probabilistic stages are total: they accept any Nat, answer Composite
// for values below 2 and for even values above 2, and ProbablePrime for 2 and 3.
package primality

import (
	"context"

	"primecheck/internal/bigint"
)

// Verdict is the answer of one stage.
type Verdict int

const (
	Composite Verdict = iota
	// ProbablePrime means the stage found no witness. It never leaves the pipeline.
	ProbablePrime
	Prime
)

func (v Verdict) String() string {
	switch v {
	case Composite:
		return "composite"
	case ProbablePrime:
		return "probable_prime"
	case Prime:
		return "prime"
	default:
		return "unknown"
	}
}

//go:generate mockgen -source=trivial.go -destination=mocks/mocks.go -package=mocks Tester

// Tester is a probabilistic stage.
type Tester interface {
	Test(ctx context.Context, n bigint.Nat) (Verdict, error)
}

// TrivialResult is the answer of the trivial filter.
type TrivialResult int

const (
	TrivialComposite TrivialResult = iota
	// TrivialPrime means n is one of the table primes.
	TrivialPrime
	// TrivialPassed means no small factor was found and n is not a square.
	TrivialPassed
)

func (r TrivialResult) String() string {
	switch r {
	case TrivialComposite:
		return "composite"
	case TrivialPrime:
		return "prime"
	case TrivialPassed:
		return "passed"
	default:
		return "unknown"
	}
}

// DefaultTrialLimit bounds the trial-division table: the primes below 1000.
const DefaultTrialLimit = 1000

// Sieve is an immutable table of the primes below a limit.
type Sieve struct {
	primes []uint32
}

// NewSieve returns the primes below limit by the sieve of Eratosthenes.
// Limits below 3 are raised to 3 so the table always holds 2.
func NewSieve(limit uint32) *Sieve {
	limit = max(limit, 3)
	composite := make([]bool, limit)
	var primes []uint32
	for i := uint32(2); i < limit; i++ {
		if composite[i] {
			continue
		}
		primes = append(primes, i)
		for j := uint64(i) * uint64(i); j < uint64(limit); j += uint64(i) {
			composite[j] = true
		}
	}
	return &Sieve{primes: primes}
}

// Primes returns a copy of the table.
func (s *Sieve) Primes() []uint32 {
	out := make([]uint32, len(s.primes))
	copy(out, s.primes)
	return out
}

// Trivial classifies n by trial division against the table and a perfect
// square check. Squares are rejected here because the Lucas parameter search
// never ends on them.
func (s *Sieve) Trivial(n bigint.Nat) TrivialResult {
	if n.CmpWord(2) < 0 {
		return TrivialComposite
	}
	for _, p := range s.primes {
		if n.ModWord(p) == 0 {
			if n.CmpWord(p) == 0 {
				return TrivialPrime
			}
			return TrivialComposite
		}
	}
	if n.IsSquare() {
		return TrivialComposite
	}
	return TrivialPassed
}

// smallCases settles the values every stage handles the same way.
func smallCases(n bigint.Nat) (Verdict, bool) {
	switch {
	case n.CmpWord(2) < 0:
		return Composite, true
	case n.CmpWord(4) < 0:
		return ProbablePrime, true
	case n.IsEven():
		return Composite, true
	}
	return 0, false
}
