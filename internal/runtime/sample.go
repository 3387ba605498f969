package runtime

import (
	"math/rand/v2"

	"github.com/aretw0/thicket/pkg/domain"
)

// pcgStream decorrelates the second PCG word from the seed.
const pcgStream = 0x9e3779b97f4a7c15

// NewRand returns the deterministic random source for a seed.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^pcgStream))
}

// EligibleChoices returns, in file order, the choices whose requires pins and
// conditions hold for bindings. A requires key with no binding fails the
// condition.
func EligibleChoices(choices []domain.Choice, bindings map[string][]string) []domain.Choice {
	var out []domain.Choice
	for _, c := range choices {
		if c.Satisfied(bindings) {
			out = append(out, c)
		}
	}
	return out
}

// pick draws one index with probability proportional to effective weight,
// walking the cumulative distribution.
func pick(rng *rand.Rand, choices []domain.Choice) int {
	var total float64
	for _, c := range choices {
		total += c.EffectiveWeight()
	}
	x := rng.Float64() * total
	for i, c := range choices {
		x -= c.EffectiveWeight()
		if x < 0 {
			return i
		}
	}
	return len(choices) - 1
}

// sample draws k distinct choices, weighted, without replacement.
// k must not exceed len(choices).
func sample(rng *rand.Rand, choices []domain.Choice, k int) []domain.Choice {
	pool := append([]domain.Choice(nil), choices...)
	out := make([]domain.Choice, 0, k)
	for range k {
		i := pick(rng, pool)
		out = append(out, pool[i])
		pool = append(pool[:i], pool[i+1:]...)
	}
	return out
}
