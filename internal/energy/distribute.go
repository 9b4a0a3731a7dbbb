// Package energy splits an energy balance into a human-looking tap sequence.
package energy

import (
	"errors"
	"math/rand/v2"
)

const (
	// Parts is the number of tap requests one energy spend is split into.
	Parts = 10
	// MaxPerPart is the server-side cap for a single tap request.
	MaxPerPart = 200
)

var ErrInsufficientEnergy = errors.New("insufficient energy")

// Distribute splits total into parts positive integers, each at most
// MaxPerPart, summing to total. Every draw keeps the remaining parts
// satisfiable. total < parts returns ErrInsufficientEnergy and no parts.
//
// A total above parts*MaxPerPart cannot be split within the cap; the last part
// then carries the excess, so callers should cap total first (see Cap).
func Distribute(total, parts int, rng *rand.Rand) ([]int, error) {
	if parts <= 0 || total < parts {
		return nil, ErrInsufficientEnergy
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	out := make([]int, 0, parts)
	remaining := total
	for i := 0; i < parts-1; i++ {
		left := parts - i - 1
		hi := min(MaxPerPart, remaining-left)
		lo := max(1, remaining-MaxPerPart*left)
		if lo > hi {
			lo = hi
		}
		v := lo + rng.IntN(hi-lo+1)
		out = append(out, v)
		remaining -= v
	}
	return append(out, remaining), nil
}

// Cap bounds available to what a single split can spend.
func Cap(available, parts int) int {
	return min(available, parts*MaxPerPart)
}
