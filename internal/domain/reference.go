package domain

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// DefaultReferenceAttempts caps collision retries during generation.
const DefaultReferenceAttempts = 20

// ReferenceExistsFunc reports whether a candidate reference is taken.
type ReferenceExistsFunc func(ctx context.Context, candidate string) (bool, error)

// ReferenceGenerator produces TCK-YYYYMMDD-NNNN ticket references.
type ReferenceGenerator struct {
	now         func() time.Time
	intn        func(n int) int
	maxAttempts int
}

// NewReferenceGenerator builds a generator dated by now. maxAttempts <= 0
// falls back to DefaultReferenceAttempts.
func NewReferenceGenerator(now func() time.Time, maxAttempts int) *ReferenceGenerator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultReferenceAttempts
	}
	return &ReferenceGenerator{now: now, intn: rand.IntN, maxAttempts: maxAttempts}
}

// WithRandom swaps the suffix source, used by tests to force collisions.
func (g *ReferenceGenerator) WithRandom(intn func(n int) int) *ReferenceGenerator {
	clone := *g
	clone.intn = intn
	return &clone
}

// Generate returns the first candidate that exists does not report as taken.
func (g *ReferenceGenerator) Generate(ctx context.Context, exists ReferenceExistsFunc) (string, error) {
	prefix := "TCK-" + g.now().Format("20060102")
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate := fmt.Sprintf("%s-%04d", prefix, g.intn(10000))
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check reference %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrReferenceExhausted, g.maxAttempts)
}
