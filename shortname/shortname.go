// Package shortname allocates the random names that files and redirects are
// published under. Allocation is a bounded collision-retry loop: generate,
// check against the store, retry on collision, give up with a typed error
// when the configured attempt budget is spent. The loop never spins
// unbounded — at the lengths used here exhaustion means the namespace is
// effectively full and needs operator attention, not more retries.
package shortname

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
)

// alphabet is the character set for generated names. It omits nothing:
// shortnames are matched byte-for-byte and never shown to be transcribed by
// hand.
const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ErrExhausted is returned when every attempt collided with an existing
// name.
var ErrExhausted = errors.New("shortname: allocation attempts exhausted")

// Taken reports whether a candidate name is already in use.
type Taken func(ctx context.Context, name string) (bool, error)

// Generator produces unique shortnames.
type Generator struct {
	length      int
	maxAttempts int
}

// Option configures a Generator.
type Option func(*Generator)

// WithLength sets the generated name length. Default 8.
func WithLength(n int) Option {
	return func(g *Generator) { g.length = n }
}

// WithMaxAttempts sets the collision-retry budget. Default 5.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) { g.maxAttempts = n }
}

// New creates a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{length: 8, maxAttempts: 5}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate returns a name not currently taken. Uniqueness is best-effort:
// the caller's insert must still carry a unique constraint, because another
// writer can claim the name between the check and the insert.
func (g *Generator) Generate(ctx context.Context, taken Taken) (string, error) {
	for i := 0; i < g.maxAttempts; i++ {
		name, err := g.random()
		if err != nil {
			return "", err
		}
		used, err := taken(ctx, name)
		if err != nil {
			return "", err
		}
		if !used {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrExhausted, g.maxAttempts)
}

// random draws one candidate name from the alphabet using crypto/rand, so
// published names are not guessable from earlier ones.
func (g *Generator) random() (string, error) {
	buf := make([]byte, g.length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("shortname: entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}
