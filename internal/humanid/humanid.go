// Package humanid generates sequential, prefixed identifiers such as TASK-07.
//
// Sequences are derived from the highest stored suffix rather than a counter,
// so two writers can pick the same candidate. The loser's insert fails with
// store.ErrHumanIDTaken and Generator.Insert retries with a fresh candidate.
package humanid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/phrazzld/taskhub/internal/store"
)

// Prefixes per entity type.
const (
	TaskPrefix = "TASK-"
	UserPrefix = "USER-"
)

// DefaultMaxAttempts bounds retries after collisions.
const DefaultMaxAttempts = 10

// ErrExhausted is returned when every attempt collided.
var ErrExhausted = errors.New("human id generation exhausted retries")

// Format renders seq with at least two digits.
func Format(prefix string, seq int) string {
	return fmt.Sprintf("%s%02d", prefix, seq)
}

// Parse extracts the sequence number from id.
func Parse(prefix, id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Sequence reports the highest sequence number already stored.
type Sequence interface {
	LastHumanSeq(ctx context.Context) (int, error)
}

// Generator hands out identifiers for one entity type.
type Generator struct {
	Prefix      string
	Seq         Sequence
	MaxAttempts int
}

// NewGenerator creates a Generator with the default retry budget.
func NewGenerator(prefix string, seq Sequence) *Generator {
	return &Generator{Prefix: prefix, Seq: seq, MaxAttempts: DefaultMaxAttempts}
}

// Next returns the candidate following the highest stored id.
func (g *Generator) Next(ctx context.Context) (string, error) {
	last, err := g.Seq.LastHumanSeq(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read last %s sequence: %w", strings.TrimSuffix(g.Prefix, "-"), err)
	}
	return Format(g.Prefix, last+1), nil
}

// Insert calls insert with successive candidates until one is accepted.
// Only store.ErrHumanIDTaken triggers a retry; any other error is returned.
func (g *Generator) Insert(ctx context.Context, insert func(humanID string) error) (string, error) {
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		id, err := g.Next(ctx)
		if err != nil {
			return "", err
		}
		err = insert(id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, store.ErrHumanIDTaken) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrExhausted, attempts)
}
