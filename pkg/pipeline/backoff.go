package pipeline

import (
	"context"
	"time"
)

// Backoff produces exponentially growing delays between failed
// acquisitions: Initial, 2*Initial, 4*Initial ... capped at Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	attempts int
}

// Next returns the delay for the current attempt and advances.
func (b *Backoff) Next() time.Duration {
	d := b.Initial
	for i := 0; i < b.attempts && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	b.attempts++
	return d
}

// Reset starts the sequence over after a success.
func (b *Backoff) Reset() { b.attempts = 0 }

// Attempts is the number of Next calls since the last Reset.
func (b *Backoff) Attempts() int { return b.attempts }

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
