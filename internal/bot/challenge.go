package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dutybot/internal/attendance"
)

// challengeBook matches reactions in the reminder channel to the liveness
// challenge posted in that exact message.
type challengeBook struct {
	mu        sync.Mutex
	byMessage map[string]*waiter
}

type waiter struct {
	challenge attendance.Challenge
	acked     chan struct{}
	once      sync.Once
}

func newChallengeBook() *challengeBook {
	return &challengeBook{byMessage: make(map[string]*waiter)}
}

func (b *challengeBook) register(c attendance.Challenge) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byMessage[c.Message.MessageID] = &waiter{challenge: c, acked: make(chan struct{})}
}

// resolve acknowledges the challenge posted as messageID if userID is the
// challenged user. Reactions from anybody else are ignored.
func (b *challengeBook) resolve(messageID, userID string) bool {
	b.mu.Lock()
	w, ok := b.byMessage[messageID]
	b.mu.Unlock()
	if !ok || string(w.challenge.User) != userID {
		return false
	}
	w.once.Do(func() { close(w.acked) })
	return true
}

func (b *challengeBook) forget(messageID string) {
	b.mu.Lock()
	delete(b.byMessage, messageID)
	b.mu.Unlock()
}

func (b *challengeBook) pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byMessage)
}

func (b *challengeBook) wait(ctx context.Context, c attendance.Challenge, timeout time.Duration) (bool, error) {
	b.mu.Lock()
	w, ok := b.byMessage[c.Message.MessageID]
	b.mu.Unlock()
	if !ok || w.challenge.ID != c.ID {
		return false, fmt.Errorf("unknown challenge %s", c.ID)
	}
	defer b.forget(c.Message.MessageID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.acked:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
