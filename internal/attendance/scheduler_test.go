package attendance

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newScheduler(h *harness, clock *fakeClock) *Scheduler {
	return NewScheduler(SchedulerConfig{
		Machine:       h.machine,
		Roster:        h.roster,
		Notifier:      h.notifier,
		IdleThreshold: time.Hour,
		AckTimeout:    10 * time.Minute,
		Now:           clock.Now,
	})
}

func TestSweepSkipsFreshSessions(t *testing.T) {
	alice := member("alice")
	h := newHarness(alice)
	clock := &fakeClock{now: t0.Add(59 * time.Minute)}
	s := newScheduler(h, clock)

	h.machine.ClockIn(alice, t0)
	if n := s.Sweep(context.Background()); n != 0 {
		t.Fatalf("expected no challenge, got %d", n)
	}
	s.Wait()
	if h.notifier.challengeCount() != 0 {
		t.Fatal("expected no challenge to be posted")
	}
}

func TestUnansweredChallengeForcesOneClockOut(t *testing.T) {
	alice := member("alice")
	h := newHarness(alice)
	clock := &fakeClock{now: t0.Add(61 * time.Minute)}
	s := newScheduler(h, clock)

	gate := make(chan struct{})
	h.notifier.respond = func(ctx context.Context, c Challenge) (bool, error) {
		<-gate
		return false, nil
	}

	h.machine.ClockIn(alice, t0)
	ctx := context.Background()
	if n := s.Sweep(ctx); n != 1 {
		t.Fatalf("expected one challenge, got %d", n)
	}
	clock.Set(t0.Add(62 * time.Minute))
	if n := s.Sweep(ctx); n != 0 {
		t.Fatalf("expected no second challenge while one is outstanding, got %d", n)
	}
	if !s.Pending(alice.ID) {
		t.Fatal("expected alice to have a pending challenge")
	}

	clock.Set(t0.Add(71 * time.Minute))
	close(gate)
	s.Wait()

	if h.notifier.challengeCount() != 1 {
		t.Fatalf("expected exactly one challenge, got %d", h.notifier.challengeCount())
	}
	if _, ok := h.machine.Registry().Get(alice.ID); ok {
		t.Fatal("expected alice to be clocked out")
	}
	entries := h.machine.Ledger().Entries()
	if len(entries) != 1 || entries[0].Sessions != 1 || entries[0].Total != 71*time.Minute {
		t.Fatalf("expected one forced clock-out of 71m, got %+v", entries)
	}
	if h.archive.records[0].Reason != Timeout {
		t.Fatalf("expected timeout reason, got %s", h.archive.records[0].Reason)
	}
	if live := h.notifier.liveIn(ChannelReminder); len(live) != 0 {
		t.Fatalf("expected challenge message to be removed, got %v", live)
	}
	if s.Pending(alice.ID) {
		t.Fatal("expected pending challenge to be released")
	}
	if n := s.Sweep(ctx); n != 0 {
		t.Fatalf("expected nothing to sweep, got %d", n)
	}
}

func TestAcknowledgedChallengeResetsIdleWindow(t *testing.T) {
	alice := member("alice")
	h := newHarness(alice)
	issued := t0.Add(61 * time.Minute)
	clock := &fakeClock{now: issued}
	s := newScheduler(h, clock)

	var seen []Challenge
	h.notifier.respond = func(ctx context.Context, c Challenge) (bool, error) {
		seen = append(seen, c)
		clock.Set(issued.Add(3 * time.Minute))
		return true, nil
	}

	h.machine.ClockIn(alice, t0)
	if n := s.Sweep(context.Background()); n != 1 {
		t.Fatalf("expected one challenge, got %d", n)
	}
	s.Wait()

	sess, ok := h.machine.Registry().Get(alice.ID)
	if !ok {
		t.Fatal("expected alice to stay on duty")
	}
	if !sess.LastAck.Equal(issued) {
		t.Fatalf("expected last ack at challenge issue time %v, got %v", issued, sess.LastAck)
	}
	if len(seen) != 1 || seen[0].User != alice.ID {
		t.Fatalf("unexpected challenges %+v", seen)
	}

	clock.Set(issued.Add(59 * time.Minute))
	if n := s.Sweep(context.Background()); n != 0 {
		t.Fatalf("expected idle window to be reset, got %d challenges", n)
	}
	clock.Set(issued.Add(time.Hour))
	if n := s.Sweep(context.Background()); n != 1 {
		t.Fatalf("expected a new challenge after the next idle window, got %d", n)
	}
	s.Wait()
}

func TestSweepSkipsMembersOutsideRoster(t *testing.T) {
	alice := member("alice")
	h := newHarness(alice)
	clock := &fakeClock{now: t0.Add(2 * time.Hour)}
	s := newScheduler(h, clock)

	h.machine.ClockIn(alice, t0)
	h.roster.remove(alice.ID)

	if n := s.Sweep(context.Background()); n != 0 {
		t.Fatalf("expected no challenge, got %d", n)
	}
	if _, ok := h.machine.Registry().Get(alice.ID); !ok {
		t.Fatal("expected alice to stay on duty")
	}
}

func TestCancelledWaitDoesNotClockOut(t *testing.T) {
	alice := member("alice")
	h := newHarness(alice)
	clock := &fakeClock{now: t0.Add(2 * time.Hour)}
	s := newScheduler(h, clock)

	h.notifier.respond = func(ctx context.Context, c Challenge) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	}

	h.machine.ClockIn(alice, t0)
	ctx, cancel := context.WithCancel(context.Background())
	if n := s.Sweep(ctx); n != 1 {
		t.Fatalf("expected one challenge, got %d", n)
	}
	cancel()
	s.Wait()

	if _, ok := h.machine.Registry().Get(alice.ID); !ok {
		t.Fatal("shutdown must not clock anybody out")
	}
}

func TestSlowChallengeDoesNotDelayOthers(t *testing.T) {
	alice, bob := member("alice"), member("bob")
	h := newHarness(alice, bob)
	clock := &fakeClock{now: t0.Add(2 * time.Hour)}
	s := newScheduler(h, clock)

	gate := make(chan struct{})
	h.notifier.respond = func(ctx context.Context, c Challenge) (bool, error) {
		if c.User == alice.ID {
			<-gate
			return false, nil
		}
		return true, nil
	}

	h.machine.ClockIn(alice, t0)
	h.machine.ClockIn(bob, t0)
	if n := s.Sweep(context.Background()); n != 2 {
		t.Fatalf("expected two challenges, got %d", n)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		sess, _ := h.machine.Registry().Get(bob.ID)
		if sess.LastAck.Equal(t0.Add(2 * time.Hour)) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("bob's acknowledgment was held up by alice's challenge")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !s.Pending(alice.ID) {
		t.Fatal("expected alice's challenge to still be outstanding")
	}

	close(gate)
	s.Wait()
	if _, ok := h.machine.Registry().Get(alice.ID); ok {
		t.Fatal("expected alice to be clocked out")
	}
}

func TestChallengePanicIsRecovered(t *testing.T) {
	alice := member("alice")
	h := newHarness(alice)
	clock := &fakeClock{now: t0.Add(2 * time.Hour)}
	s := newScheduler(h, clock)

	h.notifier.respond = func(ctx context.Context, c Challenge) (bool, error) {
		panic("boom")
	}

	h.machine.ClockIn(alice, t0)
	s.Sweep(context.Background())
	s.Wait()

	if s.Pending(alice.ID) {
		t.Fatal("expected pending challenge to be released after a panic")
	}
	if _, ok := h.machine.Registry().Get(alice.ID); !ok {
		t.Fatal("expected alice to stay on duty")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	h := newHarness()
	s := newScheduler(h, &fakeClock{now: t0})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
