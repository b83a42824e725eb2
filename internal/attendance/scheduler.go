package attendance

import (
	"context"
	"errors"
	"log"
	"runtime"
	"sync"
	"time"

	"dutybot/internal/locale"

	"github.com/google/uuid"
	"golang.org/x/text/message"
)

const (
	DefaultSweepInterval = time.Minute
	DefaultIdleThreshold = time.Hour
	DefaultAckTimeout    = 10 * time.Minute
)

// SchedulerConfig wires a Scheduler. Zero durations take the defaults.
type SchedulerConfig struct {
	Machine       *Machine
	Roster        Roster
	Notifier      Notifier
	Printer       *message.Printer
	Format        func(time.Duration) string
	IdleThreshold time.Duration
	AckTimeout    time.Duration
	Now           func() time.Time
}

// Scheduler periodically challenges users who have been on duty without
// acknowledgment for longer than the idle threshold, and forces a
// clock-out when a challenge goes unanswered.
type Scheduler struct {
	machine    *Machine
	roster     Roster
	notifier   Notifier
	printer    *message.Printer
	format     func(time.Duration) string
	idle       time.Duration
	ackTimeout time.Duration
	now        func() time.Time

	mu      sync.Mutex
	pending map[UserID]uuid.UUID
	wg      sync.WaitGroup
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	s := &Scheduler{
		machine:    cfg.Machine,
		roster:     cfg.Roster,
		notifier:   cfg.Notifier,
		printer:    cfg.Printer,
		format:     cfg.Format,
		idle:       cfg.IdleThreshold,
		ackTimeout: cfg.AckTimeout,
		now:        cfg.Now,
		pending:    make(map[UserID]uuid.UUID),
	}
	if s.idle <= 0 {
		s.idle = DefaultIdleThreshold
	}
	if s.ackTimeout <= 0 {
		s.ackTimeout = DefaultAckTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.printer == nil {
		s.printer = locale.Printer(locale.Default())
	}
	if s.format == nil {
		s.format = func(d time.Duration) string { return d.String() }
	}
	return s
}

// Run sweeps every interval until ctx is done. Outstanding challenges are
// not waited for; see Wait.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep issues a challenge to every user whose idle window has expired and
// who has no challenge outstanding. It returns the number of challenges
// started; each one runs in its own goroutine.
func (s *Scheduler) Sweep(ctx context.Context) int {
	now := s.now()
	started := 0
	for _, sess := range s.machine.Registry().Sessions() {
		if now.Before(sess.LastAck.Add(s.idle)) {
			continue
		}
		member, ok := s.roster.LookupMember(sess.User.ID)
		if !ok {
			log.Printf("attendance: reminder skipped, %s is not in the roster", sess.User.ID)
			continue
		}
		if !s.reserve(sess.User.ID, sess.ID) {
			continue
		}
		started++
		s.wg.Add(1)
		go s.challenge(ctx, member, sess.ID, now)
	}
	return started
}

// Wait blocks until every outstanding challenge has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Pending reports whether id has a challenge outstanding.
func (s *Scheduler) Pending(id UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

func (s *Scheduler) reserve(id UserID, session uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[id]; ok {
		return false
	}
	s.pending[id] = session
	return true
}

func (s *Scheduler) release(id UserID) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *Scheduler) challenge(ctx context.Context, member Member, session uuid.UUID, issued time.Time) {
	defer s.wg.Done()
	defer s.release(member.ID)
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			log.Printf("Panic in reminder for user %s:\nError: %v\nStack Trace:\n%s", member.ID, r, string(buf[:n]))
		}
	}()

	text := s.printer.Sprintf(locale.ReminderChallenge, member.Mention, s.format(s.ackTimeout))
	c, err := s.notifier.ChallengeLiveness(ChannelReminder, member, text)
	if err != nil {
		log.Printf("attendance: challenge %s: %v", member.ID, err)
		return
	}
	defer func() {
		if err := s.notifier.Delete(c.Message); err != nil {
			log.Printf("attendance: delete challenge %s: %v", c.ID, err)
		}
	}()

	acked, err := s.notifier.AwaitAcknowledgment(ctx, c, s.ackTimeout)
	if err != nil {
		log.Printf("attendance: wait for challenge %s: %v", c.ID, err)
		return
	}
	if acked {
		if !s.machine.AcknowledgeLiveness(member.ID, issued) {
			log.Printf("attendance: late acknowledgment of %s ignored", member.ID)
		}
		return
	}

	_, err = s.machine.ForceClockOut(ctx, member, session, s.now())
	switch {
	case errors.Is(err, ErrNotClockedIn):
		log.Printf("attendance: %s already clocked out before challenge %s expired", member.ID, c.ID)
	case err != nil:
		log.Printf("attendance: force clock-out of %s: %v", member.ID, err)
	}
}
