// Package attendance implements the on-duty state machine: clock-in and
// clock-out per user, forced clock-out after unanswered reminders, the
// cumulative work ledger and the leaderboard derived from it.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"dutybot/internal/locale"

	"github.com/google/uuid"
	"golang.org/x/text/message"
)

var (
	// ErrAlreadyClockedIn is returned by ClockIn for a user who is on duty.
	ErrAlreadyClockedIn = errors.New("already clocked in")
	// ErrNotClockedIn is returned by ClockOut for a user who is off duty.
	ErrNotClockedIn = errors.New("not clocked in")
)

// Reason tells voluntary clock-outs apart from forced ones.
type Reason int

const (
	Voluntary Reason = iota
	Timeout
)

func (r Reason) String() string {
	switch r {
	case Voluntary:
		return "voluntary"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Result describes a completed clock-out.
type Result struct {
	Session Session
	Elapsed time.Duration
	Total   time.Duration
	Reason  Reason
}

// MachineConfig wires a Machine. Registry, Ledger and Notifier are required.
type MachineConfig struct {
	Registry    *Registry
	Ledger      *Ledger
	Notifier    Notifier
	Roles       RoleManager
	Leaderboard *Leaderboard
	Archive     Archive
	Printer     *message.Printer
	Format      func(time.Duration) string
	// NoticeTTL is how long confirmation notices stay on the clock-board.
	NoticeTTL time.Duration
}

// Machine owns the registry and ledger and is the only writer of both.
type Machine struct {
	registry  *Registry
	ledger    *Ledger
	notifier  Notifier
	roles     RoleManager
	board     *Leaderboard
	archive   Archive
	printer   *message.Printer
	format    func(time.Duration) string
	noticeTTL time.Duration

	locks userLocks

	mu      sync.Mutex
	worklog map[UserID]MessageHandle
}

func NewMachine(cfg MachineConfig) *Machine {
	m := &Machine{
		registry:  cfg.Registry,
		ledger:    cfg.Ledger,
		notifier:  cfg.Notifier,
		roles:     cfg.Roles,
		board:     cfg.Leaderboard,
		archive:   cfg.Archive,
		printer:   cfg.Printer,
		format:    cfg.Format,
		noticeTTL: cfg.NoticeTTL,
		worklog:   make(map[UserID]MessageHandle),
	}
	if m.printer == nil {
		m.printer = locale.Printer(locale.Default())
	}
	if m.format == nil {
		m.format = func(d time.Duration) string { return d.String() }
	}
	return m
}

func (m *Machine) Registry() *Registry {
	return m.registry
}

func (m *Machine) Ledger() *Ledger {
	return m.ledger
}

// ClockIn puts member on duty as of now.
func (m *Machine) ClockIn(member Member, now time.Time) (Session, error) {
	unlock := m.locks.lock(member.ID)
	defer unlock()

	s := Session{
		ID:      uuid.New(),
		User:    member,
		ClockIn: now,
		LastAck: now,
	}
	if !m.registry.open(s) {
		return Session{}, ErrAlreadyClockedIn
	}

	h, err := m.notifier.Announce(ChannelClockBoard, m.printer.Sprintf(locale.ClockedIn, member.Mention))
	if err != nil {
		log.Printf("attendance: announce clock-in of %s: %v", member.ID, err)
	} else {
		m.registry.setAnnouncement(member.ID, s.ID, h)
		s.announcement = h
	}
	m.setRole(member, true)

	log.Printf("attendance: %s (%s) clocked in", member.Name, member.ID)
	return s, nil
}

// ClockOut takes member off duty as of now and books the elapsed time.
func (m *Machine) ClockOut(ctx context.Context, member Member, now time.Time, reason Reason) (Result, error) {
	return m.clockOut(ctx, member, now, reason, uuid.Nil)
}

// ForceClockOut ends the session identified by session with reason
// Timeout. It fails with ErrNotClockedIn when that session already ended,
// even if the user has clocked in again since.
func (m *Machine) ForceClockOut(ctx context.Context, member Member, session uuid.UUID, now time.Time) (Result, error) {
	return m.clockOut(ctx, member, now, Timeout, session)
}

func (m *Machine) clockOut(ctx context.Context, member Member, now time.Time, reason Reason, expect uuid.UUID) (Result, error) {
	unlock := m.locks.lock(member.ID)

	current, ok := m.registry.Get(member.ID)
	if !ok || (expect != uuid.Nil && current.ID != expect) {
		unlock()
		return Result{}, ErrNotClockedIn
	}
	s, _ := m.registry.close(member.ID)

	elapsed := now.Sub(s.ClockIn)
	if elapsed < 0 {
		elapsed = 0
	}
	total, _ := m.ledger.add(member.ID, elapsed)
	res := Result{Session: s, Elapsed: elapsed, Total: total, Reason: reason}

	m.setRole(member, false)
	m.updateWorklog(member, total)

	key := locale.ClockedOut
	if reason == Timeout {
		key = locale.ForcedClockOut
	}
	Flash(m.notifier, ChannelClockBoard, m.printer.Sprintf(key, member.Mention), m.noticeTTL, s.announcement)

	if m.archive != nil {
		rec := Record{
			SessionID: s.ID,
			User:      member,
			ClockIn:   s.ClockIn,
			ClockOut:  now,
			Duration:  elapsed,
			Reason:    reason,
		}
		if err := m.archive.RecordSession(ctx, rec); err != nil {
			log.Printf("attendance: archive session %s: %v", s.ID, err)
		}
	}
	unlock()

	log.Printf("attendance: %s (%s) clocked out (%s) after %s", member.Name, member.ID, reason, m.format(elapsed))

	if m.board != nil {
		if err := m.board.Refresh(); err != nil {
			log.Printf("attendance: refresh leaderboard: %v", err)
		}
	}
	return res, nil
}

// AcknowledgeLiveness resets the idle window of id to t. It reports false,
// without error, when id is off duty or t is not newer than the last
// acknowledgment.
func (m *Machine) AcknowledgeLiveness(id UserID, t time.Time) bool {
	unlock := m.locks.lock(id)
	defer unlock()
	return m.registry.touch(id, t)
}

func (m *Machine) setRole(member Member, onDuty bool) {
	if m.roles == nil {
		return
	}
	if err := m.roles.SetOnDuty(member, onDuty); err != nil {
		log.Printf("attendance: set on-duty role of %s to %t: %v", member.ID, onDuty, err)
	}
}

// updateWorklog keeps one running-total message per user in the worklog
// channel. A message that cannot be edited is replaced by a new one.
func (m *Machine) updateWorklog(member Member, total time.Duration) {
	text := m.printer.Sprintf(locale.WorklogTotal, member.Mention, m.format(total))

	m.mu.Lock()
	h, ok := m.worklog[member.ID]
	m.mu.Unlock()

	if ok {
		err := m.notifier.Edit(h, text)
		if err == nil {
			return
		}
		log.Printf("attendance: edit worklog of %s: %v", member.ID, err)
	}

	h, err := m.notifier.Announce(ChannelWorklog, text)
	if err != nil {
		log.Printf("attendance: post worklog of %s: %v", member.ID, err)
		return
	}
	m.mu.Lock()
	m.worklog[member.ID] = h
	m.mu.Unlock()
}

// userLocks serializes operations per user.
type userLocks struct {
	mu    sync.Mutex
	locks map[UserID]*sync.Mutex
}

func (l *userLocks) lock(id UserID) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[UserID]*sync.Mutex)
	}
	mu, ok := l.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		l.locks[id] = mu
	}
	l.mu.Unlock()

	mu.Lock()
	return mu.Unlock
}
