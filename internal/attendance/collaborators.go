package attendance

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// UserID identifies a member of the guild.
type UserID string

// Member is a resolved roster entry.
type Member struct {
	ID      UserID
	Name    string
	Mention string
}

// ChannelKind names one of the logical channels the bot writes to.
type ChannelKind string

const (
	ChannelClockBoard  ChannelKind = "clock-board"
	ChannelWorklog     ChannelKind = "worklog"
	ChannelReminder    ChannelKind = "reminder"
	ChannelLeaderboard ChannelKind = "leaderboard"
)

// MessageHandle points at a posted message so it can be edited or deleted later.
type MessageHandle struct {
	ChannelID string
	MessageID string
}

// IsZero reports whether the handle points at nothing.
func (h MessageHandle) IsZero() bool {
	return h.MessageID == ""
}

// Challenge is one outstanding liveness prompt. Acknowledgments are matched
// against the challenge, never against the user alone.
type Challenge struct {
	ID      uuid.UUID
	User    UserID
	Message MessageHandle
}

// Roster resolves guild members. A missing member is not an error.
type Roster interface {
	LookupMember(id UserID) (Member, bool)
}

// Notifier renders messages on the chat surface. Every method is
// best-effort from the state machine's point of view.
type Notifier interface {
	Announce(kind ChannelKind, text string) (MessageHandle, error)
	Edit(h MessageHandle, text string) error
	Delete(h MessageHandle) error
	// Purge removes the bot's previous messages from a channel.
	Purge(kind ChannelKind) error
	ChallengeLiveness(kind ChannelKind, m Member, text string) (Challenge, error)
	// AwaitAcknowledgment blocks until c is acknowledged (true), the timeout
	// elapses (false) or ctx is done (false plus ctx's error).
	AwaitAcknowledgment(ctx context.Context, c Challenge, timeout time.Duration) (bool, error)
}

// RoleManager mirrors the on-duty state onto a guild role.
type RoleManager interface {
	SetOnDuty(m Member, onDuty bool) error
}

// Record is a completed session as handed to an Archive.
type Record struct {
	SessionID uuid.UUID
	User      Member
	ClockIn   time.Time
	ClockOut  time.Time
	Duration  time.Duration
	Reason    Reason
}

// Archive stores completed sessions somewhere outside the process. Nothing
// is ever read back from it.
type Archive interface {
	RecordSession(ctx context.Context, rec Record) error
}

// Flash posts a transient notice and deletes it, together with extra, once
// ttl has passed. A non-positive ttl deletes synchronously.
func Flash(n Notifier, kind ChannelKind, text string, ttl time.Duration, extra ...MessageHandle) {
	h, err := n.Announce(kind, text)
	if err != nil {
		log.Printf("attendance: post notice to %s: %v", kind, err)
	}
	handles := append([]MessageHandle{h}, extra...)
	cleanup := func() {
		for _, h := range handles {
			if h.IsZero() {
				continue
			}
			if err := n.Delete(h); err != nil {
				log.Printf("attendance: delete notice %s: %v", h.MessageID, err)
			}
		}
	}
	if ttl <= 0 {
		cleanup()
		return
	}
	time.AfterFunc(ttl, cleanup)
}
