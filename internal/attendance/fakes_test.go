package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type fakeMessage struct {
	Kind ChannelKind
	Text string
}

type fakeNotifier struct {
	mu       sync.Mutex
	next     int
	live     map[string]fakeMessage
	posted   []fakeMessage
	edits    []string
	deleted  []string
	purges   []ChannelKind
	ops      []string
	failEdit bool
	failPost map[ChannelKind]bool

	challenges []Challenge
	// respond decides the outcome of AwaitAcknowledgment. nil means timeout.
	respond func(ctx context.Context, c Challenge) (bool, error)
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		live:     make(map[string]fakeMessage),
		failPost: make(map[ChannelKind]bool),
	}
}

func (n *fakeNotifier) Announce(kind ChannelKind, text string) (MessageHandle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failPost[kind] {
		return MessageHandle{}, errors.New("missing permissions")
	}
	n.next++
	id := fmt.Sprintf("m%d", n.next)
	msg := fakeMessage{Kind: kind, Text: text}
	n.live[id] = msg
	n.posted = append(n.posted, msg)
	n.ops = append(n.ops, "announce:"+string(kind))
	return MessageHandle{ChannelID: string(kind), MessageID: id}, nil
}

func (n *fakeNotifier) Edit(h MessageHandle, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	msg, ok := n.live[h.MessageID]
	if n.failEdit || !ok {
		return errors.New("unknown message")
	}
	msg.Text = text
	n.live[h.MessageID] = msg
	n.edits = append(n.edits, text)
	return nil
}

func (n *fakeNotifier) Delete(h MessageHandle) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.live[h.MessageID]; !ok {
		return errors.New("unknown message")
	}
	delete(n.live, h.MessageID)
	n.deleted = append(n.deleted, h.MessageID)
	return nil
}

func (n *fakeNotifier) Purge(kind ChannelKind) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, msg := range n.live {
		if msg.Kind == kind {
			delete(n.live, id)
		}
	}
	n.purges = append(n.purges, kind)
	n.ops = append(n.ops, "purge:"+string(kind))
	return nil
}

func (n *fakeNotifier) ChallengeLiveness(kind ChannelKind, m Member, text string) (Challenge, error) {
	h, err := n.Announce(kind, text)
	if err != nil {
		return Challenge{}, err
	}
	c := Challenge{ID: uuid.New(), User: m.ID, Message: h}
	n.mu.Lock()
	n.challenges = append(n.challenges, c)
	n.mu.Unlock()
	return c, nil
}

func (n *fakeNotifier) AwaitAcknowledgment(ctx context.Context, c Challenge, timeout time.Duration) (bool, error) {
	n.mu.Lock()
	respond := n.respond
	n.mu.Unlock()
	if respond == nil {
		return false, nil
	}
	return respond(ctx, c)
}

func (n *fakeNotifier) liveIn(kind ChannelKind) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, msg := range n.live {
		if msg.Kind == kind {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (n *fakeNotifier) postedTo(kind ChannelKind) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, msg := range n.posted {
		if msg.Kind == kind {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (n *fakeNotifier) challengeCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.challenges)
}

type fakeRoster struct {
	mu      sync.Mutex
	members map[UserID]Member
}

func newFakeRoster(members ...Member) *fakeRoster {
	r := &fakeRoster{members: make(map[UserID]Member)}
	for _, m := range members {
		r.members[m.ID] = m
	}
	return r
}

func (r *fakeRoster) LookupMember(id UserID) (Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	return m, ok
}

func (r *fakeRoster) remove(id UserID) {
	r.mu.Lock()
	delete(r.members, id)
	r.mu.Unlock()
}

type fakeRoles struct {
	mu    sync.Mutex
	fail  bool
	calls map[UserID][]bool
}

func (r *fakeRoles) SetOnDuty(m Member, onDuty bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[UserID][]bool)
	}
	r.calls[m.ID] = append(r.calls[m.ID], onDuty)
	if r.fail {
		return errors.New("missing permissions")
	}
	return nil
}

type fakeArchive struct {
	mu      sync.Mutex
	records []Record
}

func (a *fakeArchive) RecordSession(ctx context.Context, rec Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

func member(id string) Member {
	return Member{ID: UserID(id), Name: id, Mention: "<@" + id + ">"}
}

type harness struct {
	machine  *Machine
	board    *Leaderboard
	notifier *fakeNotifier
	roster   *fakeRoster
	roles    *fakeRoles
	archive  *fakeArchive
}

func newHarness(members ...Member) *harness {
	h := &harness{
		notifier: newFakeNotifier(),
		roster:   newFakeRoster(members...),
		roles:    &fakeRoles{},
		archive:  &fakeArchive{},
	}
	ledger := NewLedger()
	h.board = NewLeaderboard(ledger, h.roster, h.notifier, nil, nil)
	h.machine = NewMachine(MachineConfig{
		Registry:    NewRegistry(),
		Ledger:      ledger,
		Notifier:    h.notifier,
		Roles:       h.roles,
		Leaderboard: h.board,
		Archive:     h.archive,
	})
	return h
}

var t0 = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
