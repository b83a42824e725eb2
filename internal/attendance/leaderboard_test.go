package attendance

import (
	"context"
	"strings"
	"testing"
	"time"

	"dutybot/internal/durfmt"
)

// book runs one session of d for m starting at start.
func book(t *testing.T, h *harness, m Member, start time.Time, d time.Duration) {
	t.Helper()
	if _, err := h.machine.ClockIn(m, start); err != nil {
		t.Fatalf("clock-in %s: %v", m.ID, err)
	}
	if _, err := h.machine.ClockOut(context.Background(), m, start.Add(d), Voluntary); err != nil {
		t.Fatalf("clock-out %s: %v", m.ID, err)
	}
}

func TestStandingsOrderIsStable(t *testing.T) {
	a, b, c := member("a"), member("b"), member("c")
	h := newHarness(a, b, c)

	book(t, h, a, t0, time.Hour)
	book(t, h, b, t0, 2*time.Hour)
	book(t, h, c, t0, 2*time.Hour)

	got := h.board.Standings()
	want := []UserID{"b", "c", "a"}
	if len(got) != len(want) {
		t.Fatalf("expected %d standings, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].Member.ID != id || got[i].Rank != i+1 {
			t.Fatalf("position %d: expected %s rank %d, got %+v", i, id, i+1, got[i])
		}
	}
}

func TestStandingsSkipMissingMembers(t *testing.T) {
	a, b := member("a"), member("b")
	h := newHarness(a, b)

	book(t, h, a, t0, time.Hour)
	book(t, h, b, t0, 2*time.Hour)
	h.roster.remove("b")

	got := h.board.Standings()
	if len(got) != 1 || got[0].Member.ID != "a" || got[0].Rank != 1 {
		t.Fatalf("unexpected standings %+v", got)
	}
}

func TestRenderMarkers(t *testing.T) {
	members := []Member{member("a"), member("b"), member("c"), member("d"), member("e")}
	h := newHarness(members...)
	h.board.format = durfmt.Format

	for i, m := range members {
		book(t, h, m, t0, time.Duration(len(members)-i)*time.Hour)
	}

	lines := strings.Split(h.board.Render(), "\n")
	want := []string{
		"**Leaderboard of the hardest working members:**",
		"",
		"🥇 <@a> – 5 hours",
		"🥈 <@b> – 4 hours",
		"🥉 <@c> – 3 hours",
		"4. <@d> – 2 hours",
		"5. <@e> – 1 hour",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %q", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestRefreshEmptyLeaderboard(t *testing.T) {
	h := newHarness()
	if err := h.board.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	live := h.notifier.liveIn(ChannelLeaderboard)
	if len(live) != 1 || live[0] != "No leaderboard data yet." {
		t.Fatalf("expected placeholder, got %v", live)
	}
}

func TestRefreshReplacesContent(t *testing.T) {
	a := member("a")
	h := newHarness(a)

	h.board.Refresh()
	book(t, h, a, t0, time.Hour)
	h.board.Refresh()

	live := h.notifier.liveIn(ChannelLeaderboard)
	if len(live) != 1 || !strings.Contains(live[0], "<@a>") {
		t.Fatalf("expected a single fresh leaderboard, got %v", live)
	}

	var ops []string
	for _, op := range h.notifier.ops {
		if strings.HasSuffix(op, string(ChannelLeaderboard)) {
			ops = append(ops, op)
		}
	}
	for i := 0; i < len(ops); i += 2 {
		if ops[i] != "purge:leaderboard" || ops[i+1] != "announce:leaderboard" {
			t.Fatalf("expected purge before every post, got %v", ops)
		}
	}
}
