package attendance

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"dutybot/internal/locale"

	"golang.org/x/text/message"
)

var rankMarkers = map[int]string{1: "🥇", 2: "🥈", 3: "🥉"}

// Standing is one row of the leaderboard.
type Standing struct {
	Rank   int
	Member Member
	Total  time.Duration
}

// Leaderboard projects the ledger into a ranked list and renders it to the
// leaderboard channel.
type Leaderboard struct {
	ledger   *Ledger
	roster   Roster
	notifier Notifier
	printer  *message.Printer
	format   func(time.Duration) string

	mu sync.Mutex
}

func NewLeaderboard(ledger *Ledger, roster Roster, notifier Notifier, printer *message.Printer, format func(time.Duration) string) *Leaderboard {
	if printer == nil {
		printer = locale.Printer(locale.Default())
	}
	if format == nil {
		format = func(d time.Duration) string { return d.String() }
	}
	return &Leaderboard{
		ledger:   ledger,
		roster:   roster,
		notifier: notifier,
		printer:  printer,
		format:   format,
	}
}

// Standings ranks the ledger entries of current roster members by total,
// highest first. Equal totals keep ledger insertion order.
func (b *Leaderboard) Standings() []Standing {
	var out []Standing
	for _, e := range b.ledger.Entries() {
		member, ok := b.roster.LookupMember(e.User)
		if !ok {
			continue
		}
		out = append(out, Standing{Member: member, Total: e.Total})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total > out[j].Total
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Render returns the leaderboard text.
func (b *Leaderboard) Render() string {
	standings := b.Standings()
	if len(standings) == 0 {
		return b.printer.Sprintf(locale.LeaderboardEmpty)
	}

	lines := make([]string, 0, len(standings))
	for _, s := range standings {
		marker, ok := rankMarkers[s.Rank]
		if !ok {
			marker = fmt.Sprintf("%d.", s.Rank)
		}
		lines = append(lines, b.printer.Sprintf(locale.LeaderboardLine, marker, s.Member.Mention, b.format(s.Total)))
	}
	return b.printer.Sprintf(locale.LeaderboardHeader) + "\n\n" + strings.Join(lines, "\n")
}

// Refresh replaces the content of the leaderboard channel with a fresh
// render. A failed purge is logged and the new render posted anyway.
func (b *Leaderboard) Refresh() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	text := b.Render()
	if err := b.notifier.Purge(ChannelLeaderboard); err != nil {
		log.Printf("attendance: purge leaderboard: %v", err)
	}
	if _, err := b.notifier.Announce(ChannelLeaderboard, text); err != nil {
		return fmt.Errorf("post leaderboard: %w", err)
	}
	return nil
}
