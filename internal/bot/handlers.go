package bot

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dutybot/internal/attendance"
	"dutybot/internal/locale"

	"github.com/bwmarrin/discordgo"
)

type reactionAction int

const (
	actionNone reactionAction = iota
	actionClockIn
	actionClockOut
	actionAcknowledge
)

// actionFor maps a reaction in one of the bot channels to what it asks for.
func actionFor(kind attendance.ChannelKind, emoji string) reactionAction {
	switch kind {
	case attendance.ChannelClockBoard:
		switch emoji {
		case emojiCheck:
			return actionClockIn
		case emojiCross:
			return actionClockOut
		}
	case attendance.ChannelReminder:
		if emoji == emojiCheck {
			return actionAcknowledge
		}
	}
	return actionNone
}

func (b *Bot) handleReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if !b.track() {
		return
	}
	defer b.wg.Done()

	if s.State.User != nil && r.UserID == s.State.User.ID {
		return
	}
	if r.Member != nil && r.Member.User != nil && r.Member.User.Bot {
		return
	}
	if r.GuildID != b.surface.GuildID() {
		return
	}
	kind, ok := b.surface.kindOf(r.ChannelID)
	if !ok {
		return
	}

	action := actionFor(kind, r.Emoji.Name)
	if action == actionAcknowledge {
		if b.surface.challenges.resolve(r.MessageID, r.UserID) {
			log.Println(formatLogMessage(r.GuildID, "Reminder acknowledged", r.UserID, ""))
		}
		return
	}
	if action == actionNone {
		return
	}

	member, ok := b.reactingMember(r)
	if !ok {
		log.Println(formatLogMessage(r.GuildID, "Could not resolve reacting member", r.UserID, ""))
		return
	}

	now := time.Now()
	switch action {
	case actionClockIn:
		_, err := b.machine.ClockIn(member, now)
		if errors.Is(err, attendance.ErrAlreadyClockedIn) {
			b.notice(b.printer.Sprintf(locale.AlreadyClockedIn, member.Mention))
		}
	case actionClockOut:
		_, err := b.machine.ClockOut(b.ctx, member, now, attendance.Voluntary)
		if errors.Is(err, attendance.ErrNotClockedIn) {
			b.notice(b.printer.Sprintf(locale.NotClockedIn, member.Mention))
		}
	}

	// Remove the user's reaction so the prompt can be used again
	if err := s.MessageReactionRemove(r.ChannelID, r.MessageID, r.Emoji.APIName(), r.UserID); err != nil {
		log.Println(formatLogMessage(r.GuildID, fmt.Sprintf("Error removing reaction: %v", err), r.UserID, ""))
	}
}

func (b *Bot) reactingMember(r *discordgo.MessageReactionAdd) (attendance.Member, bool) {
	if r.Member != nil && r.Member.User != nil {
		return memberFrom(r.Member), true
	}
	return b.surface.LookupMember(attendance.UserID(r.UserID))
}

func (b *Bot) notice(text string) {
	attendance.Flash(b.surface, attendance.ChannelClockBoard, text, b.config.Attendance.NoticeTTL)
}

func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if !b.track() {
		return
	}
	defer b.wg.Done()

	if m.Author == nil || m.Author.Bot {
		return
	}
	if strings.TrimSpace(m.Content) != "!start" || m.GuildID != b.surface.GuildID() {
		return
	}

	if kind, ok := b.surface.kindOf(m.ChannelID); !ok || kind != attendance.ChannelClockBoard {
		if _, err := s.ChannelMessageSend(m.ChannelID, b.printer.Sprintf(locale.WrongChannel, b.config.Channels.ClockBoard)); err != nil {
			log.Println(formatLogMessage(m.GuildID, fmt.Sprintf("Error sending channel hint: %v", err), m.Author.Username, ""))
		}
		return
	}

	log.Println(formatLogMessage(m.GuildID, "executed !start", m.Author.Username, getServerName(s, m.GuildID)))

	if err := s.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
		log.Println(formatLogMessage(m.GuildID, fmt.Sprintf("Error deleting command message: %v", err), m.Author.Username, ""))
		b.notice(b.printer.Sprintf(locale.CannotDeleteCmd))
	}
	if err := b.postPrompt(); err != nil {
		log.Println(formatLogMessage(m.GuildID, fmt.Sprintf("Error posting prompt: %v", err), "BOT", ""))
	}
}

// postPrompt posts the clock-board prompt with its two reactions. With
// replace_prompt set, the previous prompt is deleted first.
func (b *Bot) postPrompt() error {
	b.promptMu.Lock()
	defer b.promptMu.Unlock()

	if b.config.Attendance.ReplacePrompt && !b.prompt.IsZero() {
		if err := b.surface.Delete(b.prompt); err != nil {
			log.Printf("Error deleting previous prompt: %v", err)
		}
		b.prompt = attendance.MessageHandle{}
	}

	h, err := b.surface.Announce(attendance.ChannelClockBoard, b.printer.Sprintf(locale.ClockBoardPrompt))
	if err != nil {
		return err
	}
	for _, emoji := range []string{emojiCheck, emojiCross} {
		if err := b.session.MessageReactionAdd(h.ChannelID, h.MessageID, emoji); err != nil {
			log.Printf("Error adding %s to prompt: %v", emoji, err)
		}
	}
	b.prompt = h
	return nil
}
