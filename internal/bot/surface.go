package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"dutybot/internal/attendance"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

const (
	emojiCheck = "✅"
	emojiCross = "❌"
)

var errNotBound = errors.New("guild surface is not bound yet")

// surface is the single guild the bot serves. It implements
// attendance.Notifier, attendance.Roster and attendance.RoleManager.
type surface struct {
	session    *discordgo.Session
	challenges *challengeBook
	names      map[attendance.ChannelKind]string
	roleName   string

	mu       sync.RWMutex
	guildID  string
	channels map[attendance.ChannelKind]string
	roleID   string
}

func newSurface(session *discordgo.Session, names map[attendance.ChannelKind]string, roleName string) *surface {
	return &surface{
		session:    session,
		challenges: newChallengeBook(),
		names:      names,
		roleName:   roleName,
		channels:   make(map[attendance.ChannelKind]string),
	}
}

// bind resolves channel and role names of guildID. Missing channels or a
// missing role are logged; the matching operations then fail at call time.
func (g *surface) bind(guildID string) error {
	channels, err := g.session.GuildChannels(guildID)
	if err != nil {
		return fmt.Errorf("error getting channels: %w", err)
	}
	roles, err := g.session.GuildRoles(guildID)
	if err != nil {
		return fmt.Errorf("error getting roles: %w", err)
	}

	resolved := make(map[attendance.ChannelKind]string, len(g.names))
	for kind, name := range g.names {
		for _, ch := range channels {
			if ch.Type == discordgo.ChannelTypeGuildText && ch.Name == name {
				resolved[kind] = ch.ID
				break
			}
		}
		if _, ok := resolved[kind]; !ok {
			log.Printf("Channel #%s (%s) not found in guild %s", name, kind, guildID)
		}
	}

	var roleID string
	for _, role := range roles {
		if role.Name == g.roleName {
			roleID = role.ID
			break
		}
	}
	if roleID == "" {
		log.Printf("Role %q not found in guild %s", g.roleName, guildID)
	}

	g.mu.Lock()
	g.guildID = guildID
	g.channels = resolved
	g.roleID = roleID
	g.mu.Unlock()
	return nil
}

func (g *surface) GuildID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.guildID
}

func (g *surface) channelID(kind attendance.ChannelKind) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.guildID == "" {
		return "", errNotBound
	}
	id, ok := g.channels[kind]
	if !ok {
		return "", fmt.Errorf("channel #%s is missing", g.names[kind])
	}
	return id, nil
}

// kindOf maps a channel ID back to its logical channel.
func (g *surface) kindOf(channelID string) (attendance.ChannelKind, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for kind, id := range g.channels {
		if id == channelID {
			return kind, true
		}
	}
	return "", false
}

func (g *surface) Announce(kind attendance.ChannelKind, text string) (attendance.MessageHandle, error) {
	channelID, err := g.channelID(kind)
	if err != nil {
		return attendance.MessageHandle{}, err
	}
	msg, err := g.session.ChannelMessageSend(channelID, text)
	if err != nil {
		return attendance.MessageHandle{}, fmt.Errorf("error sending to #%s: %w", g.names[kind], err)
	}
	return attendance.MessageHandle{ChannelID: channelID, MessageID: msg.ID}, nil
}

func (g *surface) Edit(h attendance.MessageHandle, text string) error {
	if _, err := g.session.ChannelMessageEdit(h.ChannelID, h.MessageID, text); err != nil {
		return fmt.Errorf("error editing message %s: %w", h.MessageID, err)
	}
	return nil
}

func (g *surface) Delete(h attendance.MessageHandle) error {
	if h.IsZero() {
		return nil
	}
	if err := g.session.ChannelMessageDelete(h.ChannelID, h.MessageID); err != nil {
		return fmt.Errorf("error deleting message %s: %w", h.MessageID, err)
	}
	return nil
}

// Purge deletes the most recent messages of a channel. Bulk deletion is
// refused by Discord for messages older than two weeks, so those are
// deleted one by one.
func (g *surface) Purge(kind attendance.ChannelKind) error {
	channelID, err := g.channelID(kind)
	if err != nil {
		return err
	}
	msgs, err := g.session.ChannelMessages(channelID, 100, "", "", "")
	if err != nil {
		return fmt.Errorf("error listing #%s: %w", g.names[kind], err)
	}
	if len(msgs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	if len(ids) > 1 {
		if err := g.session.ChannelMessagesBulkDelete(channelID, ids); err == nil {
			return nil
		}
	}

	var failed int
	for _, id := range ids {
		if err := g.session.ChannelMessageDelete(channelID, id); err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("could not delete %d of %d messages in #%s", failed, len(ids), g.names[kind])
	}
	return nil
}

func (g *surface) ChallengeLiveness(kind attendance.ChannelKind, m attendance.Member, text string) (attendance.Challenge, error) {
	h, err := g.Announce(kind, text)
	if err != nil {
		return attendance.Challenge{}, err
	}
	c := attendance.Challenge{ID: uuid.New(), User: m.ID, Message: h}
	g.challenges.register(c)

	if err := g.session.MessageReactionAdd(h.ChannelID, h.MessageID, emojiCheck); err != nil {
		log.Printf("Error adding reaction to challenge %s: %v", c.ID, err)
	}
	return c, nil
}

func (g *surface) AwaitAcknowledgment(ctx context.Context, c attendance.Challenge, timeout time.Duration) (bool, error) {
	return g.challenges.wait(ctx, c, timeout)
}

func (g *surface) LookupMember(id attendance.UserID) (attendance.Member, bool) {
	guildID := g.GuildID()
	if guildID == "" {
		return attendance.Member{}, false
	}
	m, err := g.session.State.Member(guildID, string(id))
	if err != nil {
		m, err = g.session.GuildMember(guildID, string(id))
		if err != nil {
			return attendance.Member{}, false
		}
	}
	if m.User == nil {
		return attendance.Member{}, false
	}
	return memberFrom(m), true
}

func (g *surface) SetOnDuty(m attendance.Member, onDuty bool) error {
	g.mu.RLock()
	guildID, roleID := g.guildID, g.roleID
	g.mu.RUnlock()
	if guildID == "" {
		return errNotBound
	}
	if roleID == "" {
		return fmt.Errorf("role %q is missing", g.roleName)
	}

	var err error
	if onDuty {
		err = g.session.GuildMemberRoleAdd(guildID, string(m.ID), roleID)
	} else {
		err = g.session.GuildMemberRoleRemove(guildID, string(m.ID), roleID)
	}
	if err != nil {
		return fmt.Errorf("no permission to manage role %q for %s: %w", g.roleName, m.Name, err)
	}
	return nil
}

func memberFrom(m *discordgo.Member) attendance.Member {
	name := m.User.Username
	if m.Nick != "" {
		name = m.Nick
	}
	return attendance.Member{
		ID:      attendance.UserID(m.User.ID),
		Name:    name,
		Mention: m.User.Mention(),
	}
}
