package bot

import (
	"fmt"
	"log"
	"time"

	"dutybot/internal/attendance"
	"dutybot/internal/locale"

	"github.com/bwmarrin/discordgo"
)

var (
	commands = []*discordgo.ApplicationCommand{
		{
			Name:        "start",
			Description: "Post the clock-in prompt in the clock-board channel",
		},
		{
			Name:        "leaderboard",
			Description: "Rebuild the leaderboard channel",
		},
		{
			Name:        "status",
			Description: "Show who is on duty right now",
		},
		{
			Name:        "report",
			Description: "Show worked time per member",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "format",
					Description: "Output format",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Text", Value: "text"},
						{Name: "CSV", Value: "csv"},
					},
				},
			},
		},
	}
)

func (b *Bot) handleStart(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(s, i, "start")

	if !deferResponse(s, i) {
		return
	}
	if err := b.postPrompt(); err != nil {
		log.Println(formatLogMessage(i.GuildID, fmt.Sprintf("Error posting prompt: %v", err), "BOT", ""))
		editResponse(s, i, "Error: "+err.Error())
		return
	}
	editResponse(s, i, b.printer.Sprintf(locale.PromptPosted))
}

func (b *Bot) handleLeaderboard(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(s, i, "leaderboard")

	if !deferResponse(s, i) {
		return
	}
	if err := b.board.Refresh(); err != nil {
		log.Println(formatLogMessage(i.GuildID, fmt.Sprintf("Error refreshing leaderboard: %v", err), "BOT", ""))
		editResponse(s, i, "Error: "+err.Error())
		return
	}
	editResponse(s, i, b.printer.Sprintf(locale.LeaderboardPosted))
}

func (b *Bot) handleStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(s, i, "status")

	sessions := b.machine.Registry().Sessions()
	if len(sessions) == 0 {
		respondWithSuccess(s, i, b.printer.Sprintf(locale.StatusNobody))
		return
	}

	rows := statusRows(sessions, time.Now(), b.durations.Format)
	respondWithSuccess(s, i, fmt.Sprintf("**%s**\n%s",
		b.printer.Sprintf(locale.StatusHeader),
		formatTable([]string{"USER", "SINCE", "TIME"}, rows),
	))
}

// statusRows lists open sessions, oldest first, as they come from the
// registry.
func statusRows(sessions []attendance.Session, now time.Time, format func(time.Duration) string) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, sess := range sessions {
		rows = append(rows, []string{
			"● " + truncateString(sess.User.Name, 20),
			sess.ClockIn.Format("2006-01-02 15:04 MST"),
			format(now.Sub(sess.ClockIn)),
		})
	}
	return rows
}
