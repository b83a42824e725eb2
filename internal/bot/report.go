package bot

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"dutybot/internal/attendance"
	"dutybot/internal/locale"

	"github.com/bwmarrin/discordgo"
)

type reportRow struct {
	UserID   attendance.UserID
	Name     string
	Total    time.Duration
	Sessions int
}

func (b *Bot) handleReport(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(s, i, "report")

	format := "text"
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "format" {
			format = opt.StringValue()
		}
	}

	// Get user ID safely
	var userID string
	if i.Member != nil && i.Member.User != nil {
		userID = i.Member.User.ID
	} else if i.User != nil {
		userID = i.User.ID
	} else {
		respondWithError(s, i, "Could not determine user information")
		return
	}

	if format == "csv" && !isAdmin(s, i.GuildID, userID) {
		log.Printf("CSV access denied for user %s in guild %s", userID, i.GuildID)
		respondWithError(s, i, b.printer.Sprintf(locale.ReportCSVForbidden))
		return
	}

	rows := buildReport(b.machine.Ledger().Entries(), b.surface)
	if len(rows) == 0 {
		respondWithSuccess(s, i, b.printer.Sprintf(locale.ReportEmpty))
		return
	}

	if format == "csv" {
		content, err := reportCSV(rows)
		if err != nil {
			respondWithError(s, i, "Error building CSV: "+err.Error())
			return
		}

		file := &discordgo.File{
			Name:        fmt.Sprintf("worktime_report_%s.csv", time.Now().Format("2006-01-02")),
			ContentType: "text/csv",
			Reader:      bytes.NewReader(content),
		}

		err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Files: []*discordgo.File{file},
				Flags: discordgo.MessageFlagsEphemeral,
			},
		})
		if err != nil {
			log.Println(formatLogMessage(i.GuildID, "Error sending CSV report: "+err.Error(), userID, ""))
		}
		return
	}

	respondWithSuccess(s, i, fmt.Sprintf("# %s\n\n%s",
		b.printer.Sprintf(locale.ReportTitle),
		reportTable(rows, b.durations.Format),
	))
}

// buildReport joins ledger entries with current member names and orders
// them by total time, longest first. Members who left keep their ID as name.
func buildReport(entries []attendance.Entry, roster attendance.Roster) []reportRow {
	rows := make([]reportRow, 0, len(entries))
	for _, e := range entries {
		name := string(e.User)
		if m, ok := roster.LookupMember(e.User); ok {
			name = m.Name
		}
		rows = append(rows, reportRow{
			UserID:   e.User,
			Name:     name,
			Total:    e.Total,
			Sessions: e.Sessions,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Total > rows[j].Total
	})
	return rows
}

func reportTable(rows []reportRow, format func(time.Duration) string) string {
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{
			truncateString(r.Name, 20),
			format(r.Total),
			strconv.Itoa(r.Sessions),
		})
	}
	return formatTable([]string{"USER", "TOTAL TIME", "SESSIONS"}, cells)
}

func reportCSV(rows []reportRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"User", "User ID", "Total Seconds", "Sessions"}); err != nil {
		return nil, err
	}
	for _, r := range rows {
		record := []string{
			r.Name,
			string(r.UserID),
			strconv.FormatInt(int64(r.Total/time.Second), 10),
			strconv.Itoa(r.Sessions),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
