// Package locale holds the user-facing texts of the bot in every supported
// language and hands out printers for them.
package locale

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. Arguments are listed next to each key.
const (
	ClockBoardPrompt   = "clockboard.prompt"
	ClockedIn          = "clock.in"               // mention
	AlreadyClockedIn   = "clock.in.already"       // mention
	ClockedOut         = "clock.out"              // mention
	ForcedClockOut     = "clock.out.forced"       // mention
	NotClockedIn       = "clock.out.not_in"       // mention
	WorklogTotal       = "worklog.total"          // mention, duration
	ReminderChallenge  = "reminder.challenge"     // mention, duration
	LeaderboardHeader  = "leaderboard.header"     //
	LeaderboardEmpty   = "leaderboard.empty"      //
	LeaderboardLine    = "leaderboard.line"       // marker, mention, duration
	WrongChannel       = "command.wrong_channel"  // channel name
	CannotDeleteCmd    = "command.cannot_delete"  //
	PromptPosted       = "command.prompt_posted"  //
	LeaderboardPosted  = "command.leaderboard_ok" //
	StatusHeader       = "status.header"          //
	StatusNobody       = "status.nobody"          //
	ReportTitle        = "report.title"           //
	ReportEmpty        = "report.empty"           //
	ReportCSVForbidden = "report.csv_forbidden"   //
)

var texts = map[language.Tag]map[string]string{
	language.English: {
		ClockBoardPrompt:   "React with ✅ to clock in or with ❌ to clock out.",
		ClockedIn:          "%s clocked in.",
		AlreadyClockedIn:   "%s, you are already clocked in!",
		ClockedOut:         "%s clocked out successfully.",
		ForcedClockOut:     "%s was clocked out automatically after an unanswered reminder.",
		NotClockedIn:       "%s, you are not clocked in.",
		WorklogTotal:       "%s has worked %s in total.",
		ReminderChallenge:  "%s, are you still there? React with ✅ within %s.",
		LeaderboardHeader:  "**Leaderboard of the hardest working members:**",
		LeaderboardEmpty:   "No leaderboard data yet.",
		LeaderboardLine:    "%s %s – %s",
		WrongChannel:       "Please use this command in #%s.",
		CannotDeleteCmd:    "I cannot delete `!start`, please grant me the `Manage Messages` permission.",
		PromptPosted:       "Clock-board prompt posted.",
		LeaderboardPosted:  "Leaderboard refreshed.",
		StatusHeader:       "Currently on duty",
		StatusNobody:       "Nobody is on duty right now.",
		ReportTitle:        "Worked time",
		ReportEmpty:        "No completed sessions yet.",
		ReportCSVForbidden: "CSV format is only available for administrators",
	},
	language.German: {
		ClockBoardPrompt:   "Reagiere mit ✅ um dich einzustempeln oder mit ❌ um dich auszustempeln.",
		ClockedIn:          "%s hat sich eingestempelt.",
		AlreadyClockedIn:   "%s, du bist bereits eingestempelt!",
		ClockedOut:         "%s hat sich erfolgreich ausgestempelt.",
		ForcedClockOut:     "%s wurde nach einer unbeantworteten Erinnerung automatisch ausgestempelt.",
		NotClockedIn:       "%s, du bist nicht eingestempelt.",
		WorklogTotal:       "%s hat insgesamt %s gearbeitet.",
		ReminderChallenge:  "%s, bist du noch da? Reagiere innerhalb von %s mit ✅.",
		LeaderboardHeader:  "**Leaderschaft der fleißigsten Mitglieder:**",
		LeaderboardEmpty:   "Noch keine Daten für die Leaderschaft.",
		LeaderboardLine:    "%s %s – %s",
		WrongChannel:       "Bitte nutze diesen Befehl im Kanal #%s.",
		CannotDeleteCmd:    "Ich kann `!start` nicht löschen – bitte gib mir die Berechtigung `Nachrichten verwalten`.",
		PromptPosted:       "Stempel-Nachricht gesendet.",
		LeaderboardPosted:  "Leaderschaft aktualisiert.",
		StatusHeader:       "Aktuell im Dienst",
		StatusNobody:       "Gerade ist niemand im Dienst.",
		ReportTitle:        "Arbeitszeiten",
		ReportEmpty:        "Noch keine abgeschlossenen Schichten.",
		ReportCSVForbidden: "Das CSV-Format ist nur für Administratoren verfügbar",
	},
}

var (
	supported = []language.Tag{language.English, language.German}
	matcher   = language.NewMatcher(supported)
	builder   = newCatalog()
)

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range texts {
		for key, value := range msgs {
			if err := b.SetString(tag, key, value); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Default is used when the configured locale is empty or unknown.
func Default() language.Tag {
	return language.English
}

// Supported returns the languages with a full set of texts.
func Supported() []language.Tag {
	out := make([]language.Tag, len(supported))
	copy(out, supported)
	return out
}

// Parse resolves a configured locale such as "de" or "en-GB" to one of the
// supported languages.
func Parse(value string) language.Tag {
	value = strings.TrimSpace(value)
	if value == "" {
		return Default()
	}
	tag, err := language.Parse(value)
	if err != nil {
		return Default()
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return Default()
	}
	return supported[index]
}

// Printer returns a printer that resolves the message keys of this package
// for tag.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(builder))
}
