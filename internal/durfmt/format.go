// Package durfmt renders elapsed time as localized, human-readable text
// such as "1 week, 2 days, 3 hours".
package durfmt

import (
	"strings"
	"time"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Separator joins the non-zero units, largest first.
const Separator = ", "

const (
	keyWeeks   = "duration.weeks"
	keyDays    = "duration.days"
	keyHours   = "duration.hours"
	keyMinutes = "duration.minutes"
	keySeconds = "duration.seconds"
)

type unitForms struct {
	key              string
	singular, plural string
}

var units = map[language.Tag][]unitForms{
	language.English: {
		{keyWeeks, "%d week", "%d weeks"},
		{keyDays, "%d day", "%d days"},
		{keyHours, "%d hour", "%d hours"},
		{keyMinutes, "%d minute", "%d minutes"},
		{keySeconds, "%d second", "%d seconds"},
	},
	language.German: {
		{keyWeeks, "%d Woche", "%d Wochen"},
		{keyDays, "%d Tag", "%d Tage"},
		{keyHours, "%d Stunde", "%d Stunden"},
		{keyMinutes, "%d Minute", "%d Minuten"},
		{keySeconds, "%d Sekunde", "%d Sekunden"},
	},
}

var (
	builder = newCatalog()
	english = New(language.English)
)

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, forms := range units {
		for _, f := range forms {
			// "=1" rather than plural.One: singular is chosen for exactly one in every locale.
			msg := plural.Selectf(1, "%d", "=1", f.singular, "other", f.plural)
			if err := b.Set(tag, f.key, msg); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Supported returns the locales the formatter has unit names for.
func Supported() []language.Tag {
	return []language.Tag{language.English, language.German}
}

// Formatter renders durations in one locale.
type Formatter struct {
	printer *message.Printer
}

// New returns a Formatter for tag. Unsupported tags fall back to English.
func New(tag language.Tag) *Formatter {
	matched, _, _ := language.NewMatcher(Supported()).Match(tag)
	base, _ := matched.Base()
	resolved := language.English
	if b, _ := language.German.Base(); base == b {
		resolved = language.German
	}
	return &Formatter{printer: message.NewPrinter(resolved, message.Catalog(builder))}
}

// Format renders d with the English unit names.
func Format(d time.Duration) string {
	return english.Format(d)
}

// Format decomposes d into weeks, days, hours, minutes and seconds. Units
// that are zero are left out; a zero duration renders as zero seconds.
// Sub-second precision is truncated.
func (f *Formatter) Format(d time.Duration) string {
	rest := int64(d / time.Second)
	if rest < 0 {
		rest = 0
	}

	weeks, rest := rest/604800, rest%604800
	days, rest := rest/86400, rest%86400
	hours, rest := rest/3600, rest%3600
	minutes, seconds := rest/60, rest%60

	var parts []string
	for _, u := range []struct {
		key   string
		value int64
	}{
		{keyWeeks, weeks},
		{keyDays, days},
		{keyHours, hours},
		{keyMinutes, minutes},
	} {
		if u.value > 0 {
			parts = append(parts, f.printer.Sprintf(u.key, int(u.value)))
		}
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, f.printer.Sprintf(keySeconds, int(seconds)))
	}
	return strings.Join(parts, Separator)
}
