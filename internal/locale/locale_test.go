package locale

import (
	"testing"

	"golang.org/x/text/language"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want language.Tag
	}{
		{"", language.English},
		{"en", language.English},
		{"de", language.German},
		{"de-CH", language.German},
		{"  de  ", language.German},
		{"not a locale!", language.English},
		{"ja", language.English},
	}
	for _, tt := range tests {
		if got := Parse(tt.in); got != tt.want {
			t.Fatalf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPrinterResolvesKeys(t *testing.T) {
	en := Printer(language.English)
	if got := en.Sprintf(ClockedIn, "<@1>"); got != "<@1> clocked in." {
		t.Fatalf("unexpected english text %q", got)
	}

	de := Printer(language.German)
	if got := de.Sprintf(WorklogTotal, "<@1>", "2 Stunden"); got != "<@1> hat insgesamt 2 Stunden gearbeitet." {
		t.Fatalf("unexpected german text %q", got)
	}
}

func TestEveryLocaleDefinesEveryKey(t *testing.T) {
	base := texts[language.English]
	for tag, msgs := range texts {
		if len(msgs) != len(base) {
			t.Fatalf("locale %v defines %d keys, english defines %d", tag, len(msgs), len(base))
		}
		for key := range base {
			if _, ok := msgs[key]; !ok {
				t.Fatalf("locale %v is missing key %q", tag, key)
			}
		}
	}
}
