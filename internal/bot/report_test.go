package bot

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"dutybot/internal/attendance"
	"dutybot/internal/durfmt"
)

type stubRoster map[attendance.UserID]attendance.Member

func (r stubRoster) LookupMember(id attendance.UserID) (attendance.Member, bool) {
	m, ok := r[id]
	return m, ok
}

func TestBuildReportOrdersByTotal(t *testing.T) {
	entries := []attendance.Entry{
		{User: "a", Total: time.Hour, Sessions: 2},
		{User: "b", Total: 3 * time.Hour, Sessions: 1},
		{User: "gone", Total: 2 * time.Hour, Sessions: 4},
	}
	roster := stubRoster{
		"a": {ID: "a", Name: "Alice"},
		"b": {ID: "b", Name: "Bob"},
	}

	rows := buildReport(entries, roster)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	want := []string{"Bob", "gone", "Alice"}
	for i, name := range want {
		if rows[i].Name != name {
			t.Fatalf("row %d: expected %s, got %s", i, name, rows[i].Name)
		}
	}
	if rows[1].Sessions != 4 || rows[1].UserID != "gone" {
		t.Fatalf("unexpected row %+v", rows[1])
	}
}

func TestReportCSV(t *testing.T) {
	rows := []reportRow{
		{UserID: "1", Name: "Müller, Jan", Total: 90 * time.Minute, Sessions: 2},
		{UserID: "2", Name: "Bob", Total: 45 * time.Second, Sessions: 1},
	}

	content, err := reportCSV(rows)
	if err != nil {
		t.Fatalf("reportCSV: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(content)).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and 2 records, got %d", len(records))
	}
	if strings.Join(records[0], "|") != "User|User ID|Total Seconds|Sessions" {
		t.Fatalf("unexpected header %v", records[0])
	}
	if records[1][0] != "Müller, Jan" || records[1][2] != "5400" || records[1][3] != "2" {
		t.Fatalf("unexpected record %v", records[1])
	}
	if records[2][2] != "45" {
		t.Fatalf("unexpected seconds %v", records[2])
	}
}

func TestReportTable(t *testing.T) {
	rows := []reportRow{{UserID: "1", Name: "Alice", Total: 2 * time.Hour, Sessions: 3}}

	table := reportTable(rows, durfmt.Format)
	if !strings.HasPrefix(table, "```\n") || !strings.HasSuffix(table, "```") {
		t.Fatalf("expected a code block, got %q", table)
	}
	for _, want := range []string{"USER", "TOTAL TIME", "SESSIONS", "Alice", "2 hours", "3"} {
		if !strings.Contains(table, want) {
			t.Fatalf("expected %q in %q", want, table)
		}
	}
}

func TestStatusRows(t *testing.T) {
	start := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	sessions := []attendance.Session{
		{User: attendance.Member{ID: "1", Name: "Alice"}, ClockIn: start},
		{User: attendance.Member{ID: "2", Name: "Bob"}, ClockIn: start.Add(30 * time.Minute)},
	}

	rows := statusRows(sessions, start.Add(time.Hour), durfmt.Format)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "● Alice" || rows[0][1] != "2024-05-06 08:00 UTC" || rows[0][2] != "1 hour" {
		t.Fatalf("unexpected row %v", rows[0])
	}
	if rows[1][2] != "30 minutes" {
		t.Fatalf("unexpected elapsed %v", rows[1])
	}
}
