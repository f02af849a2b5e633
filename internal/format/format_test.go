package format

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"statsvault/internal/models"
)

func TestJSONFormatterIndent(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONFormatter{Indent: true}).Write(&buf, map[string]int{"remaining": 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "{\n  \"remaining\": 3\n}\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestEntryTable(t *testing.T) {
	fetched := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []models.Entry{
		{ID: "hello", Remaining: 9, Budget: 10, HasPayload: true, LastFetchedAt: &fetched},
		{ID: "empty", Remaining: 10, Budget: 10},
	}

	var buf bytes.Buffer
	if err := EntryTable(&buf, entries); err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "ID") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if fields := strings.Fields(lines[1]); len(fields) != 5 || fields[0] != "hello" || fields[3] != "yes" || fields[4] != "2024-05-01T12:00:00Z" {
		t.Fatalf("unexpected row %q", lines[1])
	}
	if fields := strings.Fields(lines[2]); len(fields) != 5 || fields[3] != "-" || fields[4] != "-" {
		t.Fatalf("unexpected row %q", lines[2])
	}
}
