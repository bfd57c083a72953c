package braindump_test

import (
	"errors"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/aurorae-haven/aurorae/internal/braindump"
	"github.com/aurorae-haven/aurorae/internal/flatstore"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"My<File>:Name?.txt", 0, "my_file_name_txt"},
		{"", 0, "untitled"},
		{"???", 0, "untitled"},
		{"CON", 0, "file_con"},
		{"lpt3", 0, "file_lpt3"},
		{"../../etc/passwd", 0, "etc_passwd"},
		{"Hello   World", 0, "hello_world"},
		{"__trimmed__", 0, "trimmed"},
		{"note\x00with\x1fcontrols", 0, "notewithcontrols"},
		{"a very long title that keeps going on", 10, "a_very_lon"},
	}
	for _, tt := range tests {
		if got := braindump.SanitizeFilename(tt.in, tt.max); got != tt.want {
			t.Errorf("SanitizeFilename(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestExportFilenameShape(t *testing.T) {
	name := braindump.ExportFilename("Morning Pages")
	pattern := regexp.MustCompile(`^braindump_morning_pages_\d{8}_\d{4}\.md$`)
	if !pattern.MatchString(name) {
		t.Errorf("filename %q does not match expected shape", name)
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"braindump_morning_pages_20260115_1430.md", "morning pages"},
		{"braindump_ideas.md", "ideas"},
		{"plain.md", "plain"},
		{"", "Imported Note"},
		{"braindump__20260115_1430.md", "Imported Note"},
	}
	for _, tt := range tests {
		if got := braindump.TitleFromFilename(tt.in); got != tt.want {
			t.Errorf("TitleFromFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoundTripTitle(t *testing.T) {
	name := braindump.ExportFilename("Weekly Review")
	title := braindump.TitleFromFilename(name)
	if !strings.EqualFold(title, "weekly review") {
		t.Errorf("round-trip title = %q", title)
	}
}

func TestExportMarkdown(t *testing.T) {
	m, _ := newManager(t)

	entry, err := m.CreateEntry("Weekly Review")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := m.UpdateEntry(entry.ID, "Weekly Review", "clear the decks"); err != nil {
		t.Fatalf("update entry: %v", err)
	}

	dir := t.TempDir()
	path, err := m.ExportMarkdown(dir, entry.ID, 0)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "# Weekly Review") || !strings.Contains(content, "clear the decks") {
		t.Fatalf("content = %q", content)
	}

	_, err = m.ExportMarkdown(dir, "missing", 0)
	if !errors.Is(err, flatstore.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
