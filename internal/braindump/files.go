package braindump

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aurorae-haven/aurorae/internal/flatstore"
)

// DefaultMaxFilenameLength bounds sanitized titles in export filenames.
const DefaultMaxFilenameLength = 30

var (
	controlChars  = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	traversal     = regexp.MustCompile(`\.\.[/\\]`)
	reservedChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	nonAlnum      = regexp.MustCompile(`[^a-zA-Z0-9]`)
	multiUnder    = regexp.MustCompile(`_+`)
	// Windows reserved device names (CON, PRN, AUX, NUL, COM1-9, LPT1-9).
	windowsReserved = regexp.MustCompile(`^(con|prn|aux|nul|com[1-9]|lpt[1-9])$`)
	dateTimeSuffix  = regexp.MustCompile(`_\d{8}_\d{4}$`)
)

// SanitizeFilename makes text safe for use as a filename: control characters
// and traversal sequences are stripped, reserved and non-alphanumeric
// characters become underscores, repeated underscores collapse, the result
// is lowercased, Windows device names get a file_ prefix, an empty result
// becomes "untitled", and the output is truncated to maxLength (default 30
// when maxLength <= 0).
func SanitizeFilename(text string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxFilenameLength
	}
	if text == "" {
		return "untitled"
	}

	sanitized := controlChars.ReplaceAllString(text, "")
	sanitized = traversal.ReplaceAllString(sanitized, "_")
	sanitized = reservedChars.ReplaceAllString(sanitized, "_")
	sanitized = nonAlnum.ReplaceAllString(sanitized, "_")
	sanitized = multiUnder.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_")
	sanitized = strings.ToLower(sanitized)

	if windowsReserved.MatchString(sanitized) {
		sanitized = "file_" + sanitized
	}
	if sanitized == "" {
		return "untitled"
	}
	if len(sanitized) > maxLength {
		sanitized = sanitized[:maxLength]
	}
	return sanitized
}

// ExportFilename builds a markdown export filename of the form
// braindump_<title>_<YYYYMMDD>_<HHmm>.md.
func ExportFilename(title string) string {
	return exportFilename(title, DefaultMaxFilenameLength, time.Now())
}

func exportFilename(title string, maxLength int, now time.Time) string {
	return fmt.Sprintf("braindump_%s_%s_%s.md",
		SanitizeFilename(title, maxLength),
		now.UTC().Format("20060102"),
		now.Format("1504"))
}

// ExportMarkdown writes one entry into dir as a markdown file and returns
// the file path. maxLength bounds the sanitized title in the filename.
func (m *Manager) ExportMarkdown(dir, id string, maxLength int) (string, error) {
	entries, err := m.Entries()
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.ID != id {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("create export dir: %w", err)
		}
		path := filepath.Join(dir, exportFilename(entry.Title, maxLength, time.Now()))
		content := fmt.Sprintf("# %s\n\n%s\n", entry.Title, entry.Content)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			return "", fmt.Errorf("write markdown export: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("entry %s: %w", id, flatstore.ErrNotFound)
}

// TitleFromFilename recovers a display title from an export filename:
// the braindump_ prefix, date/time suffix, and .md extension are removed
// and underscores become spaces. Unparseable names yield "Imported Note".
func TitleFromFilename(filename string) string {
	if filename == "" {
		return "Imported Note"
	}

	title := filename
	if strings.HasSuffix(strings.ToLower(title), ".md") {
		title = title[:len(title)-3]
	}
	if strings.HasPrefix(strings.ToLower(title), "braindump_") {
		title = title[len("braindump_"):]
	}
	title = dateTimeSuffix.ReplaceAllString(title, "")
	title = strings.ReplaceAll(title, "_", " ")

	if title == "" {
		return "Imported Note"
	}
	return title
}
