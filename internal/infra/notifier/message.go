package notifier

import (
	"fmt"
	"strings"

	"relwatch/internal/domain/entity"
)

// markdownV2Special lists every character the MarkdownV2 dialect treats as
// markup. All of them must be backslash-escaped inside free text or the
// API rejects the message.
const markdownV2Special = `_*[]()~` + "`" + `>#+-=|{}.!`

// DefaultMaxNotes bounds the number of note lines rendered into a message.
const DefaultMaxNotes = 8

// EscapeMarkdownV2 escapes every markup-significant character in s so the
// text renders verbatim. The escaping is round-trip safe: escaped text
// displays as the original and cannot break the markup parser.
func EscapeMarkdownV2(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/4)
	for _, r := range s {
		if r < 128 && strings.ContainsRune(markdownV2Special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// buildMessage renders a release into MarkdownV2 text. Note lists longer
// than maxNotes are truncated with an explicit "and more" marker.
func buildMessage(release *entity.Release, maxNotes int) string {
	if maxNotes <= 0 {
		maxNotes = DefaultMaxNotes
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🚀 *New release: %s*\n", EscapeMarkdownV2(release.Version))
	if release.Date != "" && release.Date != entity.DateUnknown {
		fmt.Fprintf(&b, "_Released %s_\n", EscapeMarkdownV2(release.Date))
	}

	notes := release.Notes
	truncated := 0
	if len(notes) > maxNotes {
		truncated = len(notes) - maxNotes
		notes = notes[:maxNotes]
	}
	if len(notes) > 0 {
		b.WriteString("\n")
		for _, note := range notes {
			b.WriteString("• ")
			b.WriteString(EscapeMarkdownV2(note))
			b.WriteString("\n")
		}
	}
	if truncated > 0 {
		fmt.Fprintf(&b, "…and %d more\n", truncated)
	}

	return b.String()
}
