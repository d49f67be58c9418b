package notifier

import (
	"strings"
	"testing"

	"relwatch/internal/domain/entity"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"v1.2.3", `v1\.2\.3`},
		{"a_b*c[d]e", `a\_b\*c\[d\]e`},
		{"(x) > y! #tag", `\(x\) \> y\! \#tag`},
		{"a+b-c=d|e", `a\+b\-c\=d\|e`},
		{"{code} `tick` ~strike~", "\\{code\\} \\`tick\\` \\~strike\\~"},
		{"ünïcôde • bullet", "ünïcôde • bullet"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := EscapeMarkdownV2(tc.in); got != tc.want {
			t.Errorf("EscapeMarkdownV2(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEscapeMarkdownV2_RoundTripSafe(t *testing.T) {
	// Unescaping an escaped string must restore the original exactly.
	in := "1.0.0-rc.1+build (2024-01-01) [breaking!] a_b*c"
	escaped := EscapeMarkdownV2(in)

	var unescaped strings.Builder
	for i := 0; i < len(escaped); i++ {
		if escaped[i] == '\\' && i+1 < len(escaped) {
			i++
		}
		unescaped.WriteByte(escaped[i])
	}
	if unescaped.String() != in {
		t.Errorf("round trip failed: %q -> %q -> %q", in, escaped, unescaped.String())
	}

	// No unescaped special character may survive.
	for i := 0; i < len(escaped); i++ {
		if strings.ContainsRune(markdownV2Special, rune(escaped[i])) {
			if i == 0 || escaped[i-1] != '\\' {
				t.Errorf("unescaped special character %q at %d in %q", escaped[i], i, escaped)
			}
		}
	}
}

func TestBuildMessage(t *testing.T) {
	release := &entity.Release{
		Version: "2.1.0",
		Date:    "2024-06-10",
		Notes:   []string{"Added webhook signing", "Fixed retry jitter"},
	}

	msg := buildMessage(release, DefaultMaxNotes)

	if !strings.Contains(msg, `2\.1\.0`) {
		t.Errorf("message should contain the escaped version: %q", msg)
	}
	if !strings.Contains(msg, `2024\-06\-10`) {
		t.Errorf("message should contain the escaped date: %q", msg)
	}
	if !strings.Contains(msg, "• Added webhook signing") {
		t.Errorf("message should list notes: %q", msg)
	}
	if strings.Contains(msg, "more") {
		t.Errorf("short note lists must not carry a truncation marker: %q", msg)
	}
}

func TestBuildMessage_TruncatesLongNoteLists(t *testing.T) {
	notes := make([]string, 12)
	for i := range notes {
		notes[i] = "change"
	}
	release := &entity.Release{Version: "1.0.0", Date: entity.DateUnknown, Notes: notes}

	msg := buildMessage(release, 5)

	if got := strings.Count(msg, "• "); got != 5 {
		t.Errorf("expected 5 rendered notes, got %d: %q", got, msg)
	}
	if !strings.Contains(msg, "…and 7 more") {
		t.Errorf("expected truncation marker, got %q", msg)
	}
	if strings.Contains(msg, "_Released") {
		t.Errorf("unknown date must not render a release line: %q", msg)
	}
}
