package changelog

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"relwatch/internal/domain/entity"
)

const sampleChangelog = `# Changelog

All notable changes to this project are documented here.

## Unreleased

## 2.1.0 - 2024-06-10
- Added webhook signing
- Fixed retry jitter
### Breaking
- Dropped legacy config keys

## [2.0.0] (2024-05-01)
* Rewrote the storage layer
  * Nested detail bullet

## v1.9.3-rc.1+build.77
• Release candidate cleanup
`

func TestParser_Parse(t *testing.T) {
	p := NewParser(DefaultConfig())

	cl, err := p.Parse(sampleChangelog)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	want := []entity.Release{
		{
			Version: "2.1.0",
			Date:    "2024-06-10",
			Notes:   []string{"Added webhook signing", "Fixed retry jitter", "Breaking", "Dropped legacy config keys"},
		},
		{
			Version: "2.0.0",
			Date:    "2024-05-01",
			Notes:   []string{"Rewrote the storage layer", "Nested detail bullet"},
		},
		{
			Version: "1.9.3-rc.1+build.77",
			Date:    entity.DateUnknown,
			Notes:   []string{"Release candidate cleanup"},
		},
	}

	if diff := cmp.Diff(want, cl.Releases); diff != "" {
		t.Errorf("releases mismatch (-want +got):\n%s", diff)
	}
	if cl.Latest == nil || cl.Latest.Version != "2.1.0" {
		t.Errorf("expected latest=2.1.0, got %+v", cl.Latest)
	}
}

func TestParser_Parse_SyntheticRoundTrip(t *testing.T) {
	// N headings with at least one bullet each must yield exactly N
	// releases in descending document order.
	const n = 25
	var b strings.Builder
	b.WriteString("# Changelog\n\n")
	for i := n; i >= 1; i-- {
		fmt.Fprintf(&b, "## %d.0.0 - 2024-01-%02d\n- change %d\n\n", i, (i%28)+1, i)
	}

	cl, err := NewParser(DefaultConfig()).Parse(b.String())
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(cl.Releases) != n {
		t.Fatalf("expected %d releases, got %d", n, len(cl.Releases))
	}
	for i, rel := range cl.Releases {
		want := fmt.Sprintf("%d.0.0", n-i)
		if rel.Version != want {
			t.Errorf("release %d: expected version %s, got %s", i, want, rel.Version)
		}
	}
}

func TestParser_Parse_Errors(t *testing.T) {
	p := NewParser(DefaultConfig())

	for _, tc := range []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace only", "   \n\t\n"},
		{"no version headings", "# Notes\n\nJust prose, no releases.\n"},
		{"placeholder only", "## Unreleased\n\n## 1.0.0\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Parse(tc.text)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var parseErr *entity.ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("expected *entity.ParseError, got %T", err)
			}
		})
	}
}

func TestParser_Parse_DiscardsEmptyEntries(t *testing.T) {
	text := "## 1.1.0\n\n## 1.0.0\n- initial release\n"

	cl, err := NewParser(DefaultConfig()).Parse(text)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(cl.Releases) != 1 {
		t.Fatalf("expected 1 release, got %d", len(cl.Releases))
	}
	if cl.Latest.Version != "1.0.0" {
		t.Errorf("expected latest=1.0.0, got %s", cl.Latest.Version)
	}
}

func TestParser_Parse_MinNotesConfigurable(t *testing.T) {
	text := "## 1.1.0\n\n## 1.0.0\n- initial release\n"

	cl, err := NewParser(Config{MinNotes: -1}).Parse(text)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(cl.Releases) != 2 {
		t.Fatalf("expected 2 releases with filtering disabled, got %d", len(cl.Releases))
	}
	if cl.Latest.Version != "1.1.0" {
		t.Errorf("expected latest=1.1.0, got %s", cl.Latest.Version)
	}
}

func TestMatchHeading(t *testing.T) {
	tests := []struct {
		line        string
		wantVersion string
		wantDate    string
		wantOK      bool
	}{
		{"## 1.2.3", "1.2.3", entity.DateUnknown, true},
		{"## v1.2.3 - 2024-01-15", "1.2.3", "2024-01-15", true},
		{"## [2.0.0] (2024-02-01)", "2.0.0", "2024-02-01", true},
		{"## 1.0.0-beta.2+exp.5", "1.0.0-beta.2+exp.5", entity.DateUnknown, true},
		{"## Unreleased", "", "", false},
		{"### 1.2.3", "", "", false},
		{"## 1.2", "", "", false},
		{"## 01.2.3", "", "", false},
		{"1.2.3", "", "", false},
	}
	for _, tc := range tests {
		version, date, ok := matchHeading(tc.line)
		if ok != tc.wantOK || version != tc.wantVersion || (ok && date != tc.wantDate) {
			t.Errorf("matchHeading(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.line, version, date, ok, tc.wantVersion, tc.wantDate, tc.wantOK)
		}
	}
}

func TestIsNoteLine(t *testing.T) {
	tests := []struct {
		line     string
		wantNote string
		wantOK   bool
	}{
		{"- plain bullet", "plain bullet", true},
		{"* star bullet", "star bullet", true},
		{"• unicode bullet", "unicode bullet", true},
		{"   - indented bullet", "indented bullet", true},
		{"### Fixed", "Fixed", true},
		{"prose line", "", false},
		{"", "", false},
		{"## 1.2.3", "", false},
	}
	for _, tc := range tests {
		note, ok := isNoteLine(tc.line)
		if ok != tc.wantOK || note != tc.wantNote {
			t.Errorf("isNoteLine(%q) = (%q, %v), want (%q, %v)",
				tc.line, note, ok, tc.wantNote, tc.wantOK)
		}
	}
}

func TestParser_ExtractLatest(t *testing.T) {
	p := NewParser(DefaultConfig())

	if got := p.ExtractLatest(sampleChangelog); got != "2.1.0" {
		t.Errorf("ExtractLatest = %q, want %q", got, "2.1.0")
	}
	if got := p.ExtractLatest("no releases here"); got != "" {
		t.Errorf("ExtractLatest on invalid input = %q, want empty", got)
	}
}
