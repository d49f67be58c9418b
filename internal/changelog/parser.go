// Package changelog turns raw changelog markdown into an ordered list of
// releases. The scanner is a small two-state machine: it seeks a version
// heading, then collects note lines until the next heading flushes the
// current release.
package changelog

import (
	"bufio"
	"regexp"
	"strings"

	"relwatch/internal/domain/entity"
	"relwatch/internal/semver"
)

// headingRe matches a level-2 version heading such as:
//
//	## 1.2.3
//	## v1.2.3 - 2024-05-01
//	## [2.0.0-rc.1] (2024-06-15)
//
// Capture group 1 is the version (without the "v" prefix), group 2 the
// optional date.
var headingRe = regexp.MustCompile(
	`^##\s+\[?v?(\d+\.\d+\.\d+(?:-[0-9A-Za-z\-.]+)?(?:\+[0-9A-Za-z\-.]+)?)\]?` +
		`(?:\s*[-(]\s*(\d{4}-\d{2}-\d{2})\s*\)?)?\s*$`)

// noteRe matches a bullet line (-, * or •, optionally indented) or a
// level-3 sub-heading.
var noteRe = regexp.MustCompile(`^\s*(?:[-*•]\s+(.*)|###\s+(.*))$`)

type scanState int

const (
	seekingHeader scanState = iota
	collectingNotes
)

// Config controls parsing behavior.
type Config struct {
	// MinNotes is the minimum number of collected note lines a heading
	// needs to count as a real release. Headings below the minimum
	// (typically "Unreleased" placeholders with no bullets yet) are
	// discarded.
	MinNotes int
}

// DefaultConfig returns the default parser configuration.
func DefaultConfig() Config {
	return Config{MinNotes: 1}
}

// Parser scans changelog markdown for version entries.
type Parser struct {
	cfg Config
}

// NewParser creates a Parser with the given configuration. A zero MinNotes
// is raised to the default so placeholder headings stay filtered unless a
// caller explicitly opts out via a negative value.
func NewParser(cfg Config) *Parser {
	if cfg.MinNotes == 0 {
		cfg.MinNotes = DefaultConfig().MinNotes
	}
	return &Parser{cfg: cfg}
}

// matchHeading reports whether line opens a new version entry, returning
// the version and date when it does. The version must additionally satisfy
// the semver grammar; headings with malformed versions are ignored rather
// than failing the whole document.
func matchHeading(line string) (version, date string, ok bool) {
	m := headingRe.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	if !semver.IsValid(m[1]) {
		return "", "", false
	}
	date = m[2]
	if date == "" {
		date = entity.DateUnknown
	}
	return m[1], date, true
}

// isNoteLine reports whether line belongs to the current release's notes,
// returning the trimmed note text.
func isNoteLine(line string) (note string, ok bool) {
	m := noteRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return strings.TrimSpace(m[1]), true
	}
	return strings.TrimSpace(m[2]), true
}

// Parse scans the document and returns every discovered release in document
// order, topmost first. It fails with a *entity.ParseError on empty input
// or when no version heading survives filtering.
func (p *Parser) Parse(text string) (*entity.Changelog, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &entity.ParseError{Message: "changelog text is empty"}
	}

	var (
		releases []entity.Release
		current  *entity.Release
		state    = seekingHeader
	)

	flush := func() {
		if current == nil {
			return
		}
		if len(current.Notes) >= p.cfg.MinNotes {
			releases = append(releases, *current)
		}
		current = nil
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()

		if version, date, ok := matchHeading(line); ok {
			flush()
			current = &entity.Release{Version: version, Date: date}
			state = collectingNotes
			continue
		}

		if state != collectingNotes {
			continue
		}
		if note, ok := isNoteLine(line); ok {
			current.Notes = append(current.Notes, note)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &entity.ParseError{Message: "scan changelog: " + err.Error()}
	}
	flush()

	if len(releases) == 0 {
		return nil, &entity.ParseError{Message: "no version headings found"}
	}

	cl := &entity.Changelog{Releases: releases}
	cl.Latest = &cl.Releases[0]
	return cl, nil
}

// ExtractLatest returns the latest version string, or "" when the document
// cannot be parsed. Parse errors are swallowed deliberately: callers of
// this helper tolerate "can't determine yet".
func (p *Parser) ExtractLatest(text string) string {
	cl, err := p.Parse(text)
	if err != nil {
		return ""
	}
	return cl.Latest.Version
}
